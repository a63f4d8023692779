// Package events provides the event bus that carries host notifications to
// entry handlers and SDK announcements back towards the host.
package events

import (
	"context"
	"sync"

	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
)

// Bus is a simple publish/subscribe event bus. It implements extension.Emitter.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]extension.Handler
	logger   *zap.Logger
}

// NewBus creates a new event bus. A nil logger discards logs.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[string][]extension.Handler),
		logger:   logger,
	}
}

// On registers a handler for an event.
// Supports wildcard subscriptions:
//   - "entrySave" - exact match
//   - "*" - all events
func (b *Bus) On(name string, handler extension.Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

// Emit delivers an event to all matching handlers.
// Handlers are called synchronously in registration order, exact matches
// before wildcards. Handler errors are logged and do not stop delivery.
func (b *Bus) Emit(ctx context.Context, name string, data map[string]interface{}) {
	event := extension.Event{Name: name, Data: data}

	// Handlers may subscribe while being called, so the lock is not held during delivery.
	b.mu.RLock()
	matched := make([]extension.Handler, 0, len(b.handlers[name])+len(b.handlers[extension.EventWildcard]))
	matched = append(matched, b.handlers[name]...)
	if name != extension.EventWildcard {
		matched = append(matched, b.handlers[extension.EventWildcard]...)
	}
	b.mu.RUnlock()

	b.logger.Debug("event emitted", zap.String("event", name), zap.Int("handlers", len(matched)))

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Warn("event handler error", zap.String("event", name), zap.Error(err))
		}
	}
}
