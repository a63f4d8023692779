package events

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
)

// Bridge relays host notifications carried by a message system onto an
// Emitter and publishes SDK events back to the host.
type Bridge interface {
	Run(ctx context.Context) error
	Publish(ctx context.Context, name string, data map[string]interface{}) error
	Close() error
}

// Forward publishes every emission of name on bus through bridge
func Forward(bus *Bus, name string, bridge Bridge) {
	bus.On(name, func(ctx context.Context, event extension.Event) error {
		return bridge.Publish(ctx, event.Name, event.Data)
	})
}

// message is the wire form of a notification
type message struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data,omitempty"`
}

func encodeNotification(name string, data map[string]interface{}) ([]byte, error) {
	payload, err := json.Marshal(message{Event: name, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encoding %s notification: %w", name, err)
	}
	return payload, nil
}

// relay decodes payload and emits it. Registrations only travel towards
// the host, so one read back from a shared channel is dropped.
func relay(ctx context.Context, emitter extension.Emitter, logger *zap.Logger, payload []byte) {
	name, data, err := DecodeNotification(string(payload))
	if err != nil {
		logger.Warn("dropping notification", zap.Error(err))
		return
	}
	if name == extension.EventRegister {
		return
	}
	emitter.Emit(ctx, name, data)
}
