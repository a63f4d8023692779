package entry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/schema"
	"github.com/effectus/extension-sdk/transport"
)

// testEmitter records subscriptions and emissions and dispatches synchronously
type testEmitter struct {
	mu       sync.Mutex
	handlers map[string][]extension.Handler
	onCalls  []string
	emitted  []extension.Event
	errs     []error
}

func newTestEmitter() *testEmitter {
	return &testEmitter{handlers: make(map[string][]extension.Handler)}
}

func (e *testEmitter) On(name string, handler extension.Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCalls = append(e.onCalls, name)
	e.handlers[name] = append(e.handlers[name], handler)
}

func (e *testEmitter) Emit(ctx context.Context, name string, data map[string]interface{}) {
	e.mu.Lock()
	e.emitted = append(e.emitted, extension.Event{Name: name, Data: data})
	handlers := append([]extension.Handler(nil), e.handlers[name]...)
	e.mu.Unlock()

	for _, h := range handlers {
		if err := h(ctx, extension.Event{Name: name, Data: data}); err != nil {
			e.mu.Lock()
			e.errs = append(e.errs, err)
			e.mu.Unlock()
		}
	}
}

func (e *testEmitter) emittedNamed(name string) []extension.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []extension.Event
	for _, ev := range e.emitted {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func loadInit(t *testing.T) *InitData {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", "init.json"))
	require.NoError(t, err)
	init, err := ParseInit(raw)
	require.NoError(t, err)
	return init
}

func loadGlobals(t *testing.T) *schema.Registry {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("testdata", "seo.json"))
	require.NoError(t, err)
	seo, kind, err := schema.ParseDocument(raw, "json")
	require.NoError(t, err)

	registry := schema.NewRegistry()
	require.NoError(t, registry.Register(kind, seo))
	return registry
}

type fixture struct {
	entry   *Entry
	conn    *transport.Recorder
	emitter *testEmitter
}

func newFixture(t *testing.T, init *InitData, opts ...Option) *fixture {
	t.Helper()
	if init == nil {
		init = loadInit(t)
	}
	f := &fixture{conn: transport.NewRecorder(), emitter: newTestEmitter()}
	opts = append([]Option{WithGlobalFields(loadGlobals(t))}, opts...)

	var err error
	f.entry, err = New(init, f.conn, f.emitter, opts...)
	require.NoError(t, err)
	return f
}

func mustField(t *testing.T, e *Entry, path string, opts ...FieldOption) *Field {
	t.Helper()
	handle, err := e.GetField(path, opts...)
	require.NoError(t, err, path)
	field, ok := handle.(*Field)
	require.True(t, ok, "expected *Field, got %T", handle)
	return field
}
