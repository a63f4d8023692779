// Package entry resolves dotted field paths against an entry's data and
// schema and exposes the entry's host events.
package entry

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/pathutil"
	"github.com/effectus/extension-sdk/schema"
)

// Event.Data keys of entrySave and entryChange notifications
const (
	DataKey        = "data"
	ContentTypeKey = "content_type"
)

// Entry is one entry document as seen by an extension
type Entry struct {
	current atomic.Pointer[snapshot]

	conn      extension.Connection
	emitter   extension.Emitter
	globals   schema.GlobalFieldResolver
	navigator *schema.Navigator
	factory   FieldFactory
	logger    *zap.Logger

	programs programCache
}

// New creates an entry from the host's init data. emitter may be nil when
// the caller does not need host notifications.
func New(init *InitData, conn extension.Connection, emitter extension.Emitter, opts ...Option) (*Entry, error) {
	if init == nil || init.ContentType == nil {
		return nil, fmt.Errorf("entry requires a content type")
	}

	e := &Entry{
		conn:    conn,
		emitter: emitter,
		factory: DefaultFieldFactory,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.navigator = schema.NewNavigator(e.globals)
	e.current.Store(newSnapshot(init))

	if emitter != nil {
		emitter.On(extension.EventEntrySave, e.handleSave)
		emitter.On(extension.EventEntryChange, e.handleChange)
	}
	return e, nil
}

// ContentType returns the persisted schema
func (e *Entry) ContentType() *schema.ContentType {
	return e.current.Load().contentType
}

// Locale returns the entry locale
func (e *Entry) Locale() string {
	return e.current.Load().locale
}

// GetData returns the persisted data. The map belongs to the current
// snapshot and must not be modified.
func (e *Entry) GetData() map[string]interface{} {
	return e.current.Load().data
}

// ChangedData returns the latest unsaved data, nil when nothing changed
func (e *Entry) ChangedData() map[string]interface{} {
	return e.current.Load().changed
}

// GetField resolves path into a field handle.
// It fails with ErrUnsavedEntry before the first save, ErrMalformedPath for
// bad paths and ErrFieldNotFound when the path leaves the schema or
// addresses an instance that has no data.
func (e *Entry) GetField(path string, opts ...FieldOption) (Handle, error) {
	var fo fieldOptions
	for _, opt := range opts {
		opt(&fo)
	}

	snap := e.current.Load()
	if pathutil.IsEmptyDocument(snap.data) {
		return nil, extension.NewPathError(path, -1, extension.ErrUnsavedEntry, "")
	}

	segments, err := pathutil.ParsePath(path)
	if err != nil {
		return nil, err
	}

	cursor := dataCursor{root: snap.data}
	match, err := e.navigator.Resolve(snap.root(fo.useUnsavedSchema), path, segments, cursor)
	if err != nil {
		return nil, err
	}

	value, present, failed := cursor.walk(match.Steps)
	if failed >= 0 {
		return nil, extension.NewPathError(path, failed, extension.ErrFieldNotFound, "data is null or not shaped like the schema")
	}

	return e.factory(Resolution{
		UID:      path,
		Segments: segments,
		Match:    match,
		Data:     value,
		Present:  present,
		Conn:     e.conn,
		Logger:   e.logger,
	}), nil
}

// OnSave registers cb for entrySave notifications
func (e *Entry) OnSave(cb extension.Handler) error {
	return e.subscribe(extension.EventEntrySave, cb)
}

// OnChange registers cb for entryChange notifications
func (e *Entry) OnChange(cb extension.Handler) error {
	return e.subscribe(extension.EventEntryChange, cb)
}

// OnPublish registers cb for entryPublish notifications
func (e *Entry) OnPublish(cb extension.Handler) error {
	return e.subscribe(extension.EventEntryPublish, cb)
}

// OnUnPublish registers cb for entryUnPublish notifications
func (e *Entry) OnUnPublish(cb extension.Handler) error {
	return e.subscribe(extension.EventEntryUnPublish, cb)
}

func (e *Entry) subscribe(name string, cb extension.Handler) error {
	if cb == nil {
		return extension.ErrNilCallback
	}
	if e.emitter == nil {
		return fmt.Errorf("subscribing to %s: entry has no emitter", name)
	}
	e.emitter.On(name, cb)
	extension.AnnounceRegistration(context.Background(), e.emitter, name)
	return nil
}

func (e *Entry) handleSave(ctx context.Context, event extension.Event) error {
	data, ct, err := decodeNotification(event)
	if err != nil {
		return fmt.Errorf("handling %s: %w", event.Name, err)
	}
	e.swap(func(s *snapshot) *snapshot { return s.saved(data, ct) })
	e.logger.Debug("entry saved", zap.Int("fields", len(data)), zap.Bool("schema_changed", ct != nil))
	return nil
}

func (e *Entry) handleChange(ctx context.Context, event extension.Event) error {
	data, ct, err := decodeNotification(event)
	if err != nil {
		return fmt.Errorf("handling %s: %w", event.Name, err)
	}
	e.swap(func(s *snapshot) *snapshot { return s.changedTo(data, ct) })
	e.logger.Debug("entry changed", zap.Int("fields", len(data)), zap.Bool("schema_changed", ct != nil))
	return nil
}

// swap replaces the snapshot, retrying when another notification won the race
func (e *Entry) swap(next func(*snapshot) *snapshot) {
	for {
		old := e.current.Load()
		if e.current.CompareAndSwap(old, next(old)) {
			return
		}
	}
}

func decodeNotification(event extension.Event) (map[string]interface{}, *schema.ContentType, error) {
	raw, ok := event.Data[DataKey]
	if !ok {
		return nil, nil, fmt.Errorf("notification without %q", DataKey)
	}
	data, ok := raw.(map[string]interface{})
	if !ok {
		doc, err := pathutil.NormalizeDocument(raw)
		if err != nil {
			return nil, nil, err
		}
		data = doc
	}

	var ct *schema.ContentType
	switch v := event.Data[ContentTypeKey].(type) {
	case nil:
	case *schema.ContentType:
		ct = v
	case map[string]interface{}:
		decoded, err := schema.DecodeContentType(v)
		if err != nil {
			return nil, nil, err
		}
		ct = decoded
	default:
		return nil, nil, fmt.Errorf("unexpected %q of type %T", ContentTypeKey, v)
	}
	return data, ct, nil
}
