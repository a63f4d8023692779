package entry

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	extension "github.com/effectus/extension-sdk"
)

func TestNewRegistersInternalListeners(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, "page", f.entry.ContentType().UID)
	assert.Equal(t, "en-us", f.entry.Locale())
	assert.Equal(t, []string{extension.EventEntrySave, extension.EventEntryChange}, f.emitter.onCalls)

	_, err := New(&InitData{}, nil, nil)
	assert.Error(t, err)
	_, err = New(nil, nil, nil)
	assert.Error(t, err)
}

func TestGetDataAndChangedData(t *testing.T) {
	init := loadInit(t)
	f := newFixture(t, init)

	assert.Equal(t, init.Entry, f.entry.GetData())
	require.NotNil(t, f.entry.ChangedData())
	assert.Equal(t, "changed title", f.entry.ChangedData()["title"])
}

func TestSubscriptions(t *testing.T) {
	tests := []struct {
		event     string
		subscribe func(*Entry, extension.Handler) error
	}{
		{extension.EventEntrySave, (*Entry).OnSave},
		{extension.EventEntryChange, (*Entry).OnChange},
		{extension.EventEntryPublish, (*Entry).OnPublish},
		{extension.EventEntryUnPublish, (*Entry).OnUnPublish},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			f := newFixture(t, nil)
			var got []extension.Event
			cb := func(ctx context.Context, event extension.Event) error {
				got = append(got, event)
				return nil
			}

			require.NoError(t, tt.subscribe(f.entry, cb))
			assert.Contains(t, f.emitter.onCalls, tt.event)

			regs := f.emitter.emittedNamed(extension.EventRegister)
			require.Len(t, regs, 1)
			assert.Equal(t, []extension.EventRegistration{{Name: tt.event}}, regs[0].Data[extension.RegistrationKey])

			f.emitter.Emit(context.Background(), tt.event, map[string]interface{}{DataKey: map[string]interface{}{"title": "t"}})
			require.Len(t, got, 1)
			assert.Equal(t, tt.event, got[0].Name)

			assert.ErrorIs(t, tt.subscribe(f.entry, nil), extension.ErrNilCallback)
		})
	}
}

func TestSubscribeWithoutEmitter(t *testing.T) {
	e, err := New(loadInit(t), nil, nil)
	require.NoError(t, err)
	err = e.OnSave(func(ctx context.Context, event extension.Event) error { return nil })
	assert.Error(t, err)
	assert.ErrorIs(t, e.OnSave(nil), extension.ErrNilCallback)
}

func TestSaveNotificationReplacesData(t *testing.T) {
	f := newFixture(t, nil)
	saved := map[string]interface{}{
		"title":  "Saved Title",
		"uid":    "blt123saved",
		"locale": "en-us",
	}

	var seen interface{}
	require.NoError(t, f.entry.OnSave(func(ctx context.Context, event extension.Event) error {
		// internal listener runs first
		seen = f.entry.GetData()["title"]
		return nil
	}))

	f.emitter.Emit(context.Background(), extension.EventEntrySave, map[string]interface{}{DataKey: saved})
	assert.Empty(t, f.emitter.errs)
	assert.Equal(t, saved, f.entry.GetData())
	assert.Equal(t, "Saved Title", seen)
	assert.Equal(t, "page", f.entry.ContentType().UID)
}

func TestSaveNotificationWithSchema(t *testing.T) {
	f := newFixture(t, nil)
	f.emitter.Emit(context.Background(), extension.EventEntrySave, map[string]interface{}{
		DataKey: map[string]interface{}{"headline": "New"},
		ContentTypeKey: map[string]interface{}{
			"uid":    "page",
			"schema": []interface{}{map[string]interface{}{"uid": "headline", "data_type": "text"}},
		},
	})
	require.Empty(t, f.emitter.errs)

	field := mustField(t, f.entry, "headline")
	data, _ := field.GetData()
	assert.Equal(t, "New", data)

	_, err := f.entry.GetField("title")
	assert.ErrorIs(t, err, extension.ErrFieldNotFound)
}

func TestChangeNotification(t *testing.T) {
	f := newFixture(t, nil)
	changed := map[string]interface{}{
		"title":       "Changed Title Again",
		"description": "New description",
	}

	f.emitter.Emit(context.Background(), extension.EventEntryChange, map[string]interface{}{
		DataKey: changed,
		ContentTypeKey: map[string]interface{}{
			"uid": "page",
			"schema": []interface{}{
				map[string]interface{}{"uid": "title", "data_type": "text"},
				map[string]interface{}{"uid": "description", "data_type": "text"},
			},
		},
	})
	require.Empty(t, f.emitter.errs)
	assert.Equal(t, changed, f.entry.ChangedData())

	// persisted data is untouched
	assert.Equal(t, "Home", f.entry.GetData()["title"])

	field := mustField(t, f.entry, "description", UseUnsavedSchema())
	assert.Equal(t, "text", field.DataType())
	_, err := f.entry.GetField("description")
	assert.ErrorIs(t, err, extension.ErrFieldNotFound)
}

func TestNotificationErrors(t *testing.T) {
	f := newFixture(t, nil)
	before := f.entry.GetData()

	f.emitter.Emit(context.Background(), extension.EventEntrySave, map[string]interface{}{"title": "no envelope"})
	f.emitter.Emit(context.Background(), extension.EventEntrySave, map[string]interface{}{DataKey: "text"})
	f.emitter.Emit(context.Background(), extension.EventEntryChange, map[string]interface{}{
		DataKey:        map[string]interface{}{},
		ContentTypeKey: 42,
	})

	assert.Len(t, f.emitter.errs, 3)
	assert.Equal(t, before, f.entry.GetData())
}

func TestSaveNotificationNormalizesStructs(t *testing.T) {
	type saved struct {
		Title string `json:"title"`
	}
	f := newFixture(t, nil)
	f.emitter.Emit(context.Background(), extension.EventEntrySave, map[string]interface{}{DataKey: saved{Title: "From struct"}})
	require.Empty(t, f.emitter.errs)
	assert.Equal(t, "From struct", f.entry.GetData()["title"])
}

func TestConcurrentResolutionDuringSaves(t *testing.T) {
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				handle, err := f.entry.GetField("title")
				if assert.NoError(t, err) {
					data, ok := handle.GetData()
					assert.True(t, ok)
					assert.NotEmpty(t, data)
				}
			}
		}()
	}

	for j := 0; j < 50; j++ {
		f.emitter.Emit(context.Background(), extension.EventEntrySave, map[string]interface{}{
			DataKey: map[string]interface{}{"title": "rev"},
		})
	}
	wg.Wait()
	assert.Equal(t, "rev", f.entry.GetData()["title"])
}
