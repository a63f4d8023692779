package entry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/schema"
)

func TestGetFieldLeaves(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		path     string
		dataType string
		data     interface{}
	}{
		{"title", "text", "Home"},
		{"number", "number", float64(5)},
		{"group.group.group.0.single_line", "text", "first"},
		{"group.group.group.1.number", "number", float64(2)},
		{"modular_blocks.0.banner_title", "text", "Welcome"},
		{"modular_blocks.0.cta.link", "link", map[string]interface{}{"title": "Read more", "href": "/about"}},
		{"modular_blocks.1.rich_text", "text", "<p>We build things.</p>"},
		{"modular_blocks.2.video_url", "link", map[string]interface{}{"title": "Intro", "href": "https://video.example.com/intro"}},
		{"modular_blocks.3.meta_title", "text", "Block meta"},
		{"global_field.single_line", "text", "global line"},
		{"seo_ref.meta_description", "text", "Meta description"},
		{"links.0.meta_title", "text", "First link"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			field := mustField(t, f.entry, tt.path)
			assert.Equal(t, tt.path, field.UID())
			assert.Equal(t, tt.dataType, field.DataType())
			assert.IsType(t, &schema.Field{}, field.Schema())
			assert.False(t, field.IsDefinition())

			data, ok := field.GetData()
			assert.True(t, ok)
			assert.Equal(t, tt.data, data)
		})
	}
}

func TestGetFieldSchemaMatchesContentType(t *testing.T) {
	f := newFixture(t, nil)
	ct := f.entry.ContentType()

	field := mustField(t, f.entry, "group1.group")
	group1 := ct.Schema[5].(*schema.Group)
	assert.Same(t, group1.Schema[0], field.Schema())
	assert.Equal(t, schema.TypeGroup, field.DataType())

	// group1 is empty in data
	data, ok := field.GetData()
	assert.False(t, ok)
	assert.Nil(t, data)

	bannerImage := mustField(t, f.entry, "modular_blocks.0.banner_image")
	banner, _ := ct.Schema[6].(*schema.Blocks).Block("banner")
	assert.Same(t, banner.Schema[0], bannerImage.Schema())
	assert.Equal(t, "file", bannerImage.DataType())
	assert.Equal(t, banner.Schema[0].Raw(), bannerImage.Schema().Raw())
}

func TestGetFieldMultipleGroup(t *testing.T) {
	f := newFixture(t, nil)
	multiple := f.entry.ContentType().Schema[4].(*schema.Group).Schema[0].(*schema.Group).Schema[0]

	definition := mustField(t, f.entry, "group.group.group")
	assert.Equal(t, schema.TypeGroup, definition.DataType())
	assert.Same(t, multiple, definition.Schema())
	assert.False(t, definition.IsInstance())

	instance := mustField(t, f.entry, "group.group.group.0")
	assert.Equal(t, schema.TypeGroup, instance.DataType())
	assert.Same(t, multiple, instance.Schema())
	assert.True(t, instance.IsInstance())
	data, ok := instance.GetData()
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"single_line": "first", "number": float64(1)}, data)

	child := mustField(t, f.entry, "group.group.group.single_line")
	assert.True(t, child.IsDefinition())
	_, ok = child.GetData()
	assert.False(t, ok)
}

func TestGetFieldBlockInstanceAndDefinitionShareSchema(t *testing.T) {
	f := newFixture(t, nil)

	instance := mustField(t, f.entry, "modular_blocks.0")
	definition := mustField(t, f.entry, "modular_blocks.banner")

	assert.Equal(t, schema.TypeBlock, instance.DataType())
	assert.Equal(t, schema.TypeBlock, definition.DataType())
	assert.Same(t, definition.Schema(), instance.Schema())
	assert.Equal(t, "banner", instance.Schema().UID())

	data, ok := instance.GetData()
	require.True(t, ok)
	assert.Equal(t, "Welcome", data.(map[string]interface{})["banner_title"])
	assert.False(t, instance.IsDefinition())

	data, ok = definition.GetData()
	assert.False(t, ok)
	assert.Nil(t, data)
	assert.True(t, definition.IsDefinition())

	container := mustField(t, f.entry, "modular_blocks")
	assert.Equal(t, schema.TypeBlocks, container.DataType())
	seq, ok := container.GetData()
	require.True(t, ok)
	assert.Len(t, seq, 7)
}

func TestGetFieldErrors(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		path    string
		want    error
		segment int
	}{
		{"unknown root", "invaliduid", extension.ErrFieldNotFound, 0},
		{"malformed", "group..title", extension.ErrMalformedPath, -1},
		{"empty path", "", extension.ErrMalformedPath, -1},
		{"index on single group", "group.0", extension.ErrFieldNotFound, 1},
		{"child of leaf", "title.length", extension.ErrFieldNotFound, 1},
		{"instance out of range", "group.group.group.5.single_line", extension.ErrFieldNotFound, 3},
		{"unknown discriminant", "modular_blocks.4", extension.ErrFieldNotFound, 1},
		{"two discriminants", "modular_blocks.5.banner_title", extension.ErrFieldNotFound, 1},
		{"null block instance", "modular_blocks.6", extension.ErrFieldNotFound, 1},
		{"block instance out of range", "modular_blocks.99", extension.ErrFieldNotFound, 1},
		{"field of another block type", "modular_blocks.0.video_url", extension.ErrFieldNotFound, 2},
		{"instance of missing multiple group", "links.4.meta_title", extension.ErrFieldNotFound, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handle, err := f.entry.GetField(tt.path)
			require.Error(t, err)
			assert.Nil(t, handle)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var pathErr *extension.PathError
			require.True(t, errors.As(err, &pathErr))
			assert.Equal(t, tt.segment, pathErr.Segment)
		})
	}
}

func TestGetFieldMissingDeepSchema(t *testing.T) {
	init := loadInit(t)
	group1, ok := schema.Find(init.ContentType.Schema, "group1")
	require.True(t, ok)
	group1.(*schema.Group).Schema = nil

	f := newFixture(t, init)
	_, err := f.entry.GetField("group1.group.single_line")
	assert.ErrorIs(t, err, extension.ErrFieldNotFound)
}

func TestGetFieldNulledIntermediate(t *testing.T) {
	for name, mutate := range map[string]func(map[string]interface{}){
		"null":   func(g map[string]interface{}) { g["group"] = nil },
		"scalar": func(g map[string]interface{}) { g["group"] = "flat" },
	} {
		t.Run(name, func(t *testing.T) {
			init := loadInit(t)
			mutate(init.Entry["group"].(map[string]interface{}))
			f := newFixture(t, init)

			for _, path := range []string{"group.group.group.0.single_line", "group.group.group"} {
				_, err := f.entry.GetField(path)
				assert.ErrorIs(t, err, extension.ErrFieldNotFound, path)
			}

			// the nulled group itself is still addressable
			field := mustField(t, f.entry, "group.group")
			_, ok := field.GetData()
			assert.True(t, ok)
		})
	}

	t.Run("top level null", func(t *testing.T) {
		init := loadInit(t)
		init.Entry["group1"] = nil
		f := newFixture(t, init)

		_, err := f.entry.GetField("group1.group.single_line")
		assert.ErrorIs(t, err, extension.ErrFieldNotFound)
	})

	t.Run("missing", func(t *testing.T) {
		init := loadInit(t)
		delete(init.Entry["group"].(map[string]interface{}), "group")
		f := newFixture(t, init)

		_, err := f.entry.GetField("group.group.group.0.single_line")
		assert.ErrorIs(t, err, extension.ErrFieldNotFound)

		// name-only paths over missing data resolve to an undefined slice
		field := mustField(t, f.entry, "group.group.group")
		_, ok := field.GetData()
		assert.False(t, ok)
	})
}

func TestGetFieldUnsavedEntry(t *testing.T) {
	for name, data := range map[string]map[string]interface{}{
		"empty object": {},
		"no data":      nil,
	} {
		t.Run(name, func(t *testing.T) {
			init := loadInit(t)
			init.Entry = data
			f := newFixture(t, init)

			for _, path := range []string{"title", "group.group.group.0", "invaliduid", ""} {
				_, err := f.entry.GetField(path)
				assert.ErrorIs(t, err, extension.ErrUnsavedEntry, path)
			}
			assert.EqualError(t, extension.ErrUnsavedEntry, "the data is unsaved, save the data before requesting the field")
		})
	}
}

func TestGetFieldUnsavedSchema(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.entry.GetField("subtitle")
	assert.ErrorIs(t, err, extension.ErrFieldNotFound)

	subtitle := mustField(t, f.entry, "subtitle", UseUnsavedSchema())
	assert.Equal(t, "text", subtitle.DataType())
	_, ok := subtitle.GetData()
	assert.False(t, ok, "data always comes from the persisted entry")

	title := mustField(t, f.entry, "title", UseUnsavedSchema())
	assert.Equal(t, f.entry.ContentType().Schema[0].Raw(), title.Schema().Raw())
	data, _ := title.GetData()
	assert.Equal(t, "Home", data)

	// without a changed schema the persisted one is used
	init := loadInit(t)
	init.Changed = nil
	plain := newFixture(t, init)
	field := mustField(t, plain.entry, "title", UseUnsavedSchema())
	assert.Same(t, plain.entry.ContentType().Schema[0], field.Schema())
}

func TestGetFieldWithoutGlobalFields(t *testing.T) {
	e, err := New(loadInit(t), nil, nil)
	require.NoError(t, err)

	_, err = e.GetField("seo_ref.meta_title")
	assert.ErrorIs(t, err, extension.ErrFieldNotFound)

	// inline global field schemas need no registry
	field, err := e.GetField("global_field.description")
	require.NoError(t, err)
	assert.Equal(t, "text", field.DataType())
}

func TestCustomFieldFactory(t *testing.T) {
	var calls []Resolution
	factory := func(res Resolution) Handle {
		calls = append(calls, res)
		return NewField(res)
	}
	f := newFixture(t, nil, WithFieldFactory(factory))

	_, err := f.entry.GetField("title")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "title", calls[0].UID)
	assert.Equal(t, "Home", calls[0].Data)
	assert.True(t, calls[0].Present)
	assert.Same(t, f.conn, calls[0].Conn)

	_, err = f.entry.GetField("invaliduid")
	assert.Error(t, err)
	assert.Len(t, calls, 1, "factory is not called on failed resolution")
}

func TestSetData(t *testing.T) {
	ctx := context.Background()

	t.Run("writable", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, path := range []string{
			"title",
			"group1.group",
			"global_field",
			"group.group.group.0.single_line",
			"modular_blocks.0.banner_title",
			"modular_blocks.0.cta",
		} {
			field := mustField(t, f.entry, path)
			assert.True(t, field.Writable(), path)
			require.NoError(t, field.SetData(ctx, "value of "+path))
		}

		reqs := f.conn.Requests()
		require.Len(t, reqs, 6)
		assert.Equal(t, extension.ActionSetData, reqs[0].Action)
		assert.Equal(t, extension.SetDataPayload{UID: "title", Value: "value of title"}, reqs[0].Payload)
		assert.Equal(t, extension.SetDataPayload{UID: "modular_blocks.0.cta", Value: "value of modular_blocks.0.cta"}, reqs[5].Payload)
	})

	t.Run("unsupported", func(t *testing.T) {
		f := newFixture(t, nil)
		for _, path := range []string{
			"group.group.group",
			"group.group.group.0",
			"group.group.group.number",
			"links",
			"modular_blocks",
			"modular_blocks.0",
			"modular_blocks.banner",
			"modular_blocks.banner.banner_title",
		} {
			field := mustField(t, f.entry, path)
			assert.False(t, field.Writable(), path)
			for _, value := range []interface{}{map[string]interface{}{"d": "dummy"}, nil, "x"} {
				err := field.SetData(ctx, value)
				assert.ErrorIs(t, err, extension.ErrUnsupportedWrite, path)
			}
		}
		assert.Empty(t, f.conn.Requests())
	})

	t.Run("transport failure", func(t *testing.T) {
		f := newFixture(t, nil)
		f.conn.Fail(extension.ActionSetData, errors.New("host gone"))

		err := mustField(t, f.entry, "title").SetData(ctx, "x")
		assert.ErrorContains(t, err, "host gone")
	})

	t.Run("no connection", func(t *testing.T) {
		e, err := New(loadInit(t), nil, nil)
		require.NoError(t, err)
		handle, err := e.GetField("title")
		require.NoError(t, err)
		assert.Error(t, handle.SetData(ctx, "x"))
	})
}

func TestHandlesKeepTheirSnapshot(t *testing.T) {
	f := newFixture(t, nil)
	before := mustField(t, f.entry, "title")

	f.emitter.Emit(context.Background(), extension.EventEntrySave, map[string]interface{}{
		DataKey: map[string]interface{}{"title": "Saved Title", "locale": "fr-fr"},
	})

	data, _ := before.GetData()
	assert.Equal(t, "Home", data)

	after := mustField(t, f.entry, "title")
	data, _ = after.GetData()
	assert.Equal(t, "Saved Title", data)
	assert.Equal(t, "fr-fr", f.entry.Locale())
}
