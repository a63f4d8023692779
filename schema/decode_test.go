package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) (*ContentType, string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	ct, kind, err := ParseDocument(data, "")
	require.NoError(t, err)
	return ct, kind
}

func TestParseDocumentJSON(t *testing.T) {
	ct, kind := loadFixture(t, "page.json")
	assert.Equal(t, KindContentType, kind)
	assert.Equal(t, "page", ct.UID)
	assert.Equal(t, "Page", ct.Title)
	require.Len(t, ct.Schema, 10)

	title, ok := ct.Schema[0].(*Field)
	require.True(t, ok)
	assert.Equal(t, "text", title.DataType())
	assert.Equal(t, true, title.Raw()["mandatory"])

	group, ok := ct.Schema[4].(*Group)
	require.True(t, ok)
	assert.False(t, group.Multiple)
	inner := group.Schema[0].(*Group).Schema[0].(*Group)
	assert.True(t, inner.Multiple)
	assert.Equal(t, TypeGroup, inner.DataType())

	blocks, ok := ct.Schema[6].(*Blocks)
	require.True(t, ok)
	assert.Equal(t, TypeBlocks, blocks.DataType())
	require.Len(t, blocks.Blocks, 6)
	banner, ok := blocks.Block("banner")
	require.True(t, ok)
	assert.Equal(t, TypeBlock, banner.DataType())
	assert.Equal(t, "Banner", banner.Title)
	assert.Len(t, banner.Schema, 3)

	seoBlock, _ := blocks.Block("seo_block")
	assert.Equal(t, "seo", seoBlock.ReferenceTo)
	assert.Empty(t, seoBlock.Schema)

	gf, ok := ct.Schema[7].(*GlobalField)
	require.True(t, ok)
	assert.Equal(t, "seo", gf.ReferenceTo)
	assert.Len(t, gf.Schema, 2)
}

func TestParseDocumentYAMLEnvelope(t *testing.T) {
	ct, kind := loadFixture(t, "seo.yaml")
	assert.Equal(t, KindGlobalField, kind)
	assert.Equal(t, "seo", ct.UID)
	require.Len(t, ct.Schema, 2)
	assert.Equal(t, "meta_title", ct.Schema[0].UID())
}

func TestParseDocumentEnvelopes(t *testing.T) {
	ct, kind, err := ParseDocument([]byte(`{"global_field":{"uid":"seo","schema":[]}}`), "json")
	require.NoError(t, err)
	assert.Equal(t, KindGlobalField, kind)
	assert.Equal(t, "seo", ct.UID)

	ct, kind, err = ParseDocument([]byte(`{"content_type":{"uid":"blog","schema":[{"uid":"title","data_type":"text"}]}}`), "auto")
	require.NoError(t, err)
	assert.Equal(t, KindContentType, kind)
	assert.Equal(t, "blog", ct.UID)
	assert.Len(t, ct.Schema, 1)
}

func TestParseDocumentErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"invalid json", `{"uid":`, "json"},
		{"not an object", `[1,2]`, "json"},
		{"schema not a list", `{"uid":"x","schema":{"a":1}}`, "json"},
		{"node without uid", `{"uid":"x","schema":[{"data_type":"text"}]}`, "json"},
		{"duplicate siblings", `{"uid":"x","schema":[{"uid":"a","data_type":"text"},{"uid":"a","data_type":"number"}]}`, "json"},
		{"duplicate blocks", `{"uid":"x","schema":[{"uid":"b","data_type":"blocks","blocks":[{"uid":"a"},{"uid":"a"}]}]}`, "json"},
		{"block not an object", `{"uid":"x","schema":[{"uid":"b","data_type":"blocks","blocks":["a"]}]}`, "json"},
		{"bad yaml", "uid: [", "yaml"},
		{"unknown format", `{}`, "toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseDocument([]byte(tt.data), tt.format)
			assert.Error(t, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	page, _ := loadFixture(t, "page.json")
	seo, kind := loadFixture(t, "seo.yaml")

	registry := NewRegistry()
	require.NoError(t, registry.Register(KindContentType, page))
	require.NoError(t, registry.Register(kind, seo))
	assert.Error(t, registry.Register("widget", page))
	assert.Error(t, registry.Register(KindContentType, &ContentType{}))

	got, ok := registry.ContentType("page")
	require.True(t, ok)
	assert.Same(t, page, got)

	_, ok = registry.ContentType("seo")
	assert.False(t, ok)

	gf, ok := registry.GlobalField("seo")
	require.True(t, ok)
	assert.Same(t, seo, gf)

	assert.Equal(t, []string{"page"}, registry.ContentTypes())
	assert.Equal(t, []string{"seo"}, registry.GlobalFields())
}
