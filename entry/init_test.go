package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInit(t *testing.T) {
	init := loadInit(t)
	assert.Equal(t, "page", init.ContentType.UID)
	assert.Equal(t, "en-us", init.Locale)
	assert.Equal(t, "Home", init.Entry["title"])
	require.NotNil(t, init.Changed)
	assert.Equal(t, "changed title", init.Changed.Entry["title"])
	require.NotNil(t, init.Changed.ContentType)
	assert.Len(t, init.Changed.ContentType.Schema, len(init.ContentType.Schema)+1)
}

func TestParseInitMinimal(t *testing.T) {
	init, err := ParseInit([]byte(`{"content_type":{"uid":"blog","schema":[]},"locale":"de-de","changedData":null}`))
	require.NoError(t, err)
	assert.Equal(t, "de-de", init.Locale)
	assert.Nil(t, init.Entry)
	assert.Nil(t, init.Changed)

	init, err = ParseInit([]byte(`{"content_type":{"uid":"blog"},"changedData":{"entry":{"title":"draft"}}}`))
	require.NoError(t, err)
	require.NotNil(t, init.Changed)
	assert.Nil(t, init.Changed.ContentType)
	assert.Equal(t, "draft", init.Changed.Entry["title"])
}

func TestParseInitErrors(t *testing.T) {
	for name, raw := range map[string]string{
		"invalid json":         `{"content_type":`,
		"no content type":      `{"entry":{"title":"x"}}`,
		"content type array":   `{"content_type":[1]}`,
		"entry not object":     `{"content_type":{"uid":"a"},"entry":"x"}`,
		"bad schema":           `{"content_type":{"uid":"a","schema":[{"data_type":"text"}]}}`,
		"bad changed schema":   `{"content_type":{"uid":"a"},"changedData":{"content_type":{"uid":"a","schema":"x"}}}`,
		"changed entry scalar": `{"content_type":{"uid":"a"},"changedData":{"entry":3}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInit([]byte(raw))
			assert.Error(t, err)
		})
	}
}
