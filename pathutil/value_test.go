package pathutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNull, KindOf(nil))
	assert.Equal(t, KindNull, KindOf(map[string]string(nil)))
	assert.Equal(t, KindScalar, KindOf("x"))
	assert.Equal(t, KindScalar, KindOf(1.5))
	assert.Equal(t, KindSequence, KindOf([]interface{}{1}))
	assert.Equal(t, KindSequence, KindOf([]string{"a"}))
	assert.Equal(t, KindMapping, KindOf(map[string]interface{}{}))
	assert.Equal(t, KindMapping, KindOf(struct{ A int }{1}))
	assert.Equal(t, "sequence", KindSequence.String())
}

func TestIsEmptyDocument(t *testing.T) {
	assert.True(t, IsEmptyDocument(nil))
	assert.True(t, IsEmptyDocument(map[string]interface{}{}))
	assert.True(t, IsEmptyDocument(map[string]string{}))
	assert.False(t, IsEmptyDocument(map[string]interface{}{"title": "x"}))
	assert.False(t, IsEmptyDocument([]interface{}{}))
}

func TestFromJSON(t *testing.T) {
	value, err := FromJSON([]byte(`{"title":"Home","count":2,"tags":["a",null,true],"nested":{"ok":false}}`))
	require.NoError(t, err)

	doc, ok := value.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Home", doc["title"])
	assert.Equal(t, float64(2), doc["count"])
	assert.Equal(t, []interface{}{"a", nil, true}, doc["tags"])
	assert.Equal(t, map[string]interface{}{"ok": false}, doc["nested"])

	_, err = FromJSON([]byte(`{"title":`))
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	type Image struct {
		URL  string `json:"url"`
		Alt  string `json:"alt,omitempty"`
		Hash string `json:"-"`
	}
	type Banner struct {
		Title   string            `json:"title"`
		Images  []Image           `json:"images"`
		Cover   *Image            `json:"cover"`
		Labels  map[string]string `json:"labels"`
		Created time.Time         `json:"created_at"`
		hidden  string
	}

	now := time.Now()
	doc, err := NormalizeDocument(Banner{
		Title:   "Hello",
		Images:  []Image{{URL: "a.png", Hash: "h"}},
		Labels:  map[string]string{"k": "v"},
		Created: now,
		hidden:  "x",
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello", doc["title"])
	assert.Nil(t, doc["cover"])
	assert.Equal(t, now, doc["created_at"])
	assert.Equal(t, map[string]interface{}{"k": "v"}, doc["labels"])
	assert.NotContains(t, doc, "hidden")

	images, ok := doc["images"].([]interface{})
	require.True(t, ok)
	require.Len(t, images, 1)
	assert.Equal(t, map[string]interface{}{"url": "a.png", "alt": ""}, images[0])

	_, err = NormalizeDocument([]int{1})
	assert.Error(t, err)

	_, err = Normalize(map[int]string{1: "a"})
	assert.Error(t, err)
}
