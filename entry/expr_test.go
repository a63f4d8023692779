package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	extension "github.com/effectus/extension-sdk"
)

func TestReferencedPaths(t *testing.T) {
	paths := ReferencedPaths(`title != "" && group.group.group[0].single_line == "x" && len(modular_blocks) > 1`)
	assert.Equal(t, []string{"group.group.group.0.single_line", "modular_blocks", "title"}, paths)

	assert.Equal(t, []string{"number"}, ReferencedPaths(`number > 3 ? "big" : "small"`))
	assert.Empty(t, ReferencedPaths(""))
	assert.Empty(t, ReferencedPaths("title =="))
}

func TestReferencedPathsClosures(t *testing.T) {
	assert.Equal(t, []string{"modular_blocks", "number"},
		ReferencedPaths(`all(modular_blocks, .hero != nil || # == nil) && number > 1`))
	assert.Equal(t, []string{"group.group.group", "title"},
		ReferencedPaths(`any(group.group.group, #.single_line == title)`))
	assert.Equal(t, []string{"modular_blocks"},
		ReferencedPaths(`reduce(modular_blocks, #acc + 1, 0)`))
}

func TestReferencedPathsVariables(t *testing.T) {
	assert.Equal(t, []string{"number", "title"},
		ReferencedPaths(`let n = number; let t = title; n > 1 && t.size != nil`))
	assert.Equal(t, []string{"group.group", "number"},
		ReferencedPaths(`let g = group.group; g.single_line != "" && number > 0`))
	assert.Equal(t, []string{"title"}, ReferencedPaths(`{"name": title}`))
}

func TestEvaluate(t *testing.T) {
	f := newFixture(t, nil)

	ok, err := f.entry.EvaluateBool(`title == "Home" && number > 3`)
	require.NoError(t, err)
	assert.True(t, ok)

	count, err := f.entry.Evaluate(`len(modular_blocks)`)
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	ok, err = f.entry.EvaluateBool(`let n = number; n > 3 && all(group.group.group, .number > 0)`)
	require.NoError(t, err)
	assert.True(t, ok)

	second, err := f.entry.Evaluate(`group.group.group[1].number`)
	require.NoError(t, err)
	assert.Equal(t, float64(2), second)

	// cached program sees the latest snapshot
	f.entry.current.Store(f.entry.current.Load().saved(map[string]interface{}{"title": "Other", "number": 1.0}, nil))
	ok, err = f.entry.EvaluateBool(`title == "Home" && number > 3`)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateErrors(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.entry.Evaluate(`subtitle == "x"`)
	assert.ErrorIs(t, err, extension.ErrFieldNotFound)

	_, err = f.entry.Evaluate(`title ==`)
	assert.ErrorContains(t, err, "compiling expression")

	_, err = f.entry.EvaluateBool(`title`)
	assert.ErrorContains(t, err, "did not evaluate to a boolean")

	init := loadInit(t)
	init.Entry = map[string]interface{}{}
	unsaved := newFixture(t, init)
	_, err = unsaved.entry.Evaluate(`title == "x"`)
	assert.ErrorIs(t, err, extension.ErrUnsavedEntry)
}
