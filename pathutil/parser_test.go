package pathutil

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	extension "github.com/effectus/extension-sdk"
)

func TestParsePath(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantNames   []string
		wantIndices []int // -1 means name segment
		wantErr     bool
	}{
		{
			name:        "single field",
			path:        "title",
			wantNames:   []string{"title"},
			wantIndices: []int{-1},
		},
		{
			name:        "nested group",
			path:        "group.group.group",
			wantNames:   []string{"group", "group", "group"},
			wantIndices: []int{-1, -1, -1},
		},
		{
			name:        "multiple group instance",
			path:        "group.group.group.0.single_line",
			wantNames:   []string{"group", "group", "group", "0", "single_line"},
			wantIndices: []int{-1, -1, -1, 0, -1},
		},
		{
			name:        "leading zeros are still an index",
			path:        "modular_blocks.007",
			wantNames:   []string{"modular_blocks", "007"},
			wantIndices: []int{-1, 7},
		},
		{
			name:        "negative numbers are names",
			path:        "blocks.-1",
			wantNames:   []string{"blocks", "-1"},
			wantIndices: []int{-1, -1},
		},
		{
			name:        "uid with dashes and spaces",
			path:        "hero-banner.alt text",
			wantNames:   []string{"hero-banner", "alt text"},
			wantIndices: []int{-1, -1},
		},
		{
			name:        "overflowing integer stays a name",
			path:        "items.99999999999999999999999",
			wantNames:   []string{"items", "99999999999999999999999"},
			wantIndices: []int{-1, -1},
		},
		{name: "empty path", path: "", wantErr: true},
		{name: "lone dot", path: ".", wantErr: true},
		{name: "leading dot", path: ".title", wantErr: true},
		{name: "trailing dot", path: "title.", wantErr: true},
		{name: "consecutive dots", path: "group..title", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments, err := ParsePath(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, extension.ErrMalformedPath), "got %v", err)
				var pathErr *extension.PathError
				require.True(t, errors.As(err, &pathErr))
				assert.Equal(t, tt.path, pathErr.Path)
				return
			}
			require.NoError(t, err)
			require.Len(t, segments, len(tt.wantNames))
			for i, seg := range segments {
				assert.Equal(t, tt.wantNames[i], seg.Name)
				idx, ok := seg.GetIndex()
				if tt.wantIndices[i] < 0 {
					assert.False(t, ok, "segment %d should be a name", i)
				} else {
					assert.True(t, ok, "segment %d should be an index", i)
					assert.Equal(t, tt.wantIndices[i], idx)
				}
			}
		})
	}
}

func TestJoinSegmentsRoundTrip(t *testing.T) {
	path := "modular_blocks.0.banner.banner_image"
	segments := MustParsePath(path)
	assert.Equal(t, path, JoinSegments(segments))
	assert.Equal(t, "a.3", JoinSegments([]Segment{NameSegment("a"), IndexSegment(3)}))
}

func TestValidatePath(t *testing.T) {
	assert.True(t, ValidatePath("a.b.0"))
	assert.False(t, ValidatePath("a..b"))
	assert.Panics(t, func() { MustParsePath("") })
}
