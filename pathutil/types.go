package pathutil

import (
	"strconv"
	"strings"
)

// Segment is one dot-separated token of a field path.
// Name always holds the raw token; Index is set when the token is a
// non-negative base-10 integer literal.
type Segment struct {
	Name  string
	Index *int
}

// NameSegment creates a name segment
func NameSegment(name string) Segment {
	return Segment{Name: name}
}

// IndexSegment creates an index segment
func IndexSegment(index int) Segment {
	return Segment{Name: strconv.Itoa(index), Index: &index}
}

// IsIndex returns true if the segment is an integer literal
func (s Segment) IsIndex() bool {
	return s.Index != nil
}

// GetIndex returns the index value if it exists
func (s Segment) GetIndex() (int, bool) {
	if s.Index != nil {
		return *s.Index, true
	}
	return 0, false
}

// String returns the raw token
func (s Segment) String() string {
	return s.Name
}

// JoinSegments renders segments back to the dotted form
func JoinSegments(segments []Segment) string {
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".")
}
