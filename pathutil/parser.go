package pathutil

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	extension "github.com/effectus/extension-sdk"
)

// pathAST is the parsed form of a dotted field path
type pathAST struct {
	Segments []string `parser:"@Segment ( '.' @Segment )*"`
}

// Segments are anything between dots; uids cannot contain a dot.
var pathDefinition = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Dot", Pattern: `\.`},
	{Name: "Segment", Pattern: `[^.]+`},
})

var pathParser = participle.MustBuild[pathAST](
	participle.Lexer(pathDefinition),
)

// ParsePath splits a dotted path into segments.
// An empty path, a leading or trailing dot, or two consecutive dots
// fail with extension.ErrMalformedPath.
func ParsePath(path string) ([]Segment, error) {
	if path == "" {
		return nil, extension.NewPathError(path, -1, extension.ErrMalformedPath, "empty path")
	}

	ast, err := pathParser.ParseString("", path)
	if err != nil {
		return nil, extension.NewPathError(path, -1, extension.ErrMalformedPath, err.Error())
	}

	segments := make([]Segment, len(ast.Segments))
	for i, token := range ast.Segments {
		segments[i] = newSegment(token)
	}
	return segments, nil
}

// MustParsePath is like ParsePath but panics on error. Intended for literals.
func MustParsePath(path string) []Segment {
	segments, err := ParsePath(path)
	if err != nil {
		panic(fmt.Sprintf("pathutil: %v", err))
	}
	return segments
}

// ValidatePath checks if a path string is well formed
func ValidatePath(path string) bool {
	_, err := ParsePath(path)
	return err == nil
}

func newSegment(token string) Segment {
	if !isDigits(token) {
		return NameSegment(token)
	}
	index, err := strconv.Atoi(token)
	if err != nil {
		// Out of int range, cannot address anything as an index.
		return NameSegment(token)
	}
	return Segment{Name: token, Index: &index}
}

func isDigits(token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '9' {
			return false
		}
	}
	return true
}
