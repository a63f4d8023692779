// Package schema models content type schemas and walks them along field paths
package schema

// Data types that carry structural meaning during navigation
const (
	TypeGroup       = "group"
	TypeGlobalField = "global_field"
	TypeBlocks      = "blocks"

	// TypeBlock is reported by block type definitions, which have no data_type of their own
	TypeBlock = "block"
)

// Node is a schema node. The implementations are *Field, *Group,
// *GlobalField, *Blocks and *BlockType; the set is closed.
type Node interface {
	// UID returns the node's uid, unique among its siblings
	UID() string

	// DataType returns the declared data_type
	DataType() string

	// Raw returns the node exactly as it was decoded
	Raw() map[string]interface{}

	node()
}

type base struct {
	uid      string
	dataType string
	raw      map[string]interface{}
}

func (b *base) UID() string                 { return b.uid }
func (b *base) DataType() string            { return b.dataType }
func (b *base) Raw() map[string]interface{} { return b.raw }
func (b *base) node()                       {}

// Field is a leaf node (text, number, boolean, isodate, link, file, reference, json, ...)
type Field struct {
	base

	// Multiple is informational; a multiple leaf is still written as a whole.
	Multiple bool
}

// Group is a nested object, repeatable when Multiple is set
type Group struct {
	base
	Multiple bool
	Schema   []Node
}

// GlobalField is group-shaped but its schema may live in a separately
// stored global field, keyed by ReferenceTo.
type GlobalField struct {
	base
	Multiple    bool
	ReferenceTo string

	// Schema is the inline schema when the host expanded it
	Schema []Node
}

// Blocks is a modular blocks container: a sequence of tagged instances,
// each tagged with one of Blocks' uids.
type Blocks struct {
	base
	Blocks []*BlockType
}

// BlockType is one block definition of a Blocks container
type BlockType struct {
	base
	Title       string
	ReferenceTo string
	Schema      []Node
}

// Block finds a block type by uid
func (b *Blocks) Block(uid string) (*BlockType, bool) {
	for _, block := range b.Blocks {
		if block.uid == uid {
			return block, true
		}
	}
	return nil, false
}

// Find returns the node with uid among nodes
func Find(nodes []Node, uid string) (Node, bool) {
	for _, n := range nodes {
		if n.UID() == uid {
			return n, true
		}
	}
	return nil, false
}
