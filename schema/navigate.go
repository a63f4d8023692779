package schema

import (
	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/pathutil"
)

// StepKind is the meaning the navigator assigned to one path segment
type StepKind int

const (
	// StepChild enters a named child of the current node
	StepChild StepKind = iota

	// StepInstance selects an instance of a multiple group; the schema
	// position does not change
	StepInstance

	// StepBlockInstance selects the N-th instance of a blocks container;
	// its block type comes from the data
	StepBlockInstance

	// StepBlockDefinition names a block type directly. Data is detached from here on.
	StepBlockDefinition

	// StepDefinitionChild enters a named child below a definition
	StepDefinitionChild
)

func (k StepKind) String() string {
	switch k {
	case StepChild:
		return "child"
	case StepInstance:
		return "instance"
	case StepBlockInstance:
		return "block-instance"
	case StepBlockDefinition:
		return "block-definition"
	case StepDefinitionChild:
		return "definition-child"
	default:
		return "unknown"
	}
}

// Step records the decision taken for a single segment
type Step struct {
	Segment pathutil.Segment
	Kind    StepKind

	// Node is the node the step lands on
	Node Node
}

// Match is the result of a successful walk
type Match struct {
	Node  Node
	Steps []Step

	// Definition is set once any step detached the path from data
	Definition bool
}

// Instance reports whether the terminus was reached through an index
func (m *Match) Instance() bool {
	if len(m.Steps) == 0 {
		return false
	}
	last := m.Steps[len(m.Steps)-1].Kind
	return last == StepInstance || last == StepBlockInstance
}

// BlockLocator answers the one question the schema cannot: which block
// type the index-th instance of a blocks container holds. steps are the
// decisions made so far, ending at the container.
type BlockLocator interface {
	BlockUID(steps []Step, container *Blocks, index int) (string, bool)
}

// Navigator walks a schema along path segments
type Navigator struct {
	globals GlobalFieldResolver
}

// NewNavigator creates a navigator. globals may be nil when every global
// field carries its schema inline.
func NewNavigator(globals GlobalFieldResolver) *Navigator {
	return &Navigator{globals: globals}
}

// Resolve walks root along segments. path is only used in errors. locator
// may be nil, in which case block instances cannot be addressed by index.
func (n *Navigator) Resolve(root []Node, path string, segments []pathutil.Segment, locator BlockLocator) (*Match, error) {
	if len(segments) == 0 {
		return nil, extension.NewPathError(path, -1, extension.ErrMalformedPath, "no segments")
	}

	var (
		current  Node
		indexed  bool // current multiple node already selected an instance
		detached bool
		steps    = make([]Step, 0, len(segments))
	)

	notFound := func(i int, reason string) error {
		return extension.NewPathError(path, i, extension.ErrFieldNotFound, reason)
	}

	enter := func(seg pathutil.Segment, children []Node) (Step, bool) {
		if seg.IsIndex() {
			return Step{}, false
		}
		child, ok := Find(children, seg.Name)
		if !ok {
			return Step{}, false
		}
		kind := StepChild
		if detached {
			kind = StepDefinitionChild
		}
		return Step{Segment: seg, Kind: kind, Node: child}, true
	}

	for i, seg := range segments {
		var step Step

		switch node := current.(type) {
		case nil:
			s, ok := enter(seg, root)
			if !ok {
				return nil, notFound(i, "no top-level field with this uid")
			}
			step = s

		case *Field:
			return nil, notFound(i, "field "+node.UID()+" has no children")

		case *Group, *GlobalField:
			multiple, children := n.groupShape(node)
			if multiple && !indexed && seg.IsIndex() {
				if detached {
					return nil, notFound(i, "no instances below a definition")
				}
				step = Step{Segment: seg, Kind: StepInstance, Node: node}
				break
			}
			if seg.IsIndex() {
				return nil, notFound(i, "group "+node.UID()+" is not indexable here")
			}
			if multiple && !indexed {
				// a name right after a multiple group addresses its definition
				detached = true
			}
			s, ok := enter(seg, children)
			if !ok {
				return nil, notFound(i, "group "+node.UID()+" has no such child")
			}
			step = s

		case *Blocks:
			if index, ok := seg.GetIndex(); ok {
				if detached || locator == nil {
					return nil, notFound(i, "no instance data for blocks "+node.UID())
				}
				uid, ok := locator.BlockUID(steps, node, index)
				if !ok {
					return nil, notFound(i, "no block instance with a known block type")
				}
				block, ok := node.Block(uid)
				if !ok {
					return nil, notFound(i, "unknown block type "+uid)
				}
				step = Step{Segment: seg, Kind: StepBlockInstance, Node: block}
				break
			}
			block, ok := node.Block(seg.Name)
			if !ok {
				return nil, notFound(i, "blocks "+node.UID()+" has no block type with this uid")
			}
			detached = true
			step = Step{Segment: seg, Kind: StepBlockDefinition, Node: block}

		case *BlockType:
			s, ok := enter(seg, n.blockChildren(node))
			if !ok {
				return nil, notFound(i, "block "+node.UID()+" has no such child")
			}
			step = s
		}

		indexed = step.Kind == StepInstance
		current = step.Node
		steps = append(steps, step)
	}

	return &Match{Node: current, Steps: steps, Definition: detached}, nil
}

// Children returns the child schema used for navigation below node.
// Global fields and block types without an inline schema are resolved
// through their reference.
func (n *Navigator) Children(node Node) []Node {
	switch v := node.(type) {
	case *Group:
		return v.Schema
	case *GlobalField:
		_, children := n.groupShape(v)
		return children
	case *BlockType:
		return n.blockChildren(v)
	default:
		return nil
	}
}

func (n *Navigator) groupShape(node Node) (bool, []Node) {
	switch v := node.(type) {
	case *Group:
		return v.Multiple, v.Schema
	case *GlobalField:
		if len(v.Schema) > 0 || v.ReferenceTo == "" {
			return v.Multiple, v.Schema
		}
		return v.Multiple, n.referenced(v.ReferenceTo)
	default:
		return false, nil
	}
}

func (n *Navigator) blockChildren(block *BlockType) []Node {
	if len(block.Schema) > 0 || block.ReferenceTo == "" {
		return block.Schema
	}
	return n.referenced(block.ReferenceTo)
}

func (n *Navigator) referenced(uid string) []Node {
	if n.globals == nil {
		return nil
	}
	gf, ok := n.globals.GlobalField(uid)
	if !ok {
		return nil
	}
	return gf.Schema
}
