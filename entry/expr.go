package entry

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	exprast "github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/pathutil"
	"github.com/effectus/extension-sdk/schema"
)

// programCache keeps compiled expressions. Programs are compiled without an
// environment so they stay valid across snapshots.
type programCache struct {
	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func (c *programCache) get(expression string) (*vm.Program, error) {
	c.mu.RLock()
	program, ok := c.programs[expression]
	c.mu.RUnlock()
	if ok {
		return program, nil
	}

	program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("compiling expression: %w", err)
	}

	c.mu.Lock()
	if c.programs == nil {
		c.programs = make(map[string]*vm.Program)
	}
	c.programs[expression] = program
	c.mu.Unlock()
	return program, nil
}

// Evaluate runs an expr-lang expression against the persisted data, e.g.
// `title != "" && len(modular_blocks) > 2`. Every top-level name the
// expression reads must be a field of the content type.
func (e *Entry) Evaluate(expression string) (interface{}, error) {
	snap := e.current.Load()
	if pathutil.IsEmptyDocument(snap.data) {
		return nil, extension.NewPathError(expression, -1, extension.ErrUnsavedEntry, "")
	}

	for _, path := range ReferencedPaths(expression) {
		root, _, _ := strings.Cut(path, ".")
		if _, ok := schema.Find(snap.contentType.Schema, root); !ok {
			return nil, extension.NewPathError(path, 0, extension.ErrFieldNotFound, "referenced by expression")
		}
	}

	program, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}
	result, err := expr.Run(program, snap.data)
	if err != nil {
		return nil, fmt.Errorf("running expression: %w", err)
	}
	return result, nil
}

// EvaluateBool is Evaluate for conditions
func (e *Entry) EvaluateBool(expression string) (bool, error) {
	result, err := e.Evaluate(expression)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not evaluate to a boolean: %v", result)
	}
	return b, nil
}

// ReferencedPaths returns the dotted data paths an expression reads, sorted.
// Index access renders as a numeric segment: items[0].title is items.0.title.
func ReferencedPaths(expression string) []string {
	paths := make(map[string]struct{})
	if strings.TrimSpace(expression) == "" {
		return nil
	}

	tree, err := parser.Parse(expression)
	if err != nil {
		return nil
	}

	// names bound by let, counted so nested redeclarations unwind
	locals := make(map[string]int)

	var visit func(node exprast.Node, parent exprast.Node)
	visit = func(node exprast.Node, parent exprast.Node) {
		if node == nil {
			return
		}

		switch n := node.(type) {
		case *exprast.IdentifierNode:
			if _, isCall := parent.(*exprast.CallNode); isCall {
				return
			}
			if _, isMember := parent.(*exprast.MemberNode); isMember {
				return
			}
			if locals[n.Value] == 0 {
				paths[n.Value] = struct{}{}
			}
		case *exprast.MemberNode:
			if path, ok := memberPath(n); ok {
				root, _, _ := strings.Cut(path, ".")
				if locals[root] == 0 {
					paths[path] = struct{}{}
				}
			}
			visit(n.Node, n)
			visit(n.Property, n)
		case *exprast.UnaryNode:
			visit(n.Node, n)
		case *exprast.BinaryNode:
			visit(n.Left, n)
			visit(n.Right, n)
		case *exprast.ChainNode:
			visit(n.Node, n)
		case *exprast.SliceNode:
			visit(n.Node, n)
			visit(n.From, n)
			visit(n.To, n)
		case *exprast.CallNode:
			visit(n.Callee, n)
			for _, arg := range n.Arguments {
				visit(arg, n)
			}
		case *exprast.BuiltinNode:
			for _, arg := range n.Arguments {
				visit(arg, n)
			}
		case *exprast.ConditionalNode:
			visit(n.Cond, n)
			visit(n.Exp1, n)
			visit(n.Exp2, n)
		case *exprast.ArrayNode:
			for _, child := range n.Nodes {
				visit(child, n)
			}
		case *exprast.MapNode:
			for _, pair := range n.Pairs {
				visit(pair, n)
			}
		case *exprast.PairNode:
			visit(n.Value, n)
		case *exprast.PredicateNode:
			// members of # or .field read the element, not entry data
			visit(n.Node, n)
		case *exprast.VariableDeclaratorNode:
			visit(n.Value, n)
			locals[n.Name]++
			visit(n.Expr, n)
			locals[n.Name]--
		case *exprast.SequenceNode:
			for _, child := range n.Nodes {
				visit(child, n)
			}
		}
	}

	visit(tree.Node, nil)

	// drop prefixes of longer paths
	out := make([]string, 0, len(paths))
	for path := range paths {
		covered := false
		for other := range paths {
			if other != path && strings.HasPrefix(other, path+".") {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

func memberPath(node *exprast.MemberNode) (string, bool) {
	if node == nil {
		return "", false
	}
	base, ok := memberBase(node.Node)
	if !ok {
		return "", false
	}
	prop, ok := memberProperty(node.Property)
	if !ok {
		return "", false
	}
	return base + "." + prop, true
}

func memberBase(node exprast.Node) (string, bool) {
	switch n := node.(type) {
	case *exprast.IdentifierNode:
		return n.Value, true
	case *exprast.MemberNode:
		return memberPath(n)
	default:
		return "", false
	}
}

func memberProperty(node exprast.Node) (string, bool) {
	switch n := node.(type) {
	case *exprast.StringNode:
		return n.Value, true
	case *exprast.IdentifierNode:
		return n.Value, true
	case *exprast.IntegerNode:
		return strconv.Itoa(n.Value), true
	default:
		return "", false
	}
}
