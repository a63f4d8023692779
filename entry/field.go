package entry

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/pathutil"
	"github.com/effectus/extension-sdk/schema"
)

// Handle is a resolved field
type Handle interface {
	UID() string
	DataType() string
	Schema() schema.Node
	GetData() (interface{}, bool)
	SetData(ctx context.Context, value interface{}) error
}

// Resolution carries everything a FieldFactory needs to build a handle
type Resolution struct {
	// UID is the path string as the caller passed it
	UID      string
	Segments []pathutil.Segment
	Match    *schema.Match

	// Data is the resolved slice; Present is false when it is undefined
	Data    interface{}
	Present bool

	Conn   extension.Connection
	Logger *zap.Logger
}

// FieldFactory builds handles from resolutions
type FieldFactory func(res Resolution) Handle

// DefaultFieldFactory builds *Field handles
func DefaultFieldFactory(res Resolution) Handle {
	return NewField(res)
}

// Field is the standard handle. It keeps the data slice captured at
// resolution time and never observes later snapshots.
type Field struct {
	uid        string
	segments   []pathutil.Segment
	node       schema.Node
	data       interface{}
	present    bool
	definition bool
	instance   bool

	conn   extension.Connection
	logger *zap.Logger
}

// NewField creates a field handle from a resolution
func NewField(res Resolution) *Field {
	logger := res.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Field{
		uid:        res.UID,
		segments:   res.Segments,
		node:       res.Match.Node,
		data:       res.Data,
		present:    res.Present,
		definition: res.Match.Definition,
		instance:   res.Match.Instance(),
		conn:       res.Conn,
		logger:     logger,
	}
}

func (f *Field) UID() string { return f.uid }

// DataType is the resolved node's data_type; block types report "block".
func (f *Field) DataType() string { return f.node.DataType() }

func (f *Field) Schema() schema.Node { return f.node }

// Path returns a copy of the parsed segments
func (f *Field) Path() []pathutil.Segment {
	out := make([]pathutil.Segment, len(f.segments))
	copy(out, f.segments)
	return out
}

// GetData returns the data slice and whether it was present
func (f *Field) GetData() (interface{}, bool) {
	return f.data, f.present
}

// IsDefinition reports whether the handle addresses a schema definition
// rather than data: a block type by name, or anything below a definition.
func (f *Field) IsDefinition() bool { return f.definition }

// IsInstance reports whether the terminus was selected by index
func (f *Field) IsInstance() bool { return f.instance }

// Writable reports whether SetData may overwrite this field. Only leaves and
// single groups reached through data are writable; containers change shape
// through dedicated operations.
func (f *Field) Writable() bool {
	if f.definition {
		return false
	}
	switch n := f.node.(type) {
	case *schema.Field:
		return true
	case *schema.Group:
		return !n.Multiple
	case *schema.GlobalField:
		return !n.Multiple
	case *schema.Blocks, *schema.BlockType:
		return false
	default:
		return false
	}
}

// SetData asks the host to replace the field value. The returned error is
// the transport's; the host applies the write and reports it back through
// an entryChange notification.
func (f *Field) SetData(ctx context.Context, value interface{}) error {
	if !f.Writable() {
		return extension.NewPathError(f.uid, -1, extension.ErrUnsupportedWrite, "data_type "+f.DataType())
	}
	if f.conn == nil {
		return fmt.Errorf("setting data for %s: no connection", f.uid)
	}

	resp, err := f.conn.SendRequest(ctx, extension.ActionSetData, extension.SetDataPayload{UID: f.uid, Value: value})
	if err != nil {
		return fmt.Errorf("setting data for %s: %w", f.uid, err)
	}
	if resp != nil && resp.Error != "" {
		return fmt.Errorf("setting data for %s: host rejected write: %s", f.uid, resp.Error)
	}

	f.logger.Debug("field data sent", zap.String("uid", f.uid))
	return nil
}
