package entry

import (
	"strings"

	"github.com/effectus/extension-sdk/pathutil"
	"github.com/effectus/extension-sdk/schema"
)

// dataCursor replays navigator decisions against an entry's data tree
type dataCursor struct {
	root map[string]interface{}
}

// walk returns the data slice the steps lead to and whether it exists.
// A missing key leaves the rest of the walk undefined. A step into a value
// that is null or of the wrong shape fails; failed is the index of that
// step, -1 when the walk succeeded.
func (c dataCursor) walk(steps []schema.Step) (value interface{}, present bool, failed int) {
	value, present = c.root, c.root != nil

	for i, step := range steps {
		switch step.Kind {
		case schema.StepChild:
			if !present {
				continue
			}
			if pathutil.KindOf(value) != pathutil.KindMapping {
				return nil, false, i
			}
			value, present = pathutil.GetOwn(value, step.Segment.Name)

		case schema.StepInstance:
			if !present {
				return nil, false, i
			}
			index, _ := step.Segment.GetIndex()
			if value, present = pathutil.GetOwn(value, index); !present {
				return nil, false, i
			}

		case schema.StepBlockInstance:
			if !present {
				return nil, false, i
			}
			index, _ := step.Segment.GetIndex()
			instance, ok := pathutil.GetOwn(value, index)
			if !ok {
				return nil, false, i
			}
			if value, present = pathutil.GetOwn(instance, step.Node.UID()); !present {
				return nil, false, i
			}

		case schema.StepBlockDefinition, schema.StepDefinitionChild:
			value, present = nil, false
		}
	}
	return value, present, -1
}

// BlockUID reports the discriminant of the index-th instance of the blocks
// container reached by steps.
func (c dataCursor) BlockUID(steps []schema.Step, container *schema.Blocks, index int) (string, bool) {
	seq, present, failed := c.walk(steps)
	if failed >= 0 || !present {
		return "", false
	}
	instance, ok := pathutil.GetOwn(seq, index)
	if !ok {
		return "", false
	}
	return discriminant(instance)
}

// discriminant returns the single tag key of a block instance. Keys with a
// leading underscore carry metadata and never tag an instance.
func discriminant(instance interface{}) (string, bool) {
	m, ok := instance.(map[string]interface{})
	if !ok {
		doc, err := pathutil.NormalizeDocument(instance)
		if err != nil {
			return "", false
		}
		m = doc
	}

	tag := ""
	for key := range m {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if tag != "" {
			return "", false
		}
		tag = key
	}
	return tag, tag != ""
}
