package entry

import (
	"go.uber.org/zap"

	"github.com/effectus/extension-sdk/schema"
)

type fieldOptions struct {
	useUnsavedSchema bool
}

// FieldOption tunes a single GetField call
type FieldOption func(*fieldOptions)

// UseUnsavedSchema resolves against the schema of the latest unsaved change.
// Without a changed schema the persisted one is used. Data is always the
// persisted data.
func UseUnsavedSchema() FieldOption {
	return func(o *fieldOptions) {
		o.useUnsavedSchema = true
	}
}

// Option configures an Entry
type Option func(*Entry)

// WithFieldFactory replaces the handle constructor
func WithFieldFactory(factory FieldFactory) Option {
	return func(e *Entry) {
		if factory != nil {
			e.factory = factory
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Entry) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithGlobalFields resolves global fields and block types that only carry a reference_to
func WithGlobalFields(resolver schema.GlobalFieldResolver) Option {
	return func(e *Entry) {
		e.globals = resolver
	}
}
