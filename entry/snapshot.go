package entry

import "github.com/effectus/extension-sdk/schema"

// snapshot is one immutable view of an entry. Updates build a new snapshot
// and swap it in; nothing mutates a published snapshot.
type snapshot struct {
	contentType *schema.ContentType
	data        map[string]interface{}

	// unsavedType is the schema carried by the latest change, if any
	unsavedType *schema.ContentType
	changed     map[string]interface{}

	locale string
}

func newSnapshot(init *InitData) *snapshot {
	s := &snapshot{
		contentType: init.ContentType,
		data:        init.Entry,
		locale:      init.Locale,
	}
	if init.Changed != nil {
		s.unsavedType = init.Changed.ContentType
		s.changed = init.Changed.Entry
	}
	return s
}

// saved returns a copy with new persisted data and, when ct is set, a new schema
func (s *snapshot) saved(data map[string]interface{}, ct *schema.ContentType) *snapshot {
	next := *s
	next.data = data
	if ct != nil {
		next.contentType = ct
	}
	if locale, ok := data["locale"].(string); ok && locale != "" {
		next.locale = locale
	}
	return &next
}

// changedTo returns a copy with new unsaved data and, when ct is set, a new unsaved schema
func (s *snapshot) changedTo(data map[string]interface{}, ct *schema.ContentType) *snapshot {
	next := *s
	next.changed = data
	if ct != nil {
		next.unsavedType = ct
	}
	return &next
}

// root selects the schema root
func (s *snapshot) root(unsaved bool) []schema.Node {
	if unsaved && s.unsavedType != nil {
		return s.unsavedType.Schema
	}
	return s.contentType.Schema
}
