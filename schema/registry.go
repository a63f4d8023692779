package schema

import (
	"fmt"
	"sort"
	"sync"
)

// GlobalFieldResolver looks up global field definitions by uid
type GlobalFieldResolver interface {
	GlobalField(uid string) (*ContentType, bool)
}

// Registry holds content types and global field definitions by uid
type Registry struct {
	mu           sync.RWMutex
	contentTypes map[string]*ContentType
	globalFields map[string]*ContentType
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		contentTypes: make(map[string]*ContentType),
		globalFields: make(map[string]*ContentType),
	}
}

// Register stores a document under its kind. A later registration with the
// same uid replaces the earlier one.
func (r *Registry) Register(kind string, ct *ContentType) error {
	if ct == nil || ct.UID == "" {
		return fmt.Errorf("cannot register %s without uid", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case KindContentType, "":
		r.contentTypes[ct.UID] = ct
	case KindGlobalField:
		r.globalFields[ct.UID] = ct
	default:
		return fmt.Errorf("unknown schema kind %q", kind)
	}
	return nil
}

// ContentType returns a registered content type
func (r *Registry) ContentType(uid string) (*ContentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ct, ok := r.contentTypes[uid]
	return ct, ok
}

// GlobalField returns a registered global field definition
func (r *Registry) GlobalField(uid string) (*ContentType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	gf, ok := r.globalFields[uid]
	return gf, ok
}

// ContentTypes lists registered content type uids in sorted order
func (r *Registry) ContentTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.contentTypes)
}

// GlobalFields lists registered global field uids in sorted order
func (r *Registry) GlobalFields() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.globalFields)
}

func sortedKeys(m map[string]*ContentType) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
