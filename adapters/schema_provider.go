// Package adapters holds the schema provider registry. Providers load
// content type and global field documents from external systems; the
// subpackages register themselves by type on import.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// SchemaFormat describes how to interpret a schema definition payload.
type SchemaFormat string

const (
	SchemaFormatAuto SchemaFormat = "auto"
	SchemaFormatJSON SchemaFormat = "json"
	SchemaFormatYAML SchemaFormat = "yaml"
)

// FormatFromPath guesses the payload format from a file or object name
func FormatFromPath(name string) SchemaFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return SchemaFormatJSON
	case ".yaml", ".yml":
		return SchemaFormatYAML
	default:
		return SchemaFormatAuto
	}
}

// SchemaDefinition represents a schema document returned by a provider.
// Kind is "content_type" or "global_field"; empty lets the document
// envelope decide.
type SchemaDefinition struct {
	Name   string       `json:"name" yaml:"name"`
	Kind   string       `json:"kind,omitempty" yaml:"kind,omitempty"`
	Format SchemaFormat `json:"format" yaml:"format"`
	Data   []byte       `json:"-" yaml:"-"`
	Source string       `json:"source,omitempty" yaml:"source,omitempty"`
}

// SchemaSourceConfig represents configuration for a schema source provider.
type SchemaSourceConfig struct {
	Name    string                 `json:"name" yaml:"name"`
	Type    string                 `json:"type" yaml:"type"`
	Kind    string                 `json:"kind,omitempty" yaml:"kind,omitempty"`
	Config  map[string]interface{} `json:"config" yaml:"config"`
	BaseDir string                 `json:"-" yaml:"-"`
}

// DecodeConfig decodes the provider-specific config map into v
func (c SchemaSourceConfig) DecodeConfig(v interface{}) error {
	raw, err := json.Marshal(c.Config)
	if err != nil {
		return fmt.Errorf("encoding %s config: %w", c.Type, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decoding %s config: %w", c.Type, err)
	}
	return nil
}

// SchemaProvider loads schema definitions from an external system.
type SchemaProvider interface {
	LoadSchemas(ctx context.Context) ([]SchemaDefinition, error)
	Close() error
}

// SchemaWriter is implemented by providers that can also store documents.
// Name is the document uid and Kind must be set.
type SchemaWriter interface {
	PutSchema(ctx context.Context, def SchemaDefinition) error
}

// SchemaProviderFactory constructs schema providers.
type SchemaProviderFactory interface {
	Create(config SchemaSourceConfig) (SchemaProvider, error)
	ValidateConfig(config SchemaSourceConfig) error
	GetConfigSchema() ConfigSchema
}

// ConfigSchema describes the configuration accepted by a provider type
type ConfigSchema struct {
	Properties map[string]ConfigProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// ConfigProperty describes a single configuration property
type ConfigProperty struct {
	Type        string      `json:"type"` // "string", "int", "bool", "array", "object"
	Description string      `json:"description"`
	Default     interface{} `json:"default,omitempty"`
}

// SchemaProviderTypeInfo provides information about a schema provider type.
type SchemaProviderTypeInfo struct {
	Type         string       `json:"type"`
	ConfigSchema ConfigSchema `json:"config_schema"`
}

// SchemaProviderRegistry manages available schema providers.
type SchemaProviderRegistry struct {
	factories map[string]SchemaProviderFactory
	mu        sync.RWMutex
}

// NewSchemaProviderRegistry creates a new registry.
func NewSchemaProviderRegistry() *SchemaProviderRegistry {
	return &SchemaProviderRegistry{
		factories: make(map[string]SchemaProviderFactory),
	}
}

func (r *SchemaProviderRegistry) RegisterSchemaProvider(providerType string, factory SchemaProviderFactory) error {
	if providerType == "" {
		return fmt.Errorf("schema provider type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("schema provider factory cannot be nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[providerType] = factory
	return nil
}

func (r *SchemaProviderRegistry) CreateProvider(config SchemaSourceConfig) (SchemaProvider, error) {
	r.mu.RLock()
	factory := r.factories[config.Type]
	r.mu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unknown schema provider type: %s", config.Type)
	}
	if err := factory.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config for %s: %w", config.Type, err)
	}
	return factory.Create(config)
}

// GetAvailableTypes returns the registered types, sorted
func (r *SchemaProviderRegistry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func (r *SchemaProviderRegistry) GetTypeInfo(providerType string) SchemaProviderTypeInfo {
	r.mu.RLock()
	factory := r.factories[providerType]
	r.mu.RUnlock()
	if factory == nil {
		return SchemaProviderTypeInfo{}
	}
	return SchemaProviderTypeInfo{
		Type:         providerType,
		ConfigSchema: factory.GetConfigSchema(),
	}
}

var defaultSchemaRegistry = NewSchemaProviderRegistry()

// RegisterSchemaProvider registers a schema provider type globally.
func RegisterSchemaProvider(providerType string, factory SchemaProviderFactory) error {
	return defaultSchemaRegistry.RegisterSchemaProvider(providerType, factory)
}

// CreateSchemaProvider creates a provider from configuration.
func CreateSchemaProvider(config SchemaSourceConfig) (SchemaProvider, error) {
	return defaultSchemaRegistry.CreateProvider(config)
}

// GetAvailableSchemaProviderTypes returns all registered schema provider types.
func GetAvailableSchemaProviderTypes() []string {
	return defaultSchemaRegistry.GetAvailableTypes()
}

// GetSchemaProviderTypeInfo describes a registered provider type.
func GetSchemaProviderTypeInfo(providerType string) SchemaProviderTypeInfo {
	return defaultSchemaRegistry.GetTypeInfo(providerType)
}

// ResolveSchemaPath resolves a path relative to the schema source config's base directory.
func ResolveSchemaPath(config SchemaSourceConfig, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) || config.BaseDir == "" {
		return path
	}
	return filepath.Join(config.BaseDir, path)
}
