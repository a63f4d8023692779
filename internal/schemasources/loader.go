package schemasources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/effectus/extension-sdk/adapters"
	_ "github.com/effectus/extension-sdk/adapters/files"
	_ "github.com/effectus/extension-sdk/adapters/git"
	_ "github.com/effectus/extension-sdk/adapters/redis"
	_ "github.com/effectus/extension-sdk/adapters/s3"
	_ "github.com/effectus/extension-sdk/adapters/sql"
	"github.com/effectus/extension-sdk/schema"
)

// LoadFromFile reads schema source configurations from a YAML/JSON file.
func LoadFromFile(path string) ([]adapters.SchemaSourceConfig, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema sources: %w", err)
	}
	sources, err := decodeSources(path, data)
	if err != nil {
		return nil, err
	}
	SetBaseDir(sources, filepath.Dir(path))
	return sources, nil
}

// SetBaseDir resolves relative paths of sources against dir
func SetBaseDir(sources []adapters.SchemaSourceConfig, dir string) {
	for i := range sources {
		if sources[i].BaseDir == "" {
			sources[i].BaseDir = dir
		}
	}
}

// Apply loads every definition of sources into the registry and returns
// how many documents were registered.
func Apply(ctx context.Context, registry *schema.Registry, sources []adapters.SchemaSourceConfig, logger *zap.Logger) (int, error) {
	if registry == nil || len(sources) == 0 {
		return 0, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	count := 0
	for idx, source := range sources {
		if strings.TrimSpace(source.Type) == "" {
			return count, fmt.Errorf("schema source %d has empty type", idx)
		}
		label := source.Name
		if label == "" {
			label = source.Type
		}
		logger.Info("loading schema source", zap.String("source", label))

		provider, err := adapters.CreateSchemaProvider(source)
		if err != nil {
			return count, fmt.Errorf("creating schema provider %s: %w", source.Type, err)
		}

		definitions, loadErr := provider.LoadSchemas(ctx)
		closeErr := provider.Close()
		if loadErr != nil {
			return count, fmt.Errorf("loading schemas from %s: %w", label, loadErr)
		}
		if closeErr != nil {
			return count, fmt.Errorf("closing schema provider %s: %w", label, closeErr)
		}

		for _, def := range definitions {
			if len(def.Data) == 0 {
				return count, fmt.Errorf("schema provider %s returned empty schema payload", label)
			}
			kind, uid, err := applyDefinition(registry, source, def)
			if err != nil {
				return count, fmt.Errorf("applying schema %s: %w", def.Name, err)
			}
			logger.Debug("registered schema",
				zap.String("uid", uid),
				zap.String("kind", kind),
				zap.String("origin", def.Source))
			count++
		}
	}
	return count, nil
}

func applyDefinition(registry *schema.Registry, source adapters.SchemaSourceConfig, def adapters.SchemaDefinition) (string, string, error) {
	ct, kind, err := parseDefinition(source, def)
	if err != nil {
		return "", "", err
	}
	if err := registry.Register(kind, ct); err != nil {
		return "", "", err
	}
	return kind, ct.UID, nil
}

// parseDefinition decodes def and settles its kind: the definition's own,
// then the source's, then the document envelope's.
func parseDefinition(source adapters.SchemaSourceConfig, def adapters.SchemaDefinition) (*schema.ContentType, string, error) {
	format := def.Format
	if format == "" {
		format = adapters.SchemaFormatAuto
	}
	ct, kind, err := schema.ParseDocument(def.Data, string(format))
	if err != nil {
		return nil, "", err
	}
	switch {
	case def.Kind != "":
		kind = def.Kind
	case source.Kind != "":
		kind = source.Kind
	}
	return ct, kind, nil
}

// Sync copies every document of sources into target, which must be a
// source type whose provider can store documents. Documents are keyed by
// their uid. It returns how many documents were stored.
func Sync(ctx context.Context, sources []adapters.SchemaSourceConfig, target adapters.SchemaSourceConfig, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dest, err := adapters.CreateSchemaProvider(target)
	if err != nil {
		return 0, fmt.Errorf("creating schema provider %s: %w", target.Type, err)
	}
	defer dest.Close()
	writer, ok := dest.(adapters.SchemaWriter)
	if !ok {
		return 0, fmt.Errorf("schema source type %s cannot store documents", target.Type)
	}

	count := 0
	for _, source := range sources {
		provider, err := adapters.CreateSchemaProvider(source)
		if err != nil {
			return count, fmt.Errorf("creating schema provider %s: %w", source.Type, err)
		}
		definitions, loadErr := provider.LoadSchemas(ctx)
		provider.Close()
		if loadErr != nil {
			return count, fmt.Errorf("loading schemas from %s: %w", source.Type, loadErr)
		}

		for _, def := range definitions {
			ct, kind, err := parseDefinition(source, def)
			if err != nil {
				return count, fmt.Errorf("parsing schema %s: %w", def.Name, err)
			}
			if ct.UID == "" {
				return count, fmt.Errorf("schema %s has no uid", def.Name)
			}
			stored := def
			stored.Name = ct.UID
			stored.Kind = kind
			if err := writer.PutSchema(ctx, stored); err != nil {
				return count, err
			}
			logger.Debug("stored schema", zap.String("uid", ct.UID), zap.String("kind", kind), zap.String("origin", def.Source))
			count++
		}
	}
	return count, nil
}

func decodeSources(path string, data []byte) ([]adapters.SchemaSourceConfig, error) {
	wrapper := struct {
		SchemaSources []adapters.SchemaSourceConfig `json:"schema_sources" yaml:"schema_sources"`
	}{}

	ext := strings.ToLower(filepath.Ext(path))
	var err error
	if ext == ".json" {
		err = json.Unmarshal(data, &wrapper)
	} else {
		err = yaml.Unmarshal(data, &wrapper)
	}
	if err == nil && len(wrapper.SchemaSources) > 0 {
		return wrapper.SchemaSources, nil
	}

	trimmed := strings.TrimSpace(string(data))
	isList := strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "-")
	if err == nil && !isList {
		return wrapper.SchemaSources, nil
	}

	var sources []adapters.SchemaSourceConfig
	if ext == ".json" {
		if err := json.Unmarshal(data, &sources); err != nil {
			return nil, fmt.Errorf("parsing schema sources: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &sources); err != nil {
			return nil, fmt.Errorf("parsing schema sources: %w", err)
		}
	}
	return sources, nil
}
