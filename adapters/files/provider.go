// Package files loads schema documents from directories of JSON and YAML
// files and watches them for changes.
package files

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/effectus/extension-sdk/adapters"
)

// Config holds configuration of a file schema source
type Config struct {
	Paths       []string `json:"paths" yaml:"paths"`
	Patterns    []string `json:"patterns" yaml:"patterns"`
	Recursive   bool     `json:"recursive" yaml:"recursive"`
	MaxFileSize int64    `json:"max_file_size" yaml:"max_file_size"`
}

// Provider reads every matching file under its paths
type Provider struct {
	config Config
}

// NewProvider creates a file provider; paths may name files or directories
func NewProvider(config Config) (*Provider, error) {
	if len(config.Paths) == 0 {
		return nil, fmt.Errorf("at least one path is required")
	}
	if len(config.Patterns) == 0 {
		config.Patterns = []string{"*.json", "*.yaml", "*.yml"}
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 10 * 1024 * 1024 // 10MB default
	}
	for _, path := range config.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("path does not exist: %s", path)
		}
	}
	return &Provider{config: config}, nil
}

// LoadSchemas reads the files in lexical order
func (p *Provider) LoadSchemas(ctx context.Context) ([]adapters.SchemaDefinition, error) {
	files, err := p.files()
	if err != nil {
		return nil, err
	}

	defs := make([]adapters.SchemaDefinition, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := os.Stat(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		if info.Size() > p.config.MaxFileSize {
			return nil, fmt.Errorf("schema file %s exceeds %d bytes", file, p.config.MaxFileSize)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
		defs = append(defs, adapters.SchemaDefinition{
			Name:   strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
			Format: adapters.FormatFromPath(file),
			Data:   data,
			Source: file,
		})
	}
	return defs, nil
}

func (p *Provider) Close() error {
	return nil
}

// Matches reports whether name fits one of the configured patterns
func (p *Provider) Matches(name string) bool {
	return matchesAny(p.config.Patterns, name)
}

func (p *Provider) files() ([]string, error) {
	var out []string
	for _, root := range p.config.Paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("path %s is not accessible: %w", root, err)
		}
		if !info.IsDir() {
			out = append(out, root)
			continue
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && !p.config.Recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if p.Matches(d.Name()) {
				out = append(out, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	sort.Strings(out)
	return out, nil
}

func matchesAny(patterns []string, name string) bool {
	base := filepath.Base(name)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Factory creates file schema providers.
type Factory struct{}

func (f *Factory) ValidateConfig(config adapters.SchemaSourceConfig) error {
	var cfg Config
	if err := config.DecodeConfig(&cfg); err != nil {
		return err
	}
	if len(cfg.Paths) == 0 {
		return fmt.Errorf("paths is required")
	}
	return nil
}

func (f *Factory) Create(config adapters.SchemaSourceConfig) (adapters.SchemaProvider, error) {
	var cfg Config
	if err := config.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	for i, path := range cfg.Paths {
		cfg.Paths[i] = adapters.ResolveSchemaPath(config, path)
	}
	return NewProvider(cfg)
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"paths": {
				Type:        "array",
				Description: "files or directories holding schema documents",
			},
			"patterns": {
				Type:        "array",
				Description: "file name patterns",
				Default:     []string{"*.json", "*.yaml", "*.yml"},
			},
			"recursive": {
				Type:        "bool",
				Description: "descend into subdirectories",
				Default:     false,
			},
			"max_file_size": {
				Type:        "int",
				Description: "largest accepted file in bytes",
				Default:     10 * 1024 * 1024,
			},
		},
		Required: []string{"paths"},
	}
}

func init() {
	_ = adapters.RegisterSchemaProvider("file", &Factory{})
}
