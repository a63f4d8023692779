// Package git loads schema documents from a commit of a git repository,
// either a local checkout or a shallow in-memory clone of a remote.
package git

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"

	"github.com/effectus/extension-sdk/adapters"
)

// Config holds configuration of a git schema source. Exactly one of URL
// and Path is set. Ref is a branch for remotes and any revision for
// local repositories; empty means HEAD.
type Config struct {
	URL         string   `json:"url" yaml:"url"`
	Path        string   `json:"path" yaml:"path"`
	Ref         string   `json:"ref" yaml:"ref"`
	Dir         string   `json:"dir" yaml:"dir"`
	Patterns    []string `json:"patterns" yaml:"patterns"`
	Username    string   `json:"username" yaml:"username"`
	Token       string   `json:"token" yaml:"token"`
	MaxFileSize int64    `json:"max_file_size" yaml:"max_file_size"`
}

// Provider reads matching files from the tree of one commit
type Provider struct {
	config Config
}

// NewProvider creates a git provider
func NewProvider(config Config) (*Provider, error) {
	if (config.URL == "") == (config.Path == "") {
		return nil, fmt.Errorf("exactly one of url and path is required")
	}
	if len(config.Patterns) == 0 {
		config.Patterns = []string{"*.json", "*.yaml", "*.yml"}
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 10 * 1024 * 1024
	}
	config.Dir = strings.Trim(config.Dir, "/")
	return &Provider{config: config}, nil
}

// LoadSchemas opens or clones the repository and reads the resolved commit
func (p *Provider) LoadSchemas(ctx context.Context) ([]adapters.SchemaDefinition, error) {
	repo, err := p.open(ctx)
	if err != nil {
		return nil, err
	}
	commit, err := p.commit(repo)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", commit.Hash, err)
	}
	if p.config.Dir != "" {
		tree, err = tree.Tree(p.config.Dir)
		if err != nil {
			return nil, fmt.Errorf("directory %s not found in %s: %w", p.config.Dir, commit.Hash, err)
		}
	}

	origin := p.config.URL
	if origin == "" {
		origin = p.config.Path
	}
	short := commit.Hash.String()[:7]

	var defs []adapters.SchemaDefinition
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.Matches(f.Name) {
			return nil
		}
		if f.Size > p.config.MaxFileSize {
			return fmt.Errorf("schema file %s exceeds %d bytes", f.Name, p.config.MaxFileSize)
		}
		contents, err := f.Contents()
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
		base := path.Base(f.Name)
		defs = append(defs, adapters.SchemaDefinition{
			Name:   strings.TrimSuffix(base, path.Ext(base)),
			Format: adapters.FormatFromPath(f.Name),
			Data:   []byte(contents),
			Source: fmt.Sprintf("%s@%s:%s", origin, short, path.Join(p.config.Dir, f.Name)),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Source < defs[j].Source })
	return defs, nil
}

func (p *Provider) Close() error {
	return nil
}

// Matches reports whether the base name of a tree path fits a pattern
func (p *Provider) Matches(name string) bool {
	base := path.Base(name)
	for _, pattern := range p.config.Patterns {
		if ok, _ := path.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

func (p *Provider) open(ctx context.Context) (*gogit.Repository, error) {
	if p.config.Path != "" {
		repo, err := gogit.PlainOpen(p.config.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open repository %s: %w", p.config.Path, err)
		}
		return repo, nil
	}

	opts := &gogit.CloneOptions{
		URL:          p.config.URL,
		SingleBranch: true,
		Depth:        1,
		Tags:         gogit.NoTags,
	}
	if p.config.Ref != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(p.config.Ref)
	}
	if p.config.Token != "" {
		username := p.config.Username
		if username == "" {
			username = "git"
		}
		opts.Auth = &githttp.BasicAuth{Username: username, Password: p.config.Token}
	}
	repo, err := gogit.CloneContext(ctx, memory.NewStorage(), nil, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to clone repository %s: %w", p.config.URL, err)
	}
	return repo, nil
}

func (p *Provider) commit(repo *gogit.Repository) (*object.Commit, error) {
	var hash plumbing.Hash
	if p.config.Path != "" && p.config.Ref != "" {
		resolved, err := repo.ResolveRevision(plumbing.Revision(p.config.Ref))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p.config.Ref, err)
		}
		hash = *resolved
	} else {
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("failed to get HEAD: %w", err)
		}
		hash = head.Hash()
	}
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	return commit, nil
}

// Factory creates git schema providers.
type Factory struct{}

func (f *Factory) ValidateConfig(config adapters.SchemaSourceConfig) error {
	var cfg Config
	if err := config.DecodeConfig(&cfg); err != nil {
		return err
	}
	if (cfg.URL == "") == (cfg.Path == "") {
		return fmt.Errorf("exactly one of url and path is required")
	}
	return nil
}

func (f *Factory) Create(config adapters.SchemaSourceConfig) (adapters.SchemaProvider, error) {
	var cfg Config
	if err := config.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	cfg.Path = adapters.ResolveSchemaPath(config, cfg.Path)
	return NewProvider(cfg)
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"url": {
				Type:        "string",
				Description: "remote repository, cloned shallowly into memory",
			},
			"path": {
				Type:        "string",
				Description: "local repository",
			},
			"ref": {
				Type:        "string",
				Description: "branch for remotes or revision for local repositories",
			},
			"dir": {
				Type:        "string",
				Description: "subdirectory holding schema documents",
			},
			"patterns": {
				Type:        "array",
				Description: "file name patterns",
				Default:     []string{"*.json", "*.yaml", "*.yml"},
			},
			"username": {
				Type:        "string",
				Description: "HTTP username used with token",
				Default:     "git",
			},
			"token": {
				Type:        "string",
				Description: "HTTP access token",
			},
			"max_file_size": {
				Type:        "int",
				Description: "largest accepted file in bytes",
				Default:     10 * 1024 * 1024,
			},
		},
	}
}

func init() {
	_ = adapters.RegisterSchemaProvider("git", &Factory{})
}
