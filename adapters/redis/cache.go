// Package redis caches the documents of another schema source in Redis so
// repeated loads skip the slower origin.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/effectus/extension-sdk/adapters"
)

// Config holds configuration of the cache
type Config struct {
	Addr     string                      `json:"addr" yaml:"addr"`
	Password string                      `json:"password" yaml:"password"`
	DB       int                         `json:"db" yaml:"db"`
	Key      string                      `json:"key" yaml:"key"` // defaults to one key per wrapped source
	TTL      string                      `json:"ttl" yaml:"ttl"`
	Source   adapters.SchemaSourceConfig `json:"source" yaml:"source"`
}

// store is the part of Redis the cache needs
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
	Close() error
}

type clientStore struct {
	client *redis.Client
}

func (s *clientStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (s *clientStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *clientStore) Del(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *clientStore) Close() error {
	return s.client.Close()
}

// cachedDefinition keeps Data, which SchemaDefinition leaves out of JSON
type cachedDefinition struct {
	Name   string                `json:"name"`
	Kind   string                `json:"kind,omitempty"`
	Format adapters.SchemaFormat `json:"format"`
	Data   []byte                `json:"data"`
	Source string                `json:"source,omitempty"`
}

// CachedProvider serves definitions from Redis, loading them from the
// wrapped provider on a miss. Redis failures fall back to the origin.
type CachedProvider struct {
	origin adapters.SchemaProvider
	store  store
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProvider wraps origin
func NewCachedProvider(origin adapters.SchemaProvider, config Config, logger *zap.Logger) (*CachedProvider, error) {
	if origin == nil {
		return nil, fmt.Errorf("cached provider requires an origin")
	}
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	provider, err := newCachedProvider(origin, &clientStore{client: client}, config, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return provider, nil
}

// defaultKey names the cache entry after the wrapped source
func defaultKey(source adapters.SchemaSourceConfig) string {
	key := "extension-sdk:schemas"
	if source.Type != "" {
		key += ":" + source.Type
	}
	if source.Name != "" {
		key += ":" + source.Name
	}
	return key
}

func newCachedProvider(origin adapters.SchemaProvider, store store, config Config, logger *zap.Logger) (*CachedProvider, error) {
	if config.Key == "" {
		config.Key = defaultKey(config.Source)
	}
	ttl := 5 * time.Minute
	if config.TTL != "" {
		parsed, err := time.ParseDuration(config.TTL)
		if err != nil {
			return nil, fmt.Errorf("invalid ttl: %w", err)
		}
		ttl = parsed
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProvider{origin: origin, store: store, key: config.Key, ttl: ttl, logger: logger}, nil
}

func (p *CachedProvider) LoadSchemas(ctx context.Context) ([]adapters.SchemaDefinition, error) {
	if defs, ok := p.cached(ctx); ok {
		return defs, nil
	}

	defs, err := p.origin.LoadSchemas(ctx)
	if err != nil {
		return nil, err
	}

	entries := make([]cachedDefinition, len(defs))
	for i, def := range defs {
		entries[i] = cachedDefinition{Name: def.Name, Kind: def.Kind, Format: def.Format, Data: def.Data, Source: def.Source}
	}
	payload, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("encoding schema cache: %w", err)
	}
	if err := p.store.Set(ctx, p.key, payload, p.ttl); err != nil {
		p.logger.Warn("schema cache write failed", zap.String("key", p.key), zap.Error(err))
	}
	return defs, nil
}

func (p *CachedProvider) cached(ctx context.Context) ([]adapters.SchemaDefinition, bool) {
	payload, err := p.store.Get(ctx, p.key)
	if err != nil {
		p.logger.Warn("schema cache read failed", zap.String("key", p.key), zap.Error(err))
		return nil, false
	}
	if payload == nil {
		return nil, false
	}

	var entries []cachedDefinition
	if err := json.Unmarshal(payload, &entries); err != nil {
		p.logger.Warn("dropping corrupt schema cache", zap.String("key", p.key), zap.Error(err))
		return nil, false
	}
	defs := make([]adapters.SchemaDefinition, len(entries))
	for i, e := range entries {
		defs[i] = adapters.SchemaDefinition{Name: e.Name, Kind: e.Kind, Format: e.Format, Data: e.Data, Source: e.Source}
	}
	p.logger.Debug("schema cache hit", zap.String("key", p.key), zap.Int("definitions", len(defs)))
	return defs, true
}

// Invalidate drops the cached definitions
func (p *CachedProvider) Invalidate(ctx context.Context) error {
	return p.store.Del(ctx, p.key)
}

// Close closes both the origin and the Redis client
func (p *CachedProvider) Close() error {
	originErr := p.origin.Close()
	if err := p.store.Close(); err != nil {
		return err
	}
	return originErr
}

// Factory creates cached providers around another configured source.
type Factory struct{}

func decodeConfig(config adapters.SchemaSourceConfig) (*Config, error) {
	var cfg Config
	if err := config.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Source.BaseDir == "" {
		cfg.Source.BaseDir = config.BaseDir
	}
	if cfg.Source.Name == "" {
		cfg.Source.Name = config.Name
	}
	return &cfg, nil
}

func (f *Factory) ValidateConfig(config adapters.SchemaSourceConfig) error {
	cfg, err := decodeConfig(config)
	if err != nil {
		return err
	}
	if cfg.Source.Type == "" {
		return fmt.Errorf("source.type is required")
	}
	if cfg.Source.Type == "redis" {
		return fmt.Errorf("redis cache cannot wrap another redis cache")
	}
	if cfg.TTL != "" {
		if _, err := time.ParseDuration(cfg.TTL); err != nil {
			return fmt.Errorf("invalid ttl: %w", err)
		}
	}
	return nil
}

func (f *Factory) Create(config adapters.SchemaSourceConfig) (adapters.SchemaProvider, error) {
	cfg, err := decodeConfig(config)
	if err != nil {
		return nil, err
	}
	origin, err := adapters.CreateSchemaProvider(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("creating cached source: %w", err)
	}
	provider, err := NewCachedProvider(origin, *cfg, nil)
	if err != nil {
		_ = origin.Close()
		return nil, err
	}
	return provider, nil
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"addr": {
				Type:    "string",
				Default: "localhost:6379",
			},
			"password": {
				Type: "string",
			},
			"db": {
				Type: "int",
			},
			"key": {
				Type:        "string",
				Description: "cache key",
				Default:     "extension-sdk:schemas:<source type>:<source name>",
			},
			"ttl": {
				Type:        "string",
				Description: "cache lifetime (e.g., 5m)",
				Default:     "5m",
			},
			"source": {
				Type:        "object",
				Description: "schema source to cache",
			},
		},
		Required: []string{"source"},
	}
}

func init() {
	_ = adapters.RegisterSchemaProvider("redis", &Factory{})
}
