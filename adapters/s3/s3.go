// Package s3 loads schema documents stored as objects in an S3 bucket.
package s3

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/effectus/extension-sdk/adapters"
)

// Config holds S3 schema source configuration.
type Config struct {
	Region         string `json:"region" yaml:"region"`
	Bucket         string `json:"bucket" yaml:"bucket"`
	Prefix         string `json:"prefix" yaml:"prefix"`
	MaxObjects     int    `json:"max_objects" yaml:"max_objects"`
	MaxObjectBytes int64  `json:"max_object_bytes" yaml:"max_object_bytes"`
	Endpoint       string `json:"endpoint" yaml:"endpoint"`
	ForcePathStyle bool   `json:"force_path_style" yaml:"force_path_style"`
	AccessKey      string `json:"access_key" yaml:"access_key"`
	SecretKey      string `json:"secret_key" yaml:"secret_key"`
	SessionToken   string `json:"session_token" yaml:"session_token"`
	Timeout        string `json:"timeout" yaml:"timeout"`

	timeout time.Duration
}

// objectAPI is the part of the S3 client the provider uses
type objectAPI interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Provider reads every .json/.yaml/.yml object under a prefix.
type Provider struct {
	config *Config
	client objectAPI
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.Bucket == "" {
		return fmt.Errorf("bucket is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}
	if config.MaxObjectBytes == 0 {
		config.MaxObjectBytes = 10 * 1024 * 1024 // 10MB
	}
	config.timeout = 30 * time.Second
	if config.Timeout != "" {
		timeout, err := time.ParseDuration(config.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		config.timeout = timeout
	}
	return nil
}

// NewProvider builds the S3 client from the default AWS config chain,
// overridden by static credentials and a custom endpoint when given.
func NewProvider(ctx context.Context, cfg *Config) (*Provider, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds := credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, cfg.SessionToken)
		opts = append(opts, config.WithCredentialsProvider(creds))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(options *s3.Options) {
		options.UsePathStyle = cfg.ForcePathStyle
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Provider{config: cfg, client: client}, nil
}

// LoadSchemas lists the prefix and fetches each schema object
func (p *Provider) LoadSchemas(ctx context.Context) ([]adapters.SchemaDefinition, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.timeout)
	defer cancel()

	objects, err := p.listObjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing s3://%s/%s: %w", p.config.Bucket, p.config.Prefix, err)
	}

	defs := make([]adapters.SchemaDefinition, 0, len(objects))
	for _, object := range objects {
		key := aws.ToString(object.Key)
		format := adapters.FormatFromPath(key)
		if key == "" || strings.HasSuffix(key, "/") || format == adapters.SchemaFormatAuto {
			continue
		}
		if object.Size != nil && *object.Size > p.config.MaxObjectBytes {
			return nil, fmt.Errorf("object %s exceeds max_object_bytes", key)
		}

		data, err := p.fetch(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("fetching s3://%s/%s: %w", p.config.Bucket, key, err)
		}
		defs = append(defs, adapters.SchemaDefinition{
			Name:   strings.TrimSuffix(path.Base(key), path.Ext(key)),
			Format: format,
			Data:   data,
			Source: "s3://" + p.config.Bucket + "/" + key,
		})
	}
	return defs, nil
}

func (p *Provider) Close() error {
	return nil
}

func (p *Provider) listObjects(ctx context.Context) ([]types.Object, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.config.Bucket),
	}
	if p.config.Prefix != "" {
		input.Prefix = aws.String(p.config.Prefix)
	}

	paginator := s3.NewListObjectsV2Paginator(p.client, input)
	var objects []types.Object

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		objects = append(objects, page.Contents...)
		if p.config.MaxObjects > 0 && len(objects) >= p.config.MaxObjects {
			objects = objects[:p.config.MaxObjects]
			break
		}
	}

	return objects, nil
}

func (p *Provider) fetch(ctx context.Context, key string) ([]byte, error) {
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return readAll(resp.Body, p.config.MaxObjectBytes)
}

func readAll(reader io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(reader)
	}
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("object exceeds max_object_bytes")
	}
	return data, nil
}

// Factory creates S3 schema providers.
type Factory struct{}

func (f *Factory) Create(config adapters.SchemaSourceConfig) (adapters.SchemaProvider, error) {
	var cfg Config
	if err := config.DecodeConfig(&cfg); err != nil {
		return nil, err
	}
	return NewProvider(context.Background(), &cfg)
}

func (f *Factory) ValidateConfig(config adapters.SchemaSourceConfig) error {
	var cfg Config
	if err := config.DecodeConfig(&cfg); err != nil {
		return err
	}
	return validateConfig(&cfg)
}

func (f *Factory) GetConfigSchema() adapters.ConfigSchema {
	return adapters.ConfigSchema{
		Properties: map[string]adapters.ConfigProperty{
			"region": {
				Type:        "string",
				Description: "AWS region (defaults to us-east-1)",
			},
			"bucket": {
				Type:        "string",
				Description: "S3 bucket name",
			},
			"prefix": {
				Type:        "string",
				Description: "Optional prefix filter",
			},
			"max_objects": {
				Type:        "int",
				Description: "Maximum objects listed",
			},
			"max_object_bytes": {
				Type:        "int",
				Description: "Maximum object size in bytes",
			},
			"endpoint": {
				Type:        "string",
				Description: "Custom S3 endpoint (for MinIO, R2, etc.)",
			},
			"force_path_style": {
				Type:        "bool",
				Description: "Force path-style addressing (S3-compatible services)",
			},
			"access_key": {
				Type:        "string",
				Description: "Static access key (optional)",
			},
			"secret_key": {
				Type:        "string",
				Description: "Static secret key (optional)",
			},
			"session_token": {
				Type:        "string",
				Description: "Session token for temporary credentials",
			},
			"timeout": {
				Type:        "string",
				Description: "Load timeout (e.g., 30s)",
				Default:     "30s",
			},
		},
		Required: []string{"bucket"},
	}
}

func init() {
	_ = adapters.RegisterSchemaProvider("s3", &Factory{})
}
