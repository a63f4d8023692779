// Package config loads the entryctl configuration: a YAML or JSON file
// overlaid with ENTRYCTL_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/effectus/extension-sdk/adapters"
	"github.com/effectus/extension-sdk/events"
	"github.com/effectus/extension-sdk/internal/logging"
	"github.com/effectus/extension-sdk/internal/schemasources"
	transporthttp "github.com/effectus/extension-sdk/transport/http"
	"github.com/effectus/extension-sdk/transport/websocket"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ENTRYCTL"

// Transport kinds
const (
	TransportNone      = "none"
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Config holds all entryctl configuration.
type Config struct {
	Transport     TransportConfig               `yaml:"transport" json:"transport"`
	Events        EventsConfig                  `yaml:"events" json:"events"`
	SchemaSources []adapters.SchemaSourceConfig `yaml:"schema_sources" json:"schema_sources" ignored:"true"`
	Logging       logging.Config                `yaml:"logging" json:"logging"`
}

// TransportConfig selects how requests reach the host
type TransportConfig struct {
	Kind      string                     `yaml:"kind" json:"kind" split_words:"true"`
	HTTP      transporthttp.ClientConfig `yaml:"http" json:"http"`
	WebSocket websocket.Config           `yaml:"websocket" json:"websocket"`
}

// EventsConfig configures where host notifications come from. Each bridge
// runs when its channel, topic or queue is set, the webhook when it has an
// address.
type EventsConfig struct {
	Redis   events.RedisConfig          `yaml:"redis" json:"redis"`
	Kafka   events.KafkaConfig          `yaml:"kafka" json:"kafka"`
	AMQP    events.AMQPConfig           `yaml:"amqp" json:"amqp"`
	Webhook transporthttp.WebhookConfig `yaml:"webhook" json:"webhook"`
}

// RedisEnabled reports whether the Redis bridge is configured
func (e EventsConfig) RedisEnabled() bool {
	return e.Redis.Channel != ""
}

// KafkaEnabled reports whether the Kafka bridge is configured
func (e EventsConfig) KafkaEnabled() bool {
	return e.Kafka.Topic != ""
}

// AMQPEnabled reports whether the AMQP bridge is configured
func (e EventsConfig) AMQPEnabled() bool {
	return e.AMQP.Queue != ""
}

// WebhookEnabled reports whether the webhook is configured
func (e EventsConfig) WebhookEnabled() bool {
	return e.Webhook.ListenAddr != ""
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{Kind: TransportNone},
		Logging:   logging.DefaultConfig(),
	}
}

// Load reads path (when non-empty) over the defaults, then applies the
// environment. Schema source paths resolve relative to the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
		schemasources.SetBaseDir(cfg.SchemaSources, filepath.Dir(path))
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config json: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config yaml: %w", err)
		}
	}
	return nil
}

// Validate checks cross-field constraints
func (c *Config) Validate() error {
	switch c.Transport.Kind {
	case "", TransportNone:
	case TransportHTTP:
		if c.Transport.HTTP.BaseURL == "" {
			return fmt.Errorf("transport.http.base_url is required for the http transport")
		}
	case TransportWebSocket:
		if c.Transport.WebSocket.URL == "" {
			return fmt.Errorf("transport.websocket.url is required for the websocket transport")
		}
	default:
		return fmt.Errorf("transport.kind: unknown transport %q", c.Transport.Kind)
	}
	if c.Events.KafkaEnabled() && len(c.Events.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers is required when a topic is set")
	}
	if c.Events.AMQPEnabled() && c.Events.AMQP.URL == "" {
		return fmt.Errorf("events.amqp.url is required when a queue is set")
	}
	switch c.Events.Webhook.AuthMethod {
	case "", "none", "bearer_token", "api_key":
	default:
		return fmt.Errorf("events.webhook.auth_method: unknown method %q", c.Events.Webhook.AuthMethod)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}
