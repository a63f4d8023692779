package events

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
	"github.com/effectus/extension-sdk/pathutil"
)

// RedisConfig holds configuration for the Redis bridge
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr" split_words:"true"`
	Password string `json:"password" yaml:"password" split_words:"true"`
	DB       int    `json:"db" yaml:"db" split_words:"true"`
	Channel  string `json:"channel" yaml:"channel" split_words:"true"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisBridge relays host notifications published on a Redis pub/sub
// channel onto an Emitter, and publishes events the other way.
type RedisBridge struct {
	client    *redis.Client
	publisher publisher
	channel   string
	emitter extension.Emitter
	logger  *zap.Logger
}

// NewRedisBridge creates a bridge. The client is created from config;
// Close releases it.
func NewRedisBridge(config RedisConfig, emitter extension.Emitter, logger *zap.Logger) (*RedisBridge, error) {
	if config.Addr == "" {
		config.Addr = "localhost:6379"
	}
	if config.Channel == "" {
		return nil, fmt.Errorf("redis bridge requires a channel")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return &RedisBridge{
		client:    client,
		publisher: client,
		channel:   config.Channel,
		emitter:   emitter,
		logger:    logger,
	}, nil
}

// Run subscribes to the channel and emits every notification until ctx is done
func (b *RedisBridge) Run(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	b.logger.Info("redis bridge subscribed", zap.String("channel", b.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			relay(ctx, b.emitter, b.logger, []byte(msg.Payload))
		}
	}
}

// Publish sends an event to the channel
func (b *RedisBridge) Publish(ctx context.Context, name string, data map[string]interface{}) error {
	payload, err := encodeNotification(name, data)
	if err != nil {
		return err
	}
	if err := b.publisher.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publishing %s: %w", name, err)
	}
	return nil
}

// Close closes the Redis client
func (b *RedisBridge) Close() error {
	return b.client.Close()
}

// DecodeNotification decodes a {"event": name, "data": {...}} notification
func DecodeNotification(payload string) (string, map[string]interface{}, error) {
	if !gjson.Valid(payload) {
		return "", nil, fmt.Errorf("invalid notification payload")
	}
	name := gjson.Get(payload, "event").String()
	if name == "" {
		return "", nil, fmt.Errorf("notification without event name")
	}

	data := gjson.Get(payload, "data")
	if !data.Exists() || data.Type == gjson.Null {
		return name, nil, nil
	}
	m, ok := pathutil.FromResult(data).(map[string]interface{})
	if !ok {
		return "", nil, fmt.Errorf("notification %s: data must be an object", name)
	}
	return name, m, nil
}
