package events

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
)

// AMQPConfig holds configuration for the AMQP bridge. Notifications are
// consumed from Queue; events are published to Exchange with RoutingKey,
// which defaults to the queue name on the default exchange.
type AMQPConfig struct {
	URL        string `json:"url" yaml:"url" split_words:"true"`
	Queue      string `json:"queue" yaml:"queue" split_words:"true"`
	Exchange   string `json:"exchange" yaml:"exchange" split_words:"true"`
	RoutingKey string `json:"routing_key" yaml:"routing_key" split_words:"true"`
}

type amqpChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPBridge relays host notifications from a RabbitMQ queue
type AMQPBridge struct {
	config  AMQPConfig
	conn    *amqp.Connection
	channel amqpChannel
	emitter extension.Emitter
	logger  *zap.Logger
}

// NewAMQPBridge dials the broker and opens a channel
func NewAMQPBridge(config AMQPConfig, emitter extension.Emitter, logger *zap.Logger) (*AMQPBridge, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("amqp bridge requires a url")
	}
	if config.Queue == "" {
		return nil, fmt.Errorf("amqp bridge requires a queue")
	}

	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	b := newAMQPBridge(config, channel, emitter, logger)
	b.conn = conn
	return b, nil
}

func newAMQPBridge(config AMQPConfig, channel amqpChannel, emitter extension.Emitter, logger *zap.Logger) *AMQPBridge {
	if config.RoutingKey == "" && config.Exchange == "" {
		config.RoutingKey = config.Queue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPBridge{config: config, channel: channel, emitter: emitter, logger: logger}
}

// Run consumes the queue and emits every notification until ctx is done
func (b *AMQPBridge) Run(ctx context.Context) error {
	deliveries, err := b.channel.Consume(b.config.Queue, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consuming %s: %w", b.config.Queue, err)
	}
	b.logger.Info("amqp bridge consuming", zap.String("queue", b.config.Queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp deliveries closed")
			}
			relay(ctx, b.emitter, b.logger, d.Body)
		}
	}
}

// Publish sends an event to the configured exchange
func (b *AMQPBridge) Publish(ctx context.Context, name string, data map[string]interface{}) error {
	payload, err := encodeNotification(name, data)
	if err != nil {
		return err
	}
	err = b.channel.PublishWithContext(ctx, b.config.Exchange, b.config.RoutingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Type:        name,
		Body:        payload,
	})
	if err != nil {
		return fmt.Errorf("publishing %s: %w", name, err)
	}
	return nil
}

// Close closes the channel and the connection
func (b *AMQPBridge) Close() error {
	err := b.channel.Close()
	if b.conn != nil {
		err = errors.Join(err, b.conn.Close())
	}
	return err
}
