package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	extension "github.com/effectus/extension-sdk"
)

// KafkaConfig holds configuration for the Kafka bridge
type KafkaConfig struct {
	Brokers []string `json:"brokers" yaml:"brokers" split_words:"true"`
	Topic   string   `json:"topic" yaml:"topic" split_words:"true"`
	GroupID string   `json:"group_id" yaml:"group_id" split_words:"true"`
}

type kafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaBridge relays host notifications from a Kafka topic and publishes
// events to the same topic, keyed by event name.
type KafkaBridge struct {
	reader  kafkaReader
	writer  kafkaWriter
	topic   string
	emitter extension.Emitter
	logger  *zap.Logger
}

// NewKafkaBridge creates a bridge that consumes as a member of GroupID
func NewKafkaBridge(config KafkaConfig, emitter extension.Emitter, logger *zap.Logger) (*KafkaBridge, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("kafka bridge requires brokers")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("kafka bridge requires a topic")
	}
	if config.GroupID == "" {
		config.GroupID = "entryctl"
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  config.Brokers,
		Topic:    config.Topic,
		GroupID:  config.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
		MaxWait:  time.Second,
	})
	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Topic:        config.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return newKafkaBridge(config.Topic, reader, writer, emitter, logger), nil
}

func newKafkaBridge(topic string, reader kafkaReader, writer kafkaWriter, emitter extension.Emitter, logger *zap.Logger) *KafkaBridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaBridge{
		reader:  reader,
		writer:  writer,
		topic:   topic,
		emitter: emitter,
		logger:  logger,
	}
}

// Run consumes the topic and emits every notification until ctx is done
func (b *KafkaBridge) Run(ctx context.Context) error {
	b.logger.Info("kafka bridge consuming", zap.String("topic", b.topic))
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading %s: %w", b.topic, err)
		}
		relay(ctx, b.emitter, b.logger, msg.Value)
	}
}

// Publish writes an event to the topic
func (b *KafkaBridge) Publish(ctx context.Context, name string, data map[string]interface{}) error {
	payload, err := encodeNotification(name, data)
	if err != nil {
		return err
	}
	if err := b.writer.WriteMessages(ctx, kafka.Message{Key: []byte(name), Value: payload}); err != nil {
		return fmt.Errorf("publishing %s: %w", name, err)
	}
	return nil
}

// Close closes the reader and the writer
func (b *KafkaBridge) Close() error {
	return errors.Join(b.reader.Close(), b.writer.Close())
}
