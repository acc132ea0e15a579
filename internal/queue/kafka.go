package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"dining-concierge/internal/config"
	"dining-concierge/internal/model"
)

// KafkaConsumer consumes dining requests from Kafka with explicit offset
// commits. The consumer group session timeout plays the role of the
// visibility timeout: an uncommitted fetch is redelivered to the group once
// the session that fetched it expires.
type KafkaConsumer struct {
	reader *kafka.Reader
	dlq    *kafka.Writer
}

// NewKafkaConsumer creates a consumer bound to the request topic.
// segmentio/kafka-go: Reader with GroupID enables consumer group
// coordination; CommitInterval stays zero so commits are explicit.
func NewKafkaConsumer(cfg config.KafkaConfig) *KafkaConsumer {
	return &KafkaConsumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.BrokerList(),
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			MaxWait:        500 * time.Millisecond,
			SessionTimeout: cfg.SessionTimeout,
		}),
		dlq: &kafka.Writer{
			Addr:         kafka.TCP(cfg.BrokerList()...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Receive fetches at most one message, waiting up to wait.
func (c *KafkaConsumer) Receive(ctx context.Context, wait time.Duration) (*Message, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	// segmentio/kafka-go: FetchMessage returns a message without committing
	// its offset, so the caller decides when the work is done.
	km, err := c.reader.FetchMessage(fetchCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue receive: %w", err)
	}

	return &Message{Body: km.Value, km: km}, nil
}

// Ack commits the message offset. Kafka commits are idempotent: committing
// an offset at or below the group's current position changes nothing.
func (c *KafkaConsumer) Ack(ctx context.Context, msg *Message) error {
	if err := c.reader.CommitMessages(ctx, msg.km); err != nil {
		return fmt.Errorf("queue ack: %w", err)
	}
	return nil
}

// DeadLetter republishes the message to the DLQ topic with the rejection
// reason, then acks the original so it is never fetched again.
func (c *KafkaConsumer) DeadLetter(ctx context.Context, msg *Message, reason string) error {
	dead := kafka.Message{
		Key:   msg.km.Key,
		Value: msg.km.Value,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(reason)},
			{Key: "source-topic", Value: []byte(msg.km.Topic)},
		},
		Time: time.Now(),
	}
	if err := c.dlq.WriteMessages(ctx, dead); err != nil {
		return fmt.Errorf("queue dead-letter: %w", err)
	}
	return c.Ack(ctx, msg)
}

// Close releases the underlying reader and writer.
func (c *KafkaConsumer) Close() error {
	werr := c.dlq.Close()
	if err := c.reader.Close(); err != nil {
		return err
	}
	return werr
}

// KafkaProducer enqueues dining requests from the intent router.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a producer for the request topic.
func NewKafkaProducer(cfg config.KafkaConfig) *KafkaProducer {
	return &KafkaProducer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.BrokerList()...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Enqueue serializes the request and publishes it. The contact address is
// the partition key: requests from the same user stay ordered relative to
// each other, nothing more is guaranteed.
func (p *KafkaProducer) Enqueue(ctx context.Context, req model.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("queue enqueue: marshal: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(req.Email),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}

// Close releases the underlying writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
