// Package queue is the request queue boundary between the dialog front end
// and the dispatch worker. Delivery is at-least-once: a received message
// stays logically owned by the consumer until it is acknowledged, and
// becomes receivable again if the consumer dies without acknowledging.
package queue

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"dining-concierge/internal/model"
)

// Message is one received unit of work. Body is the raw request payload;
// the embedded broker message carries the acknowledgment state.
type Message struct {
	Body []byte

	km kafka.Message
}

// Consumer is the worker-side queue contract.
type Consumer interface {
	// Receive waits up to wait for one message. A nil message with a nil
	// error means the queue was empty within the window.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)

	// Ack marks the message fully processed. Acking the same message twice
	// is a no-op, never an error.
	Ack(ctx context.Context, msg *Message) error

	// DeadLetter moves a poison message to the dead-letter topic and acks
	// it, so a permanently malformed payload is never retried forever.
	DeadLetter(ctx context.Context, msg *Message, reason string) error
}

// Producer is the router-side queue contract.
type Producer interface {
	Enqueue(ctx context.Context, req model.Request) error
}
