package broker

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by Publish when no broker channel is available.
var ErrNotConnected = errors.New("broker: not connected")

// Delivery is a single message handed to a consumer. The handler must call
// Ack or Nack exactly once; an unacknowledged message is redelivered after
// the consumer disconnects.
type Delivery struct {
	Body        []byte
	Redelivered bool

	ack  func() error
	nack func(requeue bool) error
}

// Ack acknowledges the message, removing it from the queue.
func (d *Delivery) Ack() error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nack rejects the message. With requeue the broker redelivers it; without,
// the message is dropped by the broker (callers dead-letter first).
func (d *Delivery) Nack(requeue bool) error {
	if d.nack == nil {
		return nil
	}
	return d.nack(requeue)
}

// Handler processes one delivery. Deliveries arrive sequentially per
// consumer; the handler runs to completion before the next message.
type Handler func(ctx context.Context, d *Delivery)

// Broker is the durable-queue client contract. One instance is constructed
// at process startup and injected into every publish/consume call site.
type Broker interface {
	// Publish sends body to the named durable queue with a persistence flag.
	// Best effort: an error must not roll back the caller's business write.
	Publish(ctx context.Context, queue string, body []byte) error

	// Consume delivers messages from the named queue to handler, one at a
	// time, until ctx is cancelled. It blocks for the life of the
	// subscription and survives broker connection loss by reconnecting.
	Consume(ctx context.Context, queue string, handler Handler) error

	// Close releases the underlying connection.
	Close() error
}
