// Package worker runs the consumer side of the pipeline: one Runner per
// queue, each pairing a blocking subscription with a processing function and
// a uniform poison-message policy.
//
// The policy: a payload that cannot be decoded goes straight to the queue's
// dead-letter companion and is acked — redelivering it can never help. A
// processing failure is requeued once; if the same message fails again after
// redelivery it is dead-lettered too. Either way the queue keeps moving.
package worker

import (
	"context"

	"github.com/minisocial/minisocial/internal/broker"
	"github.com/minisocial/minisocial/internal/event"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// ProcessFunc handles one decoded envelope. A nil return acknowledges the
// message; an error marks it for redelivery (first failure) or the
// dead-letter queue (failure after redelivery).
type ProcessFunc func(ctx context.Context, e *event.Envelope) error

// Runner consumes one queue for the life of its context.
type Runner struct {
	broker  broker.Broker
	queue   string
	process ProcessFunc
	logger  logpkg.Logger
}

// NewRunner wires a queue to its processing function.
func NewRunner(b broker.Broker, queue string, process ProcessFunc, logger logpkg.Logger) *Runner {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Runner{
		broker:  b,
		queue:   queue,
		process: process,
		logger:  logger.With(logpkg.Component("worker"), logpkg.Str("queue", queue)),
	}
}

// Run blocks consuming the queue until ctx is cancelled. Reconnection is the
// broker client's job; Run returns only on shutdown or an unrecoverable
// subscription error.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("worker consuming")
	return r.broker.Consume(ctx, r.queue, r.handle)
}

func (r *Runner) handle(ctx context.Context, d *broker.Delivery) {
	e, err := event.Decode(d.Body)
	if err != nil {
		r.logger.Warn("malformed message dead-lettered", logpkg.Err(err))
		r.deadLetter(ctx, d)
		return
	}

	if err := r.process(ctx, e); err != nil {
		if !d.Redelivered {
			r.logger.Warn("processing failed, requeueing",
				logpkg.Str("envelope", e.ID), logpkg.Err(err))
			if nerr := d.Nack(true); nerr != nil {
				r.logger.Error("nack failed", logpkg.Err(nerr))
			}
			return
		}
		r.logger.Error("processing failed after redelivery, dead-lettering",
			logpkg.Str("envelope", e.ID), logpkg.Err(err))
		r.deadLetter(ctx, d)
		return
	}

	if err := d.Ack(); err != nil {
		r.logger.Error("ack failed", logpkg.Err(err))
	}
}

// deadLetter parks the raw body on the queue's dead-letter companion and
// acks the original. If even the dead-letter publish fails the message is
// acked anyway: dropping one poison message beats wedging the queue.
func (r *Runner) deadLetter(ctx context.Context, d *broker.Delivery) {
	dlq := event.DeadLetterQueue(r.queue)
	if err := r.broker.Publish(ctx, dlq, d.Body); err != nil {
		r.logger.Error("dead-letter publish failed, dropping message",
			logpkg.Str("dlq", dlq), logpkg.Err(err))
	}
	if err := d.Ack(); err != nil {
		r.logger.Error("ack failed", logpkg.Err(err))
	}
}
