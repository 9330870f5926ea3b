package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp091 "github.com/rabbitmq/amqp091-go"

	"github.com/minisocial/minisocial/internal/retry"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// Conn abstracts the subset of an AMQP connection the client uses, so tests
// can stand in a fake broker.
type Conn interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp091.Error) chan *amqp091.Error
	Close() error
}

// Channel abstracts the AMQP channel operations the client needs.
type Channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	Close() error
}

// Dialer opens a broker connection.
type Dialer func(url string) (Conn, error)

type amqpConn struct{ *amqp091.Connection }

func (c amqpConn) Channel() (Channel, error) { return c.Connection.Channel() }

// AMQPDial is the production Dialer.
func AMQPDial(url string) (Conn, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConn{conn}, nil
}

// AMQPOptions configures an AMQP client.
type AMQPOptions struct {
	URL string
	// Queues are declared durable at every (re)connect. Declaring on both
	// producer and consumer sides keeps startup order irrelevant.
	Queues []string
	// ConnectPolicy bounds the initial connection attempts. Defaults to
	// retry.Broker() (5 attempts, 5s fixed delay).
	ConnectPolicy retry.Policy
	// ReconnectDelay is the fixed wait between reconnect attempts after an
	// established connection is lost. Reconnects run indefinitely.
	ReconnectDelay time.Duration
	Dialer         Dialer
	Logger         logpkg.Logger
}

// AMQPClient is a durable-queue client over RabbitMQ. The connection and
// channel are owned by this instance; call sites receive the client by
// handle, never through globals.
type AMQPClient struct {
	opts   AMQPOptions
	logger logpkg.Logger

	mu     sync.Mutex
	conn   Conn
	ch     Channel
	closed chan *amqp091.Error
	done   bool
}

// NewAMQP builds a client. Connect must be called before use.
func NewAMQP(opts AMQPOptions) *AMQPClient {
	if opts.ConnectPolicy.MaxAttempts == 0 {
		opts.ConnectPolicy = retry.Broker()
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 5 * time.Second
	}
	if opts.Dialer == nil {
		opts.Dialer = AMQPDial
	}
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &AMQPClient{opts: opts, logger: logger.With(logpkg.Component("broker"))}
}

// Connect establishes the connection and declares the owned durable queues,
// retrying within the bounded connect policy. Exhaustion surfaces a fatal
// error: a worker with no broker connection must not silently run as a
// no-op.
func (c *AMQPClient) Connect(ctx context.Context) error {
	attempt := 0
	err := c.opts.ConnectPolicy.Do(ctx, func(ctx context.Context) error {
		attempt++
		if err := c.dial(); err != nil {
			c.logger.Warn("broker connection failed",
				logpkg.Str("url", c.opts.URL),
				logpkg.Int("attempt", attempt),
				logpkg.Err(err))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("broker: connect to %s: %w", c.opts.URL, err)
	}
	c.logger.Info("broker connected", logpkg.Str("url", c.opts.URL))
	return nil
}

// dial opens a fresh connection+channel and declares the owned queues.
func (c *AMQPClient) dial() error {
	conn, err := c.opts.Dialer(c.opts.URL)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	for _, q := range c.opts.Queues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			_ = conn.Close()
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.ch = ch
	c.closed = conn.NotifyClose(make(chan *amqp091.Error, 1))
	c.mu.Unlock()
	return nil
}

// reconnect re-runs the full connect+declare sequence after a fixed delay,
// indefinitely, until ctx is cancelled. Self-healing, not graceful
// degradation.
func (c *AMQPClient) reconnect(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ReconnectDelay):
		}
		if err := c.dial(); err != nil {
			c.logger.Warn("broker reconnect failed", logpkg.Err(err))
			continue
		}
		c.logger.Info("broker reconnected", logpkg.Str("url", c.opts.URL))
		return nil
	}
}

// Publish sends body to queue as a persistent message so it survives a
// broker restart.
func (c *AMQPClient) Publish(ctx context.Context, queue string, body []byte) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()
	if ch == nil {
		return ErrNotConnected
	}
	return ch.PublishWithContext(ctx, "", queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Body:         body,
	})
}

// Consume blocks, delivering messages from queue to handler one at a time
// (prefetch 1, manual ack). When the connection drops the receive loop
// detects the close, reconnects, and resubscribes.
func (c *AMQPClient) Consume(ctx context.Context, queue string, handler Handler) error {
	for {
		deliveries, closed, err := c.subscribe(queue)
		if err != nil {
			c.logger.Warn("subscribe failed", logpkg.Str("queue", queue), logpkg.Err(err))
			if rerr := c.reconnect(ctx); rerr != nil {
				return rerr
			}
			continue
		}
		c.logger.Info("consuming", logpkg.Str("queue", queue))

		if err := c.receiveLoop(ctx, deliveries, closed, handler); err != nil {
			return err
		}
		// Connection lost: heal and resubscribe.
		c.logger.Warn("broker connection lost, reconnecting", logpkg.Str("queue", queue))
		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}
}

// receiveLoop pulls one message at a time until the stream breaks (returns
// nil) or ctx is cancelled (returns the context error).
func (c *AMQPClient) receiveLoop(ctx context.Context, deliveries <-chan amqp091.Delivery, closed <-chan *amqp091.Error, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-closed:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			msg := d
			handler(ctx, &Delivery{
				Body:        msg.Body,
				Redelivered: msg.Redelivered,
				ack:         func() error { return msg.Ack(false) },
				nack:        func(requeue bool) error { return msg.Nack(false, requeue) },
			})
		}
	}
}

func (c *AMQPClient) subscribe(queue string) (<-chan amqp091.Delivery, <-chan *amqp091.Error, error) {
	c.mu.Lock()
	ch := c.ch
	closed := c.closed
	c.mu.Unlock()
	if ch == nil {
		return nil, nil, ErrNotConnected
	}
	// Prefetch of one: fully sequential processing per consumer.
	if err := ch.Qos(1, 0, false); err != nil {
		return nil, nil, err
	}
	// A unique tag per subscription keeps resubscribes after reconnect
	// distinguishable on the broker side.
	tag := queue + "-" + uuid.NewString()
	deliveries, err := ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, nil, err
	}
	return deliveries, closed, nil
}

// Close shuts the connection down.
func (c *AMQPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = true
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.ch = nil
	return err
}
