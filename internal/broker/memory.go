package broker

import (
	"context"
	"sync"
)

// Memory is an in-process Broker with the same delivery contract as the
// AMQP client: named FIFO queues, explicit acks, redelivery of unacked
// messages after consumer loss. It backs tests and the --broker=memory dev
// mode.
type Memory struct {
	mu     sync.Mutex
	queues map[string]*memQueue
}

type memQueue struct {
	msgs   []memMsg
	notify chan struct{}
}

type memMsg struct {
	body        []byte
	redelivered bool
}

// NewMemory creates an empty in-memory broker.
func NewMemory() *Memory {
	return &Memory{queues: make(map[string]*memQueue)}
}

func (m *Memory) queue(name string) *memQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[name]
	if !ok {
		q = &memQueue{notify: make(chan struct{}, 1)}
		m.queues[name] = q
	}
	return q
}

// Publish appends body to the named queue.
func (m *Memory) Publish(_ context.Context, queue string, body []byte) error {
	q := m.queue(queue)
	m.mu.Lock()
	q.msgs = append(q.msgs, memMsg{body: append([]byte(nil), body...)})
	m.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Depth reports how many messages are waiting in queue. Test helper.
func (m *Memory) Depth(queue string) int {
	q := m.queue(queue)
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(q.msgs)
}

func (m *Memory) pop(ctx context.Context, q *memQueue) (memMsg, bool) {
	for {
		m.mu.Lock()
		if len(q.msgs) > 0 {
			msg := q.msgs[0]
			q.msgs = q.msgs[1:]
			m.mu.Unlock()
			return msg, true
		}
		m.mu.Unlock()
		select {
		case <-ctx.Done():
			return memMsg{}, false
		case <-q.notify:
		}
	}
}

func (m *Memory) pushFront(q *memQueue, msg memMsg) {
	m.mu.Lock()
	q.msgs = append([]memMsg{msg}, q.msgs...)
	m.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Consume blocks, delivering messages one at a time in publish order. A
// message left unacknowledged when the handler returns is requeued at the
// head with the redelivered flag set, matching the broker's at-least-once
// contract.
func (m *Memory) Consume(ctx context.Context, queue string, handler Handler) error {
	q := m.queue(queue)
	for {
		msg, ok := m.pop(ctx, q)
		if !ok {
			return ctx.Err()
		}
		settled := false
		d := &Delivery{
			Body:        msg.body,
			Redelivered: msg.redelivered,
			ack: func() error {
				settled = true
				return nil
			},
			nack: func(requeue bool) error {
				settled = true
				if requeue {
					m.pushFront(q, memMsg{body: msg.body, redelivered: true})
				}
				return nil
			},
		}
		handler(ctx, d)
		if !settled {
			m.pushFront(q, memMsg{body: msg.body, redelivered: true})
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close implements Broker.
func (m *Memory) Close() error { return nil }
