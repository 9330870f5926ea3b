// Package publisher is the producer side of the pipeline: write-path
// handlers call it after a state mutation commits. Publishing is best
// effort — a failed publish is logged as an operational event and never
// rolls back the business write.
package publisher

import (
	"context"
	"encoding/json"

	"github.com/minisocial/minisocial/internal/broker"
	"github.com/minisocial/minisocial/internal/event"
	"github.com/minisocial/minisocial/pkg/id"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// Publisher emits event envelopes to the named durable queues.
type Publisher struct {
	broker broker.Broker
	gen    *id.Generator
	logger logpkg.Logger
}

// New builds a Publisher over an injected broker client.
func New(b broker.Broker, logger logpkg.Logger) *Publisher {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Publisher{
		broker: b,
		gen:    id.NewGenerator(),
		logger: logger.With(logpkg.Component("publisher")),
	}
}

func (p *Publisher) publish(ctx context.Context, queue string, e *event.Envelope) event.PublishResult {
	e.ID = p.gen.Next().String()
	body, err := event.Encode(e)
	if err != nil {
		p.logger.Error("envelope rejected before publish",
			logpkg.Str("queue", queue), logpkg.Err(err))
		return event.PublishResult{Queue: queue, Err: err}
	}
	if err := p.broker.Publish(ctx, queue, body); err != nil {
		p.logger.Error("publish failed, event lost",
			logpkg.Str("queue", queue),
			logpkg.Str("kind", string(e.Kind)),
			logpkg.Err(err))
		return event.PublishResult{Queue: queue, EnvelopeID: e.ID, Err: err}
	}
	return event.PublishResult{Queue: queue, EnvelopeID: e.ID}
}

// notify emits a notification-kind envelope, suppressing self-notification:
// when sender and recipient are the same identity, nothing is published.
func (p *Publisher) notify(ctx context.Context, kind event.Kind, senderID, recipientID, postID string) event.PublishResult {
	if senderID == recipientID {
		return event.PublishResult{Queue: event.NotificationQueue, Suppressed: true}
	}
	return p.publish(ctx, event.NotificationQueue, &event.Envelope{
		Kind:        kind,
		RecipientID: recipientID,
		SenderID:    senderID,
		PostID:      postID,
	})
}

// PostCreated emits a POST_CREATED envelope to the post events queue.
func (p *Publisher) PostCreated(ctx context.Context, authorID, postID string, payload interface{}) event.PublishResult {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return event.PublishResult{Queue: event.PostQueue, Err: err}
		}
		raw = b
	}
	return p.publish(ctx, event.PostQueue, &event.Envelope{
		Kind:     event.KindPostCreated,
		SenderID: authorID,
		PostID:   postID,
		Payload:  raw,
	})
}

// PostLiked notifies the post author that senderID liked their post.
func (p *Publisher) PostLiked(ctx context.Context, senderID, authorID, postID string) event.PublishResult {
	return p.notify(ctx, event.KindPostLiked, senderID, authorID, postID)
}

// PostCommented notifies the post author that senderID commented.
func (p *Publisher) PostCommented(ctx context.Context, senderID, authorID, postID string) event.PublishResult {
	return p.notify(ctx, event.KindPostCommented, senderID, authorID, postID)
}

// UserFollowed notifies recipientID that senderID followed them.
func (p *Publisher) UserFollowed(ctx context.Context, senderID, recipientID string) event.PublishResult {
	return p.notify(ctx, event.KindUserFollowed, senderID, recipientID, "")
}
