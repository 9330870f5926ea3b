// Package event defines the envelope carried through the broker and the
// queue-name contract shared by producers and consumers.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Queue names are a deployment-time contract: both sides must agree or
// messages pile up undelivered.
const (
	PostQueue         = "post_events"
	NotificationQueue = "notification_events"
)

// DeadLetterQueue returns the dead-letter queue name paired with queue.
func DeadLetterQueue(queue string) string { return queue + ".dlq" }

// Kind identifies what happened.
type Kind string

// Envelope kinds.
const (
	KindPostCreated   Kind = "POST_CREATED"
	KindPostLiked     Kind = "POST_LIKED"
	KindPostCommented Kind = "POST_COMMENTED"
	KindUserFollowed  Kind = "USER_FOLLOWED"
)

func (k Kind) valid() bool {
	switch k {
	case KindPostCreated, KindPostLiked, KindPostCommented, KindUserFollowed:
		return true
	}
	return false
}

// Envelope is the serialized event passed through the broker. Immutable once
// published; the producer does not persist it, consumers own the derived
// state.
type Envelope struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"type"`
	RecipientID string          `json:"recipientId"`
	SenderID    string          `json:"senderId"`
	PostID      string          `json:"postId,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// ErrInvalidEnvelope reports a structurally unusable envelope.
var ErrInvalidEnvelope = errors.New("invalid envelope")

// Validate checks the fields every consumer depends on. Notification kinds
// target a recipient; POST_CREATED fans out to the feed index and carries
// none.
func (e *Envelope) Validate() error {
	if !e.Kind.valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEnvelope, e.Kind)
	}
	if e.RecipientID == "" && e.Kind != KindPostCreated {
		return fmt.Errorf("%w: missing recipientId", ErrInvalidEnvelope)
	}
	if e.SenderID == "" {
		return fmt.Errorf("%w: missing senderId", ErrInvalidEnvelope)
	}
	return nil
}

// Encode serializes the envelope for the wire.
func Encode(e *Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

// Decode parses and validates a wire envelope.
func Decode(body []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// PublishResult is the explicit outcome of a best-effort publish. The
// triggering business operation succeeds either way; callers decide whether
// to log or ignore.
type PublishResult struct {
	Queue      string
	EnvelopeID string
	// Suppressed means the business rule elided the event (e.g. sender and
	// recipient are the same identity) and nothing was sent.
	Suppressed bool
	Err        error
}

// Published reports whether an envelope actually reached the broker.
func (r PublishResult) Published() bool { return !r.Suppressed && r.Err == nil }
