// Package notifications owns the derived notification records produced by
// the notify worker. The read/unread flag is mutated only through this
// store's API, never by the pipeline itself.
package notifications

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/minisocial/minisocial/internal/event"
	pebblestore "github.com/minisocial/minisocial/internal/store/pebble"
	"github.com/minisocial/minisocial/pkg/id"
)

// Notification is a derived record created from exactly one envelope.
type Notification struct {
	ID          string     `json:"id"`
	RecipientID string     `json:"recipientId"`
	SenderID    string     `json:"senderId"`
	Kind        event.Kind `json:"type"`
	PostID      string     `json:"postId,omitempty"`
	IsRead      bool       `json:"isRead"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// ErrNotFound is returned when a notification does not exist.
var ErrNotFound = errors.New("notifications: not found")

// Store persists notifications in the service-owned Pebble database.
type Store struct {
	db  *pebblestore.DB
	gen *id.Generator
}

// NewStore builds a Store over db.
func NewStore(db *pebblestore.DB) *Store {
	return &Store{db: db, gen: id.NewGenerator()}
}

// CreateFromEnvelope persists a notification derived from e. The uniqueness
// key (recipient, sender, post, kind) dampens duplicate-delivery effects:
// a redelivered envelope that was already applied returns the existing
// record with created=false. Advisory, not exactly-once.
func (s *Store) CreateFromEnvelope(e *event.Envelope) (*Notification, bool, error) {
	dk := dedupKey(e.RecipientID, e.SenderID, e.PostID, string(e.Kind))
	if existing, err := s.db.Get(dk); err == nil {
		n, gerr := s.get(e.RecipientID, string(existing))
		if gerr == nil {
			return n, false, nil
		}
		// Dedup marker without a record: fall through and recreate.
	} else if !errors.Is(err, pebblestore.ErrNotFound) {
		return nil, false, err
	}

	n := &Notification{
		ID:          s.gen.Next().String(),
		RecipientID: e.RecipientID,
		SenderID:    e.SenderID,
		Kind:        e.Kind,
		PostID:      e.PostID,
		CreatedAt:   time.Now().UTC(),
	}
	b, err := json.Marshal(n)
	if err != nil {
		return nil, false, err
	}
	if err := s.db.Set(recordKey(n.RecipientID, n.ID), b); err != nil {
		return nil, false, err
	}
	if err := s.db.Set(dk, []byte(n.ID)); err != nil {
		return nil, false, err
	}
	return n, true, nil
}

func (s *Store) get(recipientID, nid string) (*Notification, error) {
	b, err := s.db.Get(recordKey(recipientID, nid))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var n Notification
	if err := json.Unmarshal(b, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByRecipient returns up to limit notifications for recipientID, newest
// first.
func (s *Store) ListByRecipient(recipientID string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*Notification
	err := s.db.ScanPrefixReverse(recordPrefix(recipientID), func(k, v []byte) bool {
		var n Notification
		if err := json.Unmarshal(v, &n); err == nil {
			out = append(out, &n)
		}
		return len(out) < limit
	})
	return out, err
}

// CountUnread returns the number of unread notifications for recipientID.
func (s *Store) CountUnread(recipientID string) (int, error) {
	return s.db.CountPrefix(recordPrefix(recipientID), func(k, v []byte) bool {
		var n Notification
		if err := json.Unmarshal(v, &n); err != nil {
			return false
		}
		return !n.IsRead
	})
}

// MarkRead flags a single notification as read.
func (s *Store) MarkRead(recipientID, nid string) error {
	n, err := s.get(recipientID, nid)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	n.IsRead = true
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.db.Set(recordKey(recipientID, nid), b)
}

// MarkAllRead flags every notification for recipientID as read.
func (s *Store) MarkAllRead(recipientID string) error {
	var ids []string
	err := s.db.ScanPrefix(recordPrefix(recipientID), func(k, v []byte) bool {
		var n Notification
		if err := json.Unmarshal(v, &n); err == nil && !n.IsRead {
			ids = append(ids, n.ID)
		}
		return true
	})
	if err != nil {
		return err
	}
	for _, nid := range ids {
		if err := s.MarkRead(recipientID, nid); err != nil {
			return err
		}
	}
	return nil
}
