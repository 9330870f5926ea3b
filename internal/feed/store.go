// Package feed owns the derived feed index built by the feed worker from
// post events.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/minisocial/minisocial/internal/event"
	pebblestore "github.com/minisocial/minisocial/internal/store/pebble"
	"github.com/minisocial/minisocial/pkg/id"
)

// Entry is one indexed post event.
type Entry struct {
	ID        string          `json:"id"`
	PostID    string          `json:"postId"`
	AuthorID  string          `json:"authorId"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store persists feed entries in the service-owned Pebble database.
// Keys: feed/<id>, id time-sortable so scans yield insertion order.
type Store struct {
	db  *pebblestore.DB
	gen *id.Generator
}

// NewStore builds a Store over db.
func NewStore(db *pebblestore.DB) *Store {
	return &Store{db: db, gen: id.NewGenerator()}
}

func entryKey(eid string) []byte { return []byte(fmt.Sprintf("feed/%s", eid)) }

var entryPrefix = []byte("feed/")

// IndexEnvelope derives a feed entry from a post event. Envelope IDs dedup
// redeliveries: an already indexed envelope is a no-op.
func (s *Store) IndexEnvelope(e *event.Envelope) (*Entry, bool, error) {
	if e.ID != "" {
		seen, err := s.db.Has(seenKey(e.ID))
		if err != nil {
			return nil, false, err
		}
		if seen {
			return nil, false, nil
		}
	}

	entry := &Entry{
		ID:        s.gen.Next().String(),
		PostID:    e.PostID,
		AuthorID:  e.SenderID,
		Payload:   e.Payload,
		CreatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(entry)
	if err != nil {
		return nil, false, err
	}
	if err := s.db.Set(entryKey(entry.ID), b); err != nil {
		return nil, false, err
	}
	if e.ID != "" {
		if err := s.db.Set(seenKey(e.ID), []byte(entry.ID)); err != nil {
			return nil, false, err
		}
	}
	return entry, true, nil
}

func seenKey(envelopeID string) []byte {
	return []byte(fmt.Sprintf("feedseen/%s", envelopeID))
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*Entry
	err := s.db.ScanPrefixReverse(entryPrefix, func(k, v []byte) bool {
		var e Entry
		if err := json.Unmarshal(v, &e); err == nil {
			out = append(out, &e)
		}
		return len(out) < limit
	})
	return out, err
}
