// Package hub is the real-time fan-out layer: a connection registry keyed
// by recipient identity (a room per user). The notify worker pushes into it
// after persisting; clients receive events without polling. Rooms are
// ephemeral and never persisted — the derived store remains the source of
// truth.
package hub

import (
	"context"
	"sync"

	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// Message is one event pushed to a live connection.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

// Sender delivers a message to a single live connection.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Session is one registered connection.
type Session struct {
	UserID string
	sender Sender
}

// Hub owns the room registry. All membership mutation and pushing is
// serialized by the mutex, so concurrent handshakes, disconnects, and
// pushes never race and pushes to one room keep their issue order.
type Hub struct {
	logger logpkg.Logger

	mu    sync.Mutex
	rooms map[string]map[*Session]struct{}
}

// New creates an empty Hub.
func New(logger logpkg.Logger) *Hub {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Hub{
		logger: logger.With(logpkg.Component("hub")),
		rooms:  make(map[string]map[*Session]struct{}),
	}
}

// Register adds a verified connection to its user's room. Callers must have
// verified the identity already (see Handshake).
func (h *Hub) Register(userID string, sender Sender) *Session {
	s := &Session{UserID: userID, sender: sender}
	h.mu.Lock()
	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[*Session]struct{})
		h.rooms[userID] = room
	}
	room[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("session joined", logpkg.Str("user", userID))
	return s
}

// Teardown removes a session from its room; empty rooms are dropped.
func (h *Hub) Teardown(s *Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	h.removeLocked(s)
	h.mu.Unlock()
	h.logger.Debug("session left", logpkg.Str("user", s.UserID))
}

func (h *Hub) removeLocked(s *Session) {
	room, ok := h.rooms[s.UserID]
	if !ok {
		return
	}
	delete(room, s)
	if len(room) == 0 {
		delete(h.rooms, s.UserID)
	}
}

// Push delivers payload to every live connection in recipientID's room.
// An empty room is a silent no-op; a send failure counts as an implicit
// disconnect and the session is torn down.
func (h *Hub) Push(ctx context.Context, recipientID, eventName string, payload interface{}) {
	msg := Message{Event: eventName, Payload: payload}

	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[recipientID]
	if !ok {
		return
	}
	var stale []*Session
	for s := range room {
		if err := s.sender.Send(ctx, msg); err != nil {
			stale = append(stale, s)
		}
	}
	for _, s := range stale {
		h.removeLocked(s)
		h.logger.Debug("stale session dropped", logpkg.Str("user", s.UserID))
	}
}

// RoomSize reports the number of live connections for userID.
func (h *Hub) RoomSize(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[userID])
}
