package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []Message
	fail bool
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("broken pipe")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSender) events() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

func TestPushScopedToRoom(t *testing.T) {
	h := New(nil)
	s7 := &recordingSender{}
	s9 := &recordingSender{}
	h.Register("7", s7)
	h.Register("9", s9)

	h.Push(context.Background(), "9", "new_notification", "hello")

	if got := s9.events(); len(got) != 1 || got[0].Event != "new_notification" {
		t.Fatalf("recipient 9 missed the push: %+v", got)
	}
	if got := s7.events(); len(got) != 0 {
		t.Fatalf("push leaked into another identity's room: %+v", got)
	}
}

func TestPushReachesAllConnectionsOfRecipient(t *testing.T) {
	h := New(nil)
	a := &recordingSender{}
	b := &recordingSender{}
	h.Register("9", a)
	h.Register("9", b)

	h.Push(context.Background(), "9", "new_notification", 1)
	if len(a.events()) != 1 || len(b.events()) != 1 {
		t.Fatalf("all live connections in the room must receive the push")
	}
}

func TestPushToEmptyRoomIsNoOp(t *testing.T) {
	h := New(nil)
	// Must not panic or error; the durable store remains the source of truth.
	h.Push(context.Background(), "nobody", "new_notification", 1)
}

func TestPushOrderingPerRoom(t *testing.T) {
	h := New(nil)
	s := &recordingSender{}
	h.Register("9", s)

	const n = 50
	for i := 0; i < n; i++ {
		h.Push(context.Background(), "9", "new_notification", fmt.Sprintf("m%02d", i))
	}
	got := s.events()
	if len(got) != n {
		t.Fatalf("want %d pushes, got %d", n, len(got))
	}
	for i, m := range got {
		if m.Payload != fmt.Sprintf("m%02d", i) {
			t.Fatalf("push order violated at %d: %v", i, m.Payload)
		}
	}
}

func TestTeardownDropsEmptyRoom(t *testing.T) {
	h := New(nil)
	s := h.Register("9", &recordingSender{})
	if h.RoomSize("9") != 1 {
		t.Fatalf("room should have one member")
	}
	h.Teardown(s)
	if h.RoomSize("9") != 0 {
		t.Fatalf("room should be empty after teardown")
	}
	// Idempotent.
	h.Teardown(s)
}

func TestSendFailureIsImplicitDisconnect(t *testing.T) {
	h := New(nil)
	stale := &recordingSender{fail: true}
	live := &recordingSender{}
	h.Register("9", stale)
	h.Register("9", live)

	h.Push(context.Background(), "9", "new_notification", 1)
	if h.RoomSize("9") != 1 {
		t.Fatalf("stale connection should be torn down, room size %d", h.RoomSize("9"))
	}
	if len(live.events()) != 1 {
		t.Fatalf("live connection should still receive the push")
	}
}

func TestConcurrentMembershipDoesNotRace(t *testing.T) {
	h := New(nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%4)
			s := h.Register(user, &recordingSender{})
			h.Push(context.Background(), user, "e", i)
			h.Teardown(s)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 4; i++ {
		if n := h.RoomSize(fmt.Sprintf("u%d", i)); n != 0 {
			t.Fatalf("room u%d not empty: %d", i, n)
		}
	}
}
