package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/minisocial/minisocial/internal/broker"
	"github.com/minisocial/minisocial/internal/event"
	"github.com/minisocial/minisocial/internal/feed"
	"github.com/minisocial/minisocial/internal/notifications"
	"github.com/minisocial/minisocial/internal/posts"
	"github.com/minisocial/minisocial/internal/publisher"
	pebblestore "github.com/minisocial/minisocial/internal/store/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), NoSync: true})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func doJSON(t *testing.T, method, url, userID string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestNotifyMux(t *testing.T) {
	store := notifications.NewStore(openTestDB(t))
	srv := httptest.NewServer(NewNotifyMux(store, http.NotFoundHandler()))
	defer srv.Close()

	for i := 0; i < 3; i++ {
		_, _, err := store.CreateFromEnvelope(&event.Envelope{
			Kind:        event.KindPostLiked,
			RecipientID: "9",
			SenderID:    "7",
			PostID:      fmt.Sprintf("p%d", i),
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/notifications", "9", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: want 200, got %d", resp.StatusCode)
	}
	var ns []*notifications.Notification
	decode(t, resp, &ns)
	if len(ns) != 3 {
		t.Fatalf("want 3 notifications, got %d", len(ns))
	}

	// Another identity sees nothing.
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/notifications", "7", nil)
	var other []*notifications.Notification
	decode(t, resp, &other)
	if len(other) != 0 {
		t.Fatalf("identity 7 must not see identity 9's records: %+v", other)
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/notifications/unread-count", "9", nil)
	var count map[string]int
	decode(t, resp, &count)
	if count["count"] != 3 {
		t.Fatalf("want 3 unread, got %d", count["count"])
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/notifications/"+ns[0].ID+"/read", "9", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("mark read: want 204, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/notifications/read-all", "9", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("read-all: want 204, got %d", resp.StatusCode)
	}
	if n, _ := store.CountUnread("9"); n != 0 {
		t.Fatalf("want 0 unread after read-all, got %d", n)
	}
}

func TestNotifyMuxRequiresIdentity(t *testing.T) {
	store := notifications.NewStore(openTestDB(t))
	srv := httptest.NewServer(NewNotifyMux(store, http.NotFoundHandler()))
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/notifications", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401 without identity header, got %d", resp.StatusCode)
	}
}

func TestNotifyHealthIndependentOfBroker(t *testing.T) {
	// No broker anywhere in the handler graph: liveness only says the
	// process serves HTTP.
	store := notifications.NewStore(openTestDB(t))
	srv := httptest.NewServer(NewNotifyMux(store, http.NotFoundHandler()))
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
}

func TestFeedMux(t *testing.T) {
	store := feed.NewStore(openTestDB(t))
	srv := httptest.NewServer(NewFeedMux(store))
	defer srv.Close()

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/feed", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}
	var entries []*feed.Entry
	decode(t, resp, &entries)
	if entries == nil || len(entries) != 0 {
		t.Fatalf("empty feed must serialize as [], got %v", entries)
	}

	if _, _, err := store.IndexEnvelope(&event.Envelope{
		ID:       "env-1",
		Kind:     event.KindPostCreated,
		SenderID: "7",
		PostID:   "42",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/feed", "", nil)
	decode(t, resp, &entries)
	if len(entries) != 1 || entries[0].PostID != "42" {
		t.Fatalf("feed mismatch: %+v", entries)
	}
}

func TestPostsMux(t *testing.T) {
	db := openTestDB(t)
	b := broker.NewMemory()
	pub := publisher.New(b, nil)
	svc := posts.NewService(db, pub, nil)
	srv := httptest.NewServer(NewPostsMux(svc))
	defer srv.Close()

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/posts", "7", map[string]string{"content": "hello"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: want 201, got %d", resp.StatusCode)
	}
	var p posts.Post
	decode(t, resp, &p)
	if p.AuthorID != "7" || p.Content != "hello" {
		t.Fatalf("post mismatch: %+v", p)
	}
	if b.Depth(event.PostQueue) != 1 {
		t.Fatalf("create must publish one post event")
	}

	// Self-like: toggles on but emits nothing.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/posts/"+p.ID+"/like", "7", nil)
	var liked map[string]bool
	decode(t, resp, &liked)
	if !liked["liked"] {
		t.Fatalf("want liked=true")
	}
	if b.Depth(event.NotificationQueue) != 0 {
		t.Fatalf("self-like must not emit a notification event")
	}

	// Like from another user notifies the author.
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/posts/"+p.ID+"/like", "9", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("like: want 200, got %d", resp.StatusCode)
	}
	if b.Depth(event.NotificationQueue) != 1 {
		t.Fatalf("foreign like must emit one notification event")
	}

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/posts/"+p.ID, "", nil)
	var got struct {
		Post  posts.Post `json:"post"`
		Likes int        `json:"likes"`
	}
	decode(t, resp, &got)
	if got.Likes != 2 {
		t.Fatalf("want 2 likes, got %d", got.Likes)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/posts/missing/like", "9", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("like missing post: want 404, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/posts/"+p.ID+"/comments", "9", map[string]string{"content": "nice"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("comment: want 201, got %d", resp.StatusCode)
	}
	if b.Depth(event.NotificationQueue) != 2 {
		t.Fatalf("comment must emit one notification event")
	}
}

func TestServerLifecycle(t *testing.T) {
	s := New(http.HandlerFunc(handleHealth), nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx, "127.0.0.1:0") }()

	// Wait for the listener, then hit it.
	deadline := time.After(2 * time.Second)
	for s.Addr() == "" {
		select {
		case <-deadline:
			t.Fatalf("listener never came up")
		case <-time.After(5 * time.Millisecond):
		}
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("shutdown should return nil, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
