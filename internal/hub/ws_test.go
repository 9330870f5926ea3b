package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/minisocial/minisocial/internal/auth"
)

func newWSServer(t *testing.T) (*Hub, *auth.Verifier, *httptest.Server) {
	t.Helper()
	h := New(nil)
	verifier := auth.NewVerifier([]byte("test-secret"))
	srv := httptest.NewServer(NewHandler(h, verifier, nil))
	t.Cleanup(srv.Close)
	return h, verifier, srv
}

func TestHandshakeRejectsMissingToken(t *testing.T) {
	_, _, srv := newWSServer(t)
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestHandshakeRejectsInvalidToken(t *testing.T) {
	_, _, srv := newWSServer(t)
	resp, err := http.Get(srv.URL + "?token=garbage")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestHandshakeRejectsExpiredToken(t *testing.T) {
	_, verifier, srv := newWSServer(t)
	token, err := verifier.GenerateToken("9", -time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	resp, err := http.Get(srv.URL + "?token=" + token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("want 401, got %d", resp.StatusCode)
	}
}

func TestHandshakeRegistersAndReceivesPush(t *testing.T) {
	h, verifier, srv := newWSServer(t)
	token, err := verifier.GenerateToken("9", time.Hour)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := strings.Replace(srv.URL, "http://", "ws://", 1) + "?token=" + token
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Wait for the server side to finish registration.
	deadline := time.After(2 * time.Second)
	for h.RoomSize("9") == 0 {
		select {
		case <-deadline:
			t.Fatalf("session never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	h.Push(ctx, "9", "new_notification", map[string]string{"postId": "42"})

	var msg Message
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != "new_notification" {
		t.Fatalf("unexpected event: %+v", msg)
	}
}
