package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/minisocial/minisocial/internal/notifications"
)

// NewNotifyMux builds the notification service surface. wsHandler serves the
// real-time upgrade endpoint; reads come from the derived store, so the
// surface stays up even while the broker connection is down.
func NewNotifyMux(store *notifications.Store, wsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.Handle("GET /ws", wsHandler)

	mux.HandleFunc("GET /api/notifications", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := identity(w, r)
		if !ok {
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		ns, err := store.ListByRecipient(uid, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "listing failed")
			return
		}
		if ns == nil {
			ns = []*notifications.Notification{}
		}
		writeJSON(w, http.StatusOK, ns)
	})

	mux.HandleFunc("GET /api/notifications/unread-count", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := identity(w, r)
		if !ok {
			return
		}
		n, err := store.CountUnread(uid)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "count failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": n})
	})

	mux.HandleFunc("POST /api/notifications/{id}/read", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := identity(w, r)
		if !ok {
			return
		}
		err := store.MarkRead(uid, r.PathValue("id"))
		if errors.Is(err, notifications.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "update failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST /api/notifications/read-all", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := identity(w, r)
		if !ok {
			return
		}
		if err := store.MarkAllRead(uid); err != nil {
			writeError(w, http.StatusInternalServerError, "update failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}
