package httpserver

import (
	"net/http"
	"strconv"

	"github.com/minisocial/minisocial/internal/feed"
)

// NewFeedMux builds the feed service surface: a read-only view over the
// derived feed index.
func NewFeedMux(store *feed.Store) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)

	mux.HandleFunc("GET /api/feed", func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := store.Recent(limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "listing failed")
			return
		}
		if entries == nil {
			entries = []*feed.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	})

	return mux
}
