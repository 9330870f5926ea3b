package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/minisocial/minisocial/internal/posts"
)

type createPostReq struct {
	Content string `json:"content"`
}

type commentReq struct {
	Content string `json:"content"`
}

// NewPostsMux builds the post service surface: the write path that feeds
// the event pipeline.
func NewPostsMux(svc *posts.Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)

	mux.HandleFunc("POST /api/posts", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := identity(w, r)
		if !ok {
			return
		}
		var req createPostReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		p, err := svc.CreatePost(r.Context(), uid, req.Content)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "create failed")
			return
		}
		writeJSON(w, http.StatusCreated, p)
	})

	mux.HandleFunc("GET /api/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.GetPost(r.PathValue("id"))
		if errors.Is(err, posts.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		likes, err := svc.CountLikes(p.ID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"post": p, "likes": likes})
	})

	mux.HandleFunc("POST /api/posts/{id}/like", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := identity(w, r)
		if !ok {
			return
		}
		liked, err := svc.ToggleLike(r.Context(), uid, r.PathValue("id"))
		if errors.Is(err, posts.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "toggle failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"liked": liked})
	})

	mux.HandleFunc("POST /api/posts/{id}/comments", func(w http.ResponseWriter, r *http.Request) {
		uid, ok := identity(w, r)
		if !ok {
			return
		}
		var req commentReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}
		err := svc.AddComment(r.Context(), uid, r.PathValue("id"), req.Content)
		if errors.Is(err, posts.ErrNotFound) {
			writeError(w, http.StatusNotFound, "post not found")
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "comment failed")
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	return mux
}
