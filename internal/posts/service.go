// Package posts is the write path that feeds the pipeline: it persists the
// business mutation first, then emits events best-effort. CRUD beyond the
// publishing call sites stays intentionally thin.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/minisocial/minisocial/internal/publisher"
	pebblestore "github.com/minisocial/minisocial/internal/store/pebble"
	"github.com/minisocial/minisocial/pkg/id"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// Post is a stored post.
type Post struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrNotFound is returned for unknown posts.
var ErrNotFound = errors.New("posts: not found")

// Service persists posts/likes and publishes pipeline events after each
// commit.
type Service struct {
	db     *pebblestore.DB
	pub    *publisher.Publisher
	gen    *id.Generator
	logger logpkg.Logger
}

// NewService builds a Service.
func NewService(db *pebblestore.DB, pub *publisher.Publisher, logger logpkg.Logger) *Service {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Service{
		db:     db,
		pub:    pub,
		gen:    id.NewGenerator(),
		logger: logger.With(logpkg.Component("posts")),
	}
}

func postKey(pid string) []byte { return []byte(fmt.Sprintf("post/%s", pid)) }

func likeKey(pid, uid string) []byte { return []byte(fmt.Sprintf("like/%s/%s", pid, uid)) }

// CreatePost stores the post, then emits POST_CREATED best-effort. The post
// is created even when the event is lost.
func (s *Service) CreatePost(ctx context.Context, authorID, content string) (*Post, error) {
	p := &Post{
		ID:        s.gen.Next().String(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if err := s.db.Set(postKey(p.ID), b); err != nil {
		return nil, err
	}

	if res := s.pub.PostCreated(ctx, authorID, p.ID, p); res.Err != nil {
		s.logger.Warn("post created but event lost",
			logpkg.Str("post", p.ID), logpkg.Err(res.Err))
	}
	return p, nil
}

// GetPost loads a post by id.
func (s *Service) GetPost(pid string) (*Post, error) {
	b, err := s.db.Get(postKey(pid))
	if err != nil {
		if errors.Is(err, pebblestore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var p Post
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ToggleLike likes or unlikes a post for userID. A new like on someone
// else's post emits exactly one POST_LIKED envelope; liking your own post
// emits none; unliking never emits.
func (s *Service) ToggleLike(ctx context.Context, userID, postID string) (liked bool, err error) {
	post, err := s.GetPost(postID)
	if err != nil {
		return false, err
	}

	lk := likeKey(postID, userID)
	exists, err := s.db.Has(lk)
	if err != nil {
		return false, err
	}
	if exists {
		if err := s.db.Delete(lk); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.db.Set(lk, []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
		return false, err
	}
	if res := s.pub.PostLiked(ctx, userID, post.AuthorID, postID); res.Err != nil {
		s.logger.Warn("like stored but event lost",
			logpkg.Str("post", postID), logpkg.Err(res.Err))
	}
	return true, nil
}

// CountLikes returns the number of likes on a post.
func (s *Service) CountLikes(postID string) (int, error) {
	return s.db.CountPrefix([]byte(fmt.Sprintf("like/%s/", postID)), nil)
}

// AddComment records a comment and notifies the post author.
func (s *Service) AddComment(ctx context.Context, userID, postID, content string) error {
	post, err := s.GetPost(postID)
	if err != nil {
		return err
	}
	cid := s.gen.Next().String()
	key := []byte(fmt.Sprintf("comment/%s/%s", postID, cid))
	b, err := json.Marshal(map[string]string{"id": cid, "userId": userID, "content": content})
	if err != nil {
		return err
	}
	if err := s.db.Set(key, b); err != nil {
		return err
	}
	if res := s.pub.PostCommented(ctx, userID, post.AuthorID, postID); res.Err != nil {
		s.logger.Warn("comment stored but event lost",
			logpkg.Str("post", postID), logpkg.Err(res.Err))
	}
	return nil
}
