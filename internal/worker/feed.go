package worker

import (
	"context"

	"github.com/minisocial/minisocial/internal/broker"
	"github.com/minisocial/minisocial/internal/event"
	"github.com/minisocial/minisocial/internal/feed"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

type feedProcessor struct {
	store  *feed.Store
	logger logpkg.Logger
}

// NewFeed builds the feed consumer: index every post-created event into the
// derived feed store, idempotently by envelope id.
func NewFeed(b broker.Broker, store *feed.Store, logger logpkg.Logger) *Runner {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	p := &feedProcessor{store: store, logger: logger.With(logpkg.Component("feed"))}
	return NewRunner(b, event.PostQueue, p.process, logger)
}

func (p *feedProcessor) process(_ context.Context, e *event.Envelope) error {
	if e.Kind != event.KindPostCreated {
		p.logger.Warn("unexpected kind on post queue, ignoring",
			logpkg.Str("kind", string(e.Kind)), logpkg.Str("envelope", e.ID))
		return nil
	}
	entry, created, err := p.store.IndexEnvelope(e)
	if err != nil {
		return err
	}
	if !created {
		p.logger.Debug("duplicate post event skipped", logpkg.Str("envelope", e.ID))
		return nil
	}
	p.logger.Info("post indexed",
		logpkg.Str("post", entry.PostID), logpkg.Str("author", entry.AuthorID))
	return nil
}
