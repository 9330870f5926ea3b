package worker

import (
	"context"

	"github.com/minisocial/minisocial/internal/broker"
	"github.com/minisocial/minisocial/internal/event"
	"github.com/minisocial/minisocial/internal/hub"
	"github.com/minisocial/minisocial/internal/notifications"
	logpkg "github.com/minisocial/minisocial/pkg/log"
)

// PushEvent is the real-time event name clients subscribe to.
const PushEvent = "new_notification"

type notifyProcessor struct {
	store  *notifications.Store
	hub    *hub.Hub
	logger logpkg.Logger
}

// NewNotify builds the notification consumer: persist first, then push to
// any live connections of the recipient.
func NewNotify(b broker.Broker, store *notifications.Store, h *hub.Hub, logger logpkg.Logger) *Runner {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	p := &notifyProcessor{store: store, hub: h, logger: logger.With(logpkg.Component("notify"))}
	return NewRunner(b, event.NotificationQueue, p.process, logger)
}

func (p *notifyProcessor) process(ctx context.Context, e *event.Envelope) error {
	// Producers already suppress self-notifications; a second check here
	// keeps a buggy or foreign producer from notifying users about their
	// own actions.
	if e.SenderID == e.RecipientID {
		p.logger.Debug("self-notification dropped", logpkg.Str("envelope", e.ID))
		return nil
	}

	n, created, err := p.store.CreateFromEnvelope(e)
	if err != nil {
		return err
	}
	if !created {
		p.logger.Debug("duplicate notification skipped", logpkg.Str("envelope", e.ID))
		return nil
	}

	p.logger.Info("notification stored",
		logpkg.Str("kind", string(e.Kind)),
		logpkg.Str("recipient", e.RecipientID))

	// Best effort: an offline recipient reads it from the store later.
	p.hub.Push(ctx, e.RecipientID, PushEvent, n)
	return nil
}
