package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/sakif/social-backend/internal/events"
	"github.com/sakif/social-backend/internal/metrics"
	"github.com/sakif/social-backend/internal/model"
	"github.com/sakif/social-backend/internal/repository"
)

// defaultPublishTimeout bounds how long a request waits on the event bus.
const defaultPublishTimeout = 2 * time.Second

// Notifier is the single place notifications are emitted from. It stores
// the record, counts it and publishes an event.
//
// Emission is a side effect of a mutation that has already committed, so
// failures here are logged and never turned into a failed request.
type Notifier struct {
	repo      repository.NotificationRepository
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	publishTimeout time.Duration
}

// NewNotifier builds a Notifier. publisher and m may be nil.
func NewNotifier(repo repository.NotificationRepository, publisher events.Publisher, m *metrics.Metrics, logger *slog.Logger) *Notifier {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Notifier{
		repo:           repo,
		publisher:      publisher,
		metrics:        m,
		logger:         logger,
		publishTimeout: defaultPublishTimeout,
	}
}

// Notify records that from did kind to something of to's. Self-notifications
// are dropped.
func (n *Notifier) Notify(ctx context.Context, from, to string, kind model.NotificationType, postID, commentID string) {
	if from == to {
		return
	}

	rec := &model.Notification{
		From:      from,
		To:        to,
		Type:      kind,
		PostID:    postID,
		CommentID: commentID,
	}
	if err := n.repo.Create(ctx, rec); err != nil {
		n.logger.Error("failed to create notification",
			slog.String("type", string(kind)),
			slog.String("from", from),
			slog.String("to", to),
			slog.String("error", err.Error()),
		)
		return
	}
	n.metrics.NotificationCreated(string(kind))

	pubCtx, cancel := context.WithTimeout(ctx, n.publishTimeout)
	defer cancel()
	if err := n.publisher.PublishNotification(pubCtx, events.NewNotificationCreated(rec)); err != nil {
		n.metrics.EventPublishFailed()
		n.logger.Warn("failed to publish notification event",
			slog.String("notification_id", rec.ID),
			slog.String("error", err.Error()),
		)
	}
}
