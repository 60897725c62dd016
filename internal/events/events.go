// Package events publishes domain events to the message bus so other
// services (push, e-mail digests) can react to notifications without
// polling the database.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	kafka "github.com/segmentio/kafka-go"

	"github.com/sakif/social-backend/internal/model"
)

// NotificationCreated is emitted after a notification is stored.
type NotificationCreated struct {
	EventID        string    `json:"eventId"`
	NotificationID string    `json:"notificationId"`
	Type           string    `json:"type"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	PostID         string    `json:"postId,omitempty"`
	CommentID      string    `json:"commentId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// NewNotificationCreated builds the event for a stored notification.
func NewNotificationCreated(n *model.Notification) NotificationCreated {
	return NotificationCreated{
		EventID:        uuid.NewString(),
		NotificationID: n.ID,
		Type:           string(n.Type),
		From:           n.From,
		To:             n.To,
		PostID:         n.PostID,
		CommentID:      n.CommentID,
		OccurredAt:     n.CreatedAt,
	}
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	PublishNotification(ctx context.Context, e NotificationCreated) error
	Close() error
}

// Noop discards every event. Used when no brokers are configured.
type Noop struct{}

func (Noop) PublishNotification(context.Context, NotificationCreated) error { return nil }
func (Noop) Close() error                                                   { return nil }

// messageWriter is the subset of *kafka.Writer we use.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes JSON events to a single topic, keyed by recipient so
// one user's notifications stay ordered within a partition.
type KafkaPublisher struct {
	w messageWriter
}

var _ Publisher = (*KafkaPublisher)(nil)

// FailureFunc is told about messages the bus gave up on after
// PublishNotification had already returned.
type FailureFunc func(dropped int, err error)

// NewKafkaPublisher builds a publisher for a comma-separated broker list.
//
// Writes are asynchronous: PublishNotification only enqueues, so a slow or
// unreachable broker never holds up the request that caused the event.
// Delivery errors are reported to onFailure, which may be nil.
func NewKafkaPublisher(brokers, topic string, onFailure FailureFunc) (*KafkaPublisher, error) {
	var addrs []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			addrs = append(addrs, b)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("events: no kafka brokers configured")
	}
	if topic == "" {
		return nil, fmt.Errorf("events: kafka topic is required")
	}

	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(addrs...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           50 * time.Millisecond,
		WriteTimeout:           5 * time.Second,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             completion(onFailure),
	}}, nil
}

func completion(onFailure FailureFunc) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err != nil && onFailure != nil {
			onFailure(len(msgs), err)
		}
	}
}

func (p *KafkaPublisher) PublishNotification(ctx context.Context, e NotificationCreated) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: encoding notification event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(e.To),
		Value: b,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("notification.created")},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("events: writing notification event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
