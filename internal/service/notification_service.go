package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"prodboard_backend/internal/domain"
	"prodboard_backend/internal/events"
)

// NotificationService serves the notification feed and aggregates the
// badge count (unread messages + unread notifications as one number).
type NotificationService struct {
	notifications domain.NotificationRepository
	messages      domain.MessageRepository
	broker        *events.Broker
	log           *zap.SugaredLogger
}

func NewNotificationService(
	notifications domain.NotificationRepository,
	messages domain.MessageRepository,
	broker *events.Broker,
	log *zap.SugaredLogger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		messages:      messages,
		broker:        broker,
		log:           log,
	}
}

// BadgeCount is the single number shown to the user, with its two
// components broken out for clients that want them.
type BadgeCount struct {
	Total         int `json:"total"`
	Messages      int `json:"messages"`
	Notifications int `json:"notifications"`
}

// List returns the user's notifications newest first, with project names
// joined in where a project context exists.
func (s *NotificationService) List(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	return s.notifications.ListForUser(ctx, userID)
}

// MarkAllRead flags all of the user's unread notifications read and stamps
// read_at. Idempotent.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int64) error {
	return s.notifications.MarkAllRead(ctx, userID)
}

// Badge computes the global unread badge: the message-unread and
// notification-unread totals are two independent aggregations summed into
// one number.
func (s *NotificationService) Badge(ctx context.Context, userID int64) (*BadgeCount, error) {
	msgUnread, err := s.messages.CountUnreadForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread messages: %w", err)
	}
	notifUnread, err := s.notifications.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	return &BadgeCount{
		Total:         msgUnread + notifUnread,
		Messages:      msgUnread,
		Notifications: notifUnread,
	}, nil
}

// Notify stores a notification and signals the owner's clients. Domain
// events elsewhere in the application call this; the messaging subsystem
// itself only consumes the rows.
func (s *NotificationService) Notify(ctx context.Context, n *domain.Notification) error {
	if n.UserID <= 0 {
		return fmt.Errorf("%w: notification needs an owner", domain.ErrInvalidInput)
	}
	if n.Title == "" || n.Type == "" {
		return fmt.Errorf("%w: notification needs a type and a title", domain.ErrInvalidInput)
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	s.broker.Publish(ctx, events.NewNotificationEvent(n.ID, n.UserID))
	return nil
}
