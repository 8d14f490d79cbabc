package domain

import (
	"context"
)

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// CreateGroup inserts a new conversation unconditionally. Group
	// conversations are never deduplicated: every call creates a row.
	CreateGroup(ctx context.Context, c *Conversation, participantIDs []int64) error

	// FindOrCreateDirect atomically resolves a two-participant conversation
	// for the canonical directKey (sorted pair + project context). It inserts
	// with a conflict-tolerant statement and falls back to fetching the row
	// that won, so concurrent first contact yields a single conversation.
	// Returns true when this call created the row.
	FindOrCreateDirect(ctx context.Context, c *Conversation, directKey string, participantIDs []int64) (bool, error)

	GetByID(ctx context.Context, id int64) (*Conversation, error)

	// ListSummariesForUser returns the user's conversations newest-activity
	// first, enriched with last message, unread count, participant profiles
	// and project via queries batched over the conversation id set.
	ListSummariesForUser(ctx context.Context, userID int64) ([]*ConversationSummary, error)

	GetProject(ctx context.Context, projectID int64) (*Project, error)

	// Delete removes the conversation; participants and messages cascade.
	Delete(ctx context.Context, id int64) error
}

// ParticipantRepository defines operations around conversation membership.
type ParticipantRepository interface {
	ListParticipantIDs(ctx context.Context, conversationID int64) ([]int64, error)
	ListParticipants(ctx context.Context, conversationID int64) ([]*Profile, error)
	IsParticipant(ctx context.Context, conversationID, userID int64) (bool, error)
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	// Create inserts the message and advances the owning conversation's
	// updated_at in a single transaction.
	Create(ctx context.Context, m *Message) error

	// ListForConversation returns messages in chronological order
	// (created_at, then id), capped at limit when limit > 0.
	ListForConversation(ctx context.Context, conversationID int64, limit int) ([]*Message, error)

	// MarkAllRead flags every message in the conversation not sent by
	// readerID as read. Idempotent.
	MarkAllRead(ctx context.Context, conversationID, readerID int64) error

	// CountUnread counts messages in one conversation sent by someone other
	// than userID that are still unread.
	CountUnread(ctx context.Context, conversationID, userID int64) (int, error)

	// CountUnreadForUser is the same count across every conversation the
	// user participates in.
	CountUnreadForUser(ctx context.Context, userID int64) (int, error)
}

// NotificationRepository defines persistence operations for notifications.
// Rows are created by domain events elsewhere in the application; this
// subsystem consumes them.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	ListForUser(ctx context.Context, userID int64) ([]*Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkAllRead(ctx context.Context, userID int64) error
}

// ProfileRepository resolves opaque user ids to display profiles. It is the
// read-only boundary to the identity provider's storage.
type ProfileRepository interface {
	GetByID(ctx context.Context, id int64) (*Profile, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*Profile, error)
}
