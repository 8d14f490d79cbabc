package domain

import "time"

// Profile is the display view of a user, owned by the identity provider.
// This subsystem only reads profiles; it never creates or mutates them.
type Profile struct {
	ID          int64     `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	Email       *string   `db:"email" json:"email,omitempty"`
	AvatarURL   *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Project is the minimal read-only view of a project used to enrich
// conversations and notifications. Project CRUD lives elsewhere.
type Project struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// Conversation is a fixed-membership thread of messages, either direct
// (two participants) or group (more). The participant set never changes
// after creation.
type Conversation struct {
	ID        int64     `db:"id" json:"id"`
	Subject   *string   `db:"subject" json:"subject,omitempty"`
	ProjectID *int64    `db:"project_id" json:"project_id,omitempty"`
	CreatedBy int64     `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Message is a single message in a conversation. Messages are immutable
// after creation except for the is_read flag.
//
// is_read is one shared flag per message, not per recipient: in a direct
// conversation it means "read by the other participant", but in a group
// conversation the first recipient who marks the conversation read flips
// it for everyone. A per-(message, reader) receipt table is the upgrade
// path if group read-accuracy ever becomes a requirement.
type Message struct {
	ID             int64     `db:"id" json:"id"`
	ConversationID int64     `db:"conversation_id" json:"conversation_id"`
	SenderID       int64     `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	IsRead         bool      `db:"is_read" json:"is_read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Notification is a system-generated alert owned by a single user. Rows
// are produced by domain events elsewhere; this subsystem lists them,
// counts the unread ones into the badge, and marks them read.
type Notification struct {
	ID                int64      `db:"id" json:"id"`
	UserID            int64      `db:"user_id" json:"user_id"`
	ProjectID         *int64     `db:"project_id" json:"project_id,omitempty"`
	Type              string     `db:"notification_type" json:"notification_type"`
	Title             string     `db:"title" json:"title"`
	Message           string     `db:"message" json:"message"`
	RelatedEntityID   *int64     `db:"related_entity_id" json:"related_entity_id,omitempty"`
	RelatedEntityType *string    `db:"related_entity_type" json:"related_entity_type,omitempty"`
	IsRead            bool       `db:"is_read" json:"is_read"`
	ReadAt            *time.Time `db:"read_at" json:"read_at,omitempty"`
	Severity          string     `db:"severity" json:"severity"`
	ActionRequired    bool       `db:"action_required" json:"action_required"`
	ActionURL         *string    `db:"action_url" json:"action_url,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`

	// ProjectName is joined in on list queries when project_id is set.
	ProjectName *string `db:"project_name" json:"project_name,omitempty"`
}

// ConversationSummary is a conversation enriched for list views.
type ConversationSummary struct {
	Conversation
	LastMessage  *Message   `json:"last_message,omitempty"`
	UnreadCount  int        `json:"unread_count"`
	Participants []*Profile `json:"participants"`
	Project      *Project   `json:"project,omitempty"`
}

// ConversationDetail is a conversation with its full (bounded) history.
type ConversationDetail struct {
	Conversation
	Messages     []*Message `json:"messages"`
	Participants []*Profile `json:"participants"`
	Project      *Project   `json:"project,omitempty"`
}
