package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"prodboard_backend/internal/domain"
	"prodboard_backend/internal/events"
	"prodboard_backend/internal/metrics"
)

const maxContentRunes = 5000

// MessageService dispatches messages and tracks read state.
type MessageService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	broker        *events.Broker
	log           *zap.SugaredLogger

	MaxMessagesPerConversation int
}

func NewMessageService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	broker *events.Broker,
	log *zap.SugaredLogger,
	maxMessages int,
) *MessageService {
	return &MessageService{
		conversations:              conversations,
		participants:               participants,
		messages:                   messages,
		broker:                     broker,
		log:                        log,
		MaxMessagesPerConversation: maxMessages,
	}
}

// Send appends a message to the conversation. The insert and the
// conversation's updated_at touch happen in one store transaction, and a
// messages insert event is published to the propagation channel afterwards
// so every participant's client can re-fetch.
func (s *MessageService) Send(ctx context.Context, conversationID int64, content string, senderID int64) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, domain.ErrEmptyContent
	}
	if len([]rune(content)) > maxContentRunes {
		return nil, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, maxContentRunes)
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, senderID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, domain.ErrNotParticipant
	}

	msg := &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	metrics.MessagesSent.Inc()

	// Propagation is best-effort: the message is durable at this point and a
	// lost event only costs a live refresh.
	participantIDs, err := s.participants.ListParticipantIDs(ctx, conversationID)
	if err != nil {
		s.log.Warnw("skipping message event, participant lookup failed",
			"conversation_id", conversationID, "error", err)
		return msg, nil
	}
	s.broker.Publish(ctx, events.NewMessageEvent(msg.ID, conversationID, participantIDs))

	return msg, nil
}

// ListMessages returns the conversation's history in chronological order,
// capped at the configured bound. Non-participants get ErrNotFound.
func (s *MessageService) ListMessages(ctx context.Context, conversationID, userID int64) ([]*domain.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return nil, domain.ErrNotFound
	}
	return s.messages.ListForConversation(ctx, conversationID, s.MaxMessagesPerConversation)
}

// MarkConversationRead flags every message in the conversation not sent by
// the caller as read. Setting true to true is a no-op, so concurrent and
// repeated calls are harmless.
//
// The flag is shared per message, not per recipient: in a conversation with
// three or more participants, the first reader clears the unread state for
// the others too. Kept as-is deliberately; see the Message model.
func (s *MessageService) MarkConversationRead(ctx context.Context, conversationID, userID int64) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return domain.ErrNotFound
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return fmt.Errorf("check participant: %w", err)
	}
	if !isParticipant {
		return domain.ErrNotParticipant
	}
	return s.messages.MarkAllRead(ctx, conversationID, userID)
}

// UnreadCount reports how many messages in the conversation were sent by
// someone else and are still unread.
func (s *MessageService) UnreadCount(ctx context.Context, conversationID, userID int64) (int, error) {
	return s.messages.CountUnread(ctx, conversationID, userID)
}
