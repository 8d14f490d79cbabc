package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"prodboard_backend/internal/domain"
)

// ConversationService resolves conversation identity (find-or-create) and
// serves the enriched listing and detail views.
type ConversationService struct {
	conversations domain.ConversationRepository
	participants  domain.ParticipantRepository
	messages      domain.MessageRepository
	profiles      domain.ProfileRepository
	dispatcher    *MessageService
	log           *zap.SugaredLogger

	MaxMessagesPerConversation int
}

func NewConversationService(
	conversations domain.ConversationRepository,
	participants domain.ParticipantRepository,
	messages domain.MessageRepository,
	profiles domain.ProfileRepository,
	dispatcher *MessageService,
	log *zap.SugaredLogger,
	maxMessages int,
) *ConversationService {
	return &ConversationService{
		conversations:              conversations,
		participants:               participants,
		messages:                   messages,
		profiles:                   profiles,
		dispatcher:                 dispatcher,
		log:                        log,
		MaxMessagesPerConversation: maxMessages,
	}
}

type ResolveInput struct {
	RecipientIDs []int64
	Subject      *string
	ProjectID    *int64
}

type StartInput struct {
	ResolveInput
	Content string
}

// directKey canonicalizes a two-participant set plus project context into
// the unique dedup key ("minID:maxID:projectID", "-" for no project).
func directKey(a, b int64, projectID *int64) string {
	if a > b {
		a, b = b, a
	}
	proj := "-"
	if projectID != nil {
		proj = strconv.FormatInt(*projectID, 10)
	}
	return fmt.Sprintf("%d:%d:%s", a, b, proj)
}

// Resolve finds or creates the conversation for the given recipient set.
// The current user is always merged into the participant set. Direct
// (two-participant) conversations are deduplicated per (pair, project)
// through the store's unique direct key, which makes concurrent first
// contact collapse onto a single row; group conversations always create a
// new row. Returns true when a conversation was created.
func (s *ConversationService) Resolve(ctx context.Context, in ResolveInput, currentUserID int64) (*domain.Conversation, bool, error) {
	if currentUserID <= 0 {
		return nil, false, domain.ErrNotAuthenticated
	}
	if len(in.RecipientIDs) == 0 {
		return nil, false, domain.ErrNoRecipients
	}

	seen := map[int64]struct{}{currentUserID: {}}
	allParticipants := []int64{currentUserID}
	for _, id := range in.RecipientIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		allParticipants = append(allParticipants, id)
	}
	if len(allParticipants) < 2 {
		return nil, false, fmt.Errorf("%w: a conversation needs at least two participants", domain.ErrInvalidInput)
	}
	sort.Slice(allParticipants, func(i, j int) bool { return allParticipants[i] < allParticipants[j] })

	known, err := s.profiles.GetByIDs(ctx, allParticipants)
	if err != nil {
		return nil, false, fmt.Errorf("resolve participant profiles: %w", err)
	}
	for _, id := range allParticipants {
		if _, ok := known[id]; !ok {
			return nil, false, fmt.Errorf("%w: no such user %d", domain.ErrNotFound, id)
		}
	}

	conv := &domain.Conversation{
		Subject:   in.Subject,
		ProjectID: in.ProjectID,
		CreatedBy: currentUserID,
	}

	if len(allParticipants) == 2 {
		key := directKey(allParticipants[0], allParticipants[1], in.ProjectID)
		created, err := s.conversations.FindOrCreateDirect(ctx, conv, key, allParticipants)
		if err != nil {
			return nil, false, fmt.Errorf("resolve direct conversation: %w", err)
		}
		return conv, created, nil
	}

	if err := s.conversations.CreateGroup(ctx, conv, allParticipants); err != nil {
		return nil, false, fmt.Errorf("create group conversation: %w", err)
	}
	return conv, true, nil
}

// Start resolves the conversation and dispatches its first message. The
// content is validated up front so an empty message never creates a row.
func (s *ConversationService) Start(ctx context.Context, in StartInput, currentUserID int64) (*domain.Conversation, *domain.Message, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, nil, domain.ErrEmptyContent
	}
	conv, created, err := s.Resolve(ctx, in.ResolveInput, currentUserID)
	if err != nil {
		return nil, nil, err
	}
	if created {
		s.log.Debugw("conversation created", "conversation_id", conv.ID, "created_by", currentUserID)
	}
	msg, err := s.dispatcher.Send(ctx, conv.ID, in.Content, currentUserID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msg, nil
}

// List returns the user's conversations newest-activity first, enriched
// with last message, unread count, participant profiles and project.
func (s *ConversationService) List(ctx context.Context, userID int64) ([]*domain.ConversationSummary, error) {
	return s.conversations.ListSummariesForUser(ctx, userID)
}

// Get returns the conversation with its bounded message history. Fetching
// does not mark anything read; clients issue MarkRead separately.
// Non-participants get ErrNotFound rather than a participation hint.
func (s *ConversationService) Get(ctx context.Context, conversationID, userID int64) (*domain.ConversationDetail, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !isParticipant {
		return nil, domain.ErrNotFound
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID, s.MaxMessagesPerConversation)
	if err != nil {
		return nil, err
	}
	profiles, err := s.participants.ListParticipants(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	detail := &domain.ConversationDetail{
		Conversation: *conv,
		Messages:     msgs,
		Participants: profiles,
	}
	if conv.ProjectID != nil {
		project, err := s.conversations.GetProject(ctx, *conv.ProjectID)
		if err != nil {
			return nil, err
		}
		detail.Project = project
	}
	return detail, nil
}

// Delete removes the conversation and its messages. Only participants may
// delete; the participant set owns the conversation jointly.
func (s *ConversationService) Delete(ctx context.Context, conversationID, userID int64) error {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return domain.ErrNotFound
	}
	isParticipant, err := s.participants.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !isParticipant {
		return domain.ErrNotParticipant
	}
	return s.conversations.Delete(ctx, conversationID)
}
