package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"prodboard_backend/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) CreateGroup(ctx context.Context, c *domain.Conversation, participantIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO conversations (subject, project_id, created_by, direct_key, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, c.Subject, c.ProjectID, c.CreatedBy).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}

	if err := insertParticipants(ctx, tx, c.ID, participantIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *ConversationRepo) FindOrCreateDirect(ctx context.Context, c *domain.Conversation, directKey string, participantIDs []int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO conversations (subject, project_id, created_by, direct_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		ON CONFLICT (direct_key) DO NOTHING
		RETURNING id, created_at, updated_at
	`, c.Subject, c.ProjectID, c.CreatedBy, directKey).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		// Lost the race (or the conversation predates this call): return the
		// existing row untouched, subject and timestamps included. The
		// conflicting insert has committed by the time DO NOTHING reports no
		// rows, so this read sees it.
		existing := &domain.Conversation{}
		if err := tx.QueryRowContext(ctx, `
			SELECT id, subject, project_id, created_by, created_at, updated_at
			FROM conversations WHERE direct_key = $1
		`, directKey).Scan(&existing.ID, &existing.Subject, &existing.ProjectID,
			&existing.CreatedBy, &existing.CreatedAt, &existing.UpdatedAt); err != nil {
			return false, fmt.Errorf("fetch existing direct: %w", err)
		}
		*c = *existing
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert direct conversation: %w", err)
	}

	if err := insertParticipants(ctx, tx, c.ID, participantIDs); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, conversationID int64, participantIDs []int64) error {
	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT DO NOTHING
		`, conversationID, uid); err != nil {
			return fmt.Errorf("insert participant %d: %w", uid, err)
		}
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject, project_id, created_by, created_at, updated_at
		FROM conversations WHERE id = $1
	`, id).Scan(&c.ID, &c.Subject, &c.ProjectID, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) GetProject(ctx context.Context, projectID int64) (*domain.Project, error) {
	p := &domain.Project{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name FROM projects WHERE id = $1
	`, projectID).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// ListSummariesForUser enriches the user's conversations with a fixed
// number of queries batched over the conversation id set, instead of one
// round-trip per conversation.
func (r *ConversationRepo) ListSummariesForUser(ctx context.Context, userID int64) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.subject, c.project_id, c.created_by, c.created_at, c.updated_at, p.id, p.name
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		LEFT JOIN projects p ON p.id = c.project_id
		WHERE cp.user_id = $1
		ORDER BY c.updated_at DESC, c.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var (
		res     []*domain.ConversationSummary
		byID    = make(map[int64]*domain.ConversationSummary)
		convIDs []int64
	)
	for rows.Next() {
		s := &domain.ConversationSummary{}
		var projID sql.NullInt64
		var projName sql.NullString
		if err := rows.Scan(&s.ID, &s.Subject, &s.ProjectID, &s.CreatedBy,
			&s.CreatedAt, &s.UpdatedAt, &projID, &projName); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if projID.Valid {
			s.Project = &domain.Project{ID: projID.Int64, Name: projName.String}
		}
		res = append(res, s)
		byID[s.ID] = s
		convIDs = append(convIDs, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return res, nil
	}

	// Last message per conversation.
	lastRows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (conversation_id)
		       id, conversation_id, sender_id, content, is_read, created_at
		FROM messages
		WHERE conversation_id = ANY($1::bigint[])
		ORDER BY conversation_id, created_at DESC, id DESC
	`, convIDs)
	if err != nil {
		return nil, fmt.Errorf("last messages: %w", err)
	}
	defer lastRows.Close()
	for lastRows.Next() {
		m := &domain.Message{}
		if err := lastRows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan last message: %w", err)
		}
		byID[m.ConversationID].LastMessage = m
	}
	if err := lastRows.Err(); err != nil {
		return nil, err
	}

	// Unread counts.
	unreadRows, err := r.db.QueryContext(ctx, `
		SELECT conversation_id, COUNT(*)
		FROM messages
		WHERE conversation_id = ANY($1::bigint[])
		  AND sender_id != $2
		  AND is_read = FALSE
		GROUP BY conversation_id
	`, convIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer unreadRows.Close()
	for unreadRows.Next() {
		var convID int64
		var count int
		if err := unreadRows.Scan(&convID, &count); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		byID[convID].UnreadCount = count
	}
	if err := unreadRows.Err(); err != nil {
		return nil, err
	}

	// Participant profiles.
	partRows, err := r.db.QueryContext(ctx, `
		SELECT cp.conversation_id, pr.id, pr.display_name, pr.email, pr.avatar_url, pr.created_at
		FROM conversation_participants cp
		JOIN profiles pr ON pr.id = cp.user_id
		WHERE cp.conversation_id = ANY($1::bigint[])
		ORDER BY pr.display_name ASC
	`, convIDs)
	if err != nil {
		return nil, fmt.Errorf("participants: %w", err)
	}
	defer partRows.Close()
	for partRows.Next() {
		var convID int64
		p := &domain.Profile{}
		if err := partRows.Scan(&convID, &p.ID, &p.DisplayName, &p.Email, &p.AvatarURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		s := byID[convID]
		s.Participants = append(s.Participants, p)
	}
	return res, partRows.Err()
}

func (r *ConversationRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}
