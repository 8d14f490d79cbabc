package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

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

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (subject, project_id, created_by, direct_key, created_at, updated_at)
		VALUES (?, ?, ?, NULL, ?, ?)
	`, c.Subject, c.ProjectID, c.CreatedBy, now, now)
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := insertParticipants(ctx, tx, id, participantIDs, now); err != nil {
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

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (subject, project_id, created_by, direct_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(direct_key) DO NOTHING
	`, c.Subject, c.ProjectID, c.CreatedBy, directKey, now, now)
	if err != nil {
		return false, fmt.Errorf("insert direct conversation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		// Lost the race (or the conversation predates this call): return the
		// existing row untouched. Fetched through the tx so a single pooled
		// connection cannot deadlock against it.
		existing := &domain.Conversation{}
		if err := tx.QueryRowContext(ctx, `
			SELECT id, subject, project_id, created_by, created_at, updated_at
			FROM conversations WHERE direct_key = ?
		`, directKey).Scan(&existing.ID, &existing.Subject, &existing.ProjectID,
			&existing.CreatedBy, &existing.CreatedAt, &existing.UpdatedAt); err != nil {
			return false, fmt.Errorf("fetch existing direct: %w", err)
		}
		*c = *existing
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	c.CreatedAt = now
	c.UpdatedAt = now

	if err := insertParticipants(ctx, tx, id, participantIDs, now); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func insertParticipants(ctx context.Context, tx *sql.Tx, conversationID int64, participantIDs []int64, now time.Time) error {
	for _, uid := range participantIDs {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO conversation_participants (conversation_id, user_id, joined_at)
			VALUES (?, ?, ?)
		`, conversationID, uid, now); err != nil {
			return fmt.Errorf("insert participant %d: %w", uid, err)
		}
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id int64) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, subject, project_id, created_by, created_at, updated_at
		FROM conversations WHERE id = ?
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
		SELECT id, name FROM projects WHERE id = ?
	`, projectID).Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (r *ConversationRepo) ListSummariesForUser(ctx context.Context, userID int64) ([]*domain.ConversationSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.subject, c.project_id, c.created_by, c.created_at, c.updated_at, p.id, p.name
		FROM conversations c
		JOIN conversation_participants cp ON cp.conversation_id = c.id
		LEFT JOIN projects p ON p.id = c.project_id
		WHERE cp.user_id = ?
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

	placeholders, idArgs := inClause(convIDs)

	// Last message per conversation. Message ids are monotonic, so MAX(id)
	// is the latest message with ties already broken the way listing breaks
	// them.
	lastRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, conversation_id, sender_id, content, is_read, created_at
		FROM messages
		WHERE id IN (
			SELECT MAX(id) FROM messages
			WHERE conversation_id IN (%s)
			GROUP BY conversation_id
		)
	`, placeholders), idArgs...)
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
	unreadArgs := append(append([]any{}, idArgs...), userID)
	unreadRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT conversation_id, COUNT(*)
		FROM messages
		WHERE conversation_id IN (%s)
		  AND sender_id != ?
		  AND is_read = 0
		GROUP BY conversation_id
	`, placeholders), unreadArgs...)
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
	partRows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT cp.conversation_id, pr.id, pr.display_name, pr.email, pr.avatar_url, pr.created_at
		FROM conversation_participants cp
		JOIN profiles pr ON pr.id = cp.user_id
		WHERE cp.conversation_id IN (%s)
		ORDER BY pr.display_name ASC
	`, placeholders), idArgs...)
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
	_, err := r.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// inClause builds a "?, ?, ..." placeholder list and the matching args.
func inClause(ids []int64) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}
