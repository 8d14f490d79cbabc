package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"prodboard_backend/internal/domain"
)

type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

var _ domain.NotificationRepository = (*NotificationRepo)(nil)

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if n.Severity == "" {
		n.Severity = "info"
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications
			(user_id, project_id, notification_type, title, message,
			 related_entity_id, related_entity_type, is_read, read_at,
			 severity, action_required, action_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?, ?, ?, ?)
	`, n.UserID, n.ProjectID, n.Type, n.Title, n.Message,
		n.RelatedEntityID, n.RelatedEntityType,
		n.Severity, n.ActionRequired, n.ActionURL, now, now)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	n.CreatedAt = now
	n.UpdatedAt = now
	return nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, userID int64) ([]*domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT n.id, n.user_id, n.project_id, n.notification_type, n.title, n.message,
		       n.related_entity_id, n.related_entity_type, n.is_read, n.read_at,
		       n.severity, n.action_required, n.action_url, n.created_at, n.updated_at,
		       p.name
		FROM notifications n
		LEFT JOIN projects p ON p.id = n.project_id
		WHERE n.user_id = ?
		ORDER BY n.created_at DESC, n.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var res []*domain.Notification
	for rows.Next() {
		n := &domain.Notification{}
		if err := rows.Scan(&n.ID, &n.UserID, &n.ProjectID, &n.Type, &n.Title, &n.Message,
			&n.RelatedEntityID, &n.RelatedEntityType, &n.IsRead, &n.ReadAt,
			&n.Severity, &n.ActionRequired, &n.ActionURL, &n.CreatedAt, &n.UpdatedAt,
			&n.ProjectName); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = 1, read_at = ?, updated_at = ?
		WHERE user_id = ? AND is_read = 0
	`, now, now, userID)
	if err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}
