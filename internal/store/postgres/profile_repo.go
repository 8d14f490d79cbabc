package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"prodboard_backend/internal/domain"
)

// ProfileRepo is the read-only boundary to the identity provider's profile
// storage.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

func (r *ProfileRepo) GetByID(ctx context.Context, id int64) (*domain.Profile, error) {
	p := &domain.Profile{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, avatar_url, created_at
		FROM profiles WHERE id = $1
	`, id).Scan(&p.ID, &p.DisplayName, &p.Email, &p.AvatarURL, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) GetByIDs(ctx context.Context, ids []int64) (map[int64]*domain.Profile, error) {
	res := make(map[int64]*domain.Profile, len(ids))
	if len(ids) == 0 {
		return res, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, display_name, email, avatar_url, created_at
		FROM profiles WHERE id = ANY($1::bigint[])
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	profiles, err := scanProfiles(rows)
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		res[p.ID] = p
	}
	return res, nil
}

func scanProfiles(rows *sql.Rows) ([]*domain.Profile, error) {
	defer rows.Close()
	var res []*domain.Profile
	for rows.Next() {
		p := &domain.Profile{}
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.Email, &p.AvatarURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}
