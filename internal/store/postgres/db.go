package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the messaging schema.
//
// profiles and projects are owned by the identity and project subsystems;
// they are created here only so a standalone deployment can boot, and this
// subsystem never writes to them.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id           BIGSERIAL    PRIMARY KEY,
			display_name VARCHAR(100) NOT NULL,
			email        VARCHAR(100),
			avatar_url   TEXT,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS projects (
			id         BIGSERIAL    PRIMARY KEY,
			name       VARCHAR(200) NOT NULL,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// direct_key is the canonical "minUserID:maxUserID:project" string for
		// two-participant conversations and NULL for groups. The unique
		// constraint is what makes direct resolution race-free: concurrent
		// first contact collapses onto one row via ON CONFLICT DO NOTHING.
		`CREATE TABLE IF NOT EXISTS conversations (
			id         BIGSERIAL    PRIMARY KEY,
			subject    VARCHAR(200),
			project_id BIGINT       REFERENCES projects(id),
			created_by BIGINT       NOT NULL REFERENCES profiles(id),
			direct_key TEXT         UNIQUE,
			created_at TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id         BIGINT      NOT NULL REFERENCES profiles(id),
			joined_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (conversation_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL   PRIMARY KEY,
			conversation_id BIGINT      NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id       BIGINT      NOT NULL REFERENCES profiles(id),
			content         TEXT        NOT NULL,
			is_read         BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id                  BIGSERIAL    PRIMARY KEY,
			user_id             BIGINT       NOT NULL REFERENCES profiles(id),
			project_id          BIGINT       REFERENCES projects(id),
			notification_type   VARCHAR(50)  NOT NULL,
			title               VARCHAR(200) NOT NULL,
			message             TEXT         NOT NULL,
			related_entity_id   BIGINT,
			related_entity_type VARCHAR(50),
			is_read             BOOLEAN      NOT NULL DEFAULT FALSE,
			read_at             TIMESTAMPTZ,
			severity            VARCHAR(20)  NOT NULL DEFAULT 'info',
			action_required     BOOLEAN      NOT NULL DEFAULT FALSE,
			action_url          TEXT,
			created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages(conversation_id, sender_id) WHERE is_read = FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE is_read = FALSE`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
