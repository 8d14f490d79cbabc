package service

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"prodboard_backend/internal/events"
	"prodboard_backend/internal/logger"
	"prodboard_backend/internal/store/sqlite"
)

// testEnv wires the services against a throwaway SQLite database so service
// tests exercise real SQL instead of hand-rolled fakes.
type testEnv struct {
	db     *sql.DB
	broker *events.Broker

	conversations *ConversationService
	messages      *MessageService
	notifications *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// A single connection serializes writers, which keeps the concurrency
	// tests free of SQLITE_BUSY noise.
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))

	convRepo := sqlite.NewConversationRepo(db)
	partRepo := sqlite.NewParticipantRepo(db)
	msgRepo := sqlite.NewMessageRepo(db)
	notifRepo := sqlite.NewNotificationRepo(db)
	profRepo := sqlite.NewProfileRepo(db)

	broker := events.NewBroker(nil, logger.Nop())
	log := logger.Nop()

	msgSvc := NewMessageService(convRepo, partRepo, msgRepo, broker, log, 1000)
	convSvc := NewConversationService(convRepo, partRepo, msgRepo, profRepo, msgSvc, log, 1000)
	notifSvc := NewNotificationService(notifRepo, msgRepo, broker, log)

	return &testEnv{
		db:            db,
		broker:        broker,
		conversations: convSvc,
		messages:      msgSvc,
		notifications: notifSvc,
	}
}

func (e *testEnv) seedProfile(t *testing.T, id int64, name string) {
	t.Helper()
	_, err := e.db.Exec(
		`INSERT INTO profiles (id, display_name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC(),
	)
	require.NoError(t, err)
}

func (e *testEnv) seedProject(t *testing.T, id int64, name string) {
	t.Helper()
	_, err := e.db.Exec(
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC(),
	)
	require.NoError(t, err)
}

func recvEvent(t *testing.T, c chan events.Event) events.Event {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return events.Event{}
	}
}

func ptrInt64(v int64) *int64 { return &v }

func ptrString(v string) *string { return &v }
