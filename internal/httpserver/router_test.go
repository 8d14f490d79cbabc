package httpserver_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodboard_backend/internal/config"
	"prodboard_backend/internal/events"
	"prodboard_backend/internal/httpserver"
	"prodboard_backend/internal/identity"
	"prodboard_backend/internal/logger"
	"prodboard_backend/internal/store/sqlite"
)

type apiTest struct {
	srv    *httptest.Server
	tokens *identity.TokenService
	db     *sql.DB
}

func newAPITest(t *testing.T) *apiTest {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	require.NoError(t, sqlite.Migrate(db))

	cfg := &config.Config{
		JWTSecret:                  "test-secret",
		CORSOrigins:                []string{"http://localhost:3000"},
		MaxMessagesPerConversation: 1000,
	}
	tokens := identity.NewTokenService(cfg.JWTSecret, time.Hour)
	broker := events.NewBroker(nil, logger.Nop())

	stores := httpserver.Stores{
		Conversations: sqlite.NewConversationRepo(db),
		Participants:  sqlite.NewParticipantRepo(db),
		Messages:      sqlite.NewMessageRepo(db),
		Notifications: sqlite.NewNotificationRepo(db),
		Profiles:      sqlite.NewProfileRepo(db),
	}

	router := httpserver.NewRouter(cfg, stores, broker, tokens, logger.Nop())
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &apiTest{srv: srv, tokens: tokens, db: db}
}

func (a *apiTest) seedProfile(t *testing.T, id int64, name string) {
	t.Helper()
	_, err := a.db.Exec(
		`INSERT INTO profiles (id, display_name, created_at) VALUES (?, ?, ?)`,
		id, name, time.Now().UTC(),
	)
	require.NoError(t, err)
}

// do performs an authenticated request and decodes the JSON response into out.
func (a *apiTest) do(t *testing.T, method, path string, userID int64, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.srv.URL+path, &buf)
	require.NoError(t, err)
	if userID > 0 {
		token, err := a.tokens.CreateForUser(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	api := newAPITest(t)

	var body map[string]string
	resp := api.do(t, http.MethodGet, "/health", 0, nil, &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestAPIRequiresBearerToken(t *testing.T) {
	api := newAPITest(t)

	resp := api.do(t, http.MethodGet, "/api/conversations", 0, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestConversationFlow(t *testing.T) {
	api := newAPITest(t)
	api.seedProfile(t, 1, "alice")
	api.seedProfile(t, 2, "bob")

	// Alice opens the conversation with her first message.
	var started struct {
		Conversation struct {
			ID int64 `json:"id"`
		} `json:"conversation"`
		Message struct {
			ID      int64  `json:"id"`
			Content string `json:"content"`
		} `json:"message"`
	}
	resp := api.do(t, http.MethodPost, "/api/conversations", 1, map[string]any{
		"recipient_ids": []int64{2},
		"content":       "Hello",
	}, &started)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotZero(t, started.Conversation.ID)
	assert.Equal(t, "Hello", started.Message.Content)

	convPath := fmt.Sprintf("/api/conversations/%d", started.Conversation.ID)

	// Bob sees it in his list with one unread message.
	var summaries []struct {
		ID          int64 `json:"id"`
		UnreadCount int   `json:"unread_count"`
	}
	resp = api.do(t, http.MethodGet, "/api/conversations", 2, nil, &summaries)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, summaries, 1)
	assert.Equal(t, started.Conversation.ID, summaries[0].ID)
	assert.Equal(t, 1, summaries[0].UnreadCount)

	// Bob replies.
	resp = api.do(t, http.MethodPost, convPath+"/messages", 2, map[string]any{
		"content": "Hi back",
	}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Detail view shows both messages in order.
	var detail struct {
		Messages []struct {
			Content string `json:"content"`
		} `json:"messages"`
	}
	resp = api.do(t, http.MethodGet, convPath, 1, nil, &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "Hello", detail.Messages[0].Content)
	assert.Equal(t, "Hi back", detail.Messages[1].Content)

	// Alice marks it read; her badge drains.
	resp = api.do(t, http.MethodPatch, convPath, 1, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var badge struct {
		Total    int `json:"total"`
		Messages int `json:"messages"`
	}
	resp = api.do(t, http.MethodGet, "/api/unread-count", 1, nil, &badge)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, badge.Messages)
	assert.Equal(t, 0, badge.Total)
}

func TestConversationErrorMapping(t *testing.T) {
	api := newAPITest(t)
	api.seedProfile(t, 1, "alice")
	api.seedProfile(t, 2, "bob")
	api.seedProfile(t, 3, "eve")

	var started struct {
		Conversation struct {
			ID int64 `json:"id"`
		} `json:"conversation"`
	}
	resp := api.do(t, http.MethodPost, "/api/conversations", 1, map[string]any{
		"recipient_ids": []int64{2},
		"content":       "Hello",
	}, &started)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	convPath := fmt.Sprintf("/api/conversations/%d", started.Conversation.ID)

	// Empty content → 400.
	resp = api.do(t, http.MethodPost, "/api/conversations", 1, map[string]any{
		"recipient_ids": []int64{2},
		"content":       "   ",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// No recipients → 400.
	resp = api.do(t, http.MethodPost, "/api/conversations", 1, map[string]any{
		"content": "hi",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Outsider reads → 404, outsider deletes → 403.
	resp = api.do(t, http.MethodGet, convPath, 3, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = api.do(t, http.MethodDelete, convPath, 3, nil, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unknown conversation → 404.
	resp = api.do(t, http.MethodGet, "/api/conversations/99999", 1, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Participant delete succeeds.
	resp = api.do(t, http.MethodDelete, convPath, 2, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotificationEndpoints(t *testing.T) {
	api := newAPITest(t)
	api.seedProfile(t, 1, "alice")

	now := time.Now().UTC()
	_, err := api.db.Exec(
		`INSERT INTO notifications (user_id, notification_type, title, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		1, "task_due", "Due soon", "Finish the report", now, now,
	)
	require.NoError(t, err)

	var list []struct {
		Title  string `json:"title"`
		IsRead bool   `json:"is_read"`
	}
	resp := api.do(t, http.MethodGet, "/api/notifications", 1, nil, &list)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, list, 1)
	assert.Equal(t, "Due soon", list[0].Title)
	assert.False(t, list[0].IsRead)

	var badge struct {
		Notifications int `json:"notifications"`
	}
	api.do(t, http.MethodGet, "/api/unread-count", 1, nil, &badge)
	assert.Equal(t, 1, badge.Notifications)

	resp = api.do(t, http.MethodPatch, "/api/notifications", 1, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	api.do(t, http.MethodGet, "/api/notifications", 1, nil, &list)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
}
