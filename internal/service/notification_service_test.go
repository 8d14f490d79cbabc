package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodboard_backend/internal/domain"
)

func TestNotifyValidatesAndPublishes(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	ctx := context.Background()

	err := env.notifications.Notify(ctx, &domain.Notification{Type: "task_due", Title: "Due soon"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = env.notifications.Notify(ctx, &domain.Notification{UserID: 1, Title: "no type"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	sub := env.broker.Subscribe(1)
	defer sub.Close()

	n := &domain.Notification{
		UserID:  1,
		Type:    "task_due",
		Title:   "Due soon",
		Message: "Finish the report",
	}
	require.NoError(t, env.notifications.Notify(ctx, n))
	require.NotZero(t, n.ID)

	ev := recvEvent(t, sub.C)
	assert.Equal(t, n.ID, ev.RowID)
}

func TestNotificationListNewestFirstWithProjectName(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProject(t, 7, "Launch")
	ctx := context.Background()

	require.NoError(t, env.notifications.Notify(ctx, &domain.Notification{
		UserID: 1, Type: "task_due", Title: "older",
	}))
	require.NoError(t, env.notifications.Notify(ctx, &domain.Notification{
		UserID: 1, Type: "task_due", Title: "newer", ProjectID: ptrInt64(7),
	}))

	list, err := env.notifications.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Title)
	require.NotNil(t, list[0].ProjectName)
	assert.Equal(t, "Launch", *list[0].ProjectName)
	assert.Nil(t, list[1].ProjectName)
}

func TestNotificationListIsPerUser(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	ctx := context.Background()

	require.NoError(t, env.notifications.Notify(ctx, &domain.Notification{
		UserID: 1, Type: "mention", Title: "for alice",
	}))

	list, err := env.notifications.List(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMarkAllNotificationsRead(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	ctx := context.Background()

	for _, title := range []string{"a", "b"} {
		require.NoError(t, env.notifications.Notify(ctx, &domain.Notification{
			UserID: 1, Type: "task_due", Title: title,
		}))
	}

	require.NoError(t, env.notifications.MarkAllRead(ctx, 1))

	list, err := env.notifications.List(ctx, 1)
	require.NoError(t, err)
	for _, n := range list {
		assert.True(t, n.IsRead)
		assert.NotNil(t, n.ReadAt, "read_at is stamped when the flag flips")
	}

	// Idempotent: a second pass must not disturb anything.
	require.NoError(t, env.notifications.MarkAllRead(ctx, 1))
	badge, err := env.notifications.Badge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, badge.Notifications)
}

func TestBadgeSumsMessagesAndNotifications(t *testing.T) {
	env := newTestEnv(t)
	conv := startDirect(t, env) // alice's opener is unread for bob
	ctx := context.Background()

	require.NoError(t, env.notifications.Notify(ctx, &domain.Notification{
		UserID: 2, Type: "task_due", Title: "due",
	}))

	badge, err := env.notifications.Badge(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, badge.Messages)
	assert.Equal(t, 1, badge.Notifications)
	assert.Equal(t, 2, badge.Total)

	// Reading the conversation only drains the message component.
	require.NoError(t, env.messages.MarkConversationRead(ctx, conv.ID, 2))
	badge, err = env.notifications.Badge(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, badge.Messages)
	assert.Equal(t, 1, badge.Notifications)
	assert.Equal(t, 1, badge.Total)
}

func TestBadgeSpansConversations(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	env.seedProfile(t, 3, "carol")
	ctx := context.Background()

	for _, sender := range []int64{2, 3} {
		_, _, err := env.conversations.Start(ctx, StartInput{
			ResolveInput: ResolveInput{RecipientIDs: []int64{1}},
			Content:      "ping",
		}, sender)
		require.NoError(t, err)
	}

	badge, err := env.notifications.Badge(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, badge.Messages, "unread messages aggregate across conversations")
}
