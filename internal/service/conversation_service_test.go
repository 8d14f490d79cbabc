package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodboard_backend/internal/domain"
)

func TestResolveCreatesDirectConversation(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	ctx := context.Background()

	conv, created, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2}}, 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, conv.ID)
	assert.Equal(t, int64(1), conv.CreatedBy)
}

func TestResolveDeduplicatesDirectPair(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	ctx := context.Background()

	first, created, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2}}, 1)
	require.NoError(t, err)
	require.True(t, created)

	// Same pair from the other side resolves to the same row.
	second, created, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{1}}, 2)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestResolveDirectScopedByProject(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	env.seedProject(t, 7, "Launch")
	ctx := context.Background()

	plain, _, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2}}, 1)
	require.NoError(t, err)

	scoped, created, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2}, ProjectID: ptrInt64(7)}, 1)
	require.NoError(t, err)
	assert.True(t, created, "project-scoped pair is a distinct conversation")
	assert.NotEqual(t, plain.ID, scoped.ID)

	again, created, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2}, ProjectID: ptrInt64(7)}, 1)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, scoped.ID, again.ID)
}

func TestResolveGroupAlwaysCreates(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	env.seedProfile(t, 3, "carol")
	ctx := context.Background()

	in := ResolveInput{RecipientIDs: []int64{2, 3}, Subject: ptrString("standup")}
	first, created, err := env.conversations.Resolve(ctx, in, 1)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := env.conversations.Resolve(ctx, in, 1)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestResolveMergesCurrentUserAndDeduplicatesRecipients(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	ctx := context.Background()

	// Caller listed twice plus the recipient still collapses to a direct pair.
	conv, _, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2, 1, 2}}, 1)
	require.NoError(t, err)

	detail, err := env.conversations.Get(ctx, conv.ID, 1)
	require.NoError(t, err)
	require.Len(t, detail.Participants, 2)
}

func TestResolveValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	ctx := context.Background()

	_, _, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2}}, 0)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	_, _, err = env.conversations.Resolve(ctx, ResolveInput{}, 1)
	assert.ErrorIs(t, err, domain.ErrNoRecipients)

	// Talking only to yourself is not a conversation.
	_, _, err = env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{1}}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	// Unknown recipient.
	_, _, err = env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{99}}, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolveConcurrentFirstContact(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	ctx := context.Background()

	const racers = 8
	ids := make([]int64, racers)
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			caller, recipient := int64(1), int64(2)
			if i%2 == 0 {
				caller, recipient = recipient, caller
			}
			conv, _, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{recipient}}, caller)
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = conv.ID
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	for _, id := range ids {
		assert.Equal(t, ids[0], id, "all racers must converge on one conversation")
	}
}

func TestStartSendsFirstMessage(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	ctx := context.Background()

	sub := env.broker.Subscribe(2)
	defer sub.Close()

	conv, msg, err := env.conversations.Start(ctx, StartInput{
		ResolveInput: ResolveInput{RecipientIDs: []int64{2}},
		Content:      "Hello",
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, msg.ConversationID)
	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.IsRead)

	ev := recvEvent(t, sub.C)
	assert.Equal(t, msg.ID, ev.RowID)
	assert.Equal(t, conv.ID, ev.ConversationID)
}

func TestStartEmptyContentCreatesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	ctx := context.Background()

	_, _, err := env.conversations.Start(ctx, StartInput{
		ResolveInput: ResolveInput{RecipientIDs: []int64{2}},
		Content:      "   \n\t ",
	}, 1)
	assert.ErrorIs(t, err, domain.ErrEmptyContent)

	summaries, err := env.conversations.List(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, summaries, "failed validation must not leave a conversation behind")
}

func TestGetHidesConversationFromOutsiders(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	env.seedProfile(t, 3, "eve")
	ctx := context.Background()

	conv, _, err := env.conversations.Resolve(ctx, ResolveInput{RecipientIDs: []int64{2}}, 1)
	require.NoError(t, err)

	_, err = env.conversations.Get(ctx, conv.ID, 3)
	assert.ErrorIs(t, err, domain.ErrNotFound, "outsiders must not learn the conversation exists")

	_, err = env.conversations.Get(ctx, 9999, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetReturnsDetailWithProject(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	env.seedProject(t, 7, "Launch")
	ctx := context.Background()

	conv, msg, err := env.conversations.Start(ctx, StartInput{
		ResolveInput: ResolveInput{RecipientIDs: []int64{2}, ProjectID: ptrInt64(7)},
		Content:      "kickoff",
	}, 1)
	require.NoError(t, err)

	detail, err := env.conversations.Get(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 1)
	assert.Equal(t, msg.ID, detail.Messages[0].ID)
	assert.Len(t, detail.Participants, 2)
	require.NotNil(t, detail.Project)
	assert.Equal(t, "Launch", detail.Project.Name)
}

func TestDeleteRequiresParticipant(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	env.seedProfile(t, 3, "eve")
	ctx := context.Background()

	conv, _, err := env.conversations.Start(ctx, StartInput{
		ResolveInput: ResolveInput{RecipientIDs: []int64{2}},
		Content:      "hi",
	}, 1)
	require.NoError(t, err)

	err = env.conversations.Delete(ctx, conv.ID, 3)
	assert.ErrorIs(t, err, domain.ErrNotParticipant)

	require.NoError(t, env.conversations.Delete(ctx, conv.ID, 2))

	_, err = env.conversations.Get(ctx, conv.ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = env.conversations.Delete(ctx, conv.ID, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListOrdersByLatestActivity(t *testing.T) {
	env := newTestEnv(t)
	env.seedProfile(t, 1, "alice")
	env.seedProfile(t, 2, "bob")
	env.seedProfile(t, 3, "carol")
	ctx := context.Background()

	withBob, _, err := env.conversations.Start(ctx, StartInput{
		ResolveInput: ResolveInput{RecipientIDs: []int64{2}},
		Content:      "first",
	}, 1)
	require.NoError(t, err)

	withCarol, _, err := env.conversations.Start(ctx, StartInput{
		ResolveInput: ResolveInput{RecipientIDs: []int64{3}},
		Content:      "second",
	}, 1)
	require.NoError(t, err)

	// New activity in the older conversation moves it back to the top.
	_, err = env.messages.Send(ctx, withBob.ID, "bump", 2)
	require.NoError(t, err)

	summaries, err := env.conversations.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, withBob.ID, summaries[0].ID)
	assert.Equal(t, withCarol.ID, summaries[1].ID)

	require.NotNil(t, summaries[0].LastMessage)
	assert.Equal(t, "bump", summaries[0].LastMessage.Content)
	assert.Equal(t, 1, summaries[0].UnreadCount, "bob's bump is unread for alice")
	assert.Equal(t, 0, summaries[1].UnreadCount, "own messages never count as unread")
	assert.Len(t, summaries[0].Participants, 2)
}
