package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prodboard_backend/internal/logger"
)

func recvEvent(t *testing.T, c chan Event) Event {
	t.Helper()
	select {
	case ev := <-c:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBrokerDeliversToRecipients(t *testing.T) {
	b := NewBroker(nil, logger.Nop())

	alice := b.Subscribe(1)
	defer alice.Close()
	bob := b.Subscribe(2)
	defer bob.Close()

	b.Publish(context.Background(), NewMessageEvent(10, 100, []int64{1, 2}))

	got := recvEvent(t, alice.C)
	assert.Equal(t, TableMessages, got.Table)
	assert.Equal(t, int64(10), got.RowID)
	assert.Equal(t, int64(100), got.ConversationID)

	got = recvEvent(t, bob.C)
	assert.Equal(t, int64(10), got.RowID)
}

func TestBrokerFiltersByRecipient(t *testing.T) {
	b := NewBroker(nil, logger.Nop())

	alice := b.Subscribe(1)
	defer alice.Close()
	eve := b.Subscribe(3)
	defer eve.Close()

	b.Publish(context.Background(), NewMessageEvent(10, 100, []int64{1, 2}))

	recvEvent(t, alice.C)
	select {
	case ev := <-eve.C:
		t.Fatalf("non-recipient received event %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerMultipleSubscriptionsPerUser(t *testing.T) {
	b := NewBroker(nil, logger.Nop())

	first := b.Subscribe(1)
	defer first.Close()
	second := b.Subscribe(1)
	defer second.Close()

	b.Publish(context.Background(), NewNotificationEvent(5, 1))

	assert.Equal(t, int64(5), recvEvent(t, first.C).RowID)
	assert.Equal(t, int64(5), recvEvent(t, second.C).RowID)
}

func TestBrokerClosedSubscriptionReceivesNothing(t *testing.T) {
	b := NewBroker(nil, logger.Nop())

	sub := b.Subscribe(1)
	sub.Close()
	sub.Close() // idempotent

	b.Publish(context.Background(), NewNotificationEvent(5, 1))

	_, ok := <-sub.C
	assert.False(t, ok, "channel should be closed and drained")
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker(nil, logger.Nop())

	sub := b.Subscribe(1)
	defer sub.Close()

	// Fill the buffer and publish one more; Publish must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriptionBuffer+5; i++ {
			b.Publish(context.Background(), NewNotificationEvent(int64(i), 1))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	delivered := 0
	for {
		select {
		case <-sub.C:
			delivered++
		default:
			require.Equal(t, subscriptionBuffer, delivered)
			return
		}
	}
}

func TestNotificationEventAddressing(t *testing.T) {
	ev := NewNotificationEvent(7, 42)
	assert.Equal(t, TableNotifications, ev.Table)
	assert.Equal(t, []int64{42}, ev.Recipients)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.OccurredAt.IsZero())
}
