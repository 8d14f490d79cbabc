package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"prodboard_backend/internal/metrics"
)

// Table identifies the source table of an insert event.
type Table string

const (
	TableMessages      Table = "messages"
	TableNotifications Table = "notifications"
)

// Event is a row-insert signal. It carries just enough identity to let a
// client re-query the affected state; it is not a payload-delivery vehicle.
type Event struct {
	ID             string    `json:"id"`
	Table          Table     `json:"table"`
	RowID          int64     `json:"row_id"`
	ConversationID int64     `json:"conversation_id,omitempty"`
	Recipients     []int64   `json:"recipients"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewMessageEvent builds an insert event for the messages table addressed
// to the conversation's participants.
func NewMessageEvent(messageID, conversationID int64, participantIDs []int64) Event {
	return Event{
		ID:             uuid.NewString(),
		Table:          TableMessages,
		RowID:          messageID,
		ConversationID: conversationID,
		Recipients:     participantIDs,
		OccurredAt:     time.Now().UTC(),
	}
}

// NewNotificationEvent builds an insert event for the notifications table
// addressed to the owning user.
func NewNotificationEvent(notificationID, userID int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Table:      TableNotifications,
		RowID:      notificationID,
		Recipients: []int64{userID},
		OccurredAt: time.Now().UTC(),
	}
}

// subscriptionBuffer bounds how far a slow subscriber may fall behind
// before events are dropped. Delivery is at-most-once by design.
const subscriptionBuffer = 32

// Subscription is one client's view of the channel. Events arrive on C
// until Close is called.
type Subscription struct {
	UserID int64
	C      chan Event

	broker *Broker
	once   sync.Once
}

// Close deregisters the subscription and releases its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.broker.unsubscribe(s)
		close(s.C)
	})
}

// Broker is the propagation channel: it routes insert events to the
// subscriptions of the users named in the event, filtering server-side so
// clients never see events for conversations they are not part of.
//
// When a redis client is configured the broker publishes through a shared
// pub/sub channel so every instance re-delivers to its local subscribers;
// without redis it degrades to single-instance in-process delivery.
type Broker struct {
	mu   sync.RWMutex
	subs map[int64]map[*Subscription]struct{}

	rdb     *redis.Client
	channel string
	log     *zap.SugaredLogger
}

func NewBroker(rdb *redis.Client, log *zap.SugaredLogger) *Broker {
	return &Broker{
		subs:    make(map[int64]map[*Subscription]struct{}),
		rdb:     rdb,
		channel: "messaging:events",
		log:     log,
	}
}

// Run consumes the redis backplane until ctx is cancelled. It is a no-op
// when redis is not configured. Reconnection is go-redis's responsibility;
// a gap in delivery degrades to "no live updates until next fetch".
func (b *Broker) Run(ctx context.Context) {
	if b.rdb == nil {
		return
	}
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				b.log.Warnw("events: bad payload on backplane", "error", err)
				continue
			}
			b.deliverLocal(ev)
		}
	}
}

// Subscribe registers a new subscription for the given user.
func (b *Broker) Subscribe(userID int64) *Subscription {
	s := &Subscription{
		UserID: userID,
		C:      make(chan Event, subscriptionBuffer),
		broker: b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*Subscription]struct{})
	}
	b.subs[userID][s] = struct{}{}
	return s
}

func (b *Broker) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[s.UserID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(b.subs, s.UserID)
		}
	}
}

// Publish routes the event to its recipients. With a backplane configured
// the event travels through redis and comes back via Run, so remote
// instances see it too; otherwise it is delivered in-process.
func (b *Broker) Publish(ctx context.Context, ev Event) {
	metrics.EventsPublished.WithLabelValues(string(ev.Table)).Inc()

	if b.rdb != nil {
		payload, err := json.Marshal(ev)
		if err != nil {
			b.log.Errorw("events: marshal", "error", err)
			return
		}
		if err := b.rdb.Publish(ctx, b.channel, payload).Err(); err != nil {
			// Degrade to local delivery rather than losing the event entirely.
			b.log.Warnw("events: backplane publish failed, delivering locally", "error", err)
			b.deliverLocal(ev)
		}
		return
	}
	b.deliverLocal(ev)
}

func (b *Broker) deliverLocal(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, uid := range ev.Recipients {
		for s := range b.subs[uid] {
			select {
			case s.C <- ev:
			default:
				// Slow subscriber: drop rather than block the publisher.
				metrics.EventsDropped.Inc()
			}
		}
	}
}
