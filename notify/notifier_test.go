package notify

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivegate/partyhub/options"
	"github.com/hivegate/partyhub/wire"
)

type fixedClock struct {
	t time.Time
}

func (c fixedClock) Now() time.Time { return c.t }

type capturingPublisher struct {
	mutex  sync.Mutex
	pushes []wire.ServerMessage
}

func (p *capturingPublisher) Publish(channel string, msg wire.ServerMessage, opts ...options.BroadcastOption) error {
	msg.Channel = channel
	if err := options.Apply(&msg, opts...); err != nil {
		return err
	}
	p.mutex.Lock()
	p.pushes = append(p.pushes, msg)
	p.mutex.Unlock()
	return nil
}

func newTestNotifier(t *testing.T) (*Notifier, *MemoryStore, *capturingPublisher) {
	t.Helper()
	store := NewMemoryStore()
	pub := &capturingPublisher{}
	n := NewNotifier(NotifierCfgs{
		Store:     store,
		Publisher: pub,
		Clock:     fixedClock{t: time.UnixMilli(1700000000000)},
		Logger:    zerolog.Nop(),
	})
	t.Cleanup(n.Close)
	return n, store, pub
}

func visible(t *testing.T, store Store, userID, partyID string) []Notification {
	t.Helper()
	out, err := store.Retrieve(context.Background(), Filter{
		UserID:  userID,
		Type:    TypePartyInvite,
		PartyID: partyID,
	})
	require.NoError(t, err)
	return out
}

func TestEnsureInviteStoresAndPushes(t *testing.T) {
	n, store, pub := newTestNotifier(t)

	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))

	notifs := visible(t, store, "bob", "p1")
	require.Len(t, notifs, 1)
	assert.Equal(t, "alice", notifs[0].From)
	assert.Equal(t, TypePartyInvite, notifs[0].Type)

	require.Len(t, pub.pushes, 1)
	push := pub.pushes[0]
	assert.Equal(t, wire.NotifyChannel("bob"), push.Channel)
	assert.Equal(t, wire.EventNotifyInvite, push.Event)
	assert.True(t, push.ToClient)

	var payload wire.NotifyInvitePayload
	require.NoError(t, json.Unmarshal(push.Body, &payload))
	assert.Equal(t, "p1", payload.PartyID)
	assert.Equal(t, "alice", payload.From)
	assert.Equal(t, notifs[0].ID, payload.NotificationID)
}

func TestEnsureInviteKeepsAtMostOneVisible(t *testing.T) {
	n, store, pub := newTestNotifier(t)

	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))
	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))
	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))

	assert.Len(t, visible(t, store, "bob", "p1"), 1)
	assert.Len(t, pub.pushes, 1, "repeat invites push nothing")

	// separate parties keep separate alerts
	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p2", "carol"))
	assert.Len(t, visible(t, store, "bob", "p2"), 1)
	assert.Len(t, visible(t, store, "bob", "p1"), 1)
}

func TestEnsureInviteConcurrent(t *testing.T) {
	n, store, pub := newTestNotifier(t)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))
		}()
	}
	wg.Wait()

	assert.Len(t, visible(t, store, "bob", "p1"), 1, "concurrent invites must not stack alerts")
	pub.mutex.Lock()
	defer pub.mutex.Unlock()
	assert.Len(t, pub.pushes, 1)
}

func TestClearInvite(t *testing.T) {
	n, store, _ := newTestNotifier(t)

	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))
	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p2", "carol"))

	require.NoError(t, n.ClearInvite(context.Background(), "bob", "p1"))
	assert.Empty(t, visible(t, store, "bob", "p1"))
	assert.Len(t, visible(t, store, "bob", "p2"), 1, "other parties' alerts survive")

	// clearing an already clear pair is a no-op
	require.NoError(t, n.ClearInvite(context.Background(), "bob", "p1"))
}

func TestExpireDropsOnlyTheStaleAlert(t *testing.T) {
	n, store, _ := newTestNotifier(t)

	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))
	notifs := visible(t, store, "bob", "p1")
	require.Len(t, notifs, 1)

	n.expire(notifs[0])
	assert.Empty(t, visible(t, store, "bob", "p1"))

	// once gone, a fresh invite becomes visible again
	require.NoError(t, n.EnsureInvite(context.Background(), "bob", "p1", "alice"))
	assert.Len(t, visible(t, store, "bob", "p1"), 1)
}

func TestMemoryStoreFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, Notification{ID: "n1", UserID: "bob", Type: TypePartyInvite, PartyID: "p1"}))
	require.NoError(t, store.Add(ctx, Notification{ID: "n2", UserID: "bob", Type: TypePartyInvite, PartyID: "p2"}))
	require.NoError(t, store.Add(ctx, Notification{ID: "n3", UserID: "carol", Type: TypePartyInvite, PartyID: "p1"}))

	all, err := store.Retrieve(ctx, Filter{UserID: "bob"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := store.Retrieve(ctx, Filter{UserID: "bob", PartyID: "p1"})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "n1", one[0].ID)

	require.NoError(t, store.ClearByID(ctx, "bob", "n1"))
	none, err := store.Retrieve(ctx, Filter{UserID: "bob", PartyID: "p1"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
