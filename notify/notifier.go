package notify

import (
	"context"
	"sync"
	"time"

	"github.com/RussellLuo/timingwheel"
	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"

	"github.com/hivegate/partyhub/options"
	"github.com/hivegate/partyhub/wire"
)

// DefaultInviteTTL is how long an unanswered invite alert stays visible.
const DefaultInviteTTL = 24 * time.Hour

// EventPublisher pushes realtime notification events. The hub satisfies
// this; nil disables pushes and leaves only the stored alert.
type EventPublisher interface {
	Publish(channel string, msg wire.ServerMessage, opts ...options.BroadcastOption) error
}

// Clock is injected for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// NotifierCfgs wires a Notifier.
type NotifierCfgs struct {
	Store     Store
	Publisher EventPublisher
	Clock     Clock
	InviteTTL time.Duration
	Logger    zerolog.Logger
}

// Notifier enforces the at-most-one-visible rule for invite alerts and
// ages them out on a timing wheel. Expiry clears the alert only; party
// state is never touched from here.
type Notifier struct {
	// mu serializes the retrieve-then-mutate sequences; without it two
	// concurrent invites for the same (user, party) would both observe no
	// alert and both add one.
	mu sync.Mutex

	store Store
	pub   EventPublisher
	clock Clock
	ttl   time.Duration
	wheel *timingwheel.TimingWheel

	log zerolog.Logger
}

func NewNotifier(cfg NotifierCfgs) *Notifier {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = DefaultInviteTTL
	}

	wheel := timingwheel.NewTimingWheel(time.Second, 3600)
	wheel.Start()
	return &Notifier{
		store: cfg.Store,
		pub:   cfg.Publisher,
		clock: cfg.Clock,
		ttl:   cfg.InviteTTL,
		wheel: wheel,
		log:   cfg.Logger,
	}
}

func (n *Notifier) Close() {
	n.wheel.Stop()
}

// EnsureInvite makes an invite alert visible for (userID, partyID) unless
// one already is, so repeated invites never stack alerts.
func (n *Notifier) EnsureInvite(ctx context.Context, userID, partyID, fromUser string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	existing, err := n.store.Retrieve(ctx, Filter{
		UserID:  userID,
		Type:    TypePartyInvite,
		PartyID: partyID,
	})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	notif := Notification{
		ID:        ksuid.New().String(),
		UserID:    userID,
		Type:      TypePartyInvite,
		PartyID:   partyID,
		From:      fromUser,
		CreatedAt: n.clock.Now(),
	}
	if err := n.store.Add(ctx, notif); err != nil {
		return err
	}

	n.push(notif)
	n.wheel.AfterFunc(n.ttl, func() { n.expire(notif) })
	return nil
}

// ClearInvite removes every visible invite alert for (userID, partyID).
// Used on accept, decline and uninvite.
func (n *Notifier) ClearInvite(ctx context.Context, userID, partyID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	existing, err := n.store.Retrieve(ctx, Filter{
		UserID:  userID,
		Type:    TypePartyInvite,
		PartyID: partyID,
	})
	if err != nil {
		return err
	}

	for _, notif := range existing {
		if err := n.store.ClearByID(ctx, userID, notif.ID); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) push(notif Notification) {
	if n.pub == nil {
		return
	}
	msg := wire.ServerMessage{
		Event: wire.EventNotifyInvite,
		Body: wire.Marshal(wire.NotifyInvitePayload{
			NotificationID: notif.ID,
			PartyID:        notif.PartyID,
			From:           notif.From,
			Time:           notif.CreatedAt.UnixMilli(),
		}),
	}
	if err := n.pub.Publish(wire.NotifyChannel(notif.UserID), msg, options.ToClient()); err != nil {
		n.log.Warn().Err(err).Str("user", notif.UserID).Msg("notify push failed")
	}
}

// expire drops a stale alert that was never accepted, declined or revoked.
func (n *Notifier) expire(notif Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.store.ClearByID(ctx, notif.UserID, notif.ID); err != nil {
		n.log.Warn().Err(err).Str("user", notif.UserID).Str("notification", notif.ID).Msg("expiring stale invite failed")
		return
	}
	n.log.Debug().Str("user", notif.UserID).Str("party", notif.PartyID).Msg("stale invite notification expired")
}
