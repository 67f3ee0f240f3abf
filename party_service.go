package partyhub

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/hivegate/partyhub/partyerr"
	"github.com/hivegate/partyhub/wire"
)

// DefaultMaxPartySize caps membership unless overridden in the config.
const DefaultMaxPartySize = 8

// InviteNotifier owns the visible "you were invited" alerts. EnsureInvite
// must keep at most one visible alert per (user, party); ClearInvite
// resolves it.
type InviteNotifier interface {
	EnsureInvite(ctx context.Context, userID, partyID, fromUser string) error
	ClearInvite(ctx context.Context, userID, partyID string) error
}

// UserDirectory resolves user ids to display info for event payloads.
type UserDirectory interface {
	FindUsersByID(ctx context.Context, ids []string) (map[string]wire.UserInfo, error)
}

// MessageProcessor filters chat text and resolves mentions.
type MessageProcessor interface {
	FilterChatMessage(text string) string
	ProcessMessageContents(ctx context.Context, text string) (string, []wire.UserInfo, error)
}

// PartyServiceCfgs wires the party service's collaborators.
type PartyServiceCfgs struct {
	Manager      *PartyManager
	Clients      *ClientDirectory
	Publisher    Publisher
	Notifier     InviteNotifier
	Users        UserDirectory
	Messages     MessageProcessor
	Clock        Clock
	MaxPartySize int
	Logger       zerolog.Logger
}

// PartyService implements the party operations over the in-memory
// registry. Failures carry a partyerr code for the API layer; notification
// clearing failures are logged and swallowed, they never block a state
// transition.
type PartyService struct {
	manager  *PartyManager
	clients  *ClientDirectory
	pub      Publisher
	notifier InviteNotifier
	users    UserDirectory
	msgs     MessageProcessor
	clock    Clock
	maxSize  int

	log zerolog.Logger
}

func NewPartyService(cfg PartyServiceCfgs) *PartyService {
	if cfg.Manager == nil {
		cfg.Manager = NewPartyManager()
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.MaxPartySize <= 0 {
		cfg.MaxPartySize = DefaultMaxPartySize
	}
	return &PartyService{
		manager:  cfg.Manager,
		clients:  cfg.Clients,
		pub:      cfg.Publisher,
		notifier: cfg.Notifier,
		users:    cfg.Users,
		msgs:     cfg.Messages,
		clock:    cfg.Clock,
		maxSize:  cfg.MaxPartySize,
		log:      cfg.Logger,
	}
}

// Manager exposes the registry, mainly for the API layer and tests.
func (s *PartyService) Manager() *PartyManager {
	return s.manager
}

// Invite adds invitedUser to the inviter's party, creating the party when
// the inviter has none. The invite state commits even when the visible
// notification cannot be delivered; that failure surfaces as
// NotificationFailure with the party still returned.
func (s *PartyService) Invite(ctx context.Context, leaderUserID, leaderClientID, invitedUser string) (*Party, error) {
	conn := s.clients.GetByID(leaderUserID, leaderClientID)
	if conn == nil {
		return nil, partyerr.UserOffline.Err("inviter has no active client")
	}
	if invitedUser == leaderUserID {
		return nil, partyerr.InvalidSelfAction.Err("cannot invite yourself")
	}

	party, bound := s.manager.PartyOfClient(leaderUserID, leaderClientID)
	if bound {
		party.mu.Lock()
		if party.leader != leaderUserID {
			party.mu.Unlock()
			return nil, partyerr.InsufficientPermissions.Err("only the leader can invite")
		}
		if party.hasMember(invitedUser) {
			party.mu.Unlock()
			return nil, partyerr.AlreadyMember.Err(invitedUser)
		}
		party.addInvite(invitedUser)
		s.publish(party, wire.EventInvite, wire.InvitePayload{
			InvitedUser: invitedUser,
			UserInfo:    s.lookupUser(ctx, invitedUser),
			Time:        s.now(),
		})
		party.mu.Unlock()
	} else {
		party = s.manager.CreateParty(leaderUserID, leaderClientID)
		party.mu.Lock()
		party.addInvite(invitedUser)
		if err := conn.Subscribe(party.Channel(), s.initMessage(ctx, party), nil); err != nil {
			s.log.Warn().Err(err).Str("party", party.ID).Msg("init event not delivered to party creator")
		}
		party.mu.Unlock()
	}

	if err := s.notifier.EnsureInvite(ctx, invitedUser, party.ID, leaderUserID); err != nil {
		s.log.Warn().Err(err).Str("party", party.ID).Str("user", invitedUser).Msg("invite notification failed")
		return party, partyerr.NotificationFailure.Err(err.Error())
	}
	return party, nil
}

// Decline clears the user's visible invite alert. It mutates no party
// state, emits no event and never fails: the decision stays invisible to
// the other members.
func (s *PartyService) Decline(ctx context.Context, partyID, userID string) {
	s.clearInviteNotification(ctx, userID, partyID)
}

// RemoveInvite revokes target's pending invite.
func (s *PartyService) RemoveInvite(ctx context.Context, partyID, removingUser, target string) error {
	s.clearInviteNotification(ctx, target, partyID)

	party, err := s.manager.FindParty(partyID)
	if err != nil {
		return partyerr.NotFoundOrNotInParty.Err(partyID)
	}

	party.mu.Lock()
	defer party.mu.Unlock()
	if !party.hasMember(removingUser) {
		return partyerr.NotFoundOrNotInParty.Err(removingUser)
	}
	if party.leader != removingUser {
		return partyerr.InsufficientPermissions.Err("only the leader can uninvite")
	}
	if !party.hasInvite(target) {
		return partyerr.InvalidAction.Err("user is not invited")
	}

	party.removeInvite(target)
	s.publish(party, wire.EventUninvite, wire.UninvitePayload{Target: target, Time: s.now()})
	return nil
}

// AcceptInvite turns a pending invite into membership through the given
// client connection. Joining the new party happens before any previous
// membership is torn down, so subscribers never observe the client
// partyless in between.
func (s *PartyService) AcceptInvite(ctx context.Context, partyID, userID, clientID string) error {
	s.clearInviteNotification(ctx, userID, partyID)

	party, err := s.manager.FindParty(partyID)
	if err != nil {
		return partyerr.NotFoundOrNotInvited.Err(partyID)
	}

	conn := s.clients.GetByID(userID, clientID)

	party.mu.Lock()
	if !party.hasInvite(userID) {
		party.mu.Unlock()
		return partyerr.NotFoundOrNotInvited.Err(userID)
	}
	if party.numMembers() >= s.maxSize {
		party.mu.Unlock()
		return partyerr.PartyFull.Err(party.ID)
	}
	if conn == nil {
		party.mu.Unlock()
		return partyerr.UserOffline.Err("no active client")
	}
	if conn.ClientType() != ClientGame {
		party.mu.Unlock()
		return partyerr.InvalidAction.Err("party membership requires a game client")
	}

	oldPartyID, hadOld := s.manager.BoundParty(userID, clientID)

	party.addMember(userID, clientID)
	s.manager.Bind(userID, clientID, partyID)
	s.publish(party, wire.EventJoin, wire.JoinPayload{
		User:     userID,
		UserInfo: s.lookupUser(ctx, userID),
		Time:     s.now(),
	})
	if err := conn.Subscribe(party.Channel(), s.initMessage(ctx, party), nil); err != nil {
		s.log.Warn().Err(err).Str("party", party.ID).Msg("init event not delivered to joiner")
	}
	party.mu.Unlock()

	// The old membership goes away only now that the new one is visible.
	if hadOld && oldPartyID != partyID {
		oldParty, err := s.manager.FindParty(oldPartyID)
		if err != nil {
			s.log.Error().Str("party", oldPartyID).Str("user", userID).Msg("client binding pointed at a nonexistent party")
			s.manager.UnbindIf(userID, clientID, oldPartyID)
		} else {
			s.removeClientFromParty(oldParty, userID, clientID)
		}
	}
	return nil
}

// LeaveParty removes the calling member from the party. The member record
// knows which client connection holds the membership, so teardown targets
// that connection even when the command arrived through another session of
// the same user.
func (s *PartyService) LeaveParty(ctx context.Context, partyID, userID, clientID string) error {
	party, err := s.manager.FindParty(partyID)
	if err != nil {
		return partyerr.NotFoundOrNotInParty.Err(partyID)
	}

	party.mu.Lock()
	memberClientID, isMember := party.memberClient(userID)
	party.mu.Unlock()
	if !isMember {
		return partyerr.NotFoundOrNotInParty.Err(userID)
	}

	s.removeClientFromParty(party, userID, memberClientID)
	return nil
}

// KickPlayer forcibly removes target; leader only. Emits kick, then the
// usual leave through the departure path.
func (s *PartyService) KickPlayer(ctx context.Context, partyID, kickingUser, target string) error {
	party, err := s.manager.FindParty(partyID)
	if err != nil {
		return partyerr.NotFoundOrNotInParty.Err(partyID)
	}

	party.mu.Lock()
	if !party.hasMember(kickingUser) {
		party.mu.Unlock()
		return partyerr.NotFoundOrNotInParty.Err(kickingUser)
	}
	if party.leader != kickingUser {
		party.mu.Unlock()
		return partyerr.InsufficientPermissions.Err("only the leader can kick")
	}
	if target == kickingUser {
		party.mu.Unlock()
		return partyerr.InvalidSelfAction.Err("cannot kick yourself, leave instead")
	}
	targetClientID, isMember := party.memberClient(target)
	if !isMember {
		party.mu.Unlock()
		return partyerr.InvalidAction.Err("target is not a member")
	}
	s.publish(party, wire.EventKick, wire.KickPayload{Target: target, Time: s.now()})
	party.mu.Unlock()

	s.removeClientFromParty(party, target, targetClientID)
	return nil
}

// ChangeLeader hands leadership to another member.
func (s *PartyService) ChangeLeader(ctx context.Context, partyID, oldLeader, newLeader string) error {
	party, err := s.manager.FindParty(partyID)
	if err != nil {
		return partyerr.NotFoundOrNotInParty.Err(partyID)
	}

	party.mu.Lock()
	defer party.mu.Unlock()
	if !party.hasMember(oldLeader) {
		return partyerr.NotFoundOrNotInParty.Err(oldLeader)
	}
	if party.leader != oldLeader {
		return partyerr.InsufficientPermissions.Err("only the leader can transfer leadership")
	}
	if newLeader == oldLeader {
		return partyerr.InvalidSelfAction.Err("already the leader")
	}
	if !party.hasMember(newLeader) {
		return partyerr.InvalidAction.Err("target is not a member")
	}

	party.leader = newLeader
	s.publish(party, wire.EventLeaderChange, wire.LeaderChangePayload{Leader: newLeader, Time: s.now()})
	return nil
}

// SendChatMessage broadcasts an ephemeral chat line to the party channel.
// Nothing is persisted; only currently subscribed clients see it.
func (s *PartyService) SendChatMessage(ctx context.Context, partyID, userID, text string) error {
	party, err := s.manager.FindParty(partyID)
	if err != nil {
		return partyerr.NotFoundOrNotInParty.Err(partyID)
	}

	party.mu.Lock()
	isMember := party.hasMember(userID)
	party.mu.Unlock()
	if !isMember {
		return partyerr.NotFoundOrNotInParty.Err(userID)
	}

	filtered := s.msgs.FilterChatMessage(text)
	processed, mentions, err := s.msgs.ProcessMessageContents(ctx, filtered)
	if err != nil {
		return partyerr.From(err)
	}

	party.mu.Lock()
	s.publish(party, wire.EventChatMessage, wire.ChatMessagePayload{
		From:     userID,
		Time:     s.now(),
		Text:     processed,
		Mentions: mentions,
	})
	party.mu.Unlock()
	return nil
}

// RemoveClientFromParty is the disconnect callback: best-effort removal of
// whatever party the client is bound to. Never errors; inconsistencies are
// logged and repaired.
func (s *PartyService) RemoveClientFromParty(userID, clientID string) {
	partyID, bound := s.manager.BoundParty(userID, clientID)
	if !bound {
		return
	}
	party, err := s.manager.FindParty(partyID)
	if err != nil {
		s.log.Error().Str("party", partyID).Str("user", userID).Msg("client binding pointed at a nonexistent party")
		s.manager.UnbindIf(userID, clientID, partyID)
		return
	}
	s.removeClientFromParty(party, userID, clientID)
}

// removeClientFromParty is the single departure path shared by leave, kick,
// party switch and disconnect. It emits leave, promotes a successor when
// the leader departs, severs the client binding only while it still points
// here, and deletes the party once empty.
func (s *PartyService) removeClientFromParty(party *Party, userID, clientID string) {
	party.mu.Lock()
	wasLeader, ok := party.removeMember(userID)
	if !ok {
		party.mu.Unlock()
		// No member record, but a binding may still point here; sever it
		// so the client does not stay attached to a party it left.
		s.manager.UnbindIf(userID, clientID, party.ID)
		return
	}
	s.publish(party, wire.EventLeave, wire.LeavePayload{User: userID, Time: s.now()})

	empty := party.numMembers() == 0
	if !empty && wasLeader {
		if newLeader, promoted := party.promoteOldest(); promoted {
			s.publish(party, wire.EventLeaderChange, wire.LeaderChangePayload{Leader: newLeader, Time: s.now()})
		}
	}
	party.mu.Unlock()

	if conn := s.clients.GetByID(userID, clientID); conn != nil {
		conn.Unsubscribe(party.Channel())
	}
	s.manager.UnbindIf(userID, clientID, party.ID)
	if empty {
		s.manager.DeleteParty(party.ID)
	}
}

// initMessage builds the init-event factory for a subscription. The
// factory runs while the caller holds the party lock, so the snapshot is
// consistent with the event stream position.
func (s *PartyService) initMessage(ctx context.Context, party *Party) InitFactory {
	return func() (wire.ServerMessage, error) {
		snap := party.snapshot()
		ids := make([]string, 0, len(snap.Members)+len(snap.Invites))
		ids = append(ids, snap.Members...)
		ids = append(ids, snap.Invites...)
		payload := wire.InitPayload{
			Party:     snap,
			UserInfos: s.lookupUsers(ctx, ids),
			Time:      s.now(),
		}
		return wire.ServerMessage{Event: wire.EventInit, Body: wire.Marshal(payload)}, nil
	}
}

func (s *PartyService) publish(party *Party, event string, payload any) {
	msg := wire.ServerMessage{Event: event, Body: wire.Marshal(payload)}
	if err := s.pub.Publish(party.Channel(), msg); err != nil {
		s.log.Warn().Err(err).Str("party", party.ID).Str("event", event).Msg("publish failed")
	}
}

func (s *PartyService) clearInviteNotification(ctx context.Context, userID, partyID string) {
	if err := s.notifier.ClearInvite(ctx, userID, partyID); err != nil {
		s.log.Warn().Err(err).Str("party", partyID).Str("user", userID).Msg("clearing invite notification failed")
	}
}

func (s *PartyService) lookupUser(ctx context.Context, id string) wire.UserInfo {
	infos := s.lookupUsers(ctx, []string{id})
	if len(infos) == 1 {
		return infos[0]
	}
	return wire.UserInfo{ID: id}
}

// lookupUsers resolves display info, falling back to bare ids when the
// directory cannot answer; event delivery never waits on a perfect lookup.
func (s *PartyService) lookupUsers(ctx context.Context, ids []string) []wire.UserInfo {
	out := make([]wire.UserInfo, 0, len(ids))
	found, err := s.users.FindUsersByID(ctx, ids)
	if err != nil {
		s.log.Warn().Err(err).Msg("user directory lookup failed")
		found = nil
	}
	for _, id := range ids {
		if info, ok := found[id]; ok {
			out = append(out, info)
		} else {
			out = append(out, wire.UserInfo{ID: id})
		}
	}
	return out
}

func (s *PartyService) now() int64 {
	return s.clock.Now().UnixMilli()
}
