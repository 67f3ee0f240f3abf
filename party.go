package partyhub

import (
	"sync"

	"github.com/hivegate/partyhub/wire"
)

// member records who joined and through which client connection,
// in FIFO join order. Leader succession picks the oldest entry.
type member struct {
	userID   string
	clientID string
}

// Party is one live grouping of users. All fields behind mu; operations in
// this package lock a party for the whole validate-mutate-publish sequence
// so concurrent requests on the same party serialize.
type Party struct {
	ID string

	mu      sync.Mutex
	leader  string
	members []member
	invites map[string]struct{}
}

func newParty(partyID string) *Party {
	return &Party{
		ID:      partyID,
		invites: make(map[string]struct{}),
	}
}

// Channel returns the pub/sub channel carrying this party's events.
func (p *Party) Channel() string {
	return wire.PartyChannel(p.ID)
}

func (p *Party) String() string {
	return p.ID
}

// Snapshot copies the observable state, for init events and tests.
func (p *Party) Snapshot() wire.PartySnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot()
}

// Leader returns the current leader's user id.
func (p *Party) Leader() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.leader
}

// callers below hold p.mu

func (p *Party) snapshot() wire.PartySnapshot {
	snap := wire.PartySnapshot{
		ID:      p.ID,
		Leader:  p.leader,
		Members: make([]string, 0, len(p.members)),
		Invites: make([]string, 0, len(p.invites)),
	}
	for _, m := range p.members {
		snap.Members = append(snap.Members, m.userID)
	}
	for userID := range p.invites {
		snap.Invites = append(snap.Invites, userID)
	}
	return snap
}

func (p *Party) hasMember(userID string) bool {
	for _, m := range p.members {
		if m.userID == userID {
			return true
		}
	}
	return false
}

func (p *Party) memberClient(userID string) (string, bool) {
	for _, m := range p.members {
		if m.userID == userID {
			return m.clientID, true
		}
	}
	return "", false
}

func (p *Party) numMembers() int {
	return len(p.members)
}

func (p *Party) hasInvite(userID string) bool {
	_, ok := p.invites[userID]
	return ok
}

// addInvite is idempotent, re-inviting an invited user changes nothing.
// Members are never added to the invite set.
func (p *Party) addInvite(userID string) {
	if p.hasMember(userID) {
		return
	}
	p.invites[userID] = struct{}{}
}

func (p *Party) removeInvite(userID string) {
	delete(p.invites, userID)
}

// addMember moves userID from invites to members.
func (p *Party) addMember(userID, clientID string) {
	delete(p.invites, userID)
	if p.hasMember(userID) {
		return
	}
	p.members = append(p.members, member{userID: userID, clientID: clientID})
	if p.leader == "" {
		p.leader = userID
	}
}

// removeMember drops userID and reports whether it held leadership.
func (p *Party) removeMember(userID string) (wasLeader, ok bool) {
	for i, m := range p.members {
		if m.userID == userID {
			p.members = append(p.members[:i], p.members[i+1:]...)
			return p.leader == userID, true
		}
	}
	return false, false
}

// promoteOldest hands leadership to the longest-standing remaining member.
func (p *Party) promoteOldest() (string, bool) {
	if len(p.members) == 0 {
		return "", false
	}
	p.leader = p.members[0].userID
	return p.leader, true
}
