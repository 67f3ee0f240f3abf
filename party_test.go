package partyhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParty() *Party {
	p := newParty("p1")
	p.leader = "alice"
	p.members = []member{{userID: "alice", clientID: "c1"}}
	return p
}

func TestPartyInvitesSkipMembers(t *testing.T) {
	p := newTestParty()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.addInvite("bob")
	p.addInvite("bob")
	p.addInvite("alice") // members are never invited

	snap := p.snapshot()
	assert.Equal(t, []string{"bob"}, snap.Invites)
}

func TestPartyAddMemberConsumesInvite(t *testing.T) {
	p := newTestParty()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.addInvite("bob")
	p.addMember("bob", "c2")

	snap := p.snapshot()
	assert.Equal(t, []string{"alice", "bob"}, snap.Members)
	assert.Empty(t, snap.Invites)
	assert.False(t, p.hasInvite("bob"))

	clientID, ok := p.memberClient("bob")
	require.True(t, ok)
	assert.Equal(t, "c2", clientID)
}

func TestPartyRemoveMember(t *testing.T) {
	p := newTestParty()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.addInvite("bob")
	p.addMember("bob", "c2")

	wasLeader, ok := p.removeMember("bob")
	require.True(t, ok)
	assert.False(t, wasLeader)

	wasLeader, ok = p.removeMember("alice")
	require.True(t, ok)
	assert.True(t, wasLeader)
	assert.Zero(t, p.numMembers())

	_, ok = p.removeMember("alice")
	assert.False(t, ok)
}

func TestPartyPromoteOldest(t *testing.T) {
	p := newTestParty()
	p.mu.Lock()
	defer p.mu.Unlock()

	p.addInvite("bob")
	p.addMember("bob", "c2")
	p.addInvite("carol")
	p.addMember("carol", "c3")

	p.removeMember("alice")
	newLeader, promoted := p.promoteOldest()
	require.True(t, promoted)
	assert.Equal(t, "bob", newLeader, "seniority order decides succession")
	assert.Equal(t, "bob", p.leader)
}

func TestPartyChannel(t *testing.T) {
	p := newParty("abc")
	assert.Equal(t, "party.abc", p.Channel())
}
