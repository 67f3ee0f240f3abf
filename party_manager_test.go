package partyhub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartyManagerCreateBindsCreator(t *testing.T) {
	m := NewPartyManager()

	party := m.CreateParty("alice", "c1")
	require.NotNil(t, party)
	assert.NotEmpty(t, party.ID)
	assert.Equal(t, "alice", party.Leader())
	assert.Equal(t, 1, m.NumParties())

	found, err := m.FindParty(party.ID)
	require.NoError(t, err)
	assert.Same(t, party, found)

	boundID, ok := m.BoundParty("alice", "c1")
	require.True(t, ok)
	assert.Equal(t, party.ID, boundID)

	byClient, ok := m.PartyOfClient("alice", "c1")
	require.True(t, ok)
	assert.Same(t, party, byClient)
}

func TestPartyManagerFindMissing(t *testing.T) {
	m := NewPartyManager()

	_, err := m.FindParty("nope")
	assert.ErrorIs(t, err, ErrPartyNotFound)
}

func TestPartyManagerUniqueIDs(t *testing.T) {
	m := NewPartyManager()

	a := m.CreateParty("alice", "c1")
	b := m.CreateParty("bob", "c2")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, m.NumParties())
}

func TestPartyManagerUnbindIf(t *testing.T) {
	m := NewPartyManager()
	party := m.CreateParty("alice", "c1")

	// rebinding to a newer party makes the old unbind a no-op
	m.Bind("alice", "c1", "newer-party")
	assert.False(t, m.UnbindIf("alice", "c1", party.ID))

	boundID, ok := m.BoundParty("alice", "c1")
	require.True(t, ok)
	assert.Equal(t, "newer-party", boundID)

	assert.True(t, m.UnbindIf("alice", "c1", "newer-party"))
	_, ok = m.BoundParty("alice", "c1")
	assert.False(t, ok)
}

func TestPartyManagerDeleteParty(t *testing.T) {
	m := NewPartyManager()
	party := m.CreateParty("alice", "c1")

	m.DeleteParty(party.ID)
	assert.Equal(t, 0, m.NumParties())
	_, err := m.FindParty(party.ID)
	assert.ErrorIs(t, err, ErrPartyNotFound)

	// deleting twice is harmless
	m.DeleteParty(party.ID)
}
