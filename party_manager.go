package partyhub

import (
	"errors"
	"sync"

	uuid "github.com/iris-contrib/go.uuid"

	"github.com/hivegate/partyhub/metrics"
)

var ErrPartyNotFound = errors.New("party not found")

type clientKey struct {
	userID   string
	clientID string
}

// PartyManager owns the party registry and the client-to-party index.
// A client connection is bound to at most one party at a time; the index
// lets departure handling find that party without scanning the registry.
type PartyManager struct {
	partiesMutex  sync.RWMutex
	parties       map[string]*Party
	clientParties map[clientKey]string
}

func NewPartyManager() *PartyManager {
	return &PartyManager{
		parties:       make(map[string]*Party),
		clientParties: make(map[clientKey]string),
	}
}

func (m *PartyManager) FindParty(partyID string) (*Party, error) {
	m.partiesMutex.RLock()
	defer m.partiesMutex.RUnlock()
	if party, exists := m.parties[partyID]; exists {
		return party, nil
	}
	return nil, ErrPartyNotFound
}

// CreateParty builds a fresh one-member party led by the given user and
// binds the creating client to it in the same registry transaction.
func (m *PartyManager) CreateParty(leaderUserID, leaderClientID string) *Party {
	m.partiesMutex.Lock()
	defer m.partiesMutex.Unlock()

	party := newParty(m.genID())
	party.leader = leaderUserID
	party.members = []member{{userID: leaderUserID, clientID: leaderClientID}}

	m.parties[party.ID] = party
	m.clientParties[clientKey{leaderUserID, leaderClientID}] = party.ID
	metrics.RecordPartyCreated()
	return party
}

// DeleteParty drops an emptied party from the registry.
func (m *PartyManager) DeleteParty(partyID string) {
	m.partiesMutex.Lock()
	defer m.partiesMutex.Unlock()
	if _, exists := m.parties[partyID]; exists {
		delete(m.parties, partyID)
		metrics.RecordPartyDeleted()
	}
}

// Bind points a client connection at a party, replacing any previous binding.
func (m *PartyManager) Bind(userID, clientID, partyID string) {
	m.partiesMutex.Lock()
	defer m.partiesMutex.Unlock()
	m.clientParties[clientKey{userID, clientID}] = partyID
}

// UnbindIf severs the binding only while it still points at partyID.
// The client may already belong to a new party, in which case the fresh
// binding must survive the old party's teardown.
func (m *PartyManager) UnbindIf(userID, clientID, partyID string) bool {
	m.partiesMutex.Lock()
	defer m.partiesMutex.Unlock()
	key := clientKey{userID, clientID}
	if m.clientParties[key] != partyID {
		return false
	}
	delete(m.clientParties, key)
	return true
}

// BoundParty reports which party a client connection currently belongs to.
func (m *PartyManager) BoundParty(userID, clientID string) (string, bool) {
	m.partiesMutex.RLock()
	defer m.partiesMutex.RUnlock()
	partyID, ok := m.clientParties[clientKey{userID, clientID}]
	return partyID, ok
}

// PartyOfClient resolves the client binding straight to the party record.
func (m *PartyManager) PartyOfClient(userID, clientID string) (*Party, bool) {
	m.partiesMutex.RLock()
	defer m.partiesMutex.RUnlock()
	partyID, ok := m.clientParties[clientKey{userID, clientID}]
	if !ok {
		return nil, false
	}
	party, ok := m.parties[partyID]
	return party, ok
}

// NumParties reports the registry size.
func (m *PartyManager) NumParties() int {
	m.partiesMutex.RLock()
	defer m.partiesMutex.RUnlock()
	return len(m.parties)
}

func (m *PartyManager) genID() string {
	return uuid.Must(uuid.NewV4()).String()
}
