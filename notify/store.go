// Package notify is the invite-notification gateway: it owns the visible
// "you were invited" alerts, keeps at most one visible per (user, party),
// pushes them on the user's notify channel and expires stale ones.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TypePartyInvite marks party-invite notifications in the store.
const TypePartyInvite = "partyInvite"

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	PartyID   string    `json:"partyId,omitempty"`
	From      string    `json:"from,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter narrows a retrieval. UserID is mandatory, the rest optional.
type Filter struct {
	UserID  string
	Type    string
	PartyID string
}

func (f Filter) matches(n Notification) bool {
	if n.UserID != f.UserID {
		return false
	}
	if f.Type != "" && n.Type != f.Type {
		return false
	}
	if f.PartyID != "" && n.PartyID != f.PartyID {
		return false
	}
	return true
}

// Store persists visible notifications.
type Store interface {
	Retrieve(ctx context.Context, f Filter) ([]Notification, error)
	Add(ctx context.Context, n Notification) error
	ClearByID(ctx context.Context, userID, id string) error
}

const keyPrefix = "notify:"

// RedisStore keeps each user's visible notifications in one hash keyed by
// notification id, values JSON.
type RedisStore struct {
	client redis.UniversalClient
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	return &RedisStore{client}, nil
}

func (s *RedisStore) key(userID string) string {
	return keyPrefix + userID
}

func (s *RedisStore) Retrieve(ctx context.Context, f Filter) ([]Notification, error) {
	values, err := s.client.HGetAll(ctx, s.key(f.UserID)).Result()
	if err != nil {
		return nil, err
	}

	var out []Notification
	for _, raw := range values {
		var n Notification
		if err := json.Unmarshal([]byte(raw), &n); err != nil {
			continue
		}
		if f.matches(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *RedisStore) Add(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key(n.UserID), n.ID, value).Err()
}

func (s *RedisStore) ClearByID(ctx context.Context, userID, id string) error {
	return s.client.HDel(ctx, s.key(userID), id).Err()
}

// MemoryStore is the single-node store, also used by tests.
type MemoryStore struct {
	mutex sync.Mutex
	byID  map[string]map[string]Notification // userID -> id -> notification
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]map[string]Notification)}
}

func (s *MemoryStore) Retrieve(_ context.Context, f Filter) ([]Notification, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	var out []Notification
	for _, n := range s.byID[f.UserID] {
		if f.matches(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *MemoryStore) Add(_ context.Context, n Notification) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	user, ok := s.byID[n.UserID]
	if !ok {
		user = make(map[string]Notification)
		s.byID[n.UserID] = user
	}
	user[n.ID] = n
	return nil
}

func (s *MemoryStore) ClearByID(_ context.Context, userID, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.byID[userID], id)
	return nil
}
