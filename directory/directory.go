// Package directory resolves user ids and names to display info. The
// account system itself is external; this package fronts it with an
// optional redis cache so event enrichment stays cheap.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hivegate/partyhub/wire"
)

// Resolver is the upstream source of user info.
type Resolver interface {
	FindUsersByID(ctx context.Context, ids []string) (map[string]wire.UserInfo, error)
	FindUsersByName(ctx context.Context, names []string) (map[string]wire.UserInfo, error)
}

// Static is an in-memory resolver for single-node setups and tests.
type Static struct {
	mutex  sync.RWMutex
	byID   map[string]wire.UserInfo
	byName map[string]wire.UserInfo
}

var _ Resolver = (*Static)(nil)

func NewStatic() *Static {
	return &Static{
		byID:   make(map[string]wire.UserInfo),
		byName: make(map[string]wire.UserInfo),
	}
}

func (s *Static) Put(info wire.UserInfo) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.byID[info.ID] = info
	if info.Name != "" {
		s.byName[info.Name] = info
	}
}

func (s *Static) FindUsersByID(_ context.Context, ids []string) (map[string]wire.UserInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make(map[string]wire.UserInfo, len(ids))
	for _, id := range ids {
		if info, ok := s.byID[id]; ok {
			out[id] = info
		}
	}
	return out, nil
}

func (s *Static) FindUsersByName(_ context.Context, names []string) (map[string]wire.UserInfo, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	out := make(map[string]wire.UserInfo, len(names))
	for _, name := range names {
		if info, ok := s.byName[name]; ok {
			out[name] = info
		}
	}
	return out, nil
}

const (
	idKeyPrefix   = "user:id:"
	nameKeyPrefix = "user:name:"

	// DefaultCacheTTL matches how long profile info may lag a rename.
	DefaultCacheTTL = time.Hour
)

// Cached layers a redis JSON cache over a resolver. Cache failures fall
// through to the resolver; resolver failures surface.
type Cached struct {
	client   redis.UniversalClient
	resolver Resolver
	ttl      time.Duration
}

var _ Resolver = (*Cached)(nil)

func NewCached(client redis.UniversalClient, resolver Resolver, ttl time.Duration) (*Cached, error) {
	if resolver == nil {
		return nil, errors.New("directory: nil resolver")
	}
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cached{client: client, resolver: resolver, ttl: ttl}, nil
}

func (c *Cached) FindUsersByID(ctx context.Context, ids []string) (map[string]wire.UserInfo, error) {
	return c.find(ctx, idKeyPrefix, ids, c.resolver.FindUsersByID)
}

func (c *Cached) FindUsersByName(ctx context.Context, names []string) (map[string]wire.UserInfo, error) {
	return c.find(ctx, nameKeyPrefix, names, c.resolver.FindUsersByName)
}

func (c *Cached) find(
	ctx context.Context,
	prefix string,
	keys []string,
	resolve func(context.Context, []string) (map[string]wire.UserInfo, error),
) (map[string]wire.UserInfo, error) {
	out := make(map[string]wire.UserInfo, len(keys))
	var misses []string

	for _, key := range keys {
		raw, err := c.client.Get(ctx, prefix+key).Result()
		if err != nil {
			misses = append(misses, key)
			continue
		}
		var info wire.UserInfo
		if err := json.Unmarshal([]byte(raw), &info); err != nil {
			misses = append(misses, key)
			continue
		}
		out[key] = info
	}

	if len(misses) == 0 {
		return out, nil
	}

	resolved, err := resolve(ctx, misses)
	if err != nil {
		return nil, err
	}
	for key, info := range resolved {
		out[key] = info
		if value, err := json.Marshal(info); err == nil {
			c.client.Set(ctx, prefix+key, value, c.ttl)
		}
	}
	return out, nil
}
