package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/guard-forms/pkg/errors"
)

// Store persists form sessions.
type Store interface {
	Get(ctx context.Context, id string) (*FormSession, error)
	Save(ctx context.Context, s *FormSession) error
	Delete(ctx context.Context, id string) error
}

var errSessionNotFound = appErrors.Clone(appErrors.ErrNotFound, "form session not found")

// MemoryStore keeps sessions in process. Entries expire after ttl of inactivity.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	session *FormSession
	expires time.Time
}

// NewMemoryStore creates an in-process store. A non-positive ttl disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), ttl: ttl, now: time.Now}
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, id string) (*FormSession, error) {
	m.mu.RLock()
	entry, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || (!entry.expires.IsZero() && m.now().After(entry.expires)) {
		return nil, errSessionNotFound
	}
	return entry.session.clone(), nil
}

// Save stores a copy of s and refreshes its expiry.
func (m *MemoryStore) Save(_ context.Context, s *FormSession) error {
	entry := memoryEntry{session: s.clone()}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.entries[s.ID] = entry
	m.mu.Unlock()
	return nil
}

// Delete drops a session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns their ids.
func (m *MemoryStore) Sweep() []string {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0)
	for id, entry := range m.entries {
		if !entry.expires.IsZero() && now.After(entry.expires) {
			delete(m.entries, id)
			out = append(out, id)
		}
	}
	return out
}

// RedisClient is the part of the go-redis client the store needs.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps sessions as JSON values with a sliding TTL.
type RedisStore struct {
	client RedisClient
	ttl    time.Duration
	prefix string
}

// NewRedisStore wraps a redis client.
func NewRedisStore(client RedisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, prefix: "guard-forms:session:"}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + id
}

// Get loads a session.
func (r *RedisStore) Get(ctx context.Context, id string) (*FormSession, error) {
	raw, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errSessionNotFound
		}
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	var s FormSession
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &s, nil
}

// Save writes a session and refreshes its TTL.
func (r *RedisStore) Save(ctx context.Context, s *FormSession) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, r.key(s.ID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("store session %s: %w", s.ID, err)
	}
	return nil
}

// Delete removes a session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
