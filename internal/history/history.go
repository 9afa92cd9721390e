// Package history tracks which recipe URLs a session has already been
// shown, so repeat chat turns surface fresh picks. Redis backs the store in
// deployment; an in-process map covers local runs without Redis.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ksattari/souschef/config"
)

// Store records and recalls recipe URLs per session.
type Store interface {
	Seen(ctx context.Context, sessionID string) ([]string, error)
	Record(ctx context.Context, sessionID string, urls []string) error
}

// NewStore builds a Redis-backed store when Redis is configured, otherwise
// the in-memory fallback.
func NewStore(cfg config.HistoryConfig) Store {
	if cfg.Redis.Configured() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		return NewRedisStore(client, cfg.TTL)
	}
	return NewMemoryStore(cfg.TTL)
}

// RedisStore keeps seen URLs in a Redis set per session, expiring with the
// configured TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func sessionKey(sessionID string) string { return "souschef:seen:" + sessionID }

func (s *RedisStore) Seen(ctx context.Context, sessionID string) ([]string, error) {
	urls, err := s.client.SMembers(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return nil, err
	}
	return urls, nil
}

func (s *RedisStore) Record(ctx context.Context, sessionID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	key := sessionKey(sessionID)
	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}
	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, s.ttl)
	_, err := pipe.Exec(ctx)
	return err
}

// MemoryStore is the in-process fallback. Entries expire lazily on read.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*memorySession
}

type memorySession struct {
	urls      map[string]struct{}
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	return &MemoryStore{ttl: ttl, sessions: make(map[string]*memorySession)}
}

func (s *MemoryStore) Seen(_ context.Context, sessionID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(sess.expiresAt) {
		delete(s.sessions, sessionID)
		return nil, nil
	}
	out := make([]string, 0, len(sess.urls))
	for u := range sess.urls {
		out = append(out, u)
	}
	return out, nil
}

func (s *MemoryStore) Record(_ context.Context, sessionID string, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || time.Now().After(sess.expiresAt) {
		sess = &memorySession{urls: make(map[string]struct{})}
		s.sessions[sessionID] = sess
	}
	for _, u := range urls {
		sess.urls[u] = struct{}{}
	}
	sess.expiresAt = time.Now().Add(s.ttl)
	return nil
}
