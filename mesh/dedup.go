package mesh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupStore backs the AntiReplay plugin's duplicate-detection set. The
// in-memory implementation is the default (sufficient for a single-node
// chain); RedisDedupStore shares the set across every node reachable
// through the same Redis instance, required once chains replicate.
type DedupStore interface {
	// MarkSeen records key as seen and reports whether it was already
	// present (true means this is a duplicate).
	MarkSeen(ctx context.Context, key string) (alreadySeen bool, err error)
}

// MemoryDedupStore is a process-local, mutex-guarded set.
type MemoryDedupStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryDedupStore returns an empty MemoryDedupStore.
func NewMemoryDedupStore() *MemoryDedupStore {
	return &MemoryDedupStore{seen: make(map[string]struct{})}
}

func (s *MemoryDedupStore) MarkSeen(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, already := s.seen[key]
	s.seen[key] = struct{}{}
	return already, nil
}

// RedisDedupStore shares the anti-replay set across nodes via a Redis
// SETNX, matching this codebase's Redis queue package's use of go-redis.
type RedisDedupStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDedupStore wraps client. ttl bounds how long a key is remembered;
// zero means keys are remembered forever.
func NewRedisDedupStore(client *redis.Client, prefix string, ttl time.Duration) *RedisDedupStore {
	if prefix == "" {
		prefix = "chainvault:dedup:"
	}
	return &RedisDedupStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisDedupStore) MarkSeen(ctx context.Context, key string) (bool, error) {
	set, err := s.client.SetNX(ctx, s.prefix+key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("mesh: redis dedup SETNX: %w", err)
	}
	// SetNX returns true when the key was newly set, i.e. not a duplicate.
	return !set, nil
}
