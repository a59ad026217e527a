// internal/upload/store.go
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cancercare-web/internal/common/database"
)

const redisKeyPrefix = "upload:progress:"

var ErrProgressNotFound = errors.New("upload progress not found")

// Progress is the latest published state of one upload.
type Progress struct {
	UploadID string `json:"uploadId"`
	Progress int    `json:"progress"`
	State    string `json:"state"`
}

// ProgressStore keeps the latest Progress per upload ID for a bounded time.
type ProgressStore interface {
	Put(ctx context.Context, p Progress) error
	Get(ctx context.Context, uploadID string) (Progress, error)
}

// NewStore returns the store named by kind ("memory" or "redis").
func NewStore(kind string, ttl time.Duration, rdb *database.RedisClient) (ProgressStore, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(ttl), nil
	case "redis":
		if rdb == nil {
			return nil, errors.New("redis progress store requires a redis client")
		}
		return NewRedisStore(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("unknown progress store %q", kind)
	}
}

type memoryEntry struct {
	progress  Progress
	expiresAt time.Time
}

// MemoryStore is a process-local ProgressStore.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Put(ctx context.Context, p Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
	s.entries[p.UploadID] = memoryEntry{progress: p, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, uploadID string) (Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[uploadID]
	if !ok || !s.now().Before(e.expiresAt) {
		return Progress{}, ErrProgressNotFound
	}
	return e.progress, nil
}

// RedisStore shares progress across server instances.
type RedisStore struct {
	client *database.RedisClient
	ttl    time.Duration
}

func NewRedisStore(client *database.RedisClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Put(ctx context.Context, p Progress) error {
	return s.client.SetJSON(ctx, redisKeyPrefix+p.UploadID, p, s.ttl)
}

func (s *RedisStore) Get(ctx context.Context, uploadID string) (Progress, error) {
	var p Progress
	err := s.client.GetJSON(ctx, redisKeyPrefix+uploadID, &p)
	if errors.Is(err, database.ErrNotFound) {
		return Progress{}, ErrProgressNotFound
	}
	if err != nil {
		return Progress{}, err
	}
	return p, nil
}
