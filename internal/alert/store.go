package alert

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/andresuchdata/autoreorder/internal/cache"
	"github.com/andresuchdata/autoreorder/internal/config"
	"github.com/andresuchdata/autoreorder/internal/domain"
)

const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// OpenStore builds the configured state store. The returned close function
// releases any connection it opened.
func OpenStore(cfg config.AlertConfig, cacheCfg config.CacheConfig) (Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(cfg.Store)) {
	case "", StoreFile:
		config.EnsureParentDir(cfg.StatePath)
		return NewFileStore(cfg.StatePath), noop, nil
	case StoreRedis:
		client, err := cache.NewRedisClient(cacheCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("alert redis store: %w", err)
		}
		return NewRedisStore(client), client.Close, nil
	case StoreMemory:
		return NewMemoryStore(), noop, nil
	case StoreSQLite:
		config.EnsureParentDir(cfg.StatePath)
		s, err := NewSQLiteStore(cfg.StatePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown alert store %q", cfg.Store)
	}
}

// MemoryStore keeps state for the life of the process. Dry runs use it so
// nothing persistent is touched.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]domain.AlertState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]domain.AlertState)}
}

func (s *MemoryStore) Load(_ context.Context, channel string) (*domain.AlertState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[channel]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *MemoryStore) Save(_ context.Context, state domain.AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.Channel] = state
	return nil
}
