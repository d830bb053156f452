package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/andresuchdata/autoreorder/internal/domain"
)

// FileStore keeps every channel's state in one local JSON file. Writes go
// to a temp file that is renamed over the original, so readers never see a
// partial document.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(_ context.Context, channel string) (*domain.AlertState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.read()
	if err != nil {
		return nil, err
	}
	st, ok := states[channel]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *FileStore) Save(_ context.Context, state domain.AlertState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.read()
	if err != nil {
		return err
	}
	states[state.Channel] = state

	payload, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("encode alert state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create alert state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create alert state temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write alert state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync alert state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close alert state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace alert state: %w", err)
	}
	return nil
}

func (s *FileStore) read() (map[string]domain.AlertState, error) {
	states := make(map[string]domain.AlertState)
	payload, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return states, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read alert state: %w", err)
	}
	if len(payload) == 0 {
		return states, nil
	}
	if err := json.Unmarshal(payload, &states); err != nil {
		return nil, fmt.Errorf("%w: alert state file %s: %v", domain.ErrDataIntegrity, s.path, err)
	}
	return states, nil
}
