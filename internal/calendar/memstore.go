package calendar

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store. A single mutex serializes every mutation,
// which trivially satisfies the per-bucket exclusion contract. It backs the
// engine tests and the broker-less dev mode.
type MemStore struct {
	mu     sync.Mutex
	cfg    Config
	hasCfg bool
	days   map[int64][]Meeting
}

// NewMemStore returns an empty MemStore with no configuration saved.
func NewMemStore() *MemStore {
	return &MemStore{days: make(map[int64][]Meeting)}
}

func (s *MemStore) LoadConfig(_ context.Context) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCfg {
		return Config{}, ErrConfigNotFound
	}
	return s.cfg, nil
}

func (s *MemStore) SaveConfig(_ context.Context, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.hasCfg = true
	return nil
}

func (s *MemStore) LoadDay(_ context.Context, dayKey int64) ([]Meeting, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.days[dayKey]
	out := make([]Meeting, len(bucket))
	copy(out, bucket)
	return out, ok, nil
}

func (s *MemStore) MutateDay(_ context.Context, dayKey int64, fn func(meetings []Meeting, exists bool) ([]Meeting, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.days[dayKey]
	// Hand fn a copy so a failed mutation leaves no partial state behind.
	var work []Meeting
	if ok {
		work = make([]Meeting, len(bucket))
		copy(work, bucket)
	}
	updated, err := fn(work, ok)
	if err != nil {
		return err
	}
	s.days[dayKey] = updated
	return nil
}
