package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// MemoryStorage keeps sessions in process memory. It is used when Redis is
// disabled and in tests. Records are stored as JSON so callers never share
// mutable state with the store.
type MemoryStorage struct {
	mu      sync.RWMutex
	records map[int64][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{records: make(map[int64][]byte)}
}

func (s *MemoryStorage) Get(_ context.Context, chatID int64) (*Record, error) {
	s.mu.RLock()
	data, ok := s.records[chatID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MemoryStorage) Set(_ context.Context, rec *Record) error {
	if rec == nil {
		return errors.New("session: nil record")
	}

	rec.UpdatedAt = time.Now().UTC()

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[rec.ChatID] = data
	s.mu.Unlock()

	return nil
}

func (s *MemoryStorage) Clear(_ context.Context, chatID int64) error {
	s.mu.Lock()
	delete(s.records, chatID)
	s.mu.Unlock()

	return nil
}

func (s *MemoryStorage) All(ctx context.Context) ([]*Record, error) {
	s.mu.RLock()
	ids := make([]int64, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	result := make([]*Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, rec)
	}

	return result, nil
}
