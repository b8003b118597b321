package local

import (
	"context"
	"sync"

	"github.com/sangkips/smartbill/internal/domain/repository"
)

// MemoryStore is a process-lifetime KVStore used in tests and demos
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, key string, fn repository.KVUpdateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[key]
	next, keep, err := fn(cur, ok)
	if err != nil {
		return err
	}
	if keep {
		s.data[key] = next
	} else {
		delete(s.data, key)
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
