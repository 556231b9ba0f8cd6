package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryRepository keeps collections in process memory.
type MemoryRepository struct {
	mu          sync.RWMutex
	collections map[string][]json.RawMessage
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{collections: make(map[string][]json.RawMessage)}
}

// Get implements Repository.
func (r *MemoryRepository) Get(ctx context.Context, collection string) ([]json.RawMessage, error) {
	if collection == "" {
		return nil, ErrUnknownCollection
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneRecords(r.collections[collection]), nil
}

// Put implements Repository.
func (r *MemoryRepository) Put(ctx context.Context, collection string, records []json.RawMessage) error {
	if collection == "" {
		return ErrUnknownCollection
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collections[collection] = cloneRecords(records)
	return nil
}

// PutAll implements Repository.
func (r *MemoryRepository) PutAll(ctx context.Context, batch map[string][]json.RawMessage) error {
	for name := range batch {
		if name == "" {
			return ErrUnknownCollection
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, records := range batch {
		r.collections[name] = cloneRecords(records)
	}
	return nil
}
