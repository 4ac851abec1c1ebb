package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory document store. Used in tests and for
// local runs without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]json.RawMessage // collection -> id -> document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]json.RawMessage),
	}
}

func (ms *MemoryStore) Insert(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.data[collection] == nil {
		ms.data[collection] = make(map[string]json.RawMessage)
	}
	if _, exists := ms.data[collection][id]; exists {
		return ErrDuplicate
	}
	ms.data[collection][id] = raw
	return nil
}

func (ms *MemoryStore) Update(ctx context.Context, collection, id string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.data[collection][id]; !exists {
		return ErrNotFound
	}
	ms.data[collection][id] = raw
	return nil
}

func (ms *MemoryStore) FindByID(ctx context.Context, collection, id string, out any) error {
	ms.mu.RLock()
	raw, exists := ms.data[collection][id]
	ms.mu.RUnlock()

	if !exists {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}

func (ms *MemoryStore) Find(ctx context.Context, collection string, filter Filter, out any) error {
	raws, err := ms.matching(collection, filter)
	if err != nil {
		return err
	}

	combined, err := json.Marshal(raws)
	if err != nil {
		return err
	}
	return json.Unmarshal(combined, out)
}

func (ms *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.data[collection][id]; !exists {
		return ErrNotFound
	}
	delete(ms.data[collection], id)
	return nil
}

func (ms *MemoryStore) Count(ctx context.Context, collection string, filter Filter) (int, error) {
	raws, err := ms.matching(collection, filter)
	if err != nil {
		return 0, err
	}
	return len(raws), nil
}

func (ms *MemoryStore) SumField(ctx context.Context, collection string, filter Filter, field string) (float64, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var sum float64
	for _, raw := range ms.data[collection] {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return 0, err
		}
		if matches(doc, filter) {
			sum += numericField(doc, field)
		}
	}
	return sum, nil
}

func (ms *MemoryStore) matching(collection string, filter Filter) ([]json.RawMessage, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	raws := make([]json.RawMessage, 0)
	for _, raw := range ms.data[collection] {
		var doc map[string]any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		if matches(doc, filter) {
			raws = append(raws, raw)
		}
	}
	return raws, nil
}
