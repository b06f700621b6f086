package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is an in-memory Client implementation used in unit tests.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
	}
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return getFrom(s.collections, collection, id)
}

func (s *MemoryStore) Set(_ context.Context, collection, id string, doc Document, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setIn(s.collections, collection, id, doc, merge)
	return nil
}

func (s *MemoryStore) Insert(_ context.Context, collection, id string, doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.collections[collection][id]; ok {
		return ErrAlreadyExists
	}
	setIn(s.collections, collection, id, doc, false)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return updateIn(s.collections, collection, id, fields)
}

func (s *MemoryStore) Query(_ context.Context, collection string, filters ...Filter) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]Document, 0)
	for _, doc := range s.collections[collection] {
		if matchesFilters(doc, filters) {
			docs = append(docs, copyDocument(doc))
		}
	}
	return docs, nil
}

// Transaction stages all writes on a copy of the store and swaps it in only
// when fn succeeds, mirroring the all-or-nothing psql transaction semantics.
func (s *MemoryStore) Transaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := copyCollections(s.collections)
	if err := fn(ctx, &memoryTx{collections: staged}); err != nil {
		return err
	}

	s.collections = staged
	return nil
}

type memoryTx struct {
	collections map[string]map[string]Document
}

func (t *memoryTx) Get(_ context.Context, collection, id string) (Document, error) {
	return getFrom(t.collections, collection, id)
}

func (t *memoryTx) Set(_ context.Context, collection, id string, doc Document, merge bool) error {
	setIn(t.collections, collection, id, doc, merge)
	return nil
}

func (t *memoryTx) Update(_ context.Context, collection, id string, fields Document) error {
	return updateIn(t.collections, collection, id, fields)
}

func getFrom(collections map[string]map[string]Document, collection, id string) (Document, error) {
	doc, ok := collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDocument(doc), nil
}

func setIn(collections map[string]map[string]Document, collection, id string, doc Document, merge bool) {
	if collections[collection] == nil {
		collections[collection] = make(map[string]Document)
	}
	if existing, ok := collections[collection][id]; ok && merge {
		merged := copyDocument(existing)
		for k, v := range doc {
			merged[k] = v
		}
		collections[collection][id] = merged
		return
	}
	collections[collection][id] = copyDocument(doc)
}

func updateIn(collections map[string]map[string]Document, collection, id string, fields Document) error {
	existing, ok := collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	updated := copyDocument(existing)
	for k, v := range fields {
		updated[k] = v
	}
	collections[collection][id] = updated
	return nil
}

// matchesFilters compares values through their JSON form, so an int filter
// matches the float64 a stored document holds after a JSON round trip.
func matchesFilters(doc Document, filters []Filter) bool {
	for _, f := range filters {
		stored, ok := doc[f.Field]
		if !ok {
			return false
		}
		storedRaw, err := json.Marshal(stored)
		if err != nil {
			return false
		}
		filterRaw, err := json.Marshal(f.Value)
		if err != nil {
			return false
		}
		if !bytes.Equal(storedRaw, filterRaw) {
			return false
		}
	}
	return true
}

func copyDocument(doc Document) Document {
	copied, err := ToDocument(doc)
	if err != nil {
		// documents only ever hold JSON-compatible values
		panic(err)
	}
	return copied
}

func copyCollections(collections map[string]map[string]Document) map[string]map[string]Document {
	copied := make(map[string]map[string]Document, len(collections))
	for name, docs := range collections {
		copied[name] = make(map[string]Document, len(docs))
		for id, doc := range docs {
			copied[name][id] = copyDocument(doc)
		}
	}
	return copied
}
