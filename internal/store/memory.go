package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-process Store used by unit tests and the scratch
// workflows in cmd. Bodies round-trip through JSON so documents behave the
// same way they would coming back from the SQL store.
type MemoryStore struct {
	mu          sync.Mutex
	idProvider  IDProvider
	collections map[string][]string
	bodies      map[string]map[string][]byte
}

// NewMemoryStore constructs an empty in-memory document store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		idProvider:  NewUUIDProvider(),
		collections: map[string][]string{},
		bodies:      map[string]map[string][]byte{},
	}
}

// WithIDProvider overrides identifier generation, for deterministic tests.
func (s *MemoryStore) WithIDProvider(provider IDProvider) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if provider != nil {
		s.idProvider = provider
	}
	return s
}

// InsertOne persists a new document and returns its generated identifier.
func (s *MemoryStore) InsertOne(_ context.Context, collection string, doc map[string]any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", newStorageError("store.insert_one.invalid_collection", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", newStorageError("store.insert_one.encode_failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.idProvider.NewID()
	if err != nil {
		return "", newStorageError("store.insert_one.id_generation_failed", err)
	}
	if s.bodies[collection] == nil {
		s.bodies[collection] = map[string][]byte{}
	}
	s.bodies[collection][id] = body
	s.collections[collection] = append(s.collections[collection], id)
	return id, nil
}

// Find returns every document in the collection in insertion order.
func (s *MemoryStore) Find(_ context.Context, collection string) ([]Document, error) {
	if err := validateCollection(collection); err != nil {
		return nil, newStorageError("store.find.invalid_collection", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.collections[collection]
	documents := make([]Document, 0, len(ids))
	for _, id := range ids {
		raw := s.bodies[collection][id]
		body := map[string]any{}
		if err := json.Unmarshal(raw, &body); err != nil {
			return nil, newStorageError("store.find.decode_failed", err)
		}
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)
		documents = append(documents, Document{ID: id, Body: body, Raw: rawCopy})
	}
	return documents, nil
}

// UpdateOne replaces the stored body for id, optionally creating it.
func (s *MemoryStore) UpdateOne(_ context.Context, collection string, id string, doc map[string]any, upsert bool) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", newStorageError("store.update_one.invalid_collection", err)
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return "", newStorageError("store.update_one.encode_failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bodies[collection] == nil {
		s.bodies[collection] = map[string][]byte{}
	}
	if _, ok := s.bodies[collection][id]; !ok {
		if !upsert {
			return "", newStorageError("store.update_one.unknown_id", fmt.Errorf("%w: %s", ErrUnknownDocument, id))
		}
		s.collections[collection] = append(s.collections[collection], id)
	}
	s.bodies[collection][id] = body
	return id, nil
}
