package store

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a process-local DocumentStore, used for tests and for
// running without a database.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]bson.M
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: map[string][]bson.M{}}
}

func (s *MemoryStore) InsertOne(ctx context.Context, collection string, doc any) (string, error) {
	if err := validateCollection(collection); err != nil {
		return "", err
	}

	m, err := toDocument(doc)
	if err != nil {
		return "", err
	}

	oid := primitive.NewObjectID()
	m[IDField] = oid

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = append(s.collections[collection], m)

	return oid.Hex(), nil
}

func (s *MemoryStore) FindOne(ctx context.Context, collection string, filter Filter, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, err := s.find(collection, filter)
	if err != nil {
		return err
	}
	return decodeDocument(s.collections[collection][i], out)
}

func (s *MemoryStore) FindMany(ctx context.Context, collection string, filter Filter, out any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := s.filter(collection, filter)
	if err != nil {
		return err
	}
	return decodeDocuments(docs, out)
}

func (s *MemoryStore) UpdateOne(ctx context.Context, collection string, filter Filter, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.find(collection, filter)
	if err != nil {
		return err
	}

	// apply to a copy so a failed update leaves the stored document intact
	doc, err := cloneDocument(s.collections[collection][i])
	if err != nil {
		return err
	}
	if err := applyUpdate(doc, update); err != nil {
		return err
	}
	s.collections[collection][i] = doc
	return nil
}

func (s *MemoryStore) DeleteOne(ctx context.Context, collection string, filter Filter) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.find(collection, filter)
	if err != nil {
		return err
	}

	docs := s.collections[collection]
	s.collections[collection] = append(docs[:i:i], docs[i+1:]...)
	return nil
}

func (s *MemoryStore) CountDocuments(ctx context.Context, collection string, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, err := s.filter(collection, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(docs)), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// find returns the position of the first match. Callers hold the lock.
func (s *MemoryStore) find(collection string, filter Filter) (int, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return -1, err
	}
	for i, doc := range s.collections[collection] {
		ok, err := matches(doc, f)
		if err != nil {
			return -1, err
		}
		if ok {
			return i, nil
		}
	}
	return -1, notFound(collection, filter)
}

func (s *MemoryStore) filter(collection string, filter Filter) ([]bson.M, error) {
	f, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	var out []bson.M
	for _, doc := range s.collections[collection] {
		ok, err := matches(doc, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func cloneDocument(doc bson.M) (bson.M, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("copying document: %w", err)
	}
	var out bson.M
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("copying document: %w", err)
	}
	return out, nil
}
