package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const timestampField = "timestamp"

// MemoryStore is a process-local DocumentStore used when no external store is
// configured and in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	log.Warn().Msg("Using in-memory document store. Incidents will not survive a restart.")
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]interface{}),
		now:         time.Now,
	}
}

func (s *MemoryStore) Add(ctx context.Context, collection string, fields map[string]interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]map[string]interface{})
		s.collections[collection] = docs
	}
	id := uuid.NewString()
	doc := copyFields(fields)
	doc[timestampField] = s.now().UTC()
	docs[id] = doc
	return id, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrDocumentNotFound)
	}
	for k, v := range fields {
		doc[k] = v
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, orderBy string, limit int) ([]Document, error) {
	return s.query(ctx, collection, orderBy, limit, func(map[string]interface{}) bool { return true })
}

func (s *MemoryStore) QueryWhere(ctx context.Context, collection, field string, value interface{}, orderBy string, limit int) ([]Document, error) {
	return s.query(ctx, collection, orderBy, limit, func(fields map[string]interface{}) bool {
		return fields[field] == value
	})
}

func (s *MemoryStore) query(ctx context.Context, collection, orderBy string, limit int, keep func(map[string]interface{}) bool) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.collections[collection]))
	for id, fields := range s.collections[collection] {
		if !keep(fields) {
			continue
		}
		docs = append(docs, Document{ID: id, Fields: copyFields(fields)})
	}
	sort.SliceStable(docs, func(i, j int) bool {
		return greater(docs[i].Fields[orderBy], docs[j].Fields[orderBy])
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Get is a test helper returning a copy of a single document.
func (s *MemoryStore) Get(collection, id string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, false
	}
	return copyFields(doc), true
}

func copyFields(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func greater(a, b interface{}) bool {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.After(bv)
	case int:
		bv, ok := b.(int)
		return ok && av > bv
	case string:
		bv, ok := b.(string)
		return ok && av > bv
	}
	return false
}
