package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryDB is an in-memory Store used by tests and local demo runs. It mirrors the
// Firestore semantics the pipeline depends on: the "in" value limit, typed range
// comparisons and document-id predicates.
type MemoryDB struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]interface{}
}

var _ Store = (*MemoryDB)(nil)

// NewMemoryDB returns an empty store.
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{collections: make(map[string]map[string]map[string]interface{})}
}

// Query filters a collection by every predicate. Results are ordered by document id.
func (m *MemoryDB) Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkPredicates(preds); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var records []Record
	for _, id := range ids {
		data := docs[id]
		if !matchesAll(id, data, preds) {
			continue
		}
		records = append(records, Record{ID: id, Data: copyData(data)})
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

// GetByID retrieves a document by ID
func (m *MemoryDB) GetByID(ctx context.Context, collection, id string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	data, found := m.collections[collection][id]
	if !found {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return &Record{ID: id, Data: copyData(data)}, nil
}

// Set creates or replaces a document.
func (m *MemoryDB) Set(ctx context.Context, collection, id string, data map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]interface{})
		m.collections[collection] = docs
	}
	docs[id] = copyData(data)
	return nil
}

// Delete removes a document. Deleting a missing document is not an error.
func (m *MemoryDB) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections[collection], id)
	return nil
}

// Len returns the number of documents in a collection.
func (m *MemoryDB) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func matchesAll(id string, data map[string]interface{}, preds []Predicate) bool {
	for _, p := range preds {
		var value interface{}
		if p.Field == FieldDocumentID {
			value = id
		} else {
			v, ok := data[p.Field]
			if !ok {
				return false
			}
			value = v
		}
		if !matches(value, p) {
			return false
		}
	}
	return true
}

func matches(value interface{}, p Predicate) bool {
	switch p.Op {
	case OpEqual:
		c, ok := compare(value, p.Value)
		return ok && c == 0
	case OpIn:
		s, ok := value.(string)
		if !ok {
			return false
		}
		for _, want := range p.Value.([]string) {
			if s == want {
				return true
			}
		}
		return false
	case OpGTE:
		c, ok := compare(value, p.Value)
		return ok && c >= 0
	case OpLTE:
		c, ok := compare(value, p.Value)
		return ok && c <= 0
	}
	return false
}

// compare orders two values of the same kind. ok is false for mismatched kinds, which
// never match a predicate, as in Firestore.
func compare(a, b interface{}) (int, bool) {
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok || av != bv {
			return 1, ok
		}
		return 0, true
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func copyData(data map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}
