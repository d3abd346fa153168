package db

import (
	"context"
	"errors"
	"fmt"
)

// MaxInValues is the largest value set the document store accepts in a single "in"
// predicate. Callers with more identifiers must split them (see package batch).
const MaxInValues = 10

// FieldDocumentID addresses the document id in predicates instead of a stored field.
const FieldDocumentID = "__name__"

var (
	// ErrNotFound is returned by GetByID when the document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInLimit is returned when an "in" predicate carries more than MaxInValues values.
	ErrInLimit = fmt.Errorf("in predicate exceeds %d values", MaxInValues)
)

// Op is a predicate comparison operator.
type Op string

const (
	OpEqual Op = "=="
	OpIn    Op = "in"
	OpGTE   Op = ">="
	OpLTE   Op = "<="
)

// Predicate is a single field condition. For OpIn, Value must be a []string.
type Predicate struct {
	Field string
	Op    Op
	Value interface{}
}

// Eq builds an equality predicate.
func Eq(field string, value interface{}) Predicate {
	return Predicate{Field: field, Op: OpEqual, Value: value}
}

// In builds a set membership predicate.
func In(field string, values []string) Predicate {
	return Predicate{Field: field, Op: OpIn, Value: values}
}

// Record is a raw document as returned by the store. Data is loosely typed; only the
// normalize package interprets it.
type Record struct {
	ID   string
	Data map[string]interface{}
}

// Store is the document store collaborator. Implementations must honour MaxInValues
// and propagate context cancellation.
type Store interface {
	Query(ctx context.Context, collection string, preds []Predicate, limit int) ([]Record, error)
	GetByID(ctx context.Context, collection, id string) (*Record, error)
	Set(ctx context.Context, collection, id string, data map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
}

func checkPredicates(preds []Predicate) error {
	for _, p := range preds {
		switch p.Op {
		case OpEqual, OpGTE, OpLTE:
		case OpIn:
			values, ok := p.Value.([]string)
			if !ok {
				return fmt.Errorf("in predicate on %q: want []string, got %T", p.Field, p.Value)
			}
			if len(values) > MaxInValues {
				return fmt.Errorf("field %q with %d values: %w", p.Field, len(values), ErrInLimit)
			}
		default:
			return fmt.Errorf("unsupported operator %q", p.Op)
		}
	}
	return nil
}
