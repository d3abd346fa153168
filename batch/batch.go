// Package batch fetches documents for an arbitrary number of identifiers from a store
// that caps "in" predicates at db.MaxInValues values.
package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"workscope/db"
	"workscope/logger"
)

// ErrFetchFailed is matched by every error FetchByIDs returns for a failed chunk.
var ErrFetchFailed = errors.New("batched fetch failed")

// FetchError reports the chunk whose query failed. The whole fetch is discarded; the
// caller should retry the operation rather than resume it.
type FetchError struct {
	Collection string
	Chunk      int
	Chunks     int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: %s chunk %d/%d: %v", ErrFetchFailed, e.Collection, e.Chunk+1, e.Chunks, e.Err)
}

// Unwrap exposes both ErrFetchFailed and the store error.
func (e *FetchError) Unwrap() []error {
	return []error{ErrFetchFailed, e.Err}
}

// Retryable is always true: a failed chunk says nothing about the next attempt.
func (e *FetchError) Retryable() bool {
	return true
}

// DateRange adds range predicates on Field. A zero bound is not applied.
type DateRange struct {
	Field string
	From  time.Time
	To    time.Time
}

// IsZero reports whether the range applies no predicate.
func (r DateRange) IsZero() bool {
	return r.Field == "" || (r.From.IsZero() && r.To.IsZero())
}

func (r DateRange) predicates() []db.Predicate {
	if r.IsZero() {
		return nil
	}
	var preds []db.Predicate
	if !r.From.IsZero() {
		preds = append(preds, db.Predicate{Field: r.Field, Op: db.OpGTE, Value: r.From})
	}
	if !r.To.IsZero() {
		preds = append(preds, db.Predicate{Field: r.Field, Op: db.OpLTE, Value: r.To})
	}
	return preds
}

// Executor splits identifier sets into store-sized chunks and queries them concurrently.
type Executor struct {
	store     db.Store
	chunkSize int
	log       *logrus.Entry
}

// New returns an Executor issuing chunks of db.MaxInValues identifiers.
func New(store db.Store) *Executor {
	return &Executor{
		store:     store,
		chunkSize: db.MaxInValues,
		log:       logger.WithModule("batch"),
	}
}

// FetchByIDs returns every document in collection whose field is one of ids and that
// falls inside dr. Order is unspecified. Duplicate ids are queried once.
//
// One query is issued per chunk and all chunks run concurrently. If any chunk fails,
// the remaining queries are cancelled and a *FetchError is returned with no records.
func (e *Executor) FetchByIDs(ctx context.Context, collection, field string, ids []string, dr DateRange) ([]db.Record, error) {
	chunks := Chunk(dedupe(ids), e.chunkSize)
	if len(chunks) == 0 {
		return []db.Record{}, nil
	}

	results := make([][]db.Record, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	for i, chunk := range chunks {
		preds := append([]db.Predicate{db.In(field, chunk)}, dr.predicates()...)
		g.Go(func() error {
			recs, err := e.store.Query(gctx, collection, preds, 0)
			if err != nil {
				return &FetchError{Collection: collection, Chunk: i, Chunks: len(chunks), Err: err}
			}
			results[i] = recs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.log.WithError(err).WithFields(logrus.Fields{
			"collection": collection,
			"ids":        len(ids),
			"chunks":     len(chunks),
		}).Warn("batched fetch failed")
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}
	merged := make([]db.Record, 0, total)
	for _, r := range results {
		merged = append(merged, r...)
	}

	e.log.WithFields(logrus.Fields{
		"collection": collection,
		"ids":        len(ids),
		"chunks":     len(chunks),
		"records":    total,
	}).Debug("batched fetch complete")
	return merged, nil
}

// Chunk partitions ids into consecutive slices of at most size elements.
func Chunk(ids []string, size int) [][]string {
	if size <= 0 {
		size = db.MaxInValues
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		chunks = append(chunks, ids[start:end:end])
	}
	return chunks
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
