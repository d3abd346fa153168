package normalize

import (
	"sort"
	"sync"
)

// Anomaly kinds counted while normalizing.
const (
	AnomalyBadTimestamp       = "bad_timestamp"
	AnomalyMissingTimestamp   = "missing_timestamp"
	AnomalyMissingCompletion  = "missing_completion"
	AnomalyCompletionBeforeCr = "completion_before_creation"
	AnomalyUnknownPriority    = "unknown_priority"
	AnomalyInvalidAdminLevel  = "invalid_admin_level"
)

// Anomalies counts non-fatal data quality issues by kind. Safe for concurrent use.
type Anomalies struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewAnomalies returns an empty counter.
func NewAnomalies() *Anomalies {
	return &Anomalies{counts: make(map[string]int)}
}

// Add increments the count for kind.
func (a *Anomalies) Add(kind string) {
	a.mu.Lock()
	a.counts[kind]++
	a.mu.Unlock()
}

// Count returns the count for kind.
func (a *Anomalies) Count(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts[kind]
}

// Total returns the number of anomalies of every kind.
func (a *Anomalies) Total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, c := range a.counts {
		n += c
	}
	return n
}

// Snapshot returns a copy of the counts.
func (a *Anomalies) Snapshot() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// Kinds returns the kinds seen so far, sorted.
func (a *Anomalies) Kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	kinds := make([]string, 0, len(a.counts))
	for k := range a.counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
