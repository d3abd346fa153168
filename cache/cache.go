// Package cache holds the normalized data an admin session has already fetched, so
// switching between views does not go back to the store.
package cache

import (
	"sort"
	"strings"
	"sync"

	"workscope/models"
)

// Cache stores report buckets by view plus the workers and companies they reference.
// Writes replace wholesale and the last write wins. Entries never expire; Clear is the
// only way to drop them.
type Cache struct {
	mu        sync.RWMutex
	reports   map[models.View][]models.Report
	workers   map[string]models.User
	companies map[string]models.Company
	partial   bool
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{
		reports:   make(map[models.View][]models.Report),
		workers:   make(map[string]models.User),
		companies: make(map[string]models.Company),
	}
}

// Get returns the reports cached for view.
func (c *Cache) Get(view models.View) ([]models.Report, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reports, ok := c.reports[view]
	return reports, ok
}

// Set replaces the reports cached for view. An empty slice is a valid, cached result.
func (c *Cache) Set(view models.View, reports []models.Report) {
	if reports == nil {
		reports = []models.Report{}
	}
	c.mu.Lock()
	c.reports[view] = reports
	c.mu.Unlock()
}

// SetWorkers replaces the worker map.
func (c *Cache) SetWorkers(workers map[string]models.User) {
	cp := make(map[string]models.User, len(workers))
	for id, w := range workers {
		cp[id] = w
	}
	c.mu.Lock()
	c.workers = cp
	c.mu.Unlock()
}

// Workers returns a copy of the worker map.
func (c *Cache) Workers() map[string]models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]models.User, len(c.workers))
	for id, w := range c.workers {
		cp[id] = w
	}
	return cp
}

// Worker looks up a single worker.
func (c *Cache) Worker(id string) (models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.workers[id]
	return w, ok
}

// SetCompanies replaces the company map.
func (c *Cache) SetCompanies(companies map[string]models.Company) {
	cp := make(map[string]models.Company, len(companies))
	for id, co := range companies {
		cp[id] = co
	}
	c.mu.Lock()
	c.companies = cp
	c.mu.Unlock()
}

// Companies returns a copy of the company map.
func (c *Cache) Companies() map[string]models.Company {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string]models.Company, len(c.companies))
	for id, co := range c.companies {
		cp[id] = co
	}
	return cp
}

// Departments returns the distinct department labels seen on cached workers and
// reports, sorted. Labels differing only in case or surrounding space are merged under
// the first spelling seen in sorted order.
func (c *Cache) Departments() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var labels []string
	for _, w := range c.workers {
		labels = append(labels, w.Department)
	}
	for _, bucket := range c.reports {
		for _, r := range bucket {
			labels = append(labels, r.Department)
		}
	}
	return distinctLabels(labels)
}

// SetPartial records whether the cached worker set was resolved with skipped
// hierarchy branches.
func (c *Cache) SetPartial(partial bool) {
	c.mu.Lock()
	c.partial = partial
	c.mu.Unlock()
}

// Partial reports the flag stored by SetPartial.
func (c *Cache) Partial() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.partial
}

// IsInitialized reports whether any reports, workers or companies have been stored.
func (c *Cache) IsInitialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.reports) > 0 || len(c.workers) > 0 || len(c.companies) > 0
}

// Clear drops everything.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.reports = make(map[models.View][]models.Report)
	c.workers = make(map[string]models.User)
	c.companies = make(map[string]models.Company)
	c.partial = false
	c.mu.Unlock()
}

func distinctLabels(labels []string) []string {
	for i, l := range labels {
		labels[i] = strings.TrimSpace(l)
	}
	sort.Strings(labels)
	seen := make(map[string]bool, len(labels))
	out := []string{}
	for _, l := range labels {
		if l == "" {
			continue
		}
		key := strings.ToLower(l)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, l)
	}
	return out
}
