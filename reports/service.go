// Package reports runs the scoped visibility pipeline behind the admin dashboard:
// resolve visible workers, fetch their reports in store-sized batches, normalize,
// cache per session, then filter, paginate and compute statistics.
package reports

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"workscope/batch"
	"workscope/cache"
	"workscope/db"
	"workscope/hierarchy"
	"workscope/logger"
	"workscope/models"
	"workscope/normalize"
)

// Options tunes a Service.
type Options struct {
	// Lookback limits fetched reports to those created within it. Zero fetches all.
	Lookback time.Duration
	// Now is the clock used for date buckets and lookback; nil means time.Now.
	Now func() time.Time
}

// Service owns the pipeline stages. It holds no per-session state; callers pass the
// session's cache explicitly.
type Service struct {
	norm     *normalize.Normalizer
	resolver *hierarchy.Resolver
	executor *batch.Executor
	lookback time.Duration
	now      func() time.Time
	loads    singleflight.Group
	log      *logrus.Entry
}

// NewService wires the pipeline over store.
func NewService(store db.Store, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	norm := normalize.New(now)
	return &Service{
		norm:     norm,
		resolver: hierarchy.New(store, norm),
		executor: batch.New(store),
		lookback: opts.Lookback,
		now:      now,
		log:      logger.WithModule("reports"),
	}
}

// Normalizer exposes the normalizer so callers can read its anomaly counts.
func (s *Service) Normalizer() *normalize.Normalizer {
	return s.norm
}

// Now returns the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// LoadView returns admin's reports for view, from c when present. On a miss the whole
// pipeline runs once and fills both view buckets, the workers and the companies.
// Concurrent misses for the same admin share one load, and every caller stores the
// shared result in its own cache.
func (s *Service) LoadView(ctx context.Context, admin models.User, c *cache.Cache, view models.View) ([]models.Report, error) {
	if reports, ok := c.Get(view); ok {
		return reports, nil
	}

	v, err, _ := s.loads.Do(admin.ID, func() (interface{}, error) {
		return s.load(ctx, admin)
	})
	if err != nil {
		return nil, err
	}
	snap := v.(*snapshot)
	snap.store(c)
	return snap.bucket(view), nil
}

// snapshot is the outcome of one pipeline run. It is shared by every caller that
// joined the load and must not be mutated.
type snapshot struct {
	pending   []models.Report
	completed []models.Report
	workers   map[string]models.User
	companies map[string]models.Company
	partial   bool
}

func (p *snapshot) bucket(view models.View) []models.Report {
	if view == models.ViewCompleted {
		return p.completed
	}
	return p.pending
}

func (p *snapshot) store(c *cache.Cache) {
	c.SetWorkers(p.workers)
	c.SetCompanies(p.companies)
	c.SetPartial(p.partial)
	c.Set(models.ViewPending, p.pending)
	c.Set(models.ViewCompleted, p.completed)
}

func (s *Service) load(ctx context.Context, admin models.User) (*snapshot, error) {
	start := time.Now()

	vis, err := s.resolver.Resolve(ctx, admin)
	if err != nil {
		return nil, err
	}

	recs, err := s.executor.FetchByIDs(ctx, models.CollectionReports, models.FieldWorkerID, vis.IDs(), s.dateRange())
	if err != nil {
		return nil, err
	}

	all := s.norm.Reports(recs)
	pending := make([]models.Report, 0, len(all))
	completed := make([]models.Report, 0, len(all))
	companyIDs := make([]string, 0, len(all))
	for _, r := range all {
		if r.Department == "" {
			if w, ok := vis.Workers[r.WorkerID]; ok {
				r.Department = w.Department
			}
		}
		if r.CompanyID != "" {
			companyIDs = append(companyIDs, r.CompanyID)
		}
		if r.IsCompleted() {
			completed = append(completed, r)
		} else {
			pending = append(pending, r)
		}
	}
	sortNewestFirst(pending, models.ViewPending)
	sortNewestFirst(completed, models.ViewCompleted)

	companyRecs, err := s.executor.FetchByIDs(ctx, models.CollectionCompanies, db.FieldDocumentID, companyIDs, batch.DateRange{})
	if err != nil {
		return nil, err
	}
	companies := make(map[string]models.Company, len(companyRecs))
	for _, rec := range companyRecs {
		co := s.norm.Company(rec)
		companies[co.ID] = co
	}

	s.log.WithFields(logrus.Fields{
		"admin":       admin.ID,
		"admin_level": admin.AdminLevel,
		"workers":     len(vis.Workers),
		"pending":     len(pending),
		"completed":   len(completed),
		"companies":   len(companies),
		"partial":     vis.Partial(),
		"took":        time.Since(start).String(),
	}).Info("report views loaded")

	return &snapshot{
		pending:   pending,
		completed: completed,
		workers:   vis.Workers,
		companies: companies,
		partial:   vis.Partial(),
	}, nil
}

func (s *Service) dateRange() batch.DateRange {
	if s.lookback <= 0 {
		return batch.DateRange{}
	}
	return batch.DateRange{Field: models.FieldCreatedAt, From: s.now().Add(-s.lookback)}
}

// VisibleWorkers returns the workers admin may see, sorted by name.
func (s *Service) VisibleWorkers(ctx context.Context, admin models.User, c *cache.Cache) ([]models.User, error) {
	if _, err := s.LoadView(ctx, admin, c, models.ViewPending); err != nil {
		return nil, err
	}
	workers := c.Workers()
	out := make([]models.User, 0, len(workers))
	for _, w := range workers {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName() != out[j].DisplayName() {
			return out[i].DisplayName() < out[j].DisplayName()
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// CanSee reports whether workerID is in admin's visible set.
func (s *Service) CanSee(ctx context.Context, admin models.User, c *cache.Cache, workerID string) (bool, error) {
	if _, err := s.LoadView(ctx, admin, c, models.ViewPending); err != nil {
		return false, err
	}
	_, ok := c.Worker(workerID)
	return ok, nil
}

// Refresh drops everything cached for the session so the next request refetches.
func (s *Service) Refresh(c *cache.Cache) {
	c.Clear()
}

func sortNewestFirst(reports []models.Report, view models.View) {
	key := func(r models.Report) time.Time {
		if view == models.ViewCompleted && r.CompletedAt != nil {
			return *r.CompletedAt
		}
		return r.CreatedAt
	}
	sort.SliceStable(reports, func(i, j int) bool {
		ki, kj := key(reports[i]), key(reports[j])
		if !ki.Equal(kj) {
			return ki.After(kj)
		}
		return reports[i].ID < reports[j].ID
	})
}
