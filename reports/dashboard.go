package reports

import (
	"context"
	"sort"

	"workscope/cache"
	"workscope/filter"
	"workscope/models"
	"workscope/stats"
)

// Option is a selectable filter value.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// FilterOptions lists the values the dashboard filters can take for this admin.
type FilterOptions struct {
	Companies   []Option            `json:"companies"`
	Workers     []Option            `json:"workers"`
	Departments []string            `json:"departments"`
	Priorities  []models.Priority   `json:"priorities"`
	DateBuckets []filter.DateBucket `json:"date_buckets"`
}

// Dashboard is everything one dashboard render needs.
type Dashboard struct {
	View     models.View         `json:"view"`
	Criteria filter.Criteria     `json:"criteria"`
	Page     filter.Page         `json:"page"`
	Basic    stats.Basic         `json:"basic"`
	Workers  []stats.WorkerStats `json:"workers"`
	Charts   stats.Charts        `json:"charts"`
	Options  FilterOptions       `json:"options"`
	Partial  bool                `json:"partial"`
}

// Filtered returns the reports of view matching criteria.
func (s *Service) Filtered(ctx context.Context, admin models.User, c *cache.Cache, view models.View, criteria filter.Criteria) ([]models.Report, error) {
	reports, err := s.LoadView(ctx, admin, c, view)
	if err != nil {
		return nil, err
	}
	return filter.Apply(reports, criteria, view, s.now()), nil
}

// Dashboard returns the page of state's view plus statistics. The page is limited to
// the active view; the statistics cover both views under the same criteria so the
// status breakdown and completion rate stay meaningful.
func (s *Service) Dashboard(ctx context.Context, admin models.User, c *cache.Cache, state *filter.State) (*Dashboard, error) {
	pending, err := s.Filtered(ctx, admin, c, models.ViewPending, state.Criteria)
	if err != nil {
		return nil, err
	}
	completed, err := s.Filtered(ctx, admin, c, models.ViewCompleted, state.Criteria)
	if err != nil {
		return nil, err
	}

	current := pending
	if state.View == models.ViewCompleted {
		current = completed
	}
	combined := make([]models.Report, 0, len(pending)+len(completed))
	combined = append(combined, pending...)
	combined = append(combined, completed...)

	workers := c.Workers()
	companies := c.Companies()
	perWorker := stats.PerWorker(combined, workers)

	return &Dashboard{
		View:     state.View,
		Criteria: state.Criteria,
		Page:     filter.Paginate(current, state.Page, state.PageSize),
		Basic:    stats.BasicStats(combined),
		Workers:  perWorker,
		Charts:   stats.BuildCharts(combined, workers, companies),
		Options:  s.options(c, workers, companies),
		Partial:  c.Partial(),
	}, nil
}

func (s *Service) options(c *cache.Cache, workers map[string]models.User, companies map[string]models.Company) FilterOptions {
	opts := FilterOptions{
		Companies:   make([]Option, 0, len(companies)),
		Workers:     make([]Option, 0, len(workers)),
		Departments: c.Departments(),
		Priorities:  []models.Priority{models.PriorityHigh, models.PriorityMedium, models.PriorityLow},
		DateBuckets: []filter.DateBucket{filter.DateToday, filter.DateYesterday, filter.DateLast7, filter.DateLast30},
	}
	for id, co := range companies {
		label := co.Name
		if label == "" {
			label = id
		}
		opts.Companies = append(opts.Companies, Option{ID: id, Label: label})
	}
	for id, w := range workers {
		opts.Workers = append(opts.Workers, Option{ID: id, Label: w.DisplayName()})
	}
	sortOptions(opts.Companies)
	sortOptions(opts.Workers)
	return opts
}

func sortOptions(opts []Option) {
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Label != opts[j].Label {
			return opts[i].Label < opts[j].Label
		}
		return opts[i].ID < opts[j].ID
	})
}
