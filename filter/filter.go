// Package filter narrows an in-memory report collection and slices it into pages.
package filter

import (
	"strings"
	"time"

	"workscope/models"
)

// DateBucket selects a window of calendar days ending today.
type DateBucket string

const (
	DateAny       DateBucket = ""
	DateToday     DateBucket = "today"
	DateYesterday DateBucket = "yesterday"
	DateLast7     DateBucket = "last7"
	DateLast30    DateBucket = "last30"
)

// Valid reports whether b is a known bucket.
func (b DateBucket) Valid() bool {
	switch b {
	case DateAny, DateToday, DateYesterday, DateLast7, DateLast30:
		return true
	}
	return false
}

// Criteria are the optional predicates a dashboard can set. Empty fields match
// everything.
type Criteria struct {
	CompanyID  string          `json:"company_id,omitempty"`
	WorkerID   string          `json:"worker_id,omitempty"`
	Priority   models.Priority `json:"priority,omitempty"`
	Department string          `json:"department,omitempty"`
	Date       DateBucket      `json:"date,omitempty"`
	Search     string          `json:"search,omitempty"`
}

// IsZero reports whether no predicate is set.
func (c Criteria) IsZero() bool {
	return c == Criteria{}
}

// Apply returns the reports of view that match every predicate in c, in input order.
// Calendar days are evaluated in now's location.
func Apply(reports []models.Report, c Criteria, view models.View, now time.Time) []models.Report {
	status := view.Status()
	search := strings.ToLower(strings.TrimSpace(c.Search))
	department := strings.TrimSpace(c.Department)
	from, to, dated := dayWindow(c.Date, now)

	out := []models.Report{}
	for _, r := range reports {
		if r.Status != status {
			continue
		}
		if c.CompanyID != "" && r.CompanyID != c.CompanyID {
			continue
		}
		if c.WorkerID != "" && r.WorkerID != c.WorkerID {
			continue
		}
		if c.Priority != models.PriorityUnset && r.Priority != c.Priority {
			continue
		}
		if department != "" && !strings.EqualFold(strings.TrimSpace(r.Department), department) {
			continue
		}
		if dated && !inWindow(reportDate(r, view), from, to) {
			continue
		}
		if search != "" && !matchesSearch(r, search) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// reportDate is the completion date in the completed view and the creation date
// otherwise.
func reportDate(r models.Report, view models.View) *time.Time {
	if view == models.ViewCompleted {
		return r.CompletedAt
	}
	if r.CreatedAt.IsZero() {
		return nil
	}
	t := r.CreatedAt
	return &t
}

// dayWindow returns the half-open interval [from, to) of local calendar days a bucket
// covers. ok is false for DateAny and unknown buckets.
func dayWindow(b DateBucket, now time.Time) (from, to time.Time, ok bool) {
	today := StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	switch b {
	case DateToday:
		return today, tomorrow, true
	case DateYesterday:
		return today.AddDate(0, 0, -1), today, true
	case DateLast7:
		return today.AddDate(0, 0, -6), tomorrow, true
	case DateLast30:
		return today.AddDate(0, 0, -29), tomorrow, true
	}
	return time.Time{}, time.Time{}, false
}

func inWindow(t *time.Time, from, to time.Time) bool {
	if t == nil {
		return false
	}
	local := t.In(from.Location())
	return !local.Before(from) && local.Before(to)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func matchesSearch(r models.Report, needle string) bool {
	return strings.Contains(strings.ToLower(r.WorkType), needle) ||
		strings.Contains(strings.ToLower(r.Description), needle)
}
