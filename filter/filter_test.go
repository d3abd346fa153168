package filter

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workscope/models"
)

var now = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

func ids(reports []models.Report) []string {
	out := make([]string, len(reports))
	for i, r := range reports {
		out[i] = r.ID
	}
	return out
}

func daysAgo(n int, hour int) time.Time {
	return time.Date(2024, 5, 10-n, hour, 0, 0, 0, time.UTC)
}

func sample() []models.Report {
	done := func(t time.Time) *time.Time { return &t }
	return []models.Report{
		{ID: "p1", Status: models.StatusPending, CompanyID: "c1", WorkerID: "w1", Priority: models.PriorityHigh, Department: "Sistemas", WorkType: "Network outage", CreatedAt: daysAgo(0, 8)},
		{ID: "p2", Status: models.StatusPending, CompanyID: "c2", WorkerID: "w2", Priority: models.PriorityLow, Department: "sistemas ", WorkType: "Printer", Description: "paper jam", CreatedAt: daysAgo(1, 23)},
		{ID: "p3", Status: models.StatusPending, CompanyID: "c1", WorkerID: "w2", Priority: models.PriorityHigh, Department: "Redes", WorkType: "Cabling", CreatedAt: daysAgo(6, 0)},
		{ID: "p4", Status: models.StatusPending, CompanyID: "c1", WorkerID: "w1", Priority: models.PriorityMedium, Department: "Redes", WorkType: "Router", CreatedAt: daysAgo(7, 12)},
		{ID: "p5", Status: models.StatusPending, CompanyID: "c3", WorkerID: "w3", Department: "Electricidad", WorkType: "Lamp", CreatedAt: daysAgo(29, 1)},
		{ID: "d1", Status: models.StatusCompleted, CompanyID: "c1", WorkerID: "w1", Priority: models.PriorityHigh, Department: "Sistemas", WorkType: "Network", CreatedAt: daysAgo(20, 9), CompletedAt: done(daysAgo(0, 10))},
		{ID: "d2", Status: models.StatusCompleted, CompanyID: "c2", WorkerID: "w2", Priority: models.PriorityLow, Department: "Redes", WorkType: "Switch", CreatedAt: daysAgo(2, 9), CompletedAt: done(daysAgo(1, 10))},
	}
}

func TestApply_ViewSelectsStatus(t *testing.T) {
	assert.Equal(t, []string{"p1", "p2", "p3", "p4", "p5"}, ids(Apply(sample(), Criteria{}, models.ViewPending, now)))
	assert.Equal(t, []string{"d1", "d2"}, ids(Apply(sample(), Criteria{}, models.ViewCompleted, now)))
}

func TestApply_Predicates(t *testing.T) {
	cases := []struct {
		name string
		c    Criteria
		want []string
	}{
		{"company", Criteria{CompanyID: "c1"}, []string{"p1", "p3", "p4"}},
		{"worker", Criteria{WorkerID: "w2"}, []string{"p2", "p3"}},
		{"priority", Criteria{Priority: models.PriorityHigh}, []string{"p1", "p3"}},
		{"department ignores case and space", Criteria{Department: "SISTEMAS"}, []string{"p1", "p2"}},
		{"search work type", Criteria{Search: "network"}, []string{"p1"}},
		{"search description", Criteria{Search: "JAM"}, []string{"p2"}},
		{"today", Criteria{Date: DateToday}, []string{"p1"}},
		{"yesterday", Criteria{Date: DateYesterday}, []string{"p2"}},
		{"last 7 days", Criteria{Date: DateLast7}, []string{"p1", "p2", "p3"}},
		{"last 30 days", Criteria{Date: DateLast30}, []string{"p1", "p2", "p3", "p4", "p5"}},
		{"no match", Criteria{CompanyID: "c9"}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ids(Apply(sample(), tc.c, models.ViewPending, now)))
		})
	}
}

func TestApply_CompletedViewUsesCompletionDate(t *testing.T) {
	got := Apply(sample(), Criteria{Date: DateToday}, models.ViewCompleted, now)
	assert.Equal(t, []string{"d1"}, ids(got), "d1 was created 20 days ago but completed today")

	got = Apply(sample(), Criteria{Date: DateYesterday}, models.ViewCompleted, now)
	assert.Equal(t, []string{"d2"}, ids(got))
}

func TestApply_DayBoundariesAreLocal(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	localNow := time.Date(2024, 5, 10, 1, 0, 0, 0, loc)
	// 04:00 UTC on May 10 is 23:00 on May 9 in loc.
	r := models.Report{ID: "x", Status: models.StatusPending, CreatedAt: time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC)}

	assert.Empty(t, Apply([]models.Report{r}, Criteria{Date: DateToday}, models.ViewPending, localNow))
	assert.Len(t, Apply([]models.Report{r}, Criteria{Date: DateYesterday}, models.ViewPending, localNow), 1)
}

func TestApply_PredicatesCommute(t *testing.T) {
	singles := []Criteria{
		{CompanyID: "c1"},
		{Priority: models.PriorityHigh},
		{Department: "redes"},
		{Date: DateLast7},
		{Search: "c"},
	}
	merge := func(a, b Criteria) Criteria {
		if b.CompanyID != "" {
			a.CompanyID = b.CompanyID
		}
		if b.Priority != "" {
			a.Priority = b.Priority
		}
		if b.Department != "" {
			a.Department = b.Department
		}
		if b.Date != "" {
			a.Date = b.Date
		}
		if b.Search != "" {
			a.Search = b.Search
		}
		return a
	}

	for i, a := range singles {
		for j, b := range singles {
			if i == j {
				continue
			}
			ab := Apply(Apply(sample(), a, models.ViewPending, now), b, models.ViewPending, now)
			ba := Apply(Apply(sample(), b, models.ViewPending, now), a, models.ViewPending, now)
			both := Apply(sample(), merge(a, b), models.ViewPending, now)
			assert.Equal(t, ids(ab), ids(ba), "%d/%d", i, j)
			assert.Equal(t, ids(both), ids(ab), "%d/%d", i, j)
		}
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	in := sample()
	before := ids(in)
	Apply(in, Criteria{CompanyID: "c1"}, models.ViewPending, now)
	assert.Equal(t, before, ids(in))
}

func makeReports(n int) []models.Report {
	out := make([]models.Report, n)
	for i := range out {
		out[i] = models.Report{ID: fmt.Sprintf("r%02d", i)}
	}
	return out
}

func TestPaginate_Empty(t *testing.T) {
	p := Paginate(nil, 1, 10)
	assert.Equal(t, 1, p.TotalPages)
	assert.Equal(t, 1, p.Page)
	assert.NotNil(t, p.Items)
	assert.Empty(t, p.Items)
}

func TestPaginate_PagesConcatenate(t *testing.T) {
	for _, n := range []int{1, 9, 10, 11, 25} {
		reports := makeReports(n)
		total := TotalPages(n, 10)
		var joined []models.Report
		for page := 1; page <= total; page++ {
			p := Paginate(reports, page, 10)
			assert.LessOrEqual(t, len(p.Items), 10)
			assert.Equal(t, n, p.TotalItems)
			joined = append(joined, p.Items...)
		}
		assert.Equal(t, ids(reports), ids(joined), "n=%d", n)
	}
}

func TestPaginate_Clamps(t *testing.T) {
	reports := makeReports(25)

	last := Paginate(reports, 99, 10)
	assert.Equal(t, 3, last.Page)
	assert.Len(t, last.Items, 5)

	first := Paginate(reports, -1, 10)
	assert.Equal(t, 1, first.Page)

	big := Paginate(reports, 1, 1000)
	assert.Equal(t, MaxPageSize, big.PageSize)
	assert.Len(t, big.Items, 25)
}

func TestState_ResetsPage(t *testing.T) {
	s := NewState(0)
	require.Equal(t, DefaultPageSize, s.PageSize)
	assert.Equal(t, models.ViewPending, s.View)

	s.SetPage(4)
	s.SetView(models.ViewPending)
	assert.Equal(t, 4, s.Page, "same view keeps the page")

	s.SetView(models.ViewCompleted)
	assert.Equal(t, 1, s.Page)

	s.SetPage(3)
	s.SetCriteria(Criteria{})
	assert.Equal(t, 3, s.Page, "unchanged criteria keep the page")

	s.SetCriteria(Criteria{WorkerID: "w1"})
	assert.Equal(t, 1, s.Page)

	s.SetPage(0)
	assert.Equal(t, 1, s.Page)
}
