package handlers

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"workscope/filter"
	"workscope/models"
	"workscope/normalize"
)

// stateFromQuery reads the view, criteria and page from query parameters.
func stateFromQuery(q url.Values, defaultPageSize int) (*filter.State, error) {
	state := filter.NewState(defaultPageSize)

	if v := q.Get("view"); v != "" {
		view := models.View(v)
		if !view.Valid() {
			return nil, fmt.Errorf("unknown view %q", v)
		}
		state.SetView(view)
	}

	criteria := filter.Criteria{
		CompanyID:  strings.TrimSpace(q.Get("company")),
		WorkerID:   strings.TrimSpace(q.Get("worker")),
		Department: strings.TrimSpace(q.Get("department")),
		Date:       filter.DateBucket(q.Get("date")),
		Search:     strings.TrimSpace(q.Get("q")),
	}
	if p := q.Get("priority"); p != "" {
		criteria.Priority = normalize.Priority(p)
		if criteria.Priority == models.PriorityUnset {
			return nil, fmt.Errorf("unknown priority %q", p)
		}
	}
	if !criteria.Date.Valid() {
		return nil, fmt.Errorf("unknown date bucket %q", criteria.Date)
	}
	state.SetCriteria(criteria)

	if v := q.Get("page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return nil, fmt.Errorf("invalid page_size %q", v)
		}
		state.PageSize = min(size, filter.MaxPageSize)
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid page %q", v)
		}
		state.SetPage(page)
	}

	return state, nil
}
