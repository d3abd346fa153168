package filter

import "workscope/models"

// DefaultPageSize is used when a caller does not ask for a page size.
const DefaultPageSize = 10

// MaxPageSize caps a requested page size.
const MaxPageSize = 100

// Page is one window of a filtered report list.
type Page struct {
	Items      []models.Report `json:"items"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
	TotalItems int             `json:"total_items"`
}

// TotalPages returns ceil(count/size), and 1 for an empty list.
func TotalPages(count, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (count + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// Paginate returns 1-based page of reports. Out of range pages are clamped.
func Paginate(reports []models.Report, page, size int) Page {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	total := TotalPages(len(reports), size)
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}

	start := (page - 1) * size
	end := min(start+size, len(reports))
	items := []models.Report{}
	if start < end {
		items = reports[start:end:end]
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalPages: total,
		TotalItems: len(reports),
	}
}

// State is a session's browsing position. Changing the view or any criterion sends
// it back to page 1.
type State struct {
	View     models.View `json:"view"`
	Criteria Criteria    `json:"criteria"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

// NewState starts on page 1 of the pending view.
func NewState(pageSize int) *State {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &State{View: models.ViewPending, Page: 1, PageSize: pageSize}
}

// SetView switches the active view.
func (s *State) SetView(v models.View) {
	if v != s.View {
		s.View = v
		s.Page = 1
	}
}

// SetCriteria replaces the criteria.
func (s *State) SetCriteria(c Criteria) {
	if c != s.Criteria {
		s.Criteria = c
		s.Page = 1
	}
}

// SetPage moves to page p; values below 1 select page 1.
func (s *State) SetPage(p int) {
	if p < 1 {
		p = 1
	}
	s.Page = p
}
