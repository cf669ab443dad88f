// Package query holds the listing primitives shared by every catalog and order
// listing: search, sort direction, offset pagination and the result page.
package query

import "strings"

const (
	// DefaultPageSize is used when the caller does not request a page size.
	DefaultPageSize = 10
	// MaxPageSize caps the number of rows returned in a single page.
	MaxPageSize = 100
)

// Filter is the common listing configuration.
type Filter struct {
	SearchTerm    string
	SortBy        string
	SortDirection string
	Page          int
	PageSize      int
}

// Normalize returns a copy of f with defaults applied: page 1, page size
// DefaultPageSize, page size capped at MaxPageSize and a trimmed search term.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
	f.SearchTerm = strings.TrimSpace(f.SearchTerm)
	return f
}

// Offset is the number of matching rows skipped before the page starts.
func (f Filter) Offset() int {
	if f.Page < 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// Descending reports whether the caller asked for descending order.
// Anything other than "desc" (in any case) sorts ascending.
func (f Filter) Descending() bool {
	return strings.EqualFold(strings.TrimSpace(f.SortDirection), "desc")
}

// Matches reports whether any of fields contains the search term,
// ignoring case. An empty search term matches everything.
func (f Filter) Matches(fields ...string) bool {
	if f.SearchTerm == "" {
		return true
	}
	term := strings.ToLower(f.SearchTerm)
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Page is one page of a listing.
type Page[T any] struct {
	Items      []T
	TotalCount int
	Page       int
	PageSize   int
}

// TotalPages returns the number of pages needed to cover TotalCount.
func (p Page[T]) TotalPages() int {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalCount + p.PageSize - 1) / p.PageSize
}

// Paginate slices an already filtered and sorted list according to f.
func Paginate[T any](items []T, f Filter) Page[T] {
	page := Page[T]{
		TotalCount: len(items),
		Page:       f.Page,
		PageSize:   f.PageSize,
		Items:      []T{},
	}
	start := f.Offset()
	if start >= len(items) {
		return page
	}
	end := min(start+f.PageSize, len(items))
	page.Items = append(page.Items, items[start:end]...)
	return page
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern wraps term in % wildcards for a SQL LIKE/ILIKE substring match,
// escaping wildcard characters inside the term.
func LikePattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
