package devserver

import (
	"net/http"
	"strconv"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 200
)

// PaginationMeta accompanies list responses.
type PaginationMeta struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// parsePagination reads "limit" and "offset". Missing or invalid values fall
// back to defaults and limit is capped at maxPageLimit.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = defaultPageLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	limit = min(limit, maxPageLimit)

	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}
	return limit, offset
}

// paginate returns the page of items selected by limit and offset. An offset
// past the end yields an empty page.
func paginate[T any](items []T, limit, offset int) ([]T, PaginationMeta) {
	total := len(items)
	start := min(offset, total)
	end := min(start+limit, total)
	return items[start:end], PaginationMeta{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: end < total,
	}
}
