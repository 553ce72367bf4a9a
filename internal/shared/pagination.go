package shared

import "context"

// DefaultPerPage is used when a caller supplies a non-positive page size.
const DefaultPerPage = 50

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// Window converts a 1-based page into an offset and limit. Pages below 1 are
// treated as page 1.
func Window(page, perPage int) (offset, limit int) {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	return (page - 1) * perPage, perPage
}

// NewPagination computes pagination metadata. TotalPages is never below 1 so an
// empty result still renders as "page 1 of 1".
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page <= 0 {
		page = 1
	}
	if total < 0 {
		total = 0
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages < 1 {
		totalPages = 1
	}
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// Offset returns the row offset of the current page.
func (p Pagination) Offset() int {
	offset, _ := Window(p.Page, p.PerPage)
	return offset
}

// HasPrev reports whether a previous page exists.
func (p Pagination) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether a following page exists.
func (p Pagination) HasNext() bool { return p.Page < p.TotalPages }

// Prev returns the previous page number, floored at 1.
func (p Pagination) Prev() int {
	if p.Page <= 1 {
		return 1
	}
	return p.Page - 1
}

// Next returns the following page number. Callers clamp against TotalPages.
func (p Pagination) Next() int {
	return p.Page + 1
}

// Clamp returns page bounded to [1, TotalPages].
func (p Pagination) Clamp(page int) int {
	if page < 1 {
		return 1
	}
	if page > p.TotalPages {
		return p.TotalPages
	}
	return page
}

// PageFetcher loads the rows at offset/limit together with the total row count.
type PageFetcher[T any] func(ctx context.Context, offset, limit int) ([]T, int, error)

// Paginate fetches page and, when it lies past the last page, refetches the last
// page instead.
func Paginate[T any](ctx context.Context, page, perPage int, fetch PageFetcher[T]) ([]T, Pagination, error) {
	if page < 1 {
		page = 1
	}
	offset, limit := Window(page, perPage)
	rows, total, err := fetch(ctx, offset, limit)
	if err != nil {
		return nil, Pagination{}, err
	}
	meta := NewPagination(page, limit, total)
	if page > meta.TotalPages {
		meta.Page = meta.TotalPages
		offset, limit = Window(meta.Page, limit)
		rows, total, err = fetch(ctx, offset, limit)
		if err != nil {
			return nil, Pagination{}, err
		}
		meta = NewPagination(meta.Page, limit, total)
	}
	return rows, meta, nil
}
