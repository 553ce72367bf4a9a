package analytics

import (
	"context"

	"github.com/odyssey-erp/profitboard/internal/shared"
)

// OrderLineDetail returns the order lines at offset/limit, newest first, with the
// total number of matching lines.
func (s *Service) OrderLineDetail(ctx context.Context, filter Filter, offset, limit int) (DetailPage, error) {
	filter = filter.Normalize()
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = shared.DefaultPerPage
	}
	return fetch(ctx, s, opOrderLines, keyOrderLines(filter, offset, limit), func(ctx context.Context) (DetailPage, error) {
		return s.repo.OrderLineDetail(ctx, filter, offset, limit)
	})
}

// ExportOrderLines reads up to limit matching lines straight from the store.
// Exports bypass the result cache: one export is one snapshot, and caching it
// would only evict dashboard entries.
func (s *Service) ExportOrderLines(ctx context.Context, filter Filter, limit int) ([]OrderLine, error) {
	return s.repo.OrderLineExport(ctx, filter.Normalize(), limit)
}

// OrderLinePage resolves a 1-based page, clamping pages past the end to the
// last page and refetching it.
func (s *Service) OrderLinePage(ctx context.Context, filter Filter, page, perPage int) ([]OrderLine, shared.Pagination, error) {
	return shared.Paginate(ctx, page, perPage, func(ctx context.Context, offset, limit int) ([]OrderLine, int, error) {
		detail, err := s.OrderLineDetail(ctx, filter, offset, limit)
		if err != nil {
			return nil, 0, err
		}
		return detail.Rows, detail.Total, nil
	})
}
