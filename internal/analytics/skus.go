package analytics

import "context"

// TopSKUs ranks marketplace-SKU pairs by contribution, best first. limit <= 0
// returns the full ranking; callers pass the presentation cap explicitly.
func (s *Service) TopSKUs(ctx context.Context, filter Filter, limit int) ([]SKUPerformance, error) {
	filter = filter.Normalize()
	if limit < 0 {
		limit = 0
	}
	return fetch(ctx, s, opTopSKUs, keyTopSKUs(filter, limit), func(ctx context.Context) ([]SKUPerformance, error) {
		return s.repo.TopSKUs(ctx, filter, limit)
	})
}
