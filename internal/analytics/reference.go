package analytics

import "context"

// ListMarketplaces returns every marketplace ordered by code.
func (s *Service) ListMarketplaces(ctx context.Context) ([]Marketplace, error) {
	return fetch(ctx, s, opMarketplaces, keyMarketplaces(), s.repo.ListMarketplaces)
}

// GetDateBounds returns the order date range. DateBounds.Empty reports a store
// without orders.
func (s *Service) GetDateBounds(ctx context.Context) (DateBounds, error) {
	return fetch(ctx, s, opDateBounds, keyDateBounds(), s.repo.DateBounds)
}

// MarketplaceCodes extracts the codes from a marketplace listing.
func MarketplaceCodes(markets []Marketplace) []string {
	codes := make([]string, len(markets))
	for i, m := range markets {
		codes[i] = m.Code
	}
	return codes
}
