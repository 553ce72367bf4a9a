package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Operation names used for cache keys and metrics labels.
const (
	opMarketplaces = "marketplaces"
	opDateBounds   = "date_bounds"
	opDailyKPIs    = "daily_kpis"
	opTopSKUs      = "top_skus"
	opOrderLines   = "order_lines"
)

// Service coordinates profitability queries with the result cache.
type Service struct {
	repo  Repository
	cache *Cache
}

// NewService wires a Repository with a Cache helper. A nil cache queries the
// store on every call.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// fetch runs loader through the cache under key and decodes the result into dest.
func fetch[T any](ctx context.Context, s *Service, op, key string, loader func(context.Context) (T, error)) (T, error) {
	var out T
	_, err := s.cache.FetchJSON(ctx, op, key, &out, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}
