package analytics

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/profitboard/internal/platform/db"
)

// Repository is the read interface over the marketplace store.
type Repository interface {
	ListMarketplaces(ctx context.Context) ([]Marketplace, error)
	DateBounds(ctx context.Context) (DateBounds, error)
	DailyKPIs(ctx context.Context, filter Filter) ([]DailyKPI, error)
	TopSKUs(ctx context.Context, filter Filter, limit int) ([]SKUPerformance, error)
	OrderLineDetail(ctx context.Context, filter Filter, offset, limit int) (DetailPage, error)
	OrderLineExport(ctx context.Context, filter Filter, limit int) ([]OrderLine, error)
}

// PGRepository implements Repository with pgx against the shared pool.
type PGRepository struct {
	pool    *pgxpool.Pool
	queries queryBuilder
}

// NewRepository constructs a PostgreSQL repository reading tables from schema.
func NewRepository(pool *pgxpool.Pool, schema string) *PGRepository {
	return &PGRepository{pool: pool, queries: newQueryBuilder(schema)}
}

// ListMarketplaces returns the marketplace dimension ordered by code.
func (r *PGRepository) ListMarketplaces(ctx context.Context) ([]Marketplace, error) {
	rows, err := r.pool.Query(ctx, r.queries.listMarketplaces())
	if err != nil {
		return nil, wrapQuery("list marketplaces", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Marketplace, error) {
		var m Marketplace
		err := row.Scan(&m.Code, &m.Name)
		return m, err
	})
	if err != nil {
		return nil, wrapQuery("list marketplaces", err)
	}
	if out == nil {
		out = []Marketplace{}
	}
	return out, nil
}

// DateBounds returns the calendar days of the oldest and newest orders in the
// report time zone.
func (r *PGRepository) DateBounds(ctx context.Context) (DateBounds, error) {
	var minAt, maxAt *time.Time
	if err := r.pool.QueryRow(ctx, r.queries.dateBounds()).Scan(&minAt, &maxAt); err != nil {
		return DateBounds{}, wrapQuery("date bounds", err)
	}
	return DateBounds{Min: minAt, Max: maxAt}, nil
}

// DailyKPIs aggregates per marketplace and calendar day.
func (r *PGRepository) DailyKPIs(ctx context.Context, filter Filter) ([]DailyKPI, error) {
	rows, err := r.pool.Query(ctx, r.queries.dailyKPIs(), filterArgs(filter)...)
	if err != nil {
		return nil, wrapQuery("daily kpis", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailyKPI, error) {
		var k DailyKPI
		err := row.Scan(&k.MarketplaceCode, &k.Day, &k.GMV, &k.Refunds, &k.Fees, &k.Contribution)
		return k, err
	})
	if err != nil {
		return nil, wrapQuery("daily kpis", err)
	}
	if out == nil {
		out = []DailyKPI{}
	}
	return out, nil
}

// TopSKUs aggregates per marketplace and SKU ranked by contribution. limit <= 0
// returns every SKU.
func (r *PGRepository) TopSKUs(ctx context.Context, filter Filter, limit int) ([]SKUPerformance, error) {
	args := filterArgs(filter)
	if limit > 0 {
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, r.queries.topSKUs(limit > 0), args...)
	if err != nil {
		return nil, wrapQuery("top skus", err)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SKUPerformance, error) {
		var s SKUPerformance
		err := row.Scan(&s.MarketplaceCode, &s.SKU, &s.Units, &s.GMV, &s.Refunds, &s.Fees, &s.Contribution)
		return s, err
	})
	if err != nil {
		return nil, wrapQuery("top skus", err)
	}
	if out == nil {
		out = []SKUPerformance{}
	}
	return out, nil
}

// OrderLineDetail returns one window of lines and the total match count. Both
// statements run in one read-only snapshot so the count always agrees with the page.
func (r *PGRepository) OrderLineDetail(ctx context.Context, filter Filter, offset, limit int) (DetailPage, error) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = 1
	}
	args := filterArgs(filter)
	page := DetailPage{Rows: []OrderLine{}}
	err := db.WithReadOnlyTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, r.queries.detailCount(), args...).Scan(&page.Total); err != nil {
			return err
		}
		if page.Total == 0 || offset >= page.Total {
			return nil
		}
		rows, err := tx.Query(ctx, r.queries.detailPage(), append(args, offset, limit)...)
		if err != nil {
			return err
		}
		lines, err := pgx.CollectRows(rows, scanOrderLine)
		if err != nil {
			return err
		}
		if lines != nil {
			page.Rows = lines
		}
		return nil
	})
	if err != nil {
		return DetailPage{}, wrapQuery("order line detail", err)
	}
	return page, nil
}

// OrderLineExport reads up to limit matching lines in detail order with one
// statement inside a read-only snapshot.
func (r *PGRepository) OrderLineExport(ctx context.Context, filter Filter, limit int) ([]OrderLine, error) {
	if limit <= 0 {
		limit = 1
	}
	out := []OrderLine{}
	err := db.WithReadOnlyTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, r.queries.detailExport(), append(filterArgs(filter), limit)...)
		if err != nil {
			return err
		}
		lines, err := pgx.CollectRows(rows, scanOrderLine)
		if err != nil {
			return err
		}
		if lines != nil {
			out = lines
		}
		return nil
	})
	if err != nil {
		return nil, wrapQuery("order line export", err)
	}
	return out, nil
}

func scanOrderLine(row pgx.CollectableRow) (OrderLine, error) {
	var l OrderLine
	err := row.Scan(&l.MarketplaceCode, &l.Day, &l.OrderID, &l.LineID, &l.SKU, &l.Qty,
		&l.UnitGross, &l.ShippingPrice, &l.LineGMV, &l.Refunds, &l.Fees, &l.Contribution)
	return l, err
}

var _ Repository = (*PGRepository)(nil)
