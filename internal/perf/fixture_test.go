package perf

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/profitboard/internal/analytics"
)

// syntheticRepo serves a fixed quarter of data for three marketplaces and
// sleeps on every call to stand in for query latency.
type syntheticRepo struct {
	latency time.Duration
	calls   atomic.Int64
	daily   []analytics.DailyKPI
	skus    []analytics.SKUPerformance
	lines   []analytics.OrderLine
	bounds  analytics.DateBounds
}

func newSyntheticRepo(latency time.Duration) *syntheticRepo {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 3, -1)
	r := &syntheticRepo{latency: latency, bounds: analytics.DateBounds{Min: &start, Max: &end}}
	codes := []string{"DARTY", "FNAC", "BOULANGER"}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		for i, code := range codes {
			gmv := decimal.NewFromInt(int64(100 + i*25 + d.Day()))
			fees := gmv.Mul(decimal.RequireFromString("0.12")).Round(2)
			r.daily = append(r.daily, analytics.DailyKPI{
				MarketplaceCode: code, Day: d, GMV: gmv, Fees: fees, Contribution: gmv.Sub(fees),
			})
		}
	}
	for i := 0; i < 25; i++ {
		gmv := decimal.NewFromInt(int64(1000 - i*30))
		r.skus = append(r.skus, analytics.SKUPerformance{
			MarketplaceCode: codes[i%len(codes)], SKU: fmt.Sprintf("SKU-%03d", i),
			Units: decimal.NewFromInt(int64(50 - i)), GMV: gmv, Contribution: gmv.Mul(decimal.RequireFromString("0.8")),
		})
	}
	for i := 0; i < 500; i++ {
		gmv := decimal.NewFromInt(int64(20 + i%40))
		r.lines = append(r.lines, analytics.OrderLine{
			MarketplaceCode: codes[i%len(codes)], Day: end.AddDate(0, 0, -(i % 30)),
			OrderID: fmt.Sprintf("O-%05d", i), LineID: "1", SKU: fmt.Sprintf("SKU-%03d", i%25),
			Qty: decimal.NewFromInt(1), UnitGross: gmv, LineGMV: gmv, Contribution: gmv,
		})
	}
	return r
}

func (r *syntheticRepo) wait(ctx context.Context) error {
	r.calls.Add(1)
	if r.latency <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(r.latency):
		return nil
	}
}

func (r *syntheticRepo) ListMarketplaces(ctx context.Context) ([]analytics.Marketplace, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return []analytics.Marketplace{{Code: "BOULANGER"}, {Code: "DARTY"}, {Code: "FNAC"}}, nil
}

func (r *syntheticRepo) DateBounds(ctx context.Context) (analytics.DateBounds, error) {
	if err := r.wait(ctx); err != nil {
		return analytics.DateBounds{}, err
	}
	return r.bounds, nil
}

func (r *syntheticRepo) DailyKPIs(ctx context.Context, _ analytics.Filter) ([]analytics.DailyKPI, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.daily, nil
}

func (r *syntheticRepo) TopSKUs(ctx context.Context, _ analytics.Filter, limit int) ([]analytics.SKUPerformance, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(r.skus) {
		return r.skus[:limit], nil
	}
	return r.skus, nil
}

func (r *syntheticRepo) OrderLineDetail(ctx context.Context, _ analytics.Filter, offset, limit int) (analytics.DetailPage, error) {
	if err := r.wait(ctx); err != nil {
		return analytics.DetailPage{}, err
	}
	page := analytics.DetailPage{Total: len(r.lines)}
	if offset >= len(r.lines) {
		return page, nil
	}
	end := offset + limit
	if end > len(r.lines) {
		end = len(r.lines)
	}
	page.Rows = r.lines[offset:end]
	return page, nil
}

func (r *syntheticRepo) OrderLineExport(ctx context.Context, _ analytics.Filter, limit int) ([]analytics.OrderLine, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	if limit < len(r.lines) {
		return r.lines[:limit], nil
	}
	return r.lines, nil
}
