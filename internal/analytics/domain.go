package analytics

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used in filters, cache keys and exports.
const DateLayout = "2006-01-02"

// ErrInvalidRange is returned when a date range starts after it ends.
var ErrInvalidRange = errors.New("analytics: start date must be on or before end date")

// DateRange is an inclusive range of calendar dates.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both ends to calendar dates and rejects start > end.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: calendarDate(start), End: calendarDate(end)}
	if r.Start.After(r.End) {
		return DateRange{}, ErrInvalidRange
	}
	return r, nil
}

// EndExclusive returns the first day after the range, the upper bound of the
// half-open window [Start, EndExclusive).
func (r DateRange) EndExclusive() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Days returns the number of calendar days covered.
func (r DateRange) Days() int {
	return int(r.EndExclusive().Sub(r.Start).Hours() / 24)
}

// DefaultRange is the window preselected on the dashboard: the last windowDays
// days ending at the newest order, never starting before the oldest one.
func DefaultRange(bounds DateBounds, windowDays int) (DateRange, bool) {
	if bounds.Empty() {
		return DateRange{}, false
	}
	end := calendarDate(*bounds.Max)
	first := calendarDate(*bounds.Min)
	start := end.AddDate(0, 0, -windowDays)
	if start.Before(first) {
		start = first
	}
	return DateRange{Start: start, End: end}, true
}

func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Filter scopes every aggregation. Empty MarketplaceCodes and SKU mean "no filter".
type Filter struct {
	Range            DateRange
	MarketplaceCodes []string
	SKU              string
}

// Normalize trims the SKU and returns marketplace codes deduplicated and sorted,
// so equal filters produce equal queries and cache keys.
func (f Filter) Normalize() Filter {
	out := Filter{Range: f.Range, SKU: strings.TrimSpace(f.SKU)}
	if len(f.MarketplaceCodes) == 0 {
		return out
	}
	seen := make(map[string]struct{}, len(f.MarketplaceCodes))
	codes := make([]string, 0, len(f.MarketplaceCodes))
	for _, code := range f.MarketplaceCodes {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	sort.Strings(codes)
	if len(codes) > 0 {
		out.MarketplaceCodes = codes
	}
	return out
}

// Marketplace is the reference dimension.
type Marketplace struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DateBounds is the range of order timestamps in the store. Both ends are nil
// when no orders exist.
type DateBounds struct {
	Min *time.Time `json:"min,omitempty"`
	Max *time.Time `json:"max,omitempty"`
}

// Empty reports "no data yet".
func (b DateBounds) Empty() bool {
	return b.Min == nil || b.Max == nil
}

// DailyKPI is one marketplace-day rollup.
type DailyKPI struct {
	MarketplaceCode string          `json:"marketplace_code"`
	Day             time.Time       `json:"day"`
	GMV             decimal.Decimal `json:"gmv"`
	Refunds         decimal.Decimal `json:"refunds"`
	Fees            decimal.Decimal `json:"fees"`
	Contribution    decimal.Decimal `json:"contribution"`
}

// SKUPerformance is one marketplace-SKU rollup.
type SKUPerformance struct {
	MarketplaceCode string          `json:"marketplace_code"`
	SKU             string          `json:"sku"`
	Units           decimal.Decimal `json:"units"`
	GMV             decimal.Decimal `json:"gmv"`
	Refunds         decimal.Decimal `json:"refunds"`
	Fees            decimal.Decimal `json:"fees"`
	Contribution    decimal.Decimal `json:"contribution"`
}

// OrderLine is a single drill-down row with its summed refunds attached.
type OrderLine struct {
	MarketplaceCode string          `json:"marketplace_code"`
	Day             time.Time       `json:"day"`
	OrderID         string          `json:"order_id"`
	LineID          string          `json:"line_id"`
	SKU             string          `json:"sku"`
	Qty             decimal.Decimal `json:"qty"`
	UnitGross       decimal.Decimal `json:"unit_gross"`
	ShippingPrice   decimal.Decimal `json:"shipping_price"`
	LineGMV         decimal.Decimal `json:"line_gmv"`
	Refunds         decimal.Decimal `json:"refunds"`
	Fees            decimal.Decimal `json:"fees"`
	Contribution    decimal.Decimal `json:"contribution"`
}

// DetailPage is one window of order lines plus the count of all matching lines.
type DetailPage struct {
	Rows  []OrderLine `json:"rows"`
	Total int         `json:"total"`
}

// Summary holds the headline sums shown above the charts.
type Summary struct {
	GMV          decimal.Decimal `json:"gmv"`
	Refunds      decimal.Decimal `json:"refunds"`
	Fees         decimal.Decimal `json:"fees"`
	Contribution decimal.Decimal `json:"contribution"`
}

// UnitGross prefers the tax-inclusive unit price and falls back to
// tax-exclusive price plus tax.
func UnitGross(priceTaxIncl decimal.NullDecimal, priceTaxExcl, taxAmount decimal.Decimal) decimal.Decimal {
	if priceTaxIncl.Valid {
		return priceTaxIncl.Decimal
	}
	return priceTaxExcl.Add(taxAmount)
}

// LineGMV is qty * unit gross.
func LineGMV(qty, unitGross decimal.Decimal) decimal.Decimal {
	return qty.Mul(unitGross)
}

// Contribution is gmv - refunds - fees.
func Contribution(gmv, refunds, fees decimal.Decimal) decimal.Decimal {
	return gmv.Sub(refunds).Sub(fees)
}

// Totals sums daily rows; contribution is recomputed from the sums.
func Totals(rows []DailyKPI) Summary {
	var s Summary
	for _, row := range rows {
		s.GMV = s.GMV.Add(row.GMV)
		s.Refunds = s.Refunds.Add(row.Refunds)
		s.Fees = s.Fees.Add(row.Fees)
	}
	s.Contribution = Contribution(s.GMV, s.Refunds, s.Fees)
	return s
}
