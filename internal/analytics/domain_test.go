package analytics

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestUnitGrossPrefersTaxInclusivePrice(t *testing.T) {
	incl := decimal.NewNullDecimal(d("10.00"))
	assert.True(t, UnitGross(incl, d("8.00"), d("1.60")).Equal(d("10.00")))

	missing := decimal.NullDecimal{}
	assert.True(t, UnitGross(missing, d("8.00"), d("1.60")).Equal(d("9.60")))
}

func TestLineGMVAndContribution(t *testing.T) {
	gmv := LineGMV(decimal.NewFromInt(2), UnitGross(decimal.NewNullDecimal(d("10.00")), decimal.Zero, decimal.Zero))
	assert.True(t, gmv.Equal(d("20.00")))

	refunds := d("2.00").Add(d("0.40"))
	assert.True(t, Contribution(gmv, refunds, decimal.Zero).Equal(d("17.60")))
	assert.True(t, Contribution(d("5"), d("4"), d("3")).Equal(d("-2")))
}

func TestTotalsRecomputesContributionFromSums(t *testing.T) {
	rows := []DailyKPI{
		{GMV: d("20.00"), Refunds: d("2.40"), Fees: d("1.10"), Contribution: d("16.50")},
		{GMV: d("0.10"), Refunds: d("0"), Fees: d("0.20"), Contribution: d("-0.10")},
	}
	s := Totals(rows)
	assert.True(t, s.GMV.Equal(d("20.10")))
	assert.True(t, s.Refunds.Equal(d("2.40")))
	assert.True(t, s.Fees.Equal(d("1.30")))
	assert.True(t, s.Contribution.Equal(d("16.40")))

	assert.True(t, Totals(nil).Contribution.IsZero())
}

func TestDateRangeHalfOpen(t *testing.T) {
	r, err := NewDateRange(time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), r.EndExclusive())
	assert.Equal(t, 31, r.Days())

	_, err = NewDateRange(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.True(t, errors.Is(err, ErrInvalidRange))

	same, err := NewDateRange(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, same.Days())
}

func TestDefaultRange(t *testing.T) {
	minAt := time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	maxAt := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)

	r, ok := DefaultRange(DateBounds{Min: &minAt, Max: &maxAt}, 30)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 2, 9, 0, 0, 0, 0, time.UTC), r.Start)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), r.End)

	r, ok = DefaultRange(DateBounds{Min: &minAt, Max: &maxAt}, 365)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC), r.Start)

	_, ok = DefaultRange(DateBounds{}, 30)
	assert.False(t, ok)
}

func TestFilterNormalize(t *testing.T) {
	f := Filter{MarketplaceCodes: []string{" IT", "FR", "", "IT"}, SKU: "  A1 "}.Normalize()
	assert.Equal(t, []string{"FR", "IT"}, f.MarketplaceCodes)
	assert.Equal(t, "A1", f.SKU)

	empty := Filter{MarketplaceCodes: []string{" ", ""}}.Normalize()
	assert.Nil(t, empty.MarketplaceCodes)
}

func TestContributionSeriesFillsGaps(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)
	days, series := ContributionSeries([]DailyKPI{
		{MarketplaceCode: "FR", Day: day1, Contribution: d("10")},
		{MarketplaceCode: "IT", Day: day1, Contribution: d("4")},
		{MarketplaceCode: "FR", Day: day2, Contribution: d("-2.5")},
	})
	assert.Equal(t, []string{"2024-01-01", "2024-01-02"}, days)
	assert.Equal(t, []float64{10, -2.5}, series["FR"])
	assert.Equal(t, []float64{4, 0}, series["IT"])
}
