package analytics

import "context"

// DailyKPIs resolves per marketplace-day profitability using cache-aware lookups.
// Rows are ordered by day then marketplace code.
func (s *Service) DailyKPIs(ctx context.Context, filter Filter) ([]DailyKPI, error) {
	filter = filter.Normalize()
	return fetch(ctx, s, opDailyKPIs, keyDailyKPIs(filter), func(ctx context.Context) ([]DailyKPI, error) {
		return s.repo.DailyKPIs(ctx, filter)
	})
}

// ContributionSeries pivots daily rows into one contribution series per
// marketplace over the sorted set of days. Missing days are zero.
func ContributionSeries(rows []DailyKPI) (days []string, series map[string][]float64) {
	dayIndex := make(map[string]int)
	for _, row := range rows {
		day := row.Day.Format(DateLayout)
		if _, ok := dayIndex[day]; !ok {
			dayIndex[day] = len(days)
			days = append(days, day)
		}
	}
	series = make(map[string][]float64)
	for _, row := range rows {
		values, ok := series[row.MarketplaceCode]
		if !ok {
			values = make([]float64, len(days))
			series[row.MarketplaceCode] = values
		}
		v, _ := row.Contribution.Float64()
		values[dayIndex[row.Day.Format(DateLayout)]] += v
	}
	return days, series
}
