package ui

import (
	"html/template"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/profitboard/internal/analytics"
	"github.com/odyssey-erp/profitboard/internal/analytics/svg"
	"github.com/odyssey-erp/profitboard/internal/shared"
)

// MarketplaceOption is one entry of the marketplace multi-select.
type MarketplaceOption struct {
	Code     string
	Name     string
	Selected bool
}

// DashboardFilters is the sanitised filter form state.
type DashboardFilters struct {
	Start        string
	End          string
	MinDate      string
	MaxDate      string
	SKU          string
	Marketplaces []MarketplaceOption
}

// SummaryCard is one headline metric.
type SummaryCard struct {
	Label string
	Value decimal.Decimal
}

// DetailView is the order line table with its pagination controls.
type DetailView struct {
	Rows       []analytics.OrderLine
	Pagination shared.Pagination
}

// DashboardViewModel combines all dashboard data for rendering.
type DashboardViewModel struct {
	Filters         DashboardFilters
	Query           string
	Error           string
	Notice          string
	NoData          bool
	Cards           []SummaryCard
	Daily           []analytics.DailyKPI
	TopSKUs         []analytics.SKUPerformance
	TopSKULimit     int
	Detail          DetailView
	ContributionSVG template.HTML
	TopSKUSVG       template.HTML
}

// LineRenderer abstracts SVG line chart rendering for the dashboard.
type LineRenderer interface {
	Lines(width, height int, labels []string, series []svg.Series, opts svg.LineOpts) (template.HTML, error)
}

// BarRenderer abstracts SVG bar chart rendering for the dashboard.
type BarRenderer interface {
	Bars(width, height int, seriesA, seriesB []float64, labels []string, opts svg.BarOpts) (template.HTML, error)
}

// SVGRenderer adapts the svg package functions to the renderer interfaces.
type SVGRenderer struct{}

// Lines renders a multi-series line chart.
func (SVGRenderer) Lines(width, height int, labels []string, series []svg.Series, opts svg.LineOpts) (template.HTML, error) {
	return svg.Lines(width, height, labels, series, opts)
}

// Bars renders a grouped bar chart.
func (SVGRenderer) Bars(width, height int, seriesA, seriesB []float64, labels []string, opts svg.BarOpts) (template.HTML, error) {
	return svg.Bars(width, height, seriesA, seriesB, labels, opts)
}

// SummaryCards builds the four headline cards in display order.
func SummaryCards(s analytics.Summary) []SummaryCard {
	return []SummaryCard{
		{Label: "GMV (sum)", Value: s.GMV},
		{Label: "Refunds (sum)", Value: s.Refunds},
		{Label: "Fees (sum)", Value: s.Fees},
		{Label: "Contribution (sum)", Value: s.Contribution},
	}
}

// MarketplaceOptions marks the selected codes. An empty selection renders
// every marketplace as selected, which is the dashboard default.
func MarketplaceOptions(markets []analytics.Marketplace, selected []string) []MarketplaceOption {
	picked := make(map[string]struct{}, len(selected))
	for _, code := range selected {
		picked[code] = struct{}{}
	}
	out := make([]MarketplaceOption, 0, len(markets))
	for _, m := range markets {
		_, ok := picked[m.Code]
		out = append(out, MarketplaceOption{
			Code:     m.Code,
			Name:     m.Name,
			Selected: len(selected) == 0 || ok,
		})
	}
	return out
}

// ContributionChartSeries converts the per-marketplace contribution series into
// chart series sorted by marketplace code with palette colours assigned.
func ContributionChartSeries(rows []analytics.DailyKPI) ([]string, []svg.Series) {
	days, byMarket := analytics.ContributionSeries(rows)
	codes := make([]string, 0, len(byMarket))
	for code := range byMarket {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	series := make([]svg.Series, 0, len(codes))
	for i, code := range codes {
		series = append(series, svg.Series{
			Name:   code,
			Values: byMarket[code],
			Color:  svg.Palette[i%len(svg.Palette)],
		})
	}
	return days, series
}

// SKUChartData returns labels with GMV and contribution values for the bar chart.
// Labels are prefixed with the marketplace when more than one is present.
func SKUChartData(rows []analytics.SKUPerformance) (labels []string, gmv, contribution []float64) {
	markets := make(map[string]struct{})
	for _, row := range rows {
		markets[row.MarketplaceCode] = struct{}{}
	}
	labels = make([]string, 0, len(rows))
	gmv = make([]float64, 0, len(rows))
	contribution = make([]float64, 0, len(rows))
	for _, row := range rows {
		label := row.SKU
		if len(markets) > 1 {
			label = row.MarketplaceCode + "/" + row.SKU
		}
		labels = append(labels, label)
		gmv = append(gmv, row.GMV.InexactFloat64())
		contribution = append(contribution, row.Contribution.InexactFloat64())
	}
	return labels, gmv, contribution
}
