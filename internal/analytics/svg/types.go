package svg

// Series is one named sequence of values aligned with the chart labels.
type Series struct {
	Name   string
	Values []float64
	Color  string
}

// LineOpts customises the multi-series line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
	MaxLabels   int
}

// BarOpts customises the grouped bar chart renderer.
type BarOpts struct {
	Title        string
	Description  string
	SeriesALabel string
	SeriesBLabel string
	ColorA       string
	ColorB       string
	AxisColor    string
	GridColor    string
	Padding      float64
	TickCount    int
	MaxLabels    int
}

// Defaults for the dashboard charts.
const (
	DefaultWidth     = 720
	DefaultHeight    = 260
	DefaultPadding   = 36.0
	DefaultTicks     = 5
	DefaultMaxLabels = 12
)

// Palette assigns colours to series that do not set one.
var Palette = []string{"#2563eb", "#f97316", "#16a34a", "#9333ea", "#dc2626", "#0891b2", "#ca8a04", "#db2777"}
