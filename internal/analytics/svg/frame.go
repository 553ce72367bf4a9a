package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// frame holds the plotting area and value scale shared by every chart kind.
type frame struct {
	width, height int
	pad           float64
	plotW, plotH  float64
	minVal        float64
	maxVal        float64
	ticks         int
	axisColor     string
	gridColor     string
}

func newFrame(width, height int, pad float64, ticks int, axisColor, gridColor string, values ...[]float64) (frame, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if pad <= 0 {
		pad = DefaultPadding
	}
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	f := frame{
		width:     width,
		height:    height,
		pad:       pad,
		plotW:     float64(width) - 2*pad,
		plotH:     float64(height) - 2*pad,
		ticks:     ticks,
		axisColor: fallback(axisColor, "#475569"),
		gridColor: fallback(gridColor, "#cbd5e1"),
	}
	if f.plotW <= 0 || f.plotH <= 0 {
		return frame{}, fmt.Errorf("svg: viewport too small")
	}

	// The zero line is always visible so negative contribution reads as a loss.
	for _, series := range values {
		for _, v := range series {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			f.minVal = math.Min(f.minVal, v)
			f.maxVal = math.Max(f.maxVal, v)
		}
	}
	if almostEqual(f.maxVal, f.minVal) {
		f.maxVal = f.minVal + 1
	}
	return f, nil
}

func (f frame) bottom() float64 { return f.pad + f.plotH }

func (f frame) y(v float64) float64 {
	return f.bottom() - (v-f.minVal)/(f.maxVal-f.minVal)*f.plotH
}

func (f frame) open(b *strings.Builder, title, desc, kind, defaultTitle string) {
	titleID := makeID(title, kind+"-title")
	descID := makeID(title, kind+"-desc")
	fmt.Fprintf(b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-labelledby="%s %s">`, f.width, f.height, titleID, descID)
	fmt.Fprintf(b, `<title id="%s">%s</title>`, titleID, template.HTMLEscapeString(fallback(title, defaultTitle)))
	fmt.Fprintf(b, `<desc id="%s">%s</desc>`, descID, template.HTMLEscapeString(fallback(desc, defaultTitle)))
}

func (f frame) grid(b *strings.Builder) {
	for i := 0; i <= f.ticks; i++ {
		ratio := float64(i) / float64(f.ticks)
		value := f.minVal + (f.maxVal-f.minVal)*ratio
		y := f.y(value)
		fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"></line>`, f.pad, y, f.pad+f.plotW, y, f.gridColor)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, f.pad-6, y+4, f.axisColor, template.HTMLEscapeString(formatTick(value)))
	}
}

func (f frame) axes(b *strings.Builder) {
	zero := f.y(0)
	fmt.Fprintf(b, `<g stroke="%s" aria-hidden="true">`, f.axisColor)
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.pad, f.pad, f.pad, f.bottom())
	fmt.Fprintf(b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke-width="1"></line>`, f.pad, zero, f.pad+f.plotW, zero)
	b.WriteString("</g>")
}

// xLabels writes at most maxLabels evenly spaced category labels; xAt maps a
// label index to its x coordinate.
func (f frame) xLabels(b *strings.Builder, labels []string, maxLabels int, xAt func(int) float64) {
	stride := labelStride(len(labels), maxLabels)
	for i, label := range labels {
		if i%stride != 0 && i != len(labels)-1 {
			continue
		}
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, xAt(i), f.bottom()+14, f.axisColor, template.HTMLEscapeString(label))
	}
}

type legendEntry struct {
	label string
	color string
}

func (f frame) legend(b *strings.Builder, entries []legendEntry) {
	y := math.Max(f.pad-14, 12)
	x := f.pad
	for _, e := range entries {
		fmt.Fprintf(b, `<rect x="%.2f" y="%.2f" width="10" height="10" fill="%s"></rect>`, x, y-8, e.color)
		fmt.Fprintf(b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="start">%s</text>`, x+14, y, f.axisColor, template.HTMLEscapeString(e.label))
		x += 24 + 6*float64(len([]rune(e.label)))
	}
}

func labelStride(n, maxLabels int) int {
	if maxLabels <= 0 {
		maxLabels = DefaultMaxLabels
	}
	if n <= maxLabels {
		return 1
	}
	return int(math.Ceil(float64(n) / float64(maxLabels)))
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return cleaned + "-" + suffix
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000:
		return fmt.Sprintf("%.1fM", v/1_000_000)
	case abs >= 1_000:
		return fmt.Sprintf("%.1fk", v/1_000)
	case almostEqual(v, math.Round(v)):
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
