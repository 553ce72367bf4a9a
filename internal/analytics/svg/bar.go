package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Bars renders a grouped bar chart comparing two series per label. Either
// series may be empty.
func Bars(width, height int, seriesA, seriesB []float64, labels []string, opts BarOpts) (template.HTML, error) {
	if len(seriesA) == 0 && len(seriesB) == 0 {
		return "", fmt.Errorf("svg: at least one series required")
	}
	if len(labels) == 0 {
		return "", fmt.Errorf("svg: labels required")
	}
	if len(seriesA) > 0 && len(seriesA) != len(labels) {
		return "", fmt.Errorf("svg: seriesA length must match labels")
	}
	if len(seriesB) > 0 && len(seriesB) != len(labels) {
		return "", fmt.Errorf("svg: seriesB length must match labels")
	}

	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.AxisColor, opts.GridColor, seriesA, seriesB)
	if err != nil {
		return "", err
	}
	colorA := fallback(opts.ColorA, Palette[0])
	colorB := fallback(opts.ColorB, Palette[1])
	labelA := fallback(opts.SeriesALabel, "Series A")
	labelB := fallback(opts.SeriesBLabel, "Series B")

	groupWidth := f.plotW / float64(len(labels))
	barWidth := groupWidth / 3
	xAt := func(i int) float64 { return f.pad + float64(i)*groupWidth + groupWidth/2 }

	var b strings.Builder
	f.open(&b, opts.Title, opts.Description, "bar", "Bar chart")
	f.grid(&b)
	f.axes(&b)

	bar := func(x, value float64, color, series, label string) {
		top, h := f.barExtent(value)
		fmt.Fprintf(&b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s %s: %s</title></rect>`,
			x, top, barWidth, h, color, template.HTMLEscapeString(series), template.HTMLEscapeString(label), formatTick(value))
	}
	for i, label := range labels {
		baseX := f.pad + float64(i)*groupWidth
		if len(seriesA) > 0 {
			bar(baseX+barWidth*0.3, seriesA[i], colorA, labelA, label)
		}
		if len(seriesB) > 0 {
			bar(baseX+barWidth*1.4, seriesB[i], colorB, labelB, label)
		}
	}

	f.xLabels(&b, labels, opts.MaxLabels, xAt)

	var entries []legendEntry
	if len(seriesA) > 0 {
		entries = append(entries, legendEntry{label: labelA, color: colorA})
	}
	if len(seriesB) > 0 {
		entries = append(entries, legendEntry{label: labelB, color: colorB})
	}
	f.legend(&b, entries)

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// barExtent returns the top edge and height of a bar growing from the zero line.
func (f frame) barExtent(value float64) (float64, float64) {
	zero := f.y(0)
	end := f.y(value)
	top := math.Min(zero, end)
	h := math.Abs(zero - end)
	if top < f.pad {
		h -= f.pad - top
		top = f.pad
	}
	if top+h > f.bottom() {
		h = f.bottom() - top
	}
	return top, math.Max(h, 0)
}
