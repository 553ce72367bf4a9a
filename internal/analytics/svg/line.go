package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Lines renders one polyline per series over shared category labels.
func Lines(width, height int, labels []string, series []Series, opts LineOpts) (template.HTML, error) {
	if len(series) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(labels) == 0 {
		return "", fmt.Errorf("svg: labels required")
	}
	values := make([][]float64, len(series))
	for i, s := range series {
		if len(s.Values) != len(labels) {
			return "", fmt.Errorf("svg: series %q has %d values for %d labels", s.Name, len(s.Values), len(labels))
		}
		values[i] = s.Values
	}

	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.AxisColor, opts.GridColor, values...)
	if err != nil {
		return "", err
	}

	xAt := func(i int) float64 {
		if len(labels) == 1 {
			return f.pad + f.plotW/2
		}
		return f.pad + float64(i)*f.plotW/float64(len(labels)-1)
	}

	var b strings.Builder
	f.open(&b, opts.Title, opts.Description, "line", "Line chart")
	f.grid(&b)
	f.axes(&b)

	entries := make([]legendEntry, 0, len(series))
	for i, s := range series {
		color := fallback(s.Color, Palette[i%len(Palette)])
		entries = append(entries, legendEntry{label: s.Name, color: color})

		var path strings.Builder
		for j, v := range s.Values {
			cmd := "L"
			if j == 0 {
				cmd = "M"
			}
			fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xAt(j), f.y(v))
		}
		fmt.Fprintf(&b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round" data-series="%s"></path>`,
			strings.TrimSpace(path.String()), color, template.HTMLEscapeString(s.Name))

		if opts.ShowDots || len(labels) == 1 {
			for j, v := range s.Values {
				fmt.Fprintf(&b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"><title>%s %s: %s</title></circle>`,
					xAt(j), f.y(v), color, template.HTMLEscapeString(s.Name), template.HTMLEscapeString(labels[j]), formatTick(v))
			}
		}
	}

	f.xLabels(&b, labels, opts.MaxLabels, xAt)
	if len(series) > 1 {
		f.legend(&b, entries)
	}
	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
