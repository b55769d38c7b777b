package ui

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/himanshu07rautela/CVD-Gradient/internal/domain"
	"github.com/himanshu07rautela/CVD-Gradient/internal/shaper"
)

const (
	chartWidth  = 640
	chartHeight = 220
	chartPad    = 28
)

var seriesColors = []string{"#d32f2f", "#1976d2", "#388e3c", "#f57c00", "#7b1fa2", "#0097a7", "#5d4037"}

func seriesColor(i int) string {
	return seriesColors[i%len(seriesColors)]
}

func xAt(i, n int) float64 {
	if n <= 1 {
		return chartWidth / 2
	}
	return chartPad + float64(i)*float64(chartWidth-2*chartPad)/float64(n-1)
}

func yAt(percent float64) float64 {
	return chartHeight - chartPad - percent*float64(chartHeight-2*chartPad)/100
}

func chartFrame(b *strings.Builder) {
	fmt.Fprintf(b, `<svg class="chart" viewBox="0 0 %d %d" role="img">`, chartWidth, chartHeight)
	for _, band := range []struct {
		from, to float64
		class    string
	}{{0, 40, "band-low"}, {40, 70, "band-medium"}, {70, 100, "band-high"}} {
		fmt.Fprintf(b, `<rect class="%s" x="%d" y="%.1f" width="%d" height="%.1f"/>`,
			band.class, chartPad, yAt(band.to), chartWidth-2*chartPad, yAt(band.from)-yAt(band.to))
	}
	for _, tick := range []float64{0, 40, 70, 100} {
		fmt.Fprintf(b, `<text class="tick" x="2" y="%.1f">%.0f%%</text>`, yAt(tick)+4, tick)
	}
}

// TrendChart draws one patient's scored records, oldest on the left.
func TrendChart(trend []domain.RiskRecord) template.HTML {
	var points []domain.RiskRecord
	for _, r := range trend {
		if r.Scored {
			points = append(points, r)
		}
	}
	if len(points) == 0 {
		return template.HTML(`<p class="muted">No scored tests yet.</p>`)
	}

	var b strings.Builder
	chartFrame(&b)
	coords := make([]string, 0, len(points))
	for i, r := range points {
		coords = append(coords, fmt.Sprintf("%.1f,%.1f", xAt(i, len(points)), yAt(r.Percent())))
	}
	fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"/>`, seriesColor(0), strings.Join(coords, " "))
	for i, r := range points {
		fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"><title>%s: %s</title></circle>`,
			xAt(i, len(points)), yAt(r.Percent()), seriesColor(0),
			template.HTMLEscapeString(shaper.FormatDate(r.Timestamp)), shaper.FormatPercent(r.Percent()))
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}

// MultiTrendChart draws one line per patient over the shared date axis. A
// missing value breaks that patient's line.
func MultiTrendChart(rows []domain.ChartRow, names []string) template.HTML {
	if len(rows) == 0 {
		return template.HTML(`<p class="muted">No scored tests yet.</p>`)
	}

	var b strings.Builder
	chartFrame(&b)
	for p := range names {
		var segment []string
		flush := func() {
			if len(segment) > 1 {
				fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"/>`, seriesColor(p), strings.Join(segment, " "))
			}
			segment = segment[:0]
		}
		for i, row := range rows {
			if p >= len(row.Values) || row.Values[p] == nil {
				flush()
				continue
			}
			x, y := xAt(i, len(rows)), yAt(*row.Values[p])
			segment = append(segment, fmt.Sprintf("%.1f,%.1f", x, y))
			fmt.Fprintf(&b, `<circle cx="%.1f" cy="%.1f" r="3" fill="%s"><title>%s, %s: %s</title></circle>`,
				x, y, seriesColor(p), template.HTMLEscapeString(names[p]),
				template.HTMLEscapeString(shaper.FormatDate(row.Date)), shaper.FormatPercent(*row.Values[p]))
		}
		flush()
	}
	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}
