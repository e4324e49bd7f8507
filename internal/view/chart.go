package view

import (
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartOptions sizes a rendered bar chart. Width grows with the number of
// bars so labels stay legible.
type ChartOptions struct {
	Width    int
	Height   int
	BarWidth int
}

// DefaultChartOptions returns the default chart size.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 1024, Height: 512, BarWidth: 40}
}

const (
	barSpacing    = 12
	chartPadding  = 120
	maxLabelRunes = 16
	emptyLabel    = "no employers at this threshold"
)

var (
	barColor   = drawing.ColorFromHex("4682b4")
	background = drawing.ColorFromHex("f0f0f0")
)

// RenderBarChart writes the panel's employer bars as an SVG bar chart. A
// panel without bars renders a single empty placeholder bar.
func RenderBarChart(w io.Writer, panel Panel, opts ChartOptions) error {
	def := DefaultChartOptions()
	if opts.Width <= 0 {
		opts.Width = def.Width
	}
	if opts.Height <= 0 {
		opts.Height = def.Height
	}
	if opts.BarWidth <= 0 {
		opts.BarWidth = def.BarWidth
	}

	bars := make([]chart.Value, 0, len(panel.Bars))
	lo, hi := 0.0, 0.0
	for _, b := range panel.Bars {
		bars = append(bars, chart.Value{
			Label: truncateLabel(b.Employer),
			Value: b.Total,
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
		lo = math.Min(lo, b.Total)
		hi = math.Max(hi, b.Total)
	}
	if len(bars) == 0 {
		bars = append(bars, chart.Value{Label: emptyLabel, Value: 0})
	}
	if hi-lo < 1 {
		hi = lo + 1
	}

	width := len(bars)*(opts.BarWidth+barSpacing) + chartPadding
	if width < opts.Width {
		width = opts.Width
	}

	graph := chart.BarChart{
		Title:      panel.Title,
		Width:      width,
		Height:     opts.Height,
		BarWidth:   opts.BarWidth,
		BarSpacing: barSpacing,
		Background: chart.Style{
			FillColor: background,
			Padding:   chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16},
		},
		YAxis: chart.YAxis{
			Name:  panel.AxisTitle,
			Range: &chart.ContinuousRange{Min: lo, Max: hi * 1.05},
		},
		Bars: bars,
	}
	return graph.Render(chart.SVG, w)
}

func truncateLabel(s string) string {
	r := []rune(s)
	if len(r) <= maxLabelRunes {
		return s
	}
	return string(r[:maxLabelRunes-1]) + "…"
}
