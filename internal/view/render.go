// Package view turns a dataset and a pair of slider thresholds into the
// panels the dashboard displays.
package view

import (
	"time"

	"github.com/mmcloughlin/geohash"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/visaboard/visaboard/internal/aggregate"
	"github.com/visaboard/visaboard/pkg/types"
)

const (
	DefaultTitle       = "H-1B Visa Analysis and Visualization"
	DefaultDescription = "The H-1B visa lets skilled foreign workers take specialized jobs in the " +
		"United States. This dashboard shows which employers sponsor the most H-1B visas and " +
		"which ones see the most denials, so job seekers can tell H-1B friendly employers " +
		"from the rest, and where approvals concentrate by zip code."

	DefaultPreviewRows = 20
	geohashPrecision   = 7
)

// Thresholds are the two slider values.
type Thresholds struct {
	Approval float64 `json:"approval"`
	Denial   float64 `json:"denial"`
}

// Options controls rendering.
type Options struct {
	Title       string
	Description string

	// PreviewRows is the number of raw rows in the preview (default 20)
	PreviewRows int

	// MaxBars caps the bars of each chart panel; 0 means no cap
	MaxBars int
}

// ViewModel is everything the dashboard shows for one pair of thresholds.
type ViewModel struct {
	Thresholds Thresholds `json:"thresholds"`
	Overview   Overview   `json:"overview"`
	Preview    Preview    `json:"preview"`
	Approval   Panel      `json:"approval"`
	Denial     Panel      `json:"denial"`
	Map        MapPanel   `json:"map"`
}

// Overview describes the dataset as a whole.
type Overview struct {
	Title       string           `json:"title"`
	Subtitle    string           `json:"subtitle"`
	Description string           `json:"description"`
	Source      string           `json:"source"`
	Fingerprint string           `json:"fingerprint"`
	LoadedAt    time.Time        `json:"loaded_at"`
	Totals      aggregate.Totals `json:"totals"`
	Summary     []string         `json:"summary"`
}

// Preview is the head of the raw table.
type Preview struct {
	Title      string     `json:"title"`
	Header     []string   `json:"header"`
	Rows       [][]string `json:"rows"`
	TotalRows  int        `json:"total_rows"`
	ShownRows  int        `json:"shown_rows"`
	RowsCapped bool       `json:"rows_capped"`
}

// Panel is one per-employer chart with its rows.
type Panel struct {
	Metric    aggregate.Metric              `json:"metric"`
	Title     string                        `json:"title"`
	AxisTitle string                        `json:"axis_title"`
	Threshold float64                       `json:"threshold"`
	Rows      []aggregate.EmployerAggregate `json:"rows"`
	Bars      []aggregate.EmployerTotal     `json:"bars"`
	TotalBars int                           `json:"total_bars"`
	Truncated bool                          `json:"truncated"`
}

// MapPanel holds one point per zip code.
type MapPanel struct {
	Title  string      `json:"title"`
	Points []MapPoint  `json:"points"`
	Legend []ColorStop `json:"legend"`
}

// MapPoint is the approval total of a zip code, with a colour bucket.
type MapPoint struct {
	Zip            string  `json:"zip"`
	TotalApproval  float64 `json:"total_approval"`
	Color          string  `json:"color"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
	HasCoordinates bool    `json:"has_coordinates"`
	Geohash        string  `json:"geohash,omitempty"`
}

// ColorStop maps the lower bound of an approval bucket to its colour.
type ColorStop struct {
	From  float64 `json:"from"`
	Color string  `json:"color"`
}

// ColorScale is the map legend, ascending by From.
var ColorScale = []ColorStop{
	{From: 0, Color: "lightblue"},
	{From: 1000, Color: "mediumblue"},
	{From: 2000, Color: "darkblue"},
}

// ColorFor returns the colour bucket of an approval total. Values below the
// first stop take the first colour.
func ColorFor(total float64) string {
	color := ColorScale[0].Color
	for _, stop := range ColorScale {
		if total >= stop.From {
			color = stop.Color
		}
	}
	return color
}

// Render builds the view model. It is pure: any thresholds, in any order,
// against the same dataset.
func Render(ds *types.Dataset, th Thresholds, opts Options) (ViewModel, error) {
	opts = withDefaults(opts)

	approval, err := RenderPanel(ds, aggregate.MetricApproval, th.Approval, opts.MaxBars)
	if err != nil {
		return ViewModel{}, err
	}
	denial, err := RenderPanel(ds, aggregate.MetricDenial, th.Denial, opts.MaxBars)
	if err != nil {
		return ViewModel{}, err
	}

	return ViewModel{
		Thresholds: th,
		Overview:   RenderOverview(ds, opts),
		Preview:    RenderPreview(ds, opts.PreviewRows),
		Approval:   approval,
		Denial:     denial,
		Map:        RenderMap(aggregate.AggregateByZip(ds)),
	}, nil
}

func withDefaults(opts Options) Options {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	if opts.Description == "" {
		opts.Description = DefaultDescription
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	return opts
}

// RenderOverview summarises the dataset.
func RenderOverview(ds *types.Dataset, opts Options) Overview {
	opts = withDefaults(opts)
	totals := aggregate.ComputeTotals(ds)
	info := ds.Info()
	p := message.NewPrinter(language.English)

	return Overview{
		Title:       opts.Title,
		Subtitle:    "H-1B Visa",
		Description: opts.Description,
		Source:      info.Source,
		Fingerprint: info.Fingerprint,
		LoadedAt:    info.LoadedAt,
		Totals:      totals,
		Summary: []string{
			p.Sprintf("%d records from %d employers across %d zip codes", totals.Records, totals.Employers, totals.Zips),
			p.Sprintf("%.0f approvals and %.0f denials in total", totals.Approvals, totals.Denials),
		},
	}
}

// RenderPreview returns the header and the first n raw rows.
func RenderPreview(ds *types.Dataset, n int) Preview {
	head := ds.Head(n)
	rows := make([][]string, len(head))
	for i, r := range head {
		rows[i] = r.Raw
	}
	return Preview{
		Title:      "First Rows of the Dataset",
		Header:     ds.Header(),
		Rows:       rows,
		TotalRows:  ds.Len(),
		ShownRows:  len(rows),
		RowsCapped: len(rows) < ds.Len(),
	}
}

// RenderPanel filters the dataset by metric >= threshold and prepares the
// rows (value descending) and the per-employer bars.
func RenderPanel(ds *types.Dataset, metric aggregate.Metric, threshold float64, maxBars int) (Panel, error) {
	rows, err := aggregate.AggregateAndFilter(ds, metric, threshold)
	if err != nil {
		return Panel{}, err
	}
	bars := aggregate.RollupByEmployer(rows)
	aggregate.SortByValueDesc(rows)

	panel := Panel{
		Metric:    metric,
		Threshold: threshold,
		Rows:      rows,
		TotalBars: len(bars),
	}
	switch metric {
	case aggregate.MetricApproval:
		panel.Title = "H-1B Sum of Approval by Employer"
		panel.AxisTitle = "Sum of Approval"
	case aggregate.MetricDenial:
		panel.Title = "H-1B Sum of Denial by Employer"
		panel.AxisTitle = "Sum of Denial"
	}

	if maxBars > 0 && len(bars) > maxBars {
		bars = bars[:maxBars]
		panel.Truncated = true
	}
	panel.Bars = bars
	return panel, nil
}

// RenderMap builds one point per zip aggregate.
func RenderMap(zips []aggregate.ZipAggregate) MapPanel {
	points := make([]MapPoint, len(zips))
	for i, z := range zips {
		pt := MapPoint{
			Zip:           z.Zip,
			TotalApproval: z.TotalApproval,
			Color:         ColorFor(z.TotalApproval),
		}
		if z.HasCoordinates {
			pt.Latitude = z.Latitude
			pt.Longitude = z.Longitude
			pt.HasCoordinates = true
			pt.Geohash = geohash.EncodeWithPrecision(z.Latitude, z.Longitude, geohashPrecision)
		}
		points[i] = pt
	}

	legend := make([]ColorStop, len(ColorScale))
	copy(legend, ColorScale)

	return MapPanel{
		Title:  "H-1B Visa Approval by Location (Zip Code)",
		Points: points,
		Legend: legend,
	}
}
