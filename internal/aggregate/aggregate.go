// Package aggregate derives per-employer and per-zip tables from a loaded
// dataset. The functions here are pure: the same dataset and threshold
// always produce the same result, and nothing is kept between calls.
package aggregate

import (
	"sort"

	verrors "github.com/visaboard/visaboard/internal/errors"
	"github.com/visaboard/visaboard/pkg/types"
)

// EmployerAggregate is one surviving source row annotated with the number
// of rows its employer has in the whole dataset.
type EmployerAggregate struct {
	Employer    string  `json:"employer"`
	Value       float64 `json:"value"`
	RecordCount int     `json:"record_count"`
}

// ZipAggregate is the approval total of one zip code.
type ZipAggregate struct {
	Zip            string  `json:"zip"`
	TotalApproval  float64 `json:"total_approval"`
	RecordCount    int     `json:"record_count"`
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
	HasCoordinates bool    `json:"has_coordinates"`
}

// EmployerCounts returns the number of records per employer over the
// unfiltered dataset.
func EmployerCounts(ds *types.Dataset) map[string]int {
	counts := make(map[string]int)
	ds.Each(func(_ int, r types.VisaRecord) {
		counts[r.Employer]++
	})
	return counts
}

// AggregateAndFilter keeps the records whose metric value is at least
// threshold, in source order. RecordCount is computed before filtering, so
// it does not change with the threshold. An empty result is a non-nil
// empty slice.
func AggregateAndFilter(ds *types.Dataset, metric Metric, threshold float64) ([]EmployerAggregate, error) {
	if !metric.Valid() {
		return nil, verrors.NewConfigurationError(verrors.CodeUnknownMetric,
			"unknown metric "+string(metric))
	}

	counts := EmployerCounts(ds)

	out := make([]EmployerAggregate, 0)
	ds.Each(func(_ int, r types.VisaRecord) {
		v := metric.Value(r)
		if v < threshold {
			return
		}
		out = append(out, EmployerAggregate{
			Employer:    r.Employer,
			Value:       v,
			RecordCount: counts[r.Employer],
		})
	})
	return out, nil
}

// SortByValueDesc orders rows by value descending in place. Ties keep
// their relative order.
func SortByValueDesc(rows []EmployerAggregate) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Value > rows[j].Value
	})
}

// AggregateByZip sums SumApproval per zip code over the whole dataset.
// Zips are returned in ascending order. A zip takes its coordinates from
// its first record that carries them.
func AggregateByZip(ds *types.Dataset) []ZipAggregate {
	groups := make(map[string]*ZipAggregate)
	ds.Each(func(_ int, r types.VisaRecord) {
		g, ok := groups[r.Zip]
		if !ok {
			g = &ZipAggregate{Zip: r.Zip}
			groups[r.Zip] = g
		}
		g.TotalApproval += r.SumApproval
		g.RecordCount++
		if !g.HasCoordinates && r.HasCoordinates {
			g.Latitude = r.Latitude
			g.Longitude = r.Longitude
			g.HasCoordinates = true
		}
	})

	out := make([]ZipAggregate, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Zip < out[j].Zip
	})
	return out
}
