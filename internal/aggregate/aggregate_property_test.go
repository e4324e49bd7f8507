package aggregate

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/visaboard/visaboard/pkg/types"
)

// genDataset builds short datasets over a small set
// of employers and zips, so groups repeat. Values are whole numbers, which
// keeps float sums exact.
func genDataset() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 1<<20)).Map(func(seeds []int) *types.Dataset {
		records := make([]types.VisaRecord, len(seeds))
		for i, s := range seeds {
			records[i] = types.VisaRecord{
				Employer:    fmt.Sprintf("E%d", s%7),
				SumApproval: float64((s / 7) % 4000),
				SumDenial:   float64((s / 11) % 60),
				Zip:         fmt.Sprintf("%05d", 27600+(s/13)%9),
			}
		}
		return types.NewDataset(nil, records, types.DatasetInfo{})
	})
}

func genMetric() gopter.Gen {
	return gen.Bool().Map(func(denial bool) Metric {
		if denial {
			return MetricDenial
		}
		return MetricApproval
	})
}

func TestProperty_MonotonicFiltering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	// Raising the threshold only removes rows, and the survivors are a
	// subsequence of the rows kept at the lower threshold.
	properties.Property("higher threshold yields a subsequence", prop.ForAll(
		func(ds *types.Dataset, metric Metric, t1, t2 float64) bool {
			if t1 > t2 {
				t1, t2 = t2, t1
			}
			low, err := AggregateAndFilter(ds, metric, t1)
			if err != nil {
				return false
			}
			high, err := AggregateAndFilter(ds, metric, t2)
			if err != nil {
				return false
			}
			if len(high) > len(low) {
				return false
			}

			j := 0
			for _, h := range high {
				if h.Value < t2 {
					return false
				}
				for j < len(low) && low[j] != h {
					j++
				}
				if j == len(low) {
					return false
				}
				j++
			}
			return true
		},
		genDataset(),
		genMetric(),
		gen.Float64Range(0, 4000),
		gen.Float64Range(0, 4000),
	))

	properties.TestingRun(t)
}

func TestProperty_RecordCountIgnoresThreshold(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("record count equals unfiltered employer count", prop.ForAll(
		func(ds *types.Dataset, metric Metric, threshold float64) bool {
			counts := EmployerCounts(ds)
			rows, err := AggregateAndFilter(ds, metric, threshold)
			if err != nil {
				return false
			}
			for _, r := range rows {
				if r.RecordCount != counts[r.Employer] {
					return false
				}
			}
			return true
		},
		genDataset(),
		genMetric(),
		gen.Float64Range(0, 4000),
	))

	properties.TestingRun(t)
}

func TestProperty_ZipTotalsConserveApprovals(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("zip totals sum to the grand total", prop.ForAll(
		func(ds *types.Dataset) bool {
			var grand float64
			ds.Each(func(_ int, r types.VisaRecord) { grand += r.SumApproval })

			var sum float64
			records := 0
			for _, z := range AggregateByZip(ds) {
				sum += z.TotalApproval
				records += z.RecordCount
			}
			return sum == grand && records == ds.Len()
		},
		genDataset(),
	))

	properties.Property("zips are strictly ascending", prop.ForAll(
		func(ds *types.Dataset) bool {
			zips := AggregateByZip(ds)
			for i := 1; i < len(zips); i++ {
				if zips[i-1].Zip >= zips[i].Zip {
					return false
				}
			}
			return true
		},
		genDataset(),
	))

	properties.TestingRun(t)
}

func TestProperty_SortAndRollup(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("sorted rows are non-increasing", prop.ForAll(
		func(ds *types.Dataset, metric Metric, threshold float64) bool {
			rows, err := AggregateAndFilter(ds, metric, threshold)
			if err != nil {
				return false
			}
			n := len(rows)
			SortByValueDesc(rows)
			if len(rows) != n {
				return false
			}
			for i := 1; i < len(rows); i++ {
				if rows[i-1].Value < rows[i].Value {
					return false
				}
			}
			return true
		},
		genDataset(),
		genMetric(),
		gen.Float64Range(0, 4000),
	))

	properties.Property("rollup preserves the filtered total", prop.ForAll(
		func(ds *types.Dataset, metric Metric, threshold float64) bool {
			rows, err := AggregateAndFilter(ds, metric, threshold)
			if err != nil {
				return false
			}
			var want float64
			for _, r := range rows {
				want += r.Value
			}
			var got float64
			n := 0
			for _, e := range RollupByEmployer(rows) {
				got += e.Total
				n += e.Rows
			}
			return got == want && n == len(rows)
		},
		genDataset(),
		genMetric(),
		gen.Float64Range(0, 4000),
	))

	properties.TestingRun(t)
}
