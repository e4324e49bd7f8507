package aggregate

import (
	"sort"

	"github.com/visaboard/visaboard/pkg/types"
)

// EmployerTotal is the sum of the surviving rows of one employer, as drawn
// by a bar chart where an employer's rows stack into a single bar.
type EmployerTotal struct {
	Employer    string  `json:"employer"`
	Total       float64 `json:"total"`
	Rows        int     `json:"rows"`
	RecordCount int     `json:"record_count"`
}

// RollupByEmployer sums filtered rows per employer. Results are ordered by
// total descending, then employer ascending.
func RollupByEmployer(rows []EmployerAggregate) []EmployerTotal {
	index := make(map[string]int)
	out := make([]EmployerTotal, 0)

	for _, r := range rows {
		i, ok := index[r.Employer]
		if !ok {
			i = len(out)
			index[r.Employer] = i
			out = append(out, EmployerTotal{Employer: r.Employer, RecordCount: r.RecordCount})
		}
		out[i].Total += r.Value
		out[i].Rows++
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Employer < out[j].Employer
	})
	return out
}

// Totals holds dataset-wide sums.
type Totals struct {
	Records   int     `json:"records"`
	Employers int     `json:"employers"`
	Zips      int     `json:"zips"`
	Approvals float64 `json:"approvals"`
	Denials   float64 `json:"denials"`
}

// ComputeTotals sums the whole dataset.
func ComputeTotals(ds *types.Dataset) Totals {
	employers := make(map[string]struct{})
	zips := make(map[string]struct{})
	var t Totals
	ds.Each(func(_ int, r types.VisaRecord) {
		t.Records++
		t.Approvals += r.SumApproval
		t.Denials += r.SumDenial
		employers[r.Employer] = struct{}{}
		zips[r.Zip] = struct{}{}
	})
	t.Employers = len(employers)
	t.Zips = len(zips)
	return t
}
