package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	verrors "github.com/visaboard/visaboard/internal/errors"
	"github.com/visaboard/visaboard/pkg/types"
)

// Accepted header spellings, compared after trimming and lower-casing.
var (
	employerAliases  = []string{"employer"}
	approvalAliases  = []string{"sum approval"}
	denialAliases    = []string{"sum denial"}
	zipAliases       = []string{"zip", "zip code", "zipcode"}
	latitudeAliases  = []string{"lat", "latitude"}
	longitudeAliases = []string{"lon", "lng", "longitude"}
)

// columns holds the index of every recognised column; -1 when absent.
type columns struct {
	employer  int
	approval  int
	denial    int
	zip       int
	latitude  int
	longitude int
}

func (c columns) hasCoordinates() bool {
	return c.latitude >= 0 && c.longitude >= 0
}

func resolveColumns(header []string) (columns, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	find := func(aliases []string) int {
		for _, a := range aliases {
			if i, ok := index[a]; ok {
				return i
			}
		}
		return -1
	}

	cols := columns{
		employer:  find(employerAliases),
		approval:  find(approvalAliases),
		denial:    find(denialAliases),
		zip:       find(zipAliases),
		latitude:  find(latitudeAliases),
		longitude: find(longitudeAliases),
	}

	var missing []string
	if cols.employer < 0 {
		missing = append(missing, "Employer")
	}
	if cols.approval < 0 {
		missing = append(missing, "Sum Approval")
	}
	if cols.denial < 0 {
		missing = append(missing, "Sum Denial")
	}
	if cols.zip < 0 {
		missing = append(missing, "Zip")
	}
	if len(missing) > 0 {
		return cols, verrors.NewDataLoadError(verrors.CodeSchemaMismatch,
			fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")), nil).
			WithDetails(map[string]interface{}{"missing": missing, "header": header})
	}
	return cols, nil
}

// parseTable types every row. Rows are numbered from 1, excluding the header.
func parseTable(header []string, rows [][]string) ([]types.VisaRecord, error) {
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	records := make([]types.VisaRecord, 0, len(rows))
	for i, row := range rows {
		raw := make([]string, len(header))
		copy(raw, row)

		rec := types.VisaRecord{
			Employer: raw[cols.employer],
			Zip:      strings.TrimSpace(raw[cols.zip]),
			Raw:      raw,
		}

		if rec.SumApproval, err = parseNumber(raw, cols.approval, header, i+1); err != nil {
			return nil, err
		}
		if rec.SumDenial, err = parseNumber(raw, cols.denial, header, i+1); err != nil {
			return nil, err
		}

		if cols.hasCoordinates() {
			lat := strings.TrimSpace(raw[cols.latitude])
			lon := strings.TrimSpace(raw[cols.longitude])
			if lat != "" && lon != "" {
				if rec.Latitude, err = parseNumber(raw, cols.latitude, header, i+1); err != nil {
					return nil, err
				}
				if rec.Longitude, err = parseNumber(raw, cols.longitude, header, i+1); err != nil {
					return nil, err
				}
				rec.HasCoordinates = true
			}
		}

		records = append(records, rec)
	}
	return records, nil
}

func parseNumber(raw []string, col int, header []string, row int) (float64, error) {
	cell := strings.TrimSpace(raw[col])
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		msg := fmt.Sprintf("row %d column %q: %q is not a number", row, header[col], cell)
		if cell == "" {
			msg = fmt.Sprintf("row %d column %q: empty value", row, header[col])
		}
		return 0, verrors.NewDataLoadError(verrors.CodeInvalidNumber, msg, err).
			WithDetails(map[string]interface{}{"row": row, "column": header[col], "value": cell})
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, verrors.NewDataLoadError(verrors.CodeInvalidNumber,
			fmt.Sprintf("row %d column %q: %q is not a finite number", row, header[col], cell), nil).
			WithDetails(map[string]interface{}{"row": row, "column": header[col], "value": cell})
	}
	return v, nil
}
