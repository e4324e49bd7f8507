// Package types provides core data types for visaboard.
package types

// VisaRecord is a single row of the H-1B sponsorship export.
type VisaRecord struct {
	// Employer is the sponsoring organization; many records share one employer
	Employer string `json:"employer"`

	// SumApproval is the number of approvals attributed to this record
	SumApproval float64 `json:"sum_approval"`

	// SumDenial is the number of denials attributed to this record
	SumDenial float64 `json:"sum_denial"`

	// Zip is the postal code of the employer site
	Zip string `json:"zip"`

	// Latitude and Longitude are set only when the export carries pre-joined coordinates
	Latitude       float64 `json:"latitude,omitempty"`
	Longitude      float64 `json:"longitude,omitempty"`
	HasCoordinates bool    `json:"has_coordinates"`

	// Raw holds the original cell values, aligned with Dataset.Header
	Raw []string `json:"-"`
}

// clone returns a copy that does not share the Raw backing array.
func (r VisaRecord) clone() VisaRecord {
	if r.Raw != nil {
		raw := make([]string, len(r.Raw))
		copy(raw, r.Raw)
		r.Raw = raw
	}
	return r
}
