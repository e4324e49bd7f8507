package types

import "time"

// Dataset is the full, ordered, immutable table of visa records loaded for
// one process lifetime. Accessors hand out copies so callers cannot mutate
// the shared table.
type Dataset struct {
	header      []string
	records     []VisaRecord
	source      string
	fingerprint string
	loadedAt    time.Time
}

// DatasetInfo describes where a dataset came from.
type DatasetInfo struct {
	// Source is the object path the dataset was read from
	Source string `json:"source"`

	// Fingerprint is a content hash of the source bytes
	Fingerprint string `json:"fingerprint"`

	// LoadedAt is when the dataset was parsed
	LoadedAt time.Time `json:"loaded_at"`
}

// NewDataset builds a dataset from parsed records. The header and records
// are copied.
func NewDataset(header []string, records []VisaRecord, info DatasetInfo) *Dataset {
	h := make([]string, len(header))
	copy(h, header)

	recs := make([]VisaRecord, len(records))
	for i, r := range records {
		recs[i] = r.clone()
	}

	return &Dataset{
		header:      h,
		records:     recs,
		source:      info.Source,
		fingerprint: info.Fingerprint,
		loadedAt:    info.LoadedAt,
	}
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// At returns a copy of the i-th record.
func (d *Dataset) At(i int) VisaRecord {
	return d.records[i].clone()
}

// Each calls fn for every record in source order. The record passed to fn
// is a shallow copy; its Raw slice must not be modified.
func (d *Dataset) Each(fn func(i int, r VisaRecord)) {
	if d == nil {
		return
	}
	for i, r := range d.records {
		fn(i, r)
	}
}

// Head returns copies of the first n records (fewer if the dataset is shorter).
func (d *Dataset) Head(n int) []VisaRecord {
	if d == nil || n <= 0 {
		return []VisaRecord{}
	}
	if n > len(d.records) {
		n = len(d.records)
	}
	out := make([]VisaRecord, n)
	for i := 0; i < n; i++ {
		out[i] = d.records[i].clone()
	}
	return out
}

// Header returns a copy of the source column names.
func (d *Dataset) Header() []string {
	if d == nil {
		return []string{}
	}
	h := make([]string, len(d.header))
	copy(h, d.header)
	return h
}

// Info returns the dataset provenance.
func (d *Dataset) Info() DatasetInfo {
	if d == nil {
		return DatasetInfo{}
	}
	return DatasetInfo{
		Source:      d.source,
		Fingerprint: d.fingerprint,
		LoadedAt:    d.loadedAt,
	}
}

// Fingerprint returns the content hash of the source bytes.
func (d *Dataset) Fingerprint() string {
	if d == nil {
		return ""
	}
	return d.fingerprint
}
