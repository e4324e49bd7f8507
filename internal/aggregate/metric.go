package aggregate

import (
	"fmt"
	"strings"

	verrors "github.com/visaboard/visaboard/internal/errors"
	"github.com/visaboard/visaboard/pkg/types"
)

// Metric selects the numeric column an aggregation filters on.
type Metric string

const (
	MetricApproval Metric = "approval"
	MetricDenial   Metric = "denial"
)

// Metrics lists every supported metric in display order.
var Metrics = []Metric{MetricApproval, MetricDenial}

// ParseMetric converts a metric key into a Metric. Keys are case-insensitive.
func ParseMetric(key string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(key))); m {
	case MetricApproval, MetricDenial:
		return m, nil
	}
	return "", verrors.NewConfigurationError(verrors.CodeUnknownMetric,
		fmt.Sprintf("unknown metric %q (must be approval or denial)", key)).
		WithDetails(map[string]interface{}{"metric": key})
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricApproval || m == MetricDenial
}

// Column returns the source column name the metric reads.
func (m Metric) Column() string {
	switch m {
	case MetricApproval:
		return "Sum Approval"
	case MetricDenial:
		return "Sum Denial"
	}
	return ""
}

// Value returns the metric value of a record.
func (m Metric) Value(r types.VisaRecord) float64 {
	if m == MetricDenial {
		return r.SumDenial
	}
	return r.SumApproval
}

func (m Metric) String() string {
	return string(m)
}
