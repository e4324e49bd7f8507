package aggregate

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	verrors "github.com/visaboard/visaboard/internal/errors"
	"github.com/visaboard/visaboard/pkg/types"
)

// DatasetProvider hands out the memoized dataset. dataset.Loader
// implements it.
type DatasetProvider interface {
	Load(ctx context.Context) (*types.Dataset, error)
}

// Engine runs aggregations against the dataset held by a provider.
type Engine struct {
	provider DatasetProvider
	tracer   trace.Tracer
}

// NewEngine creates an engine bound to provider.
func NewEngine(provider DatasetProvider) *Engine {
	return &Engine{
		provider: provider,
		tracer:   otel.Tracer("github.com/visaboard/visaboard/internal/aggregate"),
	}
}

// Dataset returns the provider's dataset.
func (e *Engine) Dataset(ctx context.Context) (*types.Dataset, error) {
	if e.provider == nil {
		return nil, verrors.NewInternalError("engine has no dataset provider", nil)
	}
	return e.provider.Load(ctx)
}

// AggregateAndFilter loads the dataset and filters it by metric >= threshold.
func (e *Engine) AggregateAndFilter(ctx context.Context, metric Metric, threshold float64) (rows []EmployerAggregate, err error) {
	ctx, span := e.tracer.Start(ctx, "aggregate.AggregateAndFilter", trace.WithAttributes(
		attribute.String("aggregate.metric", string(metric)),
		attribute.Float64("aggregate.threshold", threshold),
	))
	defer func() { endSpan(span, err) }()

	ds, err := e.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	rows, err = AggregateAndFilter(ds, metric, threshold)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("aggregate.rows", len(rows)))
	return rows, nil
}

// AggregateByZip loads the dataset and sums approvals per zip.
func (e *Engine) AggregateByZip(ctx context.Context) (zips []ZipAggregate, err error) {
	ctx, span := e.tracer.Start(ctx, "aggregate.AggregateByZip")
	defer func() { endSpan(span, err) }()

	ds, err := e.Dataset(ctx)
	if err != nil {
		return nil, err
	}
	zips = AggregateByZip(ds)
	span.SetAttributes(attribute.Int("aggregate.zips", len(zips)))
	return zips, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
