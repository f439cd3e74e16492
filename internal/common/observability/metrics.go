package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	subqueryCounter otelmetric.Int64Counter
	batchDuration   otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	subqueryCounter, _ := meter.Int64Counter(
		"reconcile.subqueries",
		otelmetric.WithDescription("Number of sub-queries processed"),
	)

	batchDuration, _ := meter.Float64Histogram(
		"reconcile.batch.duration",
		otelmetric.WithDescription("Batch reconciliation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		subqueryCounter: subqueryCounter,
		batchDuration:   batchDuration,
	}
}

func (o *Observability) RecordSubquery(ctx context.Context, entity, outcome string) {
	if o.subqueryCounter != nil {
		o.subqueryCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("outcome", outcome),
		))
	}
}

func (o *Observability) RecordBatchDuration(ctx context.Context, duration time.Duration, size int) {
	if o.batchDuration != nil {
		o.batchDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.Int("batch.size", size),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
