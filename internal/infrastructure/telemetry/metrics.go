package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrKeyOperation = attribute.Key("operation")
	AttrKeyScope     = attribute.Key("api_scope")
	AttrKeyOutcome   = attribute.Key("outcome")
	AttrKeyStore     = attribute.Key("store")
	AttrKeyEvent     = attribute.Key("event")
)

// Metrics holds the storefront instruments
type Metrics struct {
	platformRequests metric.Int64Counter
	platformDuration metric.Float64Histogram
	storeEvents      metric.Int64Counter
	corruptions      metric.Int64Counter
}

// NewMetrics creates the instruments on the global meter provider
func NewMetrics() (*Metrics, error) {
	return NewMetricsWithMeter(otel.GetMeterProvider().Meter(TracerName))
}

// NewMetricsWithMeter creates the instruments on meter
func NewMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	if m.platformRequests, err = meter.Int64Counter("storefront.platform.requests",
		metric.WithDescription("Commerce platform requests by operation and outcome"),
		metric.WithUnit("{request}")); err != nil {
		return nil, fmt.Errorf("failed to create platform request counter: %w", err)
	}
	if m.platformDuration, err = meter.Float64Histogram("storefront.platform.duration",
		metric.WithDescription("Commerce platform request latency"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15)); err != nil {
		return nil, fmt.Errorf("failed to create platform duration histogram: %w", err)
	}
	if m.storeEvents, err = meter.Int64Counter("storefront.store.events",
		metric.WithDescription("Cart and session state transitions"),
		metric.WithUnit("{event}")); err != nil {
		return nil, fmt.Errorf("failed to create store event counter: %w", err)
	}
	if m.corruptions, err = meter.Int64Counter("storefront.storage.corruptions",
		metric.WithDescription("Persisted values discarded as malformed during restore"),
		metric.WithUnit("{value}")); err != nil {
		return nil, fmt.Errorf("failed to create corruption counter: %w", err)
	}
	return m, nil
}

// RecordPlatformCall records one platform request
func (m *Metrics) RecordPlatformCall(ctx context.Context, operation, scope, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		AttrKeyOperation.String(operation),
		AttrKeyScope.String(scope),
		AttrKeyOutcome.String(outcome),
	)
	m.platformRequests.Add(ctx, 1, attrs)
	m.platformDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordStoreEvent counts a cart or session domain event
func (m *Metrics) RecordStoreEvent(ctx context.Context, store, event string) {
	if m == nil {
		return
	}
	m.storeEvents.Add(ctx, 1, metric.WithAttributes(AttrKeyStore.String(store), AttrKeyEvent.String(event)))
}

// RecordCorruption counts a discarded persisted value
func (m *Metrics) RecordCorruption(ctx context.Context, store string) {
	if m == nil {
		return
	}
	m.corruptions.Add(ctx, 1, metric.WithAttributes(AttrKeyStore.String(store)))
}
