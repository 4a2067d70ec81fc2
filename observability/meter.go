package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/ptcpipe/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds OpenTelemetry metric instruments for common service observability,
// plus the throughput counters a pipeline run records for its producer/worker/consumer stages.
type Metrics struct {
	requestTotal      metric.Int64Counter
	requestDuration   metric.Float64Histogram
	requestActive     metric.Int64UpDownCounter
	operationTotal    metric.Int64Counter
	operationDuration metric.Float64Histogram
	errorTotal        metric.Int64Counter

	itemsProduced    metric.Int64Counter
	itemsTransformed metric.Int64Counter
	itemsConsumed    metric.Int64Counter
	itemsErrored     metric.Int64Counter
	queueDepth       metric.Int64UpDownCounter
	workersActive    metric.Int64UpDownCounter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	requestTotal, err := meter.Int64Counter("request.total",
		metric.WithDescription("Total number of requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.total counter: %w", err)
	}

	requestDuration, err := meter.Float64Histogram("request.duration",
		metric.WithDescription("Duration of requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.duration histogram: %w", err)
	}

	requestActive, err := meter.Int64UpDownCounter("request.active",
		metric.WithDescription("Number of currently active requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating request.active gauge: %w", err)
	}

	operationTotal, err := meter.Int64Counter("operation.total",
		metric.WithDescription("Total number of operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation.total counter: %w", err)
	}

	operationDuration, err := meter.Float64Histogram("operation.duration",
		metric.WithDescription("Duration of operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operation.duration histogram: %w", err)
	}

	errorTotal, err := meter.Int64Counter("error.total",
		metric.WithDescription("Total errors by type and component"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating error.total counter: %w", err)
	}

	itemsProduced, err := meter.Int64Counter("items.produced",
		metric.WithDescription("Total items pulled from the source"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating items.produced counter: %w", err)
	}

	itemsTransformed, err := meter.Int64Counter("items.transformed",
		metric.WithDescription("Total items successfully transformed by workers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating items.transformed counter: %w", err)
	}

	itemsConsumed, err := meter.Int64Counter("items.consumed",
		metric.WithDescription("Total items delivered to the sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating items.consumed counter: %w", err)
	}

	itemsErrored, err := meter.Int64Counter("items.errored",
		metric.WithDescription("Total items lost to a source, transform, or sink failure"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating items.errored counter: %w", err)
	}

	queueDepth, err := meter.Int64UpDownCounter("queue.depth",
		metric.WithDescription("Occupied slots in a pipeline buffer"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue.depth gauge: %w", err)
	}

	workersActive, err := meter.Int64UpDownCounter("workers.active",
		metric.WithDescription("Worker goroutines currently transforming an item"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating workers.active gauge: %w", err)
	}

	return &Metrics{
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestActive:     requestActive,
		operationTotal:    operationTotal,
		operationDuration: operationDuration,
		errorTotal:        errorTotal,
		itemsProduced:     itemsProduced,
		itemsTransformed:  itemsTransformed,
		itemsConsumed:     itemsConsumed,
		itemsErrored:      itemsErrored,
		queueDepth:        queueDepth,
		workersActive:     workersActive,
	}, nil
}

// RecordRequestStart increments the active request count.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.requestActive.Add(ctx, 1)
}

// RecordRequestEnd decrements active requests and records the completed request.
func (m *Metrics) RecordRequestEnd(ctx context.Context, service, method, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("method", method),
		attribute.String("status", status),
	)
	m.requestActive.Add(ctx, -1)
	m.requestTotal.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("method", method),
	))
}

// RecordOperation records an operation execution.
func (m *Metrics) RecordOperation(ctx context.Context, service, operation, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	m.operationTotal.Add(ctx, 1, attrs)
	m.operationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("service", service),
		attribute.String("operation", operation),
	))
}

// RecordError records an error by type and component.
func (m *Metrics) RecordError(ctx context.Context, errType, component string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", errType),
		attribute.String("component", component),
	))
}

// RecordProduced increments the count of items pulled from the source.
func (m *Metrics) RecordProduced(ctx context.Context) {
	m.itemsProduced.Add(ctx, 1)
}

// RecordTransformed increments the count of items a worker successfully transformed.
func (m *Metrics) RecordTransformed(ctx context.Context) {
	m.itemsTransformed.Add(ctx, 1)
}

// RecordConsumed increments the count of items delivered to the sink.
func (m *Metrics) RecordConsumed(ctx context.Context) {
	m.itemsConsumed.Add(ctx, 1)
}

// RecordItemError increments the count of items lost to a source, transform, or sink failure.
func (m *Metrics) RecordItemError(ctx context.Context, stage string) {
	m.itemsErrored.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordQueueDepth adjusts the occupied-slot gauge for the named buffer ("input" or "output").
func (m *Metrics) RecordQueueDepth(ctx context.Context, buffer string, delta int64) {
	m.queueDepth.Add(ctx, delta, metric.WithAttributes(attribute.String("buffer", buffer)))
}

// RecordWorkerActive adjusts the active-worker gauge.
func (m *Metrics) RecordWorkerActive(ctx context.Context, delta int64) {
	m.workersActive.Add(ctx, delta)
}
