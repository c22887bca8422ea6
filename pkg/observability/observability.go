// Package observability wires structured logging and OpenTelemetry for
// docreg runs.
//
// Tracing and metrics are exported over OTLP gRPC when an endpoint is
// configured. Without one the global no-op providers are used, so spans
// and counters cost nothing and need no collector.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Mindburn-Labs/docreg"

// Config configures the OpenTelemetry providers.
type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // e.g. "localhost:4317"; empty disables export
	Insecure       bool
}

// DefaultConfig returns the defaults for a local run.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "docreg",
		ServiceVersion: "1.0.0",
		Insecure:       true,
	}
}

// Provider owns the trace and metric providers and the run counters.
type Provider struct {
	config         *Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	tracer         trace.Tracer
	meter          metric.Meter
	logger         *slog.Logger

	documents   metric.Int64Counter
	rowsDropped metric.Int64Counter
	links       metric.Int64Counter
	gaps        metric.Int64Counter
	errors      metric.Int64Counter
	duration    metric.Float64Histogram
}

// New creates a provider. With an empty endpoint it never dials out.
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	p := &Provider{
		config: config,
		logger: slog.Default().With("component", "observability"),
	}

	if config.OTLPEndpoint != "" {
		res, err := resource.Merge(
			resource.Default(),
			resource.NewWithAttributes(
				semconv.SchemaURL,
				semconv.ServiceName(config.ServiceName),
				semconv.ServiceVersion(config.ServiceVersion),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create resource: %w", err)
		}
		if err := p.initExporters(ctx, res); err != nil {
			return nil, err
		}
		p.logger.InfoContext(ctx, "telemetry export enabled", "endpoint", config.OTLPEndpoint)
	}

	p.tracer = otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(config.ServiceVersion))
	p.meter = otel.Meter(instrumentationName, metric.WithInstrumentationVersion(config.ServiceVersion))
	if err := p.initInstruments(); err != nil {
		return nil, fmt.Errorf("failed to init instruments: %w", err)
	}
	return p, nil
}

func (p *Provider) initExporters(ctx context.Context, res *resource.Resource) error {
	traceOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(p.config.OTLPEndpoint)}
	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(p.config.OTLPEndpoint)}
	if p.config.Insecure {
		traceOpts = append(traceOpts, otlptracegrpc.WithInsecure())
		metricOpts = append(metricOpts, otlpmetricgrpc.WithInsecure())
	}

	traceExp, err := otlptracegrpc.New(ctx, traceOpts...)
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}
	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(traceExp),
	)
	otel.SetTracerProvider(p.tracerProvider)

	metricExp, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}
	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
	)
	otel.SetMeterProvider(p.meterProvider)
	return nil
}

func (p *Provider) initInstruments() error {
	var err error
	if p.documents, err = p.meter.Int64Counter("docreg.documents",
		metric.WithDescription("Documents offered to the registry, by outcome"),
		metric.WithUnit("{document}"),
	); err != nil {
		return err
	}
	if p.rowsDropped, err = p.meter.Int64Counter("docreg.rows.dropped",
		metric.WithDescription("Source rows dropped for lack of an id"),
		metric.WithUnit("{row}"),
	); err != nil {
		return err
	}
	if p.links, err = p.meter.Int64Counter("docreg.obligation_links",
		metric.WithDescription("New obligation links attached to documents"),
		metric.WithUnit("{link}"),
	); err != nil {
		return err
	}
	if p.gaps, err = p.meter.Int64Counter("docreg.gaps",
		metric.WithDescription("Required documents without evidence"),
		metric.WithUnit("{requirement}"),
	); err != nil {
		return err
	}
	if p.errors, err = p.meter.Int64Counter("docreg.errors",
		metric.WithDescription("Failed pipeline stages"),
		metric.WithUnit("{error}"),
	); err != nil {
		return err
	}
	p.duration, err = p.meter.Float64Histogram("docreg.stage.duration",
		metric.WithDescription("Pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	return err
}

// Shutdown flushes and stops the exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tracerProvider != nil {
		if err := p.tracerProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown trace provider", "error", err)
		}
	}
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			p.logger.ErrorContext(ctx, "failed to shutdown metric provider", "error", err)
		}
	}
	return nil
}

// Tracer returns the tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// RecordDocuments counts merge outcomes for one department.
func (p *Provider) RecordDocuments(ctx context.Context, department string, added, skipped int) {
	dept := attribute.String("department", department)
	p.documents.Add(ctx, int64(added), metric.WithAttributes(dept, attribute.String("outcome", "added")))
	p.documents.Add(ctx, int64(skipped), metric.WithAttributes(dept, attribute.String("outcome", "skipped")))
}

// RecordDropped counts rows dropped while reading a department.
func (p *Provider) RecordDropped(ctx context.Context, department string, n int) {
	p.rowsDropped.Add(ctx, int64(n), metric.WithAttributes(attribute.String("department", department)))
}

// RecordLinks counts new obligation links.
func (p *Provider) RecordLinks(ctx context.Context, n int) {
	p.links.Add(ctx, int64(n))
}

// RecordGaps counts missing requirements in a report.
func (p *Provider) RecordGaps(ctx context.Context, n int) {
	p.gaps.Add(ctx, int64(n))
}

// TrackStage starts a span for a pipeline stage. The returned function ends
// it, recording the duration and any error.
func (p *Provider) TrackStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String("stage", stage))
	ctx, span := p.tracer.Start(ctx, "docreg."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
	return ctx, func(err error) {
		p.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
		if err != nil {
			span.RecordError(err)
			p.errors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
		}
		span.End()
	}
}
