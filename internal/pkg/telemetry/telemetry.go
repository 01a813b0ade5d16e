// Package telemetry sets up OpenTelemetry metrics and tracing exported over
// OTLP gRPC and registers them as the global providers. The txstream and
// txmanager packages record through the globals, so they stay on no-op
// providers until Init is called.
package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// defaultMetricInterval is how often metrics are pushed when no interval is
// configured.
const defaultMetricInterval = 30 * time.Second

// Config selects where and how telemetry is exported.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Endpoint is the collector host:port. When empty the exporters read
	// OTEL_EXPORTER_OTLP_ENDPOINT or fall back to localhost:4317.
	Endpoint string
	Insecure bool

	MetricInterval time.Duration
}

func (c Config) metricOptions() []otlpmetricgrpc.Option {
	var opts []otlpmetricgrpc.Option
	if c.Endpoint != "" {
		opts = append(opts, otlpmetricgrpc.WithEndpoint(c.Endpoint))
	}
	if c.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	return opts
}

func (c Config) traceOptions() []otlptracegrpc.Option {
	var opts []otlptracegrpc.Option
	if c.Endpoint != "" {
		opts = append(opts, otlptracegrpc.WithEndpoint(c.Endpoint))
	}
	if c.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	return opts
}

func initMeterProvider(ctx context.Context, cfg Config, res *sdkresource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx, cfg.metricOptions()...)
	if err != nil {
		return nil, err
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)
	return mp, nil
}

func initTracerProvider(ctx context.Context, cfg Config, res *sdkresource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx, cfg.traceOptions()...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// newResource merges the default resource with the service attributes.
func newResource(cfg Config) (*sdkresource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.ServiceVersion))
	}

	return sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// ShutdownFunc flushes and stops the providers registered by Init.
type ShutdownFunc func(ctx context.Context) error

// Init registers OTLP meter and tracer providers as the globals.
//
// Parameters:
//   - ctx: context used while creating the exporters.
//   - cfg: service identity, collector endpoint and export interval.
//
// Returns:
//   - A ShutdownFunc that flushes and stops both providers.
//   - An error if an exporter or the resource cannot be created.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	res, err := newResource(cfg)
	if err != nil {
		return nil, err
	}

	mp, err := initMeterProvider(ctx, cfg, res)
	if err != nil {
		return nil, err
	}

	tp, err := initTracerProvider(ctx, cfg, res)
	if err != nil {
		return nil, errors.Join(err, mp.Shutdown(ctx))
	}

	return func(ctx context.Context) error {
		return errors.Join(
			mp.Shutdown(ctx),
			tp.Shutdown(ctx),
		)
	}, nil
}
