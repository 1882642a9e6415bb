// Package otel provides OpenTelemetry TracerProvider, MeterProvider, and LoggerProvider
// configured with OTLP gRPC exporters for the portal HTTP server and worker.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
)

const defaultMetricInterval = 10 * time.Second

// Options configures NewProviders.
type Options struct {
	// Endpoint is the collector address, e.g. localhost:4317 or https://collector:4317/v1/traces.
	// Any path is dropped. Empty means no export.
	Endpoint string
	// ServiceName is the service.name resource attribute.
	ServiceName string
	// Environment, when set, is recorded as deployment.environment.name.
	Environment string
	// Insecure forces plaintext even for https endpoints (OTEL_EXPORTER_OTLP_INSECURE).
	Insecure bool
	// MetricInterval is the metric export period. Defaults to 10s.
	MetricInterval time.Duration
}

// Providers holds the OpenTelemetry providers and a shutdown function.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *metric.MeterProvider
	LoggerProvider *sdklog.LoggerProvider
	Shutdown       func(context.Context) error
}

// NewProviders creates providers that export via OTLP to opts.Endpoint.
// With no endpoint the providers record nothing remotely and Shutdown is a no-op.
func NewProviders(ctx context.Context, opts Options) (*Providers, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return &Providers{
			TracerProvider: sdktrace.NewTracerProvider(),
			MeterProvider:  metric.NewMeterProvider(),
			LoggerProvider: sdklog.NewLoggerProvider(),
			Shutdown:       func(context.Context) error { return nil },
		}, nil
	}
	target, insecure, err := parseEndpoint(opts.Endpoint, opts.Insecure)
	if err != nil {
		return nil, err
	}
	res, err := newResource(opts)
	if err != nil {
		return nil, err
	}

	var stack shutdownStack
	tp, err := newTracerProvider(ctx, target, insecure, res)
	if err != nil {
		return nil, err
	}
	stack.push(tp.Shutdown)

	interval := opts.MetricInterval
	if interval <= 0 {
		interval = defaultMetricInterval
	}
	mp, err := newMeterProvider(ctx, target, insecure, res, interval)
	if err != nil {
		_ = stack.shutdown(ctx)
		return nil, err
	}
	stack.push(mp.Shutdown)

	lp, err := newLoggerProvider(ctx, target, insecure, res)
	if err != nil {
		_ = stack.shutdown(ctx)
		return nil, err
	}
	stack.push(lp.Shutdown)

	return &Providers{
		TracerProvider: tp,
		MeterProvider:  mp,
		LoggerProvider: lp,
		Shutdown:       stack.shutdown,
	}, nil
}

// parseEndpoint reduces endpoint to the host:port gRPC dials. Plaintext unless the scheme is https.
func parseEndpoint(endpoint string, insecureOverride bool) (string, bool, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return "", false, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}
	return u.Host, insecureOverride || u.Scheme != "https", nil
}

func newResource(opts Options) (*resource.Resource, error) {
	name := opts.ServiceName
	if name == "" {
		name = "connections-portal"
	}
	attrs := []resource.Option{
		resource.WithSchemaURL(semconv.SchemaURL),
		resource.WithAttributes(semconv.ServiceName(name)),
	}
	if opts.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironmentName(opts.Environment)))
	}
	custom, err := resource.New(context.Background(), attrs...)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func newTracerProvider(ctx context.Context, target string, insecure bool, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	o := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(target)}
	if insecure {
		o = append(o, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, o...)
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	return sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp), sdktrace.WithResource(res)), nil
}

func newMeterProvider(ctx context.Context, target string, insecure bool, res *resource.Resource, interval time.Duration) (*metric.MeterProvider, error) {
	o := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(target)}
	if insecure {
		o = append(o, otlpmetricgrpc.WithInsecure())
	}
	exp, err := otlpmetricgrpc.New(ctx, o...)
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	reader := metric.NewPeriodicReader(exp, metric.WithInterval(interval))
	return metric.NewMeterProvider(metric.WithResource(res), metric.WithReader(reader)), nil
}

func newLoggerProvider(ctx context.Context, target string, insecure bool, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	o := []otlploggrpc.Option{otlploggrpc.WithEndpoint(target)}
	if insecure {
		o = append(o, otlploggrpc.WithInsecure())
	}
	exp, err := otlploggrpc.New(ctx, o...)
	if err != nil {
		return nil, fmt.Errorf("log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)), sdklog.WithResource(res)), nil
}

// shutdownStack runs shutdown funcs in reverse registration order.
type shutdownStack []func(context.Context) error

func (s *shutdownStack) push(fn func(context.Context) error) { *s = append(*s, fn) }

func (s shutdownStack) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(s) - 1; i >= 0; i-- {
		if err := s[i](ctx); err != nil {
			log.Printf("telemetry: shutdown: %v", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetGlobal installs the tracer and meter providers and the W3C trace-context propagator globally,
// so instrumentation such as the OTP counters picks them up.
// The LoggerProvider is not global; pass it to NewEventEmitter.
func (p *Providers) SetGlobal() {
	if p.TracerProvider != nil {
		otel.SetTracerProvider(p.TracerProvider)
	}
	if p.MeterProvider != nil {
		otel.SetMeterProvider(p.MeterProvider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}
