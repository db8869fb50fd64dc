// Package telemetry provides OpenTelemetry integration for worklog.
//
// Telemetry is disabled by default; disabled means no-op providers and no
// runtime cost. With telemetry.stdout set, spans and metrics are pretty
// printed to the configured writer.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationScope = "github.com/baiirun/worklog"

// Options selects the providers Init installs.
type Options struct {
	Enabled bool
	Stdout  bool
	// Writer receives exporter output; nil means os.Stdout.
	Writer  io.Writer
	Service string
	Version string
}

// Providers holds what Init installed so it can be flushed.
type Providers struct {
	shutdown []func(context.Context) error
}

// Init installs global tracer and meter providers.
func Init(ctx context.Context, opts Options) (*Providers, error) {
	p := &Providers{}
	if !opts.Enabled {
		otel.SetTracerProvider(tracenoop.NewTracerProvider())
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return p, nil
	}

	if opts.Service == "" {
		opts.Service = "worklog"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", opts.Service),
		attribute.String("service.version", opts.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp, err := buildTraceProvider(res, opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace provider: %w", err)
	}
	otel.SetTracerProvider(tp)
	p.shutdown = append(p.shutdown, tp.Shutdown)

	mp, err := buildMetricProvider(res, opts)
	if err != nil {
		return nil, fmt.Errorf("telemetry: metric provider: %w", err)
	}
	otel.SetMeterProvider(mp)
	p.shutdown = append(p.shutdown, mp.Shutdown)

	return p, nil
}

func buildTraceProvider(res *resource.Resource, opts Options) (*sdktrace.TracerProvider, error) {
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	if opts.Stdout {
		expOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if opts.Writer != nil {
			expOpts = append(expOpts, stdouttrace.WithWriter(opts.Writer))
		}
		exp, err := stdouttrace.New(expOpts...)
		if err != nil {
			return nil, err
		}
		tpOpts = append(tpOpts, sdktrace.WithSyncer(exp))
	}
	return sdktrace.NewTracerProvider(tpOpts...), nil
}

func buildMetricProvider(res *resource.Resource, opts Options) (*sdkmetric.MeterProvider, error) {
	mpOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.Stdout {
		expOpts := []stdoutmetric.Option{stdoutmetric.WithPrettyPrint()}
		if opts.Writer != nil {
			expOpts = append(expOpts, stdoutmetric.WithWriter(opts.Writer))
		}
		exp, err := stdoutmetric.New(expOpts...)
		if err != nil {
			return nil, err
		}
		// CLI runs are short; the final reading happens at Shutdown.
		mpOpts = append(mpOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(time.Minute)),
		))
	}
	return sdkmetric.NewMeterProvider(mpOpts...), nil
}

// Tracer returns a tracer from the global provider.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Tracer(name)
}

// Meter returns a meter from the global provider.
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Shutdown flushes spans and metrics. Safe on a nil receiver.
func (p *Providers) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	p.shutdown = nil
	return errors.Join(errs...)
}
