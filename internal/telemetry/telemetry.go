// Package telemetry provides OpenTelemetry metrics for the practice server.
//
// Telemetry is disabled by default. When disabled a no-op meter provider is
// installed and every instrument is free to call.
//
//	OTEL_ENABLED=true   enable metrics
//	OTEL_STDOUT=true    print metrics to stdout periodically
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const instrumentationScope = "speechworks"

// Options controls which meter provider Init installs
type Options struct {
	Enabled     bool
	Stdout      bool
	ServiceName string
	Interval    time.Duration
}

// Init configures the global meter provider and returns a shutdown function
// that flushes pending metrics.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if !opts.Enabled {
		otel.SetMeterProvider(metricnoop.NewMeterProvider())
		return func(context.Context) error { return nil }, nil
	}

	name := opts.ServiceName
	if name == "" {
		name = instrumentationScope
	}
	res := resource.NewSchemaless(attribute.String("service.name", name))

	providerOpts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if opts.Stdout {
		exp, err := stdoutmetric.New()
		if err != nil {
			return nil, fmt.Errorf("telemetry: stdout exporter: %w", err)
		}
		interval := opts.Interval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		providerOpts = append(providerOpts, sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval)),
		))
	}

	mp := sdkmetric.NewMeterProvider(providerOpts...)
	otel.SetMeterProvider(mp)
	return mp.Shutdown, nil
}

// Meter returns a meter with the given instrumentation name (or the global scope)
func Meter(name string) metric.Meter {
	if name == "" {
		name = instrumentationScope
	}
	return otel.Meter(name)
}

// Metrics holds the counters recorded by the practice workflow
type Metrics struct {
	handoffsPublished metric.Int64Counter
	handoffsConsumed  metric.Int64Counter
	returnsPublished  metric.Int64Counter
	trialRuns         metric.Int64Counter
	saveFailures      metric.Int64Counter
	autoCompletions   metric.Int64Counter
}

// NewMetrics registers the practice counters on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	m := &Metrics{
		handoffsPublished: counter("speechworks.handoff.published", "Practice requests published to a mailbox"),
		handoffsConsumed:  counter("speechworks.handoff.consumed", "Practice requests consumed by an activity host"),
		returnsPublished:  counter("speechworks.handoff.returns", "Return tokens published after a run ended"),
		trialRuns:         counter("speechworks.trial.runs", "Finished trial runs"),
		saveFailures:      counter("speechworks.trial.save_failures", "Finished runs whose outcome was not fully saved"),
		autoCompletions:   counter("speechworks.session.auto_completions", "Sessions moved to completed automatically"),
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("telemetry: register counters: %w", err)
	}
	return m, nil
}

// Nop returns metrics backed by a no-op meter
func Nop() *Metrics {
	m, _ := NewMetrics(metricnoop.NewMeterProvider().Meter(instrumentationScope))
	return m
}

// HandoffPublished counts a practice request, labelled by whether it came from a session
func (m *Metrics) HandoffPublished(ctx context.Context, fromSession bool) {
	if m == nil {
		return
	}
	m.handoffsPublished.Add(ctx, 1, metric.WithAttributes(attribute.Bool("from_session", fromSession)))
}

// HandoffConsumed counts a consumed request, labelled by what triggered the attempt
func (m *Metrics) HandoffConsumed(ctx context.Context, trigger string) {
	if m == nil {
		return
	}
	m.handoffsConsumed.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

func (m *Metrics) ReturnPublished(ctx context.Context) {
	if m == nil {
		return
	}
	m.returnsPublished.Add(ctx, 1)
}

// TrialRunFinished counts a finished run and, when saved is false, a save failure
func (m *Metrics) TrialRunFinished(ctx context.Context, category string, saved bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("category", category))
	m.trialRuns.Add(ctx, 1, attrs)
	if !saved {
		m.saveFailures.Add(ctx, 1, attrs)
	}
}

func (m *Metrics) AutoCompleted(ctx context.Context) {
	if m == nil {
		return
	}
	m.autoCompletions.Add(ctx, 1)
}
