package phase

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "trafficsig/internal/phase"

type instruments struct {
	flips metric.Int64Counter
	waits metric.Int64Counter
	held  metric.Float64Histogram
	attrs metric.MeasurementOption
}

func newInstruments(p metric.MeterProvider, light string) instruments {
	m := p.Meter(meterName)

	flips, err := m.Int64Counter(
		"trafficsig.light.flips",
		metric.WithUnit("{flip}"),
		metric.WithDescription("The number of phase changes published by the light."),
	)
	if err != nil {
		panic(err)
	}

	waits, err := m.Int64Counter(
		"trafficsig.light.green_waits",
		metric.WithUnit("{wait}"),
		metric.WithDescription("The number of WaitForGreen calls that observed Green."),
	)
	if err != nil {
		panic(err)
	}

	held, err := m.Float64Histogram(
		"trafficsig.light.phase_duration",
		metric.WithUnit("s"),
		metric.WithDescription("How long each phase was held before flipping."),
	)
	if err != nil {
		panic(err)
	}

	return instruments{
		flips: flips,
		waits: waits,
		held:  held,
		attrs: metric.WithAttributeSet(attribute.NewSet(
			attribute.String("trafficsig.light", light),
		)),
	}
}
