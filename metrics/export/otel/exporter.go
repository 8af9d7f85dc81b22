package otel

import (
	"context"
	"errors"
	"fmt"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goToken.MetricsSnapshot
	AuditDropped() uint64
}

// observation reports one instrument's value from a snapshot taken once per
// collection.
type observation func(metric.Observer, *goToken.MetricsSnapshot)

// OTelExporter publishes engine snapshots through an OTel meter.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	observations []observation
}

func NewOTelExporter(meter metric.Meter, engine *goToken.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource registers observable instruments for every
// engine counter and histogram. Histograms are flattened into cumulative
// bucket gauges plus _count and _sum, all fed by a single callback.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	b := &instrumentSet{meter: meter}
	for _, def := range internaldefs.CounterDefs {
		b.counter(def.Name, def.Help, func(s *goToken.MetricsSnapshot) int64 {
			return int64(s.Counters[def.ID])
		})
	}
	for _, def := range internaldefs.HistogramDefs {
		b.histogram(def)
	}
	b.counter(internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, func(*goToken.MetricsSnapshot) int64 {
		return int64(source.AuditDropped())
	})
	if b.err != nil {
		return nil, b.err
	}

	e := &OTelExporter{source: source, observations: b.observations}
	reg, err := meter.RegisterCallback(e.observe, b.instruments...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for _, obs := range e.observations {
		obs(o, &snap)
	}
	return nil
}

// Close unregisters the callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

// instrumentSet accumulates instruments and their observations. The first
// creation error sticks and later calls become no-ops.
type instrumentSet struct {
	meter        metric.Meter
	instruments  []metric.Observable
	observations []observation
	err          error
}

func (b *instrumentSet) counter(name, help string, value func(*goToken.MetricsSnapshot) int64) {
	if b.err != nil {
		return
	}
	ins, err := b.meter.Int64ObservableCounter(name, metric.WithDescription(help))
	if err != nil {
		b.err = fmt.Errorf("counter %s: %w", name, err)
		return
	}
	b.instruments = append(b.instruments, ins)
	b.observations = append(b.observations, func(o metric.Observer, s *goToken.MetricsSnapshot) {
		o.ObserveInt64(ins, value(s))
	})
}

func (b *instrumentSet) gauge(name, help string, value func(*goToken.MetricsSnapshot) int64) {
	if b.err != nil {
		return
	}
	ins, err := b.meter.Int64ObservableGauge(name, metric.WithDescription(help))
	if err != nil {
		b.err = fmt.Errorf("gauge %s: %w", name, err)
		return
	}
	b.instruments = append(b.instruments, ins)
	b.observations = append(b.observations, func(o metric.Observer, s *goToken.MetricsSnapshot) {
		o.ObserveInt64(ins, value(s))
	})
}

func (b *instrumentSet) histogram(def internaldefs.HistogramDef) {
	cumulative := func(s *goToken.MetricsSnapshot) [internaldefs.BucketCount]uint64 {
		return internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(s.Histograms[def.ID]))
	}

	for i, suffix := range internaldefs.BoundSuffixes() {
		b.gauge(def.Name+"_bucket_le_"+suffix, "Cumulative histogram bucket count.", func(s *goToken.MetricsSnapshot) int64 {
			return int64(cumulative(s)[i])
		})
	}
	b.gauge(def.Name+"_count", "Histogram total sample count.", func(s *goToken.MetricsSnapshot) int64 {
		return int64(cumulative(s)[internaldefs.BucketCount-1])
	})

	if b.err != nil {
		return
	}
	name := def.Name + "_sum"
	sum, err := b.meter.Float64ObservableGauge(name, metric.WithDescription("Histogram sum of observations."), metric.WithUnit("s"))
	if err != nil {
		b.err = fmt.Errorf("gauge %s: %w", name, err)
		return
	}
	b.instruments = append(b.instruments, sum)
	b.observations = append(b.observations, func(o metric.Observer, s *goToken.MetricsSnapshot) {
		o.ObserveFloat64(sum, s.HistogramSums[def.ID].Seconds())
	})
}
