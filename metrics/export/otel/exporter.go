package otel

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/metrics/export/internaldefs"
)

var (
	ErrNilMeter  = errors.New("otel: nil meter")
	ErrNilSource = errors.New("otel: nil metrics source")
)

// Attribute keys set on exported data points.
const (
	OutcomeKey  = attribute.Key("outcome")
	ScopeKey    = attribute.Key("scope")
	RotationKey = attribute.Key("rotation")
	BoundKey    = attribute.Key("le")
)

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	Rotation() authcore.RotationMode
}

// member is one engine counter inside an instrument, told apart from its
// siblings by value under the instrument's key.
type member struct {
	id    authcore.MetricID
	value string
}

// instrument groups the engine counters of one operation. refresh marks
// instruments whose points carry the rotation mode.
type instrument struct {
	name    string
	help    string
	key     attribute.Key
	refresh bool
	members []member
}

var instruments = []instrument{
	{name: "authcore.register", help: "Registration attempts by outcome.", key: OutcomeKey, members: []member{
		{authcore.MetricRegisterSuccess, "success"},
		{authcore.MetricRegisterDuplicate, "duplicate"},
	}},
	{name: "authcore.login", help: "Login attempts by outcome.", key: OutcomeKey, members: []member{
		{authcore.MetricLoginSuccess, "success"},
		{authcore.MetricLoginFailure, "invalid_credentials"},
		{authcore.MetricLoginRateLimited, "rate_limited"},
	}},
	{name: "authcore.refresh", help: "Refresh redemptions by outcome.", key: OutcomeKey, refresh: true, members: []member{
		{authcore.MetricRefreshSuccess, "success"},
		{authcore.MetricRefreshRejected, "rejected"},
		{authcore.MetricRefreshExpired, "expired"},
		{authcore.MetricRefreshFailure, "error"},
	}},
	{name: "authcore.validate", help: "Access token validations by outcome.", key: OutcomeKey, members: []member{
		{authcore.MetricValidateSuccess, "success"},
		{authcore.MetricValidateFailure, "rejected"},
	}},
	{name: "authcore.logout", help: "Refresh token revocations by scope.", key: ScopeKey, refresh: true, members: []member{
		{authcore.MetricLogout, "single"},
		{authcore.MetricLogoutAll, "all"},
	}},
	{name: "authcore.refresh.purged", help: "Expired refresh tokens removed by the purge loop.", refresh: true, members: []member{
		{id: authcore.MetricRefreshPurged},
	}},
	{name: "authcore.password.rehash", help: "Password hashes upgraded on login.", members: []member{
		{id: authcore.MetricPasswordRehash},
	}},
	{name: "authcore.store.unavailable", help: "Store calls that failed or timed out.", members: []member{
		{id: authcore.MetricStoreUnavailable},
	}},
	{name: "authcore.audit.dropped", help: "Audit events dropped on a full dispatcher queue.", members: []member{
		{id: authcore.MetricAuditDropped},
	}},
}

type point struct {
	id    authcore.MetricID
	attrs metric.ObserveOption
}

type observed struct {
	counter metric.Int64ObservableCounter
	points  []point
}

// Exporter reports engine counters as observable counters with outcome
// attributes, and the validate latency histogram as a cumulative gauge keyed
// by bucket bound.
type Exporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observed
	latency      metric.Int64ObservableGauge
	latencyCount metric.Int64ObservableCounter
	bounds       []metric.ObserveOption
}

// NewExporter registers instruments on meter that read from engine on every
// collection.
func NewExporter(meter metric.Meter, engine *authcore.Engine) (*Exporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewExporterFromSource(meter, engine)
}

// NewExporterFromSource is NewExporter for any snapshot source.
func NewExporterFromSource(meter metric.Meter, source metricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{source: source}
	rotation := RotationKey.String(source.Rotation().String())
	observables := make([]metric.Observable, 0, len(instruments)+2)

	for _, ins := range instruments {
		counter, err := meter.Int64ObservableCounter(ins.name, metric.WithDescription(ins.help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", ins.name, err)
		}
		o := observed{counter: counter, points: make([]point, 0, len(ins.members))}
		for _, m := range ins.members {
			var kvs []attribute.KeyValue
			if ins.key != "" {
				kvs = append(kvs, ins.key.String(m.value))
			}
			if ins.refresh {
				kvs = append(kvs, rotation)
			}
			o.points = append(o.points, point{id: m.id, attrs: metric.WithAttributeSet(attribute.NewSet(kvs...))})
		}
		e.counters = append(e.counters, o)
		observables = append(observables, counter)
	}

	latency, err := meter.Int64ObservableGauge("authcore.validate.latency.bucket",
		metric.WithDescription("Cumulative count of validations at or below the le bound, in seconds."))
	if err != nil {
		return nil, fmt.Errorf("create latency gauge: %w", err)
	}
	latencyCount, err := meter.Int64ObservableCounter("authcore.validate.latency.count",
		metric.WithDescription("Validations observed by the latency histogram."))
	if err != nil {
		return nil, fmt.Errorf("create latency count: %w", err)
	}
	e.latency, e.latencyCount = latency, latencyCount
	observables = append(observables, latency, latencyCount)

	for _, bound := range internaldefs.HistogramUpperBounds {
		e.bounds = append(e.bounds, metric.WithAttributes(BoundKey.String(strconv.FormatFloat(bound, 'f', -1, 64))))
	}
	e.bounds = append(e.bounds, metric.WithAttributes(BoundKey.String("+Inf")))

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		for _, p := range c.points {
			o.ObserveInt64(c.counter, int64(snapshot.Counters[p.id]), p.attrs)
		}
	}

	buckets, ok := snapshot.Histograms[authcore.MetricValidateLatency]
	if !ok {
		return nil
	}
	cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(buckets))
	for i, attrs := range e.bounds {
		o.ObserveInt64(e.latency, int64(cumulative[i]), attrs)
	}
	o.ObserveInt64(e.latencyCount, int64(cumulative[len(cumulative)-1]))
	return nil
}

// Close unregisters the collection callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
