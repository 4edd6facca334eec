// Package metrics instruments epidemic runs with Prometheus collectors held on a
// private registry.
package metrics

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds all metrics for a run or a batch of runs.
type Registry struct {
	EventsFired    *prometheus.CounterVec
	PostedFired    prometheus.Counter
	LocusSize      *prometheus.GaugeVec
	SimulationTime prometheus.Gauge
	RunsTotal      *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry used by the CLI.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	f := promauto.With(r.registry)

	r.EventsFired = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episim_events_fired_total",
			Help: "Total number of locus events fired",
		},
		[]string{"event"},
	)
	r.PostedFired = f.NewCounter(prometheus.CounterOpts{
		Name: "episim_posted_events_fired_total",
		Help: "Total number of posted (fixed-time) events fired",
	})
	r.LocusSize = f.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "episim_locus_size",
			Help: "Current number of elements in each locus",
		},
		[]string{"locus"},
	)
	r.SimulationTime = f.NewGauge(prometheus.GaugeOpts{
		Name: "episim_simulation_time",
		Help: "Current simulation clock",
	})
	r.RunsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Name: "episim_runs_total",
			Help: "Total number of completed runs",
		},
		[]string{"model", "dynamics"},
	)
	r.RunDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "episim_run_duration_seconds",
			Help:    "Wall-clock duration of a run in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60},
		},
		[]string{"dynamics"},
	)
	return r
}

// Gatherer exposes the private registry, e.g. for promhttp.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordEvent records one firing of a locus event.
func (r *Registry) RecordEvent(event string) {
	r.EventsFired.WithLabelValues(event).Inc()
}

// RecordPosted records one firing of a posted event.
func (r *Registry) RecordPosted() {
	r.PostedFired.Inc()
}

// ObserveLocus sets the current size of a locus.
func (r *Registry) ObserveLocus(locus string, size int) {
	r.LocusSize.WithLabelValues(locus).Set(float64(size))
}

// ObserveTime sets the simulation clock.
func (r *Registry) ObserveTime(t float64) {
	r.SimulationTime.Set(t)
}

// RecordRun records a completed run.
func (r *Registry) RecordRun(model, dynamics string, duration time.Duration) {
	r.RunsTotal.WithLabelValues(model, dynamics).Inc()
	r.RunDuration.WithLabelValues(dynamics).Observe(duration.Seconds())
}

// Sample is one gathered counter or gauge value.
type Sample struct {
	Name   string
	Labels map[string]string
	Value  float64
}

// String renders the sample in exposition style, e.g. name{k="v"} 3.
func (s Sample) String() string {
	var b strings.Builder
	b.WriteString(s.Name)
	if len(s.Labels) > 0 {
		keys := make([]string, 0, len(s.Labels))
		for k := range s.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k + `="` + s.Labels[k] + `"`)
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(s.Value, 'g', -1, 64))
	return b.String()
}

// Snapshot gathers every counter and gauge currently in the registry, sorted by
// name. Histograms report their sample count.
func (r *Registry) Snapshot() ([]Sample, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			out = append(out, Sample{
				Name:   mf.GetName(),
				Labels: labels(m),
				Value:  value(mf.GetType(), m),
			})
		}
	}
	return out, nil
}

func labels(m *dto.Metric) map[string]string {
	if len(m.GetLabel()) == 0 {
		return nil
	}
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func value(t dto.MetricType, m *dto.Metric) float64 {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue()
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue()
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount())
	default:
		return 0
	}
}
