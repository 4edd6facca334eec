// Package dynamics provides the engines that drive a compartmented model through
// time: a discrete-time synchronous engine and a continuous-time stochastic
// (Gillespie) engine. Both run any sim.Definition unmodified.
package dynamics

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/metrics"
	"github.com/episim/episim/sim/trace"
)

// DefaultMaxTime bounds a run whose Config leaves MaxTime unset.
const DefaultMaxTime = 20000

// Result keys added by the engines on top of the model's results.
const (
	ResultTime       = "time"
	ResultEvents     = "events"
	ResultFired      = "fired"
	ResultDynamics   = "dynamics"
	ResultTimeseries = "timeseries"
)

var (
	// ErrInvalidPostTime is returned when an event is posted in the past.
	ErrInvalidPostTime = errors.New("posted event time is before the current time")

	// ErrProbabilityAboveOne is returned by the synchronous engine for an event whose
	// rate cannot be read as a per-step probability.
	ErrProbabilityAboveOne = errors.New("event probability is above 1")
)

// Config controls a run.
type Config struct {
	// MaxTime stops the run once the clock reaches it. 0 means DefaultMaxTime.
	MaxTime float64
	// MonitorInterval > 0 samples every compartment size at that interval into the
	// "timeseries" result.
	MonitorInterval float64
	// Trace, if non-nil, receives a record per fired event.
	Trace *trace.SimulationTrace
	// Metrics, if non-nil, counts fired events and tracks locus sizes.
	Metrics *metrics.Registry
	// Model labels the run in metrics.
	Model string
}

func (c Config) maxTime() float64 {
	if c.MaxTime <= 0 {
		return DefaultMaxTime
	}
	return c.MaxTime
}

// Engine is a dynamics that can run its model to completion.
type Engine interface {
	sim.Dynamics
	// Run sets the model running and drives it until no event can fire, MaxTime is
	// reached, or ctx is cancelled.
	Run(ctx context.Context) (sim.Results, error)
}

// engine holds what both dynamics share: clock, random streams, posted-event queue,
// and bookkeeping of fired events.
type engine struct {
	kind    string
	model   *sim.CompartmentedModel
	dyn     *rand.Rand
	bits    *sim.Bitstream
	cfg     Config
	now     float64
	posted  postedQueue
	fired   map[string]int
	events  int
	monitor *Monitor
}

func newEngine(kind string, m *sim.CompartmentedModel, rng *sim.PartitionedRNG, cfg Config) *engine {
	return &engine{
		kind:  kind,
		model: m,
		dyn:   rng.ForSubsystem(sim.SubsystemDynamics),
		bits:  rng.BitsFor(sim.SubsystemSampling),
		cfg:   cfg,
		fired: make(map[string]int),
	}
}

// Model implements sim.Dynamics.
func (e *engine) Model() *sim.CompartmentedModel { return e.model }

// Time implements sim.Dynamics.
func (e *engine) Time() float64 { return e.now }

// RNG implements sim.Dynamics.
func (e *engine) RNG() *rand.Rand { return e.dyn }

// PostEvent implements sim.Dynamics. A posted event keeps the run alive until it fires.
func (e *engine) PostEvent(t float64, name string, fn sim.PostedEventFunc) error {
	if t < e.now {
		return fmt.Errorf("post %s at %g (now %g): %w", name, t, e.now, ErrInvalidPostTime)
	}
	e.posted.push(postedEvent{time: t, name: name, fn: fn})
	return nil
}

// PostRepeatingEvent posts fn to fire at t and every interval after. Repeating events
// run in the background: they never keep an otherwise finished run alive.
func (e *engine) PostRepeatingEvent(t, interval float64, name string, fn sim.PostedEventFunc) error {
	if t < e.now {
		return fmt.Errorf("post %s at %g (now %g): %w", name, t, e.now, ErrInvalidPostTime)
	}
	if interval <= 0 {
		return fmt.Errorf("post %s: repeat interval %g must be positive", name, interval)
	}
	e.posted.push(postedEvent{time: t, name: name, fn: fn, interval: interval, background: true})
	return nil
}

// start moves the model to running and installs the monitor.
func (e *engine) start() error {
	if err := e.model.Start(); err != nil {
		return err
	}
	if e.cfg.MonitorInterval > 0 {
		e.monitor = newMonitor(e.model, e.cfg.Trace)
		if err := e.PostRepeatingEvent(e.now, e.cfg.MonitorInterval, monitorEventName, e.monitor.observe); err != nil {
			return err
		}
	}
	logrus.Infof("[%s] starting run: %d events, max time %g", e.kind, len(e.model.Events()), e.cfg.maxTime())
	e.observeLoci()
	return nil
}

// firePosted fires every posted event due by t, in time order, advancing the clock
// to each event's time.
func (e *engine) firePosted(t float64) error {
	for {
		ev, ok := e.posted.popDue(t)
		if !ok {
			return nil
		}
		e.now = ev.time
		if err := ev.fn(e, e.now); err != nil {
			return fmt.Errorf("posted event %s at t=%g: %w", ev.name, e.now, err)
		}
		if ev.name != monitorEventName {
			e.recordPosted(ev.name)
		}
		if ev.interval > 0 {
			ev.time += ev.interval
			e.posted.push(ev)
		}
	}
}

// fire runs ev on el and records it.
func (e *engine) fire(ev *sim.Event, el sim.Element) error {
	if err := ev.FireOn(e, e.now, el); err != nil {
		return fmt.Errorf("event %s on %v at t=%g: %w", ev.Name(), el, e.now, err)
	}
	e.record(ev.Name(), el)
	return nil
}

func (e *engine) record(name string, el sim.Element) {
	e.events++
	e.fired[name]++
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		logrus.Tracef("[%s] t=%g %s on %v", e.kind, e.now, name, el)
	}
	e.cfg.Trace.RecordEvent(trace.EventRecord{Time: e.now, Event: name, Element: el.String()})
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordEvent(name)
	}
}

func (e *engine) recordPosted(name string) {
	e.events++
	e.fired[name]++
	logrus.Debugf("[%s] t=%g posted %s", e.kind, e.now, name)
	e.cfg.Trace.RecordEvent(trace.EventRecord{Time: e.now, Event: name, Posted: true})
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordPosted()
	}
}

// observeLoci pushes locus sizes and the clock to the metrics registry.
func (e *engine) observeLoci() {
	if e.cfg.Metrics == nil {
		return
	}
	for _, ev := range e.model.Events() {
		l := ev.Locus()
		e.cfg.Metrics.ObserveLocus(l.Name(), l.Len())
	}
	e.cfg.Metrics.ObserveTime(e.now)
}

// active reports whether some locus event can fire.
func (e *engine) active() bool {
	for _, ev := range e.model.Events() {
		if ev.Rate() > 0 && ev.Eligible() > 0 {
			return true
		}
	}
	return false
}

// finish collects the model's results and adds the engine's own.
func (e *engine) finish(started time.Time) (sim.Results, error) {
	if e.monitor != nil {
		e.monitor.finalObservation(e.now)
	}
	e.observeLoci()
	res, err := e.model.Results()
	if err != nil {
		return nil, err
	}
	fired := make(map[string]int, len(e.fired))
	for k, v := range e.fired {
		fired[k] = v
	}
	res[ResultTime] = e.now
	res[ResultEvents] = e.events
	res[ResultFired] = fired
	res[ResultDynamics] = e.kind
	if e.monitor != nil {
		res[ResultTimeseries] = e.monitor.Timeseries()
	}
	elapsed := time.Since(started)
	if e.cfg.Metrics != nil {
		e.cfg.Metrics.RecordRun(e.cfg.Model, e.kind, elapsed)
	}
	logrus.Infof("[%s] run finished at t=%g after %d events (%v)", e.kind, e.now, e.events, elapsed)
	for _, name := range sortedEventNames(fired) {
		logrus.Debugf("[%s]   %s fired %d times", e.kind, name, fired[name])
	}
	return res, nil
}

// sortedEventNames lists fired event names for stable logging.
func sortedEventNames(fired map[string]int) []string {
	names := make([]string, 0, len(fired))
	for n := range fired {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
