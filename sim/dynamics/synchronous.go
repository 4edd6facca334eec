package dynamics

import (
	"context"
	"fmt"
	"time"

	"github.com/episim/episim/sim"
)

// KindSynchronous names the discrete-time engine.
const KindSynchronous = "synchronous"

// SynchronousDynamics advances time in unit steps. At each step it fires the posted
// events that have come due, then, for each event in table order, fires every element
// of a snapshot of its locus that is still eligible, each with the event's probability.
// An event's rate is its per-step probability, so Run refuses events with a rate above 1.
//
// Thread-safety: NOT thread-safe.
type SynchronousDynamics struct {
	*engine
}

// NewSynchronousDynamics creates a synchronous engine for a set-up model.
func NewSynchronousDynamics(m *sim.CompartmentedModel, rng *sim.PartitionedRNG, cfg Config) *SynchronousDynamics {
	return &SynchronousDynamics{engine: newEngine(KindSynchronous, m, rng, cfg)}
}

// Run implements Engine.
func (d *SynchronousDynamics) Run(ctx context.Context) (sim.Results, error) {
	started := time.Now()
	for _, ev := range d.model.Events() {
		if ev.Rate() > 1 {
			return nil, fmt.Errorf("synchronous event %s has rate %g: %w", ev.Name(), ev.Rate(), ErrProbabilityAboveOne)
		}
	}
	if err := d.start(); err != nil {
		return nil, err
	}
	// the monitor's first sample is due at the start time
	if err := d.firePosted(d.now); err != nil {
		return nil, err
	}

	maxTime := d.cfg.maxTime()
	for d.now < maxTime && (d.active() || d.posted.pending()) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		step := d.now + 1
		if err := d.firePosted(step); err != nil {
			return nil, err
		}
		d.now = step
		if err := d.step(); err != nil {
			return nil, err
		}
		d.observeLoci()
	}
	return d.finish(started)
}

func (d *SynchronousDynamics) step() error {
	for _, ev := range d.model.Events() {
		p := ev.Rate()
		if p <= 0 || ev.Eligible() == 0 {
			continue
		}
		l := ev.Locus()
		for _, el := range l.Elements() {
			// an earlier firing this step may have moved the element on
			if !l.Contains(el) {
				continue
			}
			if d.dyn.Float64() < p {
				if err := d.fire(ev, el); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
