package dynamics

import (
	"context"
	"time"

	"github.com/episim/episim/sim"
)

// KindStochastic names the continuous-time engine.
const KindStochastic = "stochastic"

// StochasticDynamics is Gillespie's direct method over the event table. With total
// rate R = Σ rate × |locus|, the time to the next event is Exp(R), the event is chosen
// in proportion to its share of R, and the element uniformly from its locus. A posted
// event that falls due before the drawn time preempts it; the draw is then discarded,
// which the memoryless waiting time allows.
//
// Thread-safety: NOT thread-safe.
type StochasticDynamics struct {
	*engine
}

// NewStochasticDynamics creates a stochastic engine for a set-up model.
func NewStochasticDynamics(m *sim.CompartmentedModel, rng *sim.PartitionedRNG, cfg Config) *StochasticDynamics {
	return &StochasticDynamics{engine: newEngine(KindStochastic, m, rng, cfg)}
}

// Run implements Engine.
func (d *StochasticDynamics) Run(ctx context.Context) (sim.Results, error) {
	started := time.Now()
	if err := d.start(); err != nil {
		return nil, err
	}
	if err := d.firePosted(d.now); err != nil {
		return nil, err
	}

	maxTime := d.cfg.maxTime()
	events := d.model.Events()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		total := 0.0
		for _, ev := range events {
			total += ev.TotalRate()
		}

		if total == 0 {
			// nothing can fire until a posted event changes the state
			if !d.posted.pending() {
				break
			}
			next, _ := d.posted.nextTime()
			if next > maxTime {
				d.now = maxTime
				break
			}
			if err := d.firePosted(next); err != nil {
				return nil, err
			}
			continue
		}

		t := d.now + d.dyn.ExpFloat64()/total
		if next, ok := d.posted.nextTime(); ok && next <= t && next <= maxTime {
			if err := d.firePosted(next); err != nil {
				return nil, err
			}
			d.observeLoci()
			continue
		}
		if t > maxTime {
			d.now = maxTime
			break
		}
		d.now = t

		ev := d.choose(events, total)
		el, ok := ev.Locus().Sample(d.bits)
		if !ok {
			continue
		}
		if err := d.fire(ev, el); err != nil {
			return nil, err
		}
		d.observeLoci()
	}
	return d.finish(started)
}

// choose picks an event with probability proportional to its total rate.
func (d *StochasticDynamics) choose(events []*sim.Event, total float64) *sim.Event {
	x := d.dyn.Float64() * total
	var last *sim.Event
	for _, ev := range events {
		r := ev.TotalRate()
		if r == 0 {
			continue
		}
		last = ev
		if x < r {
			return ev
		}
		x -= r
	}
	// rounding can leave x just above the final bucket
	return last
}
