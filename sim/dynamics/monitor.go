package dynamics

import (
	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/trace"
)

const monitorEventName = "monitor"

// Timeseries is the monitor's result: compartment sizes sampled at Times.
type Timeseries struct {
	Times []float64        `json:"times"`
	Sizes map[string][]int `json:"sizes"`
}

// Monitor samples every compartment size at a fixed interval.
type Monitor struct {
	model  *sim.CompartmentedModel
	trace  *trace.SimulationTrace
	series Timeseries
}

func newMonitor(m *sim.CompartmentedModel, st *trace.SimulationTrace) *Monitor {
	sizes := make(map[string][]int)
	for _, c := range m.Compartments() {
		sizes[string(c)] = nil
	}
	return &Monitor{model: m, trace: st, series: Timeseries{Sizes: sizes}}
}

func (mon *Monitor) observe(_ sim.Dynamics, t float64) error {
	snapshot := make(map[string]int, len(mon.series.Sizes))
	for _, c := range mon.model.Compartments() {
		n, err := mon.model.CompartmentSize(c)
		if err != nil {
			return err
		}
		mon.series.Sizes[string(c)] = append(mon.series.Sizes[string(c)], n)
		snapshot[string(c)] = n
	}
	mon.series.Times = append(mon.series.Times, t)
	mon.trace.RecordSnapshot(trace.SnapshotRecord{Time: t, Sizes: snapshot})
	return nil
}

// finalObservation records the end state. A sample already taken at t may predate
// events fired later at the same time, so it is replaced.
func (mon *Monitor) finalObservation(t float64) {
	if n := len(mon.series.Times); n > 0 && mon.series.Times[n-1] == t {
		mon.series.Times = mon.series.Times[:n-1]
		for c, sizes := range mon.series.Sizes {
			mon.series.Sizes[c] = sizes[:n-1]
		}
		if st := mon.trace; st.Enabled() {
			if k := len(st.Snapshots); k > 0 && st.Snapshots[k-1].Time == t {
				st.Snapshots = st.Snapshots[:k-1]
			}
		}
	}
	_ = mon.observe(nil, t)
}

// Timeseries returns the samples collected so far.
func (mon *Monitor) Timeseries() Timeseries {
	return mon.series
}
