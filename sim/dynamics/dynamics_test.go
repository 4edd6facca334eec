package dynamics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/metrics"
	"github.com/episim/episim/sim/models"
	"github.com/episim/episim/sim/network"
	"github.com/episim/episim/sim/trace"
)

// setUp builds and sets up a reference model over g.
func setUp(t *testing.T, name string, params sim.Parameters, g network.Network, seed int64) (*sim.CompartmentedModel, *sim.PartitionedRNG) {
	t.Helper()
	def, err := models.Lookup(name)
	require.NoError(t, err)
	m := sim.NewCompartmentedModel(def)
	require.NoError(t, m.Build(params))
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	require.NoError(t, m.SetUp(g, rng))
	return m, rng
}

// idle is an SIR with nothing infected, so no locus event can fire.
func idle(t *testing.T) (*sim.CompartmentedModel, *sim.PartitionedRNG) {
	return setUp(t, "sir", sim.Parameters{models.PInfected: 0, models.PInfect: 1, models.PRemove: 1}, network.Complete(5), 1)
}

func bothKinds(t *testing.T, f func(t *testing.T, kind string)) {
	for _, kind := range Kinds() {
		t.Run(kind, func(t *testing.T) { f(t, kind) })
	}
}

func TestRun_NoEligibleEvents_EndsAtStart(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		m, rng := idle(t)
		eng, err := New(kind, m, rng, Config{})
		require.NoError(t, err)

		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0.0, res[ResultTime])
		assert.Equal(t, 0, res[ResultEvents])
		assert.Equal(t, 5, res["S"])
		assert.Equal(t, kind, res[ResultDynamics])
	})
}

func TestRun_PostedEventFiresAtItsTime(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		m, rng := idle(t)
		eng, err := New(kind, m, rng, Config{})
		require.NoError(t, err)

		var firedAt float64
		require.NoError(t, eng.PostEvent(3.5, "vaccinate", func(d sim.Dynamics, t float64) error {
			firedAt = t
			return d.Model().SetCompartment(0, models.Removed)
		}))

		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3.5, firedAt)
		assert.Equal(t, 1, res["R"])
		assert.Equal(t, map[string]int{"vaccinate": 1}, res[ResultFired])
		if kind == KindStochastic {
			assert.Equal(t, 3.5, res[ResultTime])
		} else {
			assert.Equal(t, 4.0, res[ResultTime], "synchronous time advances in whole steps")
		}
	})
}

func TestRun_PostedEventCanSeedAnOutbreak(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		m, rng := idle(t)
		eng, err := New(kind, m, rng, Config{})
		require.NoError(t, err)
		require.NoError(t, eng.PostEvent(1, "patient-zero", func(d sim.Dynamics, _ float64) error {
			return d.Model().SetCompartment(2, models.Infected)
		}))

		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, res["I"])
		assert.Equal(t, 5, res["R"].(int)+res["S"].(int))
		assert.Positive(t, res["R"])
	})
}

func TestPostEvent_InThePast(t *testing.T) {
	m, rng := idle(t)
	eng := NewStochasticDynamics(m, rng, Config{})
	eng.now = 2
	err := eng.PostEvent(1, "late", func(sim.Dynamics, float64) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidPostTime)
	assert.Error(t, eng.PostRepeatingEvent(3, 0, "tick", func(sim.Dynamics, float64) error { return nil }))
}

func TestRun_RepeatingEventsDoNotKeepRunAlive(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		m, rng := idle(t)
		eng, err := New(kind, m, rng, Config{MaxTime: 100})
		require.NoError(t, err)
		ticks := 0
		require.NoError(t, eng.(interface {
			PostRepeatingEvent(at, interval float64, name string, fn sim.PostedEventFunc) error
		}).PostRepeatingEvent(0, 1, "tick", func(sim.Dynamics, float64) error {
			ticks++
			return nil
		}))

		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0.0, res[ResultTime])
		assert.Equal(t, 1, ticks)
	})
}

func TestRun_PostedEventErrorAborts(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		m, rng := idle(t)
		eng, err := New(kind, m, rng, Config{})
		require.NoError(t, err)
		boom := errors.New("boom")
		require.NoError(t, eng.PostEvent(2, "fail", func(sim.Dynamics, float64) error { return boom }))

		_, err = eng.Run(context.Background())
		assert.ErrorIs(t, err, boom)
	})
}

func TestRun_StopsAtMaxTime(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		// SIS with fast infection and slow recovery on a complete graph stays endemic
		m, rng := setUp(t, "sis", sim.Parameters{
			models.NInfected: 5, models.PInfect: 0.5, models.PRemove: 0.05,
		}, network.Complete(30), 9)
		eng, err := New(kind, m, rng, Config{MaxTime: 10})
		require.NoError(t, err)

		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 10.0, res[ResultTime])
		assert.Positive(t, res["I"])
	})
}

func TestSynchronous_RejectsRateAboveOne(t *testing.T) {
	// GIVEN an SIR whose removal rate cannot be a per-step probability
	m, rng := setUp(t, "sir", sim.Parameters{
		models.NInfected: 2, models.PInfect: 0.5, models.PRemove: 2.5,
	}, network.Complete(10), 1)

	// WHEN it is run synchronously
	_, err := NewSynchronousDynamics(m, rng, Config{}).Run(context.Background())

	// THEN the run is refused before anything fires
	assert.ErrorIs(t, err, ErrProbabilityAboveOne)
	assert.Contains(t, err.Error(), "remove")
	infected, err := m.CompartmentSize(models.Infected)
	require.NoError(t, err)
	assert.Equal(t, 2, infected)

	// the stochastic engine reads the same value as a rate
	m, rng = setUp(t, "sir", sim.Parameters{
		models.NInfected: 2, models.PInfect: 0.5, models.PRemove: 2.5,
	}, network.Complete(10), 1)
	_, err = NewStochasticDynamics(m, rng, Config{}).Run(context.Background())
	assert.NoError(t, err)
}

func TestRun_Twice(t *testing.T) {
	m, rng := idle(t)
	eng := NewSynchronousDynamics(m, rng, Config{})
	_, err := eng.Run(context.Background())
	require.NoError(t, err)
	_, err = eng.Run(context.Background())
	assert.Error(t, err)
}

func TestRun_CancelledContext(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		m, rng := setUp(t, "sis", sim.Parameters{
			models.NInfected: 5, models.PInfect: 0.5, models.PRemove: 0.05,
		}, network.Complete(30), 9)
		eng, err := New(kind, m, rng, Config{})
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = eng.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRun_Monitor(t *testing.T) {
	bothKinds(t, func(t *testing.T, kind string) {
		m, rng := setUp(t, "sir", sim.Parameters{
			models.NInfected: 2, models.PInfect: 0.4, models.PRemove: 0.5,
		}, network.Complete(40), 5)
		st := trace.NewSimulationTrace(trace.TraceConfig{Level: trace.TraceLevelEvents})
		eng, err := New(kind, m, rng, Config{MonitorInterval: 1, Trace: st})
		require.NoError(t, err)

		res, err := eng.Run(context.Background())
		require.NoError(t, err)
		ts := res[ResultTimeseries].(Timeseries)
		require.NotEmpty(t, ts.Times)
		assert.Equal(t, 0.0, ts.Times[0])
		assert.Equal(t, 2, ts.Sizes["I"][0], "first sample is the initial state")
		assert.Equal(t, res[ResultTime], ts.Times[len(ts.Times)-1], "last sample is the final state")
		for i := range ts.Times {
			assert.Equal(t, 40, ts.Sizes["S"][i]+ts.Sizes["I"][i]+ts.Sizes["R"][i])
		}
		assert.Len(t, st.Snapshots, len(ts.Times))
		assert.NotContains(t, res[ResultFired], monitorEventName)
	})
}

func TestRun_RecordsMetrics(t *testing.T) {
	m, rng := setUp(t, "sir", sim.Parameters{
		models.NInfected: 1, models.PInfect: 1, models.PRemove: 1,
	}, network.Complete(10), 5)
	reg := metrics.NewRegistry()
	eng := NewSynchronousDynamics(m, rng, Config{Metrics: reg, Model: "sir"})

	res, err := eng.Run(context.Background())
	require.NoError(t, err)

	samples, err := reg.Snapshot()
	require.NoError(t, err)
	got := make(map[string]float64)
	for _, s := range samples {
		if s.Name == "episim_run_duration_seconds" {
			continue
		}
		key := s.Name
		for _, v := range s.Labels {
			key += "/" + v
		}
		got[key] = s.Value
	}
	fired := res[ResultFired].(map[string]int)
	assert.Equal(t, float64(fired["infect"]), got["episim_events_fired_total/infect"])
	assert.Equal(t, float64(fired["remove"]), got["episim_events_fired_total/remove"])
	assert.Equal(t, 1.0, runsTotal(samples))
	assert.Equal(t, 0.0, got["episim_locus_size/I"])
	assert.Equal(t, 1.0, got["episim_simulation_time"])
}

func runsTotal(samples []metrics.Sample) float64 {
	for _, s := range samples {
		if s.Name == "episim_runs_total" && s.Labels["model"] == "sir" && s.Labels["dynamics"] == KindSynchronous {
			return s.Value
		}
	}
	return 0
}

func TestNew_UnknownKind(t *testing.T) {
	m, rng := idle(t)
	_, err := New("hybrid", m, rng, Config{})
	assert.Error(t, err)
	assert.True(t, IsValidKind(KindStochastic))
	assert.False(t, IsValidKind("hybrid"))
}

func TestStochastic_ChooseProportionalToRate(t *testing.T) {
	m, rng := setUp(t, "sir", sim.Parameters{
		models.PInfected: 0.5, models.PInfect: 1, models.PRemove: 3,
	}, network.Complete(20), 2)
	eng := NewStochasticDynamics(m, rng, Config{})
	events := m.Events()
	total := 0.0
	for _, ev := range events {
		total += ev.TotalRate()
	}
	require.Positive(t, total)

	counts := map[string]int{}
	const draws = 20000
	for i := 0; i < draws; i++ {
		counts[eng.choose(events, total).Name()]++
	}
	for _, ev := range events {
		want := ev.TotalRate() / total
		assert.InDelta(t, want, float64(counts[ev.Name()])/draws, 0.02, "share of %s", ev.Name())
	}
}
