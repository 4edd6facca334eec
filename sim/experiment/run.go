package experiment

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/dynamics"
	"github.com/episim/episim/sim/metrics"
	"github.com/episim/episim/sim/models"
	"github.com/episim/episim/sim/network"
	"github.com/episim/episim/sim/trace"
)

// Options carries the optional observers of a run. Metrics accumulate across
// repetitions; each repetition records into a trace of its own built from Trace.
type Options struct {
	Trace   trace.TraceConfig
	Metrics *metrics.Registry
}

// Outcome is the result of one repetition. Trace is nil unless events were traced.
type Outcome struct {
	Repetition int
	Seed       int64
	Results    sim.Results
	Trace      *trace.SimulationTrace
}

// RepetitionSeed returns the seed of repetition i: the experiment seed itself for the
// first, and a seed derived from it for the rest.
func RepetitionSeed(seed int64, i int) int64 {
	if i == 0 {
		return seed
	}
	return sim.NewPartitionedRNG(sim.NewSimulationKey(seed)).DeriveSeed(sim.SubsystemRepetition(i))
}

// BuildNetwork generates the network described by ns from the network subsystem of rng.
func BuildNetwork(ns NetworkSpec, rng *sim.PartitionedRNG) (*network.Graph, error) {
	switch ns.Kind {
	case NetworkErdosRenyi:
		return network.ErdosRenyiMeanDegree(ns.Nodes, ns.KMean, rng.SourceFor(sim.SubsystemNetwork))
	case NetworkRing:
		return network.Ring(ns.Nodes, ns.K)
	case NetworkComplete:
		return network.Complete(ns.Nodes), nil
	default:
		return nil, fmt.Errorf("unknown network kind %q", ns.Kind)
	}
}

// RunOnce builds, sets up and runs one repetition of spec with the given seed.
func RunOnce(ctx context.Context, spec *Spec, seed int64, opts Options) (Outcome, error) {
	out := Outcome{Seed: seed}
	def, err := models.Lookup(spec.Model)
	if err != nil {
		return out, err
	}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	g, err := BuildNetwork(spec.Network, rng)
	if err != nil {
		return out, fmt.Errorf("network: %w", err)
	}

	m := sim.NewCompartmentedModel(def)
	if err := m.Build(spec.Parameters()); err != nil {
		return out, err
	}
	if err := m.SetUp(g, rng); err != nil {
		return out, err
	}
	if opts.Trace.Level == trace.TraceLevelEvents {
		out.Trace = trace.NewSimulationTrace(opts.Trace)
	}
	engine, err := dynamics.New(spec.Dynamics, m, rng, dynamics.Config{
		MaxTime:         spec.MaxTime,
		MonitorInterval: spec.MonitorInterval,
		Trace:           out.Trace,
		Metrics:         opts.Metrics,
		Model:           spec.Model,
	})
	if err != nil {
		return out, err
	}
	out.Results, err = engine.Run(ctx)
	return out, err
}

// Run runs every repetition of spec in turn. It stops at the first failure.
func Run(ctx context.Context, spec *Spec, opts Options) ([]Outcome, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	outcomes := make([]Outcome, 0, spec.Repetitions)
	for i := 0; i < spec.Repetitions; i++ {
		seed := RepetitionSeed(spec.Seed, i)
		logrus.Infof("repetition %d/%d: %s under %s dynamics, seed %d", i+1, spec.Repetitions, spec.Model, spec.Dynamics, seed)
		out, err := RunOnce(ctx, spec, seed, opts)
		if err != nil {
			return outcomes, fmt.Errorf("repetition %d: %w", i, err)
		}
		out.Repetition = i
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
