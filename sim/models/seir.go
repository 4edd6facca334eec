package models

import "github.com/episim/episim/sim"

// SEIR adds a latent Exposed stage to SIR: infection moves a susceptible node to E,
// from which it progresses to I at rate pProgress.
type SEIR struct{}

// Build implements sim.Definition.
func (*SEIR) Build(m *sim.CompartmentedModel, params sim.Parameters) error {
	if err := declareInitial(m, params, Infected, Exposed, Removed); err != nil {
		return err
	}
	if err := infection(m, params, Exposed); err != nil {
		return err
	}
	if err := transition(m, params, PProgress, "progress", Exposed, Infected); err != nil {
		return err
	}
	return transition(m, params, PRemove, "remove", Infected, Removed)
}

// Results implements sim.Definition.
func (*SEIR) Results(m *sim.CompartmentedModel) sim.Results {
	return sim.Results{
		ResultEpidemicSize:             fraction(m, Removed),
		ResultLargestSkeletonComponent: largestSkeletonComponent(m),
	}
}
