package models

import "github.com/episim/episim/sim"

// SIR is the susceptible-infected-removed model. Infection crosses occupied S-I
// edges; infected nodes are removed permanently.
type SIR struct{}

// Build implements sim.Definition.
func (*SIR) Build(m *sim.CompartmentedModel, params sim.Parameters) error {
	if err := declareInitial(m, params, Infected, Removed); err != nil {
		return err
	}
	if err := infection(m, params, Infected); err != nil {
		return err
	}
	return transition(m, params, PRemove, "remove", Infected, Removed)
}

// Results implements sim.Definition: the final removed fraction is the epidemic size.
func (*SIR) Results(m *sim.CompartmentedModel) sim.Results {
	return sim.Results{
		ResultEpidemicSize:             fraction(m, Removed),
		ResultLargestSkeletonComponent: largestSkeletonComponent(m),
	}
}
