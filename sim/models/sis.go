package models

import "github.com/episim/episim/sim"

// ResultEndemicFraction is the fraction of nodes infected when an SIS run stops.
const ResultEndemicFraction = "endemicFraction"

// SIS is the susceptible-infected-susceptible model: recovered nodes return to S.
type SIS struct{}

// Build implements sim.Definition.
func (*SIS) Build(m *sim.CompartmentedModel, params sim.Parameters) error {
	if err := declareInitial(m, params, Infected); err != nil {
		return err
	}
	if err := infection(m, params, Infected); err != nil {
		return err
	}
	return transition(m, params, PRemove, "recover", Infected, Susceptible)
}

// Results implements sim.Definition.
func (*SIS) Results(m *sim.CompartmentedModel) sim.Results {
	return sim.Results{ResultEndemicFraction: fraction(m, Infected)}
}
