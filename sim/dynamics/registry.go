package dynamics

import (
	"fmt"

	"github.com/episim/episim/sim"
)

// Kinds lists the engine names New accepts.
func Kinds() []string {
	return []string{KindSynchronous, KindStochastic}
}

// IsValidKind reports whether kind names an engine.
func IsValidKind(kind string) bool {
	return kind == KindSynchronous || kind == KindStochastic
}

// New creates the engine named kind over a set-up model.
func New(kind string, m *sim.CompartmentedModel, rng *sim.PartitionedRNG, cfg Config) (Engine, error) {
	switch kind {
	case KindSynchronous:
		return NewSynchronousDynamics(m, rng, cfg), nil
	case KindStochastic:
		return NewStochasticDynamics(m, rng, cfg), nil
	default:
		return nil, fmt.Errorf("unknown dynamics %q; valid options: %v", kind, Kinds())
	}
}
