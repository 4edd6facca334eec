// Package models holds the reference compartmented models. Each is a sim.Definition
// that runs under any dynamics.
package models

import (
	"fmt"
	"sort"

	"github.com/episim/episim/sim"
	"github.com/episim/episim/sim/network"
)

// Compartments shared by the reference models.
const (
	Susceptible sim.Compartment = "S"
	Exposed     sim.Compartment = "E"
	Infected    sim.Compartment = "I"
	Removed     sim.Compartment = "R"
)

// Parameter names.
const (
	PInfected = "pInfected" // initial probability of being infected
	NInfected = "nInfected" // initial number of infected nodes, instead of PInfected
	PInfect   = "pInfect"   // infection probability or rate across an occupied S-I edge
	PRemove   = "pRemove"   // removal (or recovery) probability or rate of an infected node
	PProgress = "pProgress" // SEIR: rate at which exposed nodes become infectious
	POccupied = "pOccupied" // fraction of edges occupied at set up; default 1
)

// ResultEpidemicSize is the final fraction of nodes that caught the disease.
const ResultEpidemicSize = "epidemicSize"

// ResultLargestSkeletonComponent is the node count of the largest connected component
// of the occupied edges. It bounds how large an outbreak the occupancy allowed.
const ResultLargestSkeletonComponent = "largestSkeletonComponent"

var registry = map[string]func() sim.Definition{
	"sir":  func() sim.Definition { return &SIR{} },
	"sis":  func() sim.Definition { return &SIS{} },
	"seir": func() sim.Definition { return &SEIR{} },
}

// Names lists the registered model names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns a fresh definition for the named model.
func Lookup(name string) (sim.Definition, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q; valid options: %v", name, Names())
	}
	return f(), nil
}

// declareInitial registers infected with either a fixed count (NInfected) or a
// probability (PInfected), susceptible with the remainder, and every other
// compartment as initially empty.
func declareInitial(m *sim.CompartmentedModel, params sim.Parameters, infected sim.Compartment, others ...sim.Compartment) error {
	var pS float64
	if params.Has(NInfected) {
		n, err := params.Int(NInfected)
		if err != nil {
			return err
		}
		if err := m.AddCompartment(infected, sim.Count(n)); err != nil {
			return err
		}
		pS = 1
	} else {
		pI, err := params.Float(PInfected)
		if err != nil {
			return fmt.Errorf("%w (or set %s)", err, NInfected)
		}
		if err := m.AddCompartment(infected, sim.Probability(pI)); err != nil {
			return err
		}
		pS = 1 - pI
	}
	if err := m.AddCompartment(Susceptible, sim.Probability(pS)); err != nil {
		return err
	}
	for _, c := range others {
		if err := m.AddCompartment(c, sim.Probability(0)); err != nil {
			return err
		}
	}
	occupied, err := params.FloatOr(POccupied, 1)
	if err != nil {
		return err
	}
	return m.OccupyEdges(occupied)
}

// infection tracks the S-I edges and registers the event moving the susceptible
// endpoint into target.
func infection(m *sim.CompartmentedModel, params sim.Parameters, target sim.Compartment) error {
	rate, err := params.Float(PInfect)
	if err != nil {
		return err
	}
	si, err := m.TrackEdgesBetweenCompartments(Susceptible, Infected, sim.Unordered)
	if err != nil {
		return err
	}
	return m.AddEdgeEvent(si, rate, "infect", func(d sim.Dynamics, _ float64, e network.Edge) error {
		return d.Model().SetCompartment(e.From, target)
	})
}

// transition tracks from and registers a node event moving its members to to.
func transition(m *sim.CompartmentedModel, params sim.Parameters, key, name string, from, to sim.Compartment) error {
	rate, err := params.Float(key)
	if err != nil {
		return err
	}
	l, err := m.TrackNodesInCompartment(from)
	if err != nil {
		return err
	}
	return m.AddNodeEvent(l, rate, name, func(d sim.Dynamics, _ float64, n network.Node) error {
		return d.Model().SetCompartment(n, to)
	})
}

// fraction returns |c| / order, or 0 on an empty network.
func fraction(m *sim.CompartmentedModel, c sim.Compartment) float64 {
	net := m.Network()
	if net == nil || net.Order() == 0 {
		return 0
	}
	n, _ := m.CompartmentSize(c)
	return float64(n) / float64(net.Order())
}

// largestSkeletonComponent returns the largest component size of m's skeleton, or 0
// before set up.
func largestSkeletonComponent(m *sim.CompartmentedModel) int {
	sk, err := m.Skeletonise()
	if err != nil {
		return 0
	}
	return network.LargestComponentSize(sk)
}
