package sim

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/episim/episim/sim/network"
)

// Compartment labels a disease state a node can occupy.
type Compartment string

// distributionTolerance bounds how far the initial probabilities may sum away from 1.
const distributionTolerance = 1e-9

type occupancyKind int

const (
	byProbability occupancyKind = iota
	byCount
)

// InitialOccupancy is the rule that seeds a compartment at SetUp: either each node
// independently with a probability, or a fixed number of nodes.
type InitialOccupancy struct {
	kind        occupancyKind
	probability float64
	count       int
}

// Probability seeds a compartment by drawing each node into it with probability p.
func Probability(p float64) InitialOccupancy {
	return InitialOccupancy{kind: byProbability, probability: p}
}

// Count seeds a compartment with exactly n nodes chosen uniformly at random.
func Count(n int) InitialOccupancy {
	return InitialOccupancy{kind: byCount, count: n}
}

// IsCount reports whether the rule is a fixed count.
func (o InitialOccupancy) IsCount() bool {
	return o.kind == byCount
}

func (o InitialOccupancy) String() string {
	if o.kind == byCount {
		return fmt.Sprintf("count=%d", o.count)
	}
	return fmt.Sprintf("p=%g", o.probability)
}

func (o InitialOccupancy) validate() error {
	switch o.kind {
	case byCount:
		if o.count < 0 {
			return fmt.Errorf("%w: negative count %d", ErrInvalidDistribution, o.count)
		}
	default:
		if o.probability < 0 || o.probability > 1 || math.IsNaN(o.probability) {
			return fmt.Errorf("%w: probability %v outside [0, 1]", ErrInvalidDistribution, o.probability)
		}
	}
	return nil
}

// compartmentRegistry holds the declared compartments, in declaration order, and their
// initial-occupancy rules.
type compartmentRegistry struct {
	order []Compartment
	rules map[Compartment]InitialOccupancy
}

func newCompartmentRegistry() *compartmentRegistry {
	return &compartmentRegistry{rules: make(map[Compartment]InitialOccupancy)}
}

func (r *compartmentRegistry) add(c Compartment, rule InitialOccupancy) error {
	if _, ok := r.rules[c]; ok {
		return ErrDuplicateCompartment
	}
	if err := rule.validate(); err != nil {
		return err
	}
	r.order = append(r.order, c)
	r.rules[c] = rule
	return nil
}

func (r *compartmentRegistry) has(c Compartment) bool {
	_, ok := r.rules[c]
	return ok
}

func (r *compartmentRegistry) compartments() []Compartment {
	out := make([]Compartment, len(r.order))
	copy(out, r.order)
	return out
}

// distribution returns the probabilities of the probability-rule compartments. When any
// exist they must sum to 1.
func (r *compartmentRegistry) distribution() (map[Compartment]float64, error) {
	dist := make(map[Compartment]float64)
	sum := 0.0
	for _, c := range r.order {
		rule := r.rules[c]
		if rule.kind != byProbability {
			continue
		}
		dist[c] = rule.probability
		sum += rule.probability
	}
	if len(dist) > 0 && math.Abs(sum-1) > distributionTolerance {
		return nil, fmt.Errorf("%w: probabilities sum to %v, want 1", ErrInvalidDistribution, sum)
	}
	return dist, nil
}

// assign draws an initial compartment for every node. Fixed-count compartments claim
// their nodes first, from a shuffle of the node list; every remaining node then draws
// from the probability distribution, in ascending node order.
func (r *compartmentRegistry) assign(nodes []network.Node, rng *rand.Rand) (map[network.Node]Compartment, error) {
	dist, err := r.distribution()
	if err != nil {
		return nil, err
	}

	claimed := 0
	for _, c := range r.order {
		if rule := r.rules[c]; rule.kind == byCount {
			claimed += rule.count
		}
	}
	if claimed > len(nodes) {
		return nil, fmt.Errorf("%w: fixed counts claim %d nodes but the network has %d", ErrInvalidDistribution, claimed, len(nodes))
	}
	if claimed < len(nodes) && len(dist) == 0 {
		return nil, fmt.Errorf("%w: %d nodes left unassigned and no probability rule to draw them from", ErrInvalidDistribution, len(nodes)-claimed)
	}

	assignment := make(map[network.Node]Compartment, len(nodes))
	if claimed > 0 {
		shuffled := make([]network.Node, len(nodes))
		copy(shuffled, nodes)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		next := 0
		for _, c := range r.order {
			rule := r.rules[c]
			if rule.kind != byCount {
				continue
			}
			for i := 0; i < rule.count; i++ {
				assignment[shuffled[next]] = c
				next++
			}
		}
	}

	// cumulative distribution in declaration order
	cdf := make([]Compartment, 0, len(dist))
	bounds := make([]float64, 0, len(dist))
	acc := 0.0
	for _, c := range r.order {
		if p, ok := dist[c]; ok {
			acc += p
			cdf = append(cdf, c)
			bounds = append(bounds, acc)
		}
	}
	for _, n := range nodes {
		if _, ok := assignment[n]; ok {
			continue
		}
		x := rng.Float64() * acc
		chosen := cdf[len(cdf)-1]
		for i, b := range bounds {
			if x < b {
				chosen = cdf[i]
				break
			}
		}
		assignment[n] = chosen
	}
	return assignment, nil
}
