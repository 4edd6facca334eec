package sim

import (
	"fmt"
	"math/rand"

	"github.com/episim/episim/sim/network"
)

// Dynamics is the scheduling engine as seen from inside an event function: the
// model it drives, its clock, its random stream, and a way to post timed events.
type Dynamics interface {
	Model() *CompartmentedModel
	Time() float64
	RNG() *rand.Rand
	// PostEvent schedules fn to run at simulation time t.
	PostEvent(t float64, name string, fn PostedEventFunc) error
}

// NodeEventFunc performs the transition of a node-locus event.
type NodeEventFunc func(d Dynamics, t float64, n network.Node) error

// EdgeEventFunc performs the transition of an edge-locus event. The edge is oriented
// with From in the locus's first compartment.
type EdgeEventFunc func(d Dynamics, t float64, e network.Edge) error

// PostedEventFunc is a fixed-time event posted by the model or the engine.
type PostedEventFunc func(d Dynamics, t float64) error

// Event binds a locus to a probability (discrete time) or rate (continuous time)
// and the function that fires on one of its elements.
type Event struct {
	name      string
	rate      float64
	nodeLocus *NodeLocus
	edgeLocus *EdgeLocus
	nodeFn    NodeEventFunc
	edgeFn    EdgeEventFunc
}

// Name returns the event's name.
func (ev *Event) Name() string { return ev.name }

// Rate returns the event's per-element probability or rate.
func (ev *Event) Rate() float64 { return ev.rate }

// Locus returns the locus the event draws its elements from.
func (ev *Event) Locus() Locus {
	if ev.edgeLocus != nil {
		return ev.edgeLocus
	}
	return ev.nodeLocus
}

// Eligible returns the number of elements the event can currently fire on.
func (ev *Event) Eligible() int {
	return ev.Locus().Len()
}

// TotalRate returns rate × eligible elements, the event's weight in a stochastic run.
func (ev *Event) TotalRate() float64 {
	return ev.rate * float64(ev.Eligible())
}

// FireOn runs the event on el. Edge elements are re-oriented against the locus's
// current view, so a snapshot taken earlier in a step stays safe to use.
func (ev *Event) FireOn(d Dynamics, t float64, el Element) error {
	if ev.edgeLocus != nil {
		if !el.IsEdge {
			return fmt.Errorf("event %s: edge event fired on node %v", ev.name, el)
		}
		e, ok := ev.edgeLocus.Oriented(el.Edge)
		if !ok {
			e = el.Edge
		}
		return ev.edgeFn(d, t, e)
	}
	if el.IsEdge {
		return fmt.Errorf("event %s: node event fired on edge %v", ev.name, el)
	}
	return ev.nodeFn(d, t, el.Node)
}

// FireRandom picks a uniform element of the locus and fires on it. Returns the
// element, or ok=false if the locus was empty.
func (ev *Event) FireRandom(d Dynamics, t float64, src Intner) (el Element, ok bool, err error) {
	el, ok = ev.Locus().Sample(src)
	if !ok {
		return el, false, nil
	}
	return el, true, ev.FireOn(d, t, el)
}
