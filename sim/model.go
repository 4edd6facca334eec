package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/episim/episim/sim/network"
)

// Definition is what a concrete model (SIR, SIS, ...) supplies. Build declares
// compartments, loci and events on the model; Results reports model-specific
// outcomes, which the model merges over the compartment sizes.
type Definition interface {
	Build(m *CompartmentedModel, params Parameters) error
	Results(m *CompartmentedModel) Results
}

// lifecycle is the model's one-way state: unbuilt → built → set up → running → finished.
type lifecycle int

const (
	stateUnbuilt lifecycle = iota
	stateBuilding
	stateBuilt
	stateSetUp
	stateRunning
	stateFinished
)

func (s lifecycle) String() string {
	switch s {
	case stateUnbuilt:
		return "unbuilt"
	case stateBuilding:
		return "building"
	case stateBuilt:
		return "built"
	case stateSetUp:
		return "set up"
	case stateRunning:
		return "running"
	default:
		return "finished"
	}
}

// CompartmentedModel orchestrates a compartment registry, a locus index and an event
// table over a shared network. Mutations during a run go through SetCompartment,
// MarkOccupied and the Add/Remove wrappers, which keep every locus exact before
// returning.
//
// Thread-safety: NOT thread-safe. One model per run, driven from one goroutine.
type CompartmentedModel struct {
	def       Definition
	state     lifecycle
	params    Parameters
	registry  *compartmentRegistry
	index     *locusIndex
	events    []*Event
	occupancy float64
}

// NewCompartmentedModel creates an unbuilt model for def.
func NewCompartmentedModel(def Definition) *CompartmentedModel {
	m := &CompartmentedModel{def: def}
	m.Reset()
	return m
}

// Reset discards all registry, locus and event state, returning the model to unbuilt.
// The network, if any, is left untouched.
func (m *CompartmentedModel) Reset() {
	m.state = stateUnbuilt
	m.params = nil
	m.registry = newCompartmentRegistry()
	m.index = newLocusIndex()
	m.events = nil
	m.occupancy = 0
}

// Build declares the model's compartments, loci and events from params.
// A failed Build leaves the model unbuilt.
func (m *CompartmentedModel) Build(params Parameters) error {
	if m.state != stateUnbuilt {
		return modelError("Build", nil, ErrAlreadyBuilt)
	}
	m.state = stateBuilding
	m.params = params.Clone()
	if err := m.def.Build(m, m.params); err != nil {
		m.Reset()
		return fmt.Errorf("build: %w", err)
	}
	m.state = stateBuilt
	logrus.Debugf("built model with compartments %v and %d events", m.registry.order, len(m.events))
	return nil
}

// Parameters returns the parameters the model was built from.
func (m *CompartmentedModel) Parameters() Parameters {
	return m.params
}

// === Build-time declarations ===

func (m *CompartmentedModel) checkBuilding(op string) error {
	if m.state != stateBuilding {
		if m.state == stateUnbuilt {
			return modelError(op, nil, ErrNotBuilt)
		}
		return modelError(op, nil, ErrAlreadyBuilt)
	}
	return nil
}

// AddCompartment declares compartment c with its initial-occupancy rule.
func (m *CompartmentedModel) AddCompartment(c Compartment, rule InitialOccupancy) error {
	if err := m.checkBuilding("AddCompartment"); err != nil {
		return err
	}
	if err := m.registry.add(c, rule); err != nil {
		return modelError("AddCompartment", c, err)
	}
	m.index.declare(c)
	return nil
}

// TrackNodesInCompartment returns the node locus for c, creating it on first call.
func (m *CompartmentedModel) TrackNodesInCompartment(c Compartment) (*NodeLocus, error) {
	if err := m.checkBuilding("TrackNodesInCompartment"); err != nil {
		return nil, err
	}
	if !m.registry.has(c) {
		return nil, modelError("TrackNodesInCompartment", c, ErrUnknownCompartment)
	}
	return m.index.trackNodes(c), nil
}

// TrackEdgesBetweenCompartments returns the edge locus for (c1, c2) under direction d,
// creating it on first call.
func (m *CompartmentedModel) TrackEdgesBetweenCompartments(c1, c2 Compartment, d EdgeDirection) (*EdgeLocus, error) {
	if err := m.checkBuilding("TrackEdgesBetweenCompartments"); err != nil {
		return nil, err
	}
	for _, c := range []Compartment{c1, c2} {
		if !m.registry.has(c) {
			return nil, modelError("TrackEdgesBetweenCompartments", c, ErrUnknownCompartment)
		}
	}
	return m.index.trackEdges(c1, c2, d), nil
}

// AddNodeEvent registers fn to fire on elements of a node locus with the given
// probability or rate.
func (m *CompartmentedModel) AddNodeEvent(l *NodeLocus, rate float64, name string, fn NodeEventFunc) error {
	if err := m.checkEvent(name, rate); err != nil {
		return err
	}
	m.events = append(m.events, &Event{name: name, rate: rate, nodeLocus: l, nodeFn: fn})
	return nil
}

// AddEdgeEvent registers fn to fire on elements of an edge locus with the given
// probability or rate.
func (m *CompartmentedModel) AddEdgeEvent(l *EdgeLocus, rate float64, name string, fn EdgeEventFunc) error {
	if err := m.checkEvent(name, rate); err != nil {
		return err
	}
	m.events = append(m.events, &Event{name: name, rate: rate, edgeLocus: l, edgeFn: fn})
	return nil
}

func (m *CompartmentedModel) checkEvent(name string, rate float64) error {
	if err := m.checkBuilding("AddEvent"); err != nil {
		return err
	}
	if rate < 0 {
		return modelError("AddEvent", name, fmt.Errorf("negative probability or rate %v", rate))
	}
	return nil
}

// OccupyEdges sets the probability with which SetUp marks each edge occupied.
// The default, 0, leaves every edge unoccupied.
func (m *CompartmentedModel) OccupyEdges(p float64) error {
	if err := m.checkBuilding("OccupyEdges"); err != nil {
		return err
	}
	if p < 0 || p > 1 {
		return modelError("OccupyEdges", nil, fmt.Errorf("occupation probability %v outside [0, 1]", p))
	}
	m.occupancy = p
	return nil
}

// Events returns the event table in registration order.
func (m *CompartmentedModel) Events() []*Event {
	out := make([]*Event, len(m.events))
	copy(out, m.events)
	return out
}

// Compartments returns the declared compartments in declaration order.
func (m *CompartmentedModel) Compartments() []Compartment {
	return m.registry.compartments()
}

// InitialCompartmentDistribution returns the probability of each probability-rule
// compartment. Fails with ErrInvalidDistribution unless they sum to 1.
func (m *CompartmentedModel) InitialCompartmentDistribution() (map[Compartment]float64, error) {
	dist, err := m.registry.distribution()
	if err != nil {
		return nil, modelError("InitialCompartmentDistribution", nil, err)
	}
	return dist, nil
}

// === Set up ===

// SetUp binds the model to net: every edge starts unoccupied, each node draws its
// initial compartment, the occupancy rule marks edges, and one scan of the network
// seeds every locus. Randomness comes from the initial and occupancy subsystems of rng.
func (m *CompartmentedModel) SetUp(net network.Network, rng *PartitionedRNG) error {
	switch {
	case m.state < stateBuilt:
		return modelError("SetUp", nil, ErrNotBuilt)
	case m.state > stateBuilt:
		return modelError("SetUp", nil, ErrAlreadySetUp)
	}

	nodes := net.Nodes()
	assignment, err := m.registry.assign(nodes, rng.ForSubsystem(SubsystemInitial))
	if err != nil {
		return modelError("SetUp", nil, err)
	}

	occupied := make(map[network.Edge]bool)
	if m.occupancy > 0 {
		orng := rng.ForSubsystem(SubsystemOccupancy)
		for _, e := range net.Edges() {
			if m.occupancy >= 1 || orng.Float64() < m.occupancy {
				occupied[e.Canonical()] = true
			}
		}
	}

	m.index.reset(net)
	m.index.seed(assignment, occupied)
	m.state = stateSetUp

	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		sizes := make(map[Compartment]int)
		for _, c := range m.registry.order {
			sizes[c] = m.index.populations[c].len()
		}
		logrus.Debugf("set up over %d nodes, %d edges (%d occupied): %v", len(nodes), net.Size(), len(occupied), sizes)
	}
	return nil
}

// ChangeInitialCompartment overrides one node's initial compartment after SetUp and
// before the run starts, e.g. to place a deterministic patient zero.
func (m *CompartmentedModel) ChangeInitialCompartment(n network.Node, c Compartment) error {
	if m.state != stateSetUp {
		if m.state > stateSetUp {
			return modelError("ChangeInitialCompartment", n, ErrRunning)
		}
		return modelError("ChangeInitialCompartment", n, ErrNotSetUp)
	}
	return m.setCompartment("ChangeInitialCompartment", n, c)
}

// Start marks the run as begun. Dynamics engines call it once before firing events.
func (m *CompartmentedModel) Start() error {
	switch {
	case m.state < stateSetUp:
		return modelError("Start", nil, ErrNotSetUp)
	case m.state > stateSetUp:
		return modelError("Start", nil, ErrRunning)
	}
	m.state = stateRunning
	return nil
}

// Network returns the network the model is set up over, or nil.
func (m *CompartmentedModel) Network() network.Network {
	return m.index.net
}

// === Run-time mutation ===

func (m *CompartmentedModel) checkLive(op string, subject any) error {
	if m.state != stateSetUp && m.state != stateRunning {
		return modelError(op, subject, ErrNotSetUp)
	}
	return nil
}

// SetCompartment moves n to compartment c, updating every affected locus.
func (m *CompartmentedModel) SetCompartment(n network.Node, c Compartment) error {
	return m.setCompartment("SetCompartment", n, c)
}

func (m *CompartmentedModel) setCompartment(op string, n network.Node, c Compartment) error {
	if err := m.checkLive(op, n); err != nil {
		return err
	}
	if !m.registry.has(c) {
		return modelError(op, c, ErrUnknownCompartment)
	}
	if _, ok := m.index.compartment[n]; !ok {
		return modelError(op, n, ErrUnknownNode)
	}
	if err := m.index.setCompartment(n, c); err != nil {
		return modelError(op, n, err)
	}
	return nil
}

// Compartment returns n's current compartment.
func (m *CompartmentedModel) Compartment(n network.Node) (Compartment, error) {
	if err := m.checkLive("Compartment", n); err != nil {
		return "", err
	}
	c, ok := m.index.compartment[n]
	if !ok {
		return "", modelError("Compartment", n, ErrUnknownNode)
	}
	return c, nil
}

// NodesInCompartment returns the nodes currently in c.
func (m *CompartmentedModel) NodesInCompartment(c Compartment) ([]network.Node, error) {
	p, ok := m.index.populations[c]
	if !ok {
		return nil, modelError("NodesInCompartment", c, ErrUnknownCompartment)
	}
	return p.snapshot(), nil
}

// CompartmentSize returns how many nodes are in c.
func (m *CompartmentedModel) CompartmentSize(c Compartment) (int, error) {
	p, ok := m.index.populations[c]
	if !ok {
		return 0, modelError("CompartmentSize", c, ErrUnknownCompartment)
	}
	return p.len(), nil
}

// MarkOccupied marks the edge between e's endpoints occupied. Idempotent.
func (m *CompartmentedModel) MarkOccupied(e network.Edge) error {
	return m.setOccupied("MarkOccupied", e, true)
}

// MarkUnoccupied clears the edge's occupancy. Idempotent.
func (m *CompartmentedModel) MarkUnoccupied(e network.Edge) error {
	return m.setOccupied("MarkUnoccupied", e, false)
}

func (m *CompartmentedModel) setOccupied(op string, e network.Edge, occupied bool) error {
	if err := m.checkLive(op, e); err != nil {
		return err
	}
	stored, ok := m.index.net.Edge(e.From, e.To)
	if !ok {
		return modelError(op, e, ErrUnknownEdge)
	}
	m.index.setOccupied(stored, occupied)
	return nil
}

// IsOccupied reports whether the edge between e's endpoints is occupied.
func (m *CompartmentedModel) IsOccupied(e network.Edge) bool {
	return m.index.occupied[e.Canonical()]
}

// AddNode adds n to the network in compartment c.
func (m *CompartmentedModel) AddNode(n network.Node, c Compartment) error {
	if err := m.checkLive("AddNode", n); err != nil {
		return err
	}
	if !m.registry.has(c) {
		return modelError("AddNode", c, ErrUnknownCompartment)
	}
	if err := m.index.net.AddNode(n); err != nil {
		return modelError("AddNode", n, err)
	}
	m.index.addNode(n, c)
	return nil
}

// RemoveNode removes n from every locus, then removes it and its edges from the network.
func (m *CompartmentedModel) RemoveNode(n network.Node) error {
	if err := m.checkLive("RemoveNode", n); err != nil {
		return err
	}
	if _, ok := m.index.compartment[n]; !ok {
		return modelError("RemoveNode", n, ErrUnknownNode)
	}
	incident, err := m.index.net.IncidentEdges(n)
	if err != nil {
		return modelError("RemoveNode", n, err)
	}
	m.index.removeNode(n, incident)
	if err := m.index.net.RemoveNode(n); err != nil {
		return modelError("RemoveNode", n, err)
	}
	return nil
}

// AddEdge joins u and v. The edge enters the edge loci only if occupied is true.
func (m *CompartmentedModel) AddEdge(u, v network.Node, occupied bool) error {
	e := network.Edge{From: u, To: v}
	if err := m.checkLive("AddEdge", e); err != nil {
		return err
	}
	for _, n := range []network.Node{u, v} {
		if _, ok := m.index.compartment[n]; !ok {
			return modelError("AddEdge", e, fmt.Errorf("endpoint %d: %w", n, ErrUnknownNode))
		}
	}
	if err := m.index.net.AddEdge(u, v); err != nil {
		return modelError("AddEdge", e, err)
	}
	if occupied {
		m.index.setOccupied(e, true)
	}
	return nil
}

// RemoveEdge removes the edge between u and v from every locus and the network.
func (m *CompartmentedModel) RemoveEdge(u, v network.Node) error {
	e := network.Edge{From: u, To: v}
	if err := m.checkLive("RemoveEdge", e); err != nil {
		return err
	}
	if !m.index.net.HasEdge(u, v) {
		return modelError("RemoveEdge", e, ErrUnknownEdge)
	}
	m.index.removeEdge(e)
	if err := m.index.net.RemoveEdge(u, v); err != nil {
		return modelError("RemoveEdge", e, err)
	}
	return nil
}

// === Results ===

// Results reports the run's outcome: the size of every compartment, merged under the
// definition's own results. The model moves to finished; it can be read again but
// no longer mutated.
func (m *CompartmentedModel) Results() (Results, error) {
	if m.state < stateSetUp {
		return nil, modelError("Results", nil, ErrNotSetUp)
	}
	res := Results{}
	for _, c := range m.registry.order {
		res[string(c)] = m.index.populations[c].len()
	}
	res.Merge(m.def.Results(m))
	m.state = stateFinished
	return res, nil
}

// Skeletonise returns a new graph with every node of the network and only the
// occupied edges. The model is not modified.
func (m *CompartmentedModel) Skeletonise() (*network.Graph, error) {
	if m.state < stateSetUp {
		return nil, modelError("Skeletonise", nil, ErrNotSetUp)
	}
	net := m.index.net
	g := network.NewGraph()
	for _, n := range net.Nodes() {
		if err := g.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, e := range net.Edges() {
		if m.index.occupied[e.Canonical()] {
			if err := g.AddEdge(e.From, e.To); err != nil {
				return nil, err
			}
		}
	}
	return g, nil
}
