package sim

import (
	"fmt"

	"github.com/episim/episim/sim/network"
)

// elementSet is an indexed set: values live in a dense slice and a key→position map
// locates them, so insert, remove, lookup and uniform sampling are all O(1).
// Removal swaps the last element into the hole.
type elementSet[K comparable, V any] struct {
	keys   []K
	values []V
	index  map[K]int
}

func newElementSet[K comparable, V any]() *elementSet[K, V] {
	return &elementSet[K, V]{index: make(map[K]int)}
}

// put inserts or replaces the value stored under k. Returns true if k was new.
func (s *elementSet[K, V]) put(k K, v V) bool {
	if i, ok := s.index[k]; ok {
		s.values[i] = v
		return false
	}
	s.index[k] = len(s.keys)
	s.keys = append(s.keys, k)
	s.values = append(s.values, v)
	return true
}

func (s *elementSet[K, V]) remove(k K) bool {
	i, ok := s.index[k]
	if !ok {
		return false
	}
	last := len(s.keys) - 1
	if i != last {
		s.keys[i] = s.keys[last]
		s.values[i] = s.values[last]
		s.index[s.keys[i]] = i
	}
	var zeroK K
	var zeroV V
	s.keys[last] = zeroK
	s.values[last] = zeroV
	s.keys = s.keys[:last]
	s.values = s.values[:last]
	delete(s.index, k)
	return true
}

func (s *elementSet[K, V]) get(k K) (V, bool) {
	i, ok := s.index[k]
	if !ok {
		var zero V
		return zero, false
	}
	return s.values[i], true
}

func (s *elementSet[K, V]) contains(k K) bool {
	_, ok := s.index[k]
	return ok
}

func (s *elementSet[K, V]) len() int {
	return len(s.keys)
}

func (s *elementSet[K, V]) at(i int) V {
	return s.values[i]
}

func (s *elementSet[K, V]) snapshot() []V {
	out := make([]V, len(s.values))
	copy(out, s.values)
	return out
}

func (s *elementSet[K, V]) clear() {
	s.keys = nil
	s.values = nil
	s.index = make(map[K]int)
}

// EdgeDirection says how an edge locus matches an edge's endpoint compartments.
type EdgeDirection int

const (
	// Unordered loci match an edge whose endpoints are in c1 and c2 in either orientation.
	Unordered EdgeDirection = iota
	// Ordered loci match only when the edge's stored From endpoint is in c1 and To is in c2.
	Ordered
)

func (d EdgeDirection) String() string {
	if d == Ordered {
		return "ordered"
	}
	return "unordered"
}

// Locus is a live collection of the elements eligible for an event.
type Locus interface {
	// Name identifies the locus in traces and metrics.
	Name() string
	// Len returns the number of eligible elements.
	Len() int
	// Sample returns a uniformly chosen element. ok is false when the locus is empty.
	Sample(src Intner) (el Element, ok bool)
	// Elements returns a copy of the current members.
	Elements() []Element
	// Contains reports whether el is currently a member.
	Contains(el Element) bool
}

// NodeLocus holds the nodes currently in one compartment.
type NodeLocus struct {
	compartment Compartment
	set         *elementSet[network.Node, network.Node]
}

// Name implements Locus.
func (l *NodeLocus) Name() string { return string(l.compartment) }

// Compartment returns the compartment the locus tracks.
func (l *NodeLocus) Compartment() Compartment { return l.compartment }

// Len implements Locus.
func (l *NodeLocus) Len() int { return l.set.len() }

// Has reports whether n is in the locus.
func (l *NodeLocus) Has(n network.Node) bool { return l.set.contains(n) }

// Nodes returns a copy of the locus members.
func (l *NodeLocus) Nodes() []network.Node { return l.set.snapshot() }

// SampleNode returns a uniformly chosen member.
func (l *NodeLocus) SampleNode(src Intner) (network.Node, bool) {
	if l.set.len() == 0 {
		return 0, false
	}
	return l.set.at(src.Intn(l.set.len())), true
}

// Sample implements Locus.
func (l *NodeLocus) Sample(src Intner) (Element, bool) {
	n, ok := l.SampleNode(src)
	return NodeElement(n), ok
}

// Elements implements Locus.
func (l *NodeLocus) Elements() []Element {
	out := make([]Element, l.set.len())
	for i := range out {
		out[i] = NodeElement(l.set.at(i))
	}
	return out
}

// Contains implements Locus.
func (l *NodeLocus) Contains(el Element) bool {
	return !el.IsEdge && l.set.contains(el.Node)
}

// EdgeLocus holds the occupied edges whose endpoint compartments match (c1, c2).
// Members are keyed by canonical edge and stored oriented so that From is in c1.
type EdgeLocus struct {
	c1, c2    Compartment
	direction EdgeDirection
	set       *elementSet[network.Edge, network.Edge]
}

// Name implements Locus.
func (l *EdgeLocus) Name() string {
	if l.direction == Ordered {
		return fmt.Sprintf("%s->%s", l.c1, l.c2)
	}
	return fmt.Sprintf("%s-%s", l.c1, l.c2)
}

// Compartments returns the pair the locus tracks.
func (l *EdgeLocus) Compartments() (Compartment, Compartment) { return l.c1, l.c2 }

// Direction returns the locus's matching rule.
func (l *EdgeLocus) Direction() EdgeDirection { return l.direction }

// Len implements Locus.
func (l *EdgeLocus) Len() int { return l.set.len() }

// Has reports whether the edge between e's endpoints is in the locus.
func (l *EdgeLocus) Has(e network.Edge) bool { return l.set.contains(e.Canonical()) }

// Edges returns a copy of the locus members, oriented c1→c2.
func (l *EdgeLocus) Edges() []network.Edge { return l.set.snapshot() }

// Oriented returns the member edge between e's endpoints in its c1→c2 orientation.
func (l *EdgeLocus) Oriented(e network.Edge) (network.Edge, bool) {
	return l.set.get(e.Canonical())
}

// SampleEdge returns a uniformly chosen member.
func (l *EdgeLocus) SampleEdge(src Intner) (network.Edge, bool) {
	if l.set.len() == 0 {
		return network.Edge{}, false
	}
	return l.set.at(src.Intn(l.set.len())), true
}

// Sample implements Locus.
func (l *EdgeLocus) Sample(src Intner) (Element, bool) {
	e, ok := l.SampleEdge(src)
	return EdgeElement(e), ok
}

// Elements implements Locus.
func (l *EdgeLocus) Elements() []Element {
	out := make([]Element, l.set.len())
	for i := range out {
		out[i] = EdgeElement(l.set.at(i))
	}
	return out
}

// Contains implements Locus.
func (l *EdgeLocus) Contains(el Element) bool {
	return el.IsEdge && l.set.contains(el.Edge.Canonical())
}

// match decides whether an edge with stored orientation e belongs to the locus given
// its endpoint compartments, and returns the c1→c2 orientation to store.
func (l *EdgeLocus) match(e network.Edge, from, to Compartment) (network.Edge, bool) {
	if from == l.c1 && to == l.c2 {
		return e, true
	}
	if l.direction == Unordered && from == l.c2 && to == l.c1 {
		return e.Reversed(), true
	}
	return network.Edge{}, false
}

// Element is a locus member handed to event functions: a node or an edge.
type Element struct {
	Node   network.Node
	Edge   network.Edge
	IsEdge bool
}

// NodeElement wraps a node.
func NodeElement(n network.Node) Element { return Element{Node: n} }

// EdgeElement wraps an edge.
func EdgeElement(e network.Edge) Element { return Element{Edge: e, IsEdge: true} }

func (el Element) String() string {
	if el.IsEdge {
		return el.Edge.String()
	}
	return fmt.Sprintf("%d", el.Node)
}

type edgeLocusKey struct {
	c1, c2    Compartment
	direction EdgeDirection
}

// locusIndex is the single owner of node compartments, edge occupancy, and every locus.
// All updates go through setCompartment, setOccupied, and the add/remove helpers,
// which bring every affected locus up to date before returning.
type locusIndex struct {
	net          network.Network
	compartment  map[network.Node]Compartment
	occupied     map[network.Edge]bool // keyed by canonical edge
	populations  map[Compartment]*elementSet[network.Node, network.Node]
	nodeLoci     map[Compartment]*NodeLocus
	edgeLoci     []*EdgeLocus
	edgeLociByID map[edgeLocusKey]*EdgeLocus
}

func newLocusIndex() *locusIndex {
	return &locusIndex{
		compartment:  make(map[network.Node]Compartment),
		occupied:     make(map[network.Edge]bool),
		populations:  make(map[Compartment]*elementSet[network.Node, network.Node]),
		nodeLoci:     make(map[Compartment]*NodeLocus),
		edgeLociByID: make(map[edgeLocusKey]*EdgeLocus),
	}
}

func (x *locusIndex) declare(c Compartment) {
	if _, ok := x.populations[c]; !ok {
		x.populations[c] = newElementSet[network.Node, network.Node]()
	}
}

func (x *locusIndex) trackNodes(c Compartment) *NodeLocus {
	if l, ok := x.nodeLoci[c]; ok {
		return l
	}
	l := &NodeLocus{compartment: c, set: x.populations[c]}
	x.nodeLoci[c] = l
	return l
}

func (x *locusIndex) trackEdges(c1, c2 Compartment, d EdgeDirection) *EdgeLocus {
	key := edgeLocusKey{c1: c1, c2: c2, direction: d}
	if l, ok := x.edgeLociByID[key]; ok {
		return l
	}
	l := &EdgeLocus{c1: c1, c2: c2, direction: d, set: newElementSet[network.Edge, network.Edge]()}
	x.edgeLoci = append(x.edgeLoci, l)
	x.edgeLociByID[key] = l
	return l
}

// reset drops all state but keeps declared compartments and loci, ready to be seeded.
func (x *locusIndex) reset(net network.Network) {
	x.net = net
	x.compartment = make(map[network.Node]Compartment)
	x.occupied = make(map[network.Edge]bool)
	for _, p := range x.populations {
		p.clear()
	}
	for _, l := range x.edgeLoci {
		l.set.clear()
	}
}

// seed performs the single O(V+E) scan that fills every population and locus.
func (x *locusIndex) seed(assignment map[network.Node]Compartment, occupied map[network.Edge]bool) {
	for _, n := range x.net.Nodes() {
		c := assignment[n]
		x.compartment[n] = c
		x.populations[c].put(n, n)
	}
	for _, e := range x.net.Edges() {
		if occupied[e.Canonical()] {
			x.occupied[e.Canonical()] = true
			x.evaluate(e)
		}
	}
}

// evaluate brings every edge locus up to date for edge e (stored orientation).
func (x *locusIndex) evaluate(e network.Edge) {
	for _, l := range x.edgeLoci {
		x.evaluateIn(l, e)
	}
}

func (x *locusIndex) evaluateIn(l *EdgeLocus, e network.Edge) {
	key := e.Canonical()
	if !x.occupied[key] {
		l.set.remove(key)
		return
	}
	if oriented, ok := l.match(e, x.compartment[e.From], x.compartment[e.To]); ok {
		l.set.put(key, oriented)
	} else {
		l.set.remove(key)
	}
}

// setCompartment moves n between populations and re-evaluates its occupied edges.
func (x *locusIndex) setCompartment(n network.Node, c Compartment) error {
	old := x.compartment[n]
	if old == c {
		return nil
	}
	edges, err := x.net.IncidentEdges(n)
	if err != nil {
		return err
	}
	x.populations[old].remove(n)
	x.populations[c].put(n, n)
	x.compartment[n] = c
	for _, e := range edges {
		if x.occupied[e.Canonical()] {
			x.evaluate(e)
		}
	}
	return nil
}

func (x *locusIndex) setOccupied(e network.Edge, occupied bool) {
	key := e.Canonical()
	if x.occupied[key] == occupied {
		return
	}
	if occupied {
		x.occupied[key] = true
	} else {
		delete(x.occupied, key)
	}
	x.evaluate(e)
}

func (x *locusIndex) addNode(n network.Node, c Compartment) {
	x.compartment[n] = c
	x.populations[c].put(n, n)
}

// removeNode drops n and its incident edges from every locus. The caller removes
// the node from the network afterwards.
func (x *locusIndex) removeNode(n network.Node, incident []network.Edge) {
	for _, e := range incident {
		x.removeEdge(e)
	}
	x.populations[x.compartment[n]].remove(n)
	delete(x.compartment, n)
}

func (x *locusIndex) removeEdge(e network.Edge) {
	key := e.Canonical()
	delete(x.occupied, key)
	for _, l := range x.edgeLoci {
		l.set.remove(key)
	}
}
