package network

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
)

// Graph is a simple undirected graph backed by gonum's simple.UndirectedGraph. gonum
// edges carry no orientation a model can rely on, so the orientation each edge was
// inserted with is kept alongside, keyed by canonical form. Iteration methods sort
// their results.
//
// Graph is NOT thread-safe.
type Graph struct {
	g      *simple.UndirectedGraph
	orient map[Edge]Edge
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{g: simple.NewUndirectedGraph(), orient: make(map[Edge]Edge)}
}

// NewGraphWithNodes creates a graph holding nodes 0..n-1 and no edges.
func NewGraphWithNodes(n int) *Graph {
	g := NewGraph()
	for i := 0; i < n; i++ {
		g.g.AddNode(simple.Node(i))
	}
	return g
}

// Order implements Network.
func (g *Graph) Order() int {
	return g.g.Nodes().Len()
}

// Size implements Network.
func (g *Graph) Size() int {
	return len(g.orient)
}

// Nodes implements Network.
func (g *Graph) Nodes() []Node {
	return sortedIDs(g.g.Nodes())
}

// Edges implements Network.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, len(g.orient))
	for _, e := range g.orient {
		edges = append(edges, e)
	}
	slices.SortFunc(edges, compareEdges)
	return edges
}

// HasNode implements Network.
func (g *Graph) HasNode(n Node) bool {
	return g.g.Node(int64(n)) != nil
}

// HasEdge implements Network.
func (g *Graph) HasEdge(u, v Node) bool {
	_, ok := g.Edge(u, v)
	return ok
}

// Edge implements Network.
func (g *Graph) Edge(u, v Node) (Edge, bool) {
	e, ok := g.orient[Edge{From: u, To: v}.Canonical()]
	return e, ok
}

// Neighbours implements Network.
func (g *Graph) Neighbours(n Node) ([]Node, error) {
	if !g.HasNode(n) {
		return nil, fmt.Errorf("neighbours of %d: %w", n, ErrNodeNotFound)
	}
	return sortedIDs(g.g.From(int64(n))), nil
}

// IncidentEdges implements Network.
func (g *Graph) IncidentEdges(n Node) ([]Edge, error) {
	nbrs, err := g.Neighbours(n)
	if err != nil {
		return nil, err
	}
	edges := make([]Edge, len(nbrs))
	for i, m := range nbrs {
		edges[i], _ = g.Edge(n, m)
	}
	return edges, nil
}

// AddNode implements Network.
func (g *Graph) AddNode(n Node) error {
	if g.HasNode(n) {
		return fmt.Errorf("add node %d: %w", n, ErrNodeExists)
	}
	g.g.AddNode(simple.Node(n))
	return nil
}

// RemoveNode implements Network.
func (g *Graph) RemoveNode(n Node) error {
	nbrs, err := g.Neighbours(n)
	if err != nil {
		return fmt.Errorf("remove node %d: %w", n, ErrNodeNotFound)
	}
	for _, m := range nbrs {
		delete(g.orient, Edge{From: n, To: m}.Canonical())
	}
	g.g.RemoveNode(int64(n))
	return nil
}

// AddEdge implements Network. Both endpoints must already exist.
func (g *Graph) AddEdge(u, v Node) error {
	if u == v {
		return fmt.Errorf("add edge (%d,%d): %w", u, v, ErrSelfLoop)
	}
	if !g.HasNode(u) {
		return fmt.Errorf("add edge (%d,%d): endpoint %d: %w", u, v, u, ErrNodeNotFound)
	}
	if !g.HasNode(v) {
		return fmt.Errorf("add edge (%d,%d): endpoint %d: %w", u, v, v, ErrNodeNotFound)
	}
	if g.HasEdge(u, v) {
		return fmt.Errorf("add edge (%d,%d): %w", u, v, ErrEdgeExists)
	}
	g.g.SetEdge(g.g.NewEdge(simple.Node(u), simple.Node(v)))
	e := Edge{From: u, To: v}
	g.orient[e.Canonical()] = e
	return nil
}

// RemoveEdge implements Network.
func (g *Graph) RemoveEdge(u, v Node) error {
	if !g.HasEdge(u, v) {
		return fmt.Errorf("remove edge (%d,%d): %w", u, v, ErrEdgeNotFound)
	}
	g.g.RemoveEdge(int64(u), int64(v))
	delete(g.orient, Edge{From: u, To: v}.Canonical())
	return nil
}

// sortedIDs drains a gonum node iterator into ascending Node IDs.
func sortedIDs(it graph.Nodes) []Node {
	out := make([]Node, 0, it.Len())
	for it.Next() {
		out = append(out, Node(it.Node().ID()))
	}
	slices.Sort(out)
	return out
}

// compareEdges orders edges by canonical form.
func compareEdges(a, b Edge) int {
	ca, cb := a.Canonical(), b.Canonical()
	if ca.From != cb.From {
		if ca.From < cb.From {
			return -1
		}
		return 1
	}
	if ca.To != cb.To {
		if ca.To < cb.To {
			return -1
		}
		return 1
	}
	return 0
}

var _ Network = (*Graph)(nil)
