// Package network provides the graph collaborator that compartmented models run over.
// It has no dependencies on sim/; models mutate it only through the Network interface.
package network

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")
	ErrNodeExists   = errors.New("node already exists")
	ErrEdgeExists   = errors.New("edge already exists")
	ErrSelfLoop     = errors.New("self-loops are not allowed")
)

// Node identifies a vertex of the network.
type Node int

// Edge is an endpoint pair. The network is undirected, so an edge's identity is the
// unordered pair; From/To preserve the orientation the edge was inserted with.
type Edge struct {
	From Node
	To   Node
}

// Canonical returns the edge with its lower endpoint first. Two edges are the same
// network edge iff their canonical forms are equal.
func (e Edge) Canonical() Edge {
	if e.To < e.From {
		return Edge{From: e.To, To: e.From}
	}
	return e
}

// Reversed returns the edge with its endpoints swapped.
func (e Edge) Reversed() Edge {
	return Edge{From: e.To, To: e.From}
}

// Other returns the endpoint opposite n.
func (e Edge) Other(n Node) Node {
	if e.From == n {
		return e.To
	}
	return e.From
}

func (e Edge) String() string {
	return fmt.Sprintf("(%d,%d)", e.From, e.To)
}

// Network is the contract compartmented models need from a graph: enumeration,
// adjacency lookup, and add/remove primitives. Enumeration order must be deterministic
// so seeded runs reproduce exactly.
type Network interface {
	// Order returns the number of nodes.
	Order() int
	// Size returns the number of edges.
	Size() int
	// Nodes returns all nodes in ascending order.
	Nodes() []Node
	// Edges returns all edges, in their stored orientation, ordered by canonical form.
	Edges() []Edge
	HasNode(n Node) bool
	HasEdge(u, v Node) bool
	// Edge returns the stored orientation of the edge between u and v.
	Edge(u, v Node) (Edge, bool)
	// Neighbours returns the neighbours of n in ascending order.
	Neighbours(n Node) ([]Node, error)
	// IncidentEdges returns the edges touching n, ordered by the opposite endpoint.
	IncidentEdges(n Node) ([]Edge, error)
	AddNode(n Node) error
	// RemoveNode removes n and every edge incident on it.
	RemoveNode(n Node) error
	AddEdge(u, v Node) error
	RemoveEdge(u, v Node) error
}
