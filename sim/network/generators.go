package network

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/graph/graphs/gen"
	"gonum.org/v1/gonum/graph/simple"
)

// ErdosRenyi builds a G(n, p) random graph: every pair of the n nodes is joined
// independently with probability p. The result is a pure function of src's state.
func ErdosRenyi(n int, p float64, src rand.Source) (*Graph, error) {
	if n < 0 {
		return nil, fmt.Errorf("erdos-renyi: node count must be non-negative, got %d", n)
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("erdos-renyi: edge probability must be in [0, 1], got %f", p)
	}
	sg := simple.NewUndirectedGraph()
	if err := gen.Gnp(sg, n, p, src); err != nil {
		return nil, fmt.Errorf("erdos-renyi: %w", err)
	}

	// Gnp chooses its own node IDs; relabel them onto 0..n-1 unless they already fit
	ids := sortedIDs(sg.Nodes())
	label := func(id int64) Node { return Node(id) }
	if len(ids) > 0 && (ids[0] < 0 || int(ids[len(ids)-1]) >= n) {
		rank := make(map[int64]Node, len(ids))
		for i, id := range ids {
			rank[int64(id)] = Node(i)
		}
		label = func(id int64) Node { return rank[id] }
	}
	g := NewGraphWithNodes(n)
	edges := sg.Edges()
	for edges.Next() {
		e := edges.Edge()
		ce := Edge{From: label(e.From().ID()), To: label(e.To().ID())}.Canonical()
		if err := g.AddEdge(ce.From, ce.To); err != nil {
			return nil, fmt.Errorf("erdos-renyi: %w", err)
		}
	}
	return g, nil
}

// ErdosRenyiMeanDegree builds a G(n, p) graph with p chosen to give mean degree kmean.
func ErdosRenyiMeanDegree(n int, kmean float64, src rand.Source) (*Graph, error) {
	if n < 2 {
		return NewGraphWithNodes(n), nil
	}
	return ErdosRenyi(n, kmean/float64(n-1), src)
}

// Ring builds a regular ring lattice: each of the n nodes is joined to its k nearest
// neighbours on either side.
func Ring(n, k int) (*Graph, error) {
	if n < 0 || k < 0 {
		return nil, fmt.Errorf("ring: n and k must be non-negative, got n=%d k=%d", n, k)
	}
	if 2*k >= n && n > 0 {
		return nil, fmt.Errorf("ring: need 2k < n, got n=%d k=%d", n, k)
	}
	g := NewGraphWithNodes(n)
	for i := 0; i < n; i++ {
		for d := 1; d <= k; d++ {
			j := (i + d) % n
			if !g.HasEdge(Node(i), Node(j)) {
				_ = g.AddEdge(Node(i), Node(j))
			}
		}
	}
	return g, nil
}

// Complete builds the complete graph on n nodes.
func Complete(n int) *Graph {
	g := NewGraphWithNodes(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			_ = g.AddEdge(Node(i), Node(j))
		}
	}
	return g
}
