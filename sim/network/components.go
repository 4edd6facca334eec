package network

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/graph/topo"
)

// Components returns the connected components of g, largest first. Ties are broken by
// lowest member node, and each component's nodes are in ascending order.
func Components(g *Graph) [][]Node {
	components := make([][]Node, 0)
	for _, cc := range topo.ConnectedComponents(g.g) {
		component := make([]Node, len(cc))
		for i, n := range cc {
			component[i] = Node(n.ID())
		}
		slices.Sort(component)
		components = append(components, component)
	}

	slices.SortFunc(components, func(a, b []Node) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return cmp.Compare(a[0], b[0])
	})
	return components
}

// LargestComponentSize returns the size of the largest connected component, or 0 for
// an empty graph.
func LargestComponentSize(g *Graph) int {
	components := Components(g)
	if len(components) == 0 {
		return 0
	}
	return len(components[0])
}
