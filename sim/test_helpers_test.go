package sim

import (
	"math/rand"

	"github.com/stretchr/testify/require"

	"github.com/episim/episim/sim/network"
)

const (
	testS Compartment = "S"
	testI Compartment = "I"
	testR Compartment = "R"
)

// testingT is what the helpers need; both *testing.T and *rapid.T satisfy it.
type testingT interface {
	require.TestingT
	Helper()
}

// funcDefinition adapts closures to Definition for tests.
type funcDefinition struct {
	build   func(m *CompartmentedModel, p Parameters) error
	results func(m *CompartmentedModel) Results
}

func (d *funcDefinition) Build(m *CompartmentedModel, p Parameters) error {
	if d.build == nil {
		return nil
	}
	return d.build(m, p)
}

func (d *funcDefinition) Results(m *CompartmentedModel) Results {
	if d.results == nil {
		return Results{}
	}
	return d.results(m)
}

// sirLoci holds the handles a test SIR-shaped model declares. is and ii are only
// set by newMixedLociModel.
type sirLoci struct {
	s, i   *NodeLocus
	si     *EdgeLocus
	is, ii *EdgeLocus
}

// newSIRShapedModel builds a model with S, I, R compartments, node loci on S and I,
// and an unordered S-I edge locus. occupancy is the SetUp edge-occupation probability.
func newSIRShapedModel(t testingT, pS, pI, occupancy float64) (*CompartmentedModel, *sirLoci) {
	t.Helper()
	return buildSIRShaped(t, pS, pI, occupancy, false)
}

// newMixedLociModel is newSIRShapedModel plus an ordered I-S edge locus and an
// unordered I-I edge locus, so one model holds every kind of edge locus.
func newMixedLociModel(t testingT, pS, pI, occupancy float64) (*CompartmentedModel, *sirLoci) {
	t.Helper()
	return buildSIRShaped(t, pS, pI, occupancy, true)
}

func buildSIRShaped(t testingT, pS, pI, occupancy float64, mixed bool) (*CompartmentedModel, *sirLoci) {
	t.Helper()
	loci := &sirLoci{}
	def := &funcDefinition{
		build: func(m *CompartmentedModel, _ Parameters) error {
			if err := m.AddCompartment(testS, Probability(pS)); err != nil {
				return err
			}
			if err := m.AddCompartment(testI, Probability(pI)); err != nil {
				return err
			}
			if err := m.AddCompartment(testR, Probability(max(0, 1-pS-pI))); err != nil {
				return err
			}
			var err error
			if loci.s, err = m.TrackNodesInCompartment(testS); err != nil {
				return err
			}
			if loci.i, err = m.TrackNodesInCompartment(testI); err != nil {
				return err
			}
			if loci.si, err = m.TrackEdgesBetweenCompartments(testS, testI, Unordered); err != nil {
				return err
			}
			if mixed {
				if loci.is, err = m.TrackEdgesBetweenCompartments(testI, testS, Ordered); err != nil {
					return err
				}
				if loci.ii, err = m.TrackEdgesBetweenCompartments(testI, testI, Unordered); err != nil {
					return err
				}
			}
			if err := m.AddEdgeEvent(loci.si, 0.5, "infect", func(d Dynamics, _ float64, e network.Edge) error {
				return d.Model().SetCompartment(e.From, testI)
			}); err != nil {
				return err
			}
			if err := m.AddNodeEvent(loci.i, 0.1, "remove", func(d Dynamics, _ float64, n network.Node) error {
				return d.Model().SetCompartment(n, testR)
			}); err != nil {
				return err
			}
			return m.OccupyEdges(occupancy)
		},
	}
	m := NewCompartmentedModel(def)
	require.NoError(t, m.Build(nil))
	return m, loci
}

// assertIndexConsistent rescans the network and checks every population and locus
// against the definition of its membership.
func assertIndexConsistent(t testingT, m *CompartmentedModel) {
	t.Helper()
	net := m.Network()
	require.NotNil(t, net)

	want := make(map[Compartment]map[network.Node]bool)
	for _, c := range m.Compartments() {
		want[c] = make(map[network.Node]bool)
	}
	for _, n := range net.Nodes() {
		c, err := m.Compartment(n)
		require.NoError(t, err, "node %d has no compartment", n)
		want[c][n] = true
	}
	require.Len(t, m.index.compartment, net.Order(), "compartment map tracks removed nodes")
	for c, members := range want {
		got, err := m.NodesInCompartment(c)
		require.NoError(t, err)
		require.Len(t, got, len(members), "population of %s", c)
		for _, n := range got {
			require.True(t, members[n], "node %d listed in %s but is elsewhere", n, c)
		}
	}

	for _, l := range m.index.edgeLoci {
		expected := make(map[network.Edge]network.Edge)
		for _, e := range net.Edges() {
			if !m.IsOccupied(e) {
				continue
			}
			from, _ := m.Compartment(e.From)
			to, _ := m.Compartment(e.To)
			if oriented, ok := l.match(e, from, to); ok {
				expected[e.Canonical()] = oriented
			}
		}
		require.Equal(t, len(expected), l.Len(), "size of edge locus %s", l.Name())
		for _, e := range l.Edges() {
			oriented, ok := expected[e.Canonical()]
			require.True(t, ok, "edge %v in %s should not be", e, l.Name())
			require.Equal(t, oriented, e, "orientation of %v in %s", e, l.Name())
		}
	}
	for ce := range m.index.occupied {
		require.True(t, net.HasEdge(ce.From, ce.To), "occupancy kept for removed edge %v", ce)
	}
}

// stubDynamics satisfies Dynamics for firing events by hand.
type stubDynamics struct {
	m *CompartmentedModel
}

func (d *stubDynamics) Model() *CompartmentedModel { return d.m }
func (d *stubDynamics) Time() float64               { return 0 }
func (d *stubDynamics) RNG() *rand.Rand             { return nil }
func (d *stubDynamics) PostEvent(float64, string, PostedEventFunc) error {
	return nil
}
