package sim

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/episim/episim/sim/network"
)

func TestRegistry_AddCompartment_RejectsDuplicate(t *testing.T) {
	r := newCompartmentRegistry()
	require.NoError(t, r.add(testS, Probability(1)))
	err := r.add(testS, Probability(0))
	assert.ErrorIs(t, err, ErrDuplicateCompartment)
	assert.Equal(t, []Compartment{testS}, r.compartments())
}

func TestRegistry_AddCompartment_RejectsBadRules(t *testing.T) {
	tests := []struct {
		name string
		rule InitialOccupancy
	}{
		{"negative probability", Probability(-0.1)},
		{"probability above one", Probability(1.5)},
		{"negative count", Count(-3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newCompartmentRegistry()
			err := r.add(testS, tt.rule)
			assert.ErrorIs(t, err, ErrInvalidDistribution)
			assert.False(t, r.has(testS), "rejected compartment must not be registered")
		})
	}
}

func TestRegistry_Distribution(t *testing.T) {
	tests := []struct {
		name    string
		rules   map[Compartment]InitialOccupancy
		order   []Compartment
		want    map[Compartment]float64
		wantErr bool
	}{
		{
			name:  "sums to one",
			order: []Compartment{testS, testI, testR},
			rules: map[Compartment]InitialOccupancy{testS: Probability(0.7), testI: Probability(0.2), testR: Probability(0.1)},
			want:  map[Compartment]float64{testS: 0.7, testI: 0.2, testR: 0.1},
		},
		{
			name:    "sums below one",
			order:   []Compartment{testS, testI},
			rules:   map[Compartment]InitialOccupancy{testS: Probability(0.5), testI: Probability(0.3)},
			wantErr: true,
		},
		{
			name:  "counts are excluded",
			order: []Compartment{testS, testI},
			rules: map[Compartment]InitialOccupancy{testS: Probability(1), testI: Count(5)},
			want:  map[Compartment]float64{testS: 1},
		},
		{
			name:  "only counts",
			order: []Compartment{testS, testI},
			rules: map[Compartment]InitialOccupancy{testS: Count(5), testI: Count(5)},
			want:  map[Compartment]float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newCompartmentRegistry()
			for _, c := range tt.order {
				require.NoError(t, r.add(c, tt.rules[c]))
			}
			got, err := r.distribution()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDistribution)
				return
			}
			require.NoError(t, err)
			assert.InDeltaMapValues(t, tt.want, got, 1e-12)
		})
	}
}

func TestRegistry_Assign_ProbabilitiesWithinTolerance(t *testing.T) {
	// BDD: S=0.9, I=0.1 over 1000 nodes lands near 900/100
	r := newCompartmentRegistry()
	require.NoError(t, r.add(testS, Probability(0.9)))
	require.NoError(t, r.add(testI, Probability(0.1)))

	nodes := network.NewGraphWithNodes(1000).Nodes()
	assignment, err := r.assign(nodes, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	counts := map[Compartment]int{}
	for _, c := range assignment {
		counts[c]++
	}
	assert.Len(t, assignment, 1000)
	assert.InDelta(t, 900, counts[testS], 50)
	assert.InDelta(t, 100, counts[testI], 50)
	assert.Equal(t, 1000, counts[testS]+counts[testI])
}

func TestRegistry_Assign_DeterministicForSeed(t *testing.T) {
	r := newCompartmentRegistry()
	require.NoError(t, r.add(testS, Probability(0.6)))
	require.NoError(t, r.add(testI, Probability(0.4)))
	require.NoError(t, r.add(testR, Count(10)))
	nodes := network.NewGraphWithNodes(200).Nodes()

	a, err := r.assign(nodes, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	b, err := r.assign(nodes, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRegistry_Assign_FixedCountsAreExact(t *testing.T) {
	r := newCompartmentRegistry()
	require.NoError(t, r.add(testS, Probability(1)))
	require.NoError(t, r.add(testI, Count(3)))
	require.NoError(t, r.add(testR, Count(2)))

	nodes := network.NewGraphWithNodes(50).Nodes()
	assignment, err := r.assign(nodes, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	counts := map[Compartment]int{}
	for _, c := range assignment {
		counts[c]++
	}
	assert.Equal(t, map[Compartment]int{testS: 45, testI: 3, testR: 2}, counts)
}

func TestRegistry_Assign_Errors(t *testing.T) {
	nodes := network.NewGraphWithNodes(4).Nodes()

	over := newCompartmentRegistry()
	require.NoError(t, over.add(testS, Count(3)))
	require.NoError(t, over.add(testI, Count(2)))
	_, err := over.assign(nodes, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, ErrInvalidDistribution), "counts above node total: %v", err)

	under := newCompartmentRegistry()
	require.NoError(t, under.add(testS, Count(1)))
	_, err = under.assign(nodes, rand.New(rand.NewSource(1)))
	assert.True(t, errors.Is(err, ErrInvalidDistribution), "unassignable leftovers: %v", err)
}

func TestModel_ChangeInitialCompartment_MovesBetweenLoci(t *testing.T) {
	m, loci := newSIRShapedModel(t, 0.9, 0.1, 0)
	g := network.NewGraphWithNodes(1000)
	require.NoError(t, m.SetUp(g, NewPartitionedRNG(NewSimulationKey(42))))

	assert.InDelta(t, 900, loci.s.Len(), 50)
	assert.InDelta(t, 100, loci.i.Len(), 50)

	susceptible := loci.s.Nodes()[0]
	sBefore, iBefore := loci.s.Len(), loci.i.Len()

	require.NoError(t, m.ChangeInitialCompartment(susceptible, testI))

	assert.Equal(t, sBefore-1, loci.s.Len())
	assert.Equal(t, iBefore+1, loci.i.Len())
	assert.False(t, loci.s.Has(susceptible))
	assert.True(t, loci.i.Has(susceptible))
	assertIndexConsistent(t, m)
}

func TestModel_ChangeInitialCompartment_Errors(t *testing.T) {
	m, _ := newSIRShapedModel(t, 1, 0, 0)
	g := network.NewGraphWithNodes(3)

	err := m.ChangeInitialCompartment(0, testI)
	assert.ErrorIs(t, err, ErrNotSetUp)

	require.NoError(t, m.SetUp(g, NewPartitionedRNG(NewSimulationKey(1))))
	assert.ErrorIs(t, m.ChangeInitialCompartment(0, "X"), ErrUnknownCompartment)
	assert.ErrorIs(t, m.ChangeInitialCompartment(99, testI), ErrUnknownNode)

	require.NoError(t, m.Start())
	assert.ErrorIs(t, m.ChangeInitialCompartment(0, testI), ErrRunning)
}

func TestInitialOccupancy_String(t *testing.T) {
	assert.Equal(t, "p=0.25", Probability(0.25).String())
	assert.Equal(t, "count=4", Count(4).String())
	assert.True(t, Count(4).IsCount())
	assert.False(t, Probability(1).IsCount())
}
