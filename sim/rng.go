package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	randv2 "math/rand/v2"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey, network and parameters
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemInitial is the RNG subsystem for initial compartment assignment.
	// Uses the master seed directly, so --seed alone fixes the starting state.
	SubsystemInitial = "initial"

	// SubsystemOccupancy is the RNG subsystem for the initial edge-occupancy rule.
	SubsystemOccupancy = "occupancy"

	// SubsystemDynamics is the RNG subsystem for event probabilities, rates and timings.
	SubsystemDynamics = "dynamics"

	// SubsystemSampling is the RNG subsystem for picking locus elements.
	SubsystemSampling = "sampling"

	// SubsystemNetwork is the RNG subsystem for network generation.
	SubsystemNetwork = "network"
)

// SubsystemRepetition returns the subsystem name used to derive the seed of repetition N.
func SubsystemRepetition(n int) string {
	return fmt.Sprintf("repetition_%d", n)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemInitial: uses masterSeed directly
//   - For all other subsystems: masterSeed XOR fnv1a64(subsystemName)
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
	bitstreams map[string]*Bitstream
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
		bitstreams: make(map[string]*Bitstream),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	rng := rand.New(rand.NewSource(p.DeriveSeed(name)))
	p.subsystems[name] = rng
	return rng
}

// BitsFor returns a Bitstream drawing from the named subsystem's RNG. Cached like ForSubsystem.
func (p *PartitionedRNG) BitsFor(name string) *Bitstream {
	if bs, ok := p.bitstreams[name]; ok {
		return bs
	}
	bs := NewBitstream(p.ForSubsystem(name))
	p.bitstreams[name] = bs
	return bs
}

// SourceFor returns a fresh math/rand/v2 source seeded from the named subsystem, for
// generators that take a rand.Source. It is not cached: each call starts the same stream.
func (p *PartitionedRNG) SourceFor(name string) randv2.Source {
	return randv2.NewPCG(uint64(p.DeriveSeed(name)), 0)
}

// DeriveSeed returns the seed the named subsystem's RNG is created from.
func (p *PartitionedRNG) DeriveSeed(name string) int64 {
	if name == SubsystemInitial {
		return int64(p.key)
	}
	return int64(p.key) ^ fnv1a64(name)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
