// Package sim provides the compartmented-model core of episim: a network whose nodes
// carry compartment labels, whose edges may be occupied, and whose events fire on
// live collections (loci) of eligible nodes and edges.
//
// # Reading Guide
//
// Start with these files to understand the model:
//   - compartments.go: compartment declarations and the initial-occupancy rules
//   - locus.go: node and edge loci, and the index that keeps them exact
//   - model.go: CompartmentedModel, its build → set up → run → results lifecycle
//   - event.go: the event table and the Dynamics view event functions see
//
// # Architecture
//
// The sim package owns the model; everything that drives or observes it lives in
// sub-packages:
//   - sim/network/: the graph the model runs over, plus generators
//   - sim/dynamics/: synchronous (discrete-time) and stochastic (Gillespie) engines
//   - sim/models/: SIR, SIS and SEIR definitions
//   - sim/experiment/: YAML experiment files and repetition runs
//   - sim/trace/: per-event trace recording
//   - sim/metrics/: Prometheus counters and gauges for a run
//   - sim/store/: SQLite persistence of run results
//
// # Key Interfaces
//
//   - Definition: what a concrete model supplies (Build and Results)
//   - Locus: a live, uniformly sampleable set of nodes or edges
//   - Dynamics: the engine as seen from inside an event function
//
// Randomness is partitioned per subsystem by PartitionedRNG so that, for a given
// seed, initial assignment, occupancy, sampling and timing draw from independent
// streams.
package sim
