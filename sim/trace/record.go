// Package trace provides per-event trace recording for epidemic runs.
// This package has no dependencies on sim/ or its sub-packages; it stores pure data types.
package trace

// EventRecord captures one event firing.
type EventRecord struct {
	Time    float64
	Event   string
	Element string // node id or "(u,v)" edge; empty for posted events
	Posted  bool   // fired from the posted-event queue rather than a locus
}

// SnapshotRecord captures compartment sizes sampled by a monitor.
type SnapshotRecord struct {
	Time  float64
	Sizes map[string]int
}
