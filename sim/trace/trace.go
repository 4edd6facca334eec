package trace

import "github.com/gammazero/deque"

// TraceLevel controls the verbosity of event tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelEvents captures every event firing.
	TraceLevelEvents TraceLevel = "events"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelEvents: true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level    TraceLevel
	Capacity int // most recent event records kept; 0 keeps all
}

// SimulationTrace collects event records during a run. With a capacity, the oldest
// records are dropped first and counted in Dropped.
type SimulationTrace struct {
	Config    TraceConfig
	Snapshots []SnapshotRecord
	Dropped   int

	events deque.Deque[EventRecord]
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(config TraceConfig) *SimulationTrace {
	return &SimulationTrace{
		Config:    config,
		Snapshots: make([]SnapshotRecord, 0),
	}
}

// Enabled reports whether records are kept at all.
func (st *SimulationTrace) Enabled() bool {
	return st != nil && st.Config.Level == TraceLevelEvents
}

// RecordEvent appends an event record.
func (st *SimulationTrace) RecordEvent(record EventRecord) {
	if !st.Enabled() {
		return
	}
	st.events.PushBack(record)
	if st.Config.Capacity > 0 && st.events.Len() > st.Config.Capacity {
		st.events.PopFront()
		st.Dropped++
	}
}

// RecordSnapshot appends a compartment-size snapshot.
func (st *SimulationTrace) RecordSnapshot(record SnapshotRecord) {
	if !st.Enabled() {
		return
	}
	st.Snapshots = append(st.Snapshots, record)
}

// Events returns the kept event records, oldest first.
func (st *SimulationTrace) Events() []EventRecord {
	if st == nil {
		return nil
	}
	out := make([]EventRecord, st.events.Len())
	for i := range out {
		out[i] = st.events.At(i)
	}
	return out
}

// Len returns the number of kept event records.
func (st *SimulationTrace) Len() int {
	if st == nil {
		return 0
	}
	return st.events.Len()
}
