package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalEvents       int
	PostedEvents      int
	DroppedEvents     int
	FirstTime         float64
	LastTime          float64
	MeanInterval      float64 // mean time between consecutive kept events
	UniqueElements    int
	EventDistribution map[string]int // event name → firings
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		EventDistribution: make(map[string]int),
	}
	if st == nil {
		return summary
	}

	events := st.Events()
	summary.TotalEvents = len(events)
	summary.DroppedEvents = st.Dropped
	elements := make(map[string]bool)
	for _, e := range events {
		summary.EventDistribution[e.Event]++
		if e.Posted {
			summary.PostedEvents++
		} else {
			elements[e.Element] = true
		}
	}
	summary.UniqueElements = len(elements)

	if len(events) > 0 {
		summary.FirstTime = events[0].Time
		summary.LastTime = events[len(events)-1].Time
	}
	if len(events) > 1 {
		summary.MeanInterval = (summary.LastTime - summary.FirstTime) / float64(len(events)-1)
	}

	return summary
}
