package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/episim/episim/sim/dynamics"
	"github.com/episim/episim/sim/experiment"
	"github.com/episim/episim/sim/metrics"
	"github.com/episim/episim/sim/store"
	"github.com/episim/episim/sim/trace"
)

// printOutcome writes one repetition's results, scalar results first in key order,
// then the per-event firing counts.
func printOutcome(w io.Writer, o experiment.Outcome) {
	_, _ = fmt.Fprintf(w, "=== Repetition %d (seed %d) ===\n", o.Repetition, o.Seed)
	keys := make([]string, 0, len(o.Results))
	for k := range o.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := o.Results[k].(type) {
		case map[string]int, dynamics.Timeseries:
			continue
		case float64:
			_, _ = fmt.Fprintf(w, "%-16s: %.6g\n", k, v)
		default:
			_, _ = fmt.Fprintf(w, "%-16s: %v\n", k, v)
		}
	}
	if fired, ok := o.Results[dynamics.ResultFired].(map[string]int); ok && len(fired) > 0 {
		_, _ = fmt.Fprintln(w, "Fired:")
		names := make([]string, 0, len(fired))
		for n := range fired {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			_, _ = fmt.Fprintf(w, "  %-14s: %d\n", n, fired[n])
		}
	}
	if ts, ok := o.Results[dynamics.ResultTimeseries].(dynamics.Timeseries); ok {
		_, _ = fmt.Fprintf(w, "%-16s: %d samples\n", dynamics.ResultTimeseries, len(ts.Times))
	}
}

// printOutcomes writes every repetition, each followed by the summary of its own trace.
func printOutcomes(w io.Writer, outcomes []experiment.Outcome) {
	for _, o := range outcomes {
		printOutcome(w, o)
		if o.Trace != nil {
			printTraceSummary(w, trace.Summarize(o.Trace))
		}
	}
}

// printTraceSummary writes the summary of the event trace. Prints nothing for an
// empty trace.
func printTraceSummary(w io.Writer, s *trace.TraceSummary) {
	if s.TotalEvents == 0 && s.DroppedEvents == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "=== Trace Summary ===")
	_, _ = fmt.Fprintf(w, "Events          : %d (%d posted, %d dropped)\n", s.TotalEvents, s.PostedEvents, s.DroppedEvents)
	_, _ = fmt.Fprintf(w, "Time span       : %.6g .. %.6g\n", s.FirstTime, s.LastTime)
	_, _ = fmt.Fprintf(w, "Mean interval   : %.6g\n", s.MeanInterval)
	_, _ = fmt.Fprintf(w, "Unique elements : %d\n", s.UniqueElements)
}

// printMetrics writes every sample of the metrics registry.
func printMetrics(w io.Writer, samples []metrics.Sample) {
	if len(samples) == 0 {
		return
	}
	_, _ = fmt.Fprintln(w, "=== Metrics ===")
	for _, s := range samples {
		_, _ = fmt.Fprintln(w, s.String())
	}
}

// printRuns writes stored runs as a table.
func printRuns(w io.Writer, runs []*store.Run) {
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs stored.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tEXPERIMENT\tMODEL\tDYNAMICS\tSEED\tTIME\tEVENTS\tCREATED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%v\t%v\t%s\n",
			r.ID, r.Experiment, r.Model, r.Dynamics, r.Seed,
			r.Results[dynamics.ResultTime], r.Results[dynamics.ResultEvents],
			r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	_ = tw.Flush()
}
