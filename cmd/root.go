package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/episim/episim/sim/dynamics"
	"github.com/episim/episim/sim/experiment"
	"github.com/episim/episim/sim/metrics"
	"github.com/episim/episim/sim/store"
	"github.com/episim/episim/sim/trace"
)

var (
	// CLI flags for the experiment
	experimentPath  string            // YAML experiment file; flags below fill in when absent
	modelName       string            // Reference model name
	dynamicsKind    string            // Dynamics engine
	networkKind     string            // Network generator
	nodes           int               // Number of nodes
	kMean           float64           // Mean degree of an Erdős–Rényi network
	ringK           int               // Neighbours on each side in a ring
	params          map[string]string // Model parameters as name=value
	seed            int64             // Seed of the first repetition
	repetitions     int               // Number of repetitions
	maxTime         float64           // Simulation time limit
	monitorInterval float64           // Interval between compartment samples; 0 disables

	// CLI flags for output
	logLevel      string // Log verbosity level
	traceLevel    string // Event trace level
	traceCapacity int    // Most recent events the trace keeps
	showMetrics   bool   // Print the metrics registry after the run
	dbPath        string // SQLite file runs are saved to; empty disables

	// CLI flags for listing stored runs
	filterModel      string // Only runs of this model
	filterExperiment string // Only runs of this experiment id
	listLimit        int    // Most recent runs to list
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "episim",
	Short: "Compartmented epidemic simulation over networks",
}

// runCmd executes an experiment built from a YAML file or the CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an epidemic experiment",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		spec, err := buildSpec(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}

		opts := experiment.Options{}
		if trace.TraceLevel(traceLevel) == trace.TraceLevelEvents {
			opts.Trace = trace.TraceConfig{Level: trace.TraceLevelEvents, Capacity: traceCapacity}
		}
		if showMetrics {
			opts.Metrics = metrics.DefaultRegistry()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		outcomes, err := experiment.Run(ctx, spec, opts)
		if err != nil {
			logrus.Fatalf("Experiment failed: %v", err)
		}
		printOutcomes(os.Stdout, outcomes)
		if opts.Metrics != nil {
			samples, err := opts.Metrics.Snapshot()
			if err != nil {
				logrus.Fatalf("Gather metrics: %v", err)
			}
			printMetrics(os.Stdout, samples)
		}

		if dbPath != "" {
			st, err := store.Open(dbPath)
			if err != nil {
				logrus.Fatalf("Open store: %v", err)
			}
			defer func() { _ = st.Close() }()
			id, err := saveOutcomes(ctx, st, spec, outcomes)
			if err != nil {
				logrus.Fatalf("Save runs: %v", err)
			}
			logrus.Infof("Saved %d runs to %s as experiment %s", len(outcomes), st.Path(), id)
		}

		logrus.Info("Simulation complete.")
	},
}

// resultsCmd lists runs saved by `run --db`
var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List stored runs",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		st, err := store.Open(dbPath)
		if err != nil {
			logrus.Fatalf("Open store: %v", err)
		}
		defer func() { _ = st.Close() }()

		runs, err := st.List(cmd.Context(), store.ListOptions{Model: filterModel, Experiment: filterExperiment, Limit: listLimit})
		if err != nil {
			logrus.Fatalf("List runs: %v", err)
		}
		printRuns(os.Stdout, runs)
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// buildSpec loads the experiment file if one was given and applies the flags the
// user set on top of it. Without a file every flag applies.
func buildSpec(cmd *cobra.Command) (*experiment.Spec, error) {
	spec := &experiment.Spec{}
	if experimentPath != "" {
		loaded, err := experiment.LoadSpec(experimentPath)
		if err != nil {
			return nil, err
		}
		spec = loaded
	}
	apply := func(name string) bool {
		return experimentPath == "" || cmd.Flags().Changed(name)
	}

	if apply("model") {
		spec.Model = modelName
	}
	if apply("dynamics") {
		spec.Dynamics = dynamicsKind
	}
	if apply("network") {
		spec.Network.Kind = networkKind
	}
	if apply("nodes") {
		spec.Network.Nodes = nodes
	}
	if apply("kmean") {
		spec.Network.KMean = kMean
	}
	if apply("k") {
		spec.Network.K = ringK
	}
	if apply("seed") {
		spec.Seed = seed
	}
	if apply("repetitions") {
		spec.Repetitions = repetitions
	}
	if apply("max-time") {
		spec.MaxTime = maxTime
	}
	if apply("monitor") {
		spec.MonitorInterval = monitorInterval
	}
	if len(params) > 0 {
		parsed, err := parseParams(params)
		if err != nil {
			return nil, err
		}
		if spec.Params == nil {
			spec.Params = make(map[string]float64, len(parsed))
		}
		for k, v := range parsed {
			spec.Params[k] = v
		}
	}
	return spec, spec.Validate()
}

// parseParams converts name=value flag pairs to numbers.
func parseParams(raw map[string]string) (map[string]float64, error) {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %q is not a number", k, v)
		}
		out[k] = f
	}
	return out, nil
}

// saveOutcomes stores every repetition under a fresh experiment id and returns it.
func saveOutcomes(ctx context.Context, st *store.Store, spec *experiment.Spec, outcomes []experiment.Outcome) (string, error) {
	id := uuid.NewString()
	for _, o := range outcomes {
		run := &store.Run{
			Experiment: id,
			Model:      spec.Model,
			Dynamics:   spec.Dynamics,
			Seed:       o.Seed,
			Params:     spec.Parameters(),
			Results:    o.Results,
		}
		if err := st.Save(ctx, run); err != nil {
			return id, fmt.Errorf("repetition %d: %w", o.Repetition, err)
		}
	}
	return id, nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database of stored runs (run: empty skips saving; results: defaults to episim.db)")

	runCmd.Flags().StringVar(&experimentPath, "experiment", "", "YAML experiment file; flags set explicitly override it")
	runCmd.Flags().StringVar(&modelName, "model", "sir", "Model (sir, sis, seir)")
	runCmd.Flags().StringVar(&dynamicsKind, "dynamics", dynamics.KindStochastic, "Dynamics (synchronous, stochastic)")
	runCmd.Flags().StringVar(&networkKind, "network", experiment.NetworkErdosRenyi, "Network (er, ring, complete)")
	runCmd.Flags().IntVar(&nodes, "nodes", 1000, "Number of nodes")
	runCmd.Flags().Float64Var(&kMean, "kmean", 5, "Mean degree of an er network")
	runCmd.Flags().IntVar(&ringK, "k", 2, "Neighbours on each side of a ring node")
	runCmd.Flags().StringToStringVar(&params, "param", nil, "Model parameter as name=value, e.g. --param pInfect=0.2 (repeatable)")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed of the first repetition")
	runCmd.Flags().IntVar(&repetitions, "repetitions", 1, "Number of repetitions")
	runCmd.Flags().Float64Var(&maxTime, "max-time", dynamics.DefaultMaxTime, "Simulation time limit")
	runCmd.Flags().Float64Var(&monitorInterval, "monitor", 0, "Interval between compartment samples (0 disables)")

	runCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Event trace level (none, events)")
	runCmd.Flags().IntVar(&traceCapacity, "trace-capacity", 0, "Most recent events the trace keeps (0 keeps all)")
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print the metrics registry after the run")

	resultsCmd.Flags().StringVar(&filterModel, "model", "", "Only runs of this model")
	resultsCmd.Flags().StringVar(&filterExperiment, "experiment", "", "Only runs of this experiment id")
	resultsCmd.Flags().IntVar(&listLimit, "limit", 20, "Most recent runs to list (0 lists all)")

	// Attach `run` and `results` as subcommands to `root`
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resultsCmd)
}
