package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traffic-rl/flowgrid/env"
	"github.com/traffic-rl/flowgrid/env/rollout"
	"github.com/traffic-rl/flowgrid/env/trace"
	"github.com/traffic-rl/flowgrid/sim"
)

var (
	configPath string // experiment YAML
	logLevel   string // Log verbosity level
	seed       int64  // Overrides the experiment seed when set
	episodes   int    // Number of episodes to run
	policyName string // Baseline policy driving the RL vehicles
	rolloutDir string // Directory for compressed transition files
	indexPath  string // SQLite episode index
	traceLevel string // Overrides the experiment trace level when set
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "flowgrid",
	Short: "Multi-agent traffic control environment",
}

// runCmd runs baseline episodes using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run episodes of the environment with a baseline policy",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()
		x := loadExperiment(cmd)
		opts := runOptions{
			Episodes:   episodes,
			Policy:     policyName,
			RolloutDir: rolloutDir,
			IndexPath:  indexPath,
		}
		if err := runEpisodes(cmd.Context(), x, opts, os.Stdout); err != nil {
			logrus.Fatalf("Run failed: %v", err)
		}
		logrus.Info("Run complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// loadExperiment reads --config and applies the --seed and --trace overrides.
func loadExperiment(cmd *cobra.Command) *sim.Experiment {
	if configPath == "" {
		logrus.Fatalf("--config is required")
	}
	x, err := sim.LoadExperiment(configPath)
	if err != nil {
		logrus.Fatalf("%v", err)
	}
	if cmd.Flags().Changed("seed") {
		logrus.Infof("CLI --seed %d overrides experiment seed %d", seed, x.Seed)
		x.Seed = seed
	}
	if cmd.Flags().Changed("trace") {
		x.Trace.Level = trace.TraceLevel(traceLevel)
	}
	if err := x.Validate(); err != nil {
		logrus.Fatalf("Invalid experiment %s: %v", configPath, err)
	}
	return x
}

type runOptions struct {
	Episodes   int
	Policy     string
	RolloutDir string
	IndexPath  string
}

// runEpisodes drives x with the named policy and reports per-episode metrics
// to out.
func runEpisodes(ctx context.Context, x *sim.Experiment, opts runOptions, out io.Writer) error {
	if opts.Episodes < 1 {
		return fmt.Errorf("episodes must be >= 1, got %d", opts.Episodes)
	}
	if !ValidPolicies[opts.Policy] {
		return fmt.Errorf("unknown policy %q; valid: zero, random", opts.Policy)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tc := x.Trace
	if opts.IndexPath != "" && (tc.Level == "" || tc.Level == trace.TraceLevelNone) {
		// the index is built from the step trace
		tc.Level = trace.TraceLevelSteps
	}
	et := trace.NewEpisodeTrace(tc)
	e, s, err := x.Build(env.WithTrace(et))
	if err != nil {
		return err
	}

	var writer *rollout.Writer
	if opts.RolloutDir != "" {
		if err := os.MkdirAll(opts.RolloutDir, 0o755); err != nil {
			return fmt.Errorf("creating rollout dir: %w", err)
		}
		writer = rollout.NewWriter(opts.RolloutDir)
		defer writer.Close()
	}
	var index *rollout.Index
	if opts.IndexPath != "" {
		index, err = rollout.OpenIndex(opts.IndexPath)
		if err != nil {
			return err
		}
		defer index.Close()
	}

	policy := NewPolicy(opts.Policy, x.Seed, e.ActionSpace())
	roster := e.Population().Roster()

	for ep := 0; ep < opts.Episodes; ep++ {
		if _, err := e.Reset(); err != nil {
			return fmt.Errorf("episode %d: %w", ep, err)
		}
		if writer != nil {
			if err := writer.Begin(ep); err != nil {
				return err
			}
		}
		for {
			actions := policy.Act(roster)
			res, err := e.Step(actions)
			if err != nil {
				return fmt.Errorf("episode %d step %d: %w", ep, e.StepCount()+1, err)
			}
			if writer != nil {
				if err := writer.Write(rollout.Transition{
					Episode:      ep,
					Step:         e.StepCount(),
					Time:         s.Clock,
					Actions:      actions,
					Observations: res.Observations,
					Rewards:      res.Rewards,
					Dones:        res.Dones,
				}); err != nil {
					return err
				}
			}
			if res.Dones[env.DoneAll] {
				break
			}
		}

		summary := trace.Summarize(et)
		fmt.Fprintf(out, "Episode %d\n", ep)
		s.Metrics.Print(out)
		if summary.Steps > 0 {
			fmt.Fprintf(out, "Total Reward         : %.4f\n", summary.TotalReward)
			fmt.Fprintf(out, "Reinsertions         : %d (%d rejected)\n", summary.ReinsertionAttempts, summary.ReinsertionRejected)
		}
		if index != nil {
			path := ""
			if writer != nil {
				path = writer.PathFor(ep)
			}
			if err := index.Record(ctx, rollout.EpisodeFromSummary(ep, x.Seed, path, summary)); err != nil {
				return err
			}
		}
	}
	return nil
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the experiment YAML file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed overriding the experiment seed")
	rootCmd.PersistentFlags().StringVar(&traceLevel, "trace", "none", "Trace level overriding the experiment (none, steps, decisions)")

	runCmd.Flags().IntVar(&episodes, "episodes", 1, "Number of episodes to run")
	runCmd.Flags().StringVar(&policyName, "policy", "zero", "Baseline policy (zero, random)")
	runCmd.Flags().StringVar(&rolloutDir, "rollout-dir", "", "Directory for zstd-compressed transition files")
	runCmd.Flags().StringVar(&indexPath, "index", "", "SQLite file indexing finished episodes")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(spacesCmd)
}
