package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"uct/experiments"
	"uct/meta"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	flags      runFlags

	rootCmd = &cobra.Command{
		Use:           "uct",
		Short:         "UCT search with a grid world experiment harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the toy world experiment",
		Long: `Plays a number of toy world episodes, choosing every step with UCT,
and stores the setup, episodes and steps under the output directory.
Interrupting keeps what has been recorded so far.`,
		Args: cobra.NoArgs,
		RunE: runExperiment,
	}
)

// runFlags mirror the config fields that can be set on the command line.
type runFlags struct {
	iterations int
	runs       int
	steps      int
	gamma      float64
	c          float64
	intrinsic  bool
	seed       uint64
	parallel   int
	logLevel   string
	output     string
}

func init() {
	defaults := meta.Default()

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVarP(&flags.iterations, "mcsamples", "m", defaults.Search.Iterations, "Simulations per step")
	runCmd.Flags().IntVarP(&flags.runs, "runs", "r", defaults.Experiment.Runs, "Number of episodes")
	runCmd.Flags().IntVarP(&flags.steps, "steps", "s", defaults.Experiment.Steps, "Maximum steps per episode")
	runCmd.Flags().Float64VarP(&flags.gamma, "gamma", "g", defaults.Search.Gamma, "Discount factor of the Bellman backup")
	runCmd.Flags().Float64VarP(&flags.c, "uct-c", "c", defaults.Search.Exploration, "UCT exploration constant")
	runCmd.Flags().BoolVarP(&flags.intrinsic, "intrinsic", "i", defaults.World.Intrinsic, "Reward information gain")
	runCmd.Flags().Uint64Var(&flags.seed, "seed", defaults.Search.Seed, "Seed of the first run")
	runCmd.Flags().IntVar(&flags.parallel, "parallel", defaults.Experiment.Parallel, "Episodes run concurrently")
	runCmd.Flags().StringVarP(&flags.output, "output", "o", defaults.Experiment.OutputDir, "Output directory")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("uct failed")
	}
}

func runExperiment(cmd *cobra.Command, args []string) error {
	cfg, err := meta.Load(configPath)
	if err != nil {
		return err
	}
	applyFlags(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	if err := setupLogging(cfg.Log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress func(int)
	interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
	if cfg.Log.Progress && interactive {
		progress = func(int) { fmt.Fprint(os.Stderr, ".") }
	}

	result, err := experiments.Run(ctx, cfg, progress)
	if progress != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil && ctx.Err() == nil {
		return err
	}
	if err != nil {
		log.Warn().Err(err).Msg("experiment interrupted")
	}

	reached := 0
	for _, episode := range result.Episodes {
		if episode.Reached {
			reached++
		}
	}
	log.Info().Msgf("goal reached in %d of %d runs, results in %s", reached, len(result.Episodes), result.Dir)
	return nil
}

// applyFlags overrides cfg with the flags set explicitly on cmd.
func applyFlags(cmd *cobra.Command, cfg *meta.Config) {
	changed := cmd.Flags().Changed
	if changed("mcsamples") {
		cfg.Search.Iterations = flags.iterations
	}
	if changed("runs") {
		cfg.Experiment.Runs = flags.runs
	}
	if changed("steps") {
		cfg.Experiment.Steps = flags.steps
	}
	if changed("gamma") {
		cfg.Search.Gamma = flags.gamma
	}
	if changed("uct-c") {
		cfg.Search.Exploration = flags.c
	}
	if changed("intrinsic") {
		cfg.World.Intrinsic = flags.intrinsic
	}
	if changed("seed") {
		cfg.Search.Seed = flags.seed
	}
	if changed("parallel") {
		cfg.Experiment.Parallel = flags.parallel
	}
	if changed("output") {
		cfg.Experiment.OutputDir = flags.output
	}
	if changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
}

// setupLogging writes human readable logs to a terminal and JSON otherwise.
func setupLogging(cfg meta.LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
	return nil
}
