package experiments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uct/engine"
	"uct/experiments/metrics"
	"uct/meta"
	"uct/searcher"
	"uct/toyworld"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"
)

// Result is what an experiment leaves behind.
type Result struct {
	Dir      string
	Episodes []metrics.EpisodeMetric
	Steps    []metrics.StepRecord
}

// Run plays cfg.Experiment.Runs toy world episodes and stores their records.
// Run i is seeded with cfg.Search.Seed+i so results do not depend on
// parallelism. An interrupt stops all runs; whatever was recorded is still
// written and the interrupt is returned.
func Run(ctx context.Context, cfg meta.Config, progress func(iteration int)) (Result, error) {
	runs := cfg.Experiment.Runs
	episodes := make([]*metrics.EpisodeMetric, runs)
	steps := make([][]metrics.StepRecord, runs)

	log.Info().Msgf("starting %s experiment with %d runs...", cfg.Experiment.Name, runs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Experiment.Parallel)
	for i := 0; i < runs; i++ {
		i := i // per-iteration copy; go directive is 1.21 (pre-loopvar semantics)
		g.Go(func() error {
			if err := gctx.Err(); err != nil { // Not started before the interrupt
				return err
			}
			episode, records, err := runEpisode(gctx, cfg, i, progress)
			episodes[i] = &episode
			steps[i] = records
			return err
		})
	}
	runErr := g.Wait()

	var result Result
	for i := range episodes {
		if episodes[i] == nil {
			continue
		}
		result.Episodes = append(result.Episodes, *episodes[i])
		result.Steps = append(result.Steps, steps[i]...)
	}

	log.Info().Msgf("completed %s experiment with %d of %d runs", cfg.Experiment.Name, len(result.Episodes), runs)

	dir, err := store(cfg, result)
	result.Dir = dir
	if err != nil {
		return result, errors.Join(runErr, err)
	}
	if runErr != nil {
		return result, fmt.Errorf("experiment interrupted: %w", runErr)
	}
	return result, nil
}

func store(cfg meta.Config, result Result) (string, error) {
	writer, err := metrics.NewWriter(cfg.Experiment.OutputDir, cfg.Experiment.Name)
	if err != nil {
		return "", fmt.Errorf("failed to create experiment writer: %w", err)
	}

	if err := writer.WriteSetup(cfg); err != nil {
		return writer.Dir(), fmt.Errorf("failed to store setup: %w", err)
	}
	log.Info().Msg("stored setup")

	if err := writer.WriteEpisodes(result.Episodes); err != nil {
		return writer.Dir(), fmt.Errorf("failed to store episodes: %w", err)
	}
	log.Info().Msg("stored episodes")

	if err := writer.WriteSteps(result.Steps); err != nil {
		return writer.Dir(), fmt.Errorf("failed to store steps: %w", err)
	}
	log.Info().Str("dir", writer.Dir()).Msg("stored steps")

	return writer.Dir(), nil
}

// runEpisode plays run with its own world, tree and random source.
func runEpisode(ctx context.Context, cfg meta.Config, run int, progress func(int)) (metrics.EpisodeMetric, []metrics.StepRecord, error) {
	seed := cfg.Search.Seed + uint64(run)
	rng := rand.New(rand.NewSource(seed))
	world, state := NewWorld(cfg.World, rng)

	log.Info().Msgf("starting run %d with goal %v and manual %v", run, world.Goal, world.Manual)

	collector := metrics.NewCollector()
	mcts := NewSearcher(cfg.Search, rng, collector, searcher.WithProgress(progress))
	e := engine.LocalEngine(mcts, state, cfg.Experiment.Steps)

	startTime := time.Now()
	episode, err := e.Run(ctx)
	endTime := time.Now()

	metric := metrics.EpisodeMetric{
		Run:         run,
		Seed:        seed,
		Goal:        world.Goal.String(),
		Manual:      world.Manual.String(),
		StartTime:   startTime,
		EndTime:     endTime,
		Duration:    endTime.Sub(startTime),
		TotalSteps:  len(episode.Steps),
		TotalReward: episode.TotalReward,
		Reached:     episode.Reached,
	}

	records := make([]metrics.StepRecord, len(episode.Steps))
	for i, step := range episode.Steps {
		records[i] = metrics.StepRecord{
			Run:    run,
			State:  step.State,
			Action: fmt.Sprint(step.Action),
			Reward: step.Reward,
			Visits: step.Visits,
			Value:  step.Value,
			StepMetric: metrics.StepMetric{
				Step:         step.Step,
				SearchMetric: step.Search,
			},
		}
	}

	if err != nil {
		log.Warn().Err(err).Msgf("run %d interrupted after %d steps", run, len(episode.Steps))
		return metric, records, err
	}
	log.Info().Msgf("completed run %d in %d steps with reward %.2f (goal reached: %t)",
		run, metric.TotalSteps, metric.TotalReward, metric.Reached)
	return metric, records, nil
}

// NewWorld draws the goal and the manual around the configured start, as
// seen from rng, and returns the world with the agent's starting state.
func NewWorld(cfg meta.WorldConfig, rng *rand.Rand) (*toyworld.World, *toyworld.State) {
	goal := toyworld.DrawGoal(rng, cfg.Start, cfg.GoalDistance)
	manual := toyworld.DrawGoal(rng, cfg.Start, cfg.ManualDistance)
	world := toyworld.NewWorld(cfg.Width, cfg.Height, goal, manual, cfg.Noise, cfg.Intrinsic, rng)

	belief := toyworld.UniformBelief(cfg.PriorCount)
	if cfg.TrueBelief {
		belief = world.Transitions.Scaled(cfg.PriorCount)
	}
	return world, world.NewState(cfg.Start, belief)
}

// NewSearcher builds the search configured by cfg on top of rng. Extra
// options are applied last.
func NewSearcher(cfg meta.SearchConfig, rng *rand.Rand, collector metrics.Collector, options ...searcher.Option) *searcher.MCTS {
	var evaluation searcher.DefaultPolicy
	switch cfg.Evaluation {
	case meta.EvaluationImmediate:
		evaluation = searcher.ImmediateReward{}
	case meta.EvaluationRollout:
		if cfg.Cutoff == 0 {
			evaluation = searcher.NewTerminalRollout()
		} else {
			evaluation = searcher.NewKStepRollout(cfg.Cutoff)
		}
	default:
		panic(fmt.Sprintf("unknown evaluation %q", cfg.Evaluation))
	}

	var backup searcher.Backup
	switch cfg.Backup {
	case meta.BackupBellman:
		backup = searcher.Bellman{Gamma: cfg.Gamma}
	case meta.BackupMonteCarlo:
		backup = searcher.MonteCarlo{}
	default:
		panic(fmt.Sprintf("unknown backup %q", cfg.Backup))
	}

	options = append([]searcher.Option{
		searcher.WithIterations(cfg.Iterations),
		searcher.WithTreePolicy(searcher.UCB1{C: cfg.Exploration}),
		searcher.WithDefaultPolicy(evaluation),
		searcher.WithBackup(backup),
		searcher.WithRand(rng),
		searcher.WithMetrics(collector),
	}, options...)
	return searcher.NewMCTS(options...)
}
