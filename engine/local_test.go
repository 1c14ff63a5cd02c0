package engine

import (
	"context"
	"testing"

	"uct/experiments/metrics"
	"uct/searcher"
	"uct/toyworld"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func newTestEngine(t *testing.T, start, goal toyworld.Position, iterations, maxSteps int) (*Local, *searcher.MCTS) {
	t.Helper()
	rng := rand.New(rand.NewSource(3))
	world := toyworld.NewWorld(20, 20, goal, toyworld.Position{X: 19, Y: 0}, 0, false, rng)
	state := world.NewState(start, world.Transitions.Scaled(100))
	mcts := searcher.NewMCTS(
		searcher.WithIterations(iterations),
		searcher.WithTreePolicy(searcher.UCB1{C: 10}),
		searcher.WithRand(rng),
		searcher.WithMetrics(metrics.NewCollector()),
	)
	return LocalEngine(mcts, state, maxSteps), mcts
}

// cancellingSearcher cancels its context once it has completed n searches.
type cancellingSearcher struct {
	*searcher.MCTS
	n      int
	cancel context.CancelFunc
}

func (c *cancellingSearcher) Search(ctx context.Context, root *searcher.StateNode) (searcher.Action, error) {
	action, err := c.MCTS.Search(ctx, root)
	c.n--
	if c.n == 0 {
		c.cancel()
	}
	return action, err
}

type deadEnd struct{}

func (deadEnd) Actions() []searcher.Action                        { return nil }
func (d deadEnd) Perform(searcher.Action) searcher.State          { return d }
func (d deadEnd) RealWorldPerform(searcher.Action) searcher.State { return d }
func (deadEnd) IsTerminal() bool                                  { return false }
func (deadEnd) Reward(searcher.State, searcher.Action) float64    { return 0 }
func (deadEnd) Hash() searcher.StateHash                          { return 0 }

func (deadEnd) Equal(other searcher.State) bool {
	_, ok := other.(deadEnd)
	return ok
}

func TestRun(t *testing.T) {
	t.Run("reaching the goal", func(t *testing.T) {
		engine, _ := newTestEngine(t, toyworld.Position{X: 5, Y: 5}, toyworld.Position{X: 5, Y: 7}, 200, 10)

		episode, err := engine.Run(context.Background())

		require.NoError(t, err)
		require.True(t, episode.Reached, "Goal two cells away should be reached")
		require.Len(t, episode.Steps, 2)
		require.Equal(t, toyworld.Up, episode.Steps[0].Action)
		require.Equal(t, toyworld.Up, episode.Steps[1].Action)
		require.Equal(t, toyworld.StepCost, episode.Steps[0].Reward)
		require.Equal(t, toyworld.GoalReward, episode.Steps[1].Reward)
		require.Equal(t, toyworld.StepCost+toyworld.GoalReward, episode.TotalReward)
		require.Equal(t, "(5, 5)", episode.Steps[0].State)
		require.Equal(t, "(5, 7)", episode.Final.(*toyworld.State).String())
	})

	t.Run("reusing the tree", func(t *testing.T) {
		engine, _ := newTestEngine(t, toyworld.Position{X: 5, Y: 5}, toyworld.Position{X: 5, Y: 7}, 200, 10)

		episode, err := engine.Run(context.Background())

		require.NoError(t, err)
		require.False(t, episode.Steps[0].Search.IsTreeReused, "First search starts from a fresh tree")
		require.True(t, episode.Steps[1].Search.IsTreeReused, "Searched outcome should be reused")
		require.Nil(t, engine.Root().Parent(), "Committed state should be detached")
		require.Equal(t, 200, episode.Steps[0].Search.Simulations)
		require.Equal(t, 200, episode.Steps[0].Visits)
		require.Greater(t, episode.Steps[1].Visits, 200, "Reused root keeps its earlier visits")
	})

	t.Run("stopping at the step limit", func(t *testing.T) {
		engine, _ := newTestEngine(t, toyworld.Position{X: 0, Y: 0}, toyworld.Position{X: 19, Y: 19}, 20, 3)

		episode, err := engine.Run(context.Background())

		require.NoError(t, err)
		require.False(t, episode.Reached)
		require.Len(t, episode.Steps, 3)
		for i, step := range episode.Steps {
			require.Equal(t, i, step.Step)
		}
	})

	t.Run("starting at the goal", func(t *testing.T) {
		goal := toyworld.Position{X: 5, Y: 5}
		engine, _ := newTestEngine(t, goal, goal, 20, 10)

		episode, err := engine.Run(context.Background())

		require.NoError(t, err)
		require.True(t, episode.Reached)
		require.Empty(t, episode.Steps)
	})

	t.Run("stopping at a dead end", func(t *testing.T) {
		engine := LocalEngine(searcher.NewMCTS(searcher.WithSeed(1)), deadEnd{}, 10)

		episode, err := engine.Run(context.Background())

		require.NoError(t, err)
		require.False(t, episode.Reached)
		require.Empty(t, episode.Steps)
	})

	t.Run("returning the steps taken before an interrupt", func(t *testing.T) {
		engine, mcts := newTestEngine(t, toyworld.Position{X: 0, Y: 0}, toyworld.Position{X: 19, Y: 19}, 20, 10)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		engine.searcher = &cancellingSearcher{MCTS: mcts, n: 2, cancel: cancel}

		episode, err := engine.Run(ctx)

		require.ErrorIs(t, err, context.Canceled)
		require.Len(t, episode.Steps, 2, "Steps before the interrupt should be kept")
		require.False(t, episode.Reached)
		require.NotNil(t, episode.Final)
	})
}

func TestLocalEngine(t *testing.T) {
	t.Run("defaulting the step limit", func(t *testing.T) {
		engine := LocalEngine(searcher.NewMCTS(), deadEnd{}, 0)

		require.Equal(t, DefaultMaxSteps, engine.maxSteps)
	})

	t.Run("requiring a searcher", func(t *testing.T) {
		require.Panics(t, func() { LocalEngine(nil, deadEnd{}, 1) })
	})
}
