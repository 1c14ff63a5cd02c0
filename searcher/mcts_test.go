package searcher

import (
	"context"
	"math"
	"testing"

	"uct/experiments/metrics"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

type nodeStats struct {
	N int
	Q float64
}

func treeStats(root Node) []nodeStats {
	return DepthFirst(root, func(node Node, acc []nodeStats) []nodeStats {
		return append(acc, nodeStats{N: node.Visits(), Q: node.Value()})
	})
}

func requireVisitInvariants(t *testing.T, root *StateNode) {
	t.Helper()
	actions, states := CollectNodes(root)

	for _, action := range actions {
		sum := 0
		for _, outcome := range action.Outcomes() {
			sum += outcome.N
		}
		require.Equal(t, action.N, sum, "Action visits should equal the visits of its outcomes")
	}

	for _, state := range states {
		if state.State().IsTerminal() {
			continue
		}
		sum := 0
		for _, action := range state.ActionNodes() {
			sum += action.N
		}
		require.Contains(t, []int{state.N, state.N - 1}, sum,
			"State visits should either stop at the state or continue into one action")
	}
}

func newCoinRoot(rng *rand.Rand) *StateNode {
	return NewRoot(coinState{rng: rng, limit: 4, stakes: []int{1, 2, 3}})
}

func TestSearch(t *testing.T) {
	strategies := []struct {
		name          string
		defaultPolicy DefaultPolicy
		backup        Backup
	}{
		{"immediate reward with bellman backup", ImmediateReward{}, Bellman{Gamma: 0.9}},
		{"immediate reward with running mean", ImmediateReward{}, MonteCarlo{}},
		{"k-step rollout with bellman backup", NewKStepRollout(3), Bellman{Gamma: 0.9}},
		{"terminal rollout with running mean", NewTerminalRollout(), MonteCarlo{}},
	}

	for _, s := range strategies {
		t.Run(s.name, func(t *testing.T) {
			for _, n := range []int{1, 10, 23, 100, 101} {
				rng := rand.New(rand.NewSource(7))
				root := newCoinRoot(rng)
				m := NewMCTS(
					WithIterations(n),
					WithRand(rng),
					WithDefaultPolicy(s.defaultPolicy),
					WithBackup(s.backup),
				)

				action, err := m.Search(context.Background(), root)

				require.NoError(t, err)
				require.Contains(t, root.Actions(), action, "Should recommend a root action")
				require.Equal(t, n, root.N, "Root should be visited once per simulation")
				requireVisitInvariants(t, root)
			}
		})
	}
}

func TestSearchNeverScoresNaN(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	root := newCoinRoot(rng)
	m := NewMCTS(WithIterations(500), WithRand(rng))

	_, err := m.Search(context.Background(), root)
	require.NoError(t, err)

	policy := UCB1{C: DefaultExploration}
	_, states := CollectNodes(root)
	for _, state := range states {
		for _, action := range state.ActionNodes() {
			if action.N == 0 {
				continue
			}
			require.False(t, math.IsNaN(policy.Score(action, state.N)),
				"Tried actions should always have a score")
		}
	}
}

func TestSearchIsDeterministic(t *testing.T) {
	run := func() (Action, []nodeStats) {
		rng := rand.New(rand.NewSource(42))
		root := newCoinRoot(rng)
		m := NewMCTS(WithIterations(300), WithRand(rng), WithDefaultPolicy(NewKStepRollout(2)))
		action, err := m.Search(context.Background(), root)
		require.NoError(t, err)
		return action, treeStats(root)
	}

	action1, stats1 := run()
	action2, stats2 := run()

	require.Equal(t, action1, action2, "Same seed should recommend the same action")
	require.Equal(t, stats1, stats2, "Same seed should build the same tree")
}

func TestSearchConvergesToDiscountedReturn(t *testing.T) {
	for _, gamma := range []float64{0.1, 0.5, 0.9} {
		root := NewRoot(chainState{})
		m := NewMCTS(WithIterations(400), WithSeed(1), WithBackup(Bellman{Gamma: gamma}))

		_, err := m.Search(context.Background(), root)

		require.NoError(t, err)
		require.InDelta(t, -1/(1-gamma), root.Q, 1e-3,
			"Constant step cost should converge to its discounted sum")
	}
}

func TestSearchCancellation(t *testing.T) {
	t.Run("stopping before the first simulation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		root := NewRoot(chainState{})
		m := NewMCTS(WithIterations(10), WithSeed(1))

		_, err := m.Search(ctx, root)

		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 0, root.N, "No simulation should have been applied")
	})

	t.Run("stopping between simulations", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		rng := rand.New(rand.NewSource(5))
		root := newCoinRoot(rng)
		m := NewMCTS(WithIterations(100), WithRand(rng), WithProgress(func(i int) {
			if i == 9 {
				cancel()
			}
		}))

		_, err := m.Search(ctx, root)

		require.ErrorIs(t, err, context.Canceled)
		require.Equal(t, 10, root.N, "Exactly the completed simulations should be recorded")
		requireVisitInvariants(t, root)
	})
}

func TestBestAction(t *testing.T) {
	t.Run("picking the highest value", func(t *testing.T) {
		m := NewMCTS(WithSeed(1))
		root := NewRoot(mockState{name: "root"})
		root.Child(mockAction{"a"}).Q = 2
		root.Child(mockAction{"b"}).Q = 1

		got, err := m.BestAction(root)

		require.NoError(t, err)
		require.Equal(t, mockAction{"a"}, got, "Should pick the action with the highest Q")
	})

	t.Run("breaking ties at random", func(t *testing.T) {
		m := NewMCTS(WithSeed(1))
		root := NewRoot(mockState{name: "root"})

		counts := map[Action]int{}
		for i := 0; i < 2000; i++ {
			got, err := m.BestAction(root)
			require.NoError(t, err)
			counts[got]++
		}

		require.InDelta(t, 1000, counts[mockAction{"a"}], 150, "Tied actions should be picked evenly")
		require.InDelta(t, 1000, counts[mockAction{"b"}], 150, "Tied actions should be picked evenly")
	})

	t.Run("failing without actions", func(t *testing.T) {
		m := NewMCTS(WithSeed(1))
		root := NewRoot(deadEndState{})

		_, err := m.BestAction(root)
		require.ErrorIs(t, err, ErrNoActions)

		_, err = m.Search(context.Background(), root)
		require.ErrorIs(t, err, ErrNoActions)
	})
}

func TestSearchMetrics(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	root := newCoinRoot(rng)
	collector := metrics.NewCollector()
	m := NewMCTS(WithIterations(50), WithRand(rng), WithMetrics(collector))

	_, err := m.Search(context.Background(), root)
	require.NoError(t, err)

	metric := collector.Complete()
	require.Equal(t, 50, metric.Iterations)
	require.Equal(t, 50, metric.Simulations, "Every simulation should be counted")
	require.Equal(t, 50, metric.Expansions+metric.TerminalLeaves, "Every simulation ends in an expansion or a terminal leaf")
	require.False(t, metric.IsTreeReused, "Tree reuse is reported by the caller")
}

// ledgeState has a single action leading to a state without actions.
type ledgeState struct {
	fallen bool
}

func (l ledgeState) Actions() []Action {
	if l.fallen {
		return nil
	}
	return []Action{mockAction{"jump"}}
}

func (l ledgeState) Perform(Action) State                       { return ledgeState{fallen: true} }
func (l ledgeState) RealWorldPerform(action Action) State       { return l.Perform(action) }
func (l ledgeState) IsTerminal() bool                           { return false }
func (l ledgeState) Reward(parent State, action Action) float64 { return -1 }

func (l ledgeState) Hash() StateHash {
	if l.fallen {
		return 1
	}
	return 0
}

func (l ledgeState) Equal(other State) bool {
	o, ok := other.(ledgeState)
	return ok && o == l
}

func TestSearchMetricsAtDeadEnds(t *testing.T) {
	collector := metrics.NewCollector()
	m := NewMCTS(WithIterations(10), WithSeed(1), WithMetrics(collector))

	_, err := m.Search(context.Background(), NewRoot(ledgeState{}))
	require.NoError(t, err)

	metric := collector.Complete()
	require.Equal(t, 10, metric.Simulations)
	require.Equal(t, 1, metric.Expansions, "Only the first simulation expands")
	require.Equal(t, 9, metric.TerminalLeaves, "Dead ends should count as terminal leaves")
}

func TestNewMCTS(t *testing.T) {
	t.Run("panicking without iterations", func(t *testing.T) {
		require.Panics(t, func() {
			NewMCTS(func(m *MCTS) { m.iterations = 0 })
		}, "Should panic without a search budget")
	})

	t.Run("ignoring invalid options", func(t *testing.T) {
		m := NewMCTS(WithIterations(-1), WithTreePolicy(nil), WithBackup(nil), WithDefaultPolicy(nil))

		require.Equal(t, DefaultIterations, m.iterations)
		require.Equal(t, UCB1{C: DefaultExploration}, m.treePolicy)
		require.Equal(t, Bellman{Gamma: DefaultGamma}, m.backup)
		require.Equal(t, ImmediateReward{}, m.defaultPolicy)
	})
}
