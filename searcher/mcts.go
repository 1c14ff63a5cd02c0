package searcher

import (
	"context"
	"fmt"
	"math"
	"time"

	"uct/experiments/metrics"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/rand"
)

const DefaultIterations = 1500

var (
	DefaultExploration = math.Sqrt2
	DefaultGamma       = 0.6
)

type Option func(m *MCTS)

// MCTS runs upper confidence bound tree search with pluggable tree policy,
// default policy and backup. It is not safe for concurrent use.
type MCTS struct {
	iterations    int
	treePolicy    TreePolicy
	defaultPolicy DefaultPolicy
	backup        Backup
	rng           *rand.Rand
	progress      func(iteration int)
	metrics       metrics.Collector
}

func WithIterations(iterations int) Option {
	return func(m *MCTS) {
		if iterations > 0 {
			m.iterations = iterations
		}
	}
}

func WithTreePolicy(policy TreePolicy) Option {
	return func(m *MCTS) {
		if policy != nil {
			m.treePolicy = policy
		}
	}
}

func WithDefaultPolicy(policy DefaultPolicy) Option {
	return func(m *MCTS) {
		if policy != nil {
			m.defaultPolicy = policy
		}
	}
}

func WithBackup(backup Backup) Option {
	return func(m *MCTS) {
		if backup != nil {
			m.backup = backup
		}
	}
}

// WithRand shares a random source with the caller, typically the one the
// environment samples its transitions from.
func WithRand(rng *rand.Rand) Option {
	return func(m *MCTS) {
		if rng != nil {
			m.rng = rng
		}
	}
}

func WithSeed(seed uint64) Option {
	return func(m *MCTS) {
		m.rng = rand.New(rand.NewSource(seed))
	}
}

// WithProgress registers a callback invoked after every completed simulation.
func WithProgress(progress func(iteration int)) Option {
	return func(m *MCTS) {
		m.progress = progress
	}
}

func WithMetrics(collector metrics.Collector) Option {
	return func(m *MCTS) {
		if collector != nil {
			m.metrics = collector
		}
	}
}

func NewMCTS(options ...Option) *MCTS {
	m := &MCTS{ // Default values
		iterations:    DefaultIterations,
		treePolicy:    UCB1{C: DefaultExploration},
		defaultPolicy: ImmediateReward{},
		backup:        Bellman{Gamma: DefaultGamma},
		progress:      func(int) {},
		metrics:       metrics.NewDummyCollector(),
	}
	for _, option := range options {
		option(m)
	}
	if m.iterations <= 0 {
		panic("Must specify search iterations")
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	}
	if m.progress == nil {
		m.progress = func(int) {}
	}
	return m
}

func (m *MCTS) Metrics() metrics.Collector {
	return m.metrics
}

// Search grows the tree under root and returns the root action with the
// highest value. Cancellation is honoured between simulations only, so the
// tree always reflects whole simulations.
func (m *MCTS) Search(ctx context.Context, root *StateNode) (Action, error) {
	if len(root.actions) == 0 {
		return nil, ErrNoActions
	}

	m.metrics.Start(m.iterations)
	for i := 0; i < m.iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search interrupted after %d of %d simulations: %w", i, m.iterations, err)
		}
		m.simulate(root)
		m.metrics.AddSimulation()
		m.progress(i)
	}

	if e := log.Debug(); e.Enabled() {
		values := make(map[string]float64, len(root.actions))
		for _, action := range root.ActionNodes() {
			values[fmt.Sprint(action.action)] = action.Q
		}
		e.Interface("values", values).Int("visits", root.N).Msg("search complete")
	}

	return m.BestAction(root)
}

func (m *MCTS) simulate(root *StateNode) {
	leaf := m.selectThenExpand(root)
	// From here on leaf.Reward holds the evaluation, which backups consume
	// whichever default policy produced it.
	leaf.Reward = m.defaultPolicy.Evaluate(leaf, m.rng)
	m.backup.Backup(leaf)
}

// BestAction returns the action of the root child with the highest Q, ties
// broken at random.
func (m *MCTS) BestAction(root *StateNode) (Action, error) {
	if len(root.actions) == 0 {
		return nil, ErrNoActions
	}
	return m.bestAction(root, UCB1{C: 0}).action, nil
}
