package engine

import (
	"context"

	"uct/experiments/metrics"
	"uct/searcher"
)

const DefaultMaxSteps = 100

type Engine interface {
	// Run acts in the real world until a terminal state or the step limit is
	// reached
	Run(ctx context.Context) (Episode, error)
}

// Searcher picks the next action from a tree rooted at the current state.
// *searcher.MCTS satisfies it.
type Searcher interface {
	Search(ctx context.Context, root *searcher.StateNode) (searcher.Action, error)
	Metrics() metrics.Collector
}

// Step records one real-world decision.
type Step struct {
	Step   int
	State  string // State the action was chosen in
	Action searcher.Action
	Reward float64 // Reward received for taking Action
	Visits int     // Root visits when the action was chosen
	Value  float64 // Q of the chosen action
	Search metrics.SearchMetric
}

type Episode struct {
	Steps       []Step
	TotalReward float64
	Final       searcher.State
	Reached     bool // Final is terminal
}
