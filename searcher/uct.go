package searcher

import (
	"fmt"
	"math"

	"uct/utils"
)

// TreePolicy scores action nodes during selection.
type TreePolicy interface {
	Score(action *ActionNode, parentVisits int) float64
}

// UCB1 is the upper confidence bound Q + C*sqrt(2*ln(Np)/Na).
//
// Selection only scores visited actions. Scoring an unvisited action with
// C != 0 yields NaN.
type UCB1 struct {
	C float64
}

func (u UCB1) Score(action *ActionNode, parentVisits int) float64 {
	if u.C == 0 { // Pure exploitation, no division by the action's visits
		return action.Q
	}
	return action.Q + u.C*math.Sqrt(2*math.Log(float64(parentVisits))/float64(action.N))
}

// selectThenExpand descends from node until it expands a new leaf or reaches
// a terminal state, and returns that leaf. A state without actions counts as
// a terminal leaf.
func (m *MCTS) selectThenExpand(node *StateNode) *StateNode {
	for !node.state.IsTerminal() {
		if len(node.actions) == 0 { // Dead end, evaluate as is
			m.metrics.AddTerminalLeaf()
			return node
		}

		if untried := node.UntriedActions(); len(untried) > 0 {
			action := untried[m.rng.Intn(len(untried))]
			m.metrics.AddExpansion()
			return node.children[action].SampleState(false)
		}

		node = m.BestChild(node, m.treePolicy)
	}
	m.metrics.AddTerminalLeaf()
	return node
}

// BestChild samples an outcome of the action with the highest score under
// policy, ties broken at random.
func (m *MCTS) BestChild(node *StateNode, policy TreePolicy) *StateNode {
	return m.bestAction(node, policy).SampleState(false)
}

// bestAction panics on a NaN score: only tried actions may be scored.
func (m *MCTS) bestAction(node *StateNode, policy TreePolicy) *ActionNode {
	score := func(action *ActionNode) float64 {
		s := policy.Score(action, node.N)
		if math.IsNaN(s) {
			panic(fmt.Sprintf("NaN score for %v with %d visits under %d parent visits", action, action.N, node.N))
		}
		return s
	}
	return utils.RandMax(node.ActionNodes(), score, m.rng)
}
