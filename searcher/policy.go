package searcher

import (
	"math"

	"golang.org/x/exp/rand"
)

// MaxCutoff lets a rollout run until it reaches a terminal state.
const MaxCutoff = math.MaxInt

// DefaultPolicy estimates the value of a freshly expanded or terminal leaf.
type DefaultPolicy interface {
	Evaluate(leaf *StateNode, rng *rand.Rand) float64
}

// ImmediateReward values a leaf by the reward of arriving at it.
type ImmediateReward struct{}

func (ImmediateReward) Evaluate(leaf *StateNode, _ *rand.Rand) float64 {
	return leaf.Reward
}

// RandomRollout values a leaf by its reward plus the rewards of up to Cutoff
// uniformly random simulated steps. It stops early at a terminal state or at
// a state without actions.
type RandomRollout struct {
	Cutoff int
}

func NewKStepRollout(k int) RandomRollout {
	return RandomRollout{Cutoff: k}
}

// NewTerminalRollout plays until a terminal state. It does not return on
// domains without reachable terminal states.
func NewTerminalRollout() RandomRollout {
	return RandomRollout{Cutoff: MaxCutoff}
}

// Evaluate returns the leaf's arrival reward plus the undiscounted rewards of
// at most Cutoff further steps, a terminal step's reward included.
func (r RandomRollout) Evaluate(leaf *StateNode, rng *rand.Rand) float64 {
	reward := leaf.Reward
	state := leaf.state
	for depth := 0; depth < r.Cutoff && !state.IsTerminal(); depth++ {
		actions := state.Actions()
		if len(actions) == 0 {
			break
		}
		action := actions[rng.Intn(len(actions))] // Random rollout policy
		next := state.Perform(action)
		reward += next.Reward(state, action)
		state = next
	}
	return reward
}
