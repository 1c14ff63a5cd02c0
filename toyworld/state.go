package toyworld

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"uct/searcher"

	"golang.org/x/exp/rand"
)

// Belief holds, per intended action, pseudo-counts of how often each of the
// four Directions was actually taken.
type Belief map[Action][4]float64

func UniformBelief(count float64) Belief {
	belief := make(Belief, len(Directions))
	for _, action := range Directions {
		belief[action] = [4]float64{count, count, count, count}
	}
	return belief
}

// observe returns a copy of the belief with one more count for outcome after
// action.
func (b Belief) observe(action Action, outcome int) Belief {
	next := make(Belief, len(b))
	for a, counts := range b {
		next[a] = counts
	}
	counts := next[action]
	counts[outcome]++
	next[action] = counts
	return next
}

func (b Belief) Scaled(factor float64) Belief {
	next := make(Belief, len(b))
	for a, counts := range b {
		for i := range counts {
			counts[i] *= factor
		}
		next[a] = counts
	}
	return next
}

// Probabilities normalises the counts for action.
func (b Belief) Probabilities(action Action) [4]float64 {
	counts := b[action]
	total := counts[0] + counts[1] + counts[2] + counts[3]
	var p [4]float64
	for i, c := range counts {
		p[i] = c / total
	}
	return p
}

func (b Belief) entropy(action Action) float64 {
	h := 0.0
	for _, p := range b.Probabilities(action) {
		if p > 0 {
			h -= p * math.Log(p)
		}
	}
	return h
}

// State is the agent's position together with its belief about the
// transition noise.
//
// Equal and Hash consider the position only: outcomes that land on the same
// cell are the same outcome for the search even when the beliefs that led
// there differ. The belief of a real step is carried over by SyncModel.
type State struct {
	Pos    Position
	Belief Belief
	world  *World
}

func (s *State) Actions() []searcher.Action {
	actions := make([]searcher.Action, len(Directions))
	for i, action := range Directions {
		actions[i] = action
	}
	return actions
}

// Perform samples the outcome from the agent's belief.
func (s *State) Perform(action searcher.Action) searcher.State {
	a := action.(Action)
	return s.move(a, s.Belief[a])
}

// RealWorldPerform samples the outcome from the world's true transitions.
func (s *State) RealWorldPerform(action searcher.Action) searcher.State {
	a := action.(Action)
	return s.move(a, s.world.Transitions[a])
}

func (s *State) move(action Action, weights [4]float64) *State {
	outcome := sample(weights, s.world.rng)
	belief := s.Belief.observe(action, outcome)
	pos := s.world.clamp(s.Pos.Add(Directions[outcome]))
	if pos == s.world.Manual {
		belief = s.world.Transitions.Scaled(ManualConfidence)
	}
	return &State{Pos: pos, Belief: belief, world: s.world}
}

func sample(weights [4]float64, rng *rand.Rand) int {
	total := weights[0] + weights[1] + weights[2] + weights[3]
	r := rng.Float64() * total
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

func (s *State) IsTerminal() bool {
	return s.Pos == s.world.Goal
}

// Reward pays GoalReward at the goal and StepCost elsewhere. With intrinsic
// motivation the entropy removed from the acted action's belief is added.
func (s *State) Reward(parent searcher.State, action searcher.Action) float64 {
	reward := StepCost
	if s.Pos == s.world.Goal {
		reward = GoalReward
	}

	if s.world.Intrinsic {
		a := action.(Action)
		reward += parent.(*State).Belief.entropy(a) - s.Belief.entropy(a)
	}
	return reward
}

func (s *State) Hash() searcher.StateHash {
	hasher := fnv.New64a()
	binary.Write(hasher, binary.LittleEndian, int64(s.Pos.X))
	binary.Write(hasher, binary.LittleEndian, int64(s.Pos.Y))
	return searcher.StateHash(hasher.Sum64())
}

func (s *State) Equal(other searcher.State) bool {
	o, ok := other.(*State)
	return ok && o.Pos == s.Pos
}

// SyncModel returns the state at the same position with the belief of from.
func (s *State) SyncModel(from searcher.State) searcher.State {
	return &State{Pos: s.Pos, Belief: from.(*State).Belief, world: s.world}
}

func (s *State) String() string {
	return s.Pos.String()
}
