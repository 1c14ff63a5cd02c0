package searcher

import "errors"

// Action is a decision available at a State. Actions key the children of a
// StateNode, so the dynamic type of every Action must be comparable.
type Action = any

type StateHash uint64

// State is the environment seen by the search. It should be immutable:
// transitions always return a new State.
type State interface {
	// Actions lists the legal actions. It is read once per StateNode.
	Actions() []Action
	// Perform is the simulated transition used inside the tree and in rollouts.
	Perform(Action) State
	// RealWorldPerform is the authoritative transition, used only when the
	// caller commits to a real step.
	RealWorldPerform(Action) State
	IsTerminal() bool
	// Reward for arriving at this state from parent by taking action.
	Reward(parent State, action Action) float64
	// Hash and Equal define which sampled outcomes share a StateNode.
	Hash() StateHash
	Equal(State) bool
}

// ModelSyncer is implemented by states carrying an uncertainty model that
// Equal ignores. After a real transition, the cached outcome adopts the model
// of the freshly sampled state.
type ModelSyncer interface {
	SyncModel(from State) State
}

var ErrNoActions = errors.New("state has no actions")
