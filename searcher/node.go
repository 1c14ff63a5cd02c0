package searcher

import "fmt"

type Node interface {
	Parent() Node
	Children() []Node
	Visits() int
	Value() float64
}

// StateNode wraps a State reached in the tree.
type StateNode struct {
	parent  *ActionNode
	state   State
	actions []Action
	// children has exactly one entry per action, fixed at construction.
	children map[Action]*ActionNode

	// Reward is the reward for arriving at this state until the node is
	// evaluated as a leaf, after which it holds the default policy's result.
	Reward float64
	N      int
	Q      float64
}

func NewStateNode(parent *ActionNode, state State, reward float64) *StateNode {
	actions := state.Actions()
	s := &StateNode{
		parent:   parent,
		state:    state,
		actions:  actions,
		children: make(map[Action]*ActionNode, len(actions)),
		Reward:   reward,
	}
	for _, action := range actions {
		s.children[action] = &ActionNode{parent: s, action: action}
	}
	return s
}

// NewRoot creates a parentless StateNode.
func NewRoot(state State) *StateNode {
	return NewStateNode(nil, state, 0)
}

func (s *StateNode) State() State {
	return s.state
}

// Actions returns the node's actions in the order the state reported them.
func (s *StateNode) Actions() []Action {
	return s.actions
}

func (s *StateNode) Child(action Action) *ActionNode {
	return s.children[action]
}

// ActionNodes returns the action children in action order.
func (s *StateNode) ActionNodes() []*ActionNode {
	nodes := make([]*ActionNode, len(s.actions))
	for i, action := range s.actions {
		nodes[i] = s.children[action]
	}
	return nodes
}

// UntriedActions lists the actions whose ActionNode has not been visited.
func (s *StateNode) UntriedActions() []Action {
	var untried []Action
	for _, action := range s.actions {
		if s.children[action].N == 0 {
			untried = append(untried, action)
		}
	}
	return untried
}

// Detach cuts the link to the parent so the node can serve as a new root.
func (s *StateNode) Detach() {
	s.parent = nil
}

func (s *StateNode) Parent() Node {
	if s.parent == nil { // Root node
		return nil
	}
	return s.parent
}

func (s *StateNode) Children() []Node {
	nodes := make([]Node, len(s.actions))
	for i, action := range s.actions {
		nodes[i] = s.children[action]
	}
	return nodes
}

func (s *StateNode) Visits() int {
	return s.N
}

func (s *StateNode) Value() float64 {
	return s.Q
}

func (s *StateNode) String() string {
	return fmt.Sprintf("State: %v", s.state)
}

// ActionNode wraps an Action taken from its parent state. Its children are the
// distinct outcomes sampled so far.
type ActionNode struct {
	parent *StateNode
	action Action
	// children in creation order, indexed by state hash for lookups
	children []*StateNode
	index    map[StateHash][]*StateNode

	N int
	Q float64
}

func (a *ActionNode) Action() Action {
	return a.action
}

// SampleState draws an outcome of the action and returns its StateNode,
// creating it on first sight. With realWorld the authoritative transition is
// used and the cached outcome adopts the sampled uncertainty model.
func (a *ActionNode) SampleState(realWorld bool) *StateNode {
	from := a.parent.state
	var state State
	if realWorld {
		state = from.RealWorldPerform(a.action)
	} else {
		state = from.Perform(a.action)
	}

	child := a.lookup(state)
	if child == nil {
		child = NewStateNode(a, state, state.Reward(from, a.action))
		a.insert(child)
	}

	if realWorld {
		if syncer, ok := child.state.(ModelSyncer); ok {
			child.state = syncer.SyncModel(state)
		}
	}

	return child
}

func (a *ActionNode) lookup(state State) *StateNode {
	for _, child := range a.index[state.Hash()] {
		if child.state.Equal(state) {
			return child
		}
	}
	return nil
}

func (a *ActionNode) insert(child *StateNode) {
	if a.index == nil {
		a.index = make(map[StateHash][]*StateNode)
	}
	hash := child.state.Hash()
	a.index[hash] = append(a.index[hash], child)
	a.children = append(a.children, child)
}

// Outcomes returns the sampled outcome nodes in creation order.
func (a *ActionNode) Outcomes() []*StateNode {
	return a.children
}

func (a *ActionNode) Parent() Node {
	return a.parent
}

func (a *ActionNode) Children() []Node {
	nodes := make([]Node, len(a.children))
	for i, child := range a.children {
		nodes[i] = child
	}
	return nodes
}

func (a *ActionNode) Visits() int {
	return a.N
}

func (a *ActionNode) Value() float64 {
	return a.Q
}

func (a *ActionNode) String() string {
	return fmt.Sprintf("Action: %v", a.action)
}
