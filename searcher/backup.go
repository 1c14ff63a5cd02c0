package searcher

import "math"

// Backup propagates a leaf's evaluation, stored in leaf.Reward, up to the
// root. Every node on the path gets exactly one more visit.
type Backup interface {
	Backup(leaf *StateNode)
}

// MonteCarlo keeps a running mean of the leaf rewards seen through each node.
type MonteCarlo struct{}

func (MonteCarlo) Backup(leaf *StateNode) {
	reward := leaf.Reward
	for node := Node(leaf); node != nil; node = node.Parent() {
		switch n := node.(type) {
		case *StateNode:
			n.N, n.Q = runningMean(n.N, n.Q, reward)
		case *ActionNode:
			n.N, n.Q = runningMean(n.N, n.Q, reward)
		default:
			panic("unexpected node type")
		}
	}
}

func runningMean(n int, q float64, reward float64) (int, float64) {
	n++
	return n, q + (reward-q)/float64(n)
}

// Bellman backs up the best action value through state nodes and the
// visit-weighted expected outcome value through action nodes.
//
// Action values are recomputed from every recorded outcome, including
// outcomes this simulation did not pass through.
type Bellman struct {
	Gamma float64
}

func (b Bellman) Backup(leaf *StateNode) {
	for node := Node(leaf); node != nil; node = node.Parent() {
		switch n := node.(type) {
		case *StateNode:
			b.updateState(n)
		case *ActionNode:
			b.updateAction(n)
		default:
			panic("unexpected node type")
		}
	}
}

func (b Bellman) updateState(s *StateNode) {
	s.N++
	if len(s.actions) == 0 { // Nothing to maximise over
		return
	}

	best := math.Inf(-1)
	for _, action := range s.actions {
		best = math.Max(best, s.children[action].Q)
	}
	s.Q = best
}

func (b Bellman) updateAction(a *ActionNode) {
	a.N++

	visits := 0
	total := 0.0
	for _, child := range a.children {
		visits += child.N
		total += (b.Gamma*child.Q + child.Reward) * float64(child.N)
	}
	a.Q = total / float64(visits)
}
