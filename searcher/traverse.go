package searcher

// BreadthFirst visits every node under root level by level, threading an
// accumulator through visit.
func BreadthFirst[T any](root Node, visit func(node Node, acc T) T) T {
	var acc T
	queue := []Node{root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		acc = visit(node, acc)
		queue = append(queue, node.Children()...)
	}
	return acc
}

// DepthFirst is BreadthFirst with a stack instead of a queue.
func DepthFirst[T any](root Node, visit func(node Node, acc T) T) T {
	var acc T
	stack := []Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		acc = visit(node, acc)
		stack = append(stack, node.Children()...)
	}
	return acc
}

type nodeSets struct {
	actions []*ActionNode
	states  []*StateNode
}

// CollectNodes gathers every action and state node of the tree under root.
func CollectNodes(root Node) ([]*ActionNode, []*StateNode) {
	sets := DepthFirst(root, func(node Node, acc nodeSets) nodeSets {
		switch n := node.(type) {
		case *ActionNode:
			acc.actions = append(acc.actions, n)
		case *StateNode:
			acc.states = append(acc.states, n)
		}
		return acc
	})
	return sets.actions, sets.states
}
