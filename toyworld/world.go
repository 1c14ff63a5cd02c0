package toyworld

import (
	"fmt"

	"uct/searcher"
	"uct/utils"

	"golang.org/x/exp/rand"
)

const (
	GoalReward = 100.0
	StepCost   = -1.0
	// ManualConfidence scales the true transition model into pseudo-counts
	// once the agent has read the manual.
	ManualConfidence = 100.0
)

type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (p Position) Add(a Action) Position {
	return Position{X: p.X + a.DX, Y: p.Y + a.DY}
}

func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// Action is an intended move by one cell.
type Action struct {
	DX int
	DY int
}

var (
	Up    = Action{DX: 0, DY: 1}
	Down  = Action{DX: 0, DY: -1}
	Right = Action{DX: 1, DY: 0}
	Left  = Action{DX: -1, DY: 0}

	// Directions fixes the outcome order of every transition model.
	Directions = []Action{Up, Down, Right, Left}

	directionNames = []string{"up", "down", "right", "left"}
)

func (a Action) String() string {
	if i := utils.FindIndex(Directions, a); i >= 0 {
		return directionNames[i]
	}
	return fmt.Sprintf("(%+d, %+d)", a.DX, a.DY)
}

// World holds everything static about an episode: the grid, the goal, the
// manual and the true transition model.
type World struct {
	Width       int
	Height      int
	Goal        Position
	Manual      Position
	Intrinsic   bool
	Transitions Belief
	rng         *rand.Rand
}

// NewWorld creates a world whose true transitions move in the intended
// direction with probability 1-noise and in each other direction with
// probability noise/3. All sampling draws from rng.
func NewWorld(width, height int, goal, manual Position, noise float64, intrinsic bool, rng *rand.Rand) *World {
	transitions := make(Belief, len(Directions))
	for i, action := range Directions {
		var weights [4]float64
		for j := range weights {
			if i == j {
				weights[j] = 1 - noise
			} else {
				weights[j] = noise / 3
			}
		}
		transitions[action] = weights
	}

	return &World{
		Width:       width,
		Height:      height,
		Goal:        goal,
		Manual:      manual,
		Intrinsic:   intrinsic,
		Transitions: transitions,
		rng:         rng,
	}
}

// NewState places the agent at pos. A nil belief starts from a uniform prior.
func (w *World) NewState(pos Position, belief Belief) *State {
	if belief == nil {
		belief = UniformBelief(1)
	}
	return &State{Pos: w.clamp(pos), Belief: belief, world: w}
}

func (w *World) clamp(p Position) Position {
	return Position{X: clampInt(p.X, 0, w.Width-1), Y: clampInt(p.Y, 0, w.Height-1)}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// DrawGoal picks a cell at Manhattan distance dist below and left of start.
func DrawGoal(rng *rand.Rand, start Position, dist int) Position {
	dx := rng.Intn(dist + 1)
	dy := dist - dx
	return Position{X: start.X - dx, Y: start.Y - dy}
}

var _ searcher.State = (*State)(nil)
var _ searcher.ModelSyncer = (*State)(nil)
