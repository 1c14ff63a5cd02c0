package engine

import (
	"context"
	"errors"
	"fmt"

	"uct/searcher"

	"github.com/rs/zerolog/log"
)

type Local struct {
	searcher Searcher
	root     *searcher.StateNode
	maxSteps int
}

// LocalEngine plays an episode from state, reusing the search tree between
// steps.
func LocalEngine(s Searcher, state searcher.State, maxSteps int) *Local {
	if s == nil {
		panic("need a searcher")
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Local{
		searcher: s,
		root:     searcher.NewRoot(state),
		maxSteps: maxSteps,
	}
}

// Root returns the node of the current real-world state.
func (e *Local) Root() *searcher.StateNode {
	return e.root
}

// Run executes the episode loop. When ctx is cancelled the steps taken so far
// are returned along with the error.
func (e *Local) Run(ctx context.Context) (Episode, error) {
	var episode Episode
	collector := e.searcher.Metrics()
	collector.SetTreeReused(false)

	for step := 0; step < e.maxSteps && !e.root.State().IsTerminal(); step++ {
		action, err := e.searcher.Search(ctx, e.root)
		if errors.Is(err, searcher.ErrNoActions) {
			log.Debug().Stringer("state", e.root).Msg("dead end")
			break
		}
		if err != nil {
			episode.Final = e.root.State()
			return episode, fmt.Errorf("step %d: %w", step, err)
		}

		prev := e.root
		chosen := prev.Child(action)
		next := chosen.SampleState(true)
		reward := next.State().Reward(prev.State(), action)

		episode.Steps = append(episode.Steps, Step{
			Step:   step,
			State:  fmt.Sprint(prev.State()),
			Action: action,
			Reward: reward,
			Visits: prev.N,
			Value:  chosen.Q,
			Search: collector.Complete(),
		})
		episode.TotalReward += reward

		log.Debug().
			Int("step", step).
			Str("state", fmt.Sprint(prev.State())).
			Str("action", fmt.Sprint(action)).
			Str("next", fmt.Sprint(next.State())).
			Float64("reward", reward).
			Msg("step taken")

		next.Detach()
		collector.SetTreeReused(next.N > 0)
		e.root = next
	}

	episode.Final = e.root.State()
	episode.Reached = episode.Final.IsTerminal()
	return episode, nil
}

var _ Engine = (*Local)(nil)
var _ Searcher = (*searcher.MCTS)(nil)
