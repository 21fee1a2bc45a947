package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"hoursync/internal/domain"
	"hoursync/internal/gameapi"
	"hoursync/internal/reactive"
	"hoursync/internal/tokens"
)

// Completed holds a finished recipe whose output waits to be harvested.
type Completed struct {
	*core
	sit        *tokens.Situation
	concluding atomic.Bool
}

func newCompleted(d deps, id string, recipe *domain.Recipe, sit *tokens.Situation) *Completed {
	c := &Completed{sit: sit}
	c.core = newCore(d, id, PhaseCompleted, recipe, false, hooks{
		label:       runningLabel(recipe),
		description: runningDescription(recipe),
	})
	c.start(sit)
	return c
}

// Output is the situation's output stacks.
func (c *Completed) Output() reactive.Readable[[]*tokens.ElementStack] { return c.sit.Output() }

// Conclude harvests the output and returns the situation to Unstarted. The
// owner should discard the orchestration after it returns true.
func (c *Completed) Conclude(ctx context.Context) (bool, error) {
	if !c.concluding.CompareAndSwap(false, true) {
		return false, ErrBusy
	}
	defer c.concluding.Store(false)

	output := c.sit.Output().Get()
	if err := c.api.ConcludeTokenAtPath(ctx, c.sit.Path()); err != nil {
		return false, fmt.Errorf("conclude %s: %w", c.sit.ID(), err)
	}
	c.sit.ResetRecipe()
	for _, stack := range output {
		if err := stack.Refresh(ctx); err != nil && !gameapi.IsNotFound(err) {
			c.log.Warn("refresh harvested stack", zap.String("stack", stack.ID()), zap.Error(err))
		}
	}
	c.record(ctx, "orchestration.conclude", c.id, map[string]any{
		"situation": c.sit.ID(),
		"harvested": len(output),
	})
	return true, nil
}
