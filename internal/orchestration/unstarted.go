package orchestration

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"hoursync/internal/aspects"
	"hoursync/internal/domain"
	"hoursync/internal/tokens"
)

// Unstarted prepares a recipe. It may start without a situation and have one
// selected later.
type Unstarted struct {
	*core
	executing atomic.Bool
	executed  atomic.Pointer[domain.ExecuteResult]
}

func newUnstarted(d deps, id string, recipe *domain.Recipe, sit *tokens.Situation) *Unstarted {
	u := &Unstarted{}
	u.core = newCore(d, id, PhaseUnstarted, recipe, true, hooks{
		label: func(sit *tokens.Situation, p domain.TokenPayload) string {
			if recipe != nil && recipe.Label != "" {
				return recipe.Label
			}
			return p.Label
		},
		description: func(sit *tokens.Situation, p domain.TokenPayload) string {
			if recipe != nil && recipe.Description != "" {
				return recipe.Description
			}
			return p.Description
		},
		onPayload: u.watchState,
		onRetired: func(sit *tokens.Situation) { u.release(sit, "situation retired") },
	})
	u.start(sit)
	return u
}

// watchState drops the binding once the situation leaves Unstarted for a
// reason other than our own execute.
func (u *Unstarted) watchState(sit *tokens.Situation, p domain.TokenPayload) {
	if p.State == domain.StateUnstarted || u.executing.Load() {
		return
	}
	u.release(sit, "situation state changed to "+string(p.State))
}

func (u *Unstarted) release(sit *tokens.Situation, reason string) {
	if u.situation.Get() != sit {
		return
	}
	u.log.Info("releasing situation", zap.String("orchestration", u.id),
		zap.String("situation", sit.ID()), zap.String("reason", reason))
	u.situation.Set(nil)
}

// Compatible reports whether sit can be bound: it must be unstarted, accept
// the recipe's verb pattern, and have a threshold that admits the recipe's
// requirements.
func (u *Unstarted) Compatible(sit *tokens.Situation) bool {
	p := sit.Payload()
	if p.State != domain.StateUnstarted {
		return false
	}
	if u.recipe == nil {
		return true
	}
	if !aspects.ActionMatches(u.recipe.ActionID, p.VerbID) {
		return false
	}
	if len(u.recipe.Requirements) == 0 {
		return true
	}
	for _, spec := range p.Thresholds {
		if aspects.Matches(spec, u.recipe.Requirements) {
			return true
		}
	}
	return false
}

// AvailableSituations lists the visible situations that SelectSituation
// would accept.
func (u *Unstarted) AvailableSituations() []*tokens.Situation {
	var out []*tokens.Situation
	for _, m := range u.world.Views().Visible().Get() {
		if sit, ok := m.(*tokens.Situation); ok && u.Compatible(sit) {
			out = append(out, sit)
		}
	}
	return out
}

// SelectSituation binds sit, replacing any previous binding. A nil sit
// clears the binding. No game command is issued.
func (u *Unstarted) SelectSituation(ctx context.Context, sit *tokens.Situation) error {
	if sit != nil {
		if state := sit.State().Get(); state != domain.StateUnstarted {
			return fmt.Errorf("%w: %s is %s", ErrSituationNotUnstarted, sit.ID(), state)
		}
		if !u.Compatible(sit) {
			return fmt.Errorf("%w: %s", ErrIncompatibleSituation, sit.ID())
		}
	}
	u.situation.Set(sit)
	payload := map[string]any{}
	if sit != nil {
		payload["situation"] = sit.ID()
	}
	u.record(ctx, "orchestration.select", u.id, payload)
	return nil
}

// Autofill assigns the best candidate to every empty unlocked slot.
func (u *Unstarted) Autofill(ctx context.Context) (int, error) {
	if u.situation.Get() == nil {
		return 0, ErrNoSituation
	}
	return u.autofill(ctx)
}

// Executed is the result of the successful execute, if any.
func (u *Unstarted) Executed() *domain.ExecuteResult { return u.executed.Load() }

// Execute starts the recipe. A call made while another is in flight returns
// false and ErrBusy without contacting the game. On failure nothing changes
// locally.
func (u *Unstarted) Execute(ctx context.Context) (bool, error) {
	if !u.executing.CompareAndSwap(false, true) {
		return false, ErrBusy
	}
	ok, err := u.execute(ctx)
	if !ok {
		u.executing.Store(false)
	}
	return ok, err
}

func (u *Unstarted) execute(ctx context.Context) (bool, error) {
	sit := u.situation.Get()
	if sit == nil {
		return false, ErrNoSituation
	}
	if u.recipe != nil {
		if err := u.api.SetRecipeAtPath(ctx, sit.Path(), u.recipe.ID); err != nil {
			return false, fmt.Errorf("set recipe %s: %w", u.recipe.ID, err)
		}
	}
	res, err := u.api.ExecuteTokenAtPath(ctx, sit.Path())
	if err != nil {
		return false, fmt.Errorf("execute %s: %w", sit.ID(), err)
	}
	u.executed.Store(&res)
	sit.ClearThresholds()
	u.log.Info("situation executed", zap.String("orchestration", u.id),
		zap.String("situation", sit.ID()), zap.String("recipe", res.ExecutedRecipeLabel))
	u.record(ctx, "orchestration.execute", u.id, map[string]any{
		"situation": sit.ID(),
		"recipe":    res.ExecutedRecipeLabel,
	})
	return true, nil
}
