package orchestration

import (
	"context"
	"fmt"

	"hoursync/internal/domain"
	"hoursync/internal/reactive"
	"hoursync/internal/tokens"
)

// Ongoing follows a running recipe. Slots come from the situation's live
// thresholds, which can appear while the recipe runs.
type Ongoing struct {
	*core
	timeRemaining reactive.Readable[float64]
}

func newOngoing(d deps, id string, recipe *domain.Recipe, sit *tokens.Situation, onState func(*tokens.Situation, domain.TokenPayload)) *Ongoing {
	o := &Ongoing{timeRemaining: sit.TimeRemaining()}
	o.core = newCore(d, id, PhaseOngoing, recipe, true, hooks{
		label:       runningLabel(recipe),
		description: runningDescription(recipe),
		onPayload:   onState,
	})
	o.start(sit)
	return o
}

// TimeRemaining is the time left on the running recipe.
func (o *Ongoing) TimeRemaining() reactive.Readable[float64] { return o.timeRemaining }

// PassTime advances the game clock.
func (o *Ongoing) PassTime(ctx context.Context, seconds float64) error {
	if err := o.api.PassTime(ctx, seconds); err != nil {
		return fmt.Errorf("pass time: %w", err)
	}
	o.record(ctx, "orchestration.pass_time", o.id, map[string]any{"seconds": seconds})
	return nil
}

// Autofill assigns the best candidate to every empty unlocked slot.
func (o *Ongoing) Autofill(ctx context.Context) (int, error) {
	return o.autofill(ctx)
}

func runningLabel(recipe *domain.Recipe) func(*tokens.Situation, domain.TokenPayload) string {
	return func(_ *tokens.Situation, p domain.TokenPayload) string {
		switch {
		case p.CurrentRecipeLabel != "":
			return p.CurrentRecipeLabel
		case p.RecipeLabel != "":
			return p.RecipeLabel
		case recipe != nil && recipe.Label != "":
			return recipe.Label
		}
		return p.Label
	}
}

func runningDescription(recipe *domain.Recipe) func(*tokens.Situation, domain.TokenPayload) string {
	return func(_ *tokens.Situation, p domain.TokenPayload) string {
		if recipe != nil && recipe.Description != "" {
			return recipe.Description
		}
		return p.Description
	}
}
