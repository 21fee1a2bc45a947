package tokens

import (
	"slices"

	"hoursync/internal/aspects"
	"hoursync/internal/domain"
	"hoursync/internal/reactive"
)

// Situation is a verb or workstation that runs recipes.
type Situation struct {
	*token
}

func (s *Situation) VerbID() reactive.Readable[string] {
	return field(s.token, "verbId", func(p domain.TokenPayload) string { return p.VerbID }, reactive.Comparable[string])
}

func (s *Situation) Label() reactive.Readable[string] {
	return field(s.token, "label", func(p domain.TokenPayload) string { return p.Label }, reactive.Comparable[string])
}

func (s *Situation) Description() reactive.Readable[string] {
	return field(s.token, "description", func(p domain.TokenPayload) string { return p.Description }, reactive.Comparable[string])
}

func (s *Situation) State() reactive.Readable[domain.SituationState] {
	return field(s.token, "state", func(p domain.TokenPayload) domain.SituationState { return p.State }, reactive.Comparable[domain.SituationState])
}

// RecipeID is the recipe prepared to run next.
func (s *Situation) RecipeID() reactive.Readable[string] {
	return field(s.token, "recipeId", func(p domain.TokenPayload) string { return p.RecipeID }, reactive.Comparable[string])
}

func (s *Situation) RecipeLabel() reactive.Readable[string] {
	return field(s.token, "recipeLabel", func(p domain.TokenPayload) string { return p.RecipeLabel }, reactive.Comparable[string])
}

// CurrentRecipeID is the recipe currently running.
func (s *Situation) CurrentRecipeID() reactive.Readable[string] {
	return field(s.token, "currentRecipeId", func(p domain.TokenPayload) string { return p.CurrentRecipeID }, reactive.Comparable[string])
}

func (s *Situation) CurrentRecipeLabel() reactive.Readable[string] {
	return field(s.token, "currentRecipeLabel", func(p domain.TokenPayload) string { return p.CurrentRecipeLabel }, reactive.Comparable[string])
}

func (s *Situation) Aspects() reactive.Readable[domain.Aspects] {
	return field(s.token, "aspects", func(p domain.TokenPayload) domain.Aspects { return p.Aspects }, aspects.Equal)
}

func (s *Situation) Hints() reactive.Readable[[]string] {
	return field(s.token, "hints", func(p domain.TokenPayload) []string { return p.Hints }, slices.Equal[[]string])
}

func (s *Situation) TimeRemaining() reactive.Readable[float64] {
	return field(s.token, "timeRemaining", func(p domain.TokenPayload) float64 { return p.TimeRemaining }, reactive.Comparable[float64])
}

// Thresholds are the situation's own slot specs, in order.
func (s *Situation) Thresholds() reactive.Readable[[]domain.SphereSpec] {
	return field(s.token, "thresholds", func(p domain.TokenPayload) []domain.SphereSpec { return p.Thresholds }, specsEqual)
}

// Notes are the note stacks written by the situation.
func (s *Situation) Notes() reactive.Readable[[]*ElementStack] {
	return withTokens(s.token, "notes", func(p domain.TokenPayload, all []Model) []*ElementStack {
		return stacksWithin(all, ChildPath(p.Path, NotesSphere), func(e *ElementStack) bool {
			return e.Payload().ElementID == NoteElementID
		})
	}, reactive.SameElements[*ElementStack])
}

// Content are the stacks held while the recipe runs.
func (s *Situation) Content() reactive.Readable[[]*ElementStack] {
	return withTokens(s.token, "content", func(p domain.TokenPayload, all []Model) []*ElementStack {
		return stacksWithin(all, ChildPath(p.Path, StorageSphere), nil)
	}, reactive.SameElements[*ElementStack])
}

// Output are the stacks waiting to be harvested.
func (s *Situation) Output() reactive.Readable[[]*ElementStack] {
	return withTokens(s.token, "output", func(p domain.TokenPayload, all []Model) []*ElementStack {
		return stacksWithin(all, ChildPath(p.Path, OutputSphere), nil)
	}, reactive.SameElements[*ElementStack])
}

// SlotContents maps each threshold sphere id to the stack it holds, as last
// reported by the game.
func (s *Situation) SlotContents() reactive.Readable[map[string]*ElementStack] {
	return withTokens(s.token, "slotContents", func(p domain.TokenPayload, all []Model) map[string]*ElementStack {
		out := make(map[string]*ElementStack)
		if p.Path == "" {
			return out
		}
		for _, m := range all {
			stack, ok := m.(*ElementStack)
			if !ok {
				continue
			}
			sphere := SpherePath(stack.Path())
			if SpherePath(sphere) != p.Path {
				continue
			}
			id := sphere[len(p.Path)+1:]
			switch id {
			case NotesSphere, StorageSphere, OutputSphere:
				continue
			}
			out[id] = stack
		}
		return out
	}, stackMapEqual)
}

// SlotPath is the sphere path of one of this situation's slots.
func (s *Situation) SlotPath(slotID string) string {
	return ChildPath(s.Path(), slotID)
}

func (s *Situation) ParentTerrain() reactive.Readable[*ConnectedTerrain] {
	return parentTerrain(s.token)
}

func (s *Situation) Visible() reactive.Readable[bool] {
	return visible(s.token)
}

// ClearThresholds drops the thresholds locally until the next poll reports
// the game's view. Used right after a successful execute.
func (s *Situation) ClearThresholds() {
	s.patch(func(p domain.TokenPayload) domain.TokenPayload {
		p.Thresholds = nil
		return p
	})
}

// ResetRecipe clears the recipe fields locally and marks the situation
// unstarted until the next poll. Used right after a successful conclude.
func (s *Situation) ResetRecipe() {
	s.patch(func(p domain.TokenPayload) domain.TokenPayload {
		p.RecipeID = ""
		p.RecipeLabel = ""
		p.CurrentRecipeID = ""
		p.CurrentRecipeLabel = ""
		p.TimeRemaining = 0
		p.State = domain.StateUnstarted
		return p
	})
}

func stacksWithin(all []Model, sphere string, keep func(*ElementStack) bool) []*ElementStack {
	var out []*ElementStack
	for _, m := range all {
		stack, ok := m.(*ElementStack)
		if !ok || !Within(stack.Path(), sphere) || stack.Path() == sphere {
			continue
		}
		if keep != nil && !keep(stack) {
			continue
		}
		out = append(out, stack)
	}
	return out
}

func stackMapEqual(a, b map[string]*ElementStack) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
