package tokens

import (
	"slices"

	"github.com/google/go-cmp/cmp"

	"hoursync/internal/aspects"
	"hoursync/internal/domain"
	"hoursync/internal/reactive"
)

// ElementStack is a stack of one element, possibly mutated.
type ElementStack struct {
	*token
}

func (s *ElementStack) ElementID() reactive.Readable[string] {
	return field(s.token, "elementId", func(p domain.TokenPayload) string { return p.ElementID }, reactive.Comparable[string])
}

func (s *ElementStack) Label() reactive.Readable[string] {
	return field(s.token, "label", func(p domain.TokenPayload) string { return p.Label }, reactive.Comparable[string])
}

func (s *ElementStack) Description() reactive.Readable[string] {
	return field(s.token, "description", func(p domain.TokenPayload) string { return p.Description }, reactive.Comparable[string])
}

func (s *ElementStack) Quantity() reactive.Readable[int] {
	return field(s.token, "quantity", func(p domain.TokenPayload) int { return p.Quantity }, reactive.Comparable[int])
}

// LifetimeRemaining is the time left before the stack decays; zero when the
// element does not decay.
func (s *ElementStack) LifetimeRemaining() reactive.Readable[float64] {
	return field(s.token, "lifetime", func(p domain.TokenPayload) float64 {
		if !p.Decays {
			return 0
		}
		return p.LifetimeRemaining
	}, reactive.Comparable[float64])
}

func (s *ElementStack) ElementAspects() reactive.Readable[domain.Aspects] {
	return field(s.token, "elementAspects", func(p domain.TokenPayload) domain.Aspects { return p.ElementAspects }, aspects.Equal)
}

func (s *ElementStack) Mutations() reactive.Readable[domain.Aspects] {
	return field(s.token, "mutations", func(p domain.TokenPayload) domain.Aspects { return p.Mutations }, aspects.Equal)
}

// Aspects combines element aspects with mutations.
func (s *ElementStack) Aspects() reactive.Readable[domain.Aspects] {
	return field(s.token, "aspects", combinedAspects, aspects.Equal)
}

func (s *ElementStack) Shrouded() reactive.Readable[bool] {
	return field(s.token, "shrouded", func(p domain.TokenPayload) bool { return p.Shrouded }, reactive.Comparable[bool])
}

// Slots are the slot specs this stack contributes when it is placed in a
// situation.
func (s *ElementStack) Slots() reactive.Readable[[]domain.SphereSpec] {
	return field(s.token, "slots", func(p domain.TokenPayload) []domain.SphereSpec { return p.Slots }, specsEqual)
}

// SpherePath is the path of the sphere holding this stack.
func (s *ElementStack) SpherePath() string {
	return SpherePath(s.Path())
}

// ParentTerrain is the nearest unlocked terrain enclosing this stack.
func (s *ElementStack) ParentTerrain() reactive.Readable[*ConnectedTerrain] {
	return parentTerrain(s.token)
}

// Visible reports whether this stack is currently reachable.
func (s *ElementStack) Visible() reactive.Readable[bool] {
	return visible(s.token)
}

// AspectsNow is a convenience for Aspects().Get().
func (s *ElementStack) AspectsNow() domain.Aspects {
	return combinedAspects(s.Payload())
}

func combinedAspects(p domain.TokenPayload) domain.Aspects {
	return aspects.Combine(p.ElementAspects, p.Mutations)
}

func specsEqual(a, b []domain.SphereSpec) bool {
	return slices.EqualFunc(a, b, func(x, y domain.SphereSpec) bool { return cmp.Equal(x, y) })
}
