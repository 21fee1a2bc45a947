package tokens

import (
	"hoursync/internal/domain"
	"hoursync/internal/reactive"
)

// ConnectedTerrain is a region of the world. Tokens inside a shrouded
// terrain are not reachable.
type ConnectedTerrain struct {
	*token
}

func (t *ConnectedTerrain) Label() reactive.Readable[string] {
	return field(t.token, "label", func(p domain.TokenPayload) string { return p.Label }, reactive.Comparable[string])
}

func (t *ConnectedTerrain) Description() reactive.Readable[string] {
	return field(t.token, "description", func(p domain.TokenPayload) string { return p.Description }, reactive.Comparable[string])
}

func (t *ConnectedTerrain) Shrouded() reactive.Readable[bool] {
	return field(t.token, "shrouded", func(p domain.TokenPayload) bool { return p.Shrouded }, reactive.Comparable[bool])
}

func (t *ConnectedTerrain) Sealed() reactive.Readable[bool] {
	return field(t.token, "sealed", func(p domain.TokenPayload) bool { return p.Sealed }, reactive.Comparable[bool])
}

// WisdomNode is a node of the wisdom tree. Committing an element to it
// runs its recipe.
type WisdomNode struct {
	*token
}

func (w *WisdomNode) Label() reactive.Readable[string] {
	return field(w.token, "label", func(p domain.TokenPayload) string { return p.Label }, reactive.Comparable[string])
}

func (w *WisdomNode) Description() reactive.Readable[string] {
	return field(w.token, "description", func(p domain.TokenPayload) string { return p.Description }, reactive.Comparable[string])
}

func (w *WisdomNode) Shrouded() reactive.Readable[bool] {
	return field(w.token, "shrouded", func(p domain.TokenPayload) bool { return p.Shrouded }, reactive.Comparable[bool])
}

// RecipeLabel names what committing to this node does, falling back to the
// node's own label.
func (w *WisdomNode) RecipeLabel() reactive.Readable[string] {
	return field(w.token, "recipeLabel", func(p domain.TokenPayload) string {
		if p.WisdomRecipeLabel != "" {
			return p.WisdomRecipeLabel
		}
		return p.Label
	}, reactive.Comparable[string])
}

// Committed is the stack committed to this node, or nil.
func (w *WisdomNode) Committed() reactive.Readable[*ElementStack] {
	return withTokens(w.token, "committed", func(p domain.TokenPayload, all []Model) *ElementStack {
		stacks := stacksWithin(all, ChildPath(p.Path, CommitSphere), nil)
		if len(stacks) == 0 {
			return nil
		}
		return stacks[0]
	}, reactive.Comparable[*ElementStack])
}
