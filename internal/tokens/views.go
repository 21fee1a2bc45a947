package tokens

import (
	"strings"
	"sync"

	"hoursync/internal/domain"
	"hoursync/internal/reactive"
)

// DefaultAlwaysVisible are path prefixes that are reachable regardless of
// terrain state.
var DefaultAlwaysVisible = []string{"~/hand", "~/portage"}

// Views derives visibility and parent-terrain resolution from a token list.
// Both are computed once per change and shared by all consumers.
type Views struct {
	alwaysVisible []string

	unlocked *reactive.Value[[]*ConnectedTerrain]
	visible  *reactive.Value[[]Model]

	mu         sync.Mutex
	current    []Model
	watched    []*ConnectedTerrain
	watchStops []func()

	recomputeMu sync.Mutex
	stop        func()
}

func newViews(tokens reactive.Readable[[]Model], alwaysVisible []string) *Views {
	if alwaysVisible == nil {
		alwaysVisible = DefaultAlwaysVisible
	}
	v := &Views{
		alwaysVisible: alwaysVisible,
		unlocked:      reactive.NewValue[[]*ConnectedTerrain](nil, reactive.SameElements[*ConnectedTerrain]),
		visible:       reactive.NewValue[[]Model](nil, reactive.SameElements[Model]),
	}
	v.stop = tokens.Subscribe(v.onTokens)
	return v
}

// Visible is the list of currently reachable tokens.
func (v *Views) Visible() reactive.Readable[[]Model] { return v.visible }

// UnlockedTerrains is the list of terrains that are not shrouded.
func (v *Views) UnlockedTerrains() reactive.Readable[[]*ConnectedTerrain] { return v.unlocked }

// IsVisiblePath reports whether a token at path is currently reachable.
func (v *Views) IsVisiblePath(path string) bool {
	return v.visibleAt(path, v.unlocked.Get())
}

// ParentTerrain returns the innermost unlocked terrain enclosing path, or nil.
func (v *Views) ParentTerrain(path string) *ConnectedTerrain {
	return resolveTerrain(path, v.unlocked.Get())
}

// Close detaches the views from the token list and all terrains.
func (v *Views) Close() {
	v.stop()
	v.mu.Lock()
	stops := v.watchStops
	v.watchStops = nil
	v.mu.Unlock()
	for _, s := range stops {
		s()
	}
}

func (v *Views) onTokens(list []Model) {
	terrains := terrainsOf(list)
	v.mu.Lock()
	v.current = list
	rewatch := !reactive.SameElements(terrains, v.watched)
	var old []func()
	if rewatch {
		old = v.watchStops
		v.watchStops = nil
		v.watched = terrains
	}
	v.mu.Unlock()

	if rewatch {
		for _, s := range old {
			s()
		}
		stops := make([]func(), 0, len(terrains))
		for _, t := range terrains {
			first := true
			stops = append(stops, t.Shrouded().Subscribe(func(bool) {
				if first {
					first = false
					return
				}
				v.recompute()
			}))
		}
		v.mu.Lock()
		v.watchStops = stops
		v.mu.Unlock()
	}
	v.recompute()
}

func (v *Views) recompute() {
	v.recomputeMu.Lock()
	defer v.recomputeMu.Unlock()

	v.mu.Lock()
	list := v.current
	terrains := v.watched
	v.mu.Unlock()

	var unlocked []*ConnectedTerrain
	for _, t := range terrains {
		if !t.Shrouded().Get() {
			unlocked = append(unlocked, t)
		}
	}
	v.unlocked.Set(unlocked)

	var visible []Model
	for _, m := range list {
		if v.visibleAt(m.Path(), unlocked) {
			visible = append(visible, m)
		}
	}
	v.visible.Set(visible)
}

func (v *Views) visibleAt(path string, unlocked []*ConnectedTerrain) bool {
	for _, prefix := range v.alwaysVisible {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, t := range unlocked {
		if Within(path, t.Path()) {
			return true
		}
	}
	return false
}

// resolveTerrain picks the terrain with the longest path enclosing path.
// Nested terrains always win over their ancestors, so resolution never
// jumps to an unrelated region.
func resolveTerrain(path string, terrains []*ConnectedTerrain) *ConnectedTerrain {
	var best *ConnectedTerrain
	bestLen := -1
	for _, t := range terrains {
		tp := t.Path()
		if Within(path, tp) && len(tp) > bestLen {
			best, bestLen = t, len(tp)
		}
	}
	return best
}

func terrainsOf(list []Model) []*ConnectedTerrain {
	var out []*ConnectedTerrain
	for _, m := range list {
		if t, ok := m.(*ConnectedTerrain); ok {
			out = append(out, t)
		}
	}
	return out
}

func parentTerrain(t *token) reactive.Readable[*ConnectedTerrain] {
	return memo(t, "parentTerrain", func() *reactive.Derived[*ConnectedTerrain] {
		return reactive.Combine[domain.TokenPayload, []*ConnectedTerrain, *ConnectedTerrain](
			t.payload, t.env.views.unlocked,
			func(p domain.TokenPayload, terrains []*ConnectedTerrain) *ConnectedTerrain {
				return resolveTerrain(p.Path, terrains)
			},
			reactive.Comparable[*ConnectedTerrain])
	})
}

func visible(t *token) reactive.Readable[bool] {
	return memo(t, "visible", func() *reactive.Derived[bool] {
		return reactive.Combine[domain.TokenPayload, []*ConnectedTerrain, bool](
			t.payload, t.env.views.unlocked,
			func(p domain.TokenPayload, terrains []*ConnectedTerrain) bool {
				return t.env.views.visibleAt(p.Path, terrains)
			},
			reactive.Comparable[bool])
	})
}
