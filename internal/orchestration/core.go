package orchestration

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"hoursync/internal/aspects"
	"hoursync/internal/domain"
	"hoursync/internal/reactive"
	"hoursync/internal/tokens"
)

// deps are the collaborators every variant shares with its Session.
type deps struct {
	sessionID string
	api       API
	world     World
	log       *zap.Logger
	rec       Recorder
}

func (d deps) record(ctx context.Context, evtType, entityID string, payload map[string]any) {
	if d.rec == nil {
		return
	}
	d.rec.Record(ctx, evtType, "orchestration", entityID, d.sessionID, payload)
}

// override is a local assignment the game has not confirmed yet. base is what
// the game reported for the slot when the assignment was made.
type override struct {
	stack  *tokens.ElementStack
	base   *tokens.ElementStack
	status AssignmentStatus
}

// hooks let a variant react to its situation.
type hooks struct {
	label       func(sit *tokens.Situation, p domain.TokenPayload) string
	description func(sit *tokens.Situation, p domain.TokenPayload) string
	onPayload   func(sit *tokens.Situation, p domain.TokenPayload)
	onRetired   func(sit *tokens.Situation)
}

// core holds the slot machinery shared by all variants.
type core struct {
	deps
	id      string
	phase   Phase
	recipe  *domain.Recipe
	slotted bool
	hooks   hooks

	situation   *reactive.Value[*tokens.Situation]
	slots       *reactive.Value[[]*Slot]
	aspects     *reactive.Value[domain.Aspects]
	label       *reactive.Value[string]
	description *reactive.Value[string]

	mu         sync.Mutex
	overrides  map[string]override
	assigned   map[string]*tokens.ElementStack
	byID       map[string]*Slot
	key        string
	keyed      bool
	innerStops []func()
	stops      []func()
	disposed   bool

	recomputeMu sync.Mutex
}

func newCore(d deps, id string, phase Phase, recipe *domain.Recipe, slotted bool, h hooks) *core {
	return &core{
		deps:        d,
		id:          id,
		phase:       phase,
		recipe:      recipe,
		slotted:     slotted,
		hooks:       h,
		situation:   reactive.NewValue[*tokens.Situation](nil, reactive.Comparable[*tokens.Situation]),
		slots:       reactive.NewValue[[]*Slot](nil, reactive.SameElements[*Slot]),
		aspects:     reactive.NewValue(domain.Aspects{}, aspects.Equal),
		label:       reactive.NewValue("", reactive.Comparable[string]),
		description: reactive.NewValue("", reactive.Comparable[string]),
		overrides:   make(map[string]override),
		assigned:    make(map[string]*tokens.ElementStack),
		byID:        make(map[string]*Slot),
	}
}

// start binds sit and begins following the world. Variants call it once
// their hooks are in place.
func (c *core) start(sit *tokens.Situation) {
	c.situation.Set(sit)
	stops := []func(){
		c.situation.Subscribe(c.bind),
		c.world.Views().Visible().Subscribe(func([]tokens.Model) { c.refreshCandidates() }),
	}
	c.mu.Lock()
	c.stops = stops
	c.mu.Unlock()
}

func (c *core) ID() string                                      { return c.id }
func (c *core) Phase() Phase                                    { return c.phase }
func (c *core) Recipe() *domain.Recipe                          { return c.recipe }
func (c *core) Situation() reactive.Readable[*tokens.Situation] { return c.situation }
func (c *core) Label() reactive.Readable[string]                { return c.label }
func (c *core) Description() reactive.Readable[string]          { return c.description }

// Aspects is the sum of the aspects of all assigned stacks.
func (c *core) Aspects() reactive.Readable[domain.Aspects] { return c.aspects }

// Slots lists the active slots in threshold order.
func (c *core) Slots() reactive.Readable[[]*Slot] { return c.slots }

func (c *core) Slot(id string) (*Slot, bool) {
	for _, s := range c.slots.Get() {
		if s.id == id {
			return s, true
		}
	}
	return nil, false
}

func (c *core) dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	stops := append(c.stops, c.innerStops...)
	c.stops, c.innerStops = nil, nil
	c.mu.Unlock()
	for _, stop := range stops {
		stop()
	}
}

func (c *core) bind(sit *tokens.Situation) {
	c.mu.Lock()
	old := c.innerStops
	c.innerStops = nil
	c.overrides = make(map[string]override)
	c.keyed = false
	c.mu.Unlock()
	for _, stop := range old {
		stop()
	}

	var stops []func()
	if sit != nil {
		stops = append(stops,
			sit.PayloadValue().Subscribe(func(p domain.TokenPayload) {
				c.recompute()
				if c.hooks.onPayload != nil && c.situation.Get() == sit {
					c.hooks.onPayload(sit, p)
				}
			}),
			sit.SlotContents().Subscribe(func(map[string]*tokens.ElementStack) { c.recompute() }),
			sit.Retired().Subscribe(func(retired bool) {
				if retired && c.hooks.onRetired != nil && c.situation.Get() == sit {
					c.hooks.onRetired(sit)
				}
			}),
		)
	}

	c.mu.Lock()
	// A hook may have rebound the situation while the subscriptions above
	// replayed.
	if c.disposed || c.situation.Get() != sit {
		c.mu.Unlock()
		for _, stop := range stops {
			stop()
		}
		return
	}
	c.innerStops = stops
	c.mu.Unlock()
	c.recompute()
}

func (c *core) setOverride(slotID string, o override) {
	c.mu.Lock()
	c.overrides[slotID] = o
	c.mu.Unlock()
	c.recompute()
}

func (c *core) dropOverride(slotID string) {
	c.mu.Lock()
	delete(c.overrides, slotID)
	c.mu.Unlock()
	c.recompute()
}

type slotUpdate struct {
	slot     *Slot
	spec     domain.SphereSpec
	assigned *tokens.ElementStack
	status   AssignmentStatus
}

func (c *core) recompute() {
	c.recomputeMu.Lock()
	defer c.recomputeMu.Unlock()

	sit := c.situation.Get()
	var p domain.TokenPayload
	var confirmed map[string]*tokens.ElementStack
	if sit != nil {
		p = sit.Payload()
		confirmed = sit.SlotContents().Get()
	}

	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	for id, o := range c.overrides {
		current := confirmed[id]
		if current != o.base || current == o.stack {
			delete(c.overrides, id)
		}
	}
	assigned := make(map[string]*tokens.ElementStack)
	if c.slotted {
		for id, stack := range confirmed {
			assigned[id] = stack
		}
		for id, o := range c.overrides {
			if o.stack == nil {
				delete(assigned, id)
			} else {
				assigned[id] = o.stack
			}
		}
	}
	for id, stack := range assigned {
		if stack.Retired().Get() {
			delete(assigned, id)
		}
	}
	c.assigned = assigned

	sets := make([]domain.Aspects, 0, len(assigned))
	for _, stack := range assigned {
		sets = append(sets, stack.AspectsNow())
	}
	aggregate := aspects.Combine(sets...)

	var list []*Slot
	var updates []slotUpdate
	if key := slotKey(p, assigned); !c.keyed || key != c.key {
		c.key, c.keyed = key, true
		var specs []domain.SphereSpec
		if c.slotted && sit != nil {
			specs = slotSpecs(p, assigned, aggregate)
		}
		byID := make(map[string]*Slot, len(specs))
		for _, spec := range specs {
			s, ok := c.byID[spec.ID]
			if !ok {
				s = newSlot(c, spec)
			}
			byID[spec.ID] = s
			list = append(list, s)
		}
		c.byID = byID
	} else {
		list = c.slots.Get()
	}
	for _, s := range list {
		u := slotUpdate{slot: s, assigned: assigned[s.id], status: StatusConfirmed}
		if spec, ok := specOf(p, assigned, s.id); ok {
			u.spec = spec
		} else {
			u.spec = s.spec.Get()
		}
		if o, ok := c.overrides[s.id]; ok {
			u.status = o.status
		}
		updates = append(updates, u)
	}
	c.mu.Unlock()

	for _, u := range updates {
		u.slot.spec.Set(u.spec)
		u.slot.assignment.Set(u.assigned)
		u.slot.status.Set(u.status)
	}
	c.slots.Set(list)
	c.aspects.Set(aggregate)
	if c.hooks.label != nil {
		c.label.Set(c.hooks.label(sit, p))
	}
	if c.hooks.description != nil {
		c.description.Set(c.hooks.description(sit, p))
	}
	c.refreshCandidatesLocked()
}

func (c *core) refreshCandidates() {
	c.recomputeMu.Lock()
	defer c.recomputeMu.Unlock()
	c.refreshCandidatesLocked()
}

func (c *core) refreshCandidatesLocked() {
	for _, s := range c.slots.Get() {
		s.available.Set(c.candidates(s))
	}
}

// candidates lists the visible stacks that may go into s, best fit first.
func (c *core) candidates(s *Slot) []*tokens.ElementStack {
	spec := s.spec.Get()
	bound := c.situation.Get()

	var others []*tokens.Situation
	for _, m := range c.world.Tokens().Get() {
		if sit, ok := m.(*tokens.Situation); ok && sit != bound {
			others = append(others, sit)
		}
	}

	c.mu.Lock()
	elsewhere := make(map[*tokens.ElementStack]bool, len(c.assigned))
	for id, stack := range c.assigned {
		if id != s.id {
			elsewhere[stack] = true
		}
	}
	c.mu.Unlock()

	var out []*tokens.ElementStack
	for _, m := range c.world.Views().Visible().Get() {
		stack, ok := m.(*tokens.ElementStack)
		if !ok || elsewhere[stack] || !reachable(stack, others) {
			continue
		}
		if !aspects.Matches(spec, stack.AspectsNow()) {
			continue
		}
		out = append(out, stack)
	}
	c.rank(out)
	return out
}

func (c *core) rank(stacks []*tokens.ElementStack) {
	var requirements domain.Aspects
	if c.recipe != nil {
		requirements = c.recipe.Requirements
	}
	sort.SliceStable(stacks, func(i, j int) bool {
		ai, aj := stacks[i].AspectsNow(), stacks[j].AspectsNow()
		if ri, rj := aspects.MagnitudeOf(ai, requirements), aspects.MagnitudeOf(aj, requirements); ri != rj {
			return ri > rj
		}
		if mi, mj := aspects.Magnitude(ai), aspects.Magnitude(aj); mi != mj {
			return mi > mj
		}
		return stacks[i].ID() < stacks[j].ID()
	})
}

func (c *core) assignedElsewhere(stack *tokens.ElementStack, slotID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, s := range c.assigned {
		if s == stack && id != slotID {
			return true
		}
	}
	return false
}

// autofill puts the best candidate into every empty unlocked slot, in slot
// order.
func (c *core) autofill(ctx context.Context) (int, error) {
	filled := 0
	used := make(map[*tokens.ElementStack]bool)
	for _, s := range c.slots.Get() {
		if s.Locked() || s.assignment.Get() != nil {
			continue
		}
		for _, stack := range c.candidates(s) {
			if used[stack] {
				continue
			}
			if err := s.Assign(ctx, stack); err != nil {
				return filled, err
			}
			used[stack] = true
			filled++
			break
		}
	}
	return filled, nil
}

// reachable excludes stacks held by situations other than the bound one.
func reachable(stack *tokens.ElementStack, others []*tokens.Situation) bool {
	if stack.Payload().Shrouded {
		return false
	}
	for _, sit := range others {
		if tokens.Within(stack.Path(), sit.Path()) {
			return false
		}
	}
	return true
}

// slotSpecs gathers the situation's thresholds and the slots carried by
// assigned stacks, keeping those whose action pattern and aspect gate admit
// them. The first spec with a given id wins.
func slotSpecs(p domain.TokenPayload, assigned map[string]*tokens.ElementStack, aggregate domain.Aspects) []domain.SphereSpec {
	all := append([]domain.SphereSpec(nil), p.Thresholds...)
	for _, id := range sortedSlotIDs(assigned) {
		all = append(all, assigned[id].Payload().Slots...)
	}
	seen := make(map[string]bool, len(all))
	var out []domain.SphereSpec
	for _, spec := range all {
		if seen[spec.ID] {
			continue
		}
		if !aspects.ActionMatches(spec.ActionID, p.VerbID) || !aspects.GateOpen(spec, aggregate) {
			continue
		}
		seen[spec.ID] = true
		out = append(out, spec)
	}
	return out
}

func specOf(p domain.TokenPayload, assigned map[string]*tokens.ElementStack, id string) (domain.SphereSpec, bool) {
	for _, spec := range p.Thresholds {
		if spec.ID == id {
			return spec, true
		}
	}
	for _, slotID := range sortedSlotIDs(assigned) {
		for _, spec := range assigned[slotID].Payload().Slots {
			if spec.ID == id {
				return spec, true
			}
		}
	}
	return domain.SphereSpec{}, false
}

// slotKey captures every input of slotSpecs in a canonical order, so that the
// same stacks assigned in a different arrangement yield the same key.
func slotKey(p domain.TokenPayload, assigned map[string]*tokens.ElementStack) string {
	var b strings.Builder
	b.WriteString(p.VerbID)
	for _, spec := range p.Thresholds {
		b.WriteString("|t:")
		b.WriteString(spec.ID)
		b.WriteString(":")
		b.WriteString(spec.ActionID)
		b.WriteString(":")
		b.WriteString(strconv.FormatBool(spec.Greedy))
		writeAspects(&b, spec.Essential)
		writeAspects(&b, spec.Required)
		writeAspects(&b, spec.Forbidden)
		writeAspects(&b, spec.IfAspectsPresent)
	}
	ids := make([]string, 0, len(assigned))
	for _, stack := range assigned {
		ids = append(ids, stack.ID())
	}
	sort.Strings(ids)
	for _, id := range ids {
		b.WriteString("|a:")
		b.WriteString(id)
	}
	return b.String()
}

func writeAspects(b *strings.Builder, a domain.Aspects) {
	b.WriteString("{")
	for _, key := range aspects.Keys(a) {
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(strconv.Itoa(a[key]))
		b.WriteString(",")
	}
	b.WriteString("}")
}

func sortedSlotIDs(assigned map[string]*tokens.ElementStack) []string {
	ids := make([]string, 0, len(assigned))
	for id := range assigned {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
