package orchestration_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hoursync/internal/domain"
	"hoursync/internal/gameapi"
	"hoursync/internal/orchestration"
	"hoursync/internal/tokens"
)

type fakeGame struct {
	mu       sync.Mutex
	snapshot []domain.TokenPayload

	moves      []string
	moveResult bool
	evicts     []string
	recipes    []string
	executes   int
	concludes  int
	passed     float64

	executeGate    chan struct{}
	executeStarted chan struct{}
	executeErr     error
}

func newFakeGame() *fakeGame { return &fakeGame{moveResult: true} }

func (g *fakeGame) set(payloads ...domain.TokenPayload) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.snapshot = payloads
}

func (g *fakeGame) GetAllTokens(context.Context, gameapi.TokensFilter) ([]domain.TokenPayload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]domain.TokenPayload(nil), g.snapshot...), nil
}

func (g *fakeGame) GetTokenAtPath(_ context.Context, path string) (domain.TokenPayload, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, p := range g.snapshot {
		if p.Path == path {
			return p, nil
		}
	}
	return domain.TokenPayload{}, &gameapi.APIError{StatusCode: 404}
}

func (g *fakeGame) MoveTokenToPath(_ context.Context, id, dest string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.moves = append(g.moves, id+"->"+dest)
	return g.moveResult, nil
}

func (g *fakeGame) EvictTokenAtPath(_ context.Context, path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.evicts = append(g.evicts, path)
	return nil
}

func (g *fakeGame) ExecuteTokenAtPath(context.Context, string) (domain.ExecuteResult, error) {
	g.mu.Lock()
	g.executes++
	gate, started, err := g.executeGate, g.executeStarted, g.executeErr
	g.mu.Unlock()
	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.ExecuteResult{}, err
	}
	return domain.ExecuteResult{ExecutedRecipeLabel: "Study"}, nil
}

func (g *fakeGame) ConcludeTokenAtPath(context.Context, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.concludes++
	return nil
}

func (g *fakeGame) SetRecipeAtPath(_ context.Context, _, recipeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recipes = append(g.recipes, recipeID)
	return nil
}

func (g *fakeGame) PassTime(_ context.Context, seconds float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.passed += seconds
	return nil
}

const (
	room = "~/library/!r3"
	desk = room + "/!desk"
)

func situation(state domain.SituationState, thresholds ...domain.SphereSpec) domain.TokenPayload {
	return domain.TokenPayload{
		ID:          "desk",
		PayloadType: domain.PayloadSituation,
		Path:        desk,
		VerbID:      "study",
		Label:       "Desk",
		State:       state,
		Thresholds:  thresholds,
	}
}

func stack(id, path string, a domain.Aspects) domain.TokenPayload {
	return domain.TokenPayload{ID: id, PayloadType: domain.PayloadElementStack, Path: path, ElementID: id, Quantity: 1, ElementAspects: a}
}

func roomTerrain() domain.TokenPayload {
	return domain.TokenPayload{ID: "r3", PayloadType: domain.PayloadConnectedTerrain, Path: room}
}

type harness struct {
	game    *fakeGame
	source  *tokens.Source
	session *orchestration.Session
}

func newHarness(t *testing.T, payloads ...domain.TokenPayload) *harness {
	t.Helper()
	game := newFakeGame()
	game.set(payloads...)
	src := tokens.NewSource(tokens.NewStore(), game)
	t.Cleanup(src.Views().Close)
	require.NoError(t, src.Poll(context.Background()))
	h := &harness{game: game, source: src, session: orchestration.NewSession(game, src)}
	t.Cleanup(func() { h.session.Close(context.Background()) })
	return h
}

func (h *harness) poll(t *testing.T, payloads ...domain.TokenPayload) {
	t.Helper()
	h.game.set(payloads...)
	require.NoError(t, h.source.Poll(context.Background()))
}

func (h *harness) situation(t *testing.T) *tokens.Situation {
	t.Helper()
	m, ok := h.source.Store().Get("desk")
	require.True(t, ok)
	return m.(*tokens.Situation)
}

func (h *harness) stack(t *testing.T, id string) *tokens.ElementStack {
	t.Helper()
	m, ok := h.source.Store().Get(id)
	require.True(t, ok)
	return m.(*tokens.ElementStack)
}

func stackIDs(stacks []*tokens.ElementStack) []string {
	out := make([]string, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, s.ID())
	}
	return out
}

var lanternSlot = domain.SphereSpec{ID: "s1", Label: "Light", Required: domain.Aspects{"lantern": 1}}

func TestCandidatesRankedByRecipeFit(t *testing.T) {
	h := newHarness(t,
		roomTerrain(),
		situation(domain.StateUnstarted, lanternSlot),
		stack("a", "~/hand.misc/!a", domain.Aspects{"lantern": 3, "other": 1}),
		stack("b", "~/hand.misc/!b", domain.Aspects{"lantern": 1, "other": 9}),
		stack("dull", "~/hand.misc/!dull", domain.Aspects{"other": 20}),
		domain.TokenPayload{ID: "lab", PayloadType: domain.PayloadSituation, Path: room + "/!lab", State: domain.StateOngoing},
		stack("held", room+"/!lab/slot/!held", domain.Aspects{"lantern": 9}),
	)
	recipe := &domain.Recipe{ID: "study.lantern", Label: "Study the Light", Requirements: domain.Aspects{"lantern": 1}}
	o := h.session.OpenForSituation(context.Background(), h.situation(t), recipe)

	slot, ok := o.Slot("s1")
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, stackIDs(slot.Available().Get()))
	assert.Equal(t, "Study the Light", o.Label().Get())
}

func TestAssignIsOptimistic(t *testing.T) {
	payloads := []domain.TokenPayload{
		roomTerrain(),
		situation(domain.StateUnstarted, lanternSlot, domain.SphereSpec{ID: "s2", Required: domain.Aspects{"lantern": 1}}),
		stack("a", "~/hand.misc/!a", domain.Aspects{"lantern": 3}),
		stack("b", "~/hand.misc/!b", domain.Aspects{"lantern": 1}),
	}
	h := newHarness(t, payloads...)
	ctx := context.Background()
	o := h.session.OpenForSituation(ctx, h.situation(t), nil)
	s1, _ := o.Slot("s1")
	s2, _ := o.Slot("s2")
	a := h.stack(t, "a")

	require.NoError(t, s1.Assign(ctx, a))
	assert.Equal(t, []string{"a->" + desk + "/s1"}, h.game.moves)
	assert.Same(t, a, s1.Assignment().Get())
	assert.Equal(t, orchestration.StatusPending, s1.Status().Get())
	assert.Equal(t, domain.Aspects{"lantern": 3}, o.Aspects().Get())
	assert.Equal(t, []string{"b"}, stackIDs(s2.Available().Get()))

	moved := append([]domain.TokenPayload(nil), payloads...)
	moved[2] = stack("a", desk+"/s1/!a", domain.Aspects{"lantern": 3})
	h.poll(t, moved...)
	assert.Same(t, a, s1.Assignment().Get())
	assert.Equal(t, orchestration.StatusConfirmed, s1.Status().Get())
}

func TestRejectedMoveIsKeptUntilReverted(t *testing.T) {
	h := newHarness(t,
		roomTerrain(),
		situation(domain.StateUnstarted, lanternSlot),
		stack("a", "~/hand.misc/!a", domain.Aspects{"lantern": 3}),
	)
	h.game.moveResult = false
	ctx := context.Background()
	o := h.session.OpenForSituation(ctx, h.situation(t), nil)
	slot, _ := o.Slot("s1")

	err := slot.Assign(ctx, h.stack(t, "a"))
	require.ErrorIs(t, err, orchestration.ErrMoveRejected)
	assert.Equal(t, "a", slot.Assignment().Get().ID())
	assert.Equal(t, orchestration.StatusRejected, slot.Status().Get())

	slot.Revert()
	assert.Nil(t, slot.Assignment().Get())
	assert.Equal(t, orchestration.StatusConfirmed, slot.Status().Get())
}

func TestInvalidCommandsAreRejectedLocally(t *testing.T) {
	locked := domain.SphereSpec{ID: "fixed", Greedy: true}
	h := newHarness(t,
		roomTerrain(),
		situation(domain.StateUnstarted, lanternSlot, locked),
		stack("a", "~/hand.misc/!a", domain.Aspects{"lantern": 3}),
		stack("dull", "~/hand.misc/!dull", domain.Aspects{"other": 3}),
	)
	ctx := context.Background()
	o := h.session.OpenForSituation(ctx, h.situation(t), nil)

	fixed, ok := o.Slot("fixed")
	require.True(t, ok)
	assert.True(t, fixed.Locked())
	assert.ErrorIs(t, fixed.Assign(ctx, h.stack(t, "a")), orchestration.ErrSlotLocked)

	s1, _ := o.Slot("s1")
	assert.ErrorIs(t, s1.Assign(ctx, h.stack(t, "dull")), orchestration.ErrCandidateRejected)
	assert.Empty(t, h.game.moves)
}

func TestSelectSituationRequiresUnstarted(t *testing.T) {
	h := newHarness(t, roomTerrain(), situation(domain.StateOngoing))
	u := h.session.Open(context.Background(), nil)

	err := u.SelectSituation(context.Background(), h.situation(t))
	require.ErrorIs(t, err, orchestration.ErrSituationNotUnstarted)
	assert.Nil(t, u.Situation().Get())
	assert.Empty(t, u.AvailableSituations())
}

func TestBindingClearedWhenSituationStarts(t *testing.T) {
	h := newHarness(t, roomTerrain(), situation(domain.StateUnstarted, lanternSlot))
	ctx := context.Background()
	u := h.session.Open(ctx, nil)
	require.Len(t, u.AvailableSituations(), 1)
	require.NoError(t, u.SelectSituation(ctx, h.situation(t)))
	require.Len(t, u.Slots().Get(), 1)

	h.poll(t, roomTerrain(), situation(domain.StateOngoing, lanternSlot))
	assert.Nil(t, u.Situation().Get())
	assert.Empty(t, u.Slots().Get())
	assert.Equal(t, orchestration.Orchestration(u), h.session.Current().Get())
}

func TestConcurrentExecuteCallsGameOnce(t *testing.T) {
	h := newHarness(t, roomTerrain(), situation(domain.StateUnstarted, lanternSlot))
	h.game.executeGate = make(chan struct{})
	h.game.executeStarted = make(chan struct{})
	ctx := context.Background()
	recipe := &domain.Recipe{ID: "study.lantern"}
	o := h.session.OpenForSituation(ctx, h.situation(t), recipe)
	u := o.(*orchestration.Unstarted)

	type result struct {
		ok  bool
		err error
	}
	first := make(chan result, 1)
	go func() {
		ok, err := h.session.Execute(ctx)
		first <- result{ok, err}
	}()
	<-h.game.executeStarted

	ok, err := u.Execute(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, orchestration.ErrBusy)

	close(h.game.executeGate)
	r := <-first
	require.NoError(t, r.err)
	assert.True(t, r.ok)
	assert.Equal(t, 1, h.game.executes)
	assert.Equal(t, []string{"study.lantern"}, h.game.recipes)
	assert.Empty(t, h.situation(t).Thresholds().Get())

	ongoing, isOngoing := h.session.Current().Get().(*orchestration.Ongoing)
	require.True(t, isOngoing)
	assert.Same(t, h.situation(t), ongoing.Situation().Get())
}

func TestFailedExecuteLeavesStateUntouched(t *testing.T) {
	h := newHarness(t, roomTerrain(), situation(domain.StateUnstarted, lanternSlot))
	h.game.executeErr = errors.New("boom")
	ctx := context.Background()
	o := h.session.OpenForSituation(ctx, h.situation(t), nil)

	ok, err := h.session.Execute(ctx)
	require.Error(t, err)
	assert.False(t, ok)
	assert.Equal(t, o, h.session.Current().Get())
	assert.Len(t, h.situation(t).Thresholds().Get(), 1)

	h.game.executeErr = nil
	ok, err = h.session.Execute(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOngoingSwitchesToCompletedAndConcludes(t *testing.T) {
	running := situation(domain.StateOngoing)
	running.CurrentRecipeLabel = "Study the Light"
	h := newHarness(t, roomTerrain(), running)
	ctx := context.Background()
	o := h.session.OpenForSituation(ctx, h.situation(t), nil)
	require.Equal(t, orchestration.PhaseOngoing, o.Phase())
	assert.Equal(t, "Study the Light", o.Label().Get())

	require.NoError(t, h.session.PassTime(ctx, 30))
	assert.Equal(t, 30.0, h.game.passed)

	done := situation(domain.StateComplete)
	done.CurrentRecipeLabel = "Study the Light"
	h.poll(t, roomTerrain(), done, stack("ash", desk+"/"+tokens.OutputSphere+"/!ash", domain.Aspects{"lore": 2}))

	completed, ok := h.session.Current().Get().(*orchestration.Completed)
	require.True(t, ok)
	assert.Equal(t, []string{"ash"}, stackIDs(completed.Output().Get()))

	concluded, err := h.session.Conclude(ctx)
	require.NoError(t, err)
	assert.True(t, concluded)
	assert.Equal(t, 1, h.game.concludes)
	assert.Equal(t, domain.StateUnstarted, h.situation(t).State().Get())
	assert.Nil(t, h.session.Current().Get())
}

func TestAssignedStackContributesSlots(t *testing.T) {
	pouch := stack("pouch", desk+"/s1/!pouch", domain.Aspects{"lantern": 1, "container": 1})
	pouch.Slots = []domain.SphereSpec{
		{ID: "inner", ActionID: "study*", Required: domain.Aspects{"lore": 1}},
		{ID: "elsewhere", ActionID: "work", Required: domain.Aspects{"lore": 1}},
		{ID: "gated", IfAspectsPresent: domain.Aspects{"heart": 1}},
	}
	h := newHarness(t, roomTerrain(), situation(domain.StateUnstarted, lanternSlot), pouch)
	o := h.session.OpenForSituation(context.Background(), h.situation(t), nil)

	var ids []string
	for _, s := range o.Slots().Get() {
		ids = append(ids, s.ID())
	}
	assert.Equal(t, []string{"s1", "inner"}, ids)

	before := o.Slots().Get()
	h.poll(t, roomTerrain(), situation(domain.StateUnstarted, lanternSlot), pouch)
	assert.Equal(t, before, o.Slots().Get())
}

func TestAutofillUsesEachStackOnce(t *testing.T) {
	h := newHarness(t,
		roomTerrain(),
		situation(domain.StateUnstarted, lanternSlot, domain.SphereSpec{ID: "s2", Required: domain.Aspects{"lantern": 1}}),
		stack("a", "~/hand.misc/!a", domain.Aspects{"lantern": 3}),
		stack("b", "~/hand.misc/!b", domain.Aspects{"lantern": 1}),
	)
	ctx := context.Background()
	h.session.OpenForSituation(ctx, h.situation(t), nil)

	n, err := h.session.Autofill(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a->" + desk + "/s1", "b->" + desk + "/s2"}, h.game.moves)
}

func TestCloseDisposesWithoutGameCalls(t *testing.T) {
	h := newHarness(t, roomTerrain(), situation(domain.StateUnstarted, lanternSlot))
	ctx := context.Background()
	h.session.OpenForSituation(ctx, h.situation(t), nil)
	h.session.Close(ctx)

	assert.Nil(t, h.session.Current().Get())
	assert.Empty(t, h.game.moves)
	assert.Empty(t, h.game.evicts)
	_, err := h.session.Execute(ctx)
	assert.ErrorIs(t, err, orchestration.ErrNoOrchestration)
}
