package orchestration

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hoursync/internal/domain"
	"hoursync/internal/reactive"
	"hoursync/internal/tokens"
)

// Session owns the single live orchestration. Opening a new one disposes the
// previous one.
type Session struct {
	deps

	mu      sync.Mutex
	live    Orchestration
	current *reactive.Value[Orchestration]
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// WithRecorder journals orchestration commands.
func WithRecorder(r Recorder) SessionOption {
	return func(s *Session) { s.rec = r }
}

// NewSession creates a Session with no open orchestration.
func NewSession(api API, world World, opts ...SessionOption) *Session {
	s := &Session{
		deps: deps{
			sessionID: uuid.NewString(),
			api:       api,
			world:     world,
			log:       zap.NewNop(),
		},
		current: reactive.NewValue[Orchestration](nil, func(a, b Orchestration) bool { return a == b }),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// ID identifies this session in journal events.
func (s *Session) ID() string { return s.sessionID }

// Current is the live orchestration or nil.
func (s *Session) Current() reactive.Readable[Orchestration] { return s.current }

// Open starts an unstarted orchestration for recipe with no situation
// selected. recipe may be nil for freeform crafting.
func (s *Session) Open(ctx context.Context, recipe *domain.Recipe) *Unstarted {
	u := newUnstarted(s.deps, uuid.NewString(), recipe, nil)
	s.replace(ctx, u, "freeform")
	return u
}

// OpenForSituation opens the variant matching the situation's current state.
func (s *Session) OpenForSituation(ctx context.Context, sit *tokens.Situation, recipe *domain.Recipe) Orchestration {
	var o Orchestration
	switch sit.State().Get() {
	case domain.StateUnstarted:
		o = newUnstarted(s.deps, uuid.NewString(), recipe, sit)
	case domain.StateComplete:
		o = newCompleted(s.deps, uuid.NewString(), recipe, sit)
	default:
		return s.openOngoing(ctx, sit, recipe)
	}
	s.replace(ctx, o, sit.ID())
	return o
}

// Close disposes the live orchestration. It never contacts the game.
func (s *Session) Close(ctx context.Context) {
	s.replace(ctx, nil, "")
}

// Execute executes the live unstarted orchestration and switches to an
// ongoing one bound to the same situation.
func (s *Session) Execute(ctx context.Context) (bool, error) {
	u, ok := s.current.Get().(*Unstarted)
	if !ok {
		return false, s.phaseError("execute")
	}
	sit := u.situation.Get()
	done, err := u.Execute(ctx)
	if !done {
		return false, err
	}
	s.openOngoing(ctx, sit, u.recipe)
	return true, nil
}

// Conclude concludes the live completed orchestration and closes it.
func (s *Session) Conclude(ctx context.Context) (bool, error) {
	c, ok := s.current.Get().(*Completed)
	if !ok {
		return false, s.phaseError("conclude")
	}
	done, err := c.Conclude(ctx)
	if !done {
		return false, err
	}
	s.Close(ctx)
	return true, nil
}

// PassTime advances the game clock for the live ongoing orchestration.
func (s *Session) PassTime(ctx context.Context, seconds float64) error {
	o, ok := s.current.Get().(*Ongoing)
	if !ok {
		return s.phaseError("pass time")
	}
	return o.PassTime(ctx, seconds)
}

// Autofill fills the empty slots of the live orchestration.
func (s *Session) Autofill(ctx context.Context) (int, error) {
	switch o := s.current.Get().(type) {
	case *Unstarted:
		return o.Autofill(ctx)
	case *Ongoing:
		return o.Autofill(ctx)
	}
	return 0, s.phaseError("autofill")
}

func (s *Session) phaseError(op string) error {
	o := s.current.Get()
	if o == nil {
		return ErrNoOrchestration
	}
	return fmt.Errorf("%w: %s while %s", ErrWrongPhase, op, o.Phase())
}

func (s *Session) openOngoing(ctx context.Context, sit *tokens.Situation, recipe *domain.Recipe) *Ongoing {
	var o *Ongoing
	o = newOngoing(s.deps, uuid.NewString(), recipe, sit, func(sit *tokens.Situation, p domain.TokenPayload) {
		if p.State == domain.StateComplete {
			s.complete(context.Background(), o, sit)
		}
	})
	s.replace(ctx, o, sit.ID())
	if sit.State().Get() == domain.StateComplete {
		s.complete(ctx, o, sit)
	}
	return o
}

// complete switches from o to a completed orchestration, unless o is no
// longer live.
func (s *Session) complete(ctx context.Context, o *Ongoing, sit *tokens.Situation) {
	s.mu.Lock()
	live := s.live == Orchestration(o)
	s.mu.Unlock()
	if !live {
		return
	}
	s.log.Info("recipe completed", zap.String("situation", sit.ID()))
	c := newCompleted(s.deps, uuid.NewString(), o.recipe, sit)
	s.replace(ctx, c, sit.ID())
}

func (s *Session) replace(ctx context.Context, next Orchestration, target string) {
	s.mu.Lock()
	prev := s.live
	if next == nil && prev == nil {
		s.mu.Unlock()
		return
	}
	s.live = next
	s.mu.Unlock()

	if prev != nil {
		prev.dispose()
		s.record(ctx, "orchestration.close", prev.ID(), map[string]any{"phase": string(prev.Phase())})
	}
	if next != nil {
		s.log.Debug("orchestration opened", zap.String("orchestration", next.ID()),
			zap.String("phase", string(next.Phase())), zap.String("target", target))
		s.record(ctx, "orchestration.open", next.ID(), map[string]any{
			"phase":  string(next.Phase()),
			"target": target,
		})
	}
	s.current.Set(next)
}
