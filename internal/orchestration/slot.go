package orchestration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"hoursync/internal/aspects"
	"hoursync/internal/domain"
	"hoursync/internal/reactive"
	"hoursync/internal/tokens"
)

// AssignmentStatus tells whether a slot's assignment is what the game last
// reported.
type AssignmentStatus string

const (
	// StatusConfirmed means the assignment matches the game.
	StatusConfirmed AssignmentStatus = "confirmed"
	// StatusPending means the game accepted the command but has not been
	// polled since.
	StatusPending AssignmentStatus = "pending"
	// StatusRejected means the game refused the command. The local assignment
	// is kept until Revert or until the game reports a different content.
	StatusRejected AssignmentStatus = "rejected"
)

// Slot is one receptacle of an orchestration.
type Slot struct {
	core *core
	id   string

	spec       *reactive.Value[domain.SphereSpec]
	assignment *reactive.Value[*tokens.ElementStack]
	status     *reactive.Value[AssignmentStatus]
	available  *reactive.Value[[]*tokens.ElementStack]
}

func newSlot(c *core, spec domain.SphereSpec) *Slot {
	return &Slot{
		core:       c,
		id:         spec.ID,
		spec:       reactive.NewValue(spec, specEqual),
		assignment: reactive.NewValue[*tokens.ElementStack](nil, reactive.Comparable[*tokens.ElementStack]),
		status:     reactive.NewValue(StatusConfirmed, reactive.Comparable[AssignmentStatus]),
		available:  reactive.NewValue[[]*tokens.ElementStack](nil, reactive.SameElements[*tokens.ElementStack]),
	}
}

func (s *Slot) ID() string                                  { return s.id }
func (s *Slot) Spec() reactive.Readable[domain.SphereSpec] { return s.spec }

// Locked slots are filled by the game and cannot be reassigned.
func (s *Slot) Locked() bool { return s.spec.Get().Greedy }

func (s *Slot) Assignment() reactive.Readable[*tokens.ElementStack] { return s.assignment }
func (s *Slot) Status() reactive.Readable[AssignmentStatus]         { return s.status }

// Available lists the stacks that can be assigned, best fit first.
func (s *Slot) Available() reactive.Readable[[]*tokens.ElementStack] { return s.available }

// Candidates computes the available stacks from the current state without
// waiting for the next change notification.
func (s *Slot) Candidates() []*tokens.ElementStack { return s.core.candidates(s) }

// Assign moves stack into the slot, or empties the slot when stack is nil.
// The local assignment changes right away, even when the game refuses.
func (s *Slot) Assign(ctx context.Context, stack *tokens.ElementStack) error {
	c := s.core
	spec := s.spec.Get()
	if spec.Greedy {
		return fmt.Errorf("%w: %s", ErrSlotLocked, s.id)
	}
	sit := c.situation.Get()
	if sit == nil {
		return ErrNoSituation
	}
	current := s.assignment.Get()
	if stack == current {
		return nil
	}
	if stack != nil {
		if !aspects.Matches(spec, stack.AspectsNow()) || c.assignedElsewhere(stack, s.id) {
			return fmt.Errorf("%w: %s into %s", ErrCandidateRejected, stack.ID(), s.id)
		}
	}

	base := sit.SlotContents().Get()[s.id]
	var err error
	if stack == nil {
		err = c.api.EvictTokenAtPath(ctx, current.Path())
	} else {
		ok, moveErr := c.api.MoveTokenToPath(ctx, stack.ID(), sit.SlotPath(s.id))
		switch {
		case moveErr != nil:
			err = moveErr
		case !ok:
			err = ErrMoveRejected
		}
	}

	status := StatusPending
	if err != nil {
		status = StatusRejected
		c.log.Warn("slot assignment rejected", zap.String("slot", s.id), zap.Error(err))
	}
	c.setOverride(s.id, override{stack: stack, base: base, status: status})

	payload := map[string]any{"slot": s.id, "situation": sit.ID(), "status": string(status)}
	if stack != nil {
		payload["stack"] = stack.ID()
	}
	c.record(ctx, "orchestration.assign", c.id, payload)
	if err != nil {
		return fmt.Errorf("assign %s: %w", s.id, err)
	}
	return nil
}

// Revert drops a local assignment and shows what the game last reported.
func (s *Slot) Revert() {
	s.core.dropOverride(s.id)
}

func specEqual(a, b domain.SphereSpec) bool {
	return a.ID == b.ID && a.Label == b.Label && a.Description == b.Description &&
		a.ActionID == b.ActionID && a.Greedy == b.Greedy &&
		aspects.Equal(a.Essential, b.Essential) && aspects.Equal(a.Required, b.Required) &&
		aspects.Equal(a.Forbidden, b.Forbidden) && aspects.Equal(a.IfAspectsPresent, b.IfAspectsPresent)
}
