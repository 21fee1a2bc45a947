// Package orchestration models crafting a recipe at a situation: choosing the
// situation, filling its slots, executing it and harvesting its output.
//
// An Orchestration is one of three variants. Unstarted may or may not be bound
// to a situation; Ongoing and Completed always are. A Session owns at most one
// live orchestration and switches between variants as the game reports
// progress.
package orchestration

import (
	"context"
	"errors"

	"hoursync/internal/domain"
	"hoursync/internal/reactive"
	"hoursync/internal/tokens"
)

var (
	ErrSlotLocked            = errors.New("slot is locked")
	ErrUnknownSlot           = errors.New("unknown slot")
	ErrCandidateRejected     = errors.New("stack does not fit slot")
	ErrSituationNotUnstarted = errors.New("situation is not unstarted")
	ErrIncompatibleSituation = errors.New("situation cannot run recipe")
	ErrNoSituation           = errors.New("no situation selected")
	ErrBusy                  = errors.New("command already in progress")
	ErrMoveRejected          = errors.New("game rejected move")
	ErrWrongPhase            = errors.New("operation not available in this phase")
	ErrNoOrchestration       = errors.New("no open orchestration")
)

// Phase names the variant of an orchestration.
type Phase string

const (
	PhaseUnstarted Phase = "unstarted"
	PhaseOngoing   Phase = "ongoing"
	PhaseCompleted Phase = "completed"
)

// API is the set of game commands orchestrations issue.
type API interface {
	MoveTokenToPath(ctx context.Context, tokenID, destPath string) (bool, error)
	EvictTokenAtPath(ctx context.Context, path string) error
	ExecuteTokenAtPath(ctx context.Context, path string) (domain.ExecuteResult, error)
	ConcludeTokenAtPath(ctx context.Context, path string) error
	SetRecipeAtPath(ctx context.Context, path, recipeID string) error
	PassTime(ctx context.Context, seconds float64) error
}

// World is the synchronized token graph an orchestration reads from.
// *tokens.Source implements it.
type World interface {
	Tokens() reactive.Readable[[]tokens.Model]
	Views() *tokens.Views
}

// Recorder receives orchestration command events.
type Recorder interface {
	Record(ctx context.Context, evtType, entityKind, entityID, sessionID string, payload map[string]any)
}

// Orchestration is the read surface shared by all variants.
type Orchestration interface {
	ID() string
	Phase() Phase
	Recipe() *domain.Recipe
	Situation() reactive.Readable[*tokens.Situation]
	Label() reactive.Readable[string]
	Description() reactive.Readable[string]
	Aspects() reactive.Readable[domain.Aspects]
	Slots() reactive.Readable[[]*Slot]
	Slot(id string) (*Slot, bool)

	dispose()
}

var (
	_ Orchestration = (*Unstarted)(nil)
	_ Orchestration = (*Ongoing)(nil)
	_ Orchestration = (*Completed)(nil)
)
