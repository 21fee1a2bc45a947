package tokens

import (
	"context"

	"go.uber.org/zap"

	"hoursync/internal/domain"
	"hoursync/internal/reactive"
)

// LegacyAPI reports which game, if any, is loaded.
type LegacyAPI interface {
	GetLegacy(ctx context.Context) (*domain.Legacy, error)
}

// Probe tracks whether the game is running with a legacy loaded. It is meant
// to be registered as its own scheduler task.
type Probe struct {
	api     LegacyAPI
	log     *zap.Logger
	running *reactive.Value[bool]
	legacy  *reactive.Value[*domain.Legacy]
}

// NewProbe creates a Probe that starts out not running.
func NewProbe(api LegacyAPI, log *zap.Logger) *Probe {
	if log == nil {
		log = zap.NewNop()
	}
	return &Probe{
		api:     api,
		log:     log,
		running: reactive.NewValue(false, reactive.Comparable[bool]),
		legacy:  reactive.NewValue[*domain.Legacy](nil, sameLegacy),
	}
}

// Running is true while a legacy is loaded.
func (p *Probe) Running() reactive.Readable[bool] { return p.running }

// Legacy is the loaded legacy or nil.
func (p *Probe) Legacy() reactive.Readable[*domain.Legacy] { return p.legacy }

// Poll asks the game for its legacy. Failures mean "not running".
func (p *Probe) Poll(ctx context.Context) error {
	legacy, err := p.api.GetLegacy(ctx)
	if err != nil {
		if p.running.Set(false) {
			p.log.Info("game unreachable", zap.Error(err))
		}
		p.legacy.Set(nil)
		return nil
	}
	p.legacy.Set(legacy)
	if p.running.Set(legacy != nil) {
		if legacy != nil {
			p.log.Info("game running", zap.String("legacy", legacy.ID))
		} else {
			p.log.Info("game has no legacy loaded")
		}
	}
	return nil
}

func sameLegacy(a, b *domain.Legacy) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}
