package events

import (
	"context"

	"go.uber.org/zap"

	"hoursync/internal/tokens"
)

// Event types written by the Journal.
const (
	TokenCreated = "token.created"
	TokenRetired = "token.retired"
)

// Journal records token lifecycle and orchestration commands. Write failures
// are logged and never reach the caller.
type Journal struct {
	Writer Writer
	Log    *zap.Logger
}

func (j *Journal) logger() *zap.Logger {
	if j.Log == nil {
		return zap.NewNop()
	}
	return j.Log
}

// TokenCreated implements tokens.Observer.
func (j *Journal) TokenCreated(m tokens.Model) {
	j.append(context.Background(), TokenCreated, "token", m.ID(), "", tokenPayload(m))
}

// TokenRetired implements tokens.Observer.
func (j *Journal) TokenRetired(m tokens.Model) {
	j.append(context.Background(), TokenRetired, "token", m.ID(), "", tokenPayload(m))
}

// Record implements orchestration.Recorder.
func (j *Journal) Record(ctx context.Context, evtType, entityKind, entityID, sessionID string, payload map[string]any) {
	j.append(ctx, evtType, entityKind, entityID, sessionID, payload)
}

func (j *Journal) append(ctx context.Context, evtType, entityKind, entityID, sessionID string, payload EventPayload) {
	if err := j.Writer.Append(ctx, evtType, entityKind, entityID, sessionID, payload); err != nil {
		j.logger().Warn("journal append failed", zap.String("type", evtType), zap.String("entity", entityID), zap.Error(err))
	}
}

func tokenPayload(m tokens.Model) EventPayload {
	p := m.Payload()
	out := EventPayload{
		"payload_type": string(p.PayloadType),
		"path":         p.Path,
	}
	if p.ElementID != "" {
		out["element_id"] = p.ElementID
	}
	if p.VerbID != "" {
		out["verb_id"] = p.VerbID
	}
	if p.Label != "" {
		out["label"] = p.Label
	}
	return out
}
