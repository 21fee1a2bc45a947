package server

import (
	"hoursync/internal/domain"
	"hoursync/internal/orchestration"
	"hoursync/internal/tokens"
)

// Request payloads

type OpenOrchestrationRequest struct {
	RecipeID    string `json:"recipe_id,omitempty"`
	SituationID string `json:"situation_id,omitempty"`
}

type SelectSituationRequest struct {
	// Empty clears the selection.
	SituationID string `json:"situation_id,omitempty"`
}

type AssignSlotRequest struct {
	// Empty evicts the slot.
	TokenID string `json:"token_id,omitempty"`
}

type PassTimeRequest struct {
	Seconds float64 `json:"seconds" minimum:"0" exclusiveMinimum:"0"`
}

// Response payloads

type StatusResponse struct {
	Running   bool   `json:"running"`
	Legacy    string `json:"legacy,omitempty"`
	Tokens    int    `json:"tokens"`
	Visible   int    `json:"visible"`
	SessionID string `json:"session_id"`
	Fatal     string `json:"fatal,omitempty"`
}

type TokenResponse struct {
	ID          string         `json:"id"`
	PayloadType string         `json:"payload_type"`
	Path        string         `json:"path"`
	Label       string         `json:"label,omitempty"`
	ElementID   string         `json:"element_id,omitempty"`
	Quantity    int            `json:"quantity,omitempty"`
	Aspects     domain.Aspects `json:"aspects,omitempty"`
	Shrouded    bool           `json:"shrouded,omitempty"`
	Visible     bool           `json:"visible"`
	Terrain     string         `json:"terrain,omitempty"`
}

type SituationResponse struct {
	ID            string            `json:"id"`
	Path          string            `json:"path"`
	VerbID        string            `json:"verb_id"`
	Label         string            `json:"label,omitempty"`
	State         string            `json:"state"`
	RecipeID      string            `json:"recipe_id,omitempty"`
	RecipeLabel   string            `json:"recipe_label,omitempty"`
	TimeRemaining float64           `json:"time_remaining,omitempty"`
	Slots         map[string]string `json:"slots,omitempty"`
	Output        []string          `json:"output,omitempty"`
}

type SlotResponse struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Locked      bool     `json:"locked"`
	Assignment  string   `json:"assignment,omitempty"`
	Status      string   `json:"status"`
	Available   []string `json:"available"`
}

type OrchestrationResponse struct {
	ID            string         `json:"id"`
	Phase         string         `json:"phase"`
	RecipeID      string         `json:"recipe_id,omitempty"`
	SituationID   string         `json:"situation_id,omitempty"`
	Label         string         `json:"label"`
	Description   string         `json:"description,omitempty"`
	Aspects       domain.Aspects `json:"aspects"`
	Slots         []SlotResponse `json:"slots"`
	TimeRemaining float64        `json:"time_remaining,omitempty"`
	Output        []string       `json:"output,omitempty"`
}

type ExecuteResponse struct {
	Executed    bool   `json:"executed"`
	RecipeID    string `json:"recipe_id,omitempty"`
	RecipeLabel string `json:"recipe_label,omitempty"`
}

type AutofillResponse struct {
	Filled int `json:"filled"`
}

type EventResponse struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Payload    string `json:"payload_json"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func tokenResponse(m tokens.Model) TokenResponse {
	p := m.Payload()
	res := TokenResponse{
		ID:          m.ID(),
		PayloadType: string(m.PayloadType()),
		Path:        p.Path,
		Label:       p.Label,
		Shrouded:    p.Shrouded,
	}
	var terrain *tokens.ConnectedTerrain
	switch t := m.(type) {
	case *tokens.ElementStack:
		res.ElementID = p.ElementID
		res.Quantity = p.Quantity
		res.Aspects = t.AspectsNow()
		res.Visible = t.Visible().Get()
		terrain = t.ParentTerrain().Get()
	case *tokens.Situation:
		res.Aspects = p.Aspects
		res.Visible = t.Visible().Get()
		terrain = t.ParentTerrain().Get()
	case *tokens.ConnectedTerrain:
		res.Visible = !p.Shrouded
	}
	if terrain != nil {
		res.Terrain = terrain.ID()
	}
	return res
}

func mapTokens(items []tokens.Model) []TokenResponse {
	res := make([]TokenResponse, 0, len(items))
	for _, m := range items {
		res = append(res, tokenResponse(m))
	}
	return res
}

func situationResponse(s *tokens.Situation) SituationResponse {
	p := s.Payload()
	res := SituationResponse{
		ID:            s.ID(),
		Path:          p.Path,
		VerbID:        p.VerbID,
		Label:         s.Label().Get(),
		State:         string(p.State),
		RecipeID:      s.RecipeID().Get(),
		RecipeLabel:   s.RecipeLabel().Get(),
		TimeRemaining: p.TimeRemaining,
	}
	if contents := s.SlotContents().Get(); len(contents) > 0 {
		res.Slots = make(map[string]string, len(contents))
		for slot, stack := range contents {
			res.Slots[slot] = stack.ID()
		}
	}
	res.Output = stackIDs(s.Output().Get())
	return res
}

func orchestrationResponse(o orchestration.Orchestration) OrchestrationResponse {
	res := OrchestrationResponse{
		ID:          o.ID(),
		Phase:       string(o.Phase()),
		Label:       o.Label().Get(),
		Description: o.Description().Get(),
		Aspects:     o.Aspects().Get(),
		Slots:       []SlotResponse{},
	}
	if res.Aspects == nil {
		res.Aspects = domain.Aspects{}
	}
	if r := o.Recipe(); r != nil {
		res.RecipeID = r.ID
	}
	if sit := o.Situation().Get(); sit != nil {
		res.SituationID = sit.ID()
	}
	for _, slot := range o.Slots().Get() {
		res.Slots = append(res.Slots, slotResponse(slot))
	}
	switch v := o.(type) {
	case *orchestration.Ongoing:
		res.TimeRemaining = v.TimeRemaining().Get()
	case *orchestration.Completed:
		res.Output = stackIDs(v.Output().Get())
	}
	return res
}

func slotResponse(s *orchestration.Slot) SlotResponse {
	spec := s.Spec().Get()
	res := SlotResponse{
		ID:          s.ID(),
		Label:       spec.Label,
		Description: spec.Description,
		Locked:      s.Locked(),
		Status:      string(s.Status().Get()),
		Available:   stackIDs(s.Available().Get()),
	}
	if res.Available == nil {
		res.Available = []string{}
	}
	if stack := s.Assignment().Get(); stack != nil {
		res.Assignment = stack.ID()
	}
	return res
}

func eventResponse(evt domain.Event) EventResponse {
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		SessionID:  evt.SessionID,
		Payload:    evt.Payload,
	}
}

func stackIDs(stacks []*tokens.ElementStack) []string {
	if len(stacks) == 0 {
		return nil
	}
	out := make([]string, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, s.ID())
	}
	return out
}
