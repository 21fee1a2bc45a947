package domain

// Aspects maps an aspect id to its quantity.
type Aspects map[string]int

// PayloadType discriminates the kind of a token payload.
type PayloadType string

const (
	PayloadElementStack         PayloadType = "ElementStack"
	PayloadSituation            PayloadType = "Situation"
	PayloadWorkstationSituation PayloadType = "WorkstationSituation"
	PayloadConnectedTerrain     PayloadType = "ConnectedTerrain"
	PayloadWisdomNodeTerrain    PayloadType = "WisdomNodeTerrain"
)

// SituationState is the lifecycle state reported for a situation.
type SituationState string

const (
	StateUnstarted          SituationState = "Unstarted"
	StateRequiringExecution SituationState = "RequiringExecution"
	StateOngoing            SituationState = "Ongoing"
	StateComplete           SituationState = "Complete"
	StateHalting            SituationState = "Halting"
	StateInchoate           SituationState = "Inchoate"
)

// SphereSpec describes a slot that accepts element stacks matching its
// aspect thresholds. Negative threshold values mean "strictly below".
type SphereSpec struct {
	ID               string  `json:"id"`
	Label            string  `json:"label"`
	Description      string  `json:"description,omitempty"`
	Essential        Aspects `json:"essential,omitempty"`
	Required         Aspects `json:"required,omitempty"`
	Forbidden        Aspects `json:"forbidden,omitempty"`
	IfAspectsPresent Aspects `json:"ifAspectsPresent,omitempty"`
	ActionID         string  `json:"actionId,omitempty"`
	Greedy           bool    `json:"greedy,omitempty"`
}

// TokenPayload is a raw token as returned by the game API. Fields that do not
// apply to a payload type are left zero.
type TokenPayload struct {
	ID          string      `json:"id"`
	PayloadType PayloadType `json:"payloadType"`
	Path        string      `json:"path"`
	Label       string      `json:"label,omitempty"`
	Description string      `json:"description,omitempty"`

	// Element stacks.
	ElementID         string       `json:"elementId,omitempty"`
	Quantity          int          `json:"quantity,omitempty"`
	LifetimeRemaining float64      `json:"lifetimeRemaining,omitempty"`
	Decays            bool         `json:"decays,omitempty"`
	ElementAspects    Aspects      `json:"elementAspects,omitempty"`
	Mutations         Aspects      `json:"mutations,omitempty"`
	Slots             []SphereSpec `json:"slots,omitempty"`

	// Situations.
	VerbID             string         `json:"verbId,omitempty"`
	State              SituationState `json:"state,omitempty"`
	RecipeID           string         `json:"recipeId,omitempty"`
	RecipeLabel        string         `json:"recipeLabel,omitempty"`
	CurrentRecipeID    string         `json:"currentRecipeId,omitempty"`
	CurrentRecipeLabel string         `json:"currentRecipeLabel,omitempty"`
	Aspects            Aspects        `json:"aspects,omitempty"`
	Hints              []string       `json:"hints,omitempty"`
	TimeRemaining      float64        `json:"timeRemaining,omitempty"`
	Thresholds         []SphereSpec   `json:"thresholds,omitempty"`

	// Terrains. Shrouded also applies to element stacks.
	Shrouded bool `json:"shrouded,omitempty"`
	Sealed   bool `json:"sealed,omitempty"`

	// Wisdom nodes.
	WisdomRecipeID    string `json:"wisdomRecipeId,omitempty"`
	WisdomRecipeLabel string `json:"wisdomRecipeLabel,omitempty"`
}

// Recipe is the compendium data for a recipe.
type Recipe struct {
	ID           string  `json:"id"`
	Label        string  `json:"label"`
	Description  string  `json:"description,omitempty"`
	ActionID     string  `json:"actionId"`
	Requirements Aspects `json:"requirements,omitempty"`
	Warmup       float64 `json:"warmup,omitempty"`
}

// Legacy identifies the currently loaded game.
type Legacy struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ExecuteResult is returned by a successful execute command.
type ExecuteResult struct {
	ExecutedRecipeID    string `json:"executedRecipeId"`
	ExecutedRecipeLabel string `json:"executedRecipeLabel"`
}

// Event is a sync journal entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	Payload    string `json:"payload_json"`
}
