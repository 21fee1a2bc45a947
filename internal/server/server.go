package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"hoursync/internal/app"
	"hoursync/internal/gameapi"
	"hoursync/internal/orchestration"
	"hoursync/internal/repo"
	"hoursync/internal/tokens"
)

// Config for the HTTP API handler.
type Config struct {
	Runtime  *app.Runtime
	BasePath string
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"slot_locked"`
	Message string         `json:"message" example:"slot is locked"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"slot\":\"primary\"}"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

var errJournalDisabled = errors.New("journal is disabled")

// New returns an HTTP handler exposing the hoursync API.
func New(cfg Config) (http.Handler, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("server: runtime is required")
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	rt := cfg.Runtime
	router := chi.NewRouter()
	hcfg := huma.DefaultConfig("Hoursync API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, rt)
	registerTokens(group, rt)
	registerSituations(group, rt)
	registerOrchestration(group, rt)
	registerSlots(group, rt)
	registerCommands(group, rt)
	registerEvents(group, rt)
	registerStream(router, basePath, rt)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case errors.Is(err, orchestration.ErrNoOrchestration),
		errors.Is(err, orchestration.ErrUnknownSlot),
		errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, errJournalDisabled):
		return newAPIError(http.StatusNotFound, "journal_disabled", msg, nil)
	case errors.Is(err, orchestration.ErrSlotLocked):
		return newAPIError(http.StatusConflict, "slot_locked", msg, nil)
	case errors.Is(err, orchestration.ErrBusy):
		return newAPIError(http.StatusConflict, "busy", msg, nil)
	case errors.Is(err, orchestration.ErrWrongPhase):
		return newAPIError(http.StatusConflict, "wrong_phase", msg, nil)
	case errors.Is(err, orchestration.ErrSituationNotUnstarted):
		return newAPIError(http.StatusConflict, "situation_not_unstarted", msg, nil)
	case errors.Is(err, orchestration.ErrNoSituation):
		return newAPIError(http.StatusConflict, "no_situation", msg, nil)
	case errors.Is(err, orchestration.ErrMoveRejected):
		return newAPIError(http.StatusConflict, "move_rejected", msg, nil)
	case errors.Is(err, orchestration.ErrCandidateRejected):
		return newAPIError(http.StatusUnprocessableEntity, "candidate_rejected", msg, nil)
	case errors.Is(err, orchestration.ErrIncompatibleSituation):
		return newAPIError(http.StatusUnprocessableEntity, "incompatible_situation", msg, nil)
	}
	var gameErr *gameapi.APIError
	if errors.As(err, &gameErr) {
		if gameErr.StatusCode == http.StatusNotFound {
			return newAPIError(http.StatusNotFound, "not_found", msg, nil)
		}
		return newAPIError(http.StatusBadGateway, "game_error", msg, map[string]any{"game_status": gameErr.StatusCode})
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusBadGateway:
		return "game_error"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			ensureDefaultErrorResponses(oas)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			if _, ok := op.Responses["default"]; ok {
				continue
			}
			op.Responses["default"] = &huma.Response{Description: "Error"}
		}
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerStatus(api huma.API, rt *app.Runtime) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Sync status",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body StatusResponse `json:"body"`
	}, error) {
		res := StatusResponse{
			Running:   rt.Probe.Running().Get(),
			Tokens:    len(rt.Source.Tokens().Get()),
			Visible:   len(rt.Source.Views().Visible().Get()),
			SessionID: rt.Session.ID(),
		}
		if legacy := rt.Probe.Legacy().Get(); legacy != nil {
			res.Legacy = legacy.ID
		}
		if err := rt.Source.Fatal().Get(); err != nil {
			res.Fatal = err.Error()
		}
		return &struct {
			Body StatusResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerTokens(api huma.API, rt *app.Runtime) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tokens",
		Method:      http.MethodGet,
		Path:        "/tokens",
		Summary:     "List synchronized tokens",
	}, func(ctx context.Context, input *struct {
		PayloadType string `query:"payload_type" enum:"ElementStack,Situation,WorkstationSituation,ConnectedTerrain,WisdomNodeTerrain"`
		Visible     bool   `query:"visible"`
		PathPrefix  string `query:"path_prefix"`
	}) (*struct {
		Body []TokenResponse `json:"body"`
	}, error) {
		list := rt.Source.Tokens().Get()
		if input.Visible {
			list = rt.Source.Views().Visible().Get()
		}
		var out []tokens.Model
		for _, m := range list {
			if input.PayloadType != "" && string(m.PayloadType()) != input.PayloadType {
				continue
			}
			if input.PathPrefix != "" && !tokens.Within(m.Path(), input.PathPrefix) {
				continue
			}
			out = append(out, m)
		}
		return &struct {
			Body []TokenResponse `json:"body"`
		}{Body: mapTokens(out)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-token",
		Method:      http.MethodGet,
		Path:        "/tokens/{token_id}",
		Summary:     "Get a token",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TokenID string `path:"token_id"`
	}) (*struct {
		Body TokenResponse `json:"body"`
	}, error) {
		m, ok := rt.Source.Store().Get(input.TokenID)
		if !ok {
			return nil, newAPIError(http.StatusNotFound, "not_found", "token not found", map[string]any{"token_id": input.TokenID})
		}
		return &struct {
			Body TokenResponse `json:"body"`
		}{Body: tokenResponse(m)}, nil
	})
}

func registerSituations(api huma.API, rt *app.Runtime) {
	huma.Register(api, huma.Operation{
		OperationID: "list-situations",
		Method:      http.MethodGet,
		Path:        "/situations",
		Summary:     "List visible situations",
	}, func(ctx context.Context, input *struct {
		State string `query:"state" enum:"Unstarted,RequiringExecution,Ongoing,Complete,Halting,Inchoate"`
	}) (*struct {
		Body []SituationResponse `json:"body"`
	}, error) {
		res := []SituationResponse{}
		for _, m := range rt.Source.Views().Visible().Get() {
			sit, ok := m.(*tokens.Situation)
			if !ok {
				continue
			}
			if input.State != "" && string(sit.State().Get()) != input.State {
				continue
			}
			res = append(res, situationResponse(sit))
		}
		return &struct {
			Body []SituationResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerOrchestration(api huma.API, rt *app.Runtime) {
	type orchestrationOutput struct {
		Body OrchestrationResponse `json:"body"`
	}
	current := func() (orchestration.Orchestration, error) {
		o := rt.Session.Current().Get()
		if o == nil {
			return nil, orchestration.ErrNoOrchestration
		}
		return o, nil
	}

	huma.Register(api, huma.Operation{
		OperationID: "get-orchestration",
		Method:      http.MethodGet,
		Path:        "/orchestration",
		Summary:     "Current orchestration",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, _ *struct{}) (*orchestrationOutput, error) {
		o, err := current()
		if err != nil {
			return nil, handleError(err)
		}
		return &orchestrationOutput{Body: orchestrationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "open-orchestration",
		Method:      http.MethodPost,
		Path:        "/orchestration",
		Summary:     "Open an orchestration, replacing the current one",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body OpenOrchestrationRequest `json:"body"`
	}) (*orchestrationOutput, error) {
		recipe, err := rt.Recipe(ctx, input.Body.RecipeID)
		if err != nil {
			return nil, handleError(err)
		}
		var o orchestration.Orchestration
		if input.Body.SituationID == "" {
			o = rt.Session.Open(ctx, recipe)
		} else {
			sit, err := situationByID(rt, input.Body.SituationID)
			if err != nil {
				return nil, handleError(err)
			}
			o = rt.Session.OpenForSituation(ctx, sit, recipe)
		}
		return &orchestrationOutput{Body: orchestrationResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "close-orchestration",
		Method:        http.MethodDelete,
		Path:          "/orchestration",
		Summary:       "Close the current orchestration",
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		rt.Session.Close(ctx)
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-available-situations",
		Method:      http.MethodGet,
		Path:        "/orchestration/situations",
		Summary:     "Situations the current orchestration can bind",
		Errors:      []int{http.StatusNotFound, http.StatusConflict},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []SituationResponse `json:"body"`
	}, error) {
		u, err := unstarted(rt)
		if err != nil {
			return nil, handleError(err)
		}
		res := []SituationResponse{}
		for _, sit := range u.AvailableSituations() {
			res = append(res, situationResponse(sit))
		}
		return &struct {
			Body []SituationResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "select-situation",
		Method:      http.MethodPut,
		Path:        "/orchestration/situation",
		Summary:     "Bind the current orchestration to a situation",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body SelectSituationRequest `json:"body"`
	}) (*orchestrationOutput, error) {
		u, err := unstarted(rt)
		if err != nil {
			return nil, handleError(err)
		}
		var sit *tokens.Situation
		if input.Body.SituationID != "" {
			if sit, err = situationByID(rt, input.Body.SituationID); err != nil {
				return nil, handleError(err)
			}
		}
		if err := u.SelectSituation(ctx, sit); err != nil {
			return nil, handleError(err)
		}
		return &orchestrationOutput{Body: orchestrationResponse(u)}, nil
	})
}

func registerSlots(api huma.API, rt *app.Runtime) {
	type slotPath struct {
		SlotID string `path:"slot_id"`
	}
	type slotOutput struct {
		Body SlotResponse `json:"body"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-slot-candidates",
		Method:      http.MethodGet,
		Path:        "/orchestration/slots/{slot_id}/candidates",
		Summary:     "Ranked candidates for a slot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *slotPath) (*struct {
		Body []TokenResponse `json:"body"`
	}, error) {
		slot, err := slotByID(rt, input.SlotID)
		if err != nil {
			return nil, handleError(err)
		}
		res := []TokenResponse{}
		for _, stack := range slot.Candidates() {
			res = append(res, tokenResponse(stack))
		}
		return &struct {
			Body []TokenResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "assign-slot",
		Method:      http.MethodPut,
		Path:        "/orchestration/slots/{slot_id}",
		Summary:     "Assign a stack to a slot",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		SlotID string            `path:"slot_id"`
		Body   AssignSlotRequest `json:"body"`
	}) (*slotOutput, error) {
		slot, err := slotByID(rt, input.SlotID)
		if err != nil {
			return nil, handleError(err)
		}
		var stack *tokens.ElementStack
		if input.Body.TokenID != "" {
			m, ok := rt.Source.Store().Get(input.Body.TokenID)
			if !ok {
				return nil, newAPIError(http.StatusNotFound, "not_found", "token not found", map[string]any{"token_id": input.Body.TokenID})
			}
			if stack, ok = m.(*tokens.ElementStack); !ok {
				return nil, newAPIError(http.StatusUnprocessableEntity, "candidate_rejected", "token is not an element stack", map[string]any{"token_id": input.Body.TokenID})
			}
		}
		if err := slot.Assign(ctx, stack); err != nil {
			return nil, handleError(err)
		}
		return &slotOutput{Body: slotResponse(slot)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "revert-slot",
		Method:      http.MethodPost,
		Path:        "/orchestration/slots/{slot_id}/revert",
		Summary:     "Drop the local assignment of a slot",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *slotPath) (*slotOutput, error) {
		slot, err := slotByID(rt, input.SlotID)
		if err != nil {
			return nil, handleError(err)
		}
		slot.Revert()
		return &slotOutput{Body: slotResponse(slot)}, nil
	})
}

func registerCommands(api huma.API, rt *app.Runtime) {
	huma.Register(api, huma.Operation{
		OperationID: "execute-orchestration",
		Method:      http.MethodPost,
		Path:        "/orchestration/execute",
		Summary:     "Start the recipe",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ExecuteResponse `json:"body"`
	}, error) {
		u, err := unstarted(rt)
		if err != nil {
			return nil, handleError(err)
		}
		done, err := rt.Session.Execute(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		res := ExecuteResponse{Executed: done}
		if r := u.Executed(); r != nil {
			res.RecipeID = r.ExecutedRecipeID
			res.RecipeLabel = r.ExecutedRecipeLabel
		}
		return &struct {
			Body ExecuteResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "conclude-orchestration",
		Method:        http.MethodPost,
		Path:          "/orchestration/conclude",
		Summary:       "Harvest a completed recipe",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		if _, err := rt.Session.Conclude(ctx); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "pass-time",
		Method:        http.MethodPost,
		Path:          "/orchestration/pass-time",
		Summary:       "Advance the game clock",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, input *struct {
		Body PassTimeRequest `json:"body"`
	}) (*struct{}, error) {
		if err := rt.Session.PassTime(ctx, input.Body.Seconds); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "autofill-orchestration",
		Method:      http.MethodPost,
		Path:        "/orchestration/autofill",
		Summary:     "Fill empty slots with the best candidates",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusBadGateway},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body AutofillResponse `json:"body"`
	}, error) {
		n, err := rt.Session.Autofill(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AutofillResponse `json:"body"`
		}{Body: AutofillResponse{Filled: n}}, nil
	})
}

func registerEvents(api huma.API, rt *app.Runtime) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent journal events",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind" enum:"token,orchestration"`
		EntityID   string `query:"entity_id"`
		SessionID  string `query:"session_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if rt.Repo == nil {
			return nil, handleError(errJournalDisabled)
		}
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := rt.Repo.LatestEventsFrom(ctx, limit+1, cursorID, repo.EventFilters{
			Type:       input.Type,
			EntityKind: input.EntityKind,
			EntityID:   input.EntityID,
			SessionID:  input.SessionID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}

func situationByID(rt *app.Runtime, id string) (*tokens.Situation, error) {
	m, ok := rt.Source.Store().Get(id)
	if !ok {
		return nil, newAPIError(http.StatusNotFound, "not_found", "situation not found", map[string]any{"situation_id": id})
	}
	sit, ok := m.(*tokens.Situation)
	if !ok {
		return nil, newAPIError(http.StatusBadRequest, "bad_request", "token is not a situation", map[string]any{"situation_id": id})
	}
	return sit, nil
}

func unstarted(rt *app.Runtime) (*orchestration.Unstarted, error) {
	switch o := rt.Session.Current().Get().(type) {
	case nil:
		return nil, orchestration.ErrNoOrchestration
	case *orchestration.Unstarted:
		return o, nil
	default:
		return nil, fmt.Errorf("%w: orchestration is %s", orchestration.ErrWrongPhase, o.Phase())
	}
}

func slotByID(rt *app.Runtime, id string) (*orchestration.Slot, error) {
	o := rt.Session.Current().Get()
	if o == nil {
		return nil, orchestration.ErrNoOrchestration
	}
	slot, ok := o.Slot(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", orchestration.ErrUnknownSlot, id)
	}
	return slot, nil
}

func logger(rt *app.Runtime) *zap.Logger {
	if rt.Log == nil {
		return zap.NewNop()
	}
	return rt.Log.Named("server")
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Hoursync API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
  </body>
</html>`, specURL)
}
