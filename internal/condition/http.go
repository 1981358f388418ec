package condition

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"realmforge/internal/auth"
	"realmforge/rules"
)

// HTTPHandler serves the condition REST surface. Authoring endpoints
// are campaign-owner only; firing a trigger needs a session.
type HTTPHandler struct {
	conditions Service
	engine     *Engine
	authorizer *auth.Authorizer
}

func NewHTTPHandler(conditions Service, engine *Engine, authorizer *auth.Authorizer) *HTTPHandler {
	return &HTTPHandler{conditions: conditions, engine: engine, authorizer: authorizer}
}

func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/conditions", h.handleList)
	mux.HandleFunc("/api/conditions/get", h.handleGet)
	mux.HandleFunc("/api/conditions/create", h.handleCreate)
	mux.HandleFunc("/api/conditions/update", h.handleUpdate)
	mux.HandleFunc("/api/conditions/toggle", h.handleToggle)
	mux.HandleFunc("/api/conditions/delete", h.handleDelete)
	mux.HandleFunc("/api/conditions/trigger", h.handleTrigger)
	mux.HandleFunc("/api/conditions/executions", h.handleExecutions)
}

func (h *HTTPHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	campaignID := r.URL.Query().Get("campaign_id")
	if campaignID == "" {
		auth.WriteError(w, http.StatusBadRequest, "campaign_id required")
		return
	}
	if _, err := h.authorizer.RequireOwner(r, campaignID); err != nil {
		auth.WriteAuthError(w, err)
		return
	}
	conds, err := h.conditions.ListByCampaign(r.Context(), campaignID)
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if conds == nil {
		conds = []Condition{}
	}
	auth.WriteJSON(w, http.StatusOK, conds)
}

func (h *HTTPHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := r.URL.Query().Get("condition_id")
	if id == "" {
		auth.WriteError(w, http.StatusBadRequest, "condition_id required")
		return
	}
	cond, ok := h.requireConditionOwner(w, r, id)
	if !ok {
		return
	}
	auth.WriteJSON(w, http.StatusOK, cond)
}

type createRequest struct {
	CampaignID      string        `json:"campaignId"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	Trigger         rules.Trigger `json:"trigger"`
	TriggerContext  string        `json:"triggerContext,omitempty"`
	Rules           string        `json:"rules"`
	ThenActions     string        `json:"thenActions"`
	ElseActions     string        `json:"elseActions,omitempty"`
	Priority        int           `json:"priority,omitempty"`
	ExecuteOnce     bool          `json:"executeOnce,omitempty"`
	CooldownSeconds int           `json:"cooldownSeconds,omitempty"`
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req createRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, err := h.authorizer.RequireOwner(r, req.CampaignID); err != nil {
		auth.WriteAuthError(w, err)
		return
	}
	cond := Condition{
		ID:              uuid.NewString(),
		CampaignID:      req.CampaignID,
		Name:            req.Name,
		Description:     req.Description,
		Trigger:         req.Trigger,
		TriggerContext:  req.TriggerContext,
		Rules:           req.Rules,
		ThenActions:     req.ThenActions,
		ElseActions:     req.ElseActions,
		Priority:        req.Priority,
		ExecuteOnce:     req.ExecuteOnce,
		CooldownSeconds: req.CooldownSeconds,
		IsActive:        true,
		CreatedAtMs:     time.Now().UnixMilli(),
	}
	if err := ValidateCondition(cond); err != nil {
		auth.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := h.conditions.Create(r.Context(), cond)
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "create failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, created)
}

type updateRequest struct {
	ConditionID string `json:"conditionId"`
	Patch
}

func (h *HTTPHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req updateRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, ok := h.requireConditionOwner(w, r, req.ConditionID); !ok {
		return
	}
	if err := validatePatch(req.Patch); err != nil {
		auth.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	cond, err := h.conditions.Update(r.Context(), req.ConditionID, req.Patch, time.Now().UnixMilli())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.WriteError(w, http.StatusNotFound, "condition not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "update failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, cond)
}

// validatePatch checks only the authoring fields the patch touches.
func validatePatch(p Patch) error {
	if p.Trigger != nil && !rules.ValidTrigger(*p.Trigger) {
		return errors.New("unknown trigger")
	}
	if p.Rules != nil {
		if err := ValidateRules(*p.Rules); err != nil {
			return err
		}
	}
	if p.ThenActions != nil {
		if err := ValidateActions(*p.ThenActions); err != nil {
			return err
		}
	}
	if p.ElseActions != nil {
		if err := ValidateActions(*p.ElseActions); err != nil {
			return err
		}
	}
	return nil
}

type conditionIDRequest struct {
	ConditionID string `json:"conditionId"`
}

type toggleResponse struct {
	IsActive bool `json:"isActive"`
}

func (h *HTTPHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req conditionIDRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, ok := h.requireConditionOwner(w, r, req.ConditionID); !ok {
		return
	}
	active, err := h.conditions.Toggle(r.Context(), req.ConditionID, time.Now().UnixMilli())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.WriteError(w, http.StatusNotFound, "condition not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "toggle failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, toggleResponse{IsActive: active})
}

func (h *HTTPHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req conditionIDRequest
	if err := auth.DecodeJSON(r, &req); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if _, ok := h.requireConditionOwner(w, r, req.ConditionID); !ok {
		return
	}
	if err := h.conditions.Delete(r.Context(), req.ConditionID); err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.WriteError(w, http.StatusNotFound, "condition not found")
			return
		}
		auth.WriteError(w, http.StatusInternalServerError, "delete failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if _, err := h.authorizer.Resolve(r); err != nil {
		auth.WriteAuthError(w, err)
		return
	}
	var ev TriggerEvent
	if err := auth.DecodeJSON(r, &ev); err != nil {
		auth.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if ev.CampaignID == "" || ev.PlayerID == "" {
		auth.WriteError(w, http.StatusBadRequest, "campaignId and playerId required")
		return
	}
	if !rules.ValidTrigger(ev.Trigger) {
		auth.WriteError(w, http.StatusBadRequest, "unknown trigger")
		return
	}
	report, err := h.engine.Fire(r.Context(), ev)
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "evaluation failed")
		return
	}
	auth.WriteJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) handleExecutions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		auth.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	campaignID := r.URL.Query().Get("campaign_id")
	playerID := r.URL.Query().Get("player_id")
	if campaignID == "" || playerID == "" {
		auth.WriteError(w, http.StatusBadRequest, "campaign_id and player_id required")
		return
	}
	if _, err := h.authorizer.RequireOwner(r, campaignID); err != nil {
		auth.WriteAuthError(w, err)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			auth.WriteError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	execs, err := h.conditions.ListExecutions(r.Context(), campaignID, playerID, limit)
	if err != nil {
		auth.WriteError(w, http.StatusInternalServerError, "history failed")
		return
	}
	if execs == nil {
		execs = []Execution{}
	}
	auth.WriteJSON(w, http.StatusOK, execs)
}

// requireConditionOwner loads the condition and checks the caller owns
// its campaign.
func (h *HTTPHandler) requireConditionOwner(w http.ResponseWriter, r *http.Request, id string) (Condition, bool) {
	if id == "" {
		auth.WriteError(w, http.StatusBadRequest, "conditionId required")
		return Condition{}, false
	}
	cond, err := h.conditions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			auth.WriteError(w, http.StatusNotFound, "condition not found")
			return Condition{}, false
		}
		auth.WriteError(w, http.StatusInternalServerError, "lookup failed")
		return Condition{}, false
	}
	if _, err := h.authorizer.RequireOwner(r, cond.CampaignID); err != nil {
		auth.WriteAuthError(w, err)
		return Condition{}, false
	}
	return cond, true
}
