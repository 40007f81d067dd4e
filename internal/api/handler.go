package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parametric-rail/railpledge/internal/codec"
	"github.com/parametric-rail/railpledge/internal/domain"
	"github.com/parametric-rail/railpledge/internal/pipeline"
	"github.com/parametric-rail/railpledge/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	pipeline *pipeline.Pipeline
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(p *pipeline.Pipeline, repo domain.Repository, cache domain.Cache, bus domain.EventBus, version string) *Handler {
	return &Handler{
		pipeline: p,
		repo:     repo,
		cache:    cache,
		bus:      bus,
		version:  version,
	}
}

// PayoutResponse is the response for POST /payouts. Payout is a
// single amount, or a per-tier object when all tiers were requested.
type PayoutResponse struct {
	DecisionID string `json:"decisionId"`
	Status     int    `json:"status"`
	Payout     any    `json:"payout"`
}

// DelayResponse is the response for POST /delay.
type DelayResponse struct {
	DecisionID string `json:"decisionId"`
	Status     int    `json:"status"`
	Delay      int64  `json:"delay"`
}

// Payouts handles POST /payouts. Rejections are expressed in the
// status field of a 200 response; only an unreadable body yields a
// non-200.
func (h *Handler) Payouts(w http.ResponseWriter, r *http.Request) {
	body, tier, ok := h.decodeDecisionRequest(w, r)
	if !ok {
		return
	}

	d := h.pipeline.Decide(r.Context(), body, tier)

	resp := PayoutResponse{
		DecisionID: d.ID,
		Status:     int(d.Status),
	}
	if d.Payouts != nil {
		resp.Payout = d.Payouts
	} else {
		resp.Payout = d.Payout
	}
	writeJSON(w, http.StatusOK, resp)
}

// Delay handles POST /delay. The journey is re-fetched from the
// tracking service and the realized delay computed against it.
func (h *Handler) Delay(w http.ResponseWriter, r *http.Request) {
	body, _, ok := h.decodeDecisionRequest(w, r)
	if !ok {
		return
	}

	d := h.pipeline.Settle(r.Context(), body)

	writeJSON(w, http.StatusOK, DelayResponse{
		DecisionID: d.ID,
		Status:     int(d.Status),
		Delay:      d.DelayMinutes,
	})
}

// decodeDecisionRequest parses a decision request body. The journey
// arrives either as an encoded string under "journey" or as structured
// leg_N objects; "type" selects the tier. Parse failures inside the
// journey payload yield an empty journey, which the pipeline rejects
// with a status rather than an HTTP error.
func (h *Handler) decodeDecisionRequest(w http.ResponseWriter, r *http.Request) (*domain.Journey, domain.Tier, bool) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return nil, "", false
	}

	var tier domain.Tier
	if raw, ok := fields["type"]; ok {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			tier = domain.Tier(s)
		}
	}

	if raw, ok := fields["journey"]; ok {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			slog.Info("journey field is not a string")
			return domain.NewJourney(), tier, true
		}
		return codec.Decode(encoded), tier, true
	}

	legs := make(map[string]json.RawMessage)
	for key, raw := range fields {
		if strings.HasPrefix(key, "leg_") {
			legs[key] = raw
		}
	}
	data, err := json.Marshal(legs)
	if err != nil {
		return domain.NewJourney(), tier, true
	}
	var j domain.Journey
	if err := json.Unmarshal(data, &j); err != nil {
		slog.Info("structured journey failed to decode", "error", err)
		return domain.NewJourney(), tier, true
	}
	return &j, tier, true
}

// GetDecision retrieves an audited decision by ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision id is required",
		})
		return
	}

	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	d, err := h.repo.GetDecision(r.Context(), id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get decision", "id", id, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "decision not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// Health returns service health, degraded when a backing service is
// unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
