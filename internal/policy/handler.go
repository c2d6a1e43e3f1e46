package policy

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modgate/modgate/internal/platform/httpx"
	"github.com/modgate/modgate/internal/rbac"
	"github.com/modgate/modgate/internal/shared"
)

// Handler serves the security configuration admin API.
type Handler struct {
	logger *slog.Logger
	engine *Engine
	rbac   rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, engine *Engine, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, engine: engine, rbac: rbac}
}

// MountRoutes registers the security configuration endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSecurityView, shared.PermSecurityEdit))
		r.Get("/config", h.showConfig)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermSecurityEdit))
		r.Put("/level", h.setLevel)
		r.Put("/thresholds", h.setThresholds)
		r.Post("/blocked", h.blockModule)
		r.Delete("/blocked/{module}", h.unblockModule)
		r.Post("/trusted-signers", h.addTrustedSigner)
		r.Post("/allowed-developers", h.allowDeveloper)
		r.Put("/policies/{policy}", h.setPolicy)
	})
}

func (h *Handler) showConfig(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, h.engine.Current())
}

type setLevelRequest struct {
	Level string `json:"level" validate:"required"`
}

func (h *Handler) setLevel(w http.ResponseWriter, r *http.Request) {
	var req setLevelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	level, err := shared.ParseSecurityLevel(req.Level)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "invalid security level", err.Error())
		return
	}
	if err := h.engine.SetLevel(r.Context(), level); err != nil {
		h.fail(w, "set security level", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.engine.Current())
}

type setThresholdsRequest struct {
	MinReputationScore float64 `json:"min_reputation_score" validate:"min=0,max=100"`
	MaxRiskScore       float64 `json:"max_risk_score" validate:"min=0,max=100"`
}

func (h *Handler) setThresholds(w http.ResponseWriter, r *http.Request) {
	var req setThresholdsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.engine.SetThresholds(r.Context(), req.MinReputationScore, req.MaxRiskScore); err != nil {
		h.fail(w, "set thresholds", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.engine.Current())
}

type moduleRequest struct {
	Module string `json:"module" validate:"required,min=1,max=128"`
}

func (h *Handler) blockModule(w http.ResponseWriter, r *http.Request) {
	var req moduleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.engine.BlockModule(r.Context(), req.Module); err != nil {
		h.fail(w, "block module", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) unblockModule(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.UnblockModule(r.Context(), chi.URLParam(r, "module")); err != nil {
		h.fail(w, "unblock module", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type trustedSignerRequest struct {
	KeyID string `json:"key_id" validate:"required,min=1,max=128"`
}

func (h *Handler) addTrustedSigner(w http.ResponseWriter, r *http.Request) {
	var req trustedSignerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.engine.AddTrustedSigner(r.Context(), req.KeyID); err != nil {
		h.fail(w, "add trusted signer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type allowDeveloperRequest struct {
	Developer string `json:"developer" validate:"required,min=1,max=128"`
}

func (h *Handler) allowDeveloper(w http.ResponseWriter, r *http.Request) {
	var req allowDeveloperRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.engine.AllowDeveloper(r.Context(), req.Developer); err != nil {
		h.fail(w, "allow developer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPolicyRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *Handler) setPolicy(w http.ResponseWriter, r *http.Request) {
	var req setPolicyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	name := Policy(shared.NormalizeName(chi.URLParam(r, "policy")))
	switch name {
	case PolicySignedOnly, PolicyMinReputation, PolicyMaxRisk, PolicyDevAllowlist:
	default:
		httpx.Problem(w, http.StatusBadRequest, "unknown policy", string(name))
		return
	}
	if err := h.engine.SetPolicy(r.Context(), name, req.Enabled); err != nil {
		h.fail(w, "set policy", err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.engine.Current())
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}
