package admission

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/modgate/modgate/internal/platform/httpx"
	"github.com/modgate/modgate/internal/rbac"
	"github.com/modgate/modgate/internal/sandbox"
	"github.com/modgate/modgate/internal/shared"
)

const (
	admitRateLimit  = 10
	admitRateWindow = time.Minute
)

// Handler exposes the admission pipeline to the host admin API. Handles for
// admitted modules are retained so a later revocation can reach them.
type Handler struct {
	logger   *slog.Logger
	pipeline *Pipeline
	rbac     rbac.Middleware

	mu      sync.Mutex
	handles map[string]*ModuleHandle
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, pipeline *Pipeline, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:   logger,
		pipeline: pipeline,
		rbac:     rbac,
		handles:  make(map[string]*ModuleHandle),
	}
}

// MountRoutes registers the admission endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	limiter := httprate.Limit(admitRateLimit, admitRateWindow,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if actor, ok := shared.ActorFromContext(r.Context()); ok && actor.UserID != "" {
				return "user:" + actor.UserID, nil
			}
			return httprate.KeyByIP(r)
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermModulesInstall))
		r.Use(limiter)
		r.Post("/modules", h.admit)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermModulesDisable))
		r.Delete("/modules/{module}", h.revoke)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.PermModulesView))
		r.Get("/modules", h.listAdmitted)
	})
}

type admitRequest struct {
	ModulePath string   `json:"module_path" validate:"required"`
	Manifest   Manifest `json:"manifest" validate:"required"`
}

type admitResponse struct {
	Allowed         bool             `json:"allowed"`
	Reason          string           `json:"reason"`
	SignatureValid  bool             `json:"signature_valid"`
	RiskScore       float64          `json:"risk_score"`
	ReputationScore float64          `json:"reputation_score"`
	Profile         *sandbox.Profile `json:"profile,omitempty"`
}

func (h *Handler) admit(w http.ResponseWriter, r *http.Request) {
	var req admitRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	decision, err := h.pipeline.VerifyAndAdmit(r.Context(), req.ModulePath, req.Manifest)
	if err != nil {
		h.logger.Error("admission", slog.String("module", req.Manifest.Name), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	resp := admitResponse{
		Allowed:         decision.Allowed,
		Reason:          decision.Reason,
		SignatureValid:  decision.SignatureValid,
		RiskScore:       decision.RiskScore,
		ReputationScore: decision.ReputationScore,
	}
	status := http.StatusForbidden
	if decision.Allowed {
		status = http.StatusCreated
		profile := decision.Profile
		resp.Profile = &profile
		h.retain(req.Manifest.Name, decision.Handle)
	}
	httpx.JSON(w, status, resp)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	name := shared.NormalizeName(chi.URLParam(r, "module"))
	h.mu.Lock()
	handle, ok := h.handles[name]
	delete(h.handles, name)
	h.mu.Unlock()
	if !ok {
		httpx.Problem(w, http.StatusNotFound, "module not admitted", name)
		return
	}
	handle.Revoke()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAdmitted(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	names := make([]string, 0, len(h.handles))
	for name := range h.handles {
		names = append(names, name)
	}
	h.mu.Unlock()
	sort.Strings(names)
	httpx.JSON(w, http.StatusOK, map[string]any{"modules": names})
}

func (h *Handler) retain(moduleName string, handle *ModuleHandle) {
	if handle == nil {
		return
	}
	h.mu.Lock()
	h.handles[shared.NormalizeName(moduleName)] = handle
	h.mu.Unlock()
}
