package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/modgate/modgate/internal/platform/httpx"
	"github.com/modgate/modgate/internal/shared"
)

// Handler serves token management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the token endpoints. Callers manage their own
// tokens only; the routes must sit behind RequireToken.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/tokens", h.listTokens)
	r.Post("/tokens", h.issueToken)
	r.Delete("/tokens/{tokenID}", h.revokeToken)
}

type issueTokenRequest struct {
	Name string `json:"name" validate:"required,min=2,max=64"`
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	var req issueTokenRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	plaintext, token, err := h.service.Issue(r.Context(), actor.UserID, req.Name)
	if err != nil {
		h.logger.Error("issue token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"token":     token,
		"plaintext": plaintext,
	})
}

func (h *Handler) listTokens(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	tokens, err := h.service.Tokens(r.Context(), actor.UserID)
	if err != nil {
		h.logger.Error("list tokens", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tokens": tokens})
}

func (h *Handler) revokeToken(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "tokenID")
	token, err := h.service.store.GetToken(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if token.UserID != actor.UserID {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	if err := h.service.Revoke(r.Context(), id); err != nil {
		h.logger.Error("revoke token", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
