package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/handler/dto"
	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/service"
)

// APIKeyHandler handles API key management endpoints.
type APIKeyHandler struct {
	svc    *service.AccountService
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new APIKeyHandler.
func NewAPIKeyHandler(svc *service.AccountService, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		svc:    svc,
		logger: logger,
	}
}

// CreateAPIKey handles POST /api/v1/api-keys.
func (h *APIKeyHandler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req model.APIKeyCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	issued, err := h.svc.CreateKey(r.Context(), auth.ActorFromContext(r.Context()), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("API key created",
		slog.String("key_id", issued.Key.ID),
		slog.String("key_prefix", issued.Key.KeyPrefix),
		slog.String("user_id", issued.Key.UserID),
	)
	writeJSON(w, http.StatusCreated, issued.ToCreateResponse())
}

// ListAPIKeys handles GET /api/v1/api-keys.
func (h *APIKeyHandler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.ListKeys(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	responses := make([]model.APIKeyResponse, 0, len(keys))
	for _, key := range keys {
		responses = append(responses, key.ToResponse())
	}
	writeJSON(w, http.StatusOK, dto.APIKeyListResponse{Data: responses})
}

// RevokeAPIKey handles DELETE /api/v1/api-keys/{key_id}.
// Unknown, foreign and already revoked keys all answer 404.
func (h *APIKeyHandler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RevokeKey(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "key_id")); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
