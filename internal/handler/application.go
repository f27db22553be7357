package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/handler/dto"
	"github.com/bizpermit/permitdesk/internal/service"
)

// ApplicationHandler handles HTTP requests for permit applications.
type ApplicationHandler struct {
	svc    *service.ApplicationService
	logger *slog.Logger
}

// NewApplicationHandler creates a new ApplicationHandler.
func NewApplicationHandler(svc *service.ApplicationService, logger *slog.Logger) *ApplicationHandler {
	return &ApplicationHandler{
		svc:    svc,
		logger: logger,
	}
}

// Submit handles POST /api/v1/applications.
func (h *ApplicationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitApplicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	summary, err := h.svc.Submit(r.Context(), auth.ActorFromContext(r.Context()), service.SubmitInput{
		ID:           req.ID,
		OwnerName:    req.OwnerName,
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		Address:      req.Address,
		Attachments:  req.Attachments,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("application_submitted",
		"application_id", summary.ID,
		"attachments", len(req.Attachments),
	)
	writeJSON(w, http.StatusCreated, summary)
}

// List handles GET /api/v1/applications.
// With all=true an admin gets the paginated review listing.
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	actor := auth.ActorFromContext(r.Context())

	if query.Get("all") != "true" {
		apps, err := h.svc.ListMine(r.Context(), actor)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, dto.ToApplicationListResponse(apps, nil))
		return
	}

	rq := service.ReviewQuery{
		BusinessName: query.Get("q"),
		Cursor:       query.Get("cursor"),
	}
	if s := query.Get("status"); s != "" {
		rq.Statuses = strings.Split(s, ",")
	}
	if l := query.Get("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", "limit")
			return
		}
		rq.Limit = limit
	}

	page, err := h.svc.ListForReview(r.Context(), actor, rq)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToApplicationListResponse(page.Items, &dto.Pagination{
		NextCursor: page.NextCursor,
		HasMore:    page.NextCursor != "",
	}))
}

// Stats handles GET /api/v1/applications/stats.
func (h *ApplicationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Stats(r.Context(), auth.ActorFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// Get handles GET /api/v1/applications/{id}.
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	app, err := h.svc.Get(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToApplicationResponse(app))
}

// UpdateFields handles PATCH /api/v1/applications/{id}.
func (h *ApplicationHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateFieldsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	app, err := h.svc.UpdateFields(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), service.FieldsPatch{
		OwnerName:    req.OwnerName,
		BusinessName: req.BusinessName,
		BusinessType: req.BusinessType,
		Address:      req.Address,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ToApplicationResponse(app))
}

// Review handles PATCH /api/v1/applications/{id}/status.
func (h *ApplicationHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req dto.ReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.svc.Review(r.Context(), auth.ActorFromContext(r.Context()), chi.URLParam(r, "id"), req.Status); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Success: true})
}

// Attach handles POST /api/v1/applications/{id}/attachments/{slot}.
func (h *ApplicationHandler) Attach(w http.ResponseWriter, r *http.Request) {
	var req dto.AttachRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	attachments, err := h.svc.Attach(r.Context(), auth.ActorFromContext(r.Context()),
		chi.URLParam(r, "id"), chi.URLParam(r, "slot"), req.Reference)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AttachmentsResponse{Attachments: dto.ToAttachments(attachments)})
}
