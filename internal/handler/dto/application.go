// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/bizpermit/permitdesk/internal/model"
)

// SubmitApplicationRequest represents the request body for submitting an application.
type SubmitApplicationRequest struct {
	ID           string            `json:"id,omitempty"`
	OwnerName    string            `json:"owner_name"`
	BusinessName string            `json:"business_name"`
	BusinessType string            `json:"business_type"`
	Address      string            `json:"address"`
	Attachments  map[string]string `json:"attachments,omitempty"`
}

// UpdateFieldsRequest represents the request body for editing a Pending application.
type UpdateFieldsRequest struct {
	OwnerName    *string `json:"owner_name,omitempty"`
	BusinessName *string `json:"business_name,omitempty"`
	BusinessType *string `json:"business_type,omitempty"`
	Address      *string `json:"address,omitempty"`
}

// ReviewRequest represents the request body for a review decision.
type ReviewRequest struct {
	Status string `json:"status"`
}

// AttachRequest represents the request body for recording a document reference.
type AttachRequest struct {
	Reference string `json:"reference"`
}

// ApplicationResponse represents an application in API responses.
type ApplicationResponse struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"owner_id"`
	OwnerName    string            `json:"owner_name"`
	BusinessName string            `json:"business_name"`
	BusinessType string            `json:"business_type"`
	Address      string            `json:"address"`
	Attachments  map[string]string `json:"attachments"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// ApplicationListResponse represents a list of applications.
type ApplicationListResponse struct {
	Data       []ApplicationResponse `json:"data"`
	Pagination *Pagination           `json:"pagination,omitempty"`
}

// Pagination provides cursor-based pagination info.
type Pagination struct {
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// AttachmentsResponse is returned after a document reference is recorded.
type AttachmentsResponse struct {
	Attachments map[string]string `json:"attachments"`
}

// SuccessResponse acknowledges an operation with no other payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the machine code, message and offending fields.
type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Fields  []string `json:"fields,omitempty"`
}

// ToApplicationResponse converts an Application model to ApplicationResponse DTO.
func ToApplicationResponse(app *model.Application) *ApplicationResponse {
	return &ApplicationResponse{
		ID:           app.ID,
		OwnerID:      app.OwnerID,
		OwnerName:    app.OwnerName,
		BusinessName: app.BusinessName,
		BusinessType: app.BusinessType,
		Address:      app.Address,
		Attachments:  ToAttachments(app.Attachments),
		Status:       string(app.Status),
		CreatedAt:    app.CreatedAt,
		UpdatedAt:    app.UpdatedAt,
	}
}

// ToApplicationListResponse converts a slice of Application models.
// A nil pagination is omitted, as in the owner listing.
func ToApplicationListResponse(apps []*model.Application, pagination *Pagination) *ApplicationListResponse {
	responses := make([]ApplicationResponse, len(apps))
	for i, app := range apps {
		responses[i] = *ToApplicationResponse(app)
	}
	return &ApplicationListResponse{Data: responses, Pagination: pagination}
}

// ToAttachments converts slot keys to plain strings for JSON.
func ToAttachments(in map[model.Slot]string) map[string]string {
	out := make(map[string]string, len(in))
	for slot, ref := range in {
		out[string(slot)] = ref
	}
	return out
}
