package model

import (
	"maps"
	"time"
)

// Status is the review state of an application.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusPending, StatusApproved, StatusRejected}

// IsValid checks if the status is one of the known statuses.
func (s Status) IsValid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// IsTerminal returns true once no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Slot names a supporting-document category.
type Slot string

const (
	SlotIDDocument        Slot = "idDocument"
	SlotLeaseDocument     Slot = "leaseDocument"
	SlotBarangayClearance Slot = "barangayClearance"
)

// Slots is the fixed set of recognized attachment slots.
var Slots = []Slot{SlotIDDocument, SlotLeaseDocument, SlotBarangayClearance}

// IsValid checks if the slot is one of the recognized slots.
func (s Slot) IsValid() bool {
	switch s {
	case SlotIDDocument, SlotLeaseDocument, SlotBarangayClearance:
		return true
	}
	return false
}

// Application is a single business permit request.
type Application struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	OwnerName    string          `json:"owner_name"`
	BusinessName string          `json:"business_name"`
	BusinessType string          `json:"business_type"`
	Address      string          `json:"address"`
	Attachments  map[Slot]string `json:"attachments"`
	Status       Status          `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// IsPending returns true while the application awaits review.
func (a *Application) IsPending() bool {
	return a.Status == StatusPending
}

// HasAttachment reports whether the slot already holds a reference.
func (a *Application) HasAttachment(slot Slot) bool {
	_, ok := a.Attachments[slot]
	return ok
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (a *Application) Clone() *Application {
	c := *a
	c.Attachments = maps.Clone(a.Attachments)
	if c.Attachments == nil {
		c.Attachments = map[Slot]string{}
	}
	return &c
}

// Summary returns the short form handed back after submission.
func (a *Application) Summary() ApplicationSummary {
	return ApplicationSummary{
		ID:        a.ID,
		Status:    a.Status,
		CreatedAt: a.CreatedAt,
	}
}

// ApplicationSummary is the result of a successful submission.
type ApplicationSummary struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ApplicationFields holds the owner-editable descriptive fields.
type ApplicationFields struct {
	OwnerName    string
	BusinessName string
	BusinessType string
	Address      string
}

// StatusCounts is the per-status tally shown on the review dashboard.
type StatusCounts struct {
	Total    int64 `json:"total"`
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// Add increments the counter for a status.
func (c *StatusCounts) Add(status Status, n int64) {
	switch status {
	case StatusPending:
		c.Pending += n
	case StatusApproved:
		c.Approved += n
	case StatusRejected:
		c.Rejected += n
	default:
		return
	}
	c.Total += n
}
