// Package attachment records storage references for an application's
// supporting documents. Each slot is write-once.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bizpermit/permitdesk/internal/access"
	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/repository"
)

// MaxReferenceLen bounds a storage reference, in characters.
const MaxReferenceLen = 1024

// Attachment errors.
var (
	ErrInvalidSlot      = errors.New("unknown attachment slot")
	ErrInvalidReference = errors.New("invalid storage reference")
	ErrSlotOccupied     = errors.New("attachment slot already populated")
)

// ParseSlot returns the slot named s.
func ParseSlot(s string) (model.Slot, error) {
	slot := model.Slot(s)
	if !slot.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSlot, s)
	}
	return slot, nil
}

// ValidateReference checks a storage reference is non-empty and bounded.
func ValidateReference(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidReference)
	}
	if utf8.RuneCountInString(ref) > MaxReferenceLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidReference, MaxReferenceLen)
	}
	return nil
}

// ParseInitial validates the attachments supplied at submission time.
func ParseInitial(raw map[string]string) (map[model.Slot]string, error) {
	out := make(map[model.Slot]string, len(raw))
	for name, ref := range raw {
		slot, err := ParseSlot(name)
		if err != nil {
			return nil, err
		}
		if err := ValidateReference(ref); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[slot] = ref
	}
	return out, nil
}

// Store is the slice of the record store attaching needs.
type Store interface {
	GetApplicationByID(ctx context.Context, id string) (*model.Application, error)
	AttachDocument(ctx context.Context, id string, slot model.Slot, ref string) (*model.Application, error)
}

// Attach records ref in the named slot of application id.
//
// Checks run in a fixed order: slot name, reference, existence, ownership,
// occupancy (ErrSlotOccupied for any status), then Pending. Status is never
// changed.
func Attach(ctx context.Context, store Store, actor *model.Actor, id, slotName, ref string) (*model.Application, error) {
	slot, err := ParseSlot(slotName)
	if err != nil {
		return nil, err
	}
	if err := ValidateReference(ref); err != nil {
		return nil, err
	}
	if actor == nil {
		return nil, access.ErrUnauthorized
	}

	app, err := store.GetApplicationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := access.CanOwnerWrite(actor, app); err != nil {
		return nil, err
	}
	if app.HasAttachment(slot) {
		return nil, fmt.Errorf("%w: %s", ErrSlotOccupied, slot)
	}
	if !app.IsPending() {
		return nil, fmt.Errorf("%w: application is %s", access.ErrForbidden, app.Status)
	}

	updated, err := store.AttachDocument(ctx, id, slot, ref)
	switch {
	case errors.Is(err, repository.ErrSlotOccupied):
		return nil, fmt.Errorf("%w: %s", ErrSlotOccupied, slot)
	case errors.Is(err, repository.ErrNotPending):
		return nil, fmt.Errorf("%w: application is no longer pending", access.ErrForbidden)
	case err != nil:
		return nil, err
	}
	return updated, nil
}
