package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bizpermit/permitdesk/internal/access"
	"github.com/bizpermit/permitdesk/internal/attachment"
	"github.com/bizpermit/permitdesk/internal/repository"
	"github.com/bizpermit/permitdesk/internal/workflow"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"unauthorized", access.ErrUnauthorized, ErrUnauthorized},
		{"forbidden", fmt.Errorf("%w: application is Approved", access.ErrForbidden), ErrForbidden},
		{"hidden", access.ErrNotFound, ErrNotFound},
		{"missing", repository.ErrApplicationNotFound, ErrNotFound},
		{"bad_edge", workflow.Validate("Approved", "Rejected"), ErrInvalidTransition},
		{"lost_race", workflow.ErrConflict, ErrConflict},
		{"occupied", attachment.ErrSlotOccupied, ErrConflict},
		{"duplicate_id", repository.ErrApplicationExists, ErrConflict},
		{"duplicate_email", repository.ErrEmailExists, ErrConflict},
		{"not_pending", repository.ErrNotPending, ErrForbidden},
		{"slot", fmt.Errorf("%w: %q", attachment.ErrInvalidSlot, "x"), ErrInvalidSlot},
		{"reference", attachment.ErrInvalidReference, ErrValidation},
		{"cursor", repository.ErrInvalidCursor, ErrValidation},
		{"cancelled", context.Canceled, context.Canceled},
		{"already_translated", ErrConflict, ErrConflict},
		{"unknown", errors.New("dial tcp 10.0.0.5:5432: connection refused"), ErrStorage},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := translate(test.in)
			if !errors.Is(got, test.want) {
				t.Fatalf("translate(%v) = %v, want %v", test.in, got, test.want)
			}
		})
	}
}

func TestTranslate_StorageHidesDetail(t *testing.T) {
	err := translate(errors.New("password authentication failed for user permitdesk"))
	if strings.Contains(err.Error(), "password") {
		t.Errorf("storage error leaked detail: %q", err)
	}
}

func TestValidationError(t *testing.T) {
	err := invalid("required", "owner_name", "address")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("ValidationError should match ErrValidation")
	}
	if got := err.Error(); got != "validation failed: required (owner_name, address)" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(ErrInvalidSlot, ErrValidation) {
		t.Error("ErrInvalidSlot should wrap ErrValidation")
	}
}
