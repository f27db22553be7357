package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bizpermit/permitdesk/internal/access"
	"github.com/bizpermit/permitdesk/internal/attachment"
	"github.com/bizpermit/permitdesk/internal/repository"
	"github.com/bizpermit/permitdesk/internal/workflow"
)

// Service errors. Handlers map these to HTTP status codes.
var (
	ErrValidation        = errors.New("validation failed")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage unavailable")

	// ErrInvalidSlot is a validation failure naming an unknown attachment slot.
	ErrInvalidSlot = fmt.Errorf("%w: unknown attachment slot", ErrValidation)
)

// ValidationError lists every offending input field.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	msg := "validation failed"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	return msg
}

// Is makes errors.Is(err, ErrValidation) true for a *ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func invalid(reason string, fields ...string) *ValidationError {
	return &ValidationError{Fields: fields, Reason: reason}
}

// translate maps errors from the layers below onto the service sentinels.
// Unknown errors become ErrStorage; their detail stays out of the message.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case isServiceError(err):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err

	case errors.Is(err, access.ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, access.ErrForbidden):
		return fmt.Errorf("%w: %s", ErrForbidden, detail(err, access.ErrForbidden))
	case errors.Is(err, access.ErrNotFound),
		errors.Is(err, repository.ErrApplicationNotFound):
		return ErrNotFound

	case errors.Is(err, workflow.ErrInvalidTransition):
		return fmt.Errorf("%w: %s", ErrInvalidTransition, detail(err, workflow.ErrInvalidTransition))
	case errors.Is(err, workflow.ErrConflict):
		return fmt.Errorf("%w: status changed concurrently", ErrConflict)
	case errors.Is(err, attachment.ErrSlotOccupied),
		errors.Is(err, repository.ErrSlotOccupied):
		return fmt.Errorf("%w: attachment slot already populated", ErrConflict)
	case errors.Is(err, repository.ErrApplicationExists):
		return fmt.Errorf("%w: application id already in use", ErrConflict)
	case errors.Is(err, repository.ErrEmailExists):
		return fmt.Errorf("%w: email already registered", ErrConflict)
	case errors.Is(err, repository.ErrNotPending):
		return fmt.Errorf("%w: application is no longer pending", ErrForbidden)

	case errors.Is(err, attachment.ErrInvalidSlot):
		return fmt.Errorf("%w: %s", ErrInvalidSlot, detail(err, attachment.ErrInvalidSlot))
	case errors.Is(err, attachment.ErrInvalidReference):
		return invalid(detail(err, attachment.ErrInvalidReference), "reference")
	case errors.Is(err, repository.ErrInvalidCursor):
		return invalid("malformed cursor", "cursor")
	}
	return ErrStorage
}

func isServiceError(err error) bool {
	for _, target := range []error{
		ErrValidation, ErrUnauthorized, ErrForbidden, ErrNotFound,
		ErrInvalidTransition, ErrConflict, ErrStorage,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err, sentinel error) string {
	msg := err.Error()
	if rest, ok := strings.CutPrefix(msg, sentinel.Error()+": "); ok {
		return rest
	}
	return msg
}

// isTransient reports whether a failed read is worth retrying.
func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, repository.ErrApplicationNotFound),
		errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrAPIKeyNotFound),
		errors.Is(err, repository.ErrInvalidCursor):
		return false
	}
	return true
}
