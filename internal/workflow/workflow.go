// Package workflow implements the application status state machine.
//
//	Pending ──▶ Approved
//	   └──────▶ Rejected
//
// Approved and Rejected are terminal.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bizpermit/permitdesk/internal/access"
	"github.com/bizpermit/permitdesk/internal/model"
)

// Workflow errors.
var (
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrConflict          = errors.New("status changed concurrently")
)

var transitions = map[model.Status][]model.Status{
	model.StatusPending: {model.StatusApproved, model.StatusRejected},
}

// Allowed reports whether from -> to is an edge of the state machine.
func Allowed(from, to model.Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Validate returns ErrInvalidTransition unless from -> to is allowed.
func Validate(from, to model.Status) error {
	if !Allowed(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Store is the slice of the record store a transition needs.
type Store interface {
	GetApplicationByID(ctx context.Context, id string) (*model.Application, error)
	CompareAndSwapStatus(ctx context.Context, id string, expected, next model.Status, updatedAt time.Time) (bool, error)
}

// Transition moves application id to target on behalf of actor.
//
// The swap is conditioned on the status observed during the read, so of two
// concurrent decisions exactly one wins and the other gets ErrConflict.
// Nothing is retried.
func Transition(ctx context.Context, store Store, actor *model.Actor, id string, target model.Status, now time.Time) (*model.Application, error) {
	app, err := store.GetApplicationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := access.CanTransition(actor); err != nil {
		return nil, err
	}

	if err := Validate(app.Status, target); err != nil {
		return nil, err
	}

	swapped, err := store.CompareAndSwapStatus(ctx, id, app.Status, target, now)
	if err != nil {
		return nil, err
	}
	if !swapped {
		return nil, ErrConflict
	}

	app.Status = target
	if now.After(app.CreatedAt) {
		app.UpdatedAt = now
	} else {
		app.UpdatedAt = app.CreatedAt
	}
	return app, nil
}
