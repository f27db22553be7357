// Package access decides who may see and change an application.
//
// Existence of another user's application is never revealed: a reader who
// is neither the owner nor an admin gets ErrNotFound, the same error an
// unknown id produces.
package access

import (
	"errors"

	"github.com/bizpermit/permitdesk/internal/model"
)

// Access errors.
var (
	ErrUnauthorized = errors.New("no authenticated actor")
	ErrForbidden    = errors.New("actor may not perform this operation")
	ErrNotFound     = errors.New("application not found")
)

// CanRead allows admins and the owner.
func CanRead(actor *model.Actor, app *model.Application) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if actor.IsAdmin() || actor.Owns(app.OwnerID) {
		return nil
	}
	return ErrNotFound
}

// CanTransition allows admins only.
func CanTransition(actor *model.Actor) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// CanReview allows admins to use the cross-owner listing and dashboard.
func CanReview(actor *model.Actor) error {
	return CanTransition(actor)
}

// CanMutateFields allows the owner while the application is Pending.
// An admin who is not the owner can see the record, so gets ErrForbidden
// rather than ErrNotFound.
func CanMutateFields(actor *model.Actor, app *model.Application) error {
	if err := CanOwnerWrite(actor, app); err != nil {
		return err
	}
	if !app.IsPending() {
		return ErrForbidden
	}
	return nil
}

// CanOwnerWrite allows the owner regardless of status.
func CanOwnerWrite(actor *model.Actor, app *model.Application) error {
	if actor == nil {
		return ErrUnauthorized
	}
	if actor.Owns(app.OwnerID) {
		return nil
	}
	if actor.IsAdmin() {
		return ErrForbidden
	}
	return ErrNotFound
}
