package model

// Actor is the authenticated identity on whose behalf a core operation runs.
// It is passed explicitly into every service call.
type Actor struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the actor may review applications.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Owns reports whether the actor is the owner with the given id.
func (a *Actor) Owns(ownerID string) bool {
	return a != nil && a.UserID != "" && a.UserID == ownerID
}
