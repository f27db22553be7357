package repository

import (
	"context"
	"time"

	"github.com/bizpermit/permitdesk/internal/model"
)

// ApplicationFilter narrows the review listing.
// Zero values mean "no constraint".
type ApplicationFilter struct {
	Statuses     []model.Status
	BusinessName string // case-insensitive substring
}

// ApplicationStore persists permit applications.
//
// Status and attachment writes are conditional and atomic: implementations must
// never apply a partial update or overwrite a concurrent winner.
type ApplicationStore interface {
	CreateApplication(ctx context.Context, app *model.Application) error
	GetApplicationByID(ctx context.Context, id string) (*model.Application, error)
	ListApplicationsByOwner(ctx context.Context, ownerID string) ([]*model.Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter, cursor string, limit int) ([]*model.Application, string, error)
	CompareAndSwapStatus(ctx context.Context, id string, expected, next model.Status, updatedAt time.Time) (bool, error)
	AttachDocument(ctx context.Context, id string, slot model.Slot, ref string) (*model.Application, error)
	UpdateApplicationFields(ctx context.Context, id string, fields model.ApplicationFields) (*model.Application, error)
	CountApplicationsByStatus(ctx context.Context) (model.StatusCounts, error)
}

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// APIKeyStore persists API key credentials.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error)
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	RevokeAPIKey(ctx context.Context, id string) error
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// Store is the full persistence surface used by the API.
type Store interface {
	ApplicationStore
	UserStore
	APIKeyStore
	Ping(ctx context.Context) error
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*MemoryStore)(nil)
)
