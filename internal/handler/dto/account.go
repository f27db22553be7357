package dto

import (
	"time"

	"github.com/bizpermit/permitdesk/internal/model"
)

// CredentialsRequest is the body of register and login.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserResponse represents a user without credentials.
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is returned by register and login. The key is shown once.
type SessionResponse struct {
	User   UserResponse               `json:"user"`
	APIKey model.APIKeyCreateResponse `json:"api_key"`
}

// APIKeyListResponse represents the caller's API keys.
type APIKeyListResponse struct {
	Data []model.APIKeyResponse `json:"data"`
}

// ToSessionResponse converts a user and its freshly issued key.
func ToSessionResponse(user *model.User, key *model.IssuedKey) *SessionResponse {
	return &SessionResponse{
		User: UserResponse{
			ID:        user.ID,
			Email:     user.Email,
			Role:      string(user.Role),
			CreatedAt: user.CreatedAt,
		},
		APIKey: key.ToCreateResponse(),
	}
}
