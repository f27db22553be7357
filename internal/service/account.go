package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"slices"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/repository"
)

const maxEmailLen = 254

// AccountStore is the persistence the account service needs.
type AccountStore interface {
	repository.UserStore
	repository.APIKeyStore
}

// KeyInvalidator drops cached authentication derived from an API key.
type KeyInvalidator interface {
	InvalidateAPIKey(ctx context.Context, keyID string) error
}

// AccountService registers users, logs them in, and manages their API keys.
type AccountService struct {
	store       AccountStore
	invalidator KeyInvalidator // nil when auth caching is off
	logger      *slog.Logger
	keyEnv      string
	now         func() time.Time
}

// NewAccountService creates a new AccountService. keyEnv selects the
// pk_live_/pk_test_ key prefix.
func NewAccountService(store AccountStore, invalidator KeyInvalidator, logger *slog.Logger, keyEnv string) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	if keyEnv != auth.EnvTest {
		keyEnv = auth.EnvLive
	}
	return &AccountService{
		store:       store,
		invalidator: invalidator,
		logger:      logger.With("component", "service.account"),
		keyEnv:      keyEnv,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Session is an authenticated user together with a freshly issued key.
type Session struct {
	User *model.User
	Key  *model.IssuedKey
}

// Register creates a user-role account and issues its first API key.
// The role is never taken from the caller.
func (s *AccountService) Register(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	var bad []string
	if err != nil {
		bad = append(bad, "email")
	}
	if auth.ValidatePassword(password) != nil {
		bad = append(bad, "password")
	}
	if len(bad) > 0 {
		return nil, invalid("email must be valid and password 8 to 128 characters", bad...)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.String("error", err.Error()))
		return nil, ErrStorage
	}

	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Role:         model.RoleUser,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, s.fail("create user", err)
	}

	key, err := s.issue(ctx, auth.KeySpec{UserID: user.ID, Name: "registration"})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", slog.String("user_id", user.ID))
	return &Session{User: user, Key: key}, nil
}

// Login checks credentials and issues a new API key. An unknown email and a
// wrong password both yield ErrUnauthorized after the same hashing work.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		auth.VerifyDecoy(password)
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, s.fail("lookup user", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return nil, ErrUnauthorized
	}
	if !ok {
		return nil, ErrUnauthorized
	}

	key, err := s.issue(ctx, auth.KeySpec{UserID: user.ID, Name: "login"})
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Key: key}, nil
}

// ListKeys returns the actor's API keys, revoked ones included.
func (s *AccountService) ListKeys(ctx context.Context, actor *model.Actor) ([]*model.APIKey, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	keys, err := s.store.ListAPIKeysByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, s.fail("list api keys", err)
	}
	return keys, nil
}

// CreateKey issues an additional API key for the actor.
func (s *AccountService) CreateKey(ctx context.Context, actor *model.Actor, req model.APIKeyCreateRequest) (*model.IssuedKey, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	for _, scope := range req.Scopes {
		if !slices.Contains(model.ValidScopes, scope) {
			return nil, invalid("unknown scope "+scope, "scopes")
		}
	}
	return s.issue(ctx, auth.KeySpec{
		UserID: actor.UserID,
		Name:   strings.TrimSpace(req.Name),
		Scopes: req.Scopes,
	})
}

// RevokeKey revokes one of the actor's keys. Other users' keys and
// already-revoked keys are reported as ErrNotFound.
func (s *AccountService) RevokeKey(ctx context.Context, actor *model.Actor, keyID string) error {
	if actor == nil {
		return ErrUnauthorized
	}

	key, err := s.store.GetAPIKeyByID(ctx, keyID)
	if errors.Is(err, repository.ErrAPIKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return s.fail("get api key", err)
	}
	if key.UserID != actor.UserID || key.IsRevoked() {
		return ErrNotFound
	}

	if err := s.store.RevokeAPIKey(ctx, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrNotFound
		}
		return s.fail("revoke api key", err)
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateAPIKey(ctx, keyID); err != nil {
			s.logger.Warn("failed to invalidate cached auth for revoked key",
				slog.String("key_id", keyID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("API key revoked",
		slog.String("key_id", keyID),
		slog.String("user_id", actor.UserID),
	)
	return nil
}

func (s *AccountService) issue(ctx context.Context, spec auth.KeySpec) (*model.IssuedKey, error) {
	spec.Env = s.keyEnv
	issued, err := auth.IssueAPIKey(spec, s.now())
	if err != nil {
		s.logger.Error("failed to generate API key", slog.String("error", err.Error()))
		return nil, ErrStorage
	}
	if err := s.store.CreateAPIKey(ctx, issued.Key); err != nil {
		return nil, s.fail("create api key", err)
	}
	return issued, nil
}

func (s *AccountService) fail(op string, err error) error {
	out := translate(err)
	if errors.Is(out, ErrStorage) {
		s.logger.Error(op+" failed", slog.String("error", err.Error()))
	}
	return out
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || len(email) > maxEmailLen {
		return "", ErrValidation
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrValidation
	}
	return email, nil
}
