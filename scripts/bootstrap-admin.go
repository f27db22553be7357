// Command bootstrap-admin creates or promotes a reviewer account and issues
// it an API key. Registration only ever creates user-role accounts, so this
// is the out-of-band path to the admin role.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/repository"
)

type output struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	KeyID     string   `json:"key_id"`
	Key       string   `json:"key"`
	KeyPrefix string   `json:"key_prefix"`
	Scopes    []string `json:"scopes"`
}

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		email       = flag.String("email", "reviewer@permitdesk.local", "Admin email")
		name        = flag.String("name", "bootstrap", "API key name")
		scopesInput = flag.String("scopes", "read,write", "Comma-separated scopes (read,write)")
		env         = flag.String("env", auth.EnvLive, "Key environment: live or test")
		format      = flag.String("format", "plain", "Output format: plain or json")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	// The password is read from the environment so it never lands in shell history.
	password := os.Getenv("ADMIN_PASSWORD")
	if err := auth.ValidatePassword(password); err != nil {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD:", err)
		os.Exit(1)
	}

	scopes, err := parseScopes(*scopesInput)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	repo, err := repository.New(ctx, *databaseURL, repository.PoolOptions{MaxConns: 2})
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer repo.Close()

	user, err := ensureAdmin(ctx, repo, strings.ToLower(strings.TrimSpace(*email)), password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	issued, err := auth.IssueAPIKey(auth.KeySpec{
		UserID: user.ID,
		Name:   *name,
		Scopes: scopes,
		Tier:   model.TierUnlimited,
		Env:    *env,
	}, time.Now().UTC())
	if err != nil {
		fmt.Fprintln(os.Stderr, "generate api key:", err)
		os.Exit(1)
	}
	if err := repo.CreateAPIKey(ctx, issued.Key); err != nil {
		fmt.Fprintln(os.Stderr, "create api key:", err)
		os.Exit(1)
	}

	out := output{
		UserID:    user.ID,
		Email:     user.Email,
		KeyID:     issued.Key.ID,
		Key:       issued.Plaintext,
		KeyPrefix: issued.Key.KeyPrefix,
		Scopes:    issued.Key.Scopes,
	}

	switch strings.ToLower(*format) {
	case "plain":
		fmt.Println(out.Key)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(out)
	default:
		fmt.Fprintln(os.Stderr, "invalid format; use plain or json")
		os.Exit(1)
	}
}

func parseScopes(input string) ([]string, error) {
	parts := strings.Split(input, ",")
	scopes := make([]string, 0, len(parts))
	for _, part := range parts {
		scope := strings.TrimSpace(part)
		if scope == "" {
			continue
		}
		if !isValidScope(scope) {
			return nil, fmt.Errorf("invalid scope: %s", scope)
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = model.DefaultScopes
	}
	return scopes, nil
}

func isValidScope(scope string) bool {
	for _, allowed := range model.ValidScopes {
		if scope == allowed {
			return true
		}
	}
	return false
}

// ensureAdmin returns the admin account for email, creating it if needed.
// An existing non-admin account is refused rather than silently promoted.
func ensureAdmin(ctx context.Context, repo *repository.Repository, email, password string) (*model.User, error) {
	existing, err := repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			return nil, fmt.Errorf("user %s exists with role %s", email, existing.Role)
		}
		return existing, nil
	case !errors.Is(err, repository.ErrUserNotFound):
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		ID:           ulid.Make().String(),
		Email:        email,
		Role:         model.RoleAdmin,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
