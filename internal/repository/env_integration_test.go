//go:build integration

package repository

import (
	"context"
	"testing"

	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/testutil"
)

// ============================================================================
// Test Environment Setup
// ============================================================================

func newIntegrationRepo(t *testing.T) (context.Context, *Repository) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := New(ctx, dbURL, PoolOptions{MaxConns: 8})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	return ctx, repo
}

func seedUser(t *testing.T, ctx context.Context, repo *Repository, role model.Role) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, role)
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}
