package workflow

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bizpermit/permitdesk/internal/access"
	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/repository"
	"github.com/bizpermit/permitdesk/internal/testutil"
	"golang.org/x/sync/errgroup"
)

var (
	admin = &model.Actor{UserID: "admin", Role: model.RoleAdmin}
	owner = &model.Actor{UserID: "owner", Role: model.RoleUser}
)

func TestAllowed(t *testing.T) {
	tests := []struct {
		from, to model.Status
		want     bool
	}{
		{model.StatusPending, model.StatusApproved, true},
		{model.StatusPending, model.StatusRejected, true},
		{model.StatusPending, model.StatusPending, false},
		{model.StatusApproved, model.StatusRejected, false},
		{model.StatusApproved, model.StatusPending, false},
		{model.StatusRejected, model.StatusApproved, false},
		{model.StatusRejected, model.StatusPending, false},
		{model.StatusApproved, model.StatusApproved, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := Allowed(tt.from, tt.to); got != tt.want {
				t.Errorf("Allowed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func seed(t *testing.T) (*repository.MemoryStore, *model.Application) {
	t.Helper()
	store := repository.NewMemoryStore()
	app := testutil.NewTestApplication(t, owner.UserID, "Panaderia")
	if err := store.CreateApplication(context.Background(), app); err != nil {
		t.Fatalf("CreateApplication failed: %v", err)
	}
	return store, app
}

func TestTransition_Approve(t *testing.T) {
	store, app := seed(t)
	now := app.CreatedAt.Add(time.Hour)

	got, err := Transition(context.Background(), store, admin, app.ID, model.StatusApproved, now)
	if err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if got.Status != model.StatusApproved || !got.UpdatedAt.Equal(now) {
		t.Errorf("unexpected result: %s at %s", got.Status, got.UpdatedAt)
	}

	stored, _ := store.GetApplicationByID(context.Background(), app.ID)
	if stored.Status != model.StatusApproved {
		t.Errorf("stored status = %s", stored.Status)
	}
}

func TestTransition_TerminalIsFinal(t *testing.T) {
	store, app := seed(t)
	ctx := context.Background()

	if _, err := Transition(ctx, store, admin, app.ID, model.StatusRejected, time.Now().UTC()); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	for _, target := range model.AllStatuses {
		if _, err := Transition(ctx, store, admin, app.ID, target, time.Now().UTC()); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Rejected -> %s: expected ErrInvalidTransition, got %v", target, err)
		}
	}

	stored, _ := store.GetApplicationByID(ctx, app.ID)
	if stored.Status != model.StatusRejected {
		t.Errorf("terminal record changed to %s", stored.Status)
	}
}

func TestTransition_RequiresAdmin(t *testing.T) {
	store, app := seed(t)

	_, err := Transition(context.Background(), store, owner, app.ID, model.StatusApproved, time.Now().UTC())
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTransition_UnknownID(t *testing.T) {
	store, _ := seed(t)

	_, err := Transition(context.Background(), store, admin, "missing", model.StatusApproved, time.Now().UTC())
	if !errors.Is(err, repository.ErrApplicationNotFound) {
		t.Fatalf("expected ErrApplicationNotFound, got %v", err)
	}
}

// staleStore reports the record as Pending but loses every swap, as if
// another reviewer committed between the read and the write.
type staleStore struct {
	*repository.MemoryStore
}

func (s staleStore) CompareAndSwapStatus(context.Context, string, model.Status, model.Status, time.Time) (bool, error) {
	return false, nil
}

func TestTransition_LostSwapIsConflict(t *testing.T) {
	store, app := seed(t)

	_, err := Transition(context.Background(), staleStore{store}, admin, app.ID, model.StatusApproved, time.Now().UTC())
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestTransition_ConcurrentDecisions(t *testing.T) {
	store, app := seed(t)

	var approved, rejected, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		target := model.StatusApproved
		if i%2 == 1 {
			target = model.StatusRejected
		}
		g.Go(func() error {
			_, err := Transition(context.Background(), store, admin, app.ID, target, time.Now().UTC())
			switch {
			case err == nil && target == model.StatusApproved:
				approved.Add(1)
			case err == nil:
				rejected.Add(1)
			case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidTransition):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if approved.Load()+rejected.Load() != 1 {
		t.Fatalf("expected exactly one winner, got approved=%d rejected=%d", approved.Load(), rejected.Load())
	}

	stored, _ := store.GetApplicationByID(context.Background(), app.ID)
	want := model.StatusApproved
	if rejected.Load() == 1 {
		want = model.StatusRejected
	}
	if stored.Status != want {
		t.Errorf("stored status %s does not match the winner %s", stored.Status, want)
	}
}
