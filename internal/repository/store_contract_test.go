package repository

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/testutil"
	"golang.org/x/sync/errgroup"
)

// runStoreContract exercises behaviour every Store implementation must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) (context.Context, Store)) {
	t.Run("CreateAndGet", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)

		app := testutil.NewTestApplication(t, owner.ID, "Sari-Sari Store")
		app.Attachments[model.SlotIDDocument] = "s3://permits/id.png"
		if err := store.CreateApplication(ctx, app); err != nil {
			t.Fatalf("CreateApplication failed: %v", err)
		}

		got, err := store.GetApplicationByID(ctx, app.ID)
		if err != nil {
			t.Fatalf("GetApplicationByID failed: %v", err)
		}
		if got.BusinessName != app.BusinessName || got.Status != model.StatusPending {
			t.Errorf("unexpected application: %+v", got)
		}
		if got.Attachments[model.SlotIDDocument] != "s3://permits/id.png" {
			t.Errorf("attachments not persisted: %v", got.Attachments)
		}
		if !got.CreatedAt.Equal(app.CreatedAt) || !got.UpdatedAt.Equal(app.CreatedAt) {
			t.Errorf("timestamps not persisted")
		}

		if err := store.CreateApplication(ctx, app); !errors.Is(err, ErrApplicationExists) {
			t.Errorf("expected ErrApplicationExists, got %v", err)
		}
		if _, err := store.GetApplicationByID(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, ErrApplicationNotFound) {
			t.Errorf("expected ErrApplicationNotFound, got %v", err)
		}
	})

	t.Run("ReturnedCopiesAreDetached", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)
		app := contractApp(t, ctx, store, owner.ID, "Bakery", 0)

		got, _ := store.GetApplicationByID(ctx, app.ID)
		got.Attachments[model.SlotLeaseDocument] = "tampered"
		got.Status = model.StatusApproved

		again, _ := store.GetApplicationByID(ctx, app.ID)
		if again.HasAttachment(model.SlotLeaseDocument) || again.Status != model.StatusPending {
			t.Errorf("mutating a returned record changed stored state")
		}
	})

	t.Run("ListByOwner", func(t *testing.T) {
		ctx, store := newStore(t)
		alice := contractUser(t, ctx, store, model.RoleUser)
		bob := contractUser(t, ctx, store, model.RoleUser)

		older := contractApp(t, ctx, store, alice.ID, "Older", 2)
		newer := contractApp(t, ctx, store, alice.ID, "Newer", 1)
		contractApp(t, ctx, store, bob.ID, "Bob's", 0)

		apps, err := store.ListApplicationsByOwner(ctx, alice.ID)
		if err != nil {
			t.Fatalf("ListApplicationsByOwner failed: %v", err)
		}
		if len(apps) != 2 || apps[0].ID != newer.ID || apps[1].ID != older.ID {
			t.Fatalf("expected [newer, older], got %v", ids(apps))
		}

		none, err := store.ListApplicationsByOwner(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
		if err != nil {
			t.Fatalf("ListApplicationsByOwner failed: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("expected no applications, got %d", len(none))
		}
	})

	t.Run("ListPaginates", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)

		var want []string
		for i := 0; i < 5; i++ {
			want = append(want, contractApp(t, ctx, store, owner.ID, fmt.Sprintf("Shop %d", i), i).ID)
		}

		var got []string
		cursor := ""
		for page := 0; page < 5; page++ {
			apps, next, err := store.ListApplications(ctx, ApplicationFilter{}, cursor, 2)
			if err != nil {
				t.Fatalf("ListApplications failed: %v", err)
			}
			got = append(got, ids(apps)...)
			if next == "" {
				break
			}
			cursor = next
		}

		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Errorf("pages = %v, want %v", got, want)
		}
	})

	t.Run("ListFilters", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)

		bakery := contractApp(t, ctx, store, owner.ID, "Aling Nena's BAKERY", 0)
		hardware := contractApp(t, ctx, store, owner.ID, "Hardware 100%", 1)
		contractApp(t, ctx, store, owner.ID, "Laundry", 2)

		if ok, err := store.CompareAndSwapStatus(ctx, hardware.ID, model.StatusPending, model.StatusApproved, time.Now().UTC()); err != nil || !ok {
			t.Fatalf("CompareAndSwapStatus failed: ok=%v err=%v", ok, err)
		}

		testCases := []struct {
			name   string
			filter ApplicationFilter
			want   []string
		}{
			{"status", ApplicationFilter{Statuses: []model.Status{model.StatusApproved}}, []string{hardware.ID}},
			{"name substring ignores case", ApplicationFilter{BusinessName: "bakery"}, []string{bakery.ID}},
			{"percent is literal", ApplicationFilter{BusinessName: "100%"}, []string{hardware.ID}},
			{"combined", ApplicationFilter{Statuses: []model.Status{model.StatusPending}, BusinessName: "hard"}, nil},
		}

		for _, tc := range testCases {
			t.Run(tc.name, func(t *testing.T) {
				apps, next, err := store.ListApplications(ctx, tc.filter, "", 10)
				if err != nil {
					t.Fatalf("ListApplications failed: %v", err)
				}
				if next != "" {
					t.Errorf("unexpected next cursor")
				}
				if fmt.Sprint(ids(apps)) != fmt.Sprint(tc.want) && !(len(apps) == 0 && len(tc.want) == 0) {
					t.Errorf("got %v, want %v", ids(apps), tc.want)
				}
			})
		}

		if _, _, err := store.ListApplications(ctx, ApplicationFilter{}, "not-a-cursor!", 10); !errors.Is(err, ErrInvalidCursor) {
			t.Errorf("expected ErrInvalidCursor, got %v", err)
		}
	})

	t.Run("CompareAndSwapStatus", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)
		app := contractApp(t, ctx, store, owner.ID, "Carinderia", 0)
		later := app.CreatedAt.Add(time.Minute)

		ok, err := store.CompareAndSwapStatus(ctx, app.ID, model.StatusPending, model.StatusRejected, later)
		if err != nil || !ok {
			t.Fatalf("expected swap, got ok=%v err=%v", ok, err)
		}

		ok, err = store.CompareAndSwapStatus(ctx, app.ID, model.StatusPending, model.StatusApproved, later)
		if err != nil || ok {
			t.Fatalf("expected stale swap to miss, got ok=%v err=%v", ok, err)
		}

		got, _ := store.GetApplicationByID(ctx, app.ID)
		if got.Status != model.StatusRejected || !got.UpdatedAt.Equal(later) {
			t.Errorf("unexpected state after swap: %s at %s", got.Status, got.UpdatedAt)
		}

		if _, err := store.CompareAndSwapStatus(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", model.StatusPending, model.StatusApproved, later); !errors.Is(err, ErrApplicationNotFound) {
			t.Errorf("expected ErrApplicationNotFound, got %v", err)
		}
	})

	t.Run("CompareAndSwapStatusRace", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)
		app := contractApp(t, ctx, store, owner.ID, "Contested", 0)

		var wins atomic.Int32
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < 8; i++ {
			next := model.StatusApproved
			if i%2 == 1 {
				next = model.StatusRejected
			}
			g.Go(func() error {
				ok, err := store.CompareAndSwapStatus(gctx, app.ID, model.StatusPending, next, time.Now().UTC())
				if ok {
					wins.Add(1)
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("race failed: %v", err)
		}
		if wins.Load() != 1 {
			t.Errorf("expected exactly one winner, got %d", wins.Load())
		}
	})

	t.Run("AttachDocument", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)
		app := contractApp(t, ctx, store, owner.ID, "Print Shop", 0)
		now := time.Now().UTC()

		updated, err := store.AttachDocument(ctx, app.ID, model.SlotLeaseDocument, "s3://permits/lease.pdf")
		if err != nil {
			t.Fatalf("AttachDocument failed: %v", err)
		}
		if updated.Attachments[model.SlotLeaseDocument] != "s3://permits/lease.pdf" || updated.Status != model.StatusPending {
			t.Errorf("unexpected record after attach: %+v", updated)
		}
		if !updated.UpdatedAt.Equal(app.UpdatedAt) {
			t.Errorf("attach moved UpdatedAt from %v to %v", app.UpdatedAt, updated.UpdatedAt)
		}

		if _, err := store.AttachDocument(ctx, app.ID, model.SlotLeaseDocument, "s3://other"); !errors.Is(err, ErrSlotOccupied) {
			t.Errorf("expected ErrSlotOccupied, got %v", err)
		}

		if _, err := store.CompareAndSwapStatus(ctx, app.ID, model.StatusPending, model.StatusApproved, now); err != nil {
			t.Fatalf("CompareAndSwapStatus failed: %v", err)
		}
		if _, err := store.AttachDocument(ctx, app.ID, model.SlotIDDocument, "s3://late"); !errors.Is(err, ErrNotPending) {
			t.Errorf("expected ErrNotPending, got %v", err)
		}
		if _, err := store.AttachDocument(ctx, app.ID, model.SlotLeaseDocument, "s3://late"); !errors.Is(err, ErrSlotOccupied) {
			t.Errorf("occupied slot on a decided record: expected ErrSlotOccupied, got %v", err)
		}
		if _, err := store.AttachDocument(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", model.SlotIDDocument, "s3://x"); !errors.Is(err, ErrApplicationNotFound) {
			t.Errorf("expected ErrApplicationNotFound, got %v", err)
		}
	})

	t.Run("AttachDocumentRace", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)
		app := contractApp(t, ctx, store, owner.ID, "Contested Slot", 0)

		var wins atomic.Int32
		var g errgroup.Group
		for i := 0; i < 8; i++ {
			ref := fmt.Sprintf("s3://permits/clearance-%d.pdf", i)
			g.Go(func() error {
				_, err := store.AttachDocument(ctx, app.ID, model.SlotBarangayClearance, ref)
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, ErrSlotOccupied):
				default:
					return err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			t.Fatalf("race failed: %v", err)
		}
		if wins.Load() != 1 {
			t.Errorf("expected exactly one attach to win, got %d", wins.Load())
		}
	})

	t.Run("UpdateApplicationFields", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)
		app := contractApp(t, ctx, store, owner.ID, "Typo Shoppe", 0)

		fields := model.ApplicationFields{
			OwnerName:    app.OwnerName,
			BusinessName: "Typo Shop",
			BusinessType: app.BusinessType,
			Address:      app.Address,
		}
		updated, err := store.UpdateApplicationFields(ctx, app.ID, fields)
		if err != nil {
			t.Fatalf("UpdateApplicationFields failed: %v", err)
		}
		if updated.BusinessName != "Typo Shop" {
			t.Errorf("BusinessName = %q", updated.BusinessName)
		}
		if !updated.UpdatedAt.Equal(app.UpdatedAt) {
			t.Errorf("field edit moved UpdatedAt from %v to %v", app.UpdatedAt, updated.UpdatedAt)
		}

		if _, err := store.CompareAndSwapStatus(ctx, app.ID, model.StatusPending, model.StatusRejected, time.Now().UTC()); err != nil {
			t.Fatalf("CompareAndSwapStatus failed: %v", err)
		}
		if _, err := store.UpdateApplicationFields(ctx, app.ID, fields); !errors.Is(err, ErrNotPending) {
			t.Errorf("expected ErrNotPending, got %v", err)
		}
		if _, err := store.UpdateApplicationFields(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ", fields); !errors.Is(err, ErrApplicationNotFound) {
			t.Errorf("expected ErrApplicationNotFound, got %v", err)
		}
	})

	t.Run("CountApplicationsByStatus", func(t *testing.T) {
		ctx, store := newStore(t)
		owner := contractUser(t, ctx, store, model.RoleUser)
		for i := 0; i < 4; i++ {
			app := contractApp(t, ctx, store, owner.ID, fmt.Sprintf("Stall %d", i), i)
			if i == 0 {
				_, _ = store.CompareAndSwapStatus(ctx, app.ID, model.StatusPending, model.StatusApproved, time.Now().UTC())
			}
		}

		counts, err := store.CountApplicationsByStatus(ctx)
		if err != nil {
			t.Fatalf("CountApplicationsByStatus failed: %v", err)
		}
		want := model.StatusCounts{Total: 4, Pending: 3, Approved: 1}
		if counts != want {
			t.Errorf("counts = %+v, want %+v", counts, want)
		}
	})
}

func contractUser(t *testing.T, ctx context.Context, store Store, role model.Role) *model.User {
	t.Helper()
	user := testutil.NewTestUser(t, role)
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	return user
}

// contractApp creates a pending application aged minutes old.
func contractApp(t *testing.T, ctx context.Context, store Store, ownerID, name string, minutes int) *model.Application {
	t.Helper()
	app := testutil.NewTestApplication(t, ownerID, name)
	app.CreatedAt = app.CreatedAt.Add(-time.Duration(minutes) * time.Minute)
	app.UpdatedAt = app.CreatedAt
	if err := store.CreateApplication(ctx, app); err != nil {
		t.Fatalf("CreateApplication failed: %v", err)
	}
	return app
}

func ids(apps []*model.Application) []string {
	out := make([]string, 0, len(apps))
	for _, a := range apps {
		out = append(out, a.ID)
	}
	return out
}
