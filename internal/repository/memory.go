package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bizpermit/permitdesk/internal/model"
)

// MemoryStore is an in-process Store.
//
// The maps are guarded by mu; each application additionally carries its own
// mutex so status transitions and attachment merges on one record serialize
// without blocking the rest of the store.
type MemoryStore struct {
	mu sync.RWMutex

	apps    map[string]*memRecord
	ordered []string            // ids, created_at DESC, id DESC
	byOwner map[string][]string // owner id -> ids, same order

	users        map[string]*model.User
	usersByEmail map[string]string

	keys map[string]*model.APIKey
}

type memRecord struct {
	mu  sync.Mutex
	app *model.Application
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps:         make(map[string]*memRecord),
		byOwner:      make(map[string][]string),
		users:        make(map[string]*model.User),
		usersByEmail: make(map[string]string),
		keys:         make(map[string]*model.APIKey),
	}
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// CreateApplication stores a copy of app.
func (s *MemoryStore) CreateApplication(ctx context.Context, app *model.Application) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[app.ID]; ok {
		return ErrApplicationExists
	}

	stored := app.Clone()
	s.apps[app.ID] = &memRecord{app: stored}
	s.ordered = s.insertOrdered(s.ordered, stored)
	s.byOwner[app.OwnerID] = s.insertOrdered(s.byOwner[app.OwnerID], stored)
	return nil
}

// insertOrdered places app into ids keeping created_at DESC, id DESC order.
// Callers hold mu.
func (s *MemoryStore) insertOrdered(ids []string, app *model.Application) []string {
	i, _ := slices.BinarySearchFunc(ids, app, func(id string, target *model.Application) int {
		other := s.apps[id].app
		switch {
		case other.CreatedAt.After(target.CreatedAt):
			return -1
		case other.CreatedAt.Before(target.CreatedAt):
			return 1
		}
		return strings.Compare(target.ID, other.ID)
	})
	return slices.Insert(ids, i, app.ID)
}

func (s *MemoryStore) record(id string) (*memRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.apps[id]
	return rec, ok
}

func (r *memRecord) snapshot() *model.Application {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.app.Clone()
}

// GetApplicationByID returns a copy of the stored application.
func (s *MemoryStore) GetApplicationByID(ctx context.Context, id string) (*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := s.record(id)
	if !ok {
		return nil, ErrApplicationNotFound
	}
	return rec.snapshot(), nil
}

// ListApplicationsByOwner returns copies of the owner's applications, newest first.
func (s *MemoryStore) ListApplicationsByOwner(ctx context.Context, ownerID string) ([]*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byOwner[ownerID]
	apps := make([]*model.Application, 0, len(ids))
	for _, id := range ids {
		apps = append(apps, s.apps[id].snapshot())
	}
	return apps, nil
}

// ListApplications returns one page of applications matching filter.
func (s *MemoryStore) ListApplications(ctx context.Context, filter ApplicationFilter, cursor string, limit int) ([]*model.Application, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
	}

	needle := strings.ToLower(filter.BusinessName)

	s.mu.RLock()
	defer s.mu.RUnlock()

	apps := []*model.Application{}
	for _, id := range s.ordered {
		app := s.apps[id].snapshot()
		if cursorData != nil && !cursorData.before(app.CreatedAt, app.ID) {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, app.Status) {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(app.BusinessName), needle) {
			continue
		}
		apps = append(apps, app)
		if len(apps) > limit {
			break
		}
	}

	var nextCursor string
	if len(apps) > limit {
		apps = apps[:limit]
		last := apps[len(apps)-1]
		nextCursor = encodeCursor(&PaginationCursor{ID: last.ID, CreatedAt: last.CreatedAt})
	}
	return apps, nextCursor, nil
}

// CompareAndSwapStatus sets status to next only if it currently equals expected.
func (s *MemoryStore) CompareAndSwapStatus(ctx context.Context, id string, expected, next model.Status, updatedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	rec, ok := s.record(id)
	if !ok {
		return false, ErrApplicationNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.app.Status != expected {
		return false, nil
	}
	rec.app.Status = next
	rec.app.UpdatedAt = laterOf(rec.app.CreatedAt, updatedAt)
	return true, nil
}

// AttachDocument records ref in an empty slot of a pending application.
// UpdatedAt tracks status transitions only and is left alone.
func (s *MemoryStore) AttachDocument(ctx context.Context, id string, slot model.Slot, ref string) (*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := s.record(id)
	if !ok {
		return nil, ErrApplicationNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if rec.app.HasAttachment(slot) {
		return nil, ErrSlotOccupied
	}
	if !rec.app.IsPending() {
		return nil, ErrNotPending
	}

	if rec.app.Attachments == nil {
		rec.app.Attachments = make(map[model.Slot]string)
	}
	rec.app.Attachments[slot] = ref
	return rec.app.Clone(), nil
}

// UpdateApplicationFields replaces the descriptive fields of a pending application.
func (s *MemoryStore) UpdateApplicationFields(ctx context.Context, id string, fields model.ApplicationFields) (*model.Application, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec, ok := s.record(id)
	if !ok {
		return nil, ErrApplicationNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	if !rec.app.IsPending() {
		return nil, ErrNotPending
	}

	rec.app.OwnerName = fields.OwnerName
	rec.app.BusinessName = fields.BusinessName
	rec.app.BusinessType = fields.BusinessType
	rec.app.Address = fields.Address
	return rec.app.Clone(), nil
}

// CountApplicationsByStatus tallies applications per status.
func (s *MemoryStore) CountApplicationsByStatus(ctx context.Context) (model.StatusCounts, error) {
	var counts model.StatusCounts
	if err := ctx.Err(); err != nil {
		return counts, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.apps {
		rec.mu.Lock()
		counts.Add(rec.app.Status, 1)
		rec.mu.Unlock()
	}
	return counts, nil
}

// CreateUser stores a copy of user. Emails are compared exactly.
func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.usersByEmail[user.Email]; ok {
		return ErrEmailExists
	}
	if _, ok := s.users[user.ID]; ok {
		return ErrEmailExists
	}

	u := *user
	s.users[user.ID] = &u
	s.usersByEmail[user.Email] = user.ID
	return nil
}

// GetUserByID retrieves a user by their ID.
func (s *MemoryStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *u
	return &c, nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	id, ok := s.usersByEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrUserNotFound
	}
	return s.GetUserByID(ctx, id)
}

// CreateAPIKey stores a copy of key.
func (s *MemoryStore) CreateAPIKey(ctx context.Context, key *model.APIKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := cloneKey(key)
	k.UserRole = ""
	s.keys[key.ID] = k
	return nil
}

// GetAPIKeyByID retrieves an API key by its ID.
func (s *MemoryStore) GetAPIKeyByID(ctx context.Context, id string) (*model.APIKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	k, ok := s.keys[id]
	if !ok {
		return nil, ErrAPIKeyNotFound
	}
	return cloneKey(k), nil
}

// GetAPIKeysByPrefix returns active keys with the prefix, each carrying its owner's role.
func (s *MemoryStore) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*model.APIKey
	for _, k := range s.keys {
		if k.KeyPrefix != prefix || k.IsRevoked() {
			continue
		}
		u, ok := s.users[k.UserID]
		if !ok {
			continue
		}
		c := cloneKey(k)
		c.UserRole = u.Role
		keys = append(keys, c)
	}
	return keys, nil
}

// ListAPIKeysByUserID returns the user's keys, newest first.
func (s *MemoryStore) ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []*model.APIKey
	for _, k := range s.keys {
		if k.UserID == userID {
			keys = append(keys, cloneKey(k))
		}
	}
	slices.SortFunc(keys, func(a, b *model.APIKey) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return keys, nil
}

// RevokeAPIKey marks an active key as revoked.
func (s *MemoryStore) RevokeAPIKey(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k, ok := s.keys[id]
	if !ok || k.IsRevoked() {
		return ErrAPIKeyNotFound
	}
	now := time.Now().UTC()
	k.RevokedAt = &now
	return nil
}

// UpdateAPIKeyLastUsed updates the last used timestamp.
func (s *MemoryStore) UpdateAPIKeyLastUsed(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if k, ok := s.keys[id]; ok {
		now := time.Now().UTC()
		k.LastUsedAt = &now
	}
	return nil
}

func cloneKey(k *model.APIKey) *model.APIKey {
	c := *k
	c.Scopes = slices.Clone(k.Scopes)
	return &c
}

func laterOf(a, b time.Time) time.Time {
	if b.Before(a) {
		return a
	}
	return b
}
