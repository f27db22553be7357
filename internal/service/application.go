// Package service provides business logic for the application.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	"github.com/bizpermit/permitdesk/internal/access"
	"github.com/bizpermit/permitdesk/internal/attachment"
	"github.com/bizpermit/permitdesk/internal/cache"
	"github.com/bizpermit/permitdesk/internal/events"
	"github.com/bizpermit/permitdesk/internal/metrics"
	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/bizpermit/permitdesk/internal/repository"
	"github.com/bizpermit/permitdesk/internal/retry"
	"github.com/bizpermit/permitdesk/internal/workflow"
)

const (
	// MaxFieldLen bounds each descriptive field, in characters.
	MaxFieldLen = 256

	DefaultPageSize = 20
	MaxPageSize     = 100

	// DefaultStatsTTL is how long dashboard counts are cached.
	DefaultStatsTTL = 30 * time.Second
)

// ApplicationStore is the persistence the application service needs.
type ApplicationStore interface {
	repository.ApplicationStore
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// StatsCache caches the review dashboard counts.
type StatsCache interface {
	GetStatusCounts(ctx context.Context) (model.StatusCounts, error)
	SetStatusCounts(ctx context.Context, counts model.StatusCounts, ttl time.Duration) error
	InvalidateStatusCounts(ctx context.Context) error
}

// ApplicationOptions tunes an ApplicationService. Zero values use defaults.
type ApplicationOptions struct {
	StatsTTL time.Duration
	Retry    retry.Policy
}

// ApplicationService runs the permit application lifecycle.
// Every call takes the acting identity explicitly.
type ApplicationService struct {
	store    ApplicationStore
	stats    StatsCache // nil disables caching
	events   events.Emitter
	metrics  metrics.Recorder
	logger   *slog.Logger
	statsTTL time.Duration
	retry    retry.Policy
	group    singleflight.Group
	now      func() time.Time
}

// NewApplicationService creates a new ApplicationService.
func NewApplicationService(store ApplicationStore, stats StatsCache, emitter events.Emitter, recorder metrics.Recorder, logger *slog.Logger, opts ApplicationOptions) *ApplicationService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if emitter == nil {
		emitter = events.Discard{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = DefaultStatsTTL
	}
	if opts.Retry.Attempts <= 0 {
		opts.Retry = retry.DefaultPolicy()
	}
	return &ApplicationService{
		store:    store,
		stats:    stats,
		events:   emitter,
		metrics:  recorder,
		logger:   logger.With("component", "service.application"),
		statsTTL: opts.StatsTTL,
		retry:    opts.Retry,
		now:      func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SubmitInput defines input for submitting an application.
type SubmitInput struct {
	ID           string // optional client-chosen ULID
	OwnerName    string
	BusinessName string
	BusinessType string
	Address      string
	Attachments  map[string]string
}

// Submit creates a Pending application owned by actor.
func (s *ApplicationService) Submit(ctx context.Context, actor *model.Actor, input SubmitInput) (model.ApplicationSummary, error) {
	if actor == nil {
		return model.ApplicationSummary{}, ErrUnauthorized
	}

	fields, err := normalizeFields(input)
	if err != nil {
		return model.ApplicationSummary{}, err
	}

	attachments, err := attachment.ParseInitial(input.Attachments)
	if err != nil {
		return model.ApplicationSummary{}, translate(err)
	}

	id := ulid.Make().String()
	if input.ID != "" {
		parsed, err := ulid.ParseStrict(input.ID)
		if err != nil {
			return model.ApplicationSummary{}, invalid("id must be a ULID", "id")
		}
		id = parsed.String()
	}

	if _, err := readWithRetry(ctx, s, func(ctx context.Context) (*model.User, error) {
		return s.store.GetUserByID(ctx, actor.UserID)
	}); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return model.ApplicationSummary{}, ErrUnauthorized
		}
		return model.ApplicationSummary{}, s.storageError("lookup owner", err)
	}

	now := s.now()
	app := &model.Application{
		ID:           id,
		OwnerID:      actor.UserID,
		OwnerName:    fields.OwnerName,
		BusinessName: fields.BusinessName,
		BusinessType: fields.BusinessType,
		Address:      fields.Address,
		Attachments:  attachments,
		Status:       model.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateApplication(ctx, app); err != nil {
		return model.ApplicationSummary{}, s.storageError("create application", err)
	}

	s.metrics.IncApplicationSubmitted()
	s.invalidateStats(ctx)
	s.events.Emit(ctx, events.Event{
		Type:          events.TypeSubmitted,
		ApplicationID: app.ID,
		ActorID:       actor.UserID,
		Status:        app.Status,
		OccurredAt:    now,
	})

	return app.Summary(), nil
}

// Get returns an application the actor may read.
func (s *ApplicationService) Get(ctx context.Context, actor *model.Actor, id string) (*model.Application, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}

	app, err := readWithRetry(ctx, s, func(ctx context.Context) (*model.Application, error) {
		return s.store.GetApplicationByID(ctx, id)
	})
	if err != nil {
		return nil, s.storageError("get application", err)
	}

	if err := access.CanRead(actor, app); err != nil {
		return nil, translate(err)
	}
	return app, nil
}

// ListMine returns the actor's own applications, newest first.
func (s *ApplicationService) ListMine(ctx context.Context, actor *model.Actor) ([]*model.Application, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}

	apps, err := readWithRetry(ctx, s, func(ctx context.Context) ([]*model.Application, error) {
		return s.store.ListApplicationsByOwner(ctx, actor.UserID)
	})
	if err != nil {
		return nil, s.storageError("list own applications", err)
	}
	return apps, nil
}

// ReviewQuery narrows the admin review listing.
type ReviewQuery struct {
	Statuses     []string
	BusinessName string
	Cursor       string
	Limit        int
}

// ApplicationPage is one page of the review listing.
type ApplicationPage struct {
	Items      []*model.Application
	NextCursor string
}

// ListForReview returns applications across all owners for an admin.
func (s *ApplicationService) ListForReview(ctx context.Context, actor *model.Actor, query ReviewQuery) (*ApplicationPage, error) {
	if err := access.CanReview(actor); err != nil {
		return nil, translate(err)
	}

	limit := query.Limit
	switch {
	case limit < 0:
		return nil, invalid("limit must not be negative", "limit")
	case limit == 0:
		limit = DefaultPageSize
	case limit > MaxPageSize:
		limit = MaxPageSize
	}

	filter := repository.ApplicationFilter{
		BusinessName: strings.TrimSpace(query.BusinessName),
	}
	for _, raw := range query.Statuses {
		status := model.Status(strings.TrimSpace(raw))
		if !status.IsValid() {
			return nil, invalid("unknown status "+raw, "status")
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	page, err := readWithRetry(ctx, s, func(ctx context.Context) (*ApplicationPage, error) {
		items, next, err := s.store.ListApplications(ctx, filter, query.Cursor, limit)
		if err != nil {
			return nil, err
		}
		return &ApplicationPage{Items: items, NextCursor: next}, nil
	})
	if err != nil {
		return nil, s.storageError("list applications", err)
	}
	return page, nil
}

// Review approves or rejects a Pending application.
func (s *ApplicationService) Review(ctx context.Context, actor *model.Actor, id, decision string) (*model.Application, error) {
	target := model.Status(decision)
	switch {
	case target == model.StatusPending:
		return nil, ErrInvalidTransition
	case !target.IsValid():
		return nil, invalid("decision must be Approved or Rejected", "status")
	}

	if err := access.CanTransition(actor); err != nil {
		return nil, translate(err)
	}

	app, err := workflow.Transition(ctx, s.store, actor, id, target, s.now())
	if err != nil {
		if errors.Is(err, workflow.ErrConflict) {
			s.metrics.IncStatusConflict()
		}
		return nil, s.storageError("review application", err)
	}

	s.metrics.IncApplicationReviewed(string(target))
	s.invalidateStats(ctx)
	s.events.Emit(ctx, events.Event{
		Type:          events.TypeReviewed,
		ApplicationID: app.ID,
		ActorID:       actor.UserID,
		Status:        app.Status,
		OccurredAt:    app.UpdatedAt,
	})

	s.logger.Info("application reviewed",
		slog.String("application_id", app.ID),
		slog.String("reviewer_id", actor.UserID),
		slog.String("status", string(app.Status)),
	)
	return app, nil
}

// Attach records a document reference in an empty slot of the actor's application.
func (s *ApplicationService) Attach(ctx context.Context, actor *model.Actor, id, slot, ref string) (map[model.Slot]string, error) {
	app, err := attachment.Attach(ctx, s.store, actor, id, slot, ref)
	if err != nil {
		return nil, s.storageError("attach document", err)
	}

	s.metrics.IncAttachmentRecorded(slot)
	s.events.Emit(ctx, events.Event{
		Type:          events.TypeAttachmentRecorded,
		ApplicationID: app.ID,
		ActorID:       actor.UserID,
		Slot:          model.Slot(slot),
		OccurredAt:    s.now(),
	})
	return app.Attachments, nil
}

// FieldsPatch holds the descriptive fields to change. Nil means unchanged.
type FieldsPatch struct {
	OwnerName    *string
	BusinessName *string
	BusinessType *string
	Address      *string
}

// UpdateFields edits the descriptive fields of a Pending application owned by actor.
func (s *ApplicationService) UpdateFields(ctx context.Context, actor *model.Actor, id string, patch FieldsPatch) (*model.Application, error) {
	if actor == nil {
		return nil, ErrUnauthorized
	}
	if patch.OwnerName == nil && patch.BusinessName == nil && patch.BusinessType == nil && patch.Address == nil {
		return nil, invalid("no fields to update")
	}

	var bad []string
	check := func(name string, v *string) {
		if v == nil {
			return
		}
		*v = strings.TrimSpace(*v)
		if *v == "" || utf8.RuneCountInString(*v) > MaxFieldLen {
			bad = append(bad, name)
		}
	}
	check("owner_name", patch.OwnerName)
	check("business_name", patch.BusinessName)
	check("business_type", patch.BusinessType)
	check("address", patch.Address)
	if len(bad) > 0 {
		return nil, invalid("fields must be non-empty and at most 256 characters", bad...)
	}

	app, err := s.store.GetApplicationByID(ctx, id)
	if err != nil {
		return nil, s.storageError("get application", err)
	}
	if err := access.CanMutateFields(actor, app); err != nil {
		return nil, translate(err)
	}

	fields := model.ApplicationFields{
		OwnerName:    app.OwnerName,
		BusinessName: app.BusinessName,
		BusinessType: app.BusinessType,
		Address:      app.Address,
	}
	if patch.OwnerName != nil {
		fields.OwnerName = *patch.OwnerName
	}
	if patch.BusinessName != nil {
		fields.BusinessName = *patch.BusinessName
	}
	if patch.BusinessType != nil {
		fields.BusinessType = *patch.BusinessType
	}
	if patch.Address != nil {
		fields.Address = *patch.Address
	}

	updated, err := s.store.UpdateApplicationFields(ctx, id, fields)
	if err != nil {
		return nil, s.storageError("update application", err)
	}
	return updated, nil
}

// Stats returns the per-status counts for the review dashboard.
func (s *ApplicationService) Stats(ctx context.Context, actor *model.Actor) (model.StatusCounts, error) {
	if err := access.CanReview(actor); err != nil {
		return model.StatusCounts{}, translate(err)
	}

	if s.stats != nil {
		counts, err := s.stats.GetStatusCounts(ctx)
		if err == nil {
			s.metrics.IncStatsCacheHit()
			return counts, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("stats cache read failed", slog.String("error", err.Error()))
		}
	}
	s.metrics.IncStatsCacheMiss()

	v, err, _ := s.group.Do("stats", func() (interface{}, error) {
		counts, err := readWithRetry(ctx, s, s.store.CountApplicationsByStatus)
		if err != nil {
			return nil, err
		}
		if s.stats != nil {
			if err := s.stats.SetStatusCounts(ctx, counts, s.statsTTL); err != nil {
				s.logger.Warn("stats cache write failed", slog.String("error", err.Error()))
			}
		}
		return counts, nil
	})
	if err != nil {
		return model.StatusCounts{}, s.storageError("count applications", err)
	}
	return v.(model.StatusCounts), nil
}

func (s *ApplicationService) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateStatusCounts(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", slog.String("error", err.Error()))
	}
}

// storageError translates err, logging the detail of anything that becomes ErrStorage.
func (s *ApplicationService) storageError(op string, err error) error {
	out := translate(err)
	if errors.Is(out, ErrStorage) && !errors.Is(err, ErrStorage) {
		s.logger.Error(op+" failed", slog.String("error", err.Error()))
	}
	return out
}

// readWithRetry retries transient store read failures. Writes never go through it.
func readWithRetry[T any](ctx context.Context, s *ApplicationService, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return retry.Do(ctx, s.retry, isTransient, func(ctx context.Context) (T, error) {
		if attempt > 0 {
			s.metrics.IncReadRetry()
		}
		attempt++
		return fn(ctx)
	})
}

func normalizeFields(input SubmitInput) (model.ApplicationFields, error) {
	fields := model.ApplicationFields{
		OwnerName:    strings.TrimSpace(input.OwnerName),
		BusinessName: strings.TrimSpace(input.BusinessName),
		BusinessType: strings.TrimSpace(input.BusinessType),
		Address:      strings.TrimSpace(input.Address),
	}

	var bad []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"owner_name", fields.OwnerName},
		{"business_name", fields.BusinessName},
		{"business_type", fields.BusinessType},
		{"address", fields.Address},
	} {
		if f.value == "" || utf8.RuneCountInString(f.value) > MaxFieldLen {
			bad = append(bad, f.name)
		}
	}
	if len(bad) > 0 {
		return fields, invalid("fields must be non-empty and at most 256 characters", bad...)
	}
	return fields, nil
}
