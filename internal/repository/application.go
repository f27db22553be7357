package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bizpermit/permitdesk/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"
)

// Common errors for application repository operations.
var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrApplicationExists   = errors.New("application already exists")
	ErrSlotOccupied        = errors.New("attachment slot already populated")
	ErrNotPending          = errors.New("application is no longer pending")
)

const applicationColumns = `id, owner_id, owner_name, business_name, business_type, address, attachments, status, created_at, updated_at`

// CreateApplication inserts a new application.
func (r *Repository) CreateApplication(ctx context.Context, app *model.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	attachments, err := marshalAttachments(app.Attachments)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, query,
		app.ID,
		app.OwnerID,
		app.OwnerName,
		app.BusinessName,
		app.BusinessType,
		app.Address,
		attachments,
		string(app.Status),
		app.CreatedAt,
		app.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrApplicationExists
		}
		return fmt.Errorf("failed to create application: %w", err)
	}

	return nil
}

// GetApplicationByID retrieves an application by its ID.
func (r *Repository) GetApplicationByID(ctx context.Context, id string) (*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	app, err := scanApplication(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("failed to get application by ID: %w", err)
	}

	return app, nil
}

// ListApplicationsByOwner returns every application of one owner, newest first.
func (r *Repository) ListApplicationsByOwner(ctx context.Context, ownerID string) ([]*model.Application, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications by owner: %w", err)
	}

	apps, err := collectApplications(rows)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

// ListApplications retrieves a page of applications for review.
func (r *Repository) ListApplications(ctx context.Context, filter ApplicationFilter, cursor string, limit int) ([]*model.Application, string, error) {
	var cursorData *PaginationCursor
	if cursor != "" {
		var err error
		cursorData, err = decodeCursor(cursor)
		if err != nil {
			return nil, "", err
		}
	}

	query := `
		SELECT ` + applicationColumns + `
		FROM applications
		WHERE TRUE
	`
	var args []any
	argIndex := 1

	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		query += fmt.Sprintf(" AND status = ANY($%d)", argIndex)
		args = append(args, pq.Array(statuses))
		argIndex++
	}

	if filter.BusinessName != "" {
		query += fmt.Sprintf(` AND lower(business_name) LIKE $%d ESCAPE '\'`, argIndex)
		args = append(args, likePattern(filter.BusinessName))
		argIndex++
	}

	if cursorData != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIndex, argIndex+1)
		args = append(args, cursorData.CreatedAt, cursorData.ID)
		argIndex += 2
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", argIndex)
	args = append(args, limit+1) // Fetch one extra to determine hasMore

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("failed to list applications: %w", err)
	}

	apps, err := collectApplications(rows)
	if err != nil {
		return nil, "", err
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
// It reports whether the row was updated.
func (r *Repository) CompareAndSwapStatus(ctx context.Context, id string, expected, next model.Status, updatedAt time.Time) (bool, error) {
	query := `
		UPDATE applications
		SET status = $3, updated_at = GREATEST(created_at, $4)
		WHERE id = $1 AND status = $2
	`

	result, err := r.pool.Exec(ctx, query, id, string(expected), string(next), updatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to update application status: %w", err)
	}
	if result.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check application existence: %w", err)
	}
	if !exists {
		return false, ErrApplicationNotFound
	}
	return false, nil
}

// AttachDocument records ref in an empty slot of a pending application.
// updated_at tracks status transitions only and is left alone.
func (r *Repository) AttachDocument(ctx context.Context, id string, slot model.Slot, ref string) (*model.Application, error) {
	query := `
		UPDATE applications
		SET attachments = attachments || jsonb_build_object($2::text, $3::text)
		WHERE id = $1 AND status = 'Pending' AND NOT (attachments ? $2::text)
		RETURNING ` + applicationColumns

	app, err := scanApplication(r.pool.QueryRow(ctx, query, id, string(slot), ref))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to attach document: %w", err)
	}

	// Both conditions are monotonic, so the current row explains the miss.
	current, err := r.GetApplicationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.HasAttachment(slot) {
		return nil, ErrSlotOccupied
	}
	return nil, ErrNotPending
}

// UpdateApplicationFields replaces the descriptive fields of a pending application.
func (r *Repository) UpdateApplicationFields(ctx context.Context, id string, fields model.ApplicationFields) (*model.Application, error) {
	query := `
		UPDATE applications
		SET owner_name = $2, business_name = $3, business_type = $4, address = $5
		WHERE id = $1 AND status = 'Pending'
		RETURNING ` + applicationColumns

	app, err := scanApplication(r.pool.QueryRow(ctx, query,
		id,
		fields.OwnerName,
		fields.BusinessName,
		fields.BusinessType,
		fields.Address,
	))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to update application: %w", err)
	}

	if _, err := r.GetApplicationByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNotPending
}

// CountApplicationsByStatus tallies applications per status.
func (r *Repository) CountApplicationsByStatus(ctx context.Context) (model.StatusCounts, error) {
	var counts model.StatusCounts

	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM applications GROUP BY status`)
	if err != nil {
		return counts, fmt.Errorf("failed to count applications: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts.Add(model.Status(status), n)
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}

// scanApplication scans a single row into an Application model.
func scanApplication(row pgx.Row) (*model.Application, error) {
	var app model.Application
	var status string
	var attachments []byte

	err := row.Scan(
		&app.ID,
		&app.OwnerID,
		&app.OwnerName,
		&app.BusinessName,
		&app.BusinessType,
		&app.Address,
		&attachments,
		&status,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.Status = model.Status(status)
	app.Attachments = map[model.Slot]string{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &app.Attachments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments: %w", err)
		}
	}
	return &app, nil
}

func collectApplications(rows pgx.Rows) ([]*model.Application, error) {
	defer rows.Close()

	apps := []*model.Application{}
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}

	return apps, nil
}

func marshalAttachments(attachments map[model.Slot]string) (string, error) {
	if len(attachments) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(attachments)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachments: %w", err)
	}
	return string(data), nil
}
