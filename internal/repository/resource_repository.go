package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/glacombe/pourvoirie-booking/internal/model"
)

// ResourceRepo provides read access to the resources table.  Resource
// CRUD (onboarding forms, photos, pricing edits) lives in a separate
// back-office service; the booking service only needs lookups.
type ResourceRepo struct {
	db *sql.DB
}

// NewResourceRepo returns a new ResourceRepo bound to the given database.
func NewResourceRepo(db *sql.DB) *ResourceRepo { return &ResourceRepo{db: db} }

const resourceColumns = `id, resource_type, name, owner_id, google_calendar_id,
       capacity, price_cents, specialties, establishment_id, created_at, updated_at`

func scanResource(sc interface {
	Scan(dest ...interface{}) error
}) (*model.Resource, error) {
	var res model.Resource
	var calendarID, specialties sql.NullString
	var capacity sql.NullInt64
	var establishmentID sql.NullInt64
	err := sc.Scan(
		&res.ID, &res.ResourceType, &res.Name, &res.OwnerID, &calendarID,
		&capacity, &res.PriceCents, &specialties, &establishmentID,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if calendarID.Valid {
		v := calendarID.String
		res.GoogleCalendarID = &v
	}
	if capacity.Valid {
		v := uint32(capacity.Int64)
		res.Capacity = &v
	}
	if specialties.Valid {
		v := specialties.String
		res.Specialties = &v
	}
	if establishmentID.Valid {
		v := uint64(establishmentID.Int64)
		res.EstablishmentID = &v
	}
	return &res, nil
}

// GetByID returns a resource by primary key.  It returns
// ErrResourceNotFound when no row exists.
func (r *ResourceRepo) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources WHERE id = ?`
	res, err := scanResource(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrResourceNotFound
	}
	return res, err
}

// ListByType returns all resources of one type (CHALET or GUIDE) for
// public browsing, ordered by name.
func (r *ResourceRepo) ListByType(ctx context.Context, resourceType string) ([]model.Resource, error) {
	const q = `SELECT ` + resourceColumns + ` FROM resources WHERE resource_type = ? ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q, resourceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWithCalendar returns every resource linked to an external
// calendar.  The periodic reconcile loop iterates over this set.
func (r *ResourceRepo) ListWithCalendar(ctx context.Context) ([]model.Resource, error) {
	const q = `SELECT ` + resourceColumns + `
               FROM resources
               WHERE google_calendar_id IS NOT NULL AND google_calendar_id != ''
               ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Resource, 0)
	for rows.Next() {
		res, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
