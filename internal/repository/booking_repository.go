package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/glacombe/pourvoirie-booking/internal/model"
)

// BookingRepo provides data access to the bookings table.  Bookings are
// never hard-deleted: cancellation and reconciler removals only change
// status and set deleted_at, so the audit history survives.  All
// timestamp columns are DATETIME in UTC; the DSN uses parseTime=true so
// they scan directly into time.Time.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so services can open transactions
// that span multiple repository calls.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, resource_id, resource_type, starts_at, ends_at, status, source,
       customer_name, customer_email, customer_phone, google_event_id, notes,
       is_paid, deleted_at, synced_at, created_at, updated_at`

// scanBooking reads one bookings row from the given scanner.
func scanBooking(sc interface {
	Scan(dest ...interface{}) error
}) (*model.Booking, error) {
	var b model.Booking
	var phone, eventID, notes sql.NullString
	var deletedAt, syncedAt sql.NullTime
	err := sc.Scan(
		&b.ID, &b.ResourceID, &b.ResourceType, &b.StartsAt, &b.EndsAt, &b.Status, &b.Source,
		&b.CustomerName, &b.CustomerEmail, &phone, &eventID, &notes,
		&b.IsPaid, &deletedAt, &syncedAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if phone.Valid {
		v := phone.String
		b.CustomerPhone = &v
	}
	if eventID.Valid {
		v := eventID.String
		b.GoogleEventID = &v
	}
	if notes.Valid {
		v := notes.String
		b.Notes = &v
	}
	if deletedAt.Valid {
		v := deletedAt.Time.UTC()
		b.DeletedAt = &v
	}
	if syncedAt.Valid {
		v := syncedAt.Time.UTC()
		b.SyncedAt = &v
	}
	b.StartsAt = b.StartsAt.UTC()
	b.EndsAt = b.EndsAt.UTC()
	return &b, nil
}

// GetByID returns a single booking by primary key.  It returns
// ErrBookingNotFound when no row exists.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// ListOverlapping returns active bookings on the resource whose
// [starts_at, ends_at) interval overlaps [start, end).  The overlap
// test is half-open, so a booking ending exactly at `start` (or
// starting exactly at `end`) is not returned.  Which statuses count is
// supplied by the caller because chalets and guides use different
// conflict sets.  excludeID, when non-zero, removes a booking from
// consideration so an update does not conflict with itself.
func (r *BookingRepo) ListOverlapping(ctx context.Context, resourceID uint64, start, end time.Time, statuses []string, excludeID uint64) ([]model.Booking, error) {
	return r.listOverlapping(ctx, r.db, resourceID, start, end, statuses, excludeID, false)
}

// ListOverlappingForUpdateTx is the transactional variant used as the
// storage-level guard: it locks matching rows with FOR UPDATE so two
// concurrent booking inserts on the same resource serialize on the
// existing rows instead of both committing.  The caller must commit or
// roll back the transaction.
func (r *BookingRepo) ListOverlappingForUpdateTx(ctx context.Context, tx *sql.Tx, resourceID uint64, start, end time.Time, statuses []string, excludeID uint64) ([]model.Booking, error) {
	return r.listOverlapping(ctx, tx, resourceID, start, end, statuses, excludeID, true)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (r *BookingRepo) listOverlapping(ctx context.Context, q querier, resourceID uint64, start, end time.Time, statuses []string, excludeID uint64, forUpdate bool) ([]model.Booking, error) {
	if len(statuses) == 0 {
		return []model.Booking{}, nil
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]interface{}, 0, len(statuses)+4)
	args = append(args, resourceID)
	for _, s := range statuses {
		placeholders = append(placeholders, "?")
		args = append(args, s)
	}
	query := `SELECT ` + bookingColumns + `
              FROM bookings
              WHERE resource_id = ?
                AND status IN (` + strings.Join(placeholders, ",") + `)
                AND deleted_at IS NULL
                AND starts_at < ? AND ends_at > ?`
	args = append(args, end.UTC(), start.UTC())
	if excludeID != 0 {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	query += ` ORDER BY starts_at`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and reads the full row back to populate generated
// columns.  The caller must commit or roll back.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
               (resource_id, resource_type, starts_at, ends_at, status, source,
                customer_name, customer_email, customer_phone, google_event_id,
                notes, is_paid)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		b.ResourceID, b.ResourceType, b.StartsAt.UTC(), b.EndsAt.UTC(), b.Status, b.Source,
		b.CustomerName, b.CustomerEmail, nullString(b.CustomerPhone), nullString(b.GoogleEventID),
		nullString(b.Notes), b.IsPaid,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	fresh, err := scanBooking(tx.QueryRowContext(ctx, sel, id))
	if err != nil {
		return err
	}
	*b = *fresh
	return nil
}

// UpdateTx rewrites the mutable columns of a booking within a
// transaction.  Status transitions, time moves and customer edits all
// go through here so updated_at stays accurate.
func (r *BookingRepo) UpdateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `UPDATE bookings
               SET starts_at = ?, ends_at = ?, status = ?,
                   customer_name = ?, customer_email = ?, customer_phone = ?,
                   notes = ?, is_paid = ?, updated_at = UTC_TIMESTAMP()
               WHERE id = ?`
	res, err := tx.ExecContext(ctx, q,
		b.StartsAt.UTC(), b.EndsAt.UTC(), b.Status,
		b.CustomerName, b.CustomerEmail, nullString(b.CustomerPhone),
		nullString(b.Notes), b.IsPaid, b.ID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// CreateGuarded inserts a booking inside its own transaction, after
// re-checking the no-overlap invariant with FOR UPDATE against the
// given status set.  This re-check is the storage-level backstop for
// the gap between the availability check and the commit: of two
// concurrent writers, the second blocks on the row locks and then sees
// the first one's insert.  It returns ErrOverlap when the range is
// taken.  Pass a nil status set to skip the guard (reconciler inserts
// mirror the external calendar, which is authoritative for its own
// events).
func (r *BookingRepo) CreateGuarded(ctx context.Context, b *model.Booking, guardStatuses []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if len(guardStatuses) > 0 {
		overlapping, err := r.ListOverlappingForUpdateTx(ctx, tx, b.ResourceID, b.StartsAt, b.EndsAt, guardStatuses, 0)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return ErrOverlap
		}
	}
	if err := r.CreateTx(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UpdateGuarded rewrites a booking inside its own transaction.  When
// recheckOverlap is set (time fields changed), the same FOR UPDATE
// guard as CreateGuarded runs first, excluding the booking's own row.
func (r *BookingRepo) UpdateGuarded(ctx context.Context, b *model.Booking, guardStatuses []string, recheckOverlap bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if recheckOverlap && len(guardStatuses) > 0 {
		overlapping, err := r.ListOverlappingForUpdateTx(ctx, tx, b.ResourceID, b.StartsAt, b.EndsAt, guardStatuses, b.ID)
		if err != nil {
			return err
		}
		if len(overlapping) > 0 {
			return ErrOverlap
		}
	}
	if err := r.UpdateTx(ctx, tx, b); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ListMirrored returns every booking of the resource that carries a
// google_event_id, including soft-deleted and cancelled rows.  The
// availability check uses it to recognize remote events that are
// mirrors of local bookings rather than independent conflicts.
func (r *BookingRepo) ListMirrored(ctx context.Context, resourceID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE resource_id = ? AND google_event_id IS NOT NULL AND google_event_id != ''`
	rows, err := r.db.QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// SetGoogleEventID records the id of the mirrored calendar event.  It
// runs outside any transaction because mirroring happens after the
// booking transaction has already committed.
func (r *BookingRepo) SetGoogleEventID(ctx context.Context, id uint64, eventID string) error {
	const q = `UPDATE bookings SET google_event_id = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, eventID, id)
	return err
}

// SoftDelete marks a booking DELETED and appends an audit note.  The
// conditional WHERE keeps the operation idempotent: a booking that is
// already deleted is left untouched and reported via the returned
// boolean.
func (r *BookingRepo) SoftDelete(ctx context.Context, id uint64, note string) (bool, error) {
	const q = `UPDATE bookings
               SET status = ?, deleted_at = UTC_TIMESTAMP(),
                   notes = CONCAT(COALESCE(notes, ''), ?),
                   updated_at = UTC_TIMESTAMP()
               WHERE id = ? AND deleted_at IS NULL`
	res, err := r.db.ExecContext(ctx, q, model.BookingStatusDeleted, "\n"+note, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListActiveFuture returns all non-deleted bookings for the resource
// whose interval has not fully elapsed.  The reconciler uses this as
// the local side of its diff.
func (r *BookingRepo) ListActiveFuture(ctx context.Context, resourceID uint64, now time.Time) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE resource_id = ? AND deleted_at IS NULL AND ends_at >= ?
               ORDER BY starts_at`
	rows, err := r.db.QueryContext(ctx, q, resourceID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListByResource returns every non-deleted booking on a resource,
// newest first, for owner-facing listings.
func (r *BookingRepo) ListByResource(ctx context.Context, resourceID uint64) ([]model.Booking, error) {
	const q = `SELECT ` + bookingColumns + `
               FROM bookings
               WHERE resource_id = ? AND deleted_at IS NULL
               ORDER BY starts_at DESC`
	rows, err := r.db.QueryContext(ctx, q, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// StampSyncedAt sets synced_at on all active bookings of a resource.
// The reconciler calls this once per successful pass, whether or not
// individual items errored, so progress tracking is never blocked by a
// partial failure.
func (r *BookingRepo) StampSyncedAt(ctx context.Context, resourceID uint64, at time.Time) error {
	const q = `UPDATE bookings SET synced_at = ? WHERE resource_id = ? AND deleted_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, at.UTC(), resourceID)
	return err
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
