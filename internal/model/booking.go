package model

import "time"

// Booking statuses.  A booking occupies its time range while it is in
// PENDING, CONFIRMED or BLOCKED state.  CANCELLED and DELETED bookings
// are kept for audit but never count against availability.
const (
	BookingStatusPending   = "PENDING"
	BookingStatusConfirmed = "CONFIRMED"
	BookingStatusBlocked   = "BLOCKED"
	BookingStatusCancelled = "CANCELLED"
	BookingStatusDeleted   = "DELETED"
)

// Booking sources.  WEBSITE bookings are created through the API;
// GOOGLE bookings are mirrored from the owner's external calendar by
// the reconciler and are owned by it (their status is driven by
// reconciliation, not by direct edits).
const (
	BookingSourceWebsite = "WEBSITE"
	BookingSourceGoogle  = "GOOGLE"
)

// Booking is a reservation of exactly one resource over the half-open
// interval [StartsAt, EndsAt).  Because the end is exclusive, two
// bookings touching at a boundary (checkout == next checkin) do not
// conflict.  This struct corresponds to a row in the `bookings` table.
//
// Fields:
//  ID            – primary key identifier.
//  ResourceID    – resource being booked.
//  ResourceType  – CHALET or GUIDE, denormalized from the resource.
//  StartsAt      – inclusive start of the interval, UTC.
//  EndsAt        – exclusive end of the interval, UTC.
//  Status        – one of the BookingStatus* constants.
//  Source        – WEBSITE or GOOGLE.
//  CustomerName  – name of the booking party.
//  CustomerEmail – contact email.
//  CustomerPhone – optional contact phone.
//  GoogleEventID – id of the mirrored calendar event, if any.
//  Notes         – free-form notes; audit trail entries are appended here.
//  IsPaid        – paid bookings are protected from reconciler deletion.
//  DeletedAt     – soft-delete marker; set iff Status is DELETED.
//  SyncedAt      – last time the reconciler stamped this booking.
type Booking struct {
	ID            uint64     // bookings.id
	ResourceID    uint64     // bookings.resource_id
	ResourceType  string     // bookings.resource_type
	StartsAt      time.Time  // bookings.starts_at
	EndsAt        time.Time  // bookings.ends_at
	Status        string     // bookings.status
	Source        string     // bookings.source
	CustomerName  string     // bookings.customer_name
	CustomerEmail string     // bookings.customer_email
	CustomerPhone *string    // bookings.customer_phone (nullable)
	GoogleEventID *string    // bookings.google_event_id (nullable)
	Notes         *string    // bookings.notes (nullable)
	IsPaid        bool       // bookings.is_paid
	DeletedAt     *time.Time // bookings.deleted_at (nullable)
	SyncedAt      *time.Time // bookings.synced_at (nullable)
	CreatedAt     time.Time  // bookings.created_at
	UpdatedAt     time.Time  // bookings.updated_at
}

// Active reports whether the booking currently occupies its time range
// for conflict purposes.
func (b *Booking) Active() bool {
	switch b.Status {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusBlocked:
		return b.DeletedAt == nil
	}
	return false
}

// Overlaps applies the half-open overlap test against [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartsAt.Before(end) && b.EndsAt.After(start)
}

// Mirrored reports whether this booking has a counterpart event in the
// owner's external calendar.
func (b *Booking) Mirrored() bool {
	return b.GoogleEventID != nil && *b.GoogleEventID != ""
}
