package model

import "time"

// Resource types.  Chalets belong to an establishment; guides stand
// alone.  The distinction also drives which booking statuses count as
// conflicts during availability checks.
const (
	ResourceTypeChalet = "CHALET"
	ResourceTypeGuide  = "GUIDE"
)

// Resource is a bookable entity: a chalet or a fishing guide.  A
// resource may be linked to an external Google Calendar in which its
// owner manages real availability; when the link is absent the local
// bookings table is the only source of truth.  This struct corresponds
// to a row in the `resources` table.
//
// Fields:
//  ID               – primary key identifier.
//  ResourceType     – CHALET or GUIDE.
//  Name             – display name of the chalet or guide.
//  OwnerID          – user who owns the resource and its calendar credential.
//  GoogleCalendarID – linked external calendar id, if any.
//  Capacity         – sleeping capacity (chalets only).
//  PriceCents       – nightly price for chalets, hourly rate for guides.
//  Specialties      – comma-separated list of specialties (guides only).
//  EstablishmentID  – owning establishment (chalets only).
type Resource struct {
	ID               uint64    // resources.id
	ResourceType     string    // resources.resource_type
	Name             string    // resources.name
	OwnerID          uint64    // resources.owner_id
	GoogleCalendarID *string   // resources.google_calendar_id (nullable)
	Capacity         *uint32   // resources.capacity (nullable, chalets)
	PriceCents       uint32    // resources.price_cents
	Specialties      *string   // resources.specialties (nullable, guides)
	EstablishmentID  *uint64   // resources.establishment_id (nullable, chalets)
	CreatedAt        time.Time // resources.created_at
	UpdatedAt        time.Time // resources.updated_at
}

// HasCalendar reports whether the resource is linked to an external
// calendar and therefore participates in remote availability checks
// and reconciliation.
func (r *Resource) HasCalendar() bool {
	return r.GoogleCalendarID != nil && *r.GoogleCalendarID != ""
}
