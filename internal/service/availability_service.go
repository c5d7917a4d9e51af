package service

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/model"
)

// Conflict is one reason a range is unavailable, shaped for display:
// the UI needs the conflicting party's name or summary and the time
// range, not just a boolean.
type Conflict struct {
	Kind     string    `json:"kind"` // "booking" or "calendar_event"
	ID       string    `json:"id"`
	Summary  string    `json:"summary"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
	Status   string    `json:"status,omitempty"`
}

// AvailabilityResult is the outcome of one resolution.
type AvailabilityResult struct {
	Available bool       `json:"available"`
	Reason    string     `json:"reason,omitempty"`
	Conflicts []Conflict `json:"conflicts,omitempty"`
}

// Reasons attached to unavailable results.
const (
	ReasonLocalConflict    = "local conflict"
	ReasonCalendarConflict = "external calendar conflict"
)

// conflictStatuses returns the booking statuses that count as conflicts
// for a resource type.  The sets differ on purpose: guide bookings are
// protected more conservatively (any active booking blocks) while
// chalets only treat BLOCKED and CONFIRMED as hard conflicts, letting a
// PENDING inquiry be outbid.  Do not unify these without a product
// decision.
func conflictStatuses(resourceType string) []string {
	if resourceType == model.ResourceTypeGuide {
		return []string{model.BookingStatusPending, model.BookingStatusConfirmed, model.BookingStatusBlocked}
	}
	return []string{model.BookingStatusBlocked, model.BookingStatusConfirmed}
}

// AvailabilityStore is the slice of the booking repository the resolver
// reads from.
type AvailabilityStore interface {
	ListOverlapping(ctx context.Context, resourceID uint64, start, end time.Time, statuses []string, excludeID uint64) ([]model.Booking, error)
	ListMirrored(ctx context.Context, resourceID uint64) ([]model.Booking, error)
}

// ResourceStore looks up resources for handler-facing entry points.
type ResourceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Resource, error)
}

// AvailabilityService decides whether a resource is free over a range
// by consulting the two sources in order: the local bookings table
// (authoritative and cheap) first, then the owner's external calendar
// (a safety net against edits made since the last reconciliation).
type AvailabilityService struct {
	bookings      AvailabilityStore
	resources     ResourceStore
	events        calendar.EventAPI
	classifier    *calendar.Classifier
	remoteTimeout time.Duration
}

// NewAvailabilityService constructs the resolver.
func NewAvailabilityService(bookings AvailabilityStore, resources ResourceStore, events calendar.EventAPI, classifier *calendar.Classifier, remoteTimeout time.Duration) *AvailabilityService {
	if remoteTimeout <= 0 {
		remoteTimeout = 8 * time.Second
	}
	return &AvailabilityService{
		bookings:      bookings,
		resources:     resources,
		events:        events,
		classifier:    classifier,
		remoteTimeout: remoteTimeout,
	}
}

// Check resolves availability for a resource id.  It is the entry point
// used by the HTTP layer; NotFound propagates from the resource store.
func (s *AvailabilityService) Check(ctx context.Context, resourceID uint64, start, end time.Time) (*AvailabilityResult, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	return s.Resolve(ctx, res, start, end, 0)
}

// Resolve runs the two-source availability decision.  excludeID lets an
// update-in-place ignore the booking's own prior record.  A failing
// remote check never fails the resolution: the local result stands and
// a warning is logged, because the calendar is a secondary source, not
// a hard dependency.
func (s *AvailabilityService) Resolve(ctx context.Context, res *model.Resource, start, end time.Time, excludeID uint64) (*AvailabilityResult, error) {
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}

	local, err := s.bookings.ListOverlapping(ctx, res.ID, start, end, conflictStatuses(res.ResourceType), excludeID)
	if err != nil {
		return nil, err
	}
	if len(local) > 0 {
		conflicts := make([]Conflict, 0, len(local))
		for _, b := range local {
			conflicts = append(conflicts, Conflict{
				Kind:     "booking",
				ID:       formatID(b.ID),
				Summary:  b.CustomerName,
				StartsAt: b.StartsAt,
				EndsAt:   b.EndsAt,
				Status:   b.Status,
			})
		}
		return &AvailabilityResult{Available: false, Reason: ReasonLocalConflict, Conflicts: conflicts}, nil
	}

	if !res.HasCalendar() {
		return &AvailabilityResult{Available: true}, nil
	}

	remote, err := s.remoteConflicts(ctx, res, start, end, excludeID)
	if err != nil {
		// Degrade to the local-only answer.  The remote source guards
		// against out-of-band edits; its failure must not block booking.
		log.Printf("availability: remote check failed for resource=%d, using local result: %v", res.ID, err)
		return &AvailabilityResult{Available: true}, nil
	}
	if len(remote) > 0 {
		return &AvailabilityResult{Available: false, Reason: ReasonCalendarConflict, Conflicts: remote}, nil
	}
	return &AvailabilityResult{Available: true}, nil
}

// remoteConflicts lists calendar events over the range and keeps the
// ones that actually block: classified as occupying, and not a mirror
// of the excluded booking or of a booking that is no longer active
// (a stale mirror of a cancelled booking must not block its own slot).
func (s *AvailabilityService) remoteConflicts(ctx context.Context, res *model.Resource, start, end time.Time, excludeID uint64) ([]Conflict, error) {
	rctx, cancel := context.WithTimeout(ctx, s.remoteTimeout)
	defer cancel()

	events, err := s.events.ListEvents(rctx, res.OwnerID, *res.GoogleCalendarID, start, end)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool)
	mirrored, err := s.bookings.ListMirrored(ctx, res.ID)
	if err != nil {
		return nil, err
	}
	for _, b := range mirrored {
		if b.ID == excludeID || !b.Active() {
			skip[*b.GoogleEventID] = true
		}
	}

	conflicts := make([]Conflict, 0)
	for _, ev := range events {
		if skip[ev.ID] || !s.classifier.Blocks(ev) {
			continue
		}
		if !ev.Start.Before(end) || !ev.End.After(start) {
			continue
		}
		conflicts = append(conflicts, Conflict{
			Kind:     "calendar_event",
			ID:       ev.ID,
			Summary:  ev.Summary,
			StartsAt: ev.Start,
			EndsAt:   ev.End,
		})
	}
	return conflicts, nil
}

func formatID(id uint64) string { return strconv.FormatUint(id, 10) }
