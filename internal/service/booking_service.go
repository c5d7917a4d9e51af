package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/model"
	"github.com/glacombe/pourvoirie-booking/internal/queue"
	"github.com/glacombe/pourvoirie-booking/internal/repository"
	queuepublisher "github.com/glacombe/pourvoirie-booking/internal/service/queue_publisher"
)

// BookingStore is the slice of the booking repository the transaction
// manager writes through.  The guarded methods run their overlap
// re-check and the write in one database transaction.
type BookingStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
	CreateGuarded(ctx context.Context, b *model.Booking, guardStatuses []string) error
	UpdateGuarded(ctx context.Context, b *model.Booking, guardStatuses []string, recheckOverlap bool) error
	SetGoogleEventID(ctx context.Context, id uint64, eventID string) error
	ListByResource(ctx context.Context, resourceID uint64) ([]model.Booking, error)
}

// CreateBookingRequest carries the caller-supplied fields for a new
// website booking.
type CreateBookingRequest struct {
	ResourceID    uint64
	StartsAt      time.Time
	EndsAt        time.Time
	CustomerName  string
	CustomerEmail string
	CustomerPhone *string
	Notes         *string
}

// BookingChanges carries the mutable fields of an update.  Nil pointers
// leave the corresponding field untouched.
type BookingChanges struct {
	StartsAt      *time.Time
	EndsAt        *time.Time
	CustomerName  *string
	CustomerEmail *string
	CustomerPhone *string
	Notes         *string
	Status        *string
}

// BookingService orchestrates create/update/cancel of bookings.  The
// protocol is fixed: resolve availability first, commit the local row
// (with the storage-level overlap guard), answer the caller, then
// mirror to the external calendar asynchronously.  The mirror write is
// best-effort; the local row is authoritative and is never rolled back
// over a calendar failure.
type BookingService struct {
	bookings  BookingStore
	resources ResourceStore
	resolver  *AvailabilityService
	events    calendar.EventAPI

	remoteTimeout time.Duration

	// dispatch runs post-commit side effects.  The default spawns a
	// goroutine; tests replace it with a synchronous runner.
	dispatch func(func())
	// publish emits the booking.created event.  Failures are logged by
	// the publisher and ignored here.
	publish func(context.Context, queue.BookingCreatedEvent) error
}

// NewBookingService constructs the transaction manager.
func NewBookingService(bookings BookingStore, resources ResourceStore, resolver *AvailabilityService, events calendar.EventAPI, remoteTimeout time.Duration) *BookingService {
	if remoteTimeout <= 0 {
		remoteTimeout = 8 * time.Second
	}
	return &BookingService{
		bookings:      bookings,
		resources:     resources,
		resolver:      resolver,
		events:        events,
		remoteTimeout: remoteTimeout,
		dispatch:      func(f func()) { go f() },
		publish:       queuepublisher.PublishBookingCreated,
	}
}

// CreateBooking checks availability and persists a new PENDING website
// booking.  On conflict it fails with an UnavailableError carrying the
// resolver's detail and writes nothing.  The mirrored calendar event is
// created after this method returns, without affecting its result.
func (s *BookingService) CreateBooking(ctx context.Context, req CreateBookingRequest) (*model.Booking, error) {
	res, err := s.resources.GetByID(ctx, req.ResourceID)
	if err != nil {
		return nil, err
	}

	result, err := s.resolver.Resolve(ctx, res, req.StartsAt, req.EndsAt, 0)
	if err != nil {
		return nil, err
	}
	if !result.Available {
		return nil, &UnavailableError{Result: result}
	}

	b := &model.Booking{
		ResourceID:    res.ID,
		ResourceType:  res.ResourceType,
		StartsAt:      req.StartsAt.UTC(),
		EndsAt:        req.EndsAt.UTC(),
		Status:        model.BookingStatusPending,
		Source:        model.BookingSourceWebsite,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Notes:         req.Notes,
	}
	if err := s.bookings.CreateGuarded(ctx, b, conflictStatuses(res.ResourceType)); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			// A concurrent writer won the race between our availability
			// check and the commit; answer as a regular conflict.
			return nil, &UnavailableError{Result: &AvailabilityResult{Available: false, Reason: ReasonLocalConflict}}
		}
		return nil, err
	}

	booked := *b
	s.dispatch(func() { s.mirrorCreate(res, booked) })
	return b, nil
}

// mirrorCreate creates the external calendar event for a fresh booking
// and publishes booking.created.  It runs detached from the request
// with its own context and timeout; every failure is logged and
// dropped, leaving the booking valid but unmirrored.
func (s *BookingService) mirrorCreate(res *model.Resource, b model.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancel()

	if res.HasCalendar() {
		eventID, err := s.events.CreateEvent(ctx, res.OwnerID, *res.GoogleCalendarID, mutationFor(&b))
		if err != nil {
			log.Printf("booking: mirror create failed booking=%d resource=%d: %v", b.ID, res.ID, err)
		} else if err := s.bookings.SetGoogleEventID(ctx, b.ID, eventID); err != nil {
			log.Printf("booking: store event id failed booking=%d: %v", b.ID, err)
		}
	}

	if err := s.publish(ctx, queue.BookingCreatedEvent{
		BookingID:    b.ID,
		ResourceID:   b.ResourceID,
		ResourceType: b.ResourceType,
		ResourceName: res.Name,
		StartsAt:     b.StartsAt.Format(time.RFC3339),
		EndsAt:       b.EndsAt.Format(time.RFC3339),
		CustomerName: b.CustomerName,
		Source:       b.Source,
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		log.Printf("booking: publish booking.created failed booking=%d: %v", b.ID, err)
	}
}

// UpdateBooking applies changes to an existing booking.  Time changes
// on a paid booking require allowPaidOverride.  Time changes and
// status changes that bring an inactive booking back to life re-run
// the resolver excluding the booking's own id.  Changes are propagated
// to the mirrored calendar event best-effort.
func (s *BookingService) UpdateBooking(ctx context.Context, id uint64, changes BookingChanges, allowPaidOverride bool) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	timeChanged := changes.StartsAt != nil || changes.EndsAt != nil
	if timeChanged && b.IsPaid && !allowPaidOverride {
		return nil, ErrPaidBookingLocked
	}
	wasActive := b.Active()

	if changes.StartsAt != nil {
		b.StartsAt = changes.StartsAt.UTC()
	}
	if changes.EndsAt != nil {
		b.EndsAt = changes.EndsAt.UTC()
	}
	if changes.CustomerName != nil {
		b.CustomerName = *changes.CustomerName
	}
	if changes.CustomerEmail != nil {
		b.CustomerEmail = *changes.CustomerEmail
	}
	if changes.CustomerPhone != nil {
		b.CustomerPhone = changes.CustomerPhone
	}
	if changes.Notes != nil {
		b.Notes = changes.Notes
	}
	if changes.Status != nil {
		b.Status = *changes.Status
	}

	res, err := s.resources.GetByID(ctx, b.ResourceID)
	if err != nil {
		return nil, err
	}

	// Reactivating a cancelled booking re-occupies the range, so it
	// gets the same conflict treatment as a time move.
	recheck := timeChanged || (!wasActive && b.Active())
	if recheck {
		result, err := s.resolver.Resolve(ctx, res, b.StartsAt, b.EndsAt, b.ID)
		if err != nil {
			return nil, err
		}
		if !result.Available {
			return nil, &UnavailableError{Result: result}
		}
	}

	if err := s.bookings.UpdateGuarded(ctx, b, conflictStatuses(res.ResourceType), recheck); err != nil {
		if errors.Is(err, repository.ErrOverlap) {
			return nil, &UnavailableError{Result: &AvailabilityResult{Available: false, Reason: ReasonLocalConflict}}
		}
		return nil, err
	}

	if b.Mirrored() && res.HasCalendar() {
		updated := *b
		s.dispatch(func() {
			mctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
			defer cancel()
			if err := s.events.UpdateEvent(mctx, res.OwnerID, *res.GoogleCalendarID, *updated.GoogleEventID, mutationFor(&updated)); err != nil {
				log.Printf("booking: mirror update failed booking=%d: %v", updated.ID, err)
			}
		})
	}
	return b, nil
}

// CancelBooking marks a booking CANCELLED, appends the reason to its
// notes and best-effort deletes the mirrored calendar event.  Paid
// bookings require allowPaidOverride.
func (s *BookingService) CancelBooking(ctx context.Context, id uint64, reason string, allowPaidOverride bool) (*model.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.IsPaid && !allowPaidOverride {
		return nil, ErrPaidBookingLocked
	}

	b.Status = model.BookingStatusCancelled
	note := fmt.Sprintf("[cancelled %s] %s", time.Now().UTC().Format(time.RFC3339), strings.TrimSpace(reason))
	if b.Notes != nil && *b.Notes != "" {
		joined := *b.Notes + "\n" + note
		b.Notes = &joined
	} else {
		b.Notes = &note
	}

	if err := s.bookings.UpdateGuarded(ctx, b, nil, false); err != nil {
		return nil, err
	}

	if b.Mirrored() {
		res, err := s.resources.GetByID(ctx, b.ResourceID)
		if err == nil && res.HasCalendar() {
			cancelled := *b
			s.dispatch(func() {
				mctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
				defer cancel()
				err := s.events.DeleteEvent(mctx, res.OwnerID, *res.GoogleCalendarID, *cancelled.GoogleEventID)
				if err != nil && !errors.Is(err, calendar.ErrEventNotFound) {
					log.Printf("booking: mirror delete failed booking=%d: %v", cancelled.ID, err)
				}
			})
		}
	}
	return b, nil
}

// ListBookings returns the bookings of one resource for owner-facing
// listings, after checking the caller owns the resource (admins pass
// ownerID 0 to skip the check).
func (s *BookingService) ListBookings(ctx context.Context, resourceID, ownerID uint64) ([]model.Booking, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if ownerID != 0 && res.OwnerID != ownerID {
		return nil, repository.ErrForbidden
	}
	return s.bookings.ListByResource(ctx, resourceID)
}

// mutationFor shapes a booking into its calendar event form.  The
// summary mimics how owners label bookings by hand so mirrored events
// read naturally in their calendars.
func mutationFor(b *model.Booking) calendar.EventMutation {
	desc := fmt.Sprintf("Booking #%d via website\n%s", b.ID, b.CustomerEmail)
	if b.Notes != nil && *b.Notes != "" {
		desc += "\n" + *b.Notes
	}
	return calendar.EventMutation{
		Summary:     fmt.Sprintf("Réservé - %s", b.CustomerName),
		Description: desc,
		Start:       b.StartsAt,
		End:         b.EndsAt,
	}
}
