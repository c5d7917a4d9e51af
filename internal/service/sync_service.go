package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/model"
	"github.com/glacombe/pourvoirie-booking/internal/queue"
	queuepublisher "github.com/glacombe/pourvoirie-booking/internal/service/queue_publisher"
)

// ErrNoCalendar is returned when reconciliation is requested for a
// resource that has no linked external calendar.
var ErrNoCalendar = errors.New("resource has no linked calendar")

// SyncStore is the slice of the booking repository the reconciler works
// through.
type SyncStore interface {
	ListActiveFuture(ctx context.Context, resourceID uint64, now time.Time) ([]model.Booking, error)
	CreateGuarded(ctx context.Context, b *model.Booking, guardStatuses []string) error
	SoftDelete(ctx context.Context, id uint64, note string) (bool, error)
	StampSyncedAt(ctx context.Context, resourceID uint64, at time.Time) error
}

// SyncResourceStore adds the calendar-linked listing the periodic loop
// iterates over.
type SyncResourceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Resource, error)
	ListWithCalendar(ctx context.Context) ([]model.Resource, error)
}

// ResourceLocker serializes reconcile passes per resource.  Satisfied
// by database.Locker (MySQL advisory locks) and faked in tests.
type ResourceLocker interface {
	Acquire(ctx context.Context, name string, timeoutSec int) (release func(), acquired bool, err error)
}

// SyncResult reports what one reconcile pass did.  Identifier slices
// hold booking ids; Drifted lists matched bookings whose remote event
// times no longer agree with the local row (reported, never silently
// updated).  Errors collects per-item failures that did not abort the
// pass.
type SyncResult struct {
	ResourceID  uint64    `json:"resource_id"`
	Created     []uint64  `json:"created"`
	SoftDeleted []uint64  `json:"soft_deleted"`
	Protected   []uint64  `json:"protected"`
	Drifted     []uint64  `json:"drifted"`
	Errors      []string  `json:"errors"`
	SyncedAt    time.Time `json:"synced_at"`
}

// SyncService folds out-of-band calendar edits back into the bookings
// table.  It is the only writer allowed to soft-delete mirrored
// bookings and the only creator of source=GOOGLE rows.  Passes over
// different resources may run concurrently; passes over the same
// resource are serialized by an advisory lock because two overlapping
// passes could both miss each other's in-flight inserts and
// double-create bookings for one remote event.
type SyncService struct {
	bookings   SyncStore
	resources  SyncResourceStore
	events     calendar.EventAPI
	classifier *calendar.Classifier
	locker     ResourceLocker

	windowMonths int
	fetchTimeout time.Duration

	// publish emits sync.completed; failures are logged and ignored.
	publish func(context.Context, queue.SyncCompletedEvent) error
}

// NewSyncService constructs the reconciler.  windowMonths bounds how
// far ahead remote events are fetched (the source system used six
// months).
func NewSyncService(bookings SyncStore, resources SyncResourceStore, events calendar.EventAPI, classifier *calendar.Classifier, locker ResourceLocker, windowMonths int, fetchTimeout time.Duration) *SyncService {
	if windowMonths <= 0 {
		windowMonths = 6
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 30 * time.Second
	}
	return &SyncService{
		bookings:     bookings,
		resources:    resources,
		events:       events,
		classifier:   classifier,
		locker:       locker,
		windowMonths: windowMonths,
		fetchTimeout: fetchTimeout,
		publish:      queuepublisher.PublishSyncCompleted,
	}
}

// Reconcile diffs the resource's remote calendar against its local
// bookings and applies insertions and soft-deletions.  A fetch failure
// aborts the pass (reconciling from an incomplete event list would
// mass-delete mirrored bookings); individual item failures are
// collected and the pass continues.  Running twice with no external
// changes in between performs zero creations and deletions the second
// time.
func (s *SyncService) Reconcile(ctx context.Context, resourceID uint64) (*SyncResult, error) {
	res, err := s.resources.GetByID(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	if !res.HasCalendar() {
		return nil, ErrNoCalendar
	}

	release, acquired, err := s.locker.Acquire(ctx, fmt.Sprintf("reconcile:resource:%d", resourceID), 0)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrSyncInProgress
	}
	defer release()

	now := time.Now().UTC()
	windowEnd := now.AddDate(0, s.windowMonths, 0)
	result := &SyncResult{
		ResourceID:  resourceID,
		Created:     []uint64{},
		SoftDeleted: []uint64{},
		Protected:   []uint64{},
		Drifted:     []uint64{},
		Errors:      []string{},
	}

	// Primary fetch: without the complete remote set nothing below is
	// safe, so any failure here (auth included) surfaces to the caller.
	fctx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()
	events, err := s.events.ListEvents(fctx, res.OwnerID, *res.GoogleCalendarID, now, windowEnd)
	if err != nil {
		return nil, err
	}

	local, err := s.bookings.ListActiveFuture(ctx, resourceID, now)
	if err != nil {
		return nil, err
	}

	remoteByID := make(map[string]calendar.Event, len(events))
	for _, ev := range events {
		if ev.ID != "" {
			remoteByID[ev.ID] = ev
		}
	}
	localByEventID := make(map[string]*model.Booking)
	for i := range local {
		if local[i].Mirrored() {
			localByEventID[*local[i].GoogleEventID] = &local[i]
		}
	}

	// Deletion detection: a mirrored booking whose remote event is gone
	// (or tombstoned) was deleted by the owner in their calendar.  Paid
	// bookings are protected: the attempt is recorded, not applied.
	for i := range local {
		b := &local[i]
		if !b.Mirrored() {
			continue
		}
		// A mirror lying beyond the fetched window is invisible in the
		// event list, not deleted; it can only be judged once the window
		// reaches it.
		if !b.Overlaps(now, windowEnd) {
			continue
		}
		ev, found := remoteByID[*b.GoogleEventID]
		if found && !ev.Cancelled() {
			// Matched pair.  No field-level updates in this pass, but a
			// moved event is worth surfacing instead of assuming no drift.
			if ev.Usable() && (!ev.Start.Equal(b.StartsAt) || !ev.End.Equal(b.EndsAt)) {
				result.Drifted = append(result.Drifted, b.ID)
			}
			continue
		}
		if b.IsPaid {
			result.Protected = append(result.Protected, b.ID)
			continue
		}
		note := fmt.Sprintf("[sync %s] event %s removed from google calendar", now.Format(time.RFC3339), *b.GoogleEventID)
		deleted, err := s.bookings.SoftDelete(ctx, b.ID, note)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("soft-delete booking %d: %v", b.ID, err))
			continue
		}
		if deleted {
			result.SoftDeleted = append(result.SoftDeleted, b.ID)
		}
	}

	// Creation detection: a blocking remote event with no local
	// counterpart was created by the owner out-of-band and becomes a
	// confirmed external booking.  Events the classifier reads as
	// announcing availability are not occupancy and are skipped.
	for _, ev := range events {
		if ev.ID == "" || ev.Cancelled() || !ev.Usable() {
			continue
		}
		if _, exists := localByEventID[ev.ID]; exists {
			continue
		}
		if !s.classifier.Blocks(ev) {
			continue
		}
		name := ev.Summary
		if name == "" {
			name = "Google Calendar"
		}
		notes := ev.Description
		if notes == "" {
			notes = "[imported from google calendar]"
		}
		eventID := ev.ID
		b := &model.Booking{
			ResourceID:    resourceID,
			ResourceType:  res.ResourceType,
			StartsAt:      ev.Start,
			EndsAt:        ev.End,
			Status:        model.BookingStatusConfirmed,
			Source:        model.BookingSourceGoogle,
			CustomerName:  name,
			CustomerEmail: "",
			GoogleEventID: &eventID,
			Notes:         &notes,
		}
		// No overlap guard: the calendar is authoritative for its own
		// events, even when they collide with local bookings.
		if err := s.bookings.CreateGuarded(ctx, b, nil); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("create booking for event %s: %v", eventID, err))
			continue
		}
		result.Created = append(result.Created, b.ID)
	}

	// Stamp progress even when individual items errored; partial
	// failures must not block the sync watermark.
	result.SyncedAt = now
	if err := s.bookings.StampSyncedAt(ctx, resourceID, now); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("stamp synced_at: %v", err))
	}

	if err := s.publish(ctx, queue.SyncCompletedEvent{
		ResourceID:  resourceID,
		Created:     len(result.Created),
		SoftDeleted: len(result.SoftDeleted),
		Protected:   len(result.Protected),
		Drifted:     len(result.Drifted),
		Errors:      len(result.Errors),
		SyncedAt:    now.Format(time.RFC3339),
	}); err != nil {
		log.Printf("sync: publish sync.completed failed resource=%d: %v", resourceID, err)
	}

	return result, nil
}

// RunLoop reconciles every calendar-linked resource on a fixed period
// until the context is cancelled.  Per-resource failures are logged and
// the loop moves on; a resource whose lock is held is simply skipped
// this round.
func (s *SyncService) RunLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		resources, err := s.resources.ListWithCalendar(ctx)
		if err != nil {
			log.Printf("sync: list resources failed: %v", err)
			continue
		}
		for _, res := range resources {
			result, err := s.Reconcile(ctx, res.ID)
			if err != nil {
				if !errors.Is(err, ErrSyncInProgress) {
					log.Printf("sync: reconcile resource=%d failed: %v", res.ID, err)
				}
				continue
			}
			log.Printf("sync: resource=%d created=%d soft_deleted=%d protected=%d drifted=%d errors=%d",
				res.ID, len(result.Created), len(result.SoftDeleted), len(result.Protected), len(result.Drifted), len(result.Errors))
		}
	}
}
