package service

// service_test.go holds the in-memory fakes shared by the availability,
// booking and sync tests.  The fakes reproduce the repository contracts
// (half-open overlap test, guarded inserts, soft deletes) closely enough
// that the services cannot tell the difference.

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/model"
	"github.com/glacombe/pourvoirie-booking/internal/repository"
)

type fakeStore struct {
	mu       sync.Mutex
	nextID   uint64
	bookings map[uint64]*model.Booking

	listErr   error
	createErr error

	stampedAt map[uint64]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{bookings: make(map[uint64]*model.Booking), stampedAt: make(map[uint64]time.Time)}
}

func (f *fakeStore) add(b model.Booking) *model.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	f.bookings[b.ID] = &b
	return &b
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func (f *fakeStore) overlapping(resourceID uint64, start, end time.Time, statuses []string, excludeID uint64) []model.Booking {
	out := make([]model.Booking, 0)
	for _, b := range f.bookings {
		if b.ResourceID != resourceID || b.ID == excludeID || b.DeletedAt != nil {
			continue
		}
		if !statusIn(b.Status, statuses) {
			continue
		}
		if b.Overlaps(start, end) {
			out = append(out, *b)
		}
	}
	return out
}

func (f *fakeStore) ListOverlapping(ctx context.Context, resourceID uint64, start, end time.Time, statuses []string, excludeID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.overlapping(resourceID, start, end, statuses, excludeID), nil
}

func (f *fakeStore) ListMirrored(ctx context.Context, resourceID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range f.bookings {
		if b.ResourceID == resourceID && b.Mirrored() {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) CreateGuarded(ctx context.Context, b *model.Booking, guardStatuses []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if guardStatuses != nil && len(f.overlapping(b.ResourceID, b.StartsAt, b.EndsAt, guardStatuses, 0)) > 0 {
		return repository.ErrOverlap
	}
	f.nextID++
	b.ID = f.nextID
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateGuarded(ctx context.Context, b *model.Booking, guardStatuses []string, recheckOverlap bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[b.ID]; !ok {
		return repository.ErrBookingNotFound
	}
	if recheckOverlap && guardStatuses != nil && len(f.overlapping(b.ResourceID, b.StartsAt, b.EndsAt, guardStatuses, b.ID)) > 0 {
		return repository.ErrOverlap
	}
	cp := *b
	f.bookings[b.ID] = &cp
	return nil
}

func (f *fakeStore) SetGoogleEventID(ctx context.Context, id uint64, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return repository.ErrBookingNotFound
	}
	b.GoogleEventID = &eventID
	return nil
}

func (f *fakeStore) ListByResource(ctx context.Context, resourceID uint64) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range f.bookings {
		if b.ResourceID == resourceID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveFuture(ctx context.Context, resourceID uint64, now time.Time) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Booking, 0)
	for _, b := range f.bookings {
		// Matches the repository query: deleted_at IS NULL AND
		// ends_at >= now, which keeps CANCELLED rows in the set.
		if b.ResourceID == resourceID && b.DeletedAt == nil && !b.EndsAt.Before(now) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) SoftDelete(ctx context.Context, id uint64, note string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok || b.DeletedAt != nil {
		return false, nil
	}
	now := time.Now().UTC()
	b.Status = model.BookingStatusDeleted
	b.DeletedAt = &now
	if b.Notes != nil && *b.Notes != "" {
		joined := *b.Notes + "\n" + note
		b.Notes = &joined
	} else {
		b.Notes = &note
	}
	return true, nil
}

func (f *fakeStore) StampSyncedAt(ctx context.Context, resourceID uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stampedAt[resourceID] = at
	return nil
}

type fakeResources struct {
	resources map[uint64]*model.Resource
}

func newFakeResources(rs ...*model.Resource) *fakeResources {
	out := &fakeResources{resources: make(map[uint64]*model.Resource)}
	for _, r := range rs {
		out.resources[r.ID] = r
	}
	return out
}

func (f *fakeResources) GetByID(ctx context.Context, id uint64) (*model.Resource, error) {
	r, ok := f.resources[id]
	if !ok {
		return nil, repository.ErrResourceNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResources) ListWithCalendar(ctx context.Context) ([]model.Resource, error) {
	out := make([]model.Resource, 0)
	for _, r := range f.resources {
		if r.HasCalendar() {
			out = append(out, *r)
		}
	}
	return out, nil
}

type eventCall struct {
	op         string
	calendarID string
	eventID    string
	mut        calendar.EventMutation
}

type fakeEvents struct {
	mu     sync.Mutex
	events []calendar.Event

	listErr   error
	createErr error
	deleteErr error

	calls  []eventCall
	nextID int
}

func (f *fakeEvents) ListEvents(ctx context.Context, ownerID uint64, calendarID string, start, end time.Time) ([]calendar.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventCall{op: "list", calendarID: calendarID})
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]calendar.Event, 0, len(f.events))
	for _, ev := range f.events {
		if ev.Start.Before(end) && ev.End.After(start) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeEvents) CreateEvent(ctx context.Context, ownerID uint64, calendarID string, mut calendar.EventMutation) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventCall{op: "create", calendarID: calendarID, mut: mut})
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	return fmt.Sprintf("ev-%d", f.nextID), nil
}

func (f *fakeEvents) UpdateEvent(ctx context.Context, ownerID uint64, calendarID, eventID string, mut calendar.EventMutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventCall{op: "update", calendarID: calendarID, eventID: eventID, mut: mut})
	return nil
}

func (f *fakeEvents) DeleteEvent(ctx context.Context, ownerID uint64, calendarID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, eventCall{op: "delete", calendarID: calendarID, eventID: eventID})
	return f.deleteErr
}

func (f *fakeEvents) callsOf(op string) []eventCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]eventCall, 0)
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: make(map[string]bool)} }

func (f *fakeLocker) Acquire(ctx context.Context, name string, timeoutSec int) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[name] {
		return func() {}, false, nil
	}
	f.held[name] = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.held, name)
	}, true, nil
}

// Common fixtures.

func chalet(id uint64, calendarID string) *model.Resource {
	r := &model.Resource{
		ID:           id,
		ResourceType: model.ResourceTypeChalet,
		Name:         fmt.Sprintf("Chalet %d", id),
		OwnerID:      42,
		PriceCents:   25000,
	}
	if calendarID != "" {
		r.GoogleCalendarID = &calendarID
	}
	return r
}

func guide(id uint64, calendarID string) *model.Resource {
	r := &model.Resource{
		ID:           id,
		ResourceType: model.ResourceTypeGuide,
		Name:         fmt.Sprintf("Guide %d", id),
		OwnerID:      42,
		PriceCents:   12000,
	}
	if calendarID != "" {
		r.GoogleCalendarID = &calendarID
	}
	return r
}

func day(d int) time.Time {
	return time.Date(2026, 7, d, 0, 0, 0, 0, time.UTC)
}

func booking(resourceID uint64, resourceType, status string, start, end time.Time) model.Booking {
	return model.Booking{
		ResourceID:    resourceID,
		ResourceType:  resourceType,
		StartsAt:      start,
		EndsAt:        end,
		Status:        status,
		Source:        model.BookingSourceWebsite,
		CustomerName:  "Jean Tremblay",
		CustomerEmail: "jean@example.com",
	}
}
