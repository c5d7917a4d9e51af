package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/model"
	"github.com/glacombe/pourvoirie-booking/internal/queue"
)

func newSyncService(store *fakeStore, resources *fakeResources, events *fakeEvents, locker ResourceLocker) (*SyncService, *[]queue.SyncCompletedEvent) {
	if locker == nil {
		locker = newFakeLocker()
	}
	svc := NewSyncService(store, resources, events, calendar.NewClassifier(nil), locker, 6, time.Second)
	published := &[]queue.SyncCompletedEvent{}
	svc.publish = func(ctx context.Context, ev queue.SyncCompletedEvent) error {
		*published = append(*published, ev)
		return nil
	}
	return svc, published
}

// futureDay keeps fixtures inside the reconcile window, which starts at
// time.Now.
func futureDay(d int) time.Time {
	base := time.Now().UTC().AddDate(0, 1, 0)
	return time.Date(base.Year(), base.Month(), d, 0, 0, 0, 0, time.UTC)
}

func TestReconcileNoCalendar(t *testing.T) {
	svc, _ := newSyncService(newFakeStore(), newFakeResources(chalet(1, "")), &fakeEvents{}, nil)
	if _, err := svc.Reconcile(context.Background(), 1); !errors.Is(err, ErrNoCalendar) {
		t.Fatalf("want ErrNoCalendar, got %v", err)
	}
}

func TestReconcileCreatesExternalBookings(t *testing.T) {
	store := newFakeStore()
	events := &fakeEvents{events: []calendar.Event{
		{ID: "ev-busy", Summary: "Groupe Gagnon", Description: "4 personnes", Start: futureDay(10), End: futureDay(13), Status: "confirmed"},
		{ID: "ev-free", Summary: "disponible", Start: futureDay(14), End: futureDay(15), Status: "confirmed"},
		{ID: "ev-tomb", Summary: "Ancien", Start: futureDay(16), End: futureDay(17), Status: calendar.EventStatusCancelled},
	}}
	svc, published := newSyncService(store, newFakeResources(chalet(1, "cal-1")), events, nil)

	result, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Created) != 1 {
		t.Fatalf("want 1 created booking, got %+v", result)
	}
	b, err := store.GetByID(context.Background(), result.Created[0])
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != model.BookingStatusConfirmed || b.Source != model.BookingSourceGoogle {
		t.Errorf("imported booking must be CONFIRMED/GOOGLE, got %s/%s", b.Status, b.Source)
	}
	if b.GoogleEventID == nil || *b.GoogleEventID != "ev-busy" {
		t.Errorf("event id not linked: %v", b.GoogleEventID)
	}
	if b.CustomerName != "Groupe Gagnon" {
		t.Errorf("customer name from summary: got %q", b.CustomerName)
	}
	if len(*published) != 1 || (*published)[0].Created != 1 {
		t.Fatalf("sync.completed not published: %+v", *published)
	}
}

func TestReconcileSoftDeletesRemovedEvents(t *testing.T) {
	store := newFakeStore()
	evID := "ev-gone"
	mirrored := booking(1, model.ResourceTypeChalet, model.BookingStatusConfirmed, futureDay(10), futureDay(13))
	mirrored.Source = model.BookingSourceGoogle
	mirrored.GoogleEventID = &evID
	created := store.add(mirrored)

	svc, _ := newSyncService(store, newFakeResources(chalet(1, "cal-1")), &fakeEvents{}, nil)
	result, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.SoftDeleted) != 1 || result.SoftDeleted[0] != created.ID {
		t.Fatalf("booking should be soft-deleted: %+v", result)
	}
	b, _ := store.GetByID(context.Background(), created.ID)
	if b.Status != model.BookingStatusDeleted || b.DeletedAt == nil {
		t.Fatalf("soft delete must set DELETED and deleted_at: %+v", b)
	}
	if b.Notes == nil || !strings.Contains(*b.Notes, "removed from google calendar") {
		t.Errorf("audit note missing: %v", b.Notes)
	}
}

func TestReconcileProtectsPaidBookings(t *testing.T) {
	store := newFakeStore()
	evID := "ev-gone"
	paid := booking(1, model.ResourceTypeChalet, model.BookingStatusConfirmed, futureDay(10), futureDay(13))
	paid.GoogleEventID = &evID
	paid.IsPaid = true
	created := store.add(paid)

	svc, _ := newSyncService(store, newFakeResources(chalet(1, "cal-1")), &fakeEvents{}, nil)
	result, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Protected) != 1 || result.Protected[0] != created.ID {
		t.Fatalf("paid booking should be protected: %+v", result)
	}
	b, _ := store.GetByID(context.Background(), created.ID)
	if b.Status != model.BookingStatusConfirmed || b.DeletedAt != nil {
		t.Fatal("paid booking must stay untouched")
	}
}

func TestReconcileFlagsDrift(t *testing.T) {
	store := newFakeStore()
	evID := "ev-moved"
	mirrored := booking(1, model.ResourceTypeChalet, model.BookingStatusConfirmed, futureDay(10), futureDay(13))
	mirrored.GoogleEventID = &evID
	created := store.add(mirrored)

	events := &fakeEvents{events: []calendar.Event{
		// The owner dragged the event one day later.
		{ID: evID, Summary: "Réservé - Tremblay", Start: futureDay(11), End: futureDay(14), Status: "confirmed"},
	}}
	svc, _ := newSyncService(store, newFakeResources(chalet(1, "cal-1")), events, nil)
	result, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.Drifted) != 1 || result.Drifted[0] != created.ID {
		t.Fatalf("moved event should be flagged as drift: %+v", result)
	}
	// Drift is reported, never applied.
	b, _ := store.GetByID(context.Background(), created.ID)
	if !b.StartsAt.Equal(futureDay(10)) {
		t.Fatal("local times must not be rewritten by drift detection")
	}
	if len(result.Created) != 0 && len(result.SoftDeleted) != 0 {
		t.Fatalf("matched pair must not be recreated or deleted: %+v", result)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	store := newFakeStore()
	events := &fakeEvents{events: []calendar.Event{
		{ID: "ev-1", Summary: "Groupe Gagnon", Start: futureDay(10), End: futureDay(13), Status: "confirmed"},
	}}
	svc, _ := newSyncService(store, newFakeResources(chalet(1, "cal-1")), events, nil)

	first, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("first pass: %v", err)
	}
	if len(first.Created) != 1 {
		t.Fatalf("first pass should import the event: %+v", first)
	}
	second, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if len(second.Created) != 0 || len(second.SoftDeleted) != 0 {
		t.Fatalf("second pass with no remote change must be a no-op: %+v", second)
	}
}

func TestReconcileIgnoresBookingsBeyondWindow(t *testing.T) {
	store := newFakeStore()
	evID := "ev-far"
	// Mirrored booking eight months out: past the fetch horizon, so its
	// event never appears in the fetched list even though it exists.
	start := time.Now().UTC().AddDate(0, 8, 0)
	far := booking(1, model.ResourceTypeChalet, model.BookingStatusConfirmed, start, start.AddDate(0, 0, 3))
	far.GoogleEventID = &evID
	created := store.add(far)

	events := &fakeEvents{events: []calendar.Event{
		{ID: evID, Summary: "Réservé - Tremblay", Start: far.StartsAt, End: far.EndsAt, Status: "confirmed"},
	}}
	svc, _ := newSyncService(store, newFakeResources(chalet(1, "cal-1")), events, nil)

	result, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.SoftDeleted) != 0 || len(result.Protected) != 0 {
		t.Fatalf("booking beyond the window must not be judged: %+v", result)
	}
	b, _ := store.GetByID(context.Background(), created.ID)
	if b.Status != model.BookingStatusConfirmed || b.DeletedAt != nil {
		t.Fatalf("booking beyond the window must stay untouched: %+v", b)
	}
}

func TestReconcileLocalSetIncludesCancelledRows(t *testing.T) {
	store := newFakeStore()
	evID := "ev-gone"
	// Production's local diff set filters only deleted_at, so a
	// CANCELLED mirror whose event vanished still gets tombstoned.
	cancelled := booking(1, model.ResourceTypeChalet, model.BookingStatusCancelled, futureDay(10), futureDay(13))
	cancelled.GoogleEventID = &evID
	created := store.add(cancelled)

	svc, _ := newSyncService(store, newFakeResources(chalet(1, "cal-1")), &fakeEvents{}, nil)
	result, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if len(result.SoftDeleted) != 1 || result.SoftDeleted[0] != created.ID {
		t.Fatalf("cancelled mirror should be soft-deleted: %+v", result)
	}
	b, _ := store.GetByID(context.Background(), created.ID)
	if b.Status != model.BookingStatusDeleted || b.DeletedAt == nil {
		t.Fatalf("soft delete not applied: %+v", b)
	}
}

func TestReconcileAbortsOnFetchFailure(t *testing.T) {
	store := newFakeStore()
	evID := "ev-1"
	mirrored := booking(1, model.ResourceTypeChalet, model.BookingStatusConfirmed, futureDay(10), futureDay(13))
	mirrored.GoogleEventID = &evID
	created := store.add(mirrored)

	events := &fakeEvents{listErr: calendar.ErrUpstreamUnavailable}
	svc, published := newSyncService(store, newFakeResources(chalet(1, "cal-1")), events, nil)

	if _, err := svc.Reconcile(context.Background(), 1); !errors.Is(err, calendar.ErrUpstreamUnavailable) {
		t.Fatalf("fetch failure must abort the pass, got %v", err)
	}
	// Nothing was touched: an empty fetch must never read as "all
	// events deleted".
	b, _ := store.GetByID(context.Background(), created.ID)
	if b.DeletedAt != nil {
		t.Fatal("no soft deletes on an aborted pass")
	}
	if len(*published) != 0 {
		t.Fatal("no sync.completed on an aborted pass")
	}
	if _, stamped := store.stampedAt[1]; stamped {
		t.Fatal("watermark must not advance on an aborted pass")
	}
}

func TestReconcileLockHeld(t *testing.T) {
	locker := newFakeLocker()
	// Simulate a pass already running for resource 1.
	if _, acquired, err := locker.Acquire(context.Background(), "reconcile:resource:1", 0); err != nil || !acquired {
		t.Fatal("test setup: could not pre-acquire lock")
	}

	svc, _ := newSyncService(newFakeStore(), newFakeResources(chalet(1, "cal-1")), &fakeEvents{}, locker)
	if _, err := svc.Reconcile(context.Background(), 1); !errors.Is(err, ErrSyncInProgress) {
		t.Fatalf("want ErrSyncInProgress, got %v", err)
	}
}

func TestReconcileStampsWatermark(t *testing.T) {
	store := newFakeStore()
	svc, _ := newSyncService(store, newFakeResources(chalet(1, "cal-1")), &fakeEvents{}, nil)
	result, err := svc.Reconcile(context.Background(), 1)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	stamped, ok := store.stampedAt[1]
	if !ok {
		t.Fatal("synced_at watermark must be stamped")
	}
	if !stamped.Equal(result.SyncedAt) {
		t.Fatalf("watermark mismatch: %v vs %v", stamped, result.SyncedAt)
	}
}
