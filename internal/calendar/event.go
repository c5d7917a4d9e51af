package calendar

import "time"

// EventStatusCancelled is the tombstone status the calendar API returns
// for deleted events when they are still inside the sync window.
const EventStatusCancelled = "cancelled"

// Event is the provider-independent representation of one remote
// calendar event.  It is never persisted; the reconciler and the
// availability check consume it transiently.  Start and End are always
// comparable instants in UTC: all-day events are normalized by the
// gateway (start at 00:00:00, end at 23:59:59 of the stated date) so
// overlap math works uniformly.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Status      string    `json:"status"`
}

// Cancelled reports whether the event is a deletion tombstone.
func (e *Event) Cancelled() bool { return e.Status == EventStatusCancelled }

// Usable reports whether the event carries both endpoints and can
// participate in overlap math.  Events without a parseable start or end
// (rare, but the API allows them on malformed recurrences) are skipped.
func (e *Event) Usable() bool { return !e.Start.IsZero() && !e.End.IsZero() }

// EventMutation carries the writable fields for create and update
// calls.  The booking service fills it from a local booking when
// mirroring.
type EventMutation struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}
