// Package service contains the business logic of the booking system:
// the availability resolver, the booking transaction manager and the
// calendar reconciler.  Services accept narrow store interfaces so the
// logic is testable without a database.
package service

import (
	"errors"
	"fmt"
)

// ErrInvalidRange is returned when a requested interval has
// start >= end.  Handlers translate it into HTTP 400.
var ErrInvalidRange = errors.New("invalid range: start must be before end")

// ErrUnavailable is the sentinel wrapped by UnavailableError so callers
// can test with errors.Is while still extracting conflict detail with
// errors.As.  Handlers translate it into HTTP 409.
var ErrUnavailable = errors.New("resource unavailable for the requested range")

// ErrPaidBookingLocked is returned when a mutation touches a paid
// booking without the explicit override.  Handlers translate it into
// HTTP 423.
var ErrPaidBookingLocked = errors.New("paid booking is locked")

// ErrSyncInProgress is returned when a reconcile pass is requested for
// a resource whose advisory lock is already held.  Handlers translate
// it into HTTP 409.
var ErrSyncInProgress = errors.New("reconciliation already in progress for this resource")

// UnavailableError carries the resolver's conflict detail so the UI can
// explain why a slot is unavailable, not just that it is.
type UnavailableError struct {
	Result *AvailabilityResult
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%v (%s, %d conflict(s))", ErrUnavailable, e.Result.Reason, len(e.Result.Conflicts))
}

// Unwrap lets errors.Is(err, ErrUnavailable) succeed.
func (e *UnavailableError) Unwrap() error { return ErrUnavailable }
