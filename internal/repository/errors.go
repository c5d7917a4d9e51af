// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios. For example, ErrOverlap indicates that an insert or time
// update would violate the no-overlap invariant on a resource, while
// ErrForbidden indicates that the current user is not authorized to
// operate on a resource owned by someone else.
package repository

import "errors"

// ErrBookingNotFound is returned when no booking with the requested id
// exists. Handlers should translate this into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrResourceNotFound is returned when no resource with the requested
// id exists. Handlers should translate this into an HTTP 404 response.
var ErrResourceNotFound = errors.New("resource not found")

// ErrCredentialNotFound is returned when an owner has no stored
// calendar credential. The token provider maps this onto its
// reauthorization error so callers can prompt the owner to reconnect.
var ErrCredentialNotFound = errors.New("calendar credential not found")

// ErrOverlap is returned by the guarded insert/update paths when the
// in-transaction re-check finds an active booking overlapping the
// requested range. It is the storage-level backstop for the
// check-then-act gap between availability resolution and commit.
var ErrOverlap = errors.New("overlapping booking exists")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers should translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")
