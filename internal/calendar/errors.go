// Package calendar talks to the owners' external Google Calendars.  It
// contains the token provider that turns a stored refresh token into a
// short-lived access token, the REST gateway over the calendar API and
// the keyword classifier that decides whether an event blocks
// availability.
package calendar

import "errors"

// ErrAuthRequired is returned when a calendar call is rejected for
// credential reasons that may be transient (expired access token that
// could not be refreshed right now, 401/403 from the API).  Callers
// decide whether to degrade: the availability check falls back to
// local data, the reconciler aborts its pass.
var ErrAuthRequired = errors.New("calendar authorization required")

// ErrReauthRequired is returned when the owner's stored credential is
// invalid or revoked and only user action (reconnecting the calendar)
// can fix it.  It is kept distinct from ErrAuthRequired because the UI
// must prompt the owner rather than retry.
var ErrReauthRequired = errors.New("calendar reauthorization required")

// ErrUpstreamUnavailable is returned on network failures and 5xx
// responses from the calendar API or the token endpoint.
var ErrUpstreamUnavailable = errors.New("calendar upstream unavailable")

// ErrEventNotFound is returned by update and delete calls when the
// remote event no longer exists.  Mirror maintenance treats this as
// success: the event is gone either way.
var ErrEventNotFound = errors.New("calendar event not found")
