package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel comparisons in httpError
	"net/http"
	"strconv" // strconv converts path parameters and context values
	"time"

	"github.com/labstack/echo/v4" // echo defines request context types

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/model"
	"github.com/glacombe/pourvoirie-booking/internal/repository"
	"github.com/glacombe/pourvoirie-booking/internal/service"
)

// getUserID extracts the user_id from echo.Context and converts it to uint64
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getRole returns the role claim stored in context by the JWT middleware,
// or an empty string when absent.
func getRole(c echo.Context) string {
	if s, ok := c.Get("role").(string); ok {
		return s
	}
	return ""
}

// pathID parses the numeric :id path parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseTimeParam parses a query-supplied boundary.  Full RFC3339
// timestamps are taken as-is; bare dates are expanded to day bounds
// (start of day for starts, end of day for ends) so all-day callers
// get the same ranges the calendar mirror uses.
func parseTimeParam(raw string, isEnd bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	if isEnd {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.UTC), nil
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), nil
}

// httpError translates the sentinel errors of the lower layers into the
// HTTP responses of the public contract.  Every mutation and check
// funnels through here so the status mapping stays in one place.
func httpError(c echo.Context, err error) error {
	var unavailable *service.UnavailableError
	switch {
	case errors.As(err, &unavailable):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     "resource unavailable",
			"reason":    unavailable.Result.Reason,
			"conflicts": unavailable.Result.Conflicts,
		})
	case errors.Is(err, service.ErrInvalidRange):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start must be before end"})
	case errors.Is(err, service.ErrPaidBookingLocked):
		return c.JSON(http.StatusLocked, echo.Map{"error": "booking is paid; pass allow_paid_override to modify it"})
	case errors.Is(err, service.ErrSyncInProgress):
		return c.JSON(http.StatusConflict, echo.Map{"error": "sync already in progress"})
	case errors.Is(err, service.ErrNoCalendar):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resource has no linked calendar"})
	case errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
	case errors.Is(err, repository.ErrResourceNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "resource not found"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, calendar.ErrReauthRequired):
		return c.JSON(http.StatusBadGateway, echo.Map{
			"error":           "calendar authorization expired",
			"reauth_required": true,
		})
	case errors.Is(err, calendar.ErrAuthRequired), errors.Is(err, calendar.ErrUpstreamUnavailable):
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "calendar upstream unavailable"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// bookingView is the JSON shape of a booking in API responses.  Notes
// carry the audit trail and are limited to owner-facing responses by
// the handlers, not here.
type bookingView struct {
	ID            uint64     `json:"id"`
	ResourceID    uint64     `json:"resource_id"`
	ResourceType  string     `json:"resource_type"`
	StartsAt      time.Time  `json:"starts_at"`
	EndsAt        time.Time  `json:"ends_at"`
	Status        string     `json:"status"`
	Source        string     `json:"source"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	CustomerPhone *string    `json:"customer_phone,omitempty"`
	GoogleEventID *string    `json:"google_event_id,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
	IsPaid        bool       `json:"is_paid"`
	SyncedAt      *time.Time `json:"synced_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newBookingView(b *model.Booking) bookingView {
	return bookingView{
		ID:            b.ID,
		ResourceID:    b.ResourceID,
		ResourceType:  b.ResourceType,
		StartsAt:      b.StartsAt,
		EndsAt:        b.EndsAt,
		Status:        b.Status,
		Source:        b.Source,
		CustomerName:  b.CustomerName,
		CustomerEmail: b.CustomerEmail,
		CustomerPhone: b.CustomerPhone,
		GoogleEventID: b.GoogleEventID,
		Notes:         b.Notes,
		IsPaid:        b.IsPaid,
		SyncedAt:      b.SyncedAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}
