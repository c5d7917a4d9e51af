package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/glacombe/pourvoirie-booking/internal/service"
)

// BookingHandler exposes the booking lifecycle and the availability
// check over HTTP.  All methods assume JWT authentication and role
// validation have already been performed by middleware, except
// CheckAvailability which is public.
type BookingHandler struct {
	Bookings     *service.BookingService      // booking create/update/cancel
	Availability *service.AvailabilityService // two-source availability resolution
}

// NewBookingHandler constructs a new BookingHandler.  Both services
// must be non-nil.
func NewBookingHandler(bookings *service.BookingService, availability *service.AvailabilityService) *BookingHandler {
	if bookings == nil || availability == nil {
		panic("nil service passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Availability: availability}
}

// CheckAvailability handles GET /v1/resources/:id/availability.  The
// start and end query parameters accept RFC3339 timestamps or bare
// dates.  The response always carries "available"; when false it adds
// the reason and the conflicting entries.
func (h *BookingHandler) CheckAvailability(c echo.Context) error {
	resourceID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	startRaw, endRaw := c.QueryParam("start"), c.QueryParam("end")
	if startRaw == "" || endRaw == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start and end are required"})
	}
	start, err := parseTimeParam(startRaw, false)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start; use RFC3339 or YYYY-MM-DD"})
	}
	end, err := parseTimeParam(endRaw, true)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end; use RFC3339 or YYYY-MM-DD"})
	}

	result, err := h.Availability.Check(c.Request().Context(), resourceID, start, end)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

// CreateBooking handles POST /v1/bookings.  The request body carries
// the resource, the range and the customer contact.  On success the
// booking is returned with 201; the calendar mirror is written after
// the response, so google_event_id is absent here.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	var body struct {
		ResourceID    uint64  `json:"resource_id"`
		StartsAt      string  `json:"starts_at"`
		EndsAt        string  `json:"ends_at"`
		CustomerName  string  `json:"customer_name"`
		CustomerEmail string  `json:"customer_email"`
		CustomerPhone *string `json:"customer_phone"`
		Notes         *string `json:"notes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.ResourceID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "resource_id is required"})
	}
	if strings.TrimSpace(body.CustomerName) == "" || strings.TrimSpace(body.CustomerEmail) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_name and customer_email are required"})
	}
	start, err := parseTimeParam(body.StartsAt, false)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at; use RFC3339 or YYYY-MM-DD"})
	}
	end, err := parseTimeParam(body.EndsAt, true)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ends_at; use RFC3339 or YYYY-MM-DD"})
	}

	b, err := h.Bookings.CreateBooking(c.Request().Context(), service.CreateBookingRequest{
		ResourceID:    body.ResourceID,
		StartsAt:      start,
		EndsAt:        end,
		CustomerName:  strings.TrimSpace(body.CustomerName),
		CustomerEmail: strings.TrimSpace(body.CustomerEmail),
		CustomerPhone: body.CustomerPhone,
		Notes:         body.Notes,
	})
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusCreated, newBookingView(b))
}

// UpdateBooking handles PATCH /v1/bookings/:id.  Absent fields are left
// untouched.  Moving a paid booking requires allow_paid_override and
// triggers a fresh availability resolution that excludes the booking
// itself, so shrinking or shifting within the old slot works.
func (h *BookingHandler) UpdateBooking(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		StartsAt          *string `json:"starts_at"`
		EndsAt            *string `json:"ends_at"`
		CustomerName      *string `json:"customer_name"`
		CustomerEmail     *string `json:"customer_email"`
		CustomerPhone     *string `json:"customer_phone"`
		Notes             *string `json:"notes"`
		Status            *string `json:"status"`
		AllowPaidOverride bool    `json:"allow_paid_override"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	changes := service.BookingChanges{
		CustomerName:  body.CustomerName,
		CustomerEmail: body.CustomerEmail,
		CustomerPhone: body.CustomerPhone,
		Notes:         body.Notes,
	}
	if body.StartsAt != nil {
		t, err := parseTimeParam(*body.StartsAt, false)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_at; use RFC3339 or YYYY-MM-DD"})
		}
		changes.StartsAt = &t
	}
	if body.EndsAt != nil {
		t, err := parseTimeParam(*body.EndsAt, true)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ends_at; use RFC3339 or YYYY-MM-DD"})
		}
		changes.EndsAt = &t
	}
	if body.Status != nil {
		status := strings.ToUpper(strings.TrimSpace(*body.Status))
		if !validTransitionStatus(status) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
		}
		changes.Status = &status
	}

	b, err := h.Bookings.UpdateBooking(c.Request().Context(), id, changes, body.AllowPaidOverride)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}

// CancelBooking handles DELETE /v1/bookings/:id.  The booking row is
// kept with status CANCELLED and the reason appended to its notes; the
// mirrored calendar event is removed best-effort.
func (h *BookingHandler) CancelBooking(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		Reason            string `json:"reason"`
		AllowPaidOverride bool   `json:"allow_paid_override"`
	}
	// A body is optional on cancel; binding failures just mean no reason.
	_ = c.Bind(&body)

	b, err := h.Bookings.CancelBooking(c.Request().Context(), id, body.Reason, body.AllowPaidOverride)
	if err != nil {
		return httpError(c, err)
	}
	return c.JSON(http.StatusOK, newBookingView(b))
}

// ListResourceBookings handles GET /v1/resources/:id/bookings.  Owners
// see their own resources only; ADMIN sees everything.
func (h *BookingHandler) ListResourceBookings(c echo.Context) error {
	resourceID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid resource id"})
	}
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ownerID := userID
	if getRole(c) == "ADMIN" {
		ownerID = 0 // skip the ownership check
	}

	bookings, err := h.Bookings.ListBookings(c.Request().Context(), resourceID, ownerID)
	if err != nil {
		return httpError(c, err)
	}
	out := make([]bookingView, 0, len(bookings))
	for i := range bookings {
		out = append(out, newBookingView(&bookings[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// validTransitionStatus limits the statuses a PATCH may set directly.
// CANCELLED goes through the cancel endpoint and DELETED is reserved
// for the reconciler's soft deletes.
func validTransitionStatus(s string) bool {
	switch s {
	case "PENDING", "CONFIRMED", "BLOCKED":
		return true
	}
	return false
}
