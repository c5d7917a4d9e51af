package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/glacombe/pourvoirie-booking/internal/calendar"
	"github.com/glacombe/pourvoirie-booking/internal/repository"
	"github.com/glacombe/pourvoirie-booking/internal/service"
)

func newTestContext(t *testing.T) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestParseTimeParam(t *testing.T) {
	got, err := parseTimeParam("2026-07-10T15:30:00-04:00", false)
	if err != nil {
		t.Fatalf("RFC3339: %v", err)
	}
	if want := time.Date(2026, 7, 10, 19, 30, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("RFC3339 should convert to UTC: got %v", got)
	}

	got, err = parseTimeParam("2026-07-10", false)
	if err != nil {
		t.Fatalf("date start: %v", err)
	}
	if want := time.Date(2026, 7, 10, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("date start should expand to midnight: got %v", got)
	}

	got, err = parseTimeParam("2026-07-10", true)
	if err != nil {
		t.Fatalf("date end: %v", err)
	}
	if want := time.Date(2026, 7, 10, 23, 59, 59, 0, time.UTC); !got.Equal(want) {
		t.Errorf("date end should expand to end of day: got %v", got)
	}

	if _, err := parseTimeParam("juillet 10", false); err == nil {
		t.Error("garbage input should fail")
	}
}

func TestHTTPErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrInvalidRange, http.StatusBadRequest},
		{service.ErrNoCalendar, http.StatusBadRequest},
		{service.ErrPaidBookingLocked, http.StatusLocked},
		{service.ErrSyncInProgress, http.StatusConflict},
		{&service.UnavailableError{Result: &service.AvailabilityResult{Reason: service.ReasonLocalConflict}}, http.StatusConflict},
		{repository.ErrBookingNotFound, http.StatusNotFound},
		{repository.ErrResourceNotFound, http.StatusNotFound},
		{repository.ErrForbidden, http.StatusForbidden},
		{calendar.ErrReauthRequired, http.StatusBadGateway},
		{calendar.ErrUpstreamUnavailable, http.StatusBadGateway},
	}
	for _, tc := range cases {
		c, rec := newTestContext(t)
		if err := httpError(c, tc.err); err != nil {
			t.Fatalf("%v: handler error %v", tc.err, err)
		}
		if rec.Code != tc.code {
			t.Errorf("%v: got status %d, want %d", tc.err, rec.Code, tc.code)
		}
	}
}

func TestHTTPErrorReauthFlag(t *testing.T) {
	c, rec := newTestContext(t)
	if err := httpError(c, calendar.ErrReauthRequired); err != nil {
		t.Fatal(err)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["reauth_required"] != true {
		t.Fatalf("reauth_required flag missing: %v", body)
	}
}

func TestGetUserIDClaimForms(t *testing.T) {
	// JWT claims decode numbers as float64 and subjects often arrive as
	// strings; both must resolve to the same id.
	for _, v := range []interface{}{float64(42), "42", uint64(42), int64(42)} {
		c, _ := newTestContext(t)
		c.Set("user_id", v)
		id, err := getUserID(c)
		if err != nil || id != 42 {
			t.Errorf("%T: got id=%d err=%v", v, id, err)
		}
	}
	c, _ := newTestContext(t)
	if _, err := getUserID(c); err == nil {
		t.Error("missing claim should fail")
	}
}

func TestValidTransitionStatus(t *testing.T) {
	for _, s := range []string{"PENDING", "CONFIRMED", "BLOCKED"} {
		if !validTransitionStatus(s) {
			t.Errorf("%s should be settable", s)
		}
	}
	for _, s := range []string{"CANCELLED", "DELETED", "FREE", ""} {
		if validTransitionStatus(s) {
			t.Errorf("%s must not be settable through PATCH", s)
		}
	}
}
