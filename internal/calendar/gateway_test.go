package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type staticTokens struct{ err error }

func (s staticTokens) GetAccessToken(ctx context.Context, ownerID uint64) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	return "test-token", false, nil
}

func testGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	g := NewGateway(staticTokens{}, 2*time.Second)
	g.baseURL = srv.URL
	return g, srv
}

func TestListEventsNormalization(t *testing.T) {
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.URL.Query().Get("singleEvents") != "true" {
			t.Error("singleEvents must be requested")
		}
		fmt.Fprint(w, `{"items":[
            {"id":"timed","status":"confirmed","summary":"Guide sortie",
             "start":{"dateTime":"2026-07-10T13:00:00-04:00"},
             "end":{"dateTime":"2026-07-10T17:00:00-04:00"}},
            {"id":"allday","status":"confirmed","summary":"Chalet loué",
             "start":{"date":"2026-07-12"},
             "end":{"date":"2026-07-12"}}
        ]}`)
	})

	events, err := g.ListEvents(context.Background(), 1, "cal", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("want 2 events, got %d", len(events))
	}

	timed := events[0]
	if timed.AllDay {
		t.Error("dateTime event flagged all-day")
	}
	if want := time.Date(2026, 7, 10, 17, 0, 0, 0, time.UTC); !timed.Start.Equal(want) {
		t.Errorf("timed start not converted to UTC: got %v", timed.Start)
	}

	allday := events[1]
	if !allday.AllDay {
		t.Error("date event not flagged all-day")
	}
	if want := time.Date(2026, 7, 12, 0, 0, 0, 0, time.UTC); !allday.Start.Equal(want) {
		t.Errorf("all-day start: got %v", allday.Start)
	}
	if want := time.Date(2026, 7, 12, 23, 59, 59, 0, time.UTC); !allday.End.Equal(want) {
		t.Errorf("all-day end should cover the whole day: got %v", allday.End)
	}
}

func TestListEventsPagination(t *testing.T) {
	calls := 0
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"items":[{"id":"a","status":"confirmed",
                "start":{"date":"2026-07-01"},"end":{"date":"2026-07-01"}}],
                "nextPageToken":"p2"}`)
			return
		}
		fmt.Fprint(w, `{"items":[{"id":"b","status":"confirmed",
            "start":{"date":"2026-07-02"},"end":{"date":"2026-07-02"}}]}`)
	})

	events, err := g.ListEvents(context.Background(), 1, "cal", time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if calls != 2 {
		t.Fatalf("want 2 page fetches, got %d", calls)
	}
	if len(events) != 2 || events[0].ID != "a" || events[1].ID != "b" {
		t.Fatalf("pages not concatenated in order: %+v", events)
	}
}

func TestGatewayErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthRequired},
		{http.StatusForbidden, ErrAuthRequired},
		{http.StatusNotFound, ErrEventNotFound},
		{http.StatusGone, ErrEventNotFound},
		{http.StatusInternalServerError, ErrUpstreamUnavailable},
	}
	for _, tc := range cases {
		g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		})
		err := g.DeleteEvent(context.Background(), 1, "cal", "ev")
		if !errors.Is(err, tc.want) {
			t.Errorf("status %d: got %v, want %v", tc.status, err, tc.want)
		}
	}
}

func TestGatewayTokenFailurePropagates(t *testing.T) {
	g := NewGateway(staticTokens{err: ErrReauthRequired}, time.Second)
	_, err := g.ListEvents(context.Background(), 1, "cal", time.Now(), time.Now().Add(time.Hour))
	if !errors.Is(err, ErrReauthRequired) {
		t.Fatalf("token failure should propagate untouched, got %v", err)
	}
}

func TestCreateEventReturnsID(t *testing.T) {
	g, _ := testGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("want POST, got %s", r.Method)
		}
		fmt.Fprint(w, `{"id":"created-ev"}`)
	})
	id, err := g.CreateEvent(context.Background(), 1, "cal", EventMutation{
		Summary: "Réservé - Tremblay",
		Start:   time.Now(),
		End:     time.Now().Add(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateEvent: %v", err)
	}
	if id != "created-ev" {
		t.Fatalf("want created-ev, got %q", id)
	}
}
