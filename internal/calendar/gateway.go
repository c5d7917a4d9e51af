package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// googleAPIBase is the Google Calendar v3 REST root.
const googleAPIBase = "https://www.googleapis.com/calendar/v3"

// EventAPI is the gateway contract the services depend on.  It is
// satisfied by *Gateway and faked in tests.  Every operation requires a
// valid access token for the calendar's owner; credential failures
// surface as ErrAuthRequired / ErrReauthRequired and are never turned
// into an empty result.
type EventAPI interface {
	ListEvents(ctx context.Context, ownerID uint64, calendarID string, start, end time.Time) ([]Event, error)
	CreateEvent(ctx context.Context, ownerID uint64, calendarID string, mut EventMutation) (string, error)
	UpdateEvent(ctx context.Context, ownerID uint64, calendarID, eventID string, mut EventMutation) error
	DeleteEvent(ctx context.Context, ownerID uint64, calendarID, eventID string) error
}

// Gateway is a thin adapter over the Google Calendar REST API.  It owns
// no policy: callers decide how to react to failures (the availability
// check degrades, the reconciler aborts).
type Gateway struct {
	tokens  TokenSource
	baseURL string
	http    *http.Client
}

// NewGateway constructs a Gateway using the given token source and
// per-call timeout.
func NewGateway(tokens TokenSource, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Gateway{
		tokens:  tokens,
		baseURL: googleAPIBase,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   5 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
	}
}

// eventTime is the wire form of a Google event boundary: exactly one of
// Date (all-day, YYYY-MM-DD) or DateTime (RFC3339) is set.
type eventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type wireEvent struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       eventTime `json:"start"`
	End         eventTime `json:"end"`
}

type listResponse struct {
	Items         []wireEvent `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

// normalize converts a wire boundary into a comparable UTC instant.
// All-day values have no clock component: starts map to 00:00:00 and
// ends to 23:59:59 of the stated date so that a one-day block covers
// the whole day in overlap math.  A zero time is returned when neither
// form is present.
func normalize(et eventTime, isEnd bool) (time.Time, bool) {
	if et.DateTime != "" {
		t, err := time.Parse(time.RFC3339, et.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), false
	}
	if et.Date != "" {
		d, err := time.Parse("2006-01-02", et.Date)
		if err != nil {
			return time.Time{}, false
		}
		if isEnd {
			return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.UTC), true
		}
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func fromWire(w wireEvent) Event {
	start, allDayStart := normalize(w.Start, false)
	end, allDayEnd := normalize(w.End, true)
	return Event{
		ID:          w.ID,
		Summary:     w.Summary,
		Description: w.Description,
		Start:       start,
		End:         end,
		AllDay:      allDayStart || allDayEnd,
		Status:      w.Status,
	}
}

func toWire(mut EventMutation) wireEvent {
	return wireEvent{
		Summary:     mut.Summary,
		Description: mut.Description,
		Start:       eventTime{DateTime: mut.Start.UTC().Format(time.RFC3339)},
		End:         eventTime{DateTime: mut.End.UTC().Format(time.RFC3339)},
	}
}

// do performs one authenticated API call and maps HTTP failures onto
// the package sentinels.  The response body is returned for 2xx
// statuses only.
func (g *Gateway) do(ctx context.Context, ownerID uint64, method, callURL string, payload interface{}) ([]byte, error) {
	token, _, err := g.tokens.GetAccessToken(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, callURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return raw, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: calendar API returned %d", ErrAuthRequired, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, ErrEventNotFound
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: calendar API returned %d", ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return nil, fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, raw)
	}
}

// ListEvents returns all events of the calendar intersecting
// [start, end), expanded to single instances, including cancellation
// tombstones.  Pagination is followed until exhausted.
func (g *Gateway) ListEvents(ctx context.Context, ownerID uint64, calendarID string, start, end time.Time) ([]Event, error) {
	events := make([]Event, 0)
	pageToken := ""
	for {
		u := fmt.Sprintf("%s/calendars/%s/events", g.baseURL, url.PathEscape(calendarID))
		q := url.Values{}
		q.Set("timeMin", start.UTC().Format(time.RFC3339))
		q.Set("timeMax", end.UTC().Format(time.RFC3339))
		q.Set("singleEvents", "true")
		q.Set("showDeleted", "true")
		q.Set("maxResults", "2500")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		raw, err := g.do(ctx, ownerID, http.MethodGet, u+"?"+q.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var page listResponse
		if err := json.Unmarshal(raw, &page); err != nil {
			return nil, fmt.Errorf("%w: malformed list response", ErrUpstreamUnavailable)
		}
		for _, w := range page.Items {
			events = append(events, fromWire(w))
		}
		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreateEvent inserts a new event and returns its id.
func (g *Gateway) CreateEvent(ctx context.Context, ownerID uint64, calendarID string, mut EventMutation) (string, error) {
	u := fmt.Sprintf("%s/calendars/%s/events", g.baseURL, url.PathEscape(calendarID))
	raw, err := g.do(ctx, ownerID, http.MethodPost, u, toWire(mut))
	if err != nil {
		return "", err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("%w: malformed create response", ErrUpstreamUnavailable)
	}
	return created.ID, nil
}

// UpdateEvent patches the time and text fields of an existing event.
func (g *Gateway) UpdateEvent(ctx context.Context, ownerID uint64, calendarID, eventID string, mut EventMutation) error {
	u := fmt.Sprintf("%s/calendars/%s/events/%s", g.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	_, err := g.do(ctx, ownerID, http.MethodPatch, u, toWire(mut))
	return err
}

// DeleteEvent removes an event from the calendar.
func (g *Gateway) DeleteEvent(ctx context.Context, ownerID uint64, calendarID, eventID string) error {
	u := fmt.Sprintf("%s/calendars/%s/events/%s", g.baseURL, url.PathEscape(calendarID), url.PathEscape(eventID))
	_, err := g.do(ctx, ownerID, http.MethodDelete, u, nil)
	return err
}
