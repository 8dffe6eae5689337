package booking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/camomilehq/roombot/pkg/logging"
)

const defaultTimeout = 20 * time.Second

// Client talks to the room booking service (RBS) REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewClient creates an RBS client for the given base URL.
func NewClient(baseURL string, logger *logging.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("booking: base URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}, nil
}

// WithHTTPClient overrides the underlying HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.httpClient = hc
	}
	return c
}

// RoomFreeBusy returns the occupied slots for a room in [start, end).
// An empty result means the room is available.
func (c *Client) RoomFreeBusy(ctx context.Context, roomID string, start, end time.Time) ([]FreeBusyEntry, error) {
	q := url.Values{}
	q.Set("roomid", roomID)
	q.Set("start", msec(start))
	q.Set("end", msec(end))

	var out struct {
		FreeBusy []FreeBusyEntry `json:"freebusy"`
	}
	if err := c.do(ctx, http.MethodGet, "/freebusy/room", q, nil, &out); err != nil {
		return nil, err
	}
	return out.FreeBusy, nil
}

// CreateBooking books a room. A non-success status (typically a slot
// conflict) is returned as a *StatusError.
func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) error {
	return c.do(ctx, http.MethodPost, "/book", nil, req, nil)
}

// SearchByUser lists a user's reservations on a site within [start, end).
func (c *Client) SearchByUser(ctx context.Context, siteID, userID string, start, end time.Time) ([]Reservation, error) {
	q := url.Values{}
	q.Set("siteid", siteID)
	q.Set("userid", userID)
	q.Set("start", msec(start))
	q.Set("end", msec(end))

	var out []Reservation
	if err := c.do(ctx, http.MethodGet, "/book/search/byuser", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchBySite lists all reservations on a site within [start, end).
func (c *Client) SearchBySite(ctx context.Context, siteID string, start, end time.Time) ([]Reservation, error) {
	q := url.Values{}
	q.Set("siteid", siteID)
	q.Set("start", msec(start))
	q.Set("end", msec(end))

	var out []Reservation
	if err := c.do(ctx, http.MethodGet, "/book/search/bysite", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelBooking deletes a reservation by event, user and room id.
func (c *Client) CancelBooking(ctx context.Context, eventID, userID, roomID string) error {
	q := url.Values{}
	q.Set("eventid", eventID)
	q.Set("userid", userID)
	q.Set("roomid", roomID)
	return c.do(ctx, http.MethodDelete, "/book", q, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("booking: marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("booking: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("booking: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("booking: read response: %w", err)
	}

	// 3xx responses are treated as success to match the RBS contract.
	if resp.StatusCode >= 400 {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return &StatusError{StatusCode: resp.StatusCode, Body: msg}
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		// RBS occasionally returns an empty body on success.
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("booking: unmarshal response: %w", err)
	}
	return nil
}

func msec(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
