package booking

import (
	"fmt"
	"time"
)

// Reservation is a room booking as returned by the RBS search endpoints.
// Start and End are millisecond epoch values, matching the wire format.
type Reservation struct {
	ID      string          `json:"id"`
	RoomID  string          `json:"roomid"`
	Start   int64           `json:"start"`
	End     int64           `json:"end"`
	Purpose string          `json:"purpose"`
	User    ReservationUser `json:"user"`
}

// ReservationUser identifies the booking owner.
type ReservationUser struct {
	UserID string `json:"userid"`
}

// StartTime returns the reservation start as a time.Time.
func (r Reservation) StartTime() time.Time {
	return time.UnixMilli(r.Start)
}

// EndTime returns the reservation end as a time.Time.
func (r Reservation) EndTime() time.Time {
	return time.UnixMilli(r.End)
}

// FreeBusyEntry is one occupied slot from the freebusy endpoint.
type FreeBusyEntry struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// CreateBookingRequest is the POST /book payload.
type CreateBookingRequest struct {
	RoomID    string          `json:"roomid"`
	Start     int64           `json:"start"`
	End       int64           `json:"end"`
	Purpose   string          `json:"purpose"`
	Attendees int             `json:"attendees"`
	User      ReservationUser `json:"user"`
}

// StatusError reports a non-success HTTP status from the RBS API.
// Callers use it to tell a domain rejection (double booking, unknown
// event) apart from a transport failure.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("booking: status %d", e.StatusCode)
	}
	return fmt.Sprintf("booking: status %d: %s", e.StatusCode, e.Body)
}
