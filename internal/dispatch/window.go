package dispatch

import (
	"fmt"
	"time"

	"github.com/camomilehq/roombot/internal/assistant"
)

// Seoul is the fixed offset used to anchor recognized date/time entities,
// matching the dialog workspace's locale.
var Seoul = time.FixedZone("UTC+9", 9*60*60)

var clockLayouts = []string{"15:04:05", "15:04"}

// parseAt combines a recognized date and time-of-day into an instant in loc.
func parseAt(date, clock string, loc *time.Location) (time.Time, error) {
	for _, layout := range clockLayouts {
		t, err := time.ParseInLocation("2006-01-02T"+layout, date+"T"+clock, loc)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time %q %q", date, clock)
}

// slotWindow derives the window for a single-slot operation (availability
// check, booking). A missing end time defaults to one hour after start.
func slotWindow(action assistant.Action, loc *time.Location) (time.Time, time.Time, error) {
	if len(action.Times) == 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("missing start time")
	}
	start, err := parseAt(action.Dates, action.Times[0].Value, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end := start.Add(time.Hour)
	if len(action.Times) > 1 {
		end, err = parseAt(action.Dates, action.Times[1].Value, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	return start, end, nil
}

// listWindow derives the window for reservation listing. With no times the
// window spans now through one calendar month from now; a lone start time
// widens the end to one month after it.
func listWindow(action assistant.Action, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	start := now
	if len(action.Times) > 0 && action.Times[0].Value != "" {
		parsed, err := parseAt(action.Dates, action.Times[0].Value, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}
	end := start.AddDate(0, 1, 0)
	if len(action.Times) > 1 {
		parsed, err := parseAt(action.Dates, action.Times[1].Value, loc)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = parsed
	}
	return start, end, nil
}
