package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camomilehq/roombot/internal/assistant"
	"github.com/camomilehq/roombot/internal/booking"
	"github.com/camomilehq/roombot/internal/observability/metrics"
	"github.com/camomilehq/roombot/pkg/logging"
)

// Action commands emitted by the dialog workspace.
const (
	cmdCheckAvailability     = "check-availability"
	cmdConfirmReservation    = "confirm-reservation"
	cmdCheckReservation      = "check-reservation"
	cmdCheckNextReservation  = "check-next-reservation"
	cmdCheckCancellationList = "check-reservation-for-cancellation"
	cmdConfirmCancellation   = "confirm-cancellation"
)

// User-facing messages for domain-level booking failures.
const (
	msgNotAvailable = "Rooms are not available at the requested time. Please try again."
	msgBookFailed   = "Your reservation is not successful. Please try again."
	msgNotFound     = "Your reservation is not found."
	msgCancelPrompt = "Please tell me the number of the reservation you want to cancel."
	msgCancelFailed = "Your request is not successful. Please try again."
)

// BookingService is the slice of the RBS client the dispatcher needs.
type BookingService interface {
	RoomFreeBusy(ctx context.Context, roomID string, start, end time.Time) ([]booking.FreeBusyEntry, error)
	CreateBooking(ctx context.Context, req booking.CreateBookingRequest) error
	SearchByUser(ctx context.Context, siteID, userID string, start, end time.Time) ([]booking.Reservation, error)
	CancelBooking(ctx context.Context, eventID, userID, roomID string) error
}

// Config holds the fixed booking parameters for this deployment.
type Config struct {
	RoomID         string
	SiteID         string
	Purpose        string
	Attendees      int
	Location       *time.Location
	DateTimeFormat string
	Now            func() time.Time
}

// Dispatcher executes the action directive embedded in an NLU response,
// folding booking results back into the response's output and context.
// It holds no state between turns.
type Dispatcher struct {
	booking BookingService
	cfg     Config
	logger  *logging.Logger
	metrics *metrics.BotMetrics
}

// New creates a dispatcher over the given booking service.
func New(svc BookingService, cfg Config, logger *logging.Logger) *Dispatcher {
	if svc == nil {
		panic("dispatch: booking service cannot be nil")
	}
	if cfg.RoomID == "" {
		cfg.RoomID = "room1/camomile"
	}
	if cfg.SiteID == "" {
		cfg.SiteID = "camomile"
	}
	if cfg.Purpose == "" {
		cfg.Purpose = "quick review"
	}
	if cfg.Attendees <= 0 {
		cfg.Attendees = 5
	}
	if cfg.Location == nil {
		cfg.Location = Seoul
	}
	if cfg.DateTimeFormat == "" {
		cfg.DateTimeFormat = "2006-01-02 15:04"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{booking: svc, cfg: cfg, logger: logger}
}

// WithMetrics attaches dispatch counters.
func (d *Dispatcher) WithMetrics(m *metrics.BotMetrics) *Dispatcher {
	d.metrics = m
	return d
}

type handlerFunc func(ctx context.Context, resp *assistant.MessageResponse, action assistant.Action) error

// Apply inspects the response's action directive and runs the matching
// booking operation. Responses without a pending directive, and directives
// with an unrecognized command, pass through unmodified. A recognized
// directive is consumed exactly once: the action is reset to an empty
// object whether or not the handler succeeded.
func (d *Dispatcher) Apply(ctx context.Context, resp *assistant.MessageResponse) (*assistant.MessageResponse, error) {
	action, ok := resp.Context.Action()
	if !ok {
		return resp, nil
	}

	handler, ok := d.handlerFor(action.Command)
	if !ok {
		d.logger.Info("dispatch: command not supported", "command", action.Command)
		d.metrics.ObserveDispatch(action.Command, "unsupported")
		return resp, nil
	}

	d.logger.Info("dispatch: action", "command", action.Command)
	err := handler(ctx, resp, action)
	resp.Context.ClearAction()
	if err != nil {
		d.metrics.ObserveDispatch(action.Command, "error")
		return nil, err
	}
	d.metrics.ObserveDispatch(action.Command, "ok")
	return resp, nil
}

func (d *Dispatcher) handlerFor(command string) (handlerFunc, bool) {
	switch command {
	case cmdCheckAvailability:
		return d.checkAvailability, true
	case cmdConfirmReservation:
		return d.confirmReservation, true
	case cmdCheckReservation:
		return d.checkReservation, true
	case cmdCheckNextReservation:
		return d.checkNextReservation, true
	case cmdCheckCancellationList:
		return d.checkReservationForCancellation, true
	case cmdConfirmCancellation:
		return d.confirmCancellation, true
	default:
		return nil, false
	}
}

func (d *Dispatcher) checkAvailability(ctx context.Context, resp *assistant.MessageResponse, action assistant.Action) error {
	start, end, err := slotWindow(action, d.cfg.Location)
	if err != nil {
		return fmt.Errorf("dispatch: %s: %w", cmdCheckAvailability, err)
	}

	entries, err := d.booking.RoomFreeBusy(ctx, d.cfg.RoomID, start, end)
	if err != nil {
		return err
	}

	if len(entries) > 0 {
		resp.Output.Text = assistant.StringText(msgNotAvailable)
	} else {
		resp.Output.Text = assistant.StringText(d.cfg.RoomID + " is available. Would you confirm this reservation?")
	}
	return nil
}

func (d *Dispatcher) confirmReservation(ctx context.Context, resp *assistant.MessageResponse, action assistant.Action) error {
	user, ok := resp.Context.User()
	if !ok {
		return fmt.Errorf("dispatch: %s: missing user in context", cmdConfirmReservation)
	}
	start, end, err := slotWindow(action, d.cfg.Location)
	if err != nil {
		return fmt.Errorf("dispatch: %s: %w", cmdConfirmReservation, err)
	}

	err = d.booking.CreateBooking(ctx, booking.CreateBookingRequest{
		RoomID:    d.cfg.RoomID,
		Start:     start.UnixMilli(),
		End:       end.UnixMilli(),
		Purpose:   d.cfg.Purpose,
		Attendees: d.cfg.Attendees,
		User:      booking.ReservationUser{UserID: user.ID},
	})
	var statusErr *booking.StatusError
	if errors.As(err, &statusErr) {
		d.logger.Info("dispatch: booking rejected", "status", statusErr.StatusCode)
		resp.Output.Text = assistant.StringText(msgBookFailed)
		return nil
	}
	if err != nil {
		return err
	}
	// On success the confirmation text from the dialog stands.
	return nil
}

func (d *Dispatcher) checkReservation(ctx context.Context, resp *assistant.MessageResponse, action assistant.Action) error {
	user, ok := resp.Context.User()
	if !ok {
		return fmt.Errorf("dispatch: %s: missing user in context", cmdCheckReservation)
	}
	start, end, err := listWindow(action, d.cfg.Now(), d.cfg.Location)
	if err != nil {
		return fmt.Errorf("dispatch: %s: %w", cmdCheckReservation, err)
	}

	resvs, err := d.booking.SearchByUser(ctx, d.cfg.SiteID, user.ID, start, end)
	if err != nil {
		return err
	}

	if len(resvs) == 0 {
		resp.Output.Text = assistant.ListText([]string{msgNotFound})
		return nil
	}

	lines := make([]string, 0, len(resvs))
	for i, r := range resvs {
		lines = append(lines, d.formatReservation(i+1, r))
	}
	if err := resp.Context.Set("reservations", resvs); err != nil {
		return err
	}
	resp.Output.Text = assistant.ListText(lines)
	return nil
}

func (d *Dispatcher) checkNextReservation(ctx context.Context, resp *assistant.MessageResponse, action assistant.Action) error {
	if err := d.checkReservation(ctx, resp, action); err != nil {
		return err
	}
	resp.Output.Text = resp.Output.Text.First()
	return nil
}

func (d *Dispatcher) checkReservationForCancellation(ctx context.Context, resp *assistant.MessageResponse, action assistant.Action) error {
	if err := d.checkReservation(ctx, resp, action); err != nil {
		return err
	}
	resp.Output.Text = resp.Output.Text.Prepend(msgCancelPrompt)
	return nil
}

func (d *Dispatcher) confirmCancellation(ctx context.Context, resp *assistant.MessageResponse, action assistant.Action) error {
	user, ok := resp.Context.User()
	if !ok {
		return fmt.Errorf("dispatch: %s: missing user in context", cmdConfirmCancellation)
	}

	var resvs []booking.Reservation
	resp.Context.Get("reservations", &resvs)
	idx, ok := resp.Context.RemoveIndex()
	if !ok || idx < 0 || idx >= len(resvs) {
		d.logger.Warn("dispatch: cancellation index out of range", "index", idx, "cached", len(resvs))
		resp.Output.Text = assistant.StringText(msgCancelFailed)
		return nil
	}

	target := resvs[idx]
	err := d.booking.CancelBooking(ctx, target.ID, user.ID, target.RoomID)
	var statusErr *booking.StatusError
	if errors.As(err, &statusErr) {
		d.logger.Info("dispatch: cancellation rejected", "status", statusErr.StatusCode)
		resp.Output.Text = assistant.StringText(msgCancelFailed)
		return nil
	}
	return err
}

func (d *Dispatcher) formatReservation(position int, r booking.Reservation) string {
	return fmt.Sprintf("%d: %s ~ %s, %s, %s",
		position,
		r.StartTime().In(d.cfg.Location).Format(d.cfg.DateTimeFormat),
		r.EndTime().In(d.cfg.Location).Format(d.cfg.DateTimeFormat),
		r.RoomID,
		r.Purpose,
	)
}
