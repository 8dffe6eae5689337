package reminder

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/camomilehq/roombot/internal/booking"
	"github.com/camomilehq/roombot/internal/dispatch"
	"github.com/camomilehq/roombot/internal/observability/metrics"
	"github.com/camomilehq/roombot/internal/session"
	"github.com/camomilehq/roombot/pkg/logging"
)

const defaultDateTimeFormat = "2006-01-02 15:04"

// BookingSearcher lists upcoming reservations across a site.
type BookingSearcher interface {
	SearchBySite(ctx context.Context, siteID string, start, end time.Time) ([]booking.Reservation, error)
}

// SessionLookup resolves a reservation owner back to their chat session.
type SessionLookup interface {
	FindByUserID(ctx context.Context, userID string) (*session.Record, error)
}

// MessageSender delivers the alert to the user's chat.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Config tunes the reminder sweep.
type Config struct {
	SiteID string
	// Minute is the minute-of-hour at which each sweep fires.
	Minute int
	// Lookahead bounds the booking search window from now.
	Lookahead time.Duration
	// LeadTime is how close to its start a reservation must be before
	// the alert goes out.
	LeadTime time.Duration
	Location *time.Location
	Now      func() time.Time
}

// Worker periodically alerts users whose reservations start soon.
//
// Sweeps keep no delivery log, so a reservation inside the lead window
// is alerted on every sweep until it starts. With an hourly cadence and
// a lead time at or under an hour each reservation is alerted once.
type Worker struct {
	booking  BookingSearcher
	sessions SessionLookup
	sender   MessageSender
	cfg      Config
	logger   *logging.Logger
	metrics  *metrics.BotMetrics
}

func NewWorker(bookingSvc BookingSearcher, sessions SessionLookup, sender MessageSender, cfg Config, logger *logging.Logger) *Worker {
	if bookingSvc == nil {
		panic("reminder: booking searcher is required")
	}
	if sessions == nil {
		panic("reminder: session lookup is required")
	}
	if sender == nil {
		panic("reminder: message sender is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.SiteID == "" {
		panic("reminder: site id is required")
	}
	if cfg.Minute < 0 || cfg.Minute > 59 {
		cfg.Minute = 50
	}
	if cfg.Lookahead <= 0 {
		cfg.Lookahead = 24 * time.Hour
	}
	if cfg.LeadTime <= 0 {
		cfg.LeadTime = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = dispatch.Seoul
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Worker{
		booking:  bookingSvc,
		sessions: sessions,
		sender:   sender,
		cfg:      cfg,
		logger:   logger,
	}
}

func (w *Worker) WithMetrics(m *metrics.BotMetrics) *Worker {
	w.metrics = m
	return w
}

// Run fires a sweep at the configured minute of every hour until the
// context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("reminder worker started", "minute", w.cfg.Minute, "lead_time", w.cfg.LeadTime.String())
	for {
		timer := time.NewTimer(time.Until(w.nextRun()))
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("reminder worker stopping")
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := w.RunOnce(ctx); err != nil {
			w.logger.Error("reminder sweep failed", "error", err)
		}
	}
}

func (w *Worker) nextRun() time.Time {
	now := w.cfg.Now()
	next := now.Truncate(time.Hour).Add(time.Duration(w.cfg.Minute) * time.Minute)
	if !next.After(now) {
		next = next.Add(time.Hour)
	}
	return next
}

// RunOnce performs a single sweep and returns how many alerts went out.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	runID := uuid.NewString()
	now := w.cfg.Now()
	log := w.logger.With("run_id", runID)

	reservations, err := w.booking.SearchBySite(ctx, w.cfg.SiteID, now, now.Add(w.cfg.Lookahead))
	if err != nil {
		return 0, fmt.Errorf("reminder: search site bookings: %w", err)
	}

	sent := 0
	for _, res := range reservations {
		until := res.StartTime().Sub(now)
		if until < 0 || until >= w.cfg.LeadTime {
			continue
		}
		delivered, err := w.alert(ctx, res)
		if err != nil {
			log.Error("deliver alert", "reservation_id", res.ID, "error", err)
			continue
		}
		if delivered {
			sent++
			w.metrics.ObserveAlert()
		}
	}

	log.Info("reminder sweep complete", "candidates", len(reservations), "alerts", sent)
	return sent, nil
}

func (w *Worker) alert(ctx context.Context, res booking.Reservation) (bool, error) {
	rec, err := w.sessions.FindByUserID(ctx, res.User.UserID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			// The user booked through another channel; nothing to notify.
			return false, nil
		}
		return false, err
	}

	chatID, err := strconv.ParseInt(rec.UserKey, 10, 64)
	if err != nil {
		return false, fmt.Errorf("reminder: session %q has non-numeric user key: %w", rec.UserKey, err)
	}

	start := res.StartTime().In(w.cfg.Location).Format(defaultDateTimeFormat)
	end := res.EndTime().In(w.cfg.Location).Format(defaultDateTimeFormat)
	text := fmt.Sprintf("[Meeting Alert] %s ~ %s, %s, %s", start, end, res.RoomID, res.Purpose)
	if err := w.sender.SendMessage(ctx, chatID, text); err != nil {
		return false, err
	}
	return true, nil
}
