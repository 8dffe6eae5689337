package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/camomilehq/roombot/internal/assistant"
	"github.com/camomilehq/roombot/internal/observability/metrics"
	"github.com/camomilehq/roombot/internal/session"
	"github.com/camomilehq/roombot/pkg/logging"
)

// ConversationService runs one conversation turn.
type ConversationService interface {
	GetResponse(ctx context.Context, input assistant.Input, conversationCtx assistant.Context) (*assistant.MessageResponse, error)
}

// Sessions loads and saves per-chat conversation state.
type Sessions interface {
	Get(ctx context.Context, userKey string) (*session.Record, error)
	Put(ctx context.Context, rec *session.Record) error
}

// MessageSender delivers outbound chat messages.
type MessageSender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Adapter bridges Telegram updates to the conversation service: it
// restores the chat's saved context, runs the turn, persists the new
// context, and replies with the dialog text.
type Adapter struct {
	svc      ConversationService
	sessions Sessions
	sender   MessageSender
	timezone string
	logger   *logging.Logger
	metrics  *metrics.BotMetrics
}

func NewAdapter(svc ConversationService, sessions Sessions, sender MessageSender, timezone string, logger *logging.Logger) *Adapter {
	if svc == nil {
		panic("telegram: conversation service is required")
	}
	if sessions == nil {
		panic("telegram: session store is required")
	}
	if sender == nil {
		panic("telegram: message sender is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Adapter{
		svc:      svc,
		sessions: sessions,
		sender:   sender,
		timezone: timezone,
		logger:   logger,
	}
}

func (a *Adapter) WithMetrics(m *metrics.BotMetrics) *Adapter {
	a.metrics = m
	return a
}

// HandleUpdate processes one inbound update end to end. Failures are
// reported back to the chat as text so the user is never left hanging.
func (a *Adapter) HandleUpdate(ctx context.Context, update Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	chatID := update.Message.Chat.ID
	userKey := strconv.FormatInt(chatID, 10)
	log := a.logger.With("chat_id", userKey)

	rec, err := a.sessions.Get(ctx, userKey)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		rec = &session.Record{UserKey: userKey, Channel: "telegram"}
	case err != nil:
		log.Error("load session", "error", err)
		a.reply(ctx, chatID, err.Error())
		a.observe("error")
		return
	}

	conversationCtx, err := assistant.ParseContext([]byte(rec.Context))
	if err != nil {
		log.Warn("corrupt session context, starting fresh", "error", err)
		conversationCtx, _ = assistant.ParseContext(nil)
	}

	resp, err := a.svc.GetResponse(ctx, assistant.Input{Text: update.Message.Text}, conversationCtx)
	if err != nil {
		log.Error("conversation turn", "error", err)
		a.reply(ctx, chatID, err.Error())
		a.observe("error")
		return
	}

	resp.Context.SetTimezone(a.timezone)

	raw, err := json.Marshal(resp.Context)
	if err != nil {
		log.Error("marshal conversation context", "error", err)
	} else {
		rec.Context = string(raw)
		if user, ok := resp.Context.User(); ok && user.ID != "" {
			rec.UserID = user.ID
		}
		if err := a.sessions.Put(ctx, rec); err != nil {
			// The reply still goes out; the next turn just starts from
			// the previous context.
			log.Error("save session", "error", err)
		}
	}

	a.reply(ctx, chatID, resp.Output.Text.Joined())
	a.observe("ok")
}

func (a *Adapter) reply(ctx context.Context, chatID int64, text string) {
	if text == "" {
		return
	}
	if err := a.sender.SendMessage(ctx, chatID, text); err != nil {
		a.logger.Error("send telegram reply", "chat_id", chatID, "error", err)
	}
}

func (a *Adapter) observe(status string) {
	a.metrics.ObserveTurn("telegram", status)
}
