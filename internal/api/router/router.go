package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/camomilehq/roombot/internal/channels/telegram"
	"github.com/camomilehq/roombot/internal/conversation"
	httpmiddleware "github.com/camomilehq/roombot/internal/http/middleware"
	"github.com/camomilehq/roombot/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	TelegramWebhook     *telegram.WebhookHandler
	// TelegramWebhookPath is the token-bearing path the bot registered
	// with Telegram, e.g. "/bot<token>".
	TelegramWebhookPath string
	MetricsHandler      http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if cfg.ConversationHandler != nil {
		r.Post("/api/message", cfg.ConversationHandler.PostMessage)
	}

	if cfg.TelegramWebhook != nil && cfg.TelegramWebhookPath != "" {
		r.Post(cfg.TelegramWebhookPath, cfg.TelegramWebhook.HandleInbound)
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
