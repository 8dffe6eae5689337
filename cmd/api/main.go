package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camomilehq/roombot/cmd/mainconfig"
	"github.com/camomilehq/roombot/internal/api/router"
	"github.com/camomilehq/roombot/internal/assistant"
	"github.com/camomilehq/roombot/internal/booking"
	"github.com/camomilehq/roombot/internal/channels/telegram"
	appconfig "github.com/camomilehq/roombot/internal/config"
	"github.com/camomilehq/roombot/internal/conversation"
	"github.com/camomilehq/roombot/internal/dispatch"
	"github.com/camomilehq/roombot/internal/observability/metrics"
	"github.com/camomilehq/roombot/internal/session"
	"github.com/camomilehq/roombot/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting roombot API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	registry := prometheus.NewRegistry()
	botMetrics := metrics.NewBotMetrics(registry)

	awsCfg, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	store := session.NewStore(dynamoClient, cfg.SessionsTable, cfg.SessionsUserIndex, logger)
	sessions := session.NewCachedStore(store, mainconfig.NewRedisClient(cfg), cfg.SessionCacheTTL, logger)

	nlu, err := assistant.New(assistant.Config{
		BaseURL:     cfg.AssistantURL,
		APIKey:      cfg.AssistantAPIKey,
		Version:     cfg.AssistantVersion,
		WorkspaceID: cfg.WorkspaceID,
		Logger:      logger,
	})
	if err != nil {
		logger.Error("failed to build assistant client", "error", err)
		os.Exit(1)
	}

	bookingClient, err := booking.NewClient(cfg.RBSBaseURL, logger)
	if err != nil {
		logger.Error("failed to build booking client", "error", err)
		os.Exit(1)
	}

	dispatcher := dispatch.New(bookingClient, dispatch.Config{
		RoomID:    cfg.RoomID,
		SiteID:    cfg.SiteID,
		Purpose:   cfg.BookingPurpose,
		Attendees: cfg.BookingAttendees,
	}, logger).WithMetrics(botMetrics)

	svc := conversation.NewService(nlu, dispatcher, logger).WithMetrics(botMetrics)
	conversationHandler := conversation.NewHandler(svc, logger)

	routerCfg := &router.Config{
		Logger:              logger,
		ConversationHandler: conversationHandler,
		MetricsHandler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	if cfg.TelegramToken != "" {
		tgClient, err := telegram.NewClient(cfg.TelegramToken, logger)
		if err != nil {
			logger.Error("failed to build telegram client", "error", err)
			os.Exit(1)
		}
		adapter := telegram.NewAdapter(svc, sessions, tgClient, cfg.Timezone, logger).WithMetrics(botMetrics)
		routerCfg.TelegramWebhook = telegram.NewWebhookHandler(adapter.HandleUpdate, logger)
		routerCfg.TelegramWebhookPath = tgClient.WebhookPath()

		if cfg.PublicBaseURL != "" {
			webhookURL := strings.TrimRight(cfg.PublicBaseURL, "/") + tgClient.WebhookPath()
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := tgClient.SetWebhook(ctx, webhookURL); err != nil {
				logger.Error("failed to register telegram webhook", "error", err)
			} else {
				logger.Info("telegram webhook registered", "url", cfg.PublicBaseURL)
			}
			cancel()
		}
	} else {
		logger.Warn("TELEGRAM_TOKEN not set, telegram channel disabled")
	}

	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
