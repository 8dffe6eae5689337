package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"

	"github.com/camomilehq/roombot/cmd/mainconfig"
	"github.com/camomilehq/roombot/internal/booking"
	"github.com/camomilehq/roombot/internal/channels/telegram"
	appconfig "github.com/camomilehq/roombot/internal/config"
	"github.com/camomilehq/roombot/internal/reminder"
	"github.com/camomilehq/roombot/internal/session"
	"github.com/camomilehq/roombot/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	awsConfig, err := mainconfig.LoadAWSConfig(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	dynamoClient := dynamodb.NewFromConfig(awsConfig)
	store := session.NewStore(dynamoClient, cfg.SessionsTable, cfg.SessionsUserIndex, logger)

	bookingClient, err := booking.NewClient(cfg.RBSBaseURL, logger)
	if err != nil {
		logger.Error("failed to build booking client", "error", err)
		os.Exit(1)
	}

	tgClient, err := telegram.NewClient(cfg.TelegramToken, logger)
	if err != nil {
		logger.Error("failed to build telegram client", "error", err)
		os.Exit(1)
	}

	worker := reminder.NewWorker(bookingClient, store, tgClient, reminder.Config{
		SiteID:    cfg.SiteID,
		Minute:    cfg.ReminderMinute,
		Lookahead: cfg.ReminderLookahead,
		LeadTime:  cfg.ReminderLeadTime,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- worker.Run(ctx)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down reminder worker...")
	cancel()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("reminder worker exited", "error", err)
		os.Exit(1)
	}
	logger.Info("reminder worker stopped")
}
