package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	PublicBaseURL string

	// Watson Assistant-style NLU service
	AssistantURL     string
	AssistantAPIKey  string
	AssistantVersion string
	WorkspaceID      string

	// Room booking service (RBS)
	RBSBaseURL       string
	RoomID           string
	SiteID           string
	BookingPurpose   string
	BookingAttendees int

	// Telegram channel
	TelegramToken string

	// Session store (DynamoDB) and cache (Redis)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	SessionsTable       string
	SessionsUserIndex   string
	RedisAddr           string
	RedisPassword       string
	RedisTLS            bool
	SessionCacheTTL     time.Duration

	// Reminder job
	ReminderMinute    int
	ReminderLookahead time.Duration
	ReminderLeadTime  time.Duration

	// Timezone tag merged into every persisted context
	Timezone string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),

		AssistantURL:     getEnv("ASSISTANT_URL", "https://gateway.watsonplatform.net/conversation/api"),
		AssistantAPIKey:  getEnv("ASSISTANT_APIKEY", ""),
		AssistantVersion: getEnv("ASSISTANT_VERSION", "2018-02-16"),
		WorkspaceID:      getEnv("WORKSPACE_ID", ""),

		RBSBaseURL:       getEnv("RBS_URL", ""),
		RoomID:           getEnv("RBS_ROOM_ID", "room1/camomile"),
		SiteID:           getEnv("RBS_SITE_ID", "camomile"),
		BookingPurpose:   getEnv("RBS_BOOKING_PURPOSE", "quick review"),
		BookingAttendees: getEnvAsInt("RBS_BOOKING_ATTENDEES", 5),

		TelegramToken: getEnv("TELEGRAM_TOKEN", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		SessionsTable:       getEnv("SESSIONS_TABLE", "roombot_sessions"),
		SessionsUserIndex:   getEnv("SESSIONS_USER_INDEX", "userId-index"),
		RedisAddr:           getEnv("REDIS_ADDR", ""),
		RedisPassword:       getEnv("REDIS_PASSWORD", ""),
		RedisTLS:            getEnvAsBool("REDIS_TLS", false),
		SessionCacheTTL:     getEnvAsDuration("SESSION_CACHE_TTL", 24*time.Hour),

		ReminderMinute:    getEnvAsInt("REMINDER_MINUTE", 50),
		ReminderLookahead: getEnvAsDuration("REMINDER_LOOKAHEAD", 24*time.Hour),
		ReminderLeadTime:  getEnvAsDuration("REMINDER_LEAD_TIME", 60*time.Minute),

		Timezone: getEnv("BOT_TIMEZONE", "Asia/Seoul"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
