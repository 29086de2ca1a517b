package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Payment gateway
	GatewayBaseURL         string
	GatewayKeyID           string
	GatewayKeySecret       string
	GatewayRefundKeyID     string
	GatewayRefundKeySecret string
	GatewayCurrency        string
	GatewayTimeout         time.Duration

	// Exhibitor stalls
	StallHoldTTL time.Duration

	// Notifications
	NotifyQueueKey    string
	NotifyDeadKey     string
	NotifyMaxAttempts int
	NotifyWorkers     int
	MailFromAddress   string
	MailFromName      string

	// Abuse protection
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
}

// LoadConfig reads the environment, after loading .env and .env.local when
// present. Real environment variables win over both files.
func LoadConfig() *Config {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")

	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "expo-booking-server"),

		// Gateway
		GatewayBaseURL:         getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com"),
		GatewayKeyID:           getEnv("GATEWAY_KEY_ID", ""),
		GatewayKeySecret:       getEnv("GATEWAY_KEY_SECRET", ""),
		GatewayRefundKeyID:     getEnv("GATEWAY_REFUND_KEY_ID", ""),
		GatewayRefundKeySecret: getEnv("GATEWAY_REFUND_KEY_SECRET", ""),
		GatewayCurrency:        getEnv("GATEWAY_CURRENCY", "INR"),
		GatewayTimeout:         getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),

		// Stalls
		StallHoldTTL: getEnvAsDuration("STALL_HOLD_TTL", "10m"),

		// Notifications
		NotifyQueueKey:    getEnv("NOTIFY_QUEUE_KEY", "notifications:pending"),
		NotifyDeadKey:     getEnv("NOTIFY_DEAD_KEY", "notifications:dead"),
		NotifyMaxAttempts: getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 5),
		NotifyWorkers:     getEnvAsInt("NOTIFY_WORKERS", 2),
		MailFromAddress:   getEnv("MAIL_FROM_ADDRESS", ""),
		MailFromName:      getEnv("MAIL_FROM_NAME", "Expo Bookings"),

		// Abuse protection
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.GatewayKeyID == "" || c.GatewayKeySecret == "" {
		errs = append(errs, errors.New("GATEWAY_KEY_ID and GATEWAY_KEY_SECRET are required"))
	}
	if c.StallHoldTTL <= 0 {
		errs = append(errs, errors.New("STALL_HOLD_TTL must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
