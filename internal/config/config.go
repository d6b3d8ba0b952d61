package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds runtime tunables read from the environment. Database
// credentials are read separately by the db package.
type Config struct {
	HTTPAddr    string
	AMQPURL     string
	NotifyQueue string

	EmptyDeviceBackoff time.Duration // retry interval when a campaign finds no ready device
	TickFailureBackoff time.Duration // retry interval after a tick panics
	RecoveryDelay      time.Duration // wait after boot before resuming campaigns

	DeviceInactivityTimeout time.Duration
	QRTokenTTL              time.Duration
	ReclaimGrace            time.Duration

	SimulatorFailureRate float64
}

// Load builds the config from environment variables with defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		AMQPURL:     getEnv("AMQP_URL", ""),
		NotifyQueue: getEnv("NOTIFY_QUEUE", "user_events"),

		EmptyDeviceBackoff: getEnvSeconds("EMPTY_DEVICE_BACKOFF_SECONDS", 30),
		TickFailureBackoff: getEnvSeconds("TICK_FAILURE_BACKOFF_SECONDS", 60),
		RecoveryDelay:      getEnvSeconds("RECOVERY_DELAY_SECONDS", 5),

		DeviceInactivityTimeout: getEnvSeconds("DEVICE_INACTIVITY_SECONDS", 3600),
		QRTokenTTL:              getEnvSeconds("QR_TOKEN_TTL_SECONDS", 25),
		ReclaimGrace:            getEnvSeconds("RECLAIM_GRACE_SECONDS", 30),

		SimulatorFailureRate: getEnvFloat("SIMULATOR_FAILURE_RATE", 0.1),
	}
}

// getEnv gets an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n >= 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(defaultSeconds) * time.Second
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
