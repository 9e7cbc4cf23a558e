package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env     string
	API     APIConfig
	Stream  StreamConfig
	Lock    LockConfig
	Checkin CheckinConfig
	Store   StoreConfig
	Log     LogConfig
}

type APIConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	BreakerMaxFail int
	BreakerTimeout time.Duration
}

type StreamConfig struct {
	WebSocketURL     string
	ReconnectBase    time.Duration
	ReconnectMax     time.Duration
	ReconnectRetries uint64
}

type LockConfig struct {
	TTL       time.Duration
	WarnAfter time.Duration
}

type CheckinConfig struct {
	BrokerURL    string
	PollInterval time.Duration
}

type StoreConfig struct {
	CredentialsPath string
}

type LogConfig struct {
	Level    string
	Mode     string
	Encoding string
}

func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	cfg := &Config{
		Env: getEnv("ENV", "development"),
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://localhost:8080/api/v1"),
			RequestTimeout: getEnvAsDuration("API_REQUEST_TIMEOUT", 15*time.Second),
			BreakerMaxFail: getEnvAsInt("API_BREAKER_MAX_FAILURES", 5),
			BreakerTimeout: getEnvAsDuration("API_BREAKER_TIMEOUT", 30*time.Second),
		},
		Stream: StreamConfig{
			WebSocketURL:     getEnv("STREAM_WS_URL", "ws://localhost:8080"),
			ReconnectBase:    getEnvAsDuration("STREAM_RECONNECT_BASE", 500*time.Millisecond),
			ReconnectMax:     getEnvAsDuration("STREAM_RECONNECT_MAX", 15*time.Second),
			ReconnectRetries: uint64(getEnvAsInt("STREAM_RECONNECT_RETRIES", 8)),
		},
		Lock: LockConfig{
			TTL:       getEnvAsDuration("SEAT_LOCK_TTL", 7*time.Minute),
			WarnAfter: getEnvAsDuration("SEAT_LOCK_WARN_AFTER", 6*time.Minute),
		},
		Checkin: CheckinConfig{
			BrokerURL:    getEnv("CHECKIN_BROKER_URL", "ws://localhost:8080/ws-stomp"),
			PollInterval: getEnvAsDuration("CHECKIN_POLL_INTERVAL", 100*time.Millisecond),
		},
		Store: StoreConfig{
			CredentialsPath: getEnv("CREDENTIALS_PATH", defaultCredentialsPath()),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Mode:     getEnv("LOG_MODE", "development"),
			Encoding: getEnv("LOG_ENCODING", "console"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base url is required")
	}

	if !strings.HasPrefix(c.Stream.WebSocketURL, "ws://") && !strings.HasPrefix(c.Stream.WebSocketURL, "wss://") {
		return fmt.Errorf("invalid websocket url: %s", c.Stream.WebSocketURL)
	}

	if c.Lock.TTL <= 0 {
		return fmt.Errorf("seat lock ttl must be positive")
	}

	if c.Lock.WarnAfter >= c.Lock.TTL {
		return fmt.Errorf("lock warn threshold must be below the lock ttl")
	}

	if c.Checkin.PollInterval <= 0 {
		return fmt.Errorf("checkin poll interval must be positive")
	}

	return nil
}

func defaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ticketflow-credentials.json"
	}
	return home + "/.ticketflow/credentials.json"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
