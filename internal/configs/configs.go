/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures the companion client by reading operating system environment variables,
including the running environment, the backend server URL, the on-device state file path,
chat connectivity tunables, and the embedded development server settings.
*/
package configs

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig contains all configuration parameters required for the companion client to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Settings
	Environment string
	ServerURL   string
	StatePath   string

	// Chat Connectivity Settings
	MaxMessageLength int
	ReconnectDelay   time.Duration
	PollInterval     time.Duration
	MaxRetries       int
	FloodInterval    time.Duration
	HistoryLimit     int

	// DevFallback enables the offline developer credential pair (test/test).
	// It can only be enabled in the development environment.
	DevFallback bool

	// Embedded Development Server Settings
	DevListen string
	JWTSecret string
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.ServerURL = strings.TrimRight(os.Getenv("SERVER_URL"), "/")
	if cfg.ServerURL == "" {
		cfg.ServerURL = "http://localhost:8080"
	}
	if _, err := url.ParseRequestURI(cfg.ServerURL); err != nil {
		return nil, fmt.Errorf("invalid SERVER_URL environment variable: %w", err)
	}

	cfg.StatePath = os.Getenv("STATE_PATH")
	if cfg.StatePath == "" {
		cfg.StatePath = "companion_state.json"
	}

	// --- Chat Connectivity Settings ---
	var err error

	cfg.MaxMessageLength, err = intFromEnv("CHAT_MAX_MESSAGE_LENGTH", 200)
	if err != nil {
		return nil, err
	}
	if cfg.MaxMessageLength < 1 {
		return nil, fmt.Errorf("CHAT_MAX_MESSAGE_LENGTH must be positive, got %d", cfg.MaxMessageLength)
	}

	cfg.ReconnectDelay, err = durationFromEnv("CHAT_RECONNECT_DELAY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.PollInterval, err = durationFromEnv("CHAT_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("CHAT_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}

	cfg.MaxRetries, err = intFromEnv("CHAT_MAX_RETRIES", 5)
	if err != nil {
		return nil, err
	}

	cfg.FloodInterval, err = durationFromEnv("CHAT_FLOOD_INTERVAL", 3*time.Second)
	if err != nil {
		return nil, err
	}

	cfg.HistoryLimit, err = intFromEnv("CHAT_HISTORY_LIMIT", 50)
	if err != nil {
		return nil, err
	}

	// --- Developer Fallback ---
	// The offline credential pair never ships outside development builds.
	devFallback := os.Getenv("DEV_FALLBACK")
	if cfg.Environment == "development" {
		cfg.DevFallback = devFallback != "false"
	} else {
		if devFallback == "true" {
			return nil, fmt.Errorf("DEV_FALLBACK cannot be enabled in %s environment", cfg.Environment)
		}
		cfg.DevFallback = false
	}

	// --- Embedded Development Server Settings ---
	cfg.DevListen = os.Getenv("DEV_LISTEN")
	if cfg.DevListen != "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("DEV_LISTEN cannot be set in %s environment", cfg.Environment)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = "your_default_insecure_secret_key_change_me"
	}

	return cfg, nil
}

// ChatWebSocketURL derives the chat WebSocket endpoint from the configured server URL.
func (c *AppConfig) ChatWebSocketURL() string {
	wsURL := c.ServerURL
	wsURL = strings.Replace(wsURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	return wsURL + "/chat"
}

// intFromEnv reads an integer environment variable, falling back to def when unset.
func intFromEnv(name string, def int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}

	return value, nil
}

// durationFromEnv reads a duration environment variable (e.g. "5s"), falling back to def when unset.
func durationFromEnv(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}

	return value, nil
}
