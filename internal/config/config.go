// Package config loads the relay's runtime configuration from environment
// variables with flag overrides.
package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envVarListenAddr      = "WARP_RELAY_LISTEN_ADDR"
	envVarMode            = "WARP_RELAY_MODE"
	envVarLogFormat       = "WARP_RELAY_LOG_FORMAT"
	envVarLogLevel        = "WARP_RELAY_LOG_LEVEL"
	envVarShutdownTimeout = "WARP_RELAY_SHUTDOWN_TIMEOUT"

	// Signaling channel hardening.
	envVarMaxMessageBytes      = "MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxMessagesPerSecond = "MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarSendQueueLength      = "SEND_QUEUE_LENGTH"
	envVarWSPingInterval       = "WS_PING_INTERVAL"
	envVarWSIdleTimeout        = "WS_IDLE_TIMEOUT"

	// Stats/logs collaborator.
	envVarServerLogBuffer = "SERVER_LOG_BUFFER"
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

const (
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultShutdownTimeout = 15 * time.Second

	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 50
	DefaultSendQueueLength      = 64
	DefaultWSPingInterval       = 20 * time.Second
	DefaultWSIdleTimeout        = 60 * time.Second

	DefaultServerLogBuffer = 1000
)

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// MaxMessageBytes bounds a single inbound signaling message.
	MaxMessageBytes int64
	// MaxMessagesPerSecond is the per-connection inbound envelope rate.
	MaxMessagesPerSecond int
	// SendQueueLength is the per-connection outbound queue; a full queue
	// drops the message (delivery is best-effort).
	SendQueueLength int
	WSPingInterval  time.Duration
	WSIdleTimeout   time.Duration

	// ServerLogBuffer is the capacity of the in-memory log ring served by
	// get-logs.
	ServerLogBuffer int
}

// Load builds a Config from the environment and the given command-line
// arguments. Flags win over environment variables. A .env file in the working
// directory is honored when present.
func Load(args []string) (Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:      envOrDefault(lookup, envVarListenAddr, DefaultListenAddr),
		ShutdownTimeout: DefaultShutdownTimeout,
	}

	mode, err := parseMode(envOrDefault(lookup, envVarMode, string(ModeDev)))
	if err != nil {
		return Config{}, err
	}
	cfg.Mode = mode

	format, err := parseLogFormat(envOrDefault(lookup, envVarLogFormat, defaultLogFormat(mode)))
	if err != nil {
		return Config{}, err
	}
	cfg.LogFormat = format

	level, err := parseLogLevel(envOrDefault(lookup, envVarLogLevel, "info"))
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if cfg.ShutdownTimeout, err = envDurationOrDefault(lookup, envVarShutdownTimeout, DefaultShutdownTimeout); err != nil {
		return Config{}, err
	}

	maxBytes, err := envIntOrDefault(lookup, envVarMaxMessageBytes, int(DefaultMaxMessageBytes))
	if err != nil {
		return Config{}, err
	}
	cfg.MaxMessageBytes = int64(maxBytes)

	if cfg.MaxMessagesPerSecond, err = envIntOrDefault(lookup, envVarMaxMessagesPerSecond, DefaultMaxMessagesPerSecond); err != nil {
		return Config{}, err
	}
	if cfg.SendQueueLength, err = envIntOrDefault(lookup, envVarSendQueueLength, DefaultSendQueueLength); err != nil {
		return Config{}, err
	}
	if cfg.WSPingInterval, err = envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval); err != nil {
		return Config{}, err
	}
	if cfg.WSIdleTimeout, err = envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ServerLogBuffer, err = envIntOrDefault(lookup, envVarServerLogBuffer, DefaultServerLogBuffer); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("warp-signaling-relay", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "TCP listen address")
	modeFlag := fs.String("mode", string(cfg.Mode), "run mode: dev or prod")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if mode, err := parseMode(*modeFlag); err != nil {
		return Config{}, err
	} else {
		cfg.Mode = mode
	}

	return cfg.withValidatedLimits()
}

func (c Config) withValidatedLimits() (Config, error) {
	if c.MaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", envVarMaxMessageBytes, c.MaxMessageBytes)
	}
	if c.MaxMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", envVarMaxMessagesPerSecond, c.MaxMessagesPerSecond)
	}
	if c.SendQueueLength <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", envVarSendQueueLength, c.SendQueueLength)
	}
	if c.ServerLogBuffer <= 0 {
		return Config{}, fmt.Errorf("%s must be positive, got %d", envVarServerLogBuffer, c.ServerLogBuffer)
	}
	return c, nil
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development", "":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("unsupported mode %q (want dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported log format %q (want text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", raw)
	}
}

func defaultLogFormat(mode Mode) string {
	if mode == ModeProd {
		return string(LogFormatJSON)
	}
	return string(LogFormatText)
}

// NewLogger builds the process logger from the configured format and level.
func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}
	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}
