// Package config loads server configuration from command-line flags,
// environment variables and an optional .env file.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Storage backends.
const (
	BackendSQLite   = "sqlite"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	App       AppConfig
	Logger    LoggerConfig
	Server    ServerConfig
	Storage   StorageConfig
	Tracking  TrackingConfig
	Events    EventsConfig
	RateLimit RateLimitConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
	TrustProxy   bool // take the client address from X-Forwarded-For and X-Real-IP
}

// StorageConfig selects and locates the progress store.
type StorageConfig struct {
	Backend     string
	DataPath    string // directory for sqlite and badger files
	PostgresURL string
}

// TrackingConfig tunes segment recording and the session auto-saver.
type TrackingConfig struct {
	MinSegment         float64       // seconds; shorter steps are jitter
	MaxSegment         float64       // seconds; longer steps are seeks
	AutoSaveInterval   time.Duration // 0 disables periodic saves
	SessionIdleTimeout time.Duration
}

// EventsConfig configures the NATS publisher. An empty URL disables it.
type EventsConfig struct {
	NATSURL string
	Stream  string
}

// RateLimitConfig limits mutating API calls per client IP.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// LoadConfig reads configuration with precedence:
// 1. Command-line flags.
// 2. Environment variables.
// 3. .env file.
// 4. Defaults.
func LoadConfig() (*Config, error) {
	return Load(flag.CommandLine, os.Args[1:])
}

// Load is LoadConfig against an explicit flag set, for tests and tools.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")

	port := fs.String("port", "", "Server port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s, SSE streams are exempt)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	corsOrigins := fs.String("cors-origins", "", "Comma separated allowed origins (default: *)")
	trustProxy := fs.String("trust-proxy", "", "Trust client address headers from a reverse proxy (default: false)")

	backend := fs.String("storage", "", "Progress store: sqlite, badger or postgres (default: sqlite)")
	dataPath := fs.String("data-path", "", "Directory for embedded stores (default: ~/.watchtrack)")
	postgresURL := fs.String("postgres-url", "", "Postgres connection string")

	minSegment := fs.String("min-segment", "", "Smallest credited position step in seconds (default: 0.5)")
	maxSegment := fs.String("max-segment", "", "Position step treated as a seek, in seconds (default: 2)")
	autoSave := fs.String("autosave-interval", "", "Session auto-save interval (default: 5s)")
	idleSession := fs.String("session-idle-timeout", "", "Evict idle tracking sessions after (default: 30m)")

	natsURL := fs.String("nats-url", "", "NATS server URL, empty disables event publishing")
	natsStream := fs.String("nats-stream", "", "JetStream stream name (default: WATCH)")

	rpm := fs.String("rate-limit-rpm", "", "Mutating requests per minute per IP (default: 600)")
	burst := fs.String("rate-limit-burst", "", "Rate limiter burst (default: 60)")

	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// A missing .env file is fine.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "SERVER_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue(*corsOrigins, "CORS_ORIGINS", "*")),
			TrustProxy:  getBoolConfigValue(*trustProxy, "TRUST_PROXY", false),
		},
		Storage: StorageConfig{
			Backend:     strings.ToLower(getConfigValue(*backend, "STORAGE_BACKEND", BackendSQLite)),
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
			PostgresURL: getConfigValue(*postgresURL, "POSTGRES_URL", ""),
		},
		Tracking: TrackingConfig{
			MinSegment: getFloatConfigValue(*minSegment, "TRACKING_MIN_SEGMENT", 0.5),
			MaxSegment: getFloatConfigValue(*maxSegment, "TRACKING_MAX_SEGMENT", 2.0),
		},
		Events: EventsConfig{
			NATSURL: getConfigValue(*natsURL, "NATS_URL", ""),
			Stream:  getConfigValue(*natsStream, "NATS_STREAM", "WATCH"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getIntConfigValue(*rpm, "RATE_LIMIT_RPM", 600),
			Burst:             getIntConfigValue(*burst, "RATE_LIMIT_BURST", 60),
		},
	}

	durations := []struct {
		flagValue, envKey, def string
		dst                    *time.Duration
	}{
		{*readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{*writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{*idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{*autoSave, "TRACKING_AUTOSAVE_INTERVAL", "5s", &cfg.Tracking.AutoSaveInterval},
		{*idleSession, "TRACKING_SESSION_IDLE_TIMEOUT", "30m", &cfg.Tracking.SessionIdleTimeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.Storage.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required values are present and consistent.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	case "":
		return errors.New("ENV is required")
	default:
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}

	if c.Tracking.MinSegment <= 0 {
		return fmt.Errorf("min segment must be positive, got %v", c.Tracking.MinSegment)
	}
	if c.Tracking.MaxSegment <= c.Tracking.MinSegment {
		return fmt.Errorf("max segment (%v) must exceed min segment (%v)", c.Tracking.MaxSegment, c.Tracking.MinSegment)
	}
	if c.Tracking.AutoSaveInterval < 0 {
		return errors.New("autosave interval cannot be negative")
	}

	if c.RateLimit.RequestsPerMinute <= 0 || c.RateLimit.Burst <= 0 {
		return errors.New("rate limit values must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production.
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func (s *StorageConfig) validate() error {
	switch s.Backend {
	case BackendSQLite, BackendBadger:
		if s.DataPath == "" {
			return errors.New("data path cannot be empty for embedded storage")
		}
	case BackendPostgres:
		if s.PostgresURL == "" {
			return errors.New("POSTGRES_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be sqlite, badger, or postgres)", s.Backend)
	}
	return nil
}

// Resolve expands the data path and validates the storage settings. Tools
// that build a StorageConfig from their own flags call it before opening a
// store.
func (s *StorageConfig) Resolve() error {
	s.Backend = strings.ToLower(s.Backend)
	if err := s.expandDataPath(); err != nil {
		return fmt.Errorf("invalid data path: %w", err)
	}
	return s.validate()
}

// expandDataPath expands ~ and makes the path absolute, defaulting to
// ~/.watchtrack.
func (s *StorageConfig) expandDataPath() error {
	if s.Backend == BackendPostgres && s.DataPath == "" {
		return nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	expanded, err := expandPath(s.DataPath, filepath.Join(home, ".watchtrack"))
	if err != nil {
		return err
	}
	s.DataPath = expanded
	return nil
}

// expandPath expands ~ and makes the path absolute. An empty path yields
// defaultPath unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// getConfigValue returns the flag value, else the env var, else the default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// getIntConfigValue is getConfigValue for integers. Unparseable input yields the default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return n
}

// getBoolConfigValue is getConfigValue for booleans. Unparseable input yields the default.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return b
}

// getFloatConfigValue is getConfigValue for floats. Unparseable input yields the default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadEnvFile sets variables from a KEY=value file without overriding the
// process environment. Lines starting with # are comments.
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}
