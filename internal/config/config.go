package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	BaseURL    string
	LogLevel   string

	DB struct {
		DSN string
	}

	Session struct {
		Secret      string
		IdleTimeout time.Duration
		SweepSpec   string
	}

	Calendar struct {
		Location          *time.Location
		WeekStart         time.Weekday
		SnapMinutes       int
		PixelsPerMinute   float64
		AgendaHorizonDays int
	}

	Prefs struct {
		Backend string
		Path    string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	PrometheusEnabled bool
	TrustedProxies    []string

	// Warnings are non-fatal problems found while loading.
	Warnings []string
}

const (
	PrefsPostgres = "postgres"
	PrefsRedis    = "redis"
	PrefsFile     = "file"
	PrefsMemory   = "memory"
)

// Load reads configuration from the environment. A .env file in the working
// directory is read first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	cfg.ListenAddr = getenvDefault("APP_LISTEN_ADDR", ":8080")
	cfg.BaseURL = getenvDefault("APP_BASE_URL", "http://localhost:8080")
	cfg.LogLevel = getenvDefault("APP_LOG_LEVEL", "info")
	cfg.DB.DSN = os.Getenv("APP_DB_DSN")

	if cfg.DB.DSN == "" {
		host := os.Getenv("APP_DB_HOST")
		name := os.Getenv("APP_DB_NAME")
		user := os.Getenv("APP_DB_USER")
		password := os.Getenv("APP_DB_PASSWORD")
		port := getenvDefault("APP_DB_PORT", "5432")
		sslmode := getenvDefault("APP_DB_SSLMODE", "disable")

		if host != "" && name != "" && user != "" && password != "" {
			cfg.DB.DSN = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, password, host, port, name, sslmode)
		}
	}

	cfg.Session.Secret = os.Getenv("APP_SESSION_SECRET")
	cfg.PrometheusEnabled = getenvBool("APP_PROMETHEUS_ENDPOINT_ENABLED", false)
	cfg.TrustedProxies = getenvList("APP_TRUSTED_PROXIES")

	var err error
	if cfg.Session.IdleTimeout, err = getenvDuration("APP_SESSION_IDLE_TIMEOUT", 30*time.Minute); err != nil {
		return nil, err
	}
	cfg.Session.SweepSpec = getenvDefault("APP_SESSION_SWEEP", "@every 5m")

	tz := getenvDefault("APP_TIMEZONE", "Local")
	if cfg.Calendar.Location, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("APP_TIMEZONE %q: %w", tz, err)
	}
	if cfg.Calendar.WeekStart, err = parseWeekStart(getenvDefault("APP_WEEK_START", "sunday")); err != nil {
		return nil, err
	}
	if cfg.Calendar.SnapMinutes, err = getenvInt("APP_SNAP_MINUTES", 15); err != nil {
		return nil, err
	}
	if cfg.Calendar.SnapMinutes <= 0 || (24*60)%cfg.Calendar.SnapMinutes != 0 {
		return nil, fmt.Errorf("APP_SNAP_MINUTES must divide a day evenly (got %d)", cfg.Calendar.SnapMinutes)
	}
	if cfg.Calendar.PixelsPerMinute, err = getenvFloat("APP_PIXELS_PER_MINUTE", 1.0); err != nil {
		return nil, err
	}
	if cfg.Calendar.PixelsPerMinute <= 0 {
		return nil, fmt.Errorf("APP_PIXELS_PER_MINUTE must be positive (got %v)", cfg.Calendar.PixelsPerMinute)
	}
	if cfg.Calendar.AgendaHorizonDays, err = getenvInt("APP_AGENDA_HORIZON_DAYS", 30); err != nil {
		return nil, err
	}
	if cfg.Calendar.AgendaHorizonDays <= 0 {
		return nil, fmt.Errorf("APP_AGENDA_HORIZON_DAYS must be positive (got %d)", cfg.Calendar.AgendaHorizonDays)
	}

	cfg.Prefs.Backend = strings.ToLower(getenvDefault("APP_PREFS_BACKEND", PrefsPostgres))
	cfg.Prefs.Path = getenvDefault("APP_PREFS_PATH", "studycal-settings.yaml")
	cfg.Redis.Addr = getenvDefault("APP_REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = os.Getenv("APP_REDIS_PASSWORD")
	if cfg.Redis.DB, err = getenvInt("APP_REDIS_DB", 0); err != nil {
		return nil, err
	}

	if cfg.DB.DSN == "" {
		return nil, errors.New("APP_DB_DSN is required (or set APP_DB_HOST, APP_DB_NAME, APP_DB_USER, and APP_DB_PASSWORD)")
	}
	switch cfg.Prefs.Backend {
	case PrefsPostgres, PrefsRedis, PrefsFile, PrefsMemory:
	default:
		return nil, fmt.Errorf("APP_PREFS_BACKEND must be one of postgres, redis, file, memory (got %q)", cfg.Prefs.Backend)
	}
	if cfg.Session.Secret == "" {
		return nil, errors.New("APP_SESSION_SECRET is required")
	}
	if len(cfg.Session.Secret) < 32 {
		return nil, fmt.Errorf("APP_SESSION_SECRET must be at least 32 characters long (got %d)", len(cfg.Session.Secret))
	}

	if len(cfg.TrustedProxies) == 0 {
		cfg.Warnings = append(cfg.Warnings, "no APP_TRUSTED_PROXIES configured; all proxies are trusted, not recommended for public environments")
	}
	if cfg.Prefs.Backend == PrefsMemory {
		cfg.Warnings = append(cfg.Warnings, "APP_PREFS_BACKEND=memory; calendar preferences are lost on restart")
	}

	return cfg, nil
}

func parseWeekStart(v string) (time.Weekday, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "sunday", "sun", "0":
		return time.Sunday, nil
	case "monday", "mon", "1":
		return time.Monday, nil
	}
	return time.Sunday, fmt.Errorf("APP_WEEK_START must be sunday or monday (got %q)", v)
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getenvList(key string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, item := range strings.Split(v, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return nil
}
