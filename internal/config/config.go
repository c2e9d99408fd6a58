package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Lesson backends
const (
	BackendFunctions = "functions"
	BackendOpenAI    = "openai"
	BackendMock      = "mock"
)

// Config represents the configuration of the service
type Config struct {
	LogMode string

	// Storage
	DBType       string // sqlite or postgres
	DatabasePath string // sqlite file
	DatabaseURL  string // postgres DSN

	HTTPAddr string

	// Lesson collaborators
	LessonBackend       string
	FunctionsURL        string
	FunctionsAPIKey     string
	OpenAIAPIKey        string
	OpenAIModel         string
	CollaboratorTimeout time.Duration
	RecentScoresLimit   int

	// How often live due counts are re-evaluated for time passing
	DueRefreshInterval time.Duration

	// Reminders
	TelegramToken         string
	TelegramChatID        int64
	NotificationStartHour int
	NotificationEndHour   int
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		LogMode:               "development",
		DBType:                "sqlite",
		DatabasePath:          "data/lingua.db",
		HTTPAddr:              ":8080",
		LessonBackend:         BackendMock,
		OpenAIModel:           "gpt-4o-mini",
		CollaboratorTimeout:   30 * time.Second,
		RecentScoresLimit:     50,
		DueRefreshInterval:    time.Minute,
		NotificationStartHour: 8,
		NotificationEndHour:   22,
	}
}

// Load reads .env files (if any) and applies environment overrides on top of Default
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %v", f, err)
		}
	}

	cfg := Default()
	cfg.LogMode = str("LOG_MODE", cfg.LogMode)
	cfg.DBType = strings.ToLower(str("DB_TYPE", cfg.DBType))
	cfg.DatabasePath = str("DATABASE_PATH", cfg.DatabasePath)
	cfg.DatabaseURL = str("DATABASE_URL", cfg.DatabaseURL)
	cfg.HTTPAddr = str("HTTP_ADDR", cfg.HTTPAddr)
	cfg.LessonBackend = strings.ToLower(str("LESSON_BACKEND", cfg.LessonBackend))
	cfg.FunctionsURL = str("FUNCTIONS_URL", cfg.FunctionsURL)
	cfg.FunctionsAPIKey = str("FUNCTIONS_API_KEY", cfg.FunctionsAPIKey)
	cfg.OpenAIAPIKey = str("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = str("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.TelegramToken = str("TELEGRAM_BOT_TOKEN", cfg.TelegramToken)

	var err error
	if cfg.CollaboratorTimeout, err = duration("COLLABORATOR_TIMEOUT", cfg.CollaboratorTimeout); err != nil {
		return nil, err
	}
	if cfg.DueRefreshInterval, err = duration("DUE_REFRESH_INTERVAL", cfg.DueRefreshInterval); err != nil {
		return nil, err
	}
	if cfg.RecentScoresLimit, err = integer("RECENT_SCORES_LIMIT", cfg.RecentScoresLimit); err != nil {
		return nil, err
	}
	if cfg.NotificationStartHour, err = integer("NOTIFICATION_START_HOUR", cfg.NotificationStartHour); err != nil {
		return nil, err
	}
	if cfg.NotificationEndHour, err = integer("NOTIFICATION_END_HOUR", cfg.NotificationEndHour); err != nil {
		return nil, err
	}
	if v := str("TELEGRAM_CHAT_ID", ""); v != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(v, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %v", v, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects inconsistent settings
func (c *Config) Validate() error {
	switch c.DBType {
	case "sqlite":
		if c.DatabasePath == "" {
			return fmt.Errorf("DATABASE_PATH is required for sqlite")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.DBType)
	}

	switch c.LessonBackend {
	case BackendFunctions:
		if c.FunctionsURL == "" {
			return fmt.Errorf("FUNCTIONS_URL is required for the functions backend")
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai backend")
		}
	case BackendMock:
	default:
		return fmt.Errorf("unsupported LESSON_BACKEND %q", c.LessonBackend)
	}

	if c.NotificationStartHour < 0 || c.NotificationStartHour > 23 ||
		c.NotificationEndHour < 0 || c.NotificationEndHour > 23 {
		return fmt.Errorf("notification hours must be within 0-23")
	}
	if c.RecentScoresLimit < 0 {
		return fmt.Errorf("RECENT_SCORES_LIMIT must not be negative")
	}
	if c.DueRefreshInterval <= 0 {
		return fmt.Errorf("DUE_REFRESH_INTERVAL must be positive")
	}
	return nil
}

// RemindersEnabled reports whether Telegram reminders are configured
func (c *Config) RemindersEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

func str(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func integer(name string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %v", name, v, err)
	}
	return i, nil
}

func duration(name string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s %q: %v", name, v, err)
	}
	return d, nil
}
