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
	Env      string
	Port     string
	LogLevel string

	DatabaseURL    string
	SessionBackend string // "memory" or "postgres"
	SessionTTL     time.Duration

	LLMProvider      string // "mock" or "openai"
	LLMAPIKey        string
	LLMBaseURL       string
	LLMModel         string
	LLMTimeout       time.Duration
	LLMMaxConcurrent int

	MaxQuestions int

	JWTSecret string

	TelegramToken string
	DoctorChatID  int64
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "production"),
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		SessionTTL:     getDuration("SESSION_TTL", 30*time.Minute),

		LLMProvider:      strings.ToLower(getEnv("LLM_PROVIDER", "mock")),
		LLMAPIKey:        os.Getenv("LLM_API_KEY"),
		LLMBaseURL:       getEnv("LLM_BASE_URL", "https://api.deepseek.com/v1"),
		LLMModel:         getEnv("LLM_MODEL", "deepseek-chat"),
		LLMTimeout:       getDuration("LLM_TIMEOUT", 30*time.Second),
		LLMMaxConcurrent: getInt("LLM_MAX_CONCURRENT", 8),

		MaxQuestions: getInt("SCREENING_MAX_QUESTIONS", 20),

		JWTSecret: os.Getenv("JWT_SECRET"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DoctorChatID:  getInt64("DOCTOR_CHAT_ID", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.SessionBackend {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres session backend")
		}
	default:
		return fmt.Errorf("unknown SESSION_BACKEND %q", c.SessionBackend)
	}

	switch c.LLMProvider {
	case "mock":
	case "openai":
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY is required when LLM_PROVIDER=openai")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.MaxQuestions < 1 {
		return fmt.Errorf("SCREENING_MAX_QUESTIONS must be positive, got %d", c.MaxQuestions)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.LLMMaxConcurrent < 1 {
		c.LLMMaxConcurrent = 1
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// DoctorReportsEnabled reports whether see-doctor results are forwarded to a doctor chat.
func (c *Config) DoctorReportsEnabled() bool {
	return c.TelegramToken != "" && c.DoctorChatID != 0
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func getInt64(key string, def int64) int64 {
	if v, err := strconv.ParseInt(os.Getenv(key), 10, 64); err == nil {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
