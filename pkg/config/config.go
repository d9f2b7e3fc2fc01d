package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read through this package and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External sources
	Finviz   FinvizConfig
	Yahoo    YahooConfig
	Telegram TelegramConfig

	// Advisor engine
	Engine EngineConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FinvizConfig holds Finviz screener configuration
type FinvizConfig struct {
	BaseURL     string
	PageSize    int
	MaxRows     int
	RatePerSec  float64
	HTTPTimeout time.Duration
}

// YahooConfig holds Yahoo Finance configuration
type YahooConfig struct {
	BaseURL     string
	HTTPTimeout time.Duration
	CacheTTL    time.Duration
}

// TelegramConfig holds Telegram bot configuration
type TelegramConfig struct {
	BotToken string
	Enabled  bool
}

// EngineConfig holds advisor cycle parameters
type EngineConfig struct {
	UniverseFile string
	TopN         int
	InitialFunds float64
	Schedule     string // cron expression for the daily cycle
}

// Load reads configuration from environment variables.
// This is the only function that calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8087"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Finviz: FinvizConfig{
			BaseURL:     getEnv("FINVIZ_BASE_URL", "https://finviz.com"),
			PageSize:    getEnvAsInt("FINVIZ_PAGE_SIZE", 20),
			MaxRows:     getEnvAsInt("FINVIZ_MAX_ROWS", 7540),
			RatePerSec:  getEnvAsFloat("FINVIZ_RATE_PER_SEC", 2.0),
			HTTPTimeout: getEnvAsDuration("FINVIZ_HTTP_TIMEOUT", "30s"),
		},

		Yahoo: YahooConfig{
			BaseURL:     getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			HTTPTimeout: getEnvAsDuration("YAHOO_HTTP_TIMEOUT", "15s"),
			CacheTTL:    getEnvAsDuration("YAHOO_CACHE_TTL", "20h"),
		},

		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			Enabled:  getEnvAsBool("TELEGRAM_ENABLED", false),
		},

		Engine: EngineConfig{
			UniverseFile: getEnv("UNIVERSE_FILE", "resources/whitelist.txt"),
			TopN:         getEnvAsInt("ADVISOR_TOP_N", 5),
			InitialFunds: getEnvAsFloat("ADVISOR_INITIAL_FUNDS", 100000),
			Schedule:     getEnv("ADVISOR_SCHEDULE", "0 0 21 * * MON-FRI"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Engine.TopN <= 0 {
		return fmt.Errorf("ADVISOR_TOP_N must be positive")
	}

	if c.Engine.InitialFunds <= 0 {
		return fmt.Errorf("ADVISOR_INITIAL_FUNDS must be positive")
	}

	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required when TELEGRAM_ENABLED=true")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
