package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Engine
	Engine EngineConfig

	// External collaborators
	MarketData MarketDataConfig
	Feed       FeedConfig
	AI         AIConfig
	Calendar   CalendarConfig
	Analysis   AnalysisConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
	MetricsPort    string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// EngineConfig holds scan/lifecycle runtime settings
type EngineConfig struct {
	ConfigPath   string        // engine YAML (weights, sessions, thresholds)
	Store        string        // postgres | memory
	Symbols      []string      // instruments scanned by the scheduler
	ScanInterval time.Duration // per-symbol scan period
	LayerTimeout time.Duration // per-evaluator deadline
	MaxHolding   time.Duration // signal expiry
	StopPolicy   string        // breakeven | original
	AnalysisTTL  time.Duration // cached analysis lifetime
}

// MarketDataConfig holds the OHLC/quote REST provider settings
type MarketDataConfig struct {
	BaseURL string
	APIKey  string
}

// FeedConfig holds realtime price feed settings
type FeedConfig struct {
	WebSocketURL string
	PollInterval time.Duration
	PollRate     int // requests per second for the REST poller
}

// AIConfig holds the AI confidence scorer settings
type AIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	RateLimit int // requests per minute
}

// CalendarConfig holds economic-calendar settings
type CalendarConfig struct {
	URL            string
	BlackoutWindow time.Duration
}

// AnalysisConfig holds the remote layer-analysis service settings
type AnalysisConfig struct {
	BaseURL string
	APIKey  string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "confluence"),
			User:            getEnv("DB_USER", "confluence"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Engine: EngineConfig{
			ConfigPath:   getEnv("ENGINE_CONFIG", ""),
			Store:        getEnv("SIGNAL_STORE", "postgres"),
			Symbols:      getEnvAsList("SCAN_SYMBOLS", "EURUSD,GBPUSD,USDJPY,XAUUSD"),
			ScanInterval: getEnvAsDuration("SCAN_INTERVAL", "5m"),
			LayerTimeout: getEnvAsDuration("LAYER_TIMEOUT", "5s"),
			MaxHolding:   getEnvAsDuration("SIGNAL_MAX_HOLDING", "72h"),
			StopPolicy:   getEnv("STOP_POLICY", "breakeven"),
			AnalysisTTL:  getEnvAsDuration("ANALYSIS_TTL", "30s"),
		},

		MarketData: MarketDataConfig{
			BaseURL: getEnv("MARKET_DATA_URL", "http://localhost:9100"),
			APIKey:  getEnv("MARKET_DATA_API_KEY", ""),
		},

		Feed: FeedConfig{
			WebSocketURL: getEnv("PRICE_FEED_WS_URL", ""),
			PollInterval: getEnvAsDuration("PRICE_POLL_INTERVAL", "5s"),
			PollRate:     getEnvAsInt("PRICE_POLL_RATE", 5),
		},

		AI: AIConfig{
			BaseURL:   getEnv("AI_SCORER_URL", ""),
			APIKey:    getEnv("AI_SCORER_API_KEY", ""),
			Model:     getEnv("AI_SCORER_MODEL", "gemini-1.5-flash"),
			RateLimit: getEnvAsInt("AI_SCORER_RATE_PER_MIN", 30),
		},

		Calendar: CalendarConfig{
			URL:            getEnv("CALENDAR_URL", "https://www.forexfactory.com/calendar"),
			BlackoutWindow: getEnvAsDuration("NEWS_BLACKOUT_WINDOW", "30m"),
		},

		Analysis: AnalysisConfig{
			BaseURL: getEnv("ANALYSIS_SERVICE_URL", ""),
			APIKey:  getEnv("ANALYSIS_SERVICE_API_KEY", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		MetricsPort:    getEnv("METRICS_PORT", "9090"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required unless signals live in memory
	if c.Engine.Store != "memory" && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Engine.Store != "postgres" && c.Engine.Store != "memory" {
		return fmt.Errorf("SIGNAL_STORE must be one of: postgres, memory")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Engine.StopPolicy != "breakeven" && c.Engine.StopPolicy != "original" {
		return fmt.Errorf("STOP_POLICY must be one of: breakeven, original")
	}

	if c.Engine.ScanInterval <= 0 || c.Engine.LayerTimeout <= 0 || c.Engine.MaxHolding <= 0 {
		return fmt.Errorf("SCAN_INTERVAL, LAYER_TIMEOUT and SIGNAL_MAX_HOLDING must be positive")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
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
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma separated value, dropping blanks
func getEnvAsList(key string, defaultValue string) []string {
	raw := getEnv(key, defaultValue)

	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
