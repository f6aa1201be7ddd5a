package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"creditledger/database"
	"creditledger/service"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// Ledger configuration
	StartingBalance     int64
	DailyRefreshAmount  int64
	RefreshInterval     time.Duration
	NewUserCredits      int64
	HistoryDefaultLimit int

	// HTTP configuration
	HTTPAddr      string
	WebhookSecret string
	CronToken     string // refresh and grant endpoints are disabled when empty

	// Optional infrastructure
	NATSServers string
	RedisURL    string

	// Refresh sweep
	RefreshSweepEnabled  bool
	RefreshSweepInterval time.Duration

	LogLevel    string
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// CreditPolicy returns the ledger tunables
func (c *Config) CreditPolicy() service.CreditPolicy {
	return service.CreditPolicy{
		StartingBalance:     c.StartingBalance,
		RefreshInterval:     c.RefreshInterval,
		DefaultHistoryLimit: c.HistoryDefaultLimit,
	}
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// load loads configuration from environment variables, reading a .env file first when present
func load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env file")
	}

	var err error
	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPAddr:      getEnvWithDefault("HTTP_ADDR", ":8080"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		CronToken:     os.Getenv("CRON_TOKEN"),

		NATSServers: os.Getenv("NATS_SERVERS"),
		RedisURL:    os.Getenv("REDIS_URL"),

		RefreshSweepEnabled: os.Getenv("REFRESH_SWEEP_ENABLED") == "true",

		LogLevel:    getEnvWithDefault("LOG_LEVEL", "info"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
	}

	if config.StartingBalance, err = parseInt64("STARTING_BALANCE", service.DefaultStartingBalance); err != nil {
		return nil, err
	}
	if config.DailyRefreshAmount, err = parseInt64("DAILY_REFRESH_AMOUNT", service.DefaultStartingBalance); err != nil {
		return nil, err
	}
	if config.NewUserCredits, err = parseInt64("NEW_USER_CREDITS", config.StartingBalance); err != nil {
		return nil, err
	}
	if config.RefreshInterval, err = parseDuration("REFRESH_INTERVAL", service.DefaultRefreshInterval); err != nil {
		return nil, err
	}
	if config.RefreshSweepInterval, err = parseDuration("REFRESH_SWEEP_INTERVAL", time.Hour); err != nil {
		return nil, err
	}
	limit, err := parseInt64("HISTORY_DEFAULT_LIMIT", service.DefaultHistoryLimit)
	if err != nil {
		return nil, err
	}
	config.HistoryDefaultLimit = int(limit)

	if config.StartingBalance < 0 || config.DailyRefreshAmount < 0 || config.NewUserCredits < 0 {
		return nil, fmt.Errorf("credit amounts must not be negative")
	}
	if config.RefreshInterval <= 0 {
		return nil, fmt.Errorf("REFRESH_INTERVAL must be positive")
	}
	if config.RefreshSweepInterval <= 0 {
		return nil, fmt.Errorf("REFRESH_SWEEP_INTERVAL must be positive")
	}

	if config.Environment != "test" {
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	}

	return config, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt64(key string, defaultValue int64) (int64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func parseDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

// SetTestConfig sets a custom config instance for testing
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		StartingBalance:      service.DefaultStartingBalance,
		DailyRefreshAmount:   service.DefaultStartingBalance,
		RefreshInterval:      service.DefaultRefreshInterval,
		NewUserCredits:       service.DefaultStartingBalance,
		HistoryDefaultLimit:  service.DefaultHistoryLimit,
		HTTPAddr:             ":0",
		RefreshSweepInterval: time.Hour,
		LogLevel:             "debug",
		Environment:          "test",
	}
}
