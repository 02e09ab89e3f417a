package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	Port        string
	Environment string

	// Store selection: memory, sqlite, postgres
	StoreDriver string
	SQLitePath  string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string

	// MongoDB notification archive (optional)
	MongoURI string

	// Quote provider
	QuoteAPIURL   string
	QuoteTimeout  time.Duration
	QuoteAPILimit int

	// Scheduler
	SchedulerEnabled    bool
	PriceCheckInterval  time.Duration
	HealthCheckInterval time.Duration
	QuotaResetInterval  time.Duration
	BatchSize           int
	BatchDelay          time.Duration

	// Alerting: level (fire every breaching cycle) or edge (fire on
	// transition into breach)
	AlertPolicy string
}

// LoadConfig loads environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreDriver: getEnv("STORE_DRIVER", "memory"),
		SQLitePath:  getEnv("SQLITE_PATH", "data/pricewatch.db"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "pricewatch_db"),

		MongoURI: getEnv("MONGODB_URI", ""),

		QuoteAPIURL:   getEnv("QUOTE_API_URL", "https://iboard-query.ssi.com.vn/v2/stock/group/"),
		QuoteTimeout:  getEnvDuration("QUOTE_TIMEOUT", 10*time.Second),
		QuoteAPILimit: getEnvInt("QUOTE_API_LIMIT", 500),

		SchedulerEnabled:    getEnvBool("SCHEDULER_ENABLED", true),
		PriceCheckInterval:  getEnvDuration("PRICE_CHECK_INTERVAL", 30*time.Second),
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", 5*time.Minute),
		QuotaResetInterval:  getEnvDuration("QUOTA_RESET_INTERVAL", time.Hour),
		BatchSize:           getEnvInt("BATCH_SIZE", 5),
		BatchDelay:          getEnvDuration("BATCH_DELAY", time.Second),

		AlertPolicy: getEnv("ALERT_POLICY", "level"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges on the typed settings
func (c *Config) Validate() error {
	if c.PriceCheckInterval <= 0 {
		return fmt.Errorf("PRICE_CHECK_INTERVAL must be positive, got %v", c.PriceCheckInterval)
	}
	if c.HealthCheckInterval <= 0 {
		return fmt.Errorf("HEALTH_CHECK_INTERVAL must be positive, got %v", c.HealthCheckInterval)
	}
	if c.QuotaResetInterval <= 0 {
		return fmt.Errorf("QUOTA_RESET_INTERVAL must be positive, got %v", c.QuotaResetInterval)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("BATCH_SIZE must be at least 1, got %d", c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("BATCH_DELAY must not be negative, got %v", c.BatchDelay)
	}
	if c.QuoteTimeout <= 0 {
		return fmt.Errorf("QUOTE_TIMEOUT must be positive, got %v", c.QuoteTimeout)
	}
	switch c.StoreDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("STORE_DRIVER must be memory, sqlite or postgres, got %q", c.StoreDriver)
	}
	switch c.AlertPolicy {
	case "level", "edge":
	default:
		return fmt.Errorf("ALERT_POLICY must be level or edge, got %q", c.AlertPolicy)
	}
	return nil
}

// PostgresDSN builds the connection string for the postgres store
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return b
}

// getEnvDuration gets a duration environment variable or returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid %s=%q, using default %v", key, value, defaultValue)
		return defaultValue
	}
	return d
}
