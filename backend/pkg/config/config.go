package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	apperrors "channelfeed/backend/pkg/errors"
)

// Store drivers
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverNeo4j  = "neo4j"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// Store
	StoreDriver string

	// MongoDB
	MongoURI             string
	MongoDatabase        string
	MongoUseTransactions bool

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Events
	NatsURL string // empty disables event publishing

	// Core behaviour
	RequestTimeout   time.Duration // deadline applied to every request's store calls
	SweepInterval    time.Duration // 0 disables the reconciliation sweeper
	FeedFanout       int           // concurrent per-relation fetches in a feed merge
	FeedDefaultOrder string        // newest or oldest
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", ""),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getEnv("MONGO_DATABASE", "channelfeed"),
		MongoUseTransactions: getEnvBool("MONGO_USE_TRANSACTIONS", false),
		Neo4jURI:             getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:            getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:        getEnv("NEO4J_PASSWORD", "password"),
		NatsURL:              getEnv("NATS_URL", ""),
		RequestTimeout:       getEnvDuration("REQUEST_TIMEOUT", 5*time.Second),
		SweepInterval:        getEnvDuration("SWEEP_INTERVAL", 10*time.Minute),
		FeedFanout:           getEnvInt("FEED_FANOUT", 8),
		FeedDefaultOrder:     strings.ToLower(getEnv("FEED_DEFAULT_ORDER", "newest")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return apperrors.NewConfigMissingRequired("MONGO_URI")
		}
		if c.MongoDatabase == "" {
			return apperrors.NewConfigMissingRequired("MONGO_DATABASE")
		}
	case DriverNeo4j:
		if c.Neo4jURI == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_URI")
		}
		if c.Neo4jUser == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_USER")
		}
		if c.Neo4jPassword == "" {
			return apperrors.NewConfigMissingRequired("NEO4J_PASSWORD")
		}
	default:
		return apperrors.NewConfigValidationFailed("STORE_DRIVER", fmt.Sprintf("unknown driver %q", c.StoreDriver))
	}
	if c.RequestTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("REQUEST_TIMEOUT", "must be positive")
	}
	if c.SweepInterval < 0 {
		return apperrors.NewConfigValidationFailed("SWEEP_INTERVAL", "must not be negative")
	}
	if c.FeedFanout < 1 {
		return apperrors.NewConfigValidationFailed("FEED_FANOUT", "must be at least 1")
	}
	if c.FeedDefaultOrder != "newest" && c.FeedDefaultOrder != "oldest" {
		return apperrors.NewConfigValidationFailed("FEED_DEFAULT_ORDER", "must be newest or oldest")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("30s") or plain seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
