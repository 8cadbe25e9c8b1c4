package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "channelfeed/backend/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"STORE_DRIVER", "REQUEST_TIMEOUT", "SWEEP_INTERVAL", "FEED_FANOUT", "FEED_DEFAULT_ORDER", "NATS_URL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 8, cfg.FeedFanout)
	assert.Equal(t, "newest", cfg.FeedDefaultOrder)
	assert.Empty(t, cfg.NatsURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Mongo")
	t.Setenv("MONGO_USE_TRANSACTIONS", "true")
	t.Setenv("REQUEST_TIMEOUT", "2")
	t.Setenv("SWEEP_INTERVAL", "30s")
	t.Setenv("FEED_FANOUT", "3")
	t.Setenv("FEED_DEFAULT_ORDER", "oldest")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMongo, cfg.StoreDriver)
	assert.True(t, cfg.MongoUseTransactions)
	assert.Equal(t, 2*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 3, cfg.FeedFanout)
	assert.Equal(t, "oldest", cfg.FeedDefaultOrder)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			StoreDriver:      DriverNeo4j,
			Neo4jURI:         "bolt://localhost:7687",
			Neo4jUser:        "neo4j",
			Neo4jPassword:    "password",
			RequestTimeout:   time.Second,
			FeedFanout:       1,
			FeedDefaultOrder: "newest",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown driver", func(c *Config) { c.StoreDriver = "sqlite" }},
		{"missing neo4j password", func(c *Config) { c.Neo4jPassword = "" }},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"negative sweep", func(c *Config) { c.SweepInterval = -time.Second }},
		{"zero fanout", func(c *Config) { c.FeedFanout = 0 }},
		{"bad order", func(c *Config) { c.FeedDefaultOrder = "random" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeConfig))
		})
	}
}
