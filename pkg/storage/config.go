package storage

import (
	"fmt"
	"time"
)

// Backend types
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
)

// Config for the storage backend
type Config struct {
	Type string `yaml:"type"`

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs []string      `yaml:"postgres_replica_urls"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`

	// Redis config
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`

	// Mock backend behaviour for the memory type
	MockLatency     time.Duration `yaml:"mock_latency"`
	MockFailureRate float64       `yaml:"mock_failure_rate"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		MockLatency:      150 * time.Millisecond,
	}
}

// Validate checks that the selected backend is fully configured
func (c Config) Validate() error {
	switch c.Type {
	case TypeMemory:
		if c.MockLatency < 0 {
			return fmt.Errorf("mock latency must not be negative")
		}
		if c.MockFailureRate < 0 || c.MockFailureRate > 1 {
			return fmt.Errorf("mock failure rate must be between 0 and 1, got %v", c.MockFailureRate)
		}
	case TypePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("postgres URL is required for storage type %q", TypePostgres)
		}
		if c.PostgresMaxConns < 1 {
			return fmt.Errorf("postgres max connections must be positive")
		}
		if c.PostgresMinConns > c.PostgresMaxConns {
			return fmt.Errorf("postgres min connections (%d) exceeds max (%d)", c.PostgresMinConns, c.PostgresMaxConns)
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Type)
	}
	return nil
}
