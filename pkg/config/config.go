package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/integrationhub/pkg/observability"
	"github.com/platinummonkey/integrationhub/pkg/rbac"
	"github.com/platinummonkey/integrationhub/pkg/storage"
)

// Identity source modes
const (
	AuthModeDev  = "dev"
	AuthModeOIDC = "oidc"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
	Session       SessionConfig       `yaml:"session"`
	Auth          AuthConfig          `yaml:"auth"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Jobs          JobsConfig          `yaml:"jobs"`
	Audit         AuditConfig         `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	CORSOrigins     []string      `yaml:"cors_origins"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
	// OTelSampleRatio is the fraction of root spans kept; zero or one keeps all
	OTelSampleRatio float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level
func (c ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(c.LogLevel)
}

// SessionConfig controls console sessions and the route table
type SessionConfig struct {
	MaxSessions   int           `yaml:"max_sessions"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	DefaultRole   rbac.Role     `yaml:"default_role"`
	RouteTable    string        `yaml:"route_table"`
	WatchRoutes   bool          `yaml:"watch_routes"`
	SeedFile      string        `yaml:"seed_file"`
	Seed          bool          `yaml:"seed"`
	ScopeCacheTTL time.Duration `yaml:"scope_cache_ttl"`
}

// AuthConfig selects how session identities are established
type AuthConfig struct {
	Mode          string `yaml:"mode"`
	OIDCIssuerURL string `yaml:"oidc_issuer_url"`
	OIDCClientID  string `yaml:"oidc_client_id"`
	// AnyRoleSwitch lets OIDC sessions select roles they were not assigned.
	// Dev mode always allows it.
	AnyRoleSwitch bool `yaml:"any_role_switch"`
}

// TotalRoleSwitch reports whether sessions may switch to any console role
func (a AuthConfig) TotalRoleSwitch() bool {
	return a.Mode == AuthModeDev || a.AnyRoleSwitch
}

// RateLimitConfig controls request rate limiting
type RateLimitConfig struct {
	Enabled bool `yaml:"enabled"`
	// Distributed shares limits across instances through Redis
	Distributed bool `yaml:"distributed"`
}

// JobsConfig holds the schedules of background jobs
type JobsConfig struct {
	Enabled         bool          `yaml:"enabled"`
	InvitationSweep string        `yaml:"invitation_sweep"`
	SessionGauge    string        `yaml:"session_gauge"`
	InvitationTTL   time.Duration `yaml:"invitation_ttl"`
}

// AuditConfig controls the audit file sink. An empty FileDir disables it.
type AuditConfig struct {
	FileDir     string `yaml:"file_dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
	MaxFiles    int    `yaml:"max_files"`
	// RedisStream publishes events to this stream when Redis is configured
	RedisStream       string `yaml:"redis_stream"`
	RedisStreamMaxLen int64  `yaml:"redis_stream_max_len"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Storage: storage.DefaultConfig(),
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "integration-hub",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
		Session: SessionConfig{
			MaxSessions:   1000,
			IdleTimeout:   30 * time.Minute,
			DefaultRole:   rbac.RoleBusinessViewer,
			Seed:          true,
			ScopeCacheTTL: 5 * time.Minute,
		},
		Auth: AuthConfig{
			Mode: AuthModeDev,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
		},
		Jobs: JobsConfig{
			Enabled:         true,
			InvitationSweep: "@every 1h",
			SessionGauge:    "@every 30s",
			InvitationTTL:   7 * 24 * time.Hour,
		},
		Audit: AuditConfig{
			MaxFileSize: 100 * 1024 * 1024,
			MaxFiles:    10,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file named by
// HUB_CONFIG_FILE and environment variables, in that order
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("HUB_CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Server
	s.Host = getEnv("HUB_HOST", s.Host)
	s.Port = getEnv("HUB_PORT", s.Port)
	s.HealthPort = getEnv("HUB_HEALTH_PORT", s.HealthPort)
	s.ReadTimeout = getEnvDuration("HUB_READ_TIMEOUT", s.ReadTimeout)
	s.WriteTimeout = getEnvDuration("HUB_WRITE_TIMEOUT", s.WriteTimeout)
	s.IdleTimeout = getEnvDuration("HUB_IDLE_TIMEOUT", s.IdleTimeout)
	s.ShutdownTimeout = getEnvDuration("HUB_SHUTDOWN_TIMEOUT", s.ShutdownTimeout)
	s.MaxBodyBytes = getEnvInt64("HUB_MAX_BODY_BYTES", s.MaxBodyBytes)
	s.CORSOrigins = getEnvList("HUB_CORS_ORIGINS", s.CORSOrigins)

	st := &c.Storage
	st.Type = getEnv("HUB_STORAGE_TYPE", st.Type)
	st.PostgresURL = getEnv("HUB_POSTGRES_URL", st.PostgresURL)
	st.PostgresReplicaURLs = getEnvList("HUB_POSTGRES_REPLICA_URLS", st.PostgresReplicaURLs)
	st.PostgresMaxConns = getEnvInt("HUB_POSTGRES_MAX_CONNS", st.PostgresMaxConns)
	st.PostgresMinConns = getEnvInt("HUB_POSTGRES_MIN_CONNS", st.PostgresMinConns)
	st.PostgresTimeout = getEnvDuration("HUB_POSTGRES_TIMEOUT", st.PostgresTimeout)
	st.RedisURL = getEnv("HUB_REDIS_URL", st.RedisURL)
	st.RedisPassword = getEnv("HUB_REDIS_PASSWORD", st.RedisPassword)
	st.RedisDB = getEnvInt("HUB_REDIS_DB", st.RedisDB)
	st.RedisMaxRetries = getEnvInt("HUB_REDIS_MAX_RETRIES", st.RedisMaxRetries)
	st.RedisPoolSize = getEnvInt("HUB_REDIS_POOL_SIZE", st.RedisPoolSize)
	st.MockLatency = getEnvDuration("HUB_MOCK_LATENCY", st.MockLatency)
	st.MockFailureRate = getEnvFloat("HUB_MOCK_FAILURE_RATE", st.MockFailureRate)

	o := &c.Observability
	o.LogLevel = getEnv("HUB_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("HUB_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("HUB_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("HUB_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("HUB_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("HUB_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("HUB_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("HUB_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)

	se := &c.Session
	se.MaxSessions = getEnvInt("HUB_MAX_SESSIONS", se.MaxSessions)
	se.IdleTimeout = getEnvDuration("HUB_SESSION_IDLE_TIMEOUT", se.IdleTimeout)
	se.DefaultRole = rbac.Role(getEnv("HUB_DEFAULT_ROLE", string(se.DefaultRole)))
	se.RouteTable = getEnv("HUB_ROUTE_TABLE", se.RouteTable)
	se.WatchRoutes = getEnvBool("HUB_WATCH_ROUTES", se.WatchRoutes)
	se.SeedFile = getEnv("HUB_SEED_FILE", se.SeedFile)
	se.Seed = getEnvBool("HUB_SEED", se.Seed)
	se.ScopeCacheTTL = getEnvDuration("HUB_SCOPE_CACHE_TTL", se.ScopeCacheTTL)

	a := &c.Auth
	a.Mode = getEnv("HUB_AUTH_MODE", a.Mode)
	a.OIDCIssuerURL = getEnv("HUB_OIDC_ISSUER_URL", a.OIDCIssuerURL)
	a.OIDCClientID = getEnv("HUB_OIDC_CLIENT_ID", a.OIDCClientID)
	a.AnyRoleSwitch = getEnvBool("HUB_AUTH_ANY_ROLE_SWITCH", a.AnyRoleSwitch)

	c.RateLimit.Enabled = getEnvBool("HUB_RATE_LIMIT_ENABLED", c.RateLimit.Enabled)
	c.RateLimit.Distributed = getEnvBool("HUB_RATE_LIMIT_DISTRIBUTED", c.RateLimit.Distributed)

	j := &c.Jobs
	j.Enabled = getEnvBool("HUB_JOBS_ENABLED", j.Enabled)
	j.InvitationSweep = getEnv("HUB_INVITATION_SWEEP", j.InvitationSweep)
	j.SessionGauge = getEnv("HUB_SESSION_GAUGE", j.SessionGauge)
	j.InvitationTTL = getEnvDuration("HUB_INVITATION_TTL", j.InvitationTTL)

	au := &c.Audit
	au.FileDir = getEnv("HUB_AUDIT_DIR", au.FileDir)
	au.MaxFileSize = getEnvInt64("HUB_AUDIT_MAX_FILE_SIZE", au.MaxFileSize)
	au.MaxFiles = getEnvInt("HUB_AUDIT_MAX_FILES", au.MaxFiles)
	au.RedisStream = getEnv("HUB_AUDIT_REDIS_STREAM", au.RedisStream)
	au.RedisStreamMaxLen = getEnvInt64("HUB_AUDIT_REDIS_STREAM_MAX_LEN", au.RedisStreamMaxLen)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if c.Session.MaxSessions < 1 {
		return fmt.Errorf("max sessions must be positive")
	}
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("session idle timeout must be positive")
	}
	if !rbac.ConsoleCatalog().Contains(c.Session.DefaultRole) {
		return fmt.Errorf("default role %q is not a console role", c.Session.DefaultRole)
	}
	if c.Session.WatchRoutes && c.Session.RouteTable == "" {
		return fmt.Errorf("route table path is required when watching routes")
	}

	switch c.Auth.Mode {
	case AuthModeDev:
	case AuthModeOIDC:
		if c.Auth.OIDCIssuerURL == "" || c.Auth.OIDCClientID == "" {
			return fmt.Errorf("OIDC issuer URL and client id are required for auth mode %q", AuthModeOIDC)
		}
	default:
		return fmt.Errorf("invalid auth mode: %s (must be %s or %s)", c.Auth.Mode, AuthModeDev, AuthModeOIDC)
	}

	if c.RateLimit.Distributed && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required for distributed rate limiting")
	}

	if c.Jobs.Enabled {
		for name, spec := range map[string]string{
			"invitation sweep": c.Jobs.InvitationSweep,
			"session gauge":    c.Jobs.SessionGauge,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
			}
		}
		if c.Jobs.InvitationTTL <= 0 {
			return fmt.Errorf("invitation TTL must be positive")
		}
	}

	if c.Audit.FileDir != "" && (c.Audit.MaxFileSize <= 0 || c.Audit.MaxFiles < 1) {
		return fmt.Errorf("audit file sink needs a positive max file size and max files")
	}
	if c.Audit.RedisStream != "" && c.Storage.RedisURL == "" {
		return fmt.Errorf("redis URL is required for the audit stream")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be between 0 and 1, got %v", r)
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
