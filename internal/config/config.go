// Package config loads the YAML configuration and applies SW_ environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig wraps every validation failure returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	CORS     CORSConfig     `yaml:"cors"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Publish  PublishConfig  `yaml:"publish"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms" validate:"min=0"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms" validate:"min=0"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAgeSeconds  int      `yaml:"max_age_seconds"`
}

// PoolConfig defines connection pool settings
type PoolConfig struct {
	MaxConns                 int `yaml:"max_conns"`
	MinConns                 int `yaml:"min_conns"`
	MaxConnLifetimeMinutes   int `yaml:"max_conn_lifetime_minutes"`
	MaxConnIdleTimeMinutes   int `yaml:"max_conn_idle_time_minutes"`
	HealthCheckPeriodSeconds int `yaml:"health_check_period_seconds"`
}

type DatabaseConfig struct {
	Driver   string     `yaml:"driver" validate:"oneof=postgres sqlite memory"`
	Host     string     `yaml:"host" validate:"required_if=Driver postgres"`
	Port     int        `yaml:"port"`
	User     string     `yaml:"user"`
	Password string     `yaml:"password"`
	DBName   string     `yaml:"dbname" validate:"required_if=Driver postgres"`
	SSLMode  string     `yaml:"ssl_mode"`
	Path     string     `yaml:"path" validate:"required_if=Driver sqlite"`
	SeedFile string     `yaml:"seed_file"`
	Pool     PoolConfig `yaml:"pool"`
}

type AuthConfig struct {
	Enabled           bool   `yaml:"enabled"`
	AdminUsername     string `yaml:"admin_username" validate:"required_if=Enabled true"`
	AdminPasswordHash string `yaml:"admin_password_hash" validate:"required_if=Enabled true"`
	JWTSecret         string `yaml:"jwt_secret" validate:"omitempty,min=32"`
	JWTExpiryHours    int    `yaml:"jwt_expiry_hours"`
}

// SNMPConfig configures the snmp probe method.
type SNMPConfig struct {
	Community string `yaml:"community"`
	Port      int    `yaml:"port" validate:"min=0,max=65535"`
	Version   string `yaml:"version" validate:"omitempty,oneof=1 2c"`
}

// MonitorConfig is the monitoring cycle surface.
type MonitorConfig struct {
	CycleIntervalMS     int        `yaml:"cycle_interval_ms" validate:"min=100"`
	ProbeTimeoutMS      int        `yaml:"probe_timeout_ms" validate:"min=10"`
	MaxConcurrentProbes int        `yaml:"max_concurrent_probes" validate:"min=0"`
	InventoryFallback   *bool      `yaml:"inventory_fallback"`
	ProbeMethod         string     `yaml:"probe_method" validate:"oneof=icmp tcp snmp"`
	ICMPPrivileged      bool       `yaml:"icmp_privileged"`
	TCPPort             int        `yaml:"tcp_port" validate:"min=1,max=65535"`
	SNMP                SNMPConfig `yaml:"snmp"`
	HistoryLimit        int        `yaml:"history_limit" validate:"min=1,max=500"`
}

type NATSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	URL             string `yaml:"url" validate:"required_if=Enabled true"`
	StatusSubject   string `yaml:"status_subject"`
	TopologySubject string `yaml:"topology_subject"`
}

type WebSocketConfig struct {
	Enabled        bool     `yaml:"enabled"`
	BufferSize     int      `yaml:"buffer_size" validate:"min=0"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type PublishConfig struct {
	WebSocket WebSocketConfig `yaml:"websocket"`
	NATS      NATSConfig      `yaml:"nats"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format" validate:"omitempty,oneof=json text"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from file and applies environment variable overrides.
// A missing file is not an error: defaults plus environment are used.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

var validate = validator.New()

// Validate ensures all required configuration values are set
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if c.Auth.Enabled && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("%w: SW_AUTH_JWT_SECRET is required when auth is enabled (minimum 32 characters)", ErrInvalidConfig)
	}

	if !c.Logging.IsLogLevelValid() {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Logging.Level)
	}

	if c.Monitor.GetProbeTimeout() >= c.Monitor.GetCycleInterval() {
		return fmt.Errorf("%w: probe_timeout_ms must be shorter than cycle_interval_ms", ErrInvalidConfig)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.ReadTimeoutMS == 0 {
		c.Server.ReadTimeoutMS = 15000
	}
	if c.Server.WriteTimeoutMS == 0 {
		c.Server.WriteTimeoutMS = 15000
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}

	if c.Auth.JWTExpiryHours == 0 {
		c.Auth.JWTExpiryHours = 24
	}

	m := &c.Monitor
	if m.CycleIntervalMS == 0 {
		m.CycleIntervalMS = 10000
	}
	if m.ProbeTimeoutMS == 0 {
		m.ProbeTimeoutMS = 2000
	}
	if m.InventoryFallback == nil {
		enabled := true
		m.InventoryFallback = &enabled
	}
	if m.ProbeMethod == "" {
		m.ProbeMethod = "icmp"
	}
	if m.TCPPort == 0 {
		m.TCPPort = 22
	}
	if m.SNMP.Community == "" {
		m.SNMP.Community = "public"
	}
	if m.SNMP.Port == 0 {
		m.SNMP.Port = 161
	}
	if m.SNMP.Version == "" {
		m.SNMP.Version = "2c"
	}
	if m.HistoryLimit == 0 {
		m.HistoryLimit = 50
	}

	if c.Publish.WebSocket.BufferSize == 0 {
		c.Publish.WebSocket.BufferSize = 16
	}
	if c.Publish.NATS.StatusSubject == "" {
		c.Publish.NATS.StatusSubject = "sectorwatch.status"
	}
	if c.Publish.NATS.TopologySubject == "" {
		c.Publish.NATS.TopologySubject = "sectorwatch.topology"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// applyEnvOverrides checks for environment variables with SW_ prefix
func applyEnvOverrides(cfg *Config) error {
	// Monitor overrides
	if err := envInt("SW_CYCLE_INTERVAL_MS", &cfg.Monitor.CycleIntervalMS); err != nil {
		return err
	}
	if err := envInt("SW_PROBE_TIMEOUT_MS", &cfg.Monitor.ProbeTimeoutMS); err != nil {
		return err
	}
	if err := envInt("SW_MAX_CONCURRENT_PROBES", &cfg.Monitor.MaxConcurrentProbes); err != nil {
		return err
	}
	if v := os.Getenv("SW_INVENTORY_FALLBACK"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SW_INVENTORY_FALLBACK: %w", err)
		}
		cfg.Monitor.InventoryFallback = &b
	}
	if v := os.Getenv("SW_PROBE_METHOD"); v != "" {
		cfg.Monitor.ProbeMethod = strings.ToLower(v)
	}

	// Database overrides
	if v := os.Getenv("SW_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SW_DATABASE_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if err := envInt("SW_DATABASE_PORT", &cfg.Database.Port); err != nil {
		return err
	}
	if v := os.Getenv("SW_DATABASE_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth overrides
	if v := os.Getenv("SW_AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SW_AUTH_ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Auth.AdminPasswordHash = v
	}

	if v := os.Getenv("SW_NATS_URL"); v != "" {
		cfg.Publish.NATS.URL = v
		cfg.Publish.NATS.Enabled = true
	}
	if v := os.Getenv("SW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// GetReadTimeout returns the read timeout as a duration
func (s *ServerConfig) GetReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutMS) * time.Millisecond
}

// GetWriteTimeout returns the write timeout as a duration
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutMS) * time.Millisecond
}

// GetDSN returns the PostgreSQL connection string
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// GetJWTExpiry returns JWT expiry as duration
func (a *AuthConfig) GetJWTExpiry() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

func (m *MonitorConfig) GetCycleInterval() time.Duration {
	return time.Duration(m.CycleIntervalMS) * time.Millisecond
}

func (m *MonitorConfig) GetProbeTimeout() time.Duration {
	return time.Duration(m.ProbeTimeoutMS) * time.Millisecond
}

// FallbackEnabled reports whether a failed inventory fetch reuses the last good one.
func (m *MonitorConfig) FallbackEnabled() bool {
	return m.InventoryFallback == nil || *m.InventoryFallback
}

// IsLogLevelValid checks if the log level is valid
func (l *LoggingConfig) IsLogLevelValid() bool {
	validLevels := []string{"debug", "info", "warn", "error"}
	return slices.Contains(validLevels, strings.ToLower(l.Level))
}
