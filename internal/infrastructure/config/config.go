package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for EdgeLink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Edge       EdgeConfig       `yaml:"edge"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Sessions   SessionsConfig   `yaml:"sessions"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
	Components ComponentsConfig `yaml:"components"`
}

// EdgeConfig contains settings for the edge-facing protocol.
type EdgeConfig struct {
	// DefaultDeviceID is the key under "devices" that carries commands.
	DefaultDeviceID string `yaml:"default_device_id" env:"EDGELINK_DEFAULT_DEVICE_ID"`

	// PersistInterval is how often dirty edge metadata is written back (seconds).
	PersistInterval int `yaml:"persist_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path" env:"EDGELINK_DATABASE_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled" env:"EDGELINK_MQTT_ENABLED"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"EDGELINK_MQTT_HOST"`
	Port     int    `yaml:"port" env:"EDGELINK_MQTT_PORT"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"EDGELINK_MQTT_USERNAME"`
	Password string `yaml:"password" env:"EDGELINK_MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host" env:"EDGELINK_API_HOST"`
	Port     int              `yaml:"port" env:"EDGELINK_API_PORT"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`

	// SubscriptionInterval is the current-data polling period in milliseconds.
	SubscriptionInterval int `yaml:"subscription_interval_ms"`

	// SendBuffer is the per-connection outbound frame buffer.
	SendBuffer int `yaml:"send_buffer"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled" env:"EDGELINK_INFLUXDB_ENABLED"`
	URL           string `yaml:"url" env:"EDGELINK_INFLUXDB_URL"`
	Token         string `yaml:"token" env:"EDGELINK_INFLUXDB_TOKEN"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SessionsConfig selects where authenticated sessions live.
type SessionsConfig struct {
	// Backend is "memory" or "redis".
	Backend string      `yaml:"backend" env:"EDGELINK_SESSIONS_BACKEND"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig contains Redis connection settings for the session store.
type RedisConfig struct {
	Addr      string `yaml:"addr" env:"EDGELINK_REDIS_ADDR"`
	Password  string `yaml:"password" env:"EDGELINK_REDIS_PASSWORD"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"EDGELINK_LOG_LEVEL"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains session token settings.
type JWTConfig struct {
	Secret string `yaml:"secret" env:"EDGELINK_JWT_SECRET"`

	// SessionTTL is the session lifetime in minutes.
	SessionTTL int `yaml:"session_ttl"`
}

// ComponentsConfig points at the component configuration document.
type ComponentsConfig struct {
	ConfigFile string `yaml:"config_file" env:"EDGELINK_COMPONENTS_FILE"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern EDGELINK_SECTION_KEY, for example
// EDGELINK_DATABASE_PATH or EDGELINK_JWT_SECRET.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Edge: EdgeConfig{
			DefaultDeviceID: "fems",
			PersistInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/edgelink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "edgelink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8085,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:                 "/ws",
			MaxMessageSize:       1 << 20,
			PingInterval:         30,
			PongTimeout:          10,
			SubscriptionInterval: 1000,
			SendBuffer:           256,
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "edgelink",
			BatchSize:     500,
			FlushInterval: 5,
		},
		Sessions: SessionsConfig{
			Backend: "memory",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "edgelink:sessions:",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				SessionTTL: 1440,
			},
		},
		Components: ComponentsConfig{
			ConfigFile: "./data/components.yaml",
		},
	}
}

// applyEnvOverrides decodes EDGELINK_* environment variables onto cfg.
// Fields without a matching variable keep their file or default value.
func applyEnvOverrides(cfg *Config) error {
	err := envdecode.Decode(cfg)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}
	return nil
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Edge.DefaultDeviceID == "" {
		errs = append(errs, "edge.default_device_id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.WebSocket.SubscriptionInterval <= 0 {
		errs = append(errs, "websocket.subscription_interval_ms must be positive")
	}

	switch c.Sessions.Backend {
	case "memory":
	case "redis":
		if c.Sessions.Redis.Addr == "" {
			errs = append(errs, "sessions.redis.addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("sessions.backend %q must be memory or redis", c.Sessions.Backend))
	}

	// Forged session tokens would grant control over physical storage systems.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set EDGELINK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// SubscriptionPeriod returns the current-data polling period.
func (w WebSocketConfig) SubscriptionPeriod() time.Duration {
	return time.Duration(w.SubscriptionInterval) * time.Millisecond
}

// SessionLifetime returns the session lifetime as a Duration.
func (j JWTConfig) SessionLifetime() time.Duration {
	return time.Duration(j.SessionTTL) * time.Minute
}
