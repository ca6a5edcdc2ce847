package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Habitat backend.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Security SecurityConfig `yaml:"security"`
	Notify   NotifyConfig   `yaml:"notify"`
	Seed     SeedConfig     `yaml:"seed"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
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

// APITimeoutConfig contains HTTP timeout settings, in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains authentication settings.
type SecurityConfig struct {
	JWT        JWTConfig        `yaml:"jwt"`
	Cookie     CookieConfig     `yaml:"cookie"`
	Reset      ResetConfig      `yaml:"reset"`
	Revocation RevocationConfig `yaml:"revocation"`
}

// JWTConfig contains access token settings. TTLs are in minutes.
type JWTConfig struct {
	Secret           string `yaml:"secret"`
	Issuer           string `yaml:"issuer"`
	AccessTokenTTL   int    `yaml:"access_token_ttl"`
	ExtendedTokenTTL int    `yaml:"extended_token_ttl"`
}

// CookieConfig controls the HTTP-only cookie that mirrors the bearer token.
type CookieConfig struct {
	Name   string `yaml:"name"`
	Secure bool   `yaml:"secure"`
}

// ResetConfig controls the password recovery flow.
type ResetConfig struct {
	// TokenTTL is the lifetime of a reset token in minutes.
	TokenTTL int `yaml:"token_ttl"`

	// LinkBaseURL is prefixed to the token to build the emailed link.
	LinkBaseURL string `yaml:"link_base_url"`

	// RevealUnknownEmail answers forgot-password for an unregistered
	// address with 404 instead of the generic success message.
	RevealUnknownEmail bool `yaml:"reveal_unknown_email"`

	// MinPasswordLength applies to passwords set through the reset flow.
	MinPasswordLength int `yaml:"min_password_length"`
}

// RevocationConfig controls pruning of the in-memory stores.
type RevocationConfig struct {
	// PruneInterval is how often expired entries are dropped, in seconds.
	PruneInterval int `yaml:"prune_interval"`
}

// NotifyConfig selects how recovery emails leave the process.
type NotifyConfig struct {
	// Transport is "mqtt" (publish to a mail relay topic) or "log".
	Transport string `yaml:"transport"`
	Topic     string `yaml:"topic"` // empty means habitat/notify/email
	From      string `yaml:"from"`
}

// SeedConfig bootstraps the first administrator on an empty database.
type SeedConfig struct {
	AdminEmail    string `yaml:"admin_email"`
	AdminPassword string `yaml:"admin_password"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file, if present (never overrides variables already set)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: HABITAT_SECTION_KEY
// For example: HABITAT_DATABASE_PATH, HABITAT_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(envFilePath()); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func envFilePath() string {
	if v := os.Getenv("HABITAT_ENV_FILE"); v != "" {
		return v
	}
	return ".env"
}

// loadDotEnv populates the process environment from a dotenv file.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/habitat.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "habitat-backend",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer:           "habitat",
				AccessTokenTTL:   60,
				ExtendedTokenTTL: 7 * 24 * 60,
			},
			Cookie: CookieConfig{
				Name:   "access_token_cookie",
				Secure: true,
			},
			Reset: ResetConfig{
				TokenTTL:          30,
				LinkBaseURL:       "http://localhost:3000/reset_password/",
				MinPasswordLength: 8,
			},
			Revocation: RevocationConfig{
				PruneInterval: 60,
			},
		},
		Notify: NotifyConfig{
			Transport: "log",
			Topic:     "habitat/notify/email",
			From:      "no-reply@habitat.local",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HABITAT_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("HABITAT_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("HABITAT_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HABITAT_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HABITAT_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("HABITAT_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("HABITAT_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("HABITAT_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("HABITAT_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("HABITAT_RESET_LINK_BASE_URL"); v != "" {
		cfg.Security.Reset.LinkBaseURL = v
	}

	// Seed
	if v := os.Getenv("HABITAT_SEED_ADMIN_EMAIL"); v != "" {
		cfg.Seed.AdminEmail = v
	}
	if v := os.Getenv("HABITAT_SEED_ADMIN_PASSWORD"); v != "" {
		cfg.Seed.AdminPassword = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// A short secret makes HS256 tokens forgeable by brute force.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HABITAT_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Security.JWT.AccessTokenTTL <= 0 {
		errs = append(errs, "security.jwt.access_token_ttl must be positive")
	}
	if c.Security.JWT.ExtendedTokenTTL < c.Security.JWT.AccessTokenTTL {
		errs = append(errs, "security.jwt.extended_token_ttl must not be shorter than access_token_ttl")
	}
	if c.Security.Cookie.Name == "" {
		errs = append(errs, "security.cookie.name is required")
	}
	if c.Security.Reset.TokenTTL <= 0 {
		errs = append(errs, "security.reset.token_ttl must be positive")
	}
	if c.Security.Revocation.PruneInterval <= 0 {
		errs = append(errs, "security.revocation.prune_interval must be positive")
	}

	switch c.Notify.Transport {
	case "log":
	case "mqtt":
		if !c.MQTT.Enabled {
			errs = append(errs, "notify.transport mqtt requires mqtt.enabled")
		}
	default:
		errs = append(errs, "notify.transport must be \"log\" or \"mqtt\"")
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

// GetAccessTokenTTL returns the default access token lifetime.
func (c *Config) GetAccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}

// GetExtendedTokenTTL returns the "remember me" access token lifetime.
func (c *Config) GetExtendedTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.ExtendedTokenTTL) * time.Minute
}

// GetResetTokenTTL returns the password reset token lifetime.
func (c *Config) GetResetTokenTTL() time.Duration {
	return time.Duration(c.Security.Reset.TokenTTL) * time.Minute
}

// GetPruneInterval returns how often expired revocations and reset tokens are dropped.
func (c *Config) GetPruneInterval() time.Duration {
	return time.Duration(c.Security.Revocation.PruneInterval) * time.Second
}
