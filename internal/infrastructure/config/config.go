package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for netpanel.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Router    RouterConfig    `yaml:"router"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Collector CollectorConfig `yaml:"collector"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RouterConfig contains the home router API client settings.
type RouterConfig struct {
	// Host is the router's hostname or host:port (HTTPS assumed).
	Host string `yaml:"host"`

	// APIBase is the versioned API prefix, e.g. "/api/v8".
	APIBase string `yaml:"api_base"`

	// CACertFile optionally pins the router's self-signed certificate.
	// When empty, verification is skipped for the router client only.
	CACertFile string `yaml:"ca_cert_file"`

	// CredentialPath is where the app token is persisted. A relative
	// path resolves against the project root (nearest ancestor with a
	// go.mod), falling back to the working directory.
	CredentialPath string `yaml:"credential_path"`

	App      AppConfig           `yaml:"app"`
	Timeouts RouterTimeoutConfig `yaml:"timeouts"`
	Retry    RouterRetryConfig   `yaml:"retry"`
}

// AppConfig identifies netpanel to the router during registration and login.
type AppConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Version    string `yaml:"version"`
	DeviceName string `yaml:"device_name"`
}

// RouterTimeoutConfig contains request deadline settings in milliseconds.
// Slow-hardware deadlines are fixed; only the normal-class default is
// configurable.
type RouterTimeoutConfig struct {
	Default int `yaml:"default"`
}

// RouterRetryConfig contains the timeout-retry backoff schedule in
// milliseconds, one entry per permitted retry.
type RouterRetryConfig struct {
	BackoffMS []int `yaml:"backoff_ms"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// CollectorConfig contains status polling settings.
type CollectorConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval between polls, in seconds.
	Interval int `yaml:"interval"`

	// Endpoints are the router API paths polled each cycle.
	Endpoints []string `yaml:"endpoints"`
}

// MQTTConfig contains MQTT status publication settings.
type MQTTConfig struct {
	Enabled     bool             `yaml:"enabled"`
	Broker      MQTTBrokerConfig `yaml:"broker"`
	Auth        MQTTAuthConfig   `yaml:"auth"`
	QoS         int              `yaml:"qos"`
	TopicPrefix string           `yaml:"topic_prefix"`
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

// InfluxDBConfig contains InfluxDB connection settings for status metrics.
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: NETPANEL_SECTION_KEY
// For example: NETPANEL_ROUTER_HOST, NETPANEL_DATABASE_PATH
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Router: RouterConfig{
			Host:           "mafreebox.freebox.fr",
			APIBase:        "/api/v8",
			CredentialPath: "data/app_token.json",
			App: AppConfig{
				ID:         "net.panel",
				Name:       "netpanel",
				Version:    "1.0.0",
				DeviceName: "netpanel-server",
			},
			Timeouts: RouterTimeoutConfig{
				Default: 10000,
			},
			Retry: RouterRetryConfig{
				BackoffMS: []int{1000, 2000},
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/netpanel.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Collector: CollectorConfig{
			Enabled:   true,
			Interval:  60,
			Endpoints: []string{"/system/", "/connection/"},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "netpanel",
			},
			QoS:         1,
			TopicPrefix: "netpanel",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NETPANEL_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Router
	if v := os.Getenv("NETPANEL_ROUTER_HOST"); v != "" {
		cfg.Router.Host = v
	}
	if v := os.Getenv("NETPANEL_ROUTER_CREDENTIAL_PATH"); v != "" {
		cfg.Router.CredentialPath = v
	}

	// Database
	if v := os.Getenv("NETPANEL_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// API
	if v := os.Getenv("NETPANEL_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NETPANEL_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// MQTT
	if v := os.Getenv("NETPANEL_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NETPANEL_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NETPANEL_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("NETPANEL_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if c.Router.Host == "" {
		return fmt.Errorf("router.host is required")
	}
	if c.Router.App.ID == "" || c.Router.App.Name == "" || c.Router.App.Version == "" {
		return fmt.Errorf("router.app id, name and version are required")
	}
	if c.Router.CredentialPath == "" {
		return fmt.Errorf("router.credential_path is required")
	}
	if c.Router.Timeouts.Default < 0 {
		return fmt.Errorf("router.timeouts.default must not be negative")
	}
	for _, ms := range c.Router.Retry.BackoffMS {
		if ms < 0 {
			return fmt.Errorf("router.retry.backoff_ms entries must not be negative")
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		return fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port)
	}

	if c.Collector.Enabled && c.Collector.Interval < 1 {
		return fmt.Errorf("collector.interval must be at least 1 second, got %d", c.Collector.Interval)
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			return fmt.Errorf("mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb url, org and bucket are required when influxdb is enabled")
		}
	}

	return nil
}
