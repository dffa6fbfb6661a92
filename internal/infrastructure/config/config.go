package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Logic Node.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device      DeviceConfig       `yaml:"device"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	Agent       AgentConfig        `yaml:"agent"`
	Peripherals []PeripheralConfig `yaml:"peripherals"`
	API         APIConfig          `yaml:"api"`
	WebSocket   WebSocketConfig    `yaml:"websocket"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
}

// DeviceConfig identifies this node on the bus.
// ID is the numeric device id embedded in the node's MQTT topics.
type DeviceConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
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
//
// MaxAttempts bounds the initial connection attempts only; once connected,
// paho reconnects indefinitely. 0 means a single attempt.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// MQTTTopicsConfig controls the topic namespace shared by all nodes.
type MQTTTopicsConfig struct {
	// Prefix is the first topic level, e.g. "esp32" → esp32/5/receiver.
	Prefix string `yaml:"prefix"`
}

// AgentConfig contains the loop timings of the node agent.
type AgentConfig struct {
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	AutomationInterval time.Duration `yaml:"automation_interval"`
	Breaker            BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker guarding automation publishes.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures int           `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PeripheralConfig declares one peripheral attached to the board.
//
// Kind selects the driver (led, relay, servo_motor, dht_sensor, ...).
// Pins maps the driver's pin names to GPIO numbers, e.g. {"pin": 5}.
// Simulate makes sensors produce bounded random readings instead of sampling
// the pin backend.
// Options carries kind-specific constructor settings (min_us, debounce_ms, ...).
type PeripheralConfig struct {
	Name     string         `yaml:"name"`
	Kind     string         `yaml:"kind"`
	Pins     map[string]int `yaml:"pins"`
	Simulate bool           `yaml:"simulate"`
	Options  map[string]any `yaml:"options"`
}

// APIConfig contains HTTP status API settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
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
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// Logging to a file is enabled when Path is non-empty.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when path is empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYNODE_SECTION_KEY
// For example: GRAYNODE_MQTT_HOST, GRAYNODE_DEVICE_ID
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		// A peripherals list in the file replaces the default board layout
		// rather than merging with it.
		cfg.Peripherals = nil
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
		if cfg.Peripherals == nil {
			cfg.Peripherals = defaultPeripherals()
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config matching the reference board: device 5 on a
// local broker with an onboard LED, a relay and a servo.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   5,
			Name: "esp32-5",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graynode-5",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  5,
			},
			Topics: MQTTTopicsConfig{
				Prefix: "esp32",
			},
		},
		Agent: AgentConfig{
			HeartbeatInterval:  time.Second,
			AutomationInterval: time.Second,
			Breaker: BreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				OpenTimeout: 30 * time.Second,
				Interval:    time.Minute,
			},
		},
		Peripherals: defaultPeripherals(),
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// defaultPeripherals returns the reference board layout.
func defaultPeripherals() []PeripheralConfig {
	return []PeripheralConfig{
		{Name: "internal_led", Kind: "internal_led"},
		{Name: "relay", Kind: "relay", Pins: map[string]int{"pin": 5}, Simulate: true},
		{
			Name: "servo_motor",
			Kind: "servo_motor",
			Pins: map[string]int{"pin_id": 15},
			Options: map[string]any{
				"min_us":  544,
				"max_us":  2400,
				"min_deg": 0,
				"max_deg": 180,
				"freq":    50,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYNODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Device
	if v := os.Getenv("GRAYNODE_DEVICE_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYNODE_DEVICE_ID: %w", err)
		}
		cfg.Device.ID = id
	}

	// MQTT
	if v := os.Getenv("GRAYNODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYNODE_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GRAYNODE_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("GRAYNODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYNODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYNODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYNODE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// All problems are collected so a broken config file can be fixed in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID < 0 {
		errs = append(errs, "device.id must not be negative")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Topics.Prefix == "" {
		errs = append(errs, "mqtt.topics.prefix is required")
	} else if strings.ContainsAny(c.MQTT.Topics.Prefix, "+#") {
		errs = append(errs, "mqtt.topics.prefix must not contain wildcards")
	}

	// Agent validation
	if c.Agent.HeartbeatInterval <= 0 {
		errs = append(errs, "agent.heartbeat_interval must be positive")
	}
	if c.Agent.AutomationInterval <= 0 {
		errs = append(errs, "agent.automation_interval must be positive")
	}
	if c.Agent.Breaker.Enabled && c.Agent.Breaker.MaxFailures < 1 {
		errs = append(errs, "agent.breaker.max_failures must be at least 1")
	}

	// Peripheral validation (driver kinds are checked when the registry is built)
	seen := make(map[string]struct{}, len(c.Peripherals))
	for i, p := range c.Peripherals {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("peripherals[%d].name is required", i))
			continue
		}
		if _, dup := seen[p.Name]; dup {
			errs = append(errs, fmt.Sprintf("peripherals[%d]: duplicate name %q", i, p.Name))
		}
		seen[p.Name] = struct{}{}
		if p.Kind == "" {
			errs = append(errs, fmt.Sprintf("peripherals[%d].kind is required", i))
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.org and influxdb.bucket are required when influxdb is enabled")
		}
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
