package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver names accepted in zwave.driver.
const (
	DriverSimulated = "simulated"
)

// Config is the root configuration structure for the Z-Wave bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge    BridgeConfig    `yaml:"bridge"`
	ZWave     ZWaveConfig     `yaml:"zwave"`
	Commands  CommandsConfig  `yaml:"commands"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// BridgeConfig identifies this bridge to Gray Logic Core.
type BridgeConfig struct {
	ID             string `yaml:"id"`
	HealthInterval int    `yaml:"health_interval"`
	PublishBuffer  int    `yaml:"publish_buffer"`
}

// ZWaveConfig selects the network driver and the controller it opens.
type ZWaveConfig struct {
	// Driver is the driver implementation. Only "simulated" ships with
	// this build.
	Driver string `yaml:"driver"`

	// Device is the controller path, e.g. /dev/ttyACM0.
	Device string `yaml:"device"`

	// NetworkFile describes the simulated mesh. Empty uses the built-in
	// demo network.
	NetworkFile string `yaml:"network_file"`

	Options ZWaveOptionsConfig `yaml:"options"`
}

// ZWaveOptionsConfig is handed to the driver once, before it connects.
type ZWaveOptionsConfig struct {
	ConfigPath           string `yaml:"config_path"`
	UserPath             string `yaml:"user_path"`
	ConsoleOutput        bool   `yaml:"console_output"`
	Logging              bool   `yaml:"logging"`
	SaveConfiguration    bool   `yaml:"save_configuration"`
	DriverMaxAttempts    int    `yaml:"driver_max_attempts"`
	PollInterval         int    `yaml:"poll_interval"` // seconds, 0 disables
	SuppressValueRefresh bool   `yaml:"suppress_value_refresh"`
	NetworkKey           string `yaml:"network_key"`
}

// CommandsConfig paces commands sent to the mesh.
type CommandsConfig struct {
	Timeout int     `yaml:"timeout"` // seconds
	Rate    float64 `yaml:"rate"`    // commands per second, 0 disables pacing
	Burst   int     `yaml:"burst"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// JournalRetentionDays prunes journal entries older than this.
	// 0 keeps everything.
	JournalRetentionDays int `yaml:"journal_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty AllowedOrigins list allows every origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
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

// FileLoggingConfig contains file-based logging settings. Logs are also
// written to Path when it is set.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"` // megabytes
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
	Compress   bool   `yaml:"compress"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig holds the secret used to verify bearer tokens issued by Core.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// ConfigPathEnv names the variable that overrides the config file path.
const ConfigPathEnv = "GRAYLOGIC_ZWAVE_CONFIG"

// Path returns the config file to load: $GRAYLOGIC_ZWAVE_CONFIG or
// configs/config.yaml.
func Path() string {
	if v := os.Getenv(ConfigPathEnv); v != "" {
		return v
	}
	return "configs/config.yaml"
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_ZWAVE_SECTION_KEY
// For example: GRAYLOGIC_ZWAVE_DEVICE, GRAYLOGIC_ZWAVE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

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

// Default returns a Config with sensible defaults. It does not pass
// Validate until a JWT secret is set.
func Default() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "zwave-bridge-01",
			HealthInterval: 30,
			PublishBuffer:  1024,
		},
		ZWave: ZWaveConfig{
			Driver: DriverSimulated,
			Device: "/dev/ttyACM0",
			Options: ZWaveOptionsConfig{
				DriverMaxAttempts: 3,
			},
		},
		Commands: CommandsConfig{
			Timeout: 5,
			Rate:    10,
			Burst:   5,
		},
		Database: DatabaseConfig{
			Path:                 "./data/zwave.db",
			WALMode:              true,
			BusyTimeout:          5,
			JournalRetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-zwave",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8091,
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
			SendBuffer:     256,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "graylogic",
			Bucket:        "zwave",
			BatchSize:     500,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    50,
				MaxBackups: 5,
				MaxAge:     28,
				Compress:   true,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "graylogic-core",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_ZWAVE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Z-Wave
	if v := os.Getenv("GRAYLOGIC_ZWAVE_DEVICE"); v != "" {
		cfg.ZWave.Device = v
	}
	if v := os.Getenv("GRAYLOGIC_ZWAVE_NETWORK_KEY"); v != "" {
		cfg.ZWave.Options.NetworkKey = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_ZWAVE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_ZWAVE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_ZWAVE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_ZWAVE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_ZWAVE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_ZWAVE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_ZWAVE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_ZWAVE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Security - JWT secret shared with Core
	if v := os.Getenv("GRAYLOGIC_ZWAVE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	if c.ZWave.Driver != DriverSimulated {
		errs = append(errs, fmt.Sprintf("zwave.driver %q is not supported (want %q)", c.ZWave.Driver, DriverSimulated))
	}
	if c.ZWave.Device == "" {
		errs = append(errs, "zwave.device is required")
	}
	if c.ZWave.Options.PollInterval < 0 {
		errs = append(errs, "zwave.options.poll_interval must not be negative")
	}

	if c.Commands.Rate < 0 {
		errs = append(errs, "commands.rate must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The API can drive physical devices, so command routes always
		// need a verifiable token.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_ZWAVE_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// HealthInterval returns bridge.health_interval as a Duration.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Bridge.HealthInterval) * time.Second
}

// CommandTimeout returns commands.timeout as a Duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Commands.Timeout) * time.Second
}

// PollInterval returns zwave.options.poll_interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.ZWave.Options.PollInterval) * time.Second
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
