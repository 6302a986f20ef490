package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for motioncsv.
// Values come from defaults, an optional YAML file, and environment variables,
// in that order. Command-line flags are applied on top by the caller.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Database DatabaseConfig `yaml:"database"`
}

// ServiceConfig contains the motion service connection settings.
type ServiceConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ConnectTimeout bounds the initial TCP dial.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReadTimeout bounds each frame read once the stream is running.
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WaitTimeout bounds the wait for the first message after the channel request.
	WaitTimeout time.Duration `yaml:"wait_timeout"`

	// MaxMessageSize is the largest message payload accepted, in bytes.
	MaxMessageSize int `yaml:"max_message_size"`

	// Channels are the Configurable groups to request, in column order.
	Channels []string `yaml:"channels"`

	// Inactive also streams nodes without a sensor attached.
	Inactive bool `yaml:"inactive"`
}

// OutputConfig contains CSV formatting settings.
type OutputConfig struct {
	Separator string `yaml:"separator"`
	Newline   string `yaml:"newline"`
	Header    bool   `yaml:"header"`

	// Precision is the number of significant digits per value.
	// -1 selects the shortest representation that round-trips.
	Precision int `yaml:"precision"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MQTTConfig contains the optional MQTT frame publisher settings.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
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

// InfluxDBConfig contains the optional InfluxDB writer settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains the optional SQLite session log settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Load reads configuration and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values, if path is not empty
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MOTIONCSV_SECTION_KEY
// For example: MOTIONCSV_SERVICE_HOST, MOTIONCSV_MQTT_PASSWORD
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the stock settings: loopback Configurable
// service on port 32076, comma separated rows, logs on stderr.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Host:           "127.0.0.1",
			Port:           32076,
			ConnectTimeout: 5 * time.Second,
			ReadTimeout:    5 * time.Second,
			WaitTimeout:    5 * time.Second,
			MaxMessageSize: 64 * 1024,
			Channels:       []string{"Lq", "c"},
			Inactive:       true,
		},
		Output: OutputConfig{
			Separator: ",",
			Newline:   "\n",
			Precision: 6,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "motioncsv",
			},
			QoS: 0,
		},
		InfluxDB: InfluxDBConfig{
			Org:           "motion",
			Bucket:        "motion",
			BatchSize:     500,
			FlushInterval: 1,
		},
		Database: DatabaseConfig{
			Path:        "./data/motioncsv.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	// Service
	if v := os.Getenv("MOTIONCSV_SERVICE_HOST"); v != "" {
		cfg.Service.Host = v
	}
	if v := os.Getenv("MOTIONCSV_SERVICE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MOTIONCSV_SERVICE_PORT: %w", err)
		}
		cfg.Service.Port = port
	}

	// Logging
	if v := os.Getenv("MOTIONCSV_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// MQTT
	if v := os.Getenv("MOTIONCSV_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MOTIONCSV_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MOTIONCSV_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("MOTIONCSV_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("MOTIONCSV_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Host == "" {
		errs = append(errs, "service.host is required")
	}
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		errs = append(errs, "service.port must be between 1 and 65535")
	}
	if c.Service.ConnectTimeout <= 0 || c.Service.ReadTimeout <= 0 || c.Service.WaitTimeout <= 0 {
		errs = append(errs, "service timeouts must be positive")
	}
	if c.Service.MaxMessageSize < 8 {
		errs = append(errs, "service.max_message_size must be at least 8 bytes")
	}
	if len(c.Service.Channels) == 0 {
		errs = append(errs, "service.channels must name at least one group")
	}

	if c.Output.Newline == "" {
		errs = append(errs, "output.newline is required")
	}
	if c.Output.Precision < -1 || c.Output.Precision > 17 {
		errs = append(errs, "output.precision must be between -1 and 17")
	}

	switch strings.ToLower(c.Logging.Output) {
	case "stdout", "stderr":
	default:
		errs = append(errs, "logging.output must be stdout or stderr")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.Broker.ClientID == "" {
			errs = append(errs, "mqtt.broker.client_id is required")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}

	return nil
}

// Address returns the motion service address in host:port form.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Service.Host, strconv.Itoa(c.Service.Port))
}
