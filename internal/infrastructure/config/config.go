package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Ruuvi bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Grafana   GrafanaConfig   `yaml:"grafana"`
	Publish   PublishConfig   `yaml:"publish"`
	Logging   LoggingConfig   `yaml:"logging"`
	Mappings  []MappingConfig `yaml:"mappings"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// Topic is the subscription filter for gateway advertisements.
	Topic string `yaml:"topic"`

	Republish RepublishConfig `yaml:"republish"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`

	// UniqueClientID appends a random suffix to ClientID so several
	// bridges can share one broker account.
	UniqueClientID bool `yaml:"unique_client_id"`
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

// RepublishConfig controls the current-reading republish.
// An empty Prefix disables it.
type RepublishConfig struct {
	Prefix      string `yaml:"prefix"`
	Retain      bool   `yaml:"retain"`
	Measurement string `yaml:"measurement"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection and point layout settings.
//
// Database, Username and Password address an InfluxDB 1.8+ server through
// its v2 compatibility endpoints. When Database is set it takes the place
// of Bucket, and the credentials take the place of Token.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`

	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	Measurement string `yaml:"measurement"`
	TagName     string `yaml:"tag_name"`

	// PollInterval is the aggregate flush period in seconds.
	PollInterval int `yaml:"poll_interval"`

	// RetryBufferLimit caps the number of points held while the server
	// is unreachable.
	RetryBufferLimit int `yaml:"retry_buffer_limit"`
}

// GrafanaConfig contains Grafana Live push settings.
type GrafanaConfig struct {
	Enabled     bool   `yaml:"enabled"`
	URL         string `yaml:"url"`
	Token       string `yaml:"token"`
	PushID      string `yaml:"push_id"`
	Transport   string `yaml:"transport"`
	Measurement string `yaml:"measurement"`
	VerifyTLS   bool   `yaml:"verify_tls"`
	Timeout     int    `yaml:"timeout"`
}

// PublishConfig contains publisher scheduling settings.
type PublishConfig struct {
	RepublishIntervalMS int `yaml:"republish_interval_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	Output    string `yaml:"output"`
	SyslogTag string `yaml:"syslog_tag"`
}

// MappingConfig is one statically configured address to name mapping.
// Parsing is left to the name table so a bad entry is reported and
// skipped instead of stopping startup.
type MappingConfig struct {
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
}

// Load builds the configuration in three layers: built-in defaults, then
// the YAML file at path, then RUUVIBRIDGE_* environment variables. The
// result is validated before it is returned.
//
// Parameters:
//   - path: YAML file to read
//
// Returns:
//   - *Config: Validated configuration
//   - error: If the file is unreadable or malformed, or a value is invalid
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration with environment overrides,
// for running without a file.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig is what a bridge runs with before the file is read.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/ruuvibridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ruuvibridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
			Topic: "ruuvi/#",
			Republish: RepublishConfig{
				Measurement: "Temp",
			},
		},
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
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:        100,
			FlushInterval:    10,
			Measurement:      "Temp",
			TagName:          "Device",
			PollInterval:     300,
			RetryBufferLimit: 1000,
		},
		Grafana: GrafanaConfig{
			Transport:   "http",
			Measurement: "Temp",
			VerifyTLS:   true,
			Timeout:     5,
		},
		Publish: PublishConfig{
			RepublishIntervalMS: 200,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Format:    "json",
			Output:    "stdout",
			SyslogTag: "ruuvibridge",
		},
	}
}

// envOverride binds one RUUVIBRIDGE_* variable to a setting.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string)
}

func setString(field func(*Config) *string) func(*Config, string) {
	return func(cfg *Config, v string) { *field(cfg) = v }
}

// setInt ignores values that are not integers, leaving the file's value.
func setInt(field func(*Config) *int) func(*Config, string) {
	return func(cfg *Config, v string) {
		if n, err := strconv.Atoi(v); err == nil {
			*field(cfg) = n
		}
	}
}

var envOverrides = []envOverride{
	{"RUUVIBRIDGE_DATABASE_PATH", setString(func(c *Config) *string { return &c.Database.Path })},

	{"RUUVIBRIDGE_MQTT_HOST", setString(func(c *Config) *string { return &c.MQTT.Broker.Host })},
	{"RUUVIBRIDGE_MQTT_PORT", setInt(func(c *Config) *int { return &c.MQTT.Broker.Port })},
	{"RUUVIBRIDGE_MQTT_USERNAME", setString(func(c *Config) *string { return &c.MQTT.Auth.Username })},
	{"RUUVIBRIDGE_MQTT_PASSWORD", setString(func(c *Config) *string { return &c.MQTT.Auth.Password })},
	{"RUUVIBRIDGE_MQTT_TOPIC", setString(func(c *Config) *string { return &c.MQTT.Topic })},

	{"RUUVIBRIDGE_API_HOST", setString(func(c *Config) *string { return &c.API.Host })},
	{"RUUVIBRIDGE_API_PORT", setInt(func(c *Config) *int { return &c.API.Port })},

	{"RUUVIBRIDGE_INFLUXDB_URL", setString(func(c *Config) *string { return &c.InfluxDB.URL })},
	{"RUUVIBRIDGE_INFLUXDB_TOKEN", setString(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"RUUVIBRIDGE_INFLUXDB_PASSWORD", setString(func(c *Config) *string { return &c.InfluxDB.Password })},

	{"RUUVIBRIDGE_GRAFANA_URL", setString(func(c *Config) *string { return &c.Grafana.URL })},
	{"RUUVIBRIDGE_GRAFANA_TOKEN", setString(func(c *Config) *string { return &c.Grafana.Token })},

	{"RUUVIBRIDGE_LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
}

// applyEnvOverrides copies every non-empty RUUVIBRIDGE_* variable into cfg.
// Secrets are expected to arrive this way rather than in the file.
func applyEnvOverrides(cfg *Config) {
	for _, o := range envOverrides {
		if v := os.Getenv(o.name); v != "" {
			o.apply(cfg, v)
		}
	}
}

// problems collects validation failures, each naming the offending key.
type problems []error

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p *problems) check(ok bool, msg string) {
	if !ok {
		p.add("%s", msg)
	}
}

func validPort(port int) bool { return port >= 1 && port <= 65535 }

// Validate reports every invalid setting at once, joined with errors.Join.
func (c *Config) Validate() error {
	var p problems

	p.check(c.Database.Path != "", "database.path is required")

	p.check(c.MQTT.Broker.Host != "", "mqtt.broker.host is required")
	p.check(validPort(c.MQTT.Broker.Port), "mqtt.broker.port must be between 1 and 65535")
	p.check(c.MQTT.QoS >= 0 && c.MQTT.QoS <= 2, "mqtt.qos must be 0, 1, or 2")
	switch {
	case c.MQTT.Topic == "":
		p.add("mqtt.topic is required")
	case !validTopicFilter(c.MQTT.Topic):
		p.add("mqtt.topic %q is not a valid subscription filter", c.MQTT.Topic)
	}
	p.check(!strings.ContainsAny(c.MQTT.Republish.Prefix, "+#"), "mqtt.republish.prefix must not contain wildcards")

	p.check(!c.API.Enabled || validPort(c.API.Port), "api.port must be between 1 and 65535")

	if c.InfluxDB.Enabled {
		p.check(c.InfluxDB.URL != "", "influxdb.url is required when influxdb is enabled")
		p.check(c.InfluxDB.Bucket != "" || c.InfluxDB.Database != "",
			"influxdb.bucket or influxdb.database is required when influxdb is enabled")
		p.check(c.InfluxDB.Measurement != "", "influxdb.measurement is required")
		p.check(c.InfluxDB.TagName != "", "influxdb.tag_name is required")
	}
	p.check(c.InfluxDB.PollInterval > 0, "influxdb.poll_interval must be positive")

	if g := c.Grafana; g.Enabled {
		p.check(g.URL != "", "grafana.url is required when grafana is enabled")
		p.check(g.Token != "", "grafana.token is required when grafana is enabled")
		p.check(g.PushID != "", "grafana.push_id is required when grafana is enabled")
		p.check(g.Measurement != "", "grafana.measurement is required when grafana is enabled")
		p.check(g.Transport == "http" || g.Transport == "websocket", "grafana.transport must be http or websocket")
	}

	p.check(c.Publish.RepublishIntervalMS > 0, "publish.republish_interval_ms must be positive")

	switch c.Logging.Format {
	case "json", "text", "console":
	default:
		p.add("logging.format %q must be json, text, or console", c.Logging.Format)
	}
	switch c.Logging.Output {
	case "stdout", "stderr", "syslog":
	default:
		p.add("logging.output %q must be stdout, stderr, or syslog", c.Logging.Output)
	}

	// Entries are parsed by the name table; only empty ones are rejected here
	for i, m := range c.Mappings {
		if strings.TrimSpace(m.Address) == "" || strings.TrimSpace(m.Name) == "" {
			p.add("mappings[%d] needs both address and name", i)
		}
	}

	return errors.Join(p...)
}

// validTopicFilter reports whether filter is a well-formed MQTT
// subscription filter: "#" only as the whole last level, "+" only as a
// whole level.
func validTopicFilter(filter string) bool {
	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case level == "#":
			if i != len(levels)-1 {
				return false
			}
		case level == "+":
		case strings.ContainsAny(level, "+#"):
			return false
		}
	}
	return true
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// ReadTimeout also bounds reading the request headers.
func (t APITimeoutConfig) ReadTimeout() time.Duration  { return seconds(t.Read) }
func (t APITimeoutConfig) WriteTimeout() time.Duration { return seconds(t.Write) }
func (t APITimeoutConfig) IdleTimeout() time.Duration  { return seconds(t.Idle) }

// RequestTimeout is the per-push timeout, 0 when unset.
func (g GrafanaConfig) RequestTimeout() time.Duration { return seconds(g.Timeout) }

// PollInterval returns the aggregate flush period.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.InfluxDB.PollInterval)
}

// RepublishInterval returns the current-reading republish period.
func (c *Config) RepublishInterval() time.Duration {
	return time.Duration(c.Publish.RepublishIntervalMS) * time.Millisecond
}
