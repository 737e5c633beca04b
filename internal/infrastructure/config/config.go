package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Controller types.
const (
	ControllerStrip           = "strip"
	ControllerStripCompressed = "strip_compressed"
	ControllerArtNet          = "artnet"
	ControllerPinOne          = "pinone"
	ControllerLedWiz          = "ledwiz"
	ControllerSerialBus       = "serialbus"
	ControllerMQTT            = "mqtt"
)

// Toy types.
const (
	ToyAnalog      = "analog"
	ToyRGB         = "rgb"
	ToyLedStrip    = "ledstrip"
	ToyAnalogGroup = "analog_group"
	ToyRGBGroup    = "rgb_group"
)

// Config is the root configuration structure of the feedback daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Cabinet     CabinetConfig      `yaml:"cabinet"`
	Database    DatabaseConfig     `yaml:"database"`
	MQTT        MQTTConfig         `yaml:"mqtt"`
	Monitor     MonitorConfig      `yaml:"monitor"`
	InfluxDB    InfluxDBConfig     `yaml:"influxdb"`
	Logging     LoggingConfig      `yaml:"logging"`
	ComProxy    ComProxyConfig     `yaml:"comproxy"`
	Controllers []ControllerConfig `yaml:"controllers"`
	Toys        []ToyConfig        `yaml:"toys"`
}

// CabinetConfig contains the tick loop settings.
type CabinetConfig struct {
	Name string `yaml:"name"`

	// TickInterval is the update period in milliseconds.
	TickInterval int `yaml:"tick_interval"`

	// TelemetryInterval is the InfluxDB write period in seconds.
	TelemetryInterval int `yaml:"telemetry_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
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

	// LayerIngress subscribes to feedback/toy/+/layer/+ and applies the
	// payloads to toy layers.
	LayerIngress bool `yaml:"layer_ingress"`
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

// MonitorConfig contains the status HTTP server settings.
type MonitorConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	Stream   StreamConfig     `yaml:"stream"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// StreamConfig contains the websocket frame stream settings.
type StreamConfig struct {
	// MinInterval is the minimum time between two frames of one controller
	// in milliseconds.
	MinInterval  int `yaml:"min_interval"`
	PingInterval int `yaml:"ping_interval"`
	PongTimeout  int `yaml:"pong_timeout"`
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

// ComProxyConfig selects how COM-port proxy servers are run.
type ComProxyConfig struct {
	// Binary is the comproxy executable. Empty runs servers in process.
	Binary string `yaml:"binary"`

	// SocketDir overrides the socket directory. Default: the temp directory.
	SocketDir string `yaml:"socket_dir"`
}

// ControllerConfig describes one output controller. Which fields apply
// depends on Type.
type ControllerConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Serial line (strip, strip_compressed, pinone, serialbus).
	Port     string `yaml:"port,omitempty"`
	Baud     int    `yaml:"baud,omitempty"`
	Parity   string `yaml:"parity,omitempty"`
	DataBits int    `yaml:"data_bits,omitempty"`
	StopBits int    `yaml:"stop_bits,omitempty"`
	DTR      bool   `yaml:"dtr,omitempty"`

	// Strip timing in milliseconds and LEDs per strip (up to 10 strips).
	ReadTimeout    int   `yaml:"read_timeout,omitempty"`
	OpenSettle     int   `yaml:"open_settle,omitempty"`
	HandshakeStart int   `yaml:"handshake_start,omitempty"`
	HandshakeEnd   int   `yaml:"handshake_end,omitempty"`
	Leds           []int `yaml:"leds,omitempty"`

	// strip_compressed options.
	SendPerLedstripLength bool `yaml:"send_per_ledstrip_length,omitempty"`
	TestOnConnect         bool `yaml:"test_on_connect,omitempty"`
	UseCompression        bool `yaml:"use_compression,omitempty"`

	// artnet.
	Universe int    `yaml:"universe,omitempty"`
	Address  string `yaml:"address,omitempty"`

	// ledwiz.
	Unit       int `yaml:"unit,omitempty"`
	PulseSpeed int `yaml:"pulse_speed,omitempty"`

	// serialbus.
	Units          int `yaml:"units,omitempty"`
	OutputsPerUnit int `yaml:"outputs_per_unit,omitempty"`

	// mqtt.
	Outputs int `yaml:"outputs,omitempty"`
	QoS     int `yaml:"qos,omitempty"`
}

// ToyConfig describes one toy. Which fields apply depends on Type.
type ToyConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Controller and Channel bind the toy's first output.
	Controller string `yaml:"controller,omitempty"`
	Channel    int    `yaml:"channel,omitempty"`

	// Channels binds rgb outputs individually; default Channel..Channel+2.
	Channels []int `yaml:"channels,omitempty"`

	Curve      string  `yaml:"curve,omitempty"`
	Brightness float64 `yaml:"brightness,omitempty"`
	Gamma      float64 `yaml:"gamma,omitempty"`
	ColorOrder string  `yaml:"color_order,omitempty"`

	// Matrix geometry (ledstrip, groups).
	Width       int    `yaml:"width,omitempty"`
	Height      int    `yaml:"height,omitempty"`
	Arrangement string `yaml:"arrangement,omitempty"`
	Serpentine  bool   `yaml:"serpentine,omitempty"`

	// Children are the member toys of a group, row by row. An empty name
	// leaves the cell unbound.
	Children []string `yaml:"children,omitempty"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FEEDBACK_SECTION_KEY
// For example: FEEDBACK_DATABASE_PATH, FEEDBACK_MONITOR_PORT
//
// Parameters:
//   - path: YAML file to read; a missing file is an error
//
// Returns:
//   - *Config: Merged and validated configuration
//   - error: Read, parse or validation failure, wrapped with context
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

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Cabinet: CabinetConfig{
			Name:              "cabinet",
			TickInterval:      20,
			TelemetryInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/feedback.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "feedbackd",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Monitor: MonitorConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
			Stream: StreamConfig{
				MinInterval:  100,
				PingInterval: 30,
				PongTimeout:  10,
			},
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
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FEEDBACK_CABINET_NAME"); v != "" {
		cfg.Cabinet.Name = v
	}
	if v := os.Getenv("FEEDBACK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FEEDBACK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FEEDBACK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FEEDBACK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("FEEDBACK_MONITOR_HOST"); v != "" {
		cfg.Monitor.Host = v
	}
	if v := os.Getenv("FEEDBACK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("FEEDBACK_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("FEEDBACK_COMPROXY_BINARY"); v != "" {
		cfg.ComProxy.Binary = v
	}
}

// Validate checks the configuration for structural errors. Every problem is
// reported in one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Cabinet.TickInterval < 1 {
		errs = append(errs, "cabinet.tick_interval must be at least 1 ms")
	}
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Monitor.Enabled && (c.Monitor.Port < 1 || c.Monitor.Port > 65535) {
		errs = append(errs, "monitor.port must be between 1 and 65535")
	}
	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	errs = append(errs, c.validateControllers()...)
	errs = append(errs, c.validateToys()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateControllers() []string {
	var errs []string
	seen := make(map[string]bool, len(c.Controllers))

	for i, ctrl := range c.Controllers {
		where := fmt.Sprintf("controllers[%d]", i)
		if ctrl.Name == "" {
			errs = append(errs, where+".name is required")
		} else {
			where = fmt.Sprintf("controller %q", ctrl.Name)
			if seen[ctrl.Name] {
				errs = append(errs, where+" is defined twice")
			}
			seen[ctrl.Name] = true
		}

		switch ctrl.Type {
		case ControllerStrip, ControllerStripCompressed, ControllerPinOne, ControllerSerialBus:
			if ctrl.Port == "" {
				errs = append(errs, where+" requires a port")
			}
		case ControllerArtNet, ControllerLedWiz:
		case ControllerMQTT:
			if !c.MQTT.Enabled {
				errs = append(errs, where+" requires mqtt.enabled")
			}
		case "":
			errs = append(errs, where+".type is required")
		default:
			errs = append(errs, fmt.Sprintf("%s has unknown type %q", where, ctrl.Type))
		}
		if ctrl.Type == ControllerStrip || ctrl.Type == ControllerStripCompressed {
			if len(ctrl.Leds) > 10 {
				errs = append(errs, where+" lists more than 10 strips")
			}
		}
	}
	return errs
}

func (c *Config) validateToys() []string {
	var errs []string
	controllers := make(map[string]bool, len(c.Controllers))
	for _, ctrl := range c.Controllers {
		controllers[ctrl.Name] = true
	}
	toys := make(map[string]bool, len(c.Toys))
	for _, t := range c.Toys {
		toys[t.Name] = true
	}

	seen := make(map[string]bool, len(c.Toys))
	for i, t := range c.Toys {
		where := fmt.Sprintf("toys[%d]", i)
		if t.Name == "" {
			errs = append(errs, where+".name is required")
		} else {
			where = fmt.Sprintf("toy %q", t.Name)
			if seen[t.Name] {
				errs = append(errs, where+" is defined twice")
			}
			seen[t.Name] = true
		}

		switch t.Type {
		case ToyAnalog, ToyRGB, ToyLedStrip:
			if t.Controller == "" {
				errs = append(errs, where+" requires a controller")
			} else if !controllers[t.Controller] {
				errs = append(errs, fmt.Sprintf("%s references unknown controller %q", where, t.Controller))
			}
			if t.Type == ToyRGB && len(t.Channels) != 0 && len(t.Channels) != 3 {
				errs = append(errs, where+" needs exactly 3 channels")
			}
		case ToyAnalogGroup, ToyRGBGroup:
			if len(t.Children) != t.Width*t.Height {
				errs = append(errs, fmt.Sprintf("%s has %d children for a %dx%d group", where, len(t.Children), t.Width, t.Height))
			}
			for _, child := range t.Children {
				if child != "" && !toys[child] {
					errs = append(errs, fmt.Sprintf("%s references unknown toy %q", where, child))
				}
			}
		case "":
			errs = append(errs, where+".type is required")
		default:
			errs = append(errs, fmt.Sprintf("%s has unknown type %q", where, t.Type))
		}
	}
	return errs
}

// GetTickInterval returns the cabinet tick interval as a Duration.
func (c *Config) GetTickInterval() time.Duration {
	return time.Duration(c.Cabinet.TickInterval) * time.Millisecond
}

// GetTelemetryInterval returns the telemetry interval as a Duration.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Cabinet.TelemetryInterval) * time.Second
}

// GetReadTimeout returns the monitor read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Monitor.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the monitor write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Monitor.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the monitor idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Monitor.Timeouts.Idle) * time.Second
}
