package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic thermostat service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	API        APIConfig        `yaml:"api"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Security   SecurityConfig   `yaml:"security"`
	Thermostat ThermostatConfig `yaml:"thermostat"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings.
type JWTConfig struct {
	Secret string `yaml:"secret"`

	// AccessTokenTTL is the lifetime of issued tokens, in minutes.
	AccessTokenTTL int `yaml:"access_token_ttl"`
}

// ThermostatConfig describes the single thermostat instance this service runs.
//
// Optional temperatures are pointers: nil means "not configured", which is
// different from a configured value of zero.
type ThermostatConfig struct {
	Name     string `yaml:"name"`
	UniqueID string `yaml:"unique_id"`

	// HeaterEntityID identifies the on/off actuator (heater or AC switch).
	HeaterEntityID string `yaml:"heater_entity_id"`

	// SensorEntityID identifies the temperature sensor.
	SensorEntityID string `yaml:"sensor_entity_id"`

	// ACMode selects cooling semantics (turn on when too hot).
	ACMode bool `yaml:"ac_mode"`

	MinTemp    *float64 `yaml:"min_temp"`
	MaxTemp    *float64 `yaml:"max_temp"`
	TargetTemp *float64 `yaml:"target_temp"`

	// MinCycleDuration is the minimum time the actuator must hold its state
	// before a non-forced evaluation may change it. Zero disables debouncing.
	MinCycleDuration time.Duration `yaml:"min_cycle_duration"`

	ColdTolerance float64 `yaml:"cold_tolerance"`
	HotTolerance  float64 `yaml:"hot_tolerance"`

	// KeepAlive enables periodic re-evaluation that resends the current command.
	KeepAlive time.Duration `yaml:"keep_alive"`

	// InitialHVACMode is one of "heat", "cool", "off" (empty means restore).
	InitialHVACMode string `yaml:"initial_hvac_mode"`

	// Precision is one of "whole", "halves" or "half", "tenths" or "tenth"
	// (empty means tenths).
	Precision string `yaml:"precision"`

	AwayTemp     *float64 `yaml:"away_temp"`
	EcoTemp      *float64 `yaml:"eco_temp"`
	BoostTemp    *float64 `yaml:"boost_temp"`
	ComfortTemp  *float64 `yaml:"comfort_temp"`
	HomeTemp     *float64 `yaml:"home_temp"`
	SleepTemp    *float64 `yaml:"sleep_temp"`
	ActivityTemp *float64 `yaml:"activity_temp"`

	// StartupWait bounds how long startup waits for the actuator's retained
	// state before restoring.
	StartupWait time.Duration `yaml:"startup_wait"`

	Actuator ActuatorConfig `yaml:"actuator"`
}

// ActuatorConfig selects how actuator commands are delivered.
type ActuatorConfig struct {
	// Type is "mqtt" (default) or "gpio".
	Type string `yaml:"type"`

	// GPIOChip is the character device name, e.g. "gpiochip0".
	GPIOChip string `yaml:"gpio_chip"`

	// GPIOLine is the relay output line offset (BCM numbering on a Pi).
	GPIOLine int `yaml:"gpio_line"`

	// ActiveLow inverts the relay output.
	ActiveLow bool `yaml:"active_low"`
}

// PresetTemps returns the configured preset temperatures keyed by preset name.
// Unconfigured presets are omitted.
func (t ThermostatConfig) PresetTemps() map[string]float64 {
	all := map[string]*float64{
		"away":     t.AwayTemp,
		"eco":      t.EcoTemp,
		"boost":    t.BoostTemp,
		"comfort":  t.ComfortTemp,
		"home":     t.HomeTemp,
		"sleep":    t.SleepTemp,
		"activity": t.ActivityTemp,
	}
	out := make(map[string]float64, len(all))
	for name, v := range all {
		if v != nil {
			out[name] = *v
		}
	}
	return out
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_THERMOSTAT_TARGET_TEMP
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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

// Default tolerance, in degrees, applied when none is configured.
const DefaultTolerance = 0.3

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Gray Logic",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/thermostat.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-thermostat",
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
			Port:    8090,
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
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{AccessTokenTTL: 15},
		},
		Thermostat: ThermostatConfig{
			Name:          "Gray Logic Thermostat",
			UniqueID:      "thermostat",
			ColdTolerance: DefaultTolerance,
			HotTolerance:  DefaultTolerance,
			StartupWait:   2 * time.Second,
			Actuator: ActuatorConfig{
				Type:     "mqtt",
				GPIOChip: "gpiochip0",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (always override in production)
	if v := os.Getenv("GRAYLOGIC_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}

	// Thermostat
	if v := os.Getenv("GRAYLOGIC_THERMOSTAT_INITIAL_HVAC_MODE"); v != "" {
		cfg.Thermostat.InitialHVACMode = v
	}
	if v := os.Getenv("GRAYLOGIC_THERMOSTAT_TARGET_TEMP"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GRAYLOGIC_THERMOSTAT_TARGET_TEMP: %w", err)
		}
		cfg.Thermostat.TargetTemp = &f
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.API.Enabled {
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set GRAYLOGIC_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	errs = append(errs, c.Thermostat.validate()...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate returns the list of thermostat configuration problems.
func (t ThermostatConfig) validate() []string {
	var errs []string

	if t.HeaterEntityID == "" {
		errs = append(errs, "thermostat.heater_entity_id is required")
	}
	if t.SensorEntityID == "" {
		errs = append(errs, "thermostat.sensor_entity_id is required")
	}
	if t.UniqueID == "" {
		errs = append(errs, "thermostat.unique_id is required")
	}
	if t.MinCycleDuration < 0 {
		errs = append(errs, "thermostat.min_cycle_duration must not be negative")
	}
	if t.KeepAlive < 0 {
		errs = append(errs, "thermostat.keep_alive must not be negative")
	}
	if t.ColdTolerance < 0 || t.HotTolerance < 0 {
		errs = append(errs, "thermostat tolerances must not be negative")
	}
	if t.MinTemp != nil && t.MaxTemp != nil && *t.MinTemp > *t.MaxTemp {
		errs = append(errs, "thermostat.min_temp must not exceed thermostat.max_temp")
	}

	switch strings.ToLower(strings.TrimSpace(t.InitialHVACMode)) {
	case "", "off":
	case "heat":
		if t.ACMode {
			errs = append(errs, "thermostat.initial_hvac_mode heat is not available with ac_mode")
		}
	case "cool":
		if !t.ACMode {
			errs = append(errs, "thermostat.initial_hvac_mode cool requires ac_mode")
		}
	default:
		errs = append(errs, "thermostat.initial_hvac_mode must be heat, cool, or off")
	}

	switch strings.ToLower(strings.TrimSpace(t.Precision)) {
	case "", "whole", "halves", "half", "tenths", "tenth":
	default:
		errs = append(errs, "thermostat.precision must be whole, halves (half), or tenths (tenth)")
	}

	switch strings.ToLower(t.Actuator.Type) {
	case "", "mqtt":
	case "gpio":
		if t.Actuator.GPIOChip == "" {
			errs = append(errs, "thermostat.actuator.gpio_chip is required for gpio actuators")
		}
		if t.Actuator.GPIOLine < 0 {
			errs = append(errs, "thermostat.actuator.gpio_line must not be negative")
		}
	default:
		errs = append(errs, "thermostat.actuator.type must be mqtt or gpio")
	}

	return errs
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
