// Package config loads relalt settings from YAML, .env files and the
// environment, and validates them before any I/O happens.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config holds all relalt configuration.
type Config struct {
	GPS         GPSConfig         `yaml:"gps" json:"gps"`
	Calibration CalibrationConfig `yaml:"calibration" json:"calibration"`
	Logging     LoggingConfig     `yaml:"logging" json:"logging"`
	Server      ServerConfig      `yaml:"server" json:"server"`
	MQTT        MQTTConfig        `yaml:"mqtt" json:"mqtt"`

	path string // file path for save/load
}

type GPSConfig struct {
	Type     string `yaml:"type" json:"type"`          // "serial" or "demo"
	PortPath string `yaml:"port_path" json:"portPath"` // e.g. /dev/ttyACM0 or COM3
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

type CalibrationConfig struct {
	BaseSamples int `yaml:"base_samples" json:"baseSamples"`
	// AcceptQuality lists the GGA fix qualities used for calibration and
	// reporting. Empty accepts every quality.
	AcceptQuality []int    `yaml:"accept_quality" json:"acceptQuality"`
	Talkers       []string `yaml:"talkers" json:"talkers"` // e.g. [GP, GN]
}

type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"` // debug, info, warn, error
	Dir        string `yaml:"dir" json:"dir"`     // per-run log file directory, "" disables
	CSVEnabled bool   `yaml:"csv_enabled" json:"csvEnabled"`
	CSVPath    string `yaml:"csv_path" json:"csvPath"`
}

type ServerConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	ListenAddr string `yaml:"listen_addr" json:"listenAddr"`
}

type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled"`
	Broker   string `yaml:"broker" json:"broker"`
	Topic    string `yaml:"topic" json:"topic"`
	ClientID string `yaml:"client_id" json:"clientId"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GPS: GPSConfig{
			Type:     "serial",
			BaudRate: 9600,
		},
		Calibration: CalibrationConfig{
			BaseSamples:   50,
			AcceptQuality: []int{1, 2},
			Talkers:       []string{"GP"},
		},
		Logging: LoggingConfig{
			Level:   "info",
			Dir:     "logs",
			CSVPath: "logs/readings",
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
		},
		MQTT: MQTTConfig{
			Broker: "tcp://localhost:1883",
			Topic:  "relalt",
		},
	}
}

// Load reads config from a YAML file, then applies .env and environment
// variable overrides. A missing file falls back to defaults; a file that
// exists but does not parse is an error.
func Load(path string, log *zap.SugaredLogger) (*Config, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.With("component", "config")

	cfg := DefaultConfig()
	cfg.path = path

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			log.Infof("no config at %s, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, &Error{Field: path, Reason: err.Error()}
			}
			log.Infof("loaded from %s", path)
		}
	}

	// Load .env file from the same directory as the config, or from CWD
	envPaths := []string{".env"}
	if path != "" {
		envPaths = append([]string{filepath.Join(filepath.Dir(path), ".env")}, envPaths...)
	}
	for _, ep := range envPaths {
		if loadEnvFile(ep) {
			log.Infof("loaded .env from %s", ep)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFile reads a simple KEY=VALUE .env file and sets os env vars.
func loadEnvFile(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		// Real env takes precedence
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
	return true
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: GPS_TYPE, GPS_PORT, GPS_BAUD, BASE_SAMPLES, ACCEPT_QUALITY,
// LOG_LEVEL, LOG_DIR, CSV_ENABLED, CSV_PATH, LISTEN_ADDR, MQTT_BROKER, MQTT_TOPIC
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("GPS_TYPE"); v != "" {
		c.GPS.Type = v
	}
	if v := os.Getenv("GPS_PORT"); v != "" {
		c.GPS.PortPath = v
	}
	if v := os.Getenv("GPS_BAUD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: "GPS_BAUD", Reason: fmt.Sprintf("%q is not an integer", v)}
		}
		c.GPS.BaudRate = n
	}
	if v := os.Getenv("BASE_SAMPLES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &Error{Field: "BASE_SAMPLES", Reason: fmt.Sprintf("%q is not an integer", v)}
		}
		c.Calibration.BaseSamples = n
	}
	if v := os.Getenv("ACCEPT_QUALITY"); v != "" {
		q, err := ParseQualities(v)
		if err != nil {
			return &Error{Field: "ACCEPT_QUALITY", Reason: err.Error()}
		}
		c.Calibration.AcceptQuality = q
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
	if v := os.Getenv("CSV_ENABLED"); v != "" {
		c.Logging.CSVEnabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("CSV_PATH"); v != "" {
		c.Logging.CSVPath = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
		c.Server.Enabled = true
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		c.MQTT.Broker = v
		c.MQTT.Enabled = true
	}
	if v := os.Getenv("MQTT_TOPIC"); v != "" {
		c.MQTT.Topic = v
	}
	return nil
}

// ParseQualities parses a comma-separated quality list such as "1,2".
// "all" yields an empty list, which accepts every quality.
func ParseQualities(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "all") {
		return []int{}, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("%q is not a fix quality", part)
		}
		out = append(out, n)
	}
	return out, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string { return c.path }

// Save writes the config to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
