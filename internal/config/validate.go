package config

import (
	"fmt"
	"strings"

	"github.com/shaunagostinho/relalt/internal/altitude"
	"github.com/shaunagostinho/relalt/internal/nmea"
)

// Error is a configuration error. It is fatal and reported before any
// device is opened.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string { return "config: " + e.Field + ": " + e.Reason }

// Validate checks every option. PortPath may be empty for the serial
// type; the caller resolves it interactively.
func (c *Config) Validate() error {
	switch c.GPS.Type {
	case "serial", "demo":
	default:
		return &Error{Field: "gps.type", Reason: fmt.Sprintf("unknown type %q (want serial or demo)", c.GPS.Type)}
	}
	if c.GPS.BaudRate <= 0 {
		return &Error{Field: "gps.baud_rate", Reason: fmt.Sprintf("must be positive, got %d", c.GPS.BaudRate)}
	}
	if c.Calibration.BaseSamples < altitude.MinSamples {
		return &Error{
			Field:  "calibration.base_samples",
			Reason: fmt.Sprintf("must be at least %d for sample variance, got %d", altitude.MinSamples, c.Calibration.BaseSamples),
		}
	}
	for _, q := range c.Calibration.AcceptQuality {
		if q < 0 || q > 9 {
			return &Error{Field: "calibration.accept_quality", Reason: fmt.Sprintf("quality %d outside 0-9", q)}
		}
	}
	for _, t := range c.Calibration.Talkers {
		if len(t) != 2 {
			return &Error{Field: "calibration.talkers", Reason: fmt.Sprintf("talker %q must be two characters", t)}
		}
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return &Error{Field: "logging.level", Reason: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	if c.Logging.CSVEnabled && c.Logging.CSVPath == "" {
		return &Error{Field: "logging.csv_path", Reason: "required when csv_enabled is set"}
	}
	if c.Server.Enabled && c.Server.ListenAddr == "" {
		return &Error{Field: "server.listen_addr", Reason: "required when server is enabled"}
	}
	if c.MQTT.Enabled && (c.MQTT.Broker == "" || c.MQTT.Topic == "") {
		return &Error{Field: "mqtt", Reason: "broker and topic are required when mqtt is enabled"}
	}
	return nil
}

// Policy converts AcceptQuality to an acceptance policy.
func (c *Config) Policy() altitude.Policy {
	if len(c.Calibration.AcceptQuality) == 0 {
		return altitude.AcceptAll()
	}
	p := altitude.Policy{Accept: make([]nmea.FixQuality, 0, len(c.Calibration.AcceptQuality))}
	for _, q := range c.Calibration.AcceptQuality {
		p.Accept = append(p.Accept, nmea.FixQuality(q))
	}
	return p
}

// Validator builds the sentence validator for the configured talkers.
func (c *Config) Validator() nmea.Validator {
	talkers := make([]string, len(c.Calibration.Talkers))
	for i, t := range c.Calibration.Talkers {
		talkers[i] = strings.ToUpper(t)
	}
	return nmea.Validator{Talkers: talkers}
}
