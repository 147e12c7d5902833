// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Scan     ScanConfig     `yaml:"scan"`
	Capture  CaptureConfig  `yaml:"capture"`
	Decoder  DecoderConfig  `yaml:"decoder"`
	Feedback FeedbackConfig `yaml:"feedback"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Output string `yaml:"output" default:"stdout"`
	Level  string `yaml:"level" default:"info" validate:"omitempty,oneof=debug info warn warning error"`
}

// ScanConfig represents scan session configuration.
type ScanConfig struct {
	FrameIntervalMs  int `yaml:"frame_interval_ms" default:"100" validate:"gte=1,lte=5000"`
	AcquireTimeoutMs int `yaml:"acquire_timeout_ms" default:"5000" validate:"gte=100"`
	ReleaseTimeoutMs int `yaml:"release_timeout_ms" default:"3000" validate:"gte=100"`
}

// FrameInterval returns the decode loop frame interval.
func (c ScanConfig) FrameInterval() time.Duration {
	return time.Duration(c.FrameIntervalMs) * time.Millisecond
}

// AcquireTimeout returns the device acquisition timeout.
func (c ScanConfig) AcquireTimeout() time.Duration {
	return time.Duration(c.AcquireTimeoutMs) * time.Millisecond
}

// ReleaseTimeout returns the stream/decoder teardown timeout.
func (c ScanConfig) ReleaseTimeout() time.Duration {
	return time.Duration(c.ReleaseTimeoutMs) * time.Millisecond
}

// CaptureConfig represents the capture backend configuration.
type CaptureConfig struct {
	Backend  string         `yaml:"backend" default:"sim" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// DecoderConfig represents the decode engine configuration.
type DecoderConfig struct {
	Engine   string         `yaml:"engine" default:"sim" validate:"required"`
	Settings map[string]any `yaml:"settings"`
}

// FeedbackConfig represents success feedback configuration.
type FeedbackConfig struct {
	Enabled          bool     `yaml:"enabled"`
	OnDecoded        []string `yaml:"on_decoded"`
	CommandTimeoutMs int      `yaml:"command_timeout_ms" default:"2000" validate:"gte=100"`
}

// CommandTimeout returns the per-command feedback hook timeout.
func (c FeedbackConfig) CommandTimeout() time.Duration {
	return time.Duration(c.CommandTimeoutMs) * time.Millisecond
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns the built-in configuration, used when no file is given.
func Default() (*Config, error) {
	var cfg Config
	cfg.overrideFromEnv()
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SCANBOX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCANBOX_CAPTURE_BACKEND"); v != "" {
		c.Capture.Backend = v
	}
	if v := os.Getenv("SCANBOX_DECODER_ENGINE"); v != "" {
		c.Decoder.Engine = v
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	// A frame must fit inside the acquisition window, otherwise the first
	// decode attempt can outlive the acquisition it belongs to.
	if c.Scan.FrameIntervalMs >= c.Scan.AcquireTimeoutMs {
		return errors.Newf("frame_interval_ms (%d) must be less than acquire_timeout_ms (%d)",
			c.Scan.FrameIntervalMs, c.Scan.AcquireTimeoutMs)
	}

	if c.Feedback.Enabled && len(c.Feedback.OnDecoded) == 0 {
		return errors.New("feedback is enabled but no on_decoded commands are configured")
	}

	return nil
}
