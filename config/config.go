// Package config loads kiosk settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"kiosk-age-verification/shared"
)

// Kiosk runtime modes.
const (
	ModeTemporal   = "temporal"
	ModeStandalone = "standalone"
)

// Config holds everything the kiosk binaries need.
type Config struct {
	TemporalHostPort  string `yaml:"temporal_hostport"`
	TemporalNamespace string `yaml:"temporal_namespace"`

	KioskID string `yaml:"kiosk_id"`
	Mode    string `yaml:"mode"`

	TimeoutIDMs   int64 `yaml:"timeout_id_ms"`
	TimeoutFaceMs int64 `yaml:"timeout_face_ms"`
	IsFullFlow    bool  `yaml:"is_full_flow"`
	ShowButtons   bool  `yaml:"show_buttons"`

	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	SimScript        string `yaml:"sim_script"`
	EngineLicenseKey string `yaml:"engine_license_key"`
}

// Load reads the file named by KIOSK_CONFIG, if set, then applies
// environment overrides and defaults.
func Load() (*Config, error) {
	cfg := &Config{}

	if path := os.Getenv("KIOSK_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if cfg.Mode != ModeTemporal && cfg.Mode != ModeStandalone {
		return nil, fmt.Errorf("unknown kiosk mode %q", cfg.Mode)
	}
	return cfg, nil
}

// Defaults is the flow context the resting screen starts from.
func (c *Config) Defaults() shared.FlowContext {
	return shared.FlowContext{
		IsFullFlow:    c.IsFullFlow,
		TimeoutIDMs:   c.TimeoutIDMs,
		TimeoutFaceMs: c.TimeoutFaceMs,
	}
}

func (c *Config) applyEnv() error {
	setString(&c.TemporalHostPort, "TEMPORAL_HOSTPORT")
	setString(&c.TemporalNamespace, "TEMPORAL_NAMESPACE")
	setString(&c.KioskID, "KIOSK_ID")
	setString(&c.Mode, "KIOSK_MODE")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.SimScript, "SIM_SCRIPT")
	setString(&c.EngineLicenseKey, "ENGINE_LICENSE_KEY")

	// An explicitly empty HTTP_ADDR disables the server.
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		c.HTTPAddr = v
	} else if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}

	if err := setInt(&c.TimeoutIDMs, "TIMEOUT_ID_MS"); err != nil {
		return err
	}
	if err := setInt(&c.TimeoutFaceMs, "TIMEOUT_FACE_MS"); err != nil {
		return err
	}
	if err := setBool(&c.IsFullFlow, "IS_FULL_FLOW"); err != nil {
		return err
	}
	return setBool(&c.ShowButtons, "SHOW_BUTTONS")
}

func (c *Config) applyDefaults() {
	if c.TemporalHostPort == "" {
		c.TemporalHostPort = "localhost:7233"
	}
	if c.TemporalNamespace == "" {
		c.TemporalNamespace = "default"
	}
	if c.KioskID == "" {
		c.KioskID = "kiosk-1"
	}
	if c.Mode == "" {
		c.Mode = ModeTemporal
	}
	c.Mode = strings.ToLower(c.Mode)
	if c.TimeoutIDMs <= 0 {
		c.TimeoutIDMs = shared.DefaultTimeoutIDMs
	}
	if c.TimeoutFaceMs <= 0 {
		c.TimeoutFaceMs = shared.DefaultTimeoutFaceMs
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int64, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = b
	return nil
}
