/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/timesignal/internal/carrier"
	"github.com/friendsincode/timesignal/internal/timecode"
	"gopkg.in/yaml.v3"
)

// Journal database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

const envPrefix = "TIMESIGNAL_"

// Config covers process level configuration. Values come from defaults, an
// optional YAML file, then TIMESIGNAL_* environment variables, in that order.
type Config struct {
	Environment string `yaml:"environment"`
	LogLevel    string `yaml:"log_level"`

	// Transmission
	Service       string        `yaml:"service"`
	Minutes       int           `yaml:"minutes"`
	CarrierOnly   bool          `yaml:"carrier_only"`
	Verbose       bool          `yaml:"verbose"`
	TimeZone      string        `yaml:"time_zone"`
	JJYOffset     time.Duration `yaml:"jjy_offset"` // Shift applied to the instant JJY frames are encoded from
	LateThreshold time.Duration `yaml:"late_threshold"`

	// Timing
	RealtimePriority int           `yaml:"realtime_priority"` // SCHED_FIFO priority; 0 disables
	TimerGuard       time.Duration `yaml:"timer_guard"`

	// Carrier driver
	Driver         string  `yaml:"driver"`
	GPIOPin        int     `yaml:"gpio_pin"`
	PeripheralBase uint32  `yaml:"peripheral_base"`
	OscillatorHz   float64 `yaml:"osc_hz"` // 0 reads the device tree
	PLLDHz         float64 `yaml:"plld_hz"`
	MASH           int     `yaml:"mash"`

	// Status surface
	HTTPBind      string `yaml:"http_bind"`
	LogBufferSize int    `yaml:"log_buffer_size"`

	// Event forwarding
	NATSURL       string `yaml:"nats_url"`
	NATSToken     string `yaml:"nats_token"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`

	// Session journal
	JournalBackend DatabaseBackend `yaml:"journal_backend"`
	JournalDSN     string          `yaml:"journal_dsn"`

	// Tracing configuration
	TracingEnabled    bool    `yaml:"tracing_enabled"`
	OTLPEndpoint      string  `yaml:"otlp_endpoint"`
	TracingSampleRate float64 `yaml:"tracing_sample_rate"`

	UnknownEnvWarnings []string `yaml:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment:       "production",
		Minutes:           15,
		TimeZone:          "Local",
		LateThreshold:     10 * time.Millisecond,
		RealtimePriority:  99,
		TimerGuard:        5 * time.Millisecond,
		Driver:            string(carrier.KindGPCLK),
		GPIOPin:           4,
		MASH:              1,
		LogBufferSize:     2000,
		JournalBackend:    DatabaseSQLite,
		OTLPEndpoint:      "localhost:4317",
		TracingSampleRate: 1.0,
	}
}

// Load builds the configuration from defaults, the YAML file at path (or
// TIMESIGNAL_CONFIG when path is empty) and the environment. It does not
// validate; callers apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.UnknownEnvWarnings = detectUnknownEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Environment = getEnv("ENV", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Service = getEnv("SERVICE", c.Service)
	c.Minutes = getEnvInt("MINUTES", c.Minutes)
	c.CarrierOnly = getEnvBool("CARRIER_ONLY", c.CarrierOnly)
	c.Verbose = getEnvBool("VERBOSE", c.Verbose)
	c.TimeZone = getEnv("TIME_ZONE", c.TimeZone)
	c.JJYOffset = getEnvDuration("JJY_OFFSET", c.JJYOffset)
	c.LateThreshold = getEnvDuration("LATE_THRESHOLD", c.LateThreshold)
	c.RealtimePriority = getEnvInt("RT_PRIORITY", c.RealtimePriority)
	c.TimerGuard = getEnvDuration("TIMER_GUARD", c.TimerGuard)
	c.Driver = getEnv("DRIVER", c.Driver)
	c.GPIOPin = getEnvInt("GPIO_PIN", c.GPIOPin)
	c.OscillatorHz = getEnvFloat("OSC_HZ", c.OscillatorHz)
	c.PLLDHz = getEnvFloat("PLLD_HZ", c.PLLDHz)
	c.MASH = getEnvInt("MASH", c.MASH)
	c.HTTPBind = getEnv("HTTP_BIND", c.HTTPBind)
	c.LogBufferSize = getEnvInt("LOG_BUFFER_SIZE", c.LogBufferSize)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSToken = getEnv("NATS_TOKEN", c.NATSToken)
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.WebhookSecret = getEnv("WEBHOOK_SECRET", c.WebhookSecret)
	c.JournalBackend = DatabaseBackend(getEnv("JOURNAL_BACKEND", string(c.JournalBackend)))
	c.JournalDSN = getEnv("JOURNAL_DSN", c.JournalDSN)
	c.TracingEnabled = getEnvBool("TRACING_ENABLED", c.TracingEnabled)
	c.OTLPEndpoint = getEnv("OTLP_ENDPOINT", c.OTLPEndpoint)
	c.TracingSampleRate = getEnvFloat("TRACING_SAMPLE_RATE", c.TracingSampleRate)

	if v := os.Getenv(envPrefix + "PERIPHERAL_BASE"); v != "" {
		base, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			return fmt.Errorf("%sPERIPHERAL_BASE: %w", envPrefix, err)
		}
		c.PeripheralBase = uint32(base)
	}
	return nil
}

// Validate checks every setting the transmitter relies on. An empty service
// is accepted here; the transmitter reports it as a usage error.
func (c *Config) Validate() error {
	var errs []error
	if c.Service != "" {
		if _, err := timecode.ParseStandard(c.Service); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Minutes <= 0 {
		errs = append(errs, fmt.Errorf("minutes must be positive, got %d", c.Minutes))
	}
	if _, err := carrier.ParseKind(c.Driver); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.MASH < 0 || c.MASH > 3 {
		errs = append(errs, fmt.Errorf("mash must be 0-3, got %d", c.MASH))
	}
	if c.RealtimePriority < 0 || c.RealtimePriority > 99 {
		errs = append(errs, fmt.Errorf("realtime priority must be 0-99, got %d", c.RealtimePriority))
	}
	if c.OscillatorHz < 0 || c.PLLDHz < 0 {
		errs = append(errs, fmt.Errorf("clock source frequencies must not be negative"))
	}
	if c.TimerGuard < 0 || c.TimerGuard >= time.Second {
		errs = append(errs, fmt.Errorf("timer guard %v out of range", c.TimerGuard))
	}
	if c.JournalDSN != "" && c.JournalBackend != DatabasePostgres && c.JournalBackend != DatabaseMySQL && c.JournalBackend != DatabaseSQLite {
		errs = append(errs, fmt.Errorf("unsupported journal backend %q", c.JournalBackend))
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("tracing sample rate must be 0-1, got %v", c.TracingSampleRate))
	}
	return errors.Join(errs...)
}

// Location resolves the civil time zone frames are encoded in.
func (c *Config) Location() (*time.Location, error) {
	switch c.TimeZone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// GPCLK returns the carrier driver settings.
func (c *Config) GPCLK() carrier.GPCLKConfig {
	return carrier.GPCLKConfig{
		Pin:            c.GPIOPin,
		PeripheralBase: c.PeripheralBase,
		OscillatorHz:   c.OscillatorHz,
		PLLDHz:         c.PLLDHz,
		MASH:           c.MASH,
	}
}

var knownEnv = map[string]bool{
	"CONFIG": true, "ENV": true, "LOG_LEVEL": true, "SERVICE": true, "MINUTES": true,
	"CARRIER_ONLY": true, "VERBOSE": true, "TIME_ZONE": true, "JJY_OFFSET": true,
	"LATE_THRESHOLD": true, "RT_PRIORITY": true, "TIMER_GUARD": true, "DRIVER": true,
	"GPIO_PIN": true, "PERIPHERAL_BASE": true, "PLLD_HZ": true, "OSC_HZ": true, "MASH": true,
	"HTTP_BIND": true, "NATS_URL": true, "NATS_TOKEN": true, "REDIS_ADDR": true,
	"REDIS_PASSWORD": true, "REDIS_DB": true, "JOURNAL_BACKEND": true, "JOURNAL_DSN": true,
	"TRACING_ENABLED": true, "OTLP_ENDPOINT": true, "TRACING_SAMPLE_RATE": true,
	"LOG_BUFFER_SIZE": true, "WEBHOOK_URL": true, "WEBHOOK_SECRET": true,
}

// detectUnknownEnv reports TIMESIGNAL_* variables that nothing reads, which
// are usually typos.
func detectUnknownEnv() []string {
	var warnings []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		name, ok := strings.CutPrefix(key, envPrefix)
		if !ok || knownEnv[name] {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("unknown env key %s is ignored", key))
	}
	sort.Strings(warnings)
	return warnings
}

func getEnv(key, def string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(envPrefix + key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(envPrefix + key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(envPrefix + key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
