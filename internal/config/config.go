// Package config provides the typed key-value configuration store (C1):
// health-tracking thresholds and retention knobs, validated on write and
// durably snapshotted.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// HealthConfig holds the tunables consumed by the health tracker (C3),
// the event recorder (C4), and the issue aggregator (C6). See spec §3.
type HealthConfig struct {
	ConsecutiveFailureThreshold int           `json:"consecutiveFailureThreshold"`
	WarningThreshold            float64       `json:"warningThreshold"`
	CriticalThreshold           float64       `json:"criticalThreshold"`
	AutoDisableEnabled          bool          `json:"autoDisableEnabled"`
	AutoRecoveryMs              int64         `json:"autoRecoveryMs"`
	EventMaxCount               int           `json:"eventMaxCount"`
	EventRetentionDays          int           `json:"eventRetentionDays"`
	QuotaThreshold              float64       `json:"quotaThreshold"`
	QuotaPollIntervalMs         int64         `json:"quotaPollIntervalMs"`
	StaleIssueMs                int64         `json:"staleIssueMs"`
}

// AutoRecoveryDuration returns AutoRecoveryMs as a time.Duration.
func (h HealthConfig) AutoRecoveryDuration() time.Duration {
	return time.Duration(h.AutoRecoveryMs) * time.Millisecond
}

// StaleIssueDuration returns StaleIssueMs as a time.Duration.
func (h HealthConfig) StaleIssueDuration() time.Duration {
	return time.Duration(h.StaleIssueMs) * time.Millisecond
}

// DefaultHealthConfig returns the documented defaults from spec §3.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		ConsecutiveFailureThreshold: 5,
		WarningThreshold:            70,
		CriticalThreshold:           40,
		AutoDisableEnabled:          true,
		AutoRecoveryMs:              5 * 60 * 1000,
		EventMaxCount:               5000,
		EventRetentionDays:          7,
		QuotaThreshold:              0.1,
		QuotaPollIntervalMs:         60 * 1000,
		StaleIssueMs:                10 * 60 * 1000,
	}
}

// Config is the full process configuration: server settings plus the
// validated, durably-persisted HealthConfig sub-object.
type Config struct {
	Port            int           `json:"-"`
	Host            string        `json:"-"`
	GracefulTimeout time.Duration `json:"-"`
	APIKey          string        `json:"-"`
	LogLevel        string        `json:"-"`
	LogJSON         bool          `json:"-"`
	DataDir         string        `json:"-"`

	Health HealthConfig `json:"health"`
}

// Load reads configuration from environment variables and then
// command-line flags (flags win), mirroring the teacher's precedence
// order in internal/config/config.Load.
func Load() *Config {
	cfg := &Config{
		Port:            8080,
		Host:            "0.0.0.0",
		GracefulTimeout: 15 * time.Second,
		LogLevel:        "info",
		LogJSON:         true,
		DataDir:         defaultDataDir(),
		Health:          DefaultHealthConfig(),
	}

	cfg.loadFromEnv()
	cfg.parseFlags()
	return cfg
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/antigravity-proxy"
	}
	return home + "/.config/antigravity-proxy"
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("ANTIGRAVITY_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("ANTIGRAVITY_HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("ANTIGRAVITY_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("ANTIGRAVITY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("ANTIGRAVITY_LOG_JSON"); v != "" {
		c.LogJSON = v == "true" || v == "1"
	}
	if v := os.Getenv("ANTIGRAVITY_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("ANTIGRAVITY_GRACEFUL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.GracefulTimeout = d
		}
	}
}

var flagsParsed bool

func (c *Config) parseFlags() {
	if flagsParsed {
		return
	}
	flagsParsed = true

	flag.IntVar(&c.Port, "port", c.Port, "server port")
	flag.StringVar(&c.Host, "host", c.Host, "server host")
	flag.StringVar(&c.APIKey, "api-key", c.APIKey, "API key for authentication")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory for persisted state")
	flag.Parse()
}

// ValidationError lists every failing field of a rejected HealthConfig
// patch. No partial application ever happens — see Store.Update.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %v", e.Fields)
}

// Validate checks the cross-field and range invariants from spec §3.
func Validate(h HealthConfig) error {
	var fields []string

	if h.ConsecutiveFailureThreshold < 1 {
		fields = append(fields, "consecutiveFailureThreshold")
	}
	if h.WarningThreshold < 0 || h.WarningThreshold > 100 {
		fields = append(fields, "warningThreshold")
	}
	if h.CriticalThreshold < 0 || h.CriticalThreshold > 100 {
		fields = append(fields, "criticalThreshold")
	}
	if h.WarningThreshold < h.CriticalThreshold {
		fields = append(fields, "warningThreshold<criticalThreshold")
	}
	if h.AutoRecoveryMs <= 0 {
		fields = append(fields, "autoRecoveryMs")
	}
	if h.EventMaxCount < 1000 || h.EventMaxCount > 50000 {
		fields = append(fields, "eventMaxCount")
	}
	if h.EventRetentionDays < 1 || h.EventRetentionDays > 30 {
		fields = append(fields, "eventRetentionDays")
	}
	if h.QuotaThreshold < 0.0 || h.QuotaThreshold > 0.5 {
		fields = append(fields, "quotaThreshold")
	}
	if h.QuotaPollIntervalMs <= 0 {
		fields = append(fields, "quotaPollIntervalMs")
	}
	if h.StaleIssueMs <= 0 {
		fields = append(fields, "staleIssueMs")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
