package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the runner's file/env configuration. Durations are plain
// integers in the file (seconds or milliseconds, per field name) so the YAML
// stays readable next to the service's own units.
type Config struct {
	ServerURL string `yaml:"server_url"`
	AgentID   string `yaml:"agent_id"`
	Token     string `yaml:"token"`
	Provider  string `yaml:"provider"`

	HistoryPath string `yaml:"history_path"`

	QueueTimeoutSec    int  `yaml:"queue_timeout_sec"`
	QueueWaitSec       int  `yaml:"queue_wait_sec"`
	PushOpenTimeoutMs  int  `yaml:"push_open_timeout_ms"`
	PollIntervalMs     int  `yaml:"poll_interval_ms"`
	ProviderDeadlineMs int  `yaml:"provider_deadline_ms"`
	ActionCap          int  `yaml:"action_cap"`
	DisableFallback    bool `yaml:"disable_fallback"`
}

func defaults() Config {
	return Config{
		ServerURL:          "http://localhost:8080",
		Provider:           "pass",
		QueueTimeoutSec:    120,
		QueueWaitSec:       25,
		PushOpenTimeoutMs:  15000,
		PollIntervalMs:     1500,
		ProviderDeadlineMs: 4000,
		ActionCap:          32,
	}
}

// Load builds the effective configuration: defaults, then the YAML file (if
// given), then environment variables. A .env file in the working directory is
// honored first so local runs need no exported shell state.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()

	if cfg.AgentID == "" {
		return Config{}, fmt.Errorf("agent_id is required (config file or ARENA_AGENT_ID)")
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.ServerURL, "ARENA_SERVER_URL")
	setString(&c.AgentID, "ARENA_AGENT_ID")
	setString(&c.Token, "ARENA_TOKEN")
	setString(&c.Provider, "ARENA_PROVIDER")
	setString(&c.HistoryPath, "ARENA_HISTORY_PATH")
	setInt(&c.QueueTimeoutSec, "ARENA_QUEUE_TIMEOUT_SEC")
	setInt(&c.QueueWaitSec, "ARENA_QUEUE_WAIT_SEC")
	setInt(&c.PushOpenTimeoutMs, "ARENA_PUSH_OPEN_TIMEOUT_MS")
	setInt(&c.PollIntervalMs, "ARENA_POLL_INTERVAL_MS")
	setInt(&c.ProviderDeadlineMs, "ARENA_PROVIDER_DEADLINE_MS")
	setInt(&c.ActionCap, "ARENA_ACTION_CAP")
	if v, ok := os.LookupEnv("ARENA_DISABLE_FALLBACK"); ok {
		b, err := strconv.ParseBool(v)
		if err == nil {
			c.DisableFallback = b
		}
	}
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
	}
}

func (c Config) QueueTimeout() time.Duration {
	return time.Duration(c.QueueTimeoutSec) * time.Second
}

func (c Config) QueueWait() time.Duration {
	return time.Duration(c.QueueWaitSec) * time.Second
}

func (c Config) PushOpenTimeout() time.Duration {
	return time.Duration(c.PushOpenTimeoutMs) * time.Millisecond
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c Config) ProviderDeadline() time.Duration {
	return time.Duration(c.ProviderDeadlineMs) * time.Millisecond
}
