// Package config loads quiet-room settings. Sources, lowest to highest
// priority: defaults, a yaml file, QUIET_ROOM_* environment variables, and
// finally command-line flags applied by the caller.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type CredentialBackend string

const (
	CredentialMemory CredentialBackend = "memory"
	CredentialSQLite CredentialBackend = "sqlite"
)

type Config struct {
	// Vendor selects the transport: anthropic, openai, gemini or mock.
	Vendor  string `yaml:"vendor"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`

	Temperature  float32 `yaml:"temperature"`
	HistoryLimit int     `yaml:"history_limit"`
	MaxTokens    int     `yaml:"max_tokens"`
	// RequestTimeout bounds one vendor HTTP exchange. Zero disables it.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Port string `yaml:"port"`

	CredentialBackend CredentialBackend `yaml:"credential_backend"`
	CredentialPath    string            `yaml:"credential_path"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // json or text
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Vendor:            "anthropic",
		Temperature:       0.7,
		HistoryLimit:      10,
		MaxTokens:         8192,
		Port:              "8080",
		CredentialBackend: CredentialSQLite,
		CredentialPath:    defaultCredentialPath(),
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

func defaultCredentialPath() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return filepath.Join(".quiet-room", "credentials.db")
	}
	return filepath.Join(dir, "quiet-room", "credentials.db")
}

// Load builds the config from defaults, the yaml file at path (skipped when
// path is empty and QUIET_ROOM_CONFIG is unset) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("QUIET_ROOM_CONFIG")
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	// yaml leaves fields absent from the file untouched
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (c *Config) applyEnv() error {
	c.Vendor = getEnv("QUIET_ROOM_VENDOR", c.Vendor)
	c.Model = getEnv("QUIET_ROOM_MODEL", c.Model)
	c.BaseURL = getEnv("QUIET_ROOM_BASE_URL", c.BaseURL)
	c.Port = getEnv("QUIET_ROOM_PORT", getEnv("PORT", c.Port))
	c.CredentialBackend = CredentialBackend(getEnv("QUIET_ROOM_CREDENTIAL_BACKEND", string(c.CredentialBackend)))
	c.CredentialPath = getEnv("QUIET_ROOM_CREDENTIAL_PATH", c.CredentialPath)
	c.LogLevel = getEnv("QUIET_ROOM_LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("QUIET_ROOM_LOG_FORMAT", c.LogFormat)

	if v := os.Getenv("QUIET_ROOM_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("QUIET_ROOM_TEMPERATURE: %w", err)
		}
		c.Temperature = float32(f)
	}
	if v := os.Getenv("QUIET_ROOM_HISTORY_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUIET_ROOM_HISTORY_LIMIT: %w", err)
		}
		c.HistoryLimit = n
	}
	if v := os.Getenv("QUIET_ROOM_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUIET_ROOM_MAX_TOKENS: %w", err)
		}
		c.MaxTokens = n
	}
	if v := os.Getenv("QUIET_ROOM_REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUIET_ROOM_REQUEST_TIMEOUT: %w", err)
		}
		c.RequestTimeout = d
	}
	return nil
}

// Validate checks values that would otherwise fail much later.
func (c *Config) Validate() error {
	c.Vendor = strings.ToLower(strings.TrimSpace(c.Vendor))
	switch c.Vendor {
	case "anthropic", "openai", "gemini", "mock":
	default:
		return fmt.Errorf("unsupported vendor %q", c.Vendor)
	}
	switch c.CredentialBackend {
	case CredentialMemory, CredentialSQLite:
	default:
		return fmt.Errorf("unsupported credential backend %q", c.CredentialBackend)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0,2]", c.Temperature)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	if c.CredentialBackend == CredentialSQLite && c.CredentialPath == "" {
		return fmt.Errorf("credential_path is required for the sqlite backend")
	}
	return nil
}
