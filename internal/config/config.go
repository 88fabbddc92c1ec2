// Package config loads journal configuration.
//
// Precedence, highest first:
//  1. JOURNAL_* environment variables (JOURNAL_SERVER_ADDR -> server.addr)
//  2. YAML file (~/.config/journal/config.yaml unless another path is given)
//  3. Defaults
//
// ANTHROPIC_API_KEY is honored when reflection.api_key is not set.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/pbaille/journal/internal/logging"
)

const (
	envPrefix         = "JOURNAL_"
	maxConfigFileSize = 1024 * 1024
)

// Config is the complete journal configuration
type Config struct {
	Storage    StorageConfig    `koanf:"storage"`
	Log        logging.Config   `koanf:"log"`
	Reflection ReflectionConfig `koanf:"reflection"`
	Server     ServerConfig     `koanf:"server"`
	Demo       DemoConfig       `koanf:"demo"`
}

// StorageConfig locates the database
type StorageConfig struct {
	Path string `koanf:"path"`
}

// ReflectionConfig configures the reflection generator
type ReflectionConfig struct {
	APIKey    string        `koanf:"api_key"`
	Model     string        `koanf:"model"`
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	MaxTokens int64         `koanf:"max_tokens"`
}

// ServerConfig configures the REST API
type ServerConfig struct {
	Addr string `koanf:"addr"`
}

// DemoConfig sizes synthetic data runs
type DemoConfig struct {
	Count      int `koanf:"count"`
	WindowDays int `koanf:"window_days"`
}

// DefaultPath returns ~/.config/journal/config.yaml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "journal", "config.yaml"), nil
}

// Load reads configuration from path (or the default path when empty),
// then the environment, then fills defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	content, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Reflection.APIKey == "" {
		cfg.Reflection.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// envKey maps JOURNAL_SECTION_FIELD_NAME to section.field_name
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Path == "" {
		home, _ := os.UserHomeDir()
		cfg.Storage.Path = filepath.Join(home, ".journal", "journal.db")
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Reflection.Timeout == 0 {
		cfg.Reflection.Timeout = 60 * time.Second
	}
	if cfg.Reflection.MaxTokens == 0 {
		cfg.Reflection.MaxTokens = 1024
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Demo.Count == 0 {
		cfg.Demo.Count = 50
	}
	if cfg.Demo.WindowDays == 0 {
		cfg.Demo.WindowDays = 120
	}
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if c.Reflection.Timeout < 0 {
		return fmt.Errorf("reflection.timeout must be positive")
	}
	if c.Reflection.MaxTokens < 0 {
		return fmt.Errorf("reflection.max_tokens must be positive")
	}
	if c.Demo.Count < 0 || c.Demo.WindowDays < 0 {
		return fmt.Errorf("demo.count and demo.window_days must not be negative")
	}
	return nil
}

// DemoWindow returns the demo spread as a duration
func (c *Config) DemoWindow() time.Duration {
	return time.Duration(c.Demo.WindowDays) * 24 * time.Hour
}
