// Package config provides configuration management for genius-loci.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DefaultPort is the default HTTP listen port.
	DefaultPort = 8791
	// DefaultModel is the default conversation model.
	DefaultModel = "Qwen/Qwen2.5-7B-Instruct"
	// DefaultModelBaseURL is the default OpenAI-compatible endpoint.
	DefaultModelBaseURL = "https://api-inference.modelscope.cn/v1"
	// DefaultVisionModel is the default scene-description model.
	DefaultVisionModel = "gpt-4o"
)

// DatabaseConfig holds persistence settings. Driver is "sqlite" or "postgres";
// DSN is only consulted for postgres.
type DatabaseConfig struct {
	Driver   string `json:"driver"`
	Path     string `json:"path"`
	DSN      string `json:"dsn"`
	MaxConns int    `json:"max_conns"`
}

// ModelConfig holds completion endpoint settings. All sampling parameters are
// passed through to the API untouched.
type ModelConfig struct {
	Name        string  `json:"name"`
	BaseURL     string  `json:"base_url"`
	APIKey      string  `json:"api_key"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TopP        float64 `json:"top_p"`
}

// VisionConfig holds scene-description endpoint settings.
type VisionConfig struct {
	Model   string `json:"model"`
	BaseURL string `json:"base_url"`
	APIKey  string `json:"api_key"`
}

// SessionConfig holds conversation lifecycle settings.
type SessionConfig struct {
	AutoArchiveTurns int `json:"auto_archive_turns"`
	TimeoutSeconds   int `json:"timeout_seconds"`
	SweepSeconds     int `json:"sweep_seconds"`
	ContextExchanges int `json:"context_exchanges"`
	SeedExchanges    int `json:"seed_exchanges"`
}

// SummaryConfig holds archival summarization settings.
type SummaryConfig struct {
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
	BudgetTokens int     `json:"budget_tokens"`
}

// Config is the application configuration.
type Config struct {
	Port     int            `json:"port"`
	Database DatabaseConfig `json:"database"`
	Model    ModelConfig    `json:"model"`
	Vision   VisionConfig   `json:"vision"`
	Session  SessionConfig  `json:"session"`
	Summary  SummaryConfig  `json:"summary"`
}

// SessionTimeout returns the inactivity timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutSeconds) * time.Second
}

// SweepInterval returns the sweep interval as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepSeconds) * time.Second
}

var (
	mu      sync.RWMutex
	current *Config
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Port: DefaultPort,
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Path:     DBPath(),
			MaxConns: 4,
		},
		Model: ModelConfig{
			Name:        DefaultModel,
			BaseURL:     DefaultModelBaseURL,
			Temperature: 0.7,
			MaxTokens:   2000,
			TopP:        0.9,
		},
		Vision: VisionConfig{
			Model:   DefaultVisionModel,
			BaseURL: "https://api.openai.com/v1",
		},
		Session: SessionConfig{
			AutoArchiveTurns: 100,
			TimeoutSeconds:   1800,
			SweepSeconds:     60,
			ContextExchanges: 10,
			SeedExchanges:    10,
		},
		Summary: SummaryConfig{
			MaxTokens:    200,
			Temperature:  0.3,
			BudgetTokens: 3000,
		},
	}
}

// DataDir returns the data directory path (~/.genius-loci).
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".genius-loci")
}

// DBPath returns the default SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "loci.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads the settings file, applies environment overrides, and caches the
// result for Get. Missing file fields keep their defaults.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg, nil
}

// Get returns the cached configuration, loading defaults if Load was never
// called.
func Get() *Config {
	mu.RLock()
	cfg := current
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = Default()
		applyEnv(current)
	}
	return current
}

// Set replaces the cached configuration. Used by tests and hot reload.
func Set(cfg *Config) {
	mu.Lock()
	current = cfg
	mu.Unlock()
}

// applyEnv overrides secrets and ports from the environment. Secrets never
// live in the settings file by default.
func applyEnv(cfg *Config) {
	if v := os.Getenv("LOCI_API_KEY"); v != "" {
		cfg.Model.APIKey = v
	}
	if v := os.Getenv("LOCI_API_URL"); v != "" {
		cfg.Model.BaseURL = v
	}
	if v := os.Getenv("LOCI_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("LOCI_VISION_API_KEY"); v != "" {
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("LOCI_VISION_API_URL"); v != "" {
		cfg.Vision.BaseURL = v
	}
	if v := os.Getenv("LOCI_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("LOCI_DATABASE_DSN"); v != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = v
	}
}
