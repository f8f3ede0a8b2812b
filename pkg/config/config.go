// Package config loads and validates the planner configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	// API Keys
	GeminiKeys []string `yaml:"gemini_keys"`
	OpenAIKey  string   `yaml:"openai_key"`

	// Model Configuration
	Provider    string  `yaml:"provider"` // gemini, openai
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`

	// Dataset
	DatasetPath string            `yaml:"dataset_path"`
	DatasetCSVs map[string]string `yaml:"dataset_csvs"` // city -> csv path

	// Redis
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	// Server
	ServerPort  int `yaml:"server_port"`
	MetricsPort int `yaml:"metrics_port"`

	// Dialog
	Dialog DialogConfig `yaml:"dialog"`

	// Sessions
	SessionBackend string `yaml:"session_backend"` // file, redis
	SessionDir     string `yaml:"session_dir"`
}

// DialogConfig tunes the conversation engine.
type DialogConfig struct {
	DisplayThreshold int     `yaml:"display_threshold"`
	TopResults       int     `yaml:"top_results"`
	WorkerCapacity   int     `yaml:"worker_capacity"`
	RequestsPerMin   float64 `yaml:"requests_per_min"`
}

// LoadConfig loads configuration from a YAML file, falling back to
// environment variables for keys and connection settings.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// Default returns a configuration built from environment variables alone.
func Default() *Config {
	cfg := &Config{}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyEnv() {
	if len(c.GeminiKeys) == 0 {
		if keys := os.Getenv("GEMINI_API_KEYS"); keys != "" {
			for _, k := range strings.Split(keys, ",") {
				if k = strings.TrimSpace(k); k != "" {
					c.GeminiKeys = append(c.GeminiKeys, k)
				}
			}
		} else if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			c.GeminiKeys = []string{key}
		}
	}
	if c.OpenAIKey == "" {
		c.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.RedisAddr == "" {
		c.RedisAddr = os.Getenv("REDIS_ADDR")
	}
	if c.DatasetPath == "" {
		c.DatasetPath = os.Getenv("VOYAGO_DATASET_PATH")
	}
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = "gemini"
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1000
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.DatasetPath == "" {
		c.DatasetPath = "voyago.db"
	}
	if c.ServerPort == 0 {
		c.ServerPort = 8080
	}
	if c.MetricsPort == 0 {
		c.MetricsPort = 9090
	}
	if c.Dialog.DisplayThreshold == 0 {
		c.Dialog.DisplayThreshold = 50
	}
	if c.Dialog.TopResults == 0 {
		c.Dialog.TopResults = 5
	}
	if c.Dialog.WorkerCapacity == 0 {
		c.Dialog.WorkerCapacity = 4
	}
	if c.Dialog.RequestsPerMin == 0 {
		c.Dialog.RequestsPerMin = 60
	}
	if c.SessionBackend == "" {
		c.SessionBackend = "file"
	}
	if c.SessionDir == "" {
		c.SessionDir = "sessions"
	}
}

// SaveConfig writes the configuration to a YAML file.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case "gemini":
		if len(c.GeminiKeys) == 0 {
			return fmt.Errorf("at least one gemini key must be configured")
		}
	case "openai":
		if c.OpenAIKey == "" {
			return fmt.Errorf("openai_key is required")
		}
	default:
		return fmt.Errorf("unknown provider: %s", c.Provider)
	}

	if c.SessionBackend != "file" && c.SessionBackend != "redis" {
		return fmt.Errorf("unknown session backend: %s", c.SessionBackend)
	}
	if c.SessionBackend == "redis" && c.RedisAddr == "" {
		return fmt.Errorf("redis_addr is required for the redis session backend")
	}
	if c.Dialog.TopResults < 1 {
		return fmt.Errorf("top_results must be at least 1")
	}
	return nil
}
