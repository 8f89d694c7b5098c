package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StoreConfig selects and configures the checkpoint store backend.
type StoreConfig struct {
	// Backend is one of: memory, file, redis, postgres.
	Backend string `yaml:"backend"`

	// Path is the checkpoint directory for the file backend.
	Path string `yaml:"path"`

	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`

	PostgresDSN string `yaml:"postgres_dsn"`
}

// Config holds the server configuration, loaded from YAML with environment
// overrides for secrets.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	Model         string  `yaml:"model"`
	Temperature   float32 `yaml:"temperature"`
	OpenAIAPIKey  string  `yaml:"openai_api_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
	TavilyAPIKey  string  `yaml:"tavily_api_key"`

	Store StoreConfig `yaml:"store"`

	// LogDir enables per-session JSONL stage logs when set.
	LogDir string `yaml:"log_dir"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Host:  "127.0.0.1",
		Port:  8000,
		Store: StoreConfig{Backend: "memory"},
	}
}

// LoadConfig reads a YAML config file and applies environment overrides.
// An empty path loads defaults plus environment.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.OpenAIAPIKey = key
	}
	if key := os.Getenv("TAVILY_API_KEY"); key != "" {
		config.TavilyAPIKey = key
	}
	if config.Host == "" {
		config.Host = "127.0.0.1"
	}
	if config.Port == 0 {
		config.Port = 8000
	}
	if config.Store.Backend == "" {
		config.Store.Backend = "memory"
	}
	return config, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks that required settings are present.
func (c *Config) Validate() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("openai api key is required (config or OPENAI_API_KEY)")
	}
	if c.TavilyAPIKey == "" {
		return fmt.Errorf("tavily api key is required (config or TAVILY_API_KEY)")
	}
	switch c.Store.Backend {
	case "memory", "file":
	case "redis":
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	return nil
}
