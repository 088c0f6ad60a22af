package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	WeCom     WeComConfig     `yaml:"wecom"`
	Frontend  FrontendConfig  `yaml:"frontend"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"5000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// WeComConfig holds the enterprise credentials used to sign JS-SDK payloads
// and to call the upstream WeCom API.
type WeComConfig struct {
	CorpID     string `envconfig:"CORP_ID" yaml:"corp_id"`
	CorpSecret string `envconfig:"CORP_SECRET" yaml:"corp_secret"`
	AgentID    string `envconfig:"AGENT_ID" yaml:"agent_id"`
	APIBase    string `envconfig:"WECOM_API_BASE" default:"https://qyapi.weixin.qq.com" yaml:"api_base"`
}

// FrontendConfig holds the web app origin used for OAuth callback redirects.
type FrontendConfig struct {
	URL string `envconfig:"FRONTEND_URL" default:"http://localhost:3000" yaml:"url"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadFile loads configuration from the environment, then overlays values
// from a YAML file. File values win over environment values.
func LoadFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5000",
			Host: "0.0.0.0",
		},
		WeCom: WeComConfig{
			APIBase: "https://qyapi.weixin.qq.com",
		},
		Frontend: FrontendConfig{
			URL: "http://localhost:3000",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Validate checks that the enterprise credentials required for signing and
// upstream calls are present.
func (c *Config) Validate() error {
	var missing []string
	if c.WeCom.CorpID == "" {
		missing = append(missing, "CORP_ID")
	}
	if c.WeCom.CorpSecret == "" {
		missing = append(missing, "CORP_SECRET")
	}
	if c.WeCom.AgentID == "" {
		missing = append(missing, "AGENT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}
