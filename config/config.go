// Package config loads application configuration from a JSON config file with
// DOCPOLISH_* environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the document rewriting service.
type Config struct {
	General GeneralConfig `mapstructure:"general"`
	LLM     LLMConfig     `mapstructure:"llm"`
	Uploads UploadsConfig `mapstructure:"uploads"`
	Ingest  IngestConfig  `mapstructure:"ingest"`
	Events  EventsConfig  `mapstructure:"events"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Listen string `mapstructure:"listen"`
	Debug  bool   `mapstructure:"debug"`
}

// LLMConfig describes the locally hosted model service (Ollama API).
type LLMConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Temperature     float64       `mapstructure:"temperature"`
	TopP            float64       `mapstructure:"top_p"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	ListTimeout     time.Duration `mapstructure:"list_timeout"`
	PullTimeout     time.Duration `mapstructure:"pull_timeout"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.BaseURL) == "" {
		return fmt.Errorf("llm.base_url required")
	}
	if strings.TrimSpace(l.Model) == "" {
		return fmt.Errorf("llm.model required")
	}
	if l.MaxTokens <= 0 {
		return fmt.Errorf("llm.max_tokens must be > 0")
	}
	return nil
}

// UploadsConfig controls file submissions.
type UploadsConfig struct {
	Dir               string   `mapstructure:"dir"`
	MaxBytes          int64    `mapstructure:"max_bytes"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
}

func (u UploadsConfig) Validate() error {
	if strings.TrimSpace(u.Dir) == "" {
		return fmt.Errorf("uploads.dir required")
	}
	if u.MaxBytes <= 0 {
		return fmt.Errorf("uploads.max_bytes must be > 0")
	}
	return nil
}

// IngestConfig controls URL ingestion.
type IngestConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	UserAgent    string        `mapstructure:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// EventsConfig selects the lifecycle bus backend.
type EventsConfig struct {
	Backend      string `mapstructure:"backend"` // inmemory or redis
	Stream       string `mapstructure:"stream"`
	Group        string `mapstructure:"group"`
	Consumer     string `mapstructure:"consumer"`
	MaxLenApprox int64  `mapstructure:"max_len_approx"`
}

func (e EventsConfig) Validate() error {
	switch e.Backend {
	case "inmemory":
		return nil
	case "redis":
		if strings.TrimSpace(e.Stream) == "" || strings.TrimSpace(e.Group) == "" {
			return fmt.Errorf("events.stream and events.group required for redis backend")
		}
		return nil
	default:
		return fmt.Errorf("events.backend must be inmemory or redis")
	}
}

// RedisConfig contains Redis connection settings, used only when the events
// backend is redis.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Validate() error {
	if strings.TrimSpace(r.Host) == "" {
		return fmt.Errorf("redis.host required")
	}
	if strings.TrimSpace(r.Port) == "" {
		return fmt.Errorf("redis.port required")
	}
	return nil
}

// Addr returns host:port for the redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// LoadConfig loads config from file, falling back to defaults and DOCPOLISH_*
// environment variables when no file is present.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.listen", ":5000")
	viper.SetDefault("general.debug", false)
	viper.SetDefault("llm.base_url", "http://localhost:11434")
	viper.SetDefault("llm.model", "codellama:7b")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.1)
	viper.SetDefault("llm.top_p", 0.9)
	viper.SetDefault("llm.generate_timeout", 5*time.Minute)
	viper.SetDefault("llm.list_timeout", 10*time.Second)
	viper.SetDefault("llm.pull_timeout", 5*time.Minute)
	viper.SetDefault("uploads.dir", "uploads")
	viper.SetDefault("uploads.max_bytes", int64(16<<20))
	viper.SetDefault("uploads.allowed_extensions", []string{".txt", ".md", ".rst", ".docx", ".pdf"})
	viper.SetDefault("ingest.fetch_timeout", 30*time.Second)
	viper.SetDefault("ingest.user_agent", "docpolish/1.0")
	viper.SetDefault("ingest.max_body_bytes", int64(8<<20))
	viper.SetDefault("events.backend", "inmemory")
	viper.SetDefault("events.stream", "document.update")
	viper.SetDefault("events.group", "docpolish")
	viper.SetDefault("events.consumer", "")
	viper.SetDefault("events.max_len_approx", int64(4096))
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", "6379")
	viper.SetDefault("redis.db", 0)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		viper.AddConfigPath(filepath.Dir(exe))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DOCPOLISH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// defaults + env are enough; only a malformed file is fatal
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.LLM.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Uploads.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Events.Validate(); err != nil {
		return nil, err
	}
	if cfg.Events.Backend == "redis" {
		if err := cfg.Redis.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
