package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type AIConfig struct {
	GeminiKey       string `yaml:"gemini_key"`
	Model           string `yaml:"model"`
	Project         string `yaml:"project"`  // non-empty selects managed hosting
	Location        string `yaml:"location"` // defaults to us-central1
	OpenAIKey       string `yaml:"openai_key"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	ConcurrentLimit int    `yaml:"concurrent_limit"` // max concurrent provider calls
	HistoryWindow   int    `yaml:"history_window"`   // messages of context per turn
}

type ModelingConfig struct {
	DataDir      string `yaml:"data_dir"`      // reference datasets per domain
	TemplatePath string `yaml:"template_path"` // run configuration template
	ToolBinary   string `yaml:"tool_binary"`   // external modeling executable
	Workers      int    `yaml:"workers"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type MediaConfig struct {
	TTSAPIKey   string `yaml:"tts_api_key"`
	ImageAPIKey string `yaml:"image_api_key"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	AI       AIConfig       `yaml:"ai"`
	Modeling ModelingConfig `yaml:"modeling"`
	Auth     AuthConfig     `yaml:"auth"`
	Media    MediaConfig    `yaml:"media"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.AI.Model == "" {
		cfg.AI.Model = "gemini-2.0-flash"
	}
	if cfg.AI.Location == "" {
		cfg.AI.Location = "us-central1"
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.HistoryWindow <= 0 {
		cfg.AI.HistoryWindow = 20
	}
	if cfg.Modeling.Workers <= 0 {
		cfg.Modeling.Workers = 2
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = time.Hour
	}

	// Minimal validation. A dev run may go stateless (no database) but the
	// production path requires persistence and a provider key.
	if !dev {
		if cfg.Database.URL == "" {
			return nil, errors.New("database.url is required")
		}
		if cfg.AI.GeminiKey == "" && cfg.AI.Project == "" && cfg.AI.OpenAIKey == "" {
			return nil, errors.New("one of ai.gemini_key, ai.project or ai.openai_key is required")
		}
		if cfg.Auth.JWTSecret == "" {
			return nil, errors.New("auth.jwt_secret is required")
		}
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
