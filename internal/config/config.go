// Package config loads runtime settings from an optional YAML file and
// METAREDACT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// METAREDACT_REDACT_BACKEND=chat.
const EnvPrefix = "METAREDACT"

// Redaction backends.
const (
	BackendRules  = "rules"
	BackendVertex = "vertex"
	BackendChat   = "chat"
)

// Config mirrors the YAML file layout.
type Config struct {
	Log    LogConfig    `mapstructure:"log"`
	Server ServerConfig `mapstructure:"server"`
	Redact RedactConfig `mapstructure:"redact"`
	Vertex VertexConfig `mapstructure:"vertex"`
	Chat   ChatConfig   `mapstructure:"chat"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Upper bound for one multipart upload request, in bytes.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

// RedactConfig selects the classifier backend and the replacement text.
type RedactConfig struct {
	Backend string `mapstructure:"backend"`
	Marker  string `mapstructure:"marker"`
}

// VertexConfig addresses a Gemini model on Vertex AI.
type VertexConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Region    string `mapstructure:"region"`
	Model     string `mapstructure:"model"`
}

// ChatConfig addresses an OpenAI-compatible chat completions endpoint.
type ChatConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_upload_bytes", 64<<20)

	v.SetDefault("redact.backend", BackendRules)
	v.SetDefault("redact.marker", "[REDACTED]")

	v.SetDefault("vertex.project_id", "")
	v.SetDefault("vertex.region", "us-central1")
	v.SetDefault("vertex.model", "gemini-1.5-pro")

	v.SetDefault("chat.base_url", "https://api.openai.com/v1")
	v.SetDefault("chat.api_key", "")
	v.SetDefault("chat.model", "gpt-4o-mini")
	v.SetDefault("chat.timeout", "60s")
}

// Load reads configPath (skipped when empty) over the defaults, applies
// environment overrides and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Redact.Backend {
	case BackendRules:
	case BackendVertex:
		if c.Vertex.ProjectID == "" || c.Vertex.Region == "" {
			return errors.New("redact backend vertex requires vertex.project_id and vertex.region")
		}
	case BackendChat:
		if c.Chat.BaseURL == "" || c.Chat.Model == "" {
			return errors.New("redact backend chat requires chat.base_url and chat.model")
		}
	default:
		return fmt.Errorf("unknown redact backend %q (want %s, %s or %s)", c.Redact.Backend, BackendRules, BackendVertex, BackendChat)
	}
	if strings.TrimSpace(c.Redact.Marker) == "" {
		return errors.New("redact.marker must not be empty")
	}
	return nil
}
