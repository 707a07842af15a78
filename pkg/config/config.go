package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	// Try []interface{} to handle mixed types
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Server      ServerConfig      `json:"server"`
	Providers   ProvidersConfig   `json:"providers"`
	Completions CompletionsConfig `json:"completions"`
	Memory      MemoryConfig      `json:"memory"`
	Channels    ChannelsConfig    `json:"channels"`
	mu          sync.RWMutex
}

type ServerConfig struct {
	Host string `json:"host" env:"FELIX_SERVER_HOST"`
	Port int    `json:"port" env:"FELIX_SERVER_PORT"`
}

type ProvidersConfig struct {
	OpenAI     ProviderConfig `json:"openai" envPrefix:"FELIX_PROVIDERS_OPENAI_"`
	OpenRouter ProviderConfig `json:"openrouter" envPrefix:"FELIX_PROVIDERS_OPENROUTER_"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" env:"API_KEY"`
	APIBase string `json:"api_base" env:"API_BASE"`
	Proxy   string `json:"proxy,omitempty" env:"PROXY"`
}

// CompletionsConfig controls the external completion call made for
// messages no built-in command claims.
type CompletionsConfig struct {
	Provider       string `json:"provider" env:"FELIX_COMPLETIONS_PROVIDER"`
	Model          string `json:"model" env:"FELIX_COMPLETIONS_MODEL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"FELIX_COMPLETIONS_TIMEOUT_SECONDS"`
	MaxAttempts    int    `json:"max_attempts" env:"FELIX_COMPLETIONS_MAX_ATTEMPTS"`
	RetryDelayMS   int    `json:"retry_delay_ms" env:"FELIX_COMPLETIONS_RETRY_DELAY_MS"`
}

type MemoryConfig struct {
	Backend     string `json:"backend" env:"FELIX_MEMORY_BACKEND"` // "file" or "sqlite"
	Path        string `json:"path" env:"FELIX_MEMORY_PATH"`
	HistoryCap  int    `json:"history_cap" env:"FELIX_MEMORY_HISTORY_CAP"`
	RecallTurns int    `json:"recall_turns" env:"FELIX_MEMORY_RECALL_TURNS"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token     string              `json:"token" env:"FELIX_CHANNELS_DISCORD_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"FELIX_CHANNELS_DISCORD_ALLOW_FROM"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 6969,
		},
		Providers: ProvidersConfig{
			OpenAI:     ProviderConfig{},
			OpenRouter: ProviderConfig{},
		},
		Completions: CompletionsConfig{
			Provider:       "openai",
			Model:          "",
			TimeoutSeconds: 30,
			MaxAttempts:    3,
			RetryDelayMS:   2000,
		},
		Memory: MemoryConfig{
			Backend:     "file",
			Path:        "~/.felix/memory.json",
			HistoryCap:  20,
			RecallTurns: 8,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:     "",
				AllowFrom: FlexibleStringSlice{},
			},
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if parseErr := env.Parse(cfg); parseErr != nil {
				return nil, parseErr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// MemoryPath returns the identity store location with ~ expanded.
func (c *Config) MemoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Memory.Path)
}

func (c *Config) ListenAddr() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
