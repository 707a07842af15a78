package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// TestDefaultConfig_Server verifies listen defaults
func TestDefaultConfig_Server(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Host != "0.0.0.0" {
		t.Error("Server host should have default value")
	}
	if cfg.Server.Port == 0 {
		t.Error("Server port should have default value")
	}
}

// TestDefaultConfig_Memory verifies the identity store defaults
func TestDefaultConfig_Memory(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Memory.Backend != "file" {
		t.Errorf("Memory backend = %q, want %q", cfg.Memory.Backend, "file")
	}
	if cfg.Memory.Path == "" {
		t.Error("Memory path should not be empty")
	}
	if cfg.Memory.HistoryCap != 20 {
		t.Errorf("HistoryCap = %d, want 20", cfg.Memory.HistoryCap)
	}
	if cfg.Memory.RecallTurns != 8 {
		t.Errorf("RecallTurns = %d, want 8", cfg.Memory.RecallTurns)
	}
}

// TestDefaultConfig_Completions verifies the external-call policy defaults
func TestDefaultConfig_Completions(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Completions.Provider != "openai" {
		t.Errorf("Completions provider = %q, want openai", cfg.Completions.Provider)
	}
	if cfg.Completions.TimeoutSeconds == 0 {
		t.Error("TimeoutSeconds should not be zero")
	}
	if cfg.Completions.MaxAttempts == 0 {
		t.Error("MaxAttempts should not be zero")
	}
}

// TestDefaultConfig_Providers verifies provider credentials are empty by default
func TestDefaultConfig_Providers(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Providers.OpenAI.APIKey != "" {
		t.Error("OpenAI API key should be empty by default")
	}
	if cfg.Providers.OpenRouter.APIKey != "" {
		t.Error("OpenRouter API key should be empty by default")
	}
}

// TestDefaultConfig_Channels verifies Discord config defaults
func TestDefaultConfig_Channels(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Channels.Discord.Token != "" {
		t.Error("Discord token should be empty by default")
	}
}

func TestSaveConfig_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file permission bits are not enforced on Windows")
	}

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := DefaultConfig()
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}

	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("config file has permission %04o, want 0600", perm)
	}
}

func TestLoadConfig_EnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("FELIX_COMPLETIONS_MODEL", "env/model")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Completions.Model; got != "env/model" {
		t.Fatalf("expected env override model, got %q", got)
	}
}

func TestLoadConfig_ProviderCredentialsFromEnv(t *testing.T) {
	t.Setenv("FELIX_PROVIDERS_OPENAI_API_KEY", "sk-env-123")
	t.Setenv("FELIX_PROVIDERS_OPENROUTER_API_KEY", "or-env-456")
	path := filepath.Join(t.TempDir(), "missing-config.json")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if got := cfg.Providers.OpenAI.APIKey; got != "sk-env-123" {
		t.Fatalf("FELIX_PROVIDERS_OPENAI_API_KEY not honored: got %q", got)
	}
	if got := cfg.Providers.OpenRouter.APIKey; got != "or-env-456" {
		t.Fatalf("FELIX_PROVIDERS_OPENROUTER_API_KEY not honored: got %q", got)
	}
}

func TestLoadConfig_ProviderEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"providers": {"openai": {"api_key": "sk-file", "api_base": "https://file.example"}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FELIX_PROVIDERS_OPENAI_API_KEY", "sk-env")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Providers.OpenAI.APIKey != "sk-env" {
		t.Fatalf("env should win over file, got %q", cfg.Providers.OpenAI.APIKey)
	}
	if cfg.Providers.OpenAI.APIBase != "https://file.example" {
		t.Fatalf("untouched file value should survive, got %q", cfg.Providers.OpenAI.APIBase)
	}
}

func TestLoadConfig_FileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server": {"port": 7000}, "memory": {"history_cap": 10}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FELIX_SERVER_PORT", "7100")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Server.Port != 7100 {
		t.Fatalf("env should win over file, got port %d", cfg.Server.Port)
	}
	if cfg.Memory.HistoryCap != 10 {
		t.Fatalf("file value should win over default, got cap %d", cfg.Memory.HistoryCap)
	}
}

func TestFlexibleStringSlice_MixedTypes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"channels": {"discord": {"allow_from": ["crimson", 123456]}}}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	got := []string(cfg.Channels.Discord.AllowFrom)
	if len(got) != 2 || got[0] != "crimson" || got[1] != "123456" {
		t.Fatalf("unexpected allow_from: %v", got)
	}
}
