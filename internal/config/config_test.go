package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CSVPath != "students.csv" || cfg.HTTPAddr != ":8000" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.AIProvider != "openrouter" || cfg.OpenRouterModel != "openai/gpt-oss-20b:free" {
		t.Fatalf("unexpected provider defaults: %+v", cfg)
	}
	if cfg.SessionBackend != BackendMemory || cfg.ChatContextWindowSize != 0 {
		t.Fatalf("unexpected session defaults: %+v", cfg)
	}
	if cfg.AsyncEnabled() || cfg.RabbitQueue != "chat_jobs" || cfg.WorkerConcurrency != 2 || !cfg.WorkerEmbedded {
		t.Fatalf("unexpected worker defaults: %+v", cfg)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("CSV_PATH", "/data/grades.csv")
	t.Setenv("AI_PROVIDER", " Ollama ")
	t.Setenv("SESSION_BACKEND", "SQL")
	t.Setenv("CHAT_CONTEXT_WINDOW_SIZE", "6")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WORKER_EMBEDDED", "false")
	t.Setenv("REDIS_HISTORY_TTL", "24h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CSVPath != "/data/grades.csv" || cfg.AIProvider != "ollama" || cfg.SessionBackend != BackendSQL {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.ChatContextWindowSize != 6 || cfg.RedisDB != 3 || cfg.WorkerEmbedded || cfg.RedisHistoryTTL != 24*time.Hour {
		t.Fatalf("typed env not applied: %+v", cfg)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.env")
	if err := os.WriteFile(path, []byte("CSV_PATH=from_file.csv\nHTTP_ADDR=:9000\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_ADDR", ":9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.CSVPath != "from_file.csv" {
		t.Fatalf("file value not applied: %q", cfg.CSVPath)
	}
	if cfg.HTTPAddr != ":9100" {
		t.Fatalf("env should win over file, got %q", cfg.HTTPAddr)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.env"))
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing CONFIG_FILE")
	}
}

func TestValidate(t *testing.T) {
	base := Config{CSVPath: "a.csv", AIProvider: "ollama", SessionBackend: BackendMemory}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := map[string]Config{
		"no csv":       {AIProvider: "ollama", SessionBackend: BackendMemory},
		"no api key":   {CSVPath: "a.csv", AIProvider: "openrouter", SessionBackend: BackendMemory},
		"bad provider": {CSVPath: "a.csv", AIProvider: "gpt", SessionBackend: BackendMemory},
		"bad backend":  {CSVPath: "a.csv", AIProvider: "ollama", SessionBackend: "disk"},
	}
	for name, cfg := range cases {
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
