package app

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/suPer8Hu/csv-agent/internal/config"
)

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "students.csv")
	if err := os.WriteFile(path, []byte("name,score\nA,10\nB,20\nC,30\n"), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func testConfig(t *testing.T) config.Config {
	return config.Config{
		CSVPath:        writeCSV(t),
		AIProvider:     "ollama",
		OllamaBaseURL:  "http://127.0.0.1:1",
		OllamaModel:    "llama3.1:latest",
		SessionBackend: config.BackendMemory,
		DBDriver:       "sqlite",
		DBDSN:          "file:" + t.Name() + "?mode=memory&cache=shared",
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_MemoryBackend(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), quietLogger(), false)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if a.Table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", a.Table.Len())
	}
	if a.Provider.Name() != "ollama" || a.Provider.Model() != "llama3.1:latest" {
		t.Fatalf("unexpected provider %s/%s", a.Provider.Name(), a.Provider.Model())
	}
	if a.ChatSvc.JobsEnabled() {
		t.Fatalf("jobs should be disabled")
	}
}

func TestNew_SQLBackendWithJobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.SessionBackend = config.BackendSQL

	a, err := New(context.Background(), cfg, quietLogger(), true)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer a.Close()

	if !a.ChatSvc.JobsEnabled() {
		t.Fatalf("jobs should be enabled")
	}
	hist, err := a.ChatSvc.History(context.Background(), "")
	if err != nil || len(hist) != 0 {
		t.Fatalf("expected empty history, got %v err=%v", hist, err)
	}
}

func TestNew_Errors(t *testing.T) {
	missing := testConfig(t)
	missing.CSVPath = filepath.Join(t.TempDir(), "nope.csv")
	if _, err := New(context.Background(), missing, quietLogger(), false); err == nil {
		t.Fatalf("expected error for missing csv")
	}

	noKey := testConfig(t)
	noKey.AIProvider = "openrouter"
	if _, err := New(context.Background(), noKey, quietLogger(), false); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestProviderRegistry(t *testing.T) {
	cfg := testConfig(t)
	cfg.OpenRouterAPIKey = "sk-test"
	cfg.OpenRouterModel = "openai/gpt-oss-20b:free"
	reg := NewProviderRegistry(cfg)

	names := reg.Names()
	if len(names) != 2 || names[0] != "ollama" || names[1] != "openrouter" {
		t.Fatalf("unexpected providers %v", names)
	}
	p, err := reg.Get(context.Background(), "OpenRouter", "")
	if err != nil || p.Model() != "openai/gpt-oss-20b:free" {
		t.Fatalf("openrouter: %v", err)
	}
	p, err = reg.Get(context.Background(), "ollama", "qwen2.5")
	if err != nil || p.Model() != "qwen2.5" {
		t.Fatalf("ollama override: %v", err)
	}
}
