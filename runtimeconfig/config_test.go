package runtimeconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "duel.json", `{
  "goal": "find the cheapest flight to Lisbon",
  "leftProvider": "anthropic",
  "rightProvider": "openai",
  "sessionEndpoint": "https://sessions.example",
  "streamEndpoint": "https://stream.example",
  "timeoutSeconds": 120
}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Goal != "find the cheapest flight to Lisbon" || cfg.LeftProvider != "anthropic" {
		t.Fatalf("unexpected config %#v", cfg)
	}
	if cfg.Timeout() != 2*time.Minute {
		t.Fatalf("timeout not converted: %s", cfg.Timeout())
	}
	// Defaults fill the optional fields.
	if cfg.ListenAddr == "" || cfg.AuditDBPath == "" || cfg.StateBackend != "sqlite" {
		t.Fatalf("defaults not applied: %#v", cfg)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "duel.yaml", `
goal: compare hotel prices
leftProvider: gemini
rightProvider: openai
sessionEndpoint: https://sessions.example
streamEndpoint: https://stream.example
auditRetentionHours: 24
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.LeftProvider != "gemini" || cfg.AuditRetention() != 24*time.Hour {
		t.Fatalf("unexpected config %#v", cfg)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	path := writeFile(t, "duel.json", `{"goal": "do something"}`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected schema violation, got %v", err)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	path := writeFile(t, "duel.json", `{
  "goal": "g",
  "leftProvider": "mystery",
  "rightProvider": "openai",
  "sessionEndpoint": "https://s",
  "streamEndpoint": "https://t"
}`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected provider enum violation")
	}
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := writeFile(t, "duel.json", `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("DUEL_LISTEN_ADDR=:9999\n"), 0o644); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	path := filepath.Join(dir, "duel.json")
	body := `{
  "goal": "g",
  "leftProvider": "anthropic",
  "rightProvider": "gemini",
  "sessionEndpoint": "https://s",
  "streamEndpoint": "https://t"
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("DUEL_LISTEN_ADDR", "")
	os.Unsetenv("DUEL_LISTEN_ADDR")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.ListenAddr != ":9999" {
		t.Fatalf("dotenv value not applied, got %q", cfg.ListenAddr)
	}
}
