package extraction

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPromptConfigMergesOverridesOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extraction.yaml")
	if err := os.WriteFile(path, []byte("model: gpt-5.1-nano\nmax_retries: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadPromptConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Model != "gpt-5.1-nano" {
		t.Fatalf("model = %q, want override applied", cfg.Model)
	}
	if cfg.MaxRetries != 5 {
		t.Fatalf("max_retries = %d, want override applied", cfg.MaxRetries)
	}
	if cfg.SystemPrompt == "" {
		t.Fatalf("expected default system prompt to survive a partial override")
	}
}

func TestTemplateManagerHotReloadsOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "extraction.yaml")
	if err := os.WriteFile(path, []byte("model: gpt-5.1-mini\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tm := NewTemplateManager(path)
	if got := tm.Current().Model; got != "gpt-5.1-mini" {
		t.Fatalf("initial model = %q, want gpt-5.1-mini", got)
	}

	// force a distinct mtime so reload() detects the change.
	future := time.Now().Add(time.Second)
	if err := os.WriteFile(path, []byte("model: gpt-5.1-nano\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if got := tm.Current().Model; got != "gpt-5.1-nano" {
		t.Fatalf("model after reload = %q, want gpt-5.1-nano", got)
	}
}

func TestNewTemplateManagerFallsBackToDefaultsWhenMissing(t *testing.T) {
	tm := NewTemplateManager(filepath.Join(t.TempDir(), "missing.yaml"))
	if got := tm.Current().Model; got != defaultModel {
		t.Fatalf("model = %q, want default %q", got, defaultModel)
	}
}
