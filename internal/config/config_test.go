package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Backend.BaseURL == "" {
		t.Fatal("default base URL missing")
	}
	if cfg.Timeout() != 10*time.Second {
		t.Fatalf("default timeout = %v", cfg.Timeout())
	}
}

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte("backend:\n  base_url: https://tasks.example.com\n  timeout_seconds: 30\nlog:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("FromYAML: %v", err)
	}
	if cfg.Backend.BaseURL != "https://tasks.example.com" {
		t.Fatalf("base url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Timeout() != 30*time.Second {
		t.Fatalf("timeout = %v", cfg.Timeout())
	}
}

func TestFromYAMLRejectsBadValues(t *testing.T) {
	cases := []string{
		"backend:\n  base_url: \"\"\n",
		"backend:\n  base_url: not-a-url\n",
		"backend:\n  base_url: http://x\n  timeout_seconds: -1\n",
		"backend:\n  base_url: http://x\nlog:\n  level: loud\n",
	}
	for _, in := range cases {
		if _, err := FromYAML([]byte(in)); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestLoadOptionalFallsBackToDefault(t *testing.T) {
	cfg, err := LoadOptional(t.TempDir())
	if err != nil {
		t.Fatalf("LoadOptional: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("fallback config invalid: %v", err)
	}
}

func TestLoadReadsWorkspaceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskdeck.yml")
	if err := os.WriteFile(path, []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL == "" {
		t.Fatal("base url missing after load")
	}
}
