package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port == 0 {
		t.Error("default port not set")
	}
	if !cfg.OCR.Enabled {
		t.Error("ocr should be enabled by default")
	}
	if cfg.Capture.MinimumSpacing.Std() != 60*time.Second {
		t.Errorf("minimum spacing = %v, want 60s", cfg.Capture.MinimumSpacing)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Error("missing file should yield defaults")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: 9999
capture:
  minimum_spacing: 5s
ocr:
  enabled: false
  command: my-ocr
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Server.Bind != "127.0.0.1" {
		t.Errorf("bind should keep default, got %q", cfg.Server.Bind)
	}
	if cfg.Capture.MinimumSpacing.Std() != 5*time.Second {
		t.Errorf("minimum_spacing = %v, want 5s", cfg.Capture.MinimumSpacing)
	}
	if cfg.OCR.Enabled {
		t.Error("ocr.enabled override not applied")
	}
	if cfg.OCR.Command != "my-ocr" {
		t.Errorf("ocr.command = %q", cfg.OCR.Command)
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("server: ["), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestListenAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.Bind = "0.0.0.0"
	cfg.Server.Port = 8080
	if got := cfg.ListenAddr(); got != "0.0.0.0:8080" {
		t.Errorf("ListenAddr = %q", got)
	}
}
