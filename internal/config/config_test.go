package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "formforge.db" {
		t.Errorf("default db path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("default log level = %q", cfg.Logging.Level)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "formforge.db" {
		t.Errorf("missing file should yield defaults, got %q", cfg.Database.Path)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "formforge.yaml")
	data := `
database:
  path: /var/lib/formforge/forms.db
logging:
  level: debug
  development: true
server:
  share_base_url: https://forms.example.com
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/var/lib/formforge/forms.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "debug" || !cfg.Logging.Development {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Server.ShareBaseURL != "https://forms.example.com" {
		t.Errorf("share base url = %q", cfg.Server.ShareBaseURL)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("::::"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FORMFORGE_DB_PATH", "/tmp/override.db")
	t.Setenv("FORMFORGE_LOG_LEVEL", "warn")
	t.Setenv("FORMFORGE_SHARE_BASE_URL", "https://override.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("db path override = %q", cfg.Database.Path)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("log level override = %q", cfg.Logging.Level)
	}
	if cfg.Server.ShareBaseURL != "https://override.example.com" {
		t.Errorf("share url override = %q", cfg.Server.ShareBaseURL)
	}
}
