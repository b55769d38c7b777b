package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" || cfg.Backend.Mode != BackendDemo || cfg.Session.TTL != 12*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestDefaultYAMLMatchesDefault(t *testing.T) {
	cfg, err := Load(writeFile(t, DefaultYAML))
	if err != nil {
		t.Fatalf("load default yaml: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("default yaml = %+v, want %+v", cfg, Default())
	}
}

func TestLoadOverridesOnlyGivenKeys(t *testing.T) {
	cfg, err := Load(writeFile(t, "backend:\n  mode: http\n  url: http://ml:8000\n  timeout: 5s\nlog:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.Mode != BackendHTTP || cfg.Backend.URL != "http://ml:8000" || cfg.Backend.Timeout != 5*time.Second {
		t.Fatalf("backend not overridden: %+v", cfg.Backend)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Fatalf("log = %+v", cfg.Log)
	}
	if cfg.DBPath != "cvd-portal.db" {
		t.Fatalf("db path default lost: %q", cfg.DBPath)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeFile(t, "adress: \":9090\"\n"))
	if err == nil || !strings.Contains(err.Error(), "adress") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestLoadEmptyFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("empty file changed defaults: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend.Mode = "grpc"
	cfg.Session.TTL = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"backend.mode", "session.ttl"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}

	cfg = Default()
	cfg.Backend.Mode = BackendHTTP
	cfg.Backend.URL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing url error")
	}
}

func TestWriteRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal.yaml")
	if err := Write(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := Write(path); err == nil {
		t.Fatalf("expected error on overwrite")
	}
}
