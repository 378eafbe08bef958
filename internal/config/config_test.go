package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Store != "sqlite" {
		t.Errorf("Store = %q, want sqlite", cfg.Store)
	}
	if cfg.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", cfg.RequestTimeout)
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	data := "addr: \":9090\"\nstore: bolt\nrequest_timeout: 5s\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultServerConfig()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.Store != "bolt" {
		t.Errorf("Store = %q, want bolt", cfg.Store)
	}
	if cfg.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout)
	}
	// Untouched keys keep defaults.
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"), &cfg); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("addr: [unterminated\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := DefaultServerConfig()
	if err := LoadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestDefaultDBFile(t *testing.T) {
	if got := DefaultDBFile("bolt"); got != "shardsched.bolt" {
		t.Errorf("bolt = %q", got)
	}
	if got := DefaultDBFile("sqlite"); got != "shardsched.db" {
		t.Errorf("sqlite = %q", got)
	}
}
