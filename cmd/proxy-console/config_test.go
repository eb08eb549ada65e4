package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Proxy.Network != "unix" {
		t.Fatalf("expected unix network, got %q", cfg.Proxy.Network)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	content := "proxy:\n  network: ws\n  address: 127.0.0.1:7000\nhistoryFile: /tmp/h\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Proxy.Network != "ws" || cfg.Proxy.Address != "127.0.0.1:7000" || cfg.HistoryFile != "/tmp/h" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte("proxy: [unclosed"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
