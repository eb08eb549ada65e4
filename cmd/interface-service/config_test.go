package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadAppConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interface_service.yaml")
	content := `
server:
  addr: 127.0.0.1:9999
redis:
  addr: localhost:6379
compile:
  cacheSize: 8
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout || cfg.Server.IdleTimeout != defaultIdleTimeout {
		t.Fatalf("timeouts not defaulted: %+v", cfg.Server)
	}
	if cfg.Server.MaxBodyBytes != defaultMaxBodyBytes {
		t.Fatalf("unexpected body limit %d", cfg.Server.MaxBodyBytes)
	}
	if cfg.Redis.PoolSize == 0 || cfg.Redis.DialTimeout == 0 {
		t.Fatalf("redis defaults not applied: %+v", cfg.Redis)
	}
	if cfg.Compile.CacheSize != 8 {
		t.Fatalf("unexpected compile config %+v", cfg.Compile)
	}
}

func TestLoadAppConfigWithoutRedis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interface_service.yaml")
	if err := os.WriteFile(path, []byte("server:\n  writeTimeout: 3s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := loadAppConfig(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Redis.Addr != "" || cfg.Redis.PoolSize != 0 {
		t.Fatalf("redis must stay unset: %+v", cfg.Redis)
	}
	if cfg.Server.Addr != defaultHTTPAddr || cfg.Server.WriteTimeout != 3*time.Second {
		t.Fatalf("unexpected server config %+v", cfg.Server)
	}
}

func TestLoadAppConfigMissingFile(t *testing.T) {
	if _, err := loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
