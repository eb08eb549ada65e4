package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BaseURL != DefaultBaseURL || cfg.Timeout != DefaultTimeout || cfg.PrettyJSON == nil || !*cfg.PrettyJSON {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	content := "baseURL: https://interfaces.internal:9443\ntimeout: 3s\nprettyJSON: false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BaseURL != "https://interfaces.internal:9443" || cfg.Timeout != 3*time.Second || *cfg.PrettyJSON {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		base string
		ok   bool
	}{
		{"http://127.0.0.1:8090", true},
		{"https://example.org", true},
		{"127.0.0.1:8090", false},
		{"ftp://example.org", false},
		{"http://", false},
	}
	for _, tt := range tests {
		err := Config{BaseURL: tt.base}.Validate()
		if (err == nil) != tt.ok {
			t.Fatalf("%q: unexpected result %v", tt.base, err)
		}
	}
}
