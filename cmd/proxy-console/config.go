package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/turingarena/turingarena-sub002/internal/proxy"

	"gopkg.in/yaml.v3"
)

const defaultHistoryFile = ".proxy_console_history"

// Config holds proxy console settings.
type Config struct {
	Proxy       proxy.TransportConfig `yaml:"proxy"`
	HistoryFile string                `yaml:"historyFile"`
}

// Load reads path when it exists; a missing file means defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file failed: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("read config file failed: %w", err)
		}
	}
	if cfg.Proxy.Network == "" {
		cfg.Proxy.Network = "unix"
	}
	if cfg.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HistoryFile = filepath.Join(home, defaultHistoryFile)
		}
	}
	return &cfg, nil
}
