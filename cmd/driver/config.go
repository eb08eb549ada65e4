package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/archive"
	"github.com/turingarena/turingarena-sub002/internal/driver"
	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/internal/sandbox"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultCPUTimeMs  = 10_000
	defaultWallTimeMs = 30_000
	defaultMemoryMB   = 256
	defaultStackMB    = 64
	defaultOutputMB   = 16
	defaultPIDs       = 16

	defaultTranscriptDir = "turingarena-transcripts"
	defaultEventTopic    = "driver.runs"
	archiveTimeout       = 30 * time.Second
)

// AppConfig holds driver config.
type AppConfig struct {
	Logger logger.Config `yaml:"logger"`
	// Interface is the path of the interface source.
	Interface string                `yaml:"interface"`
	Proxy     proxy.TransportConfig `yaml:"proxy"`
	Sandbox   sandbox.Config        `yaml:"sandbox"`
	Session   driver.SessionConfig  `yaml:"session"`
	Archive   archive.Config        `yaml:"archive"`
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

// loadAppConfig reads path when it is set; every field has a default or
// a flag override.
func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}
	applyLimitDefaults(&cfg.Session.Limits)
	if cfg.Proxy.Network == "" {
		cfg.Proxy.Network = "stdio"
	}
	// Archiving uploads the transcript, so one must be recorded.
	if cfg.Archive.Storage.Endpoint != "" && cfg.Session.TranscriptDir == "" {
		cfg.Session.TranscriptDir = filepath.Join(os.TempDir(), defaultTranscriptDir)
	}
	if cfg.Archive.Events.Topic == "" {
		cfg.Archive.Events.Topic = defaultEventTopic
	}
	return &cfg, nil
}

func validate(cfg *AppConfig) error {
	if cfg.Interface == "" {
		return fmt.Errorf("interface path is required")
	}
	if len(cfg.Session.Cmd) == 0 {
		return fmt.Errorf("program command is required")
	}
	if cfg.Proxy.Network != "stdio" && cfg.Proxy.Address == "" {
		return fmt.Errorf("proxy address is required for %s", cfg.Proxy.Network)
	}
	return nil
}

func applyLimitDefaults(l *sandbox.Limits) {
	if l.CPUTimeMs == 0 {
		l.CPUTimeMs = defaultCPUTimeMs
	}
	if l.WallTimeMs == 0 {
		l.WallTimeMs = defaultWallTimeMs
	}
	if l.MemoryMB == 0 {
		l.MemoryMB = defaultMemoryMB
	}
	if l.StackMB == 0 {
		l.StackMB = defaultStackMB
	}
	if l.OutputMB == 0 {
		l.OutputMB = defaultOutputMB
	}
	if l.PIDs == 0 {
		l.PIDs = defaultPIDs
	}
}
