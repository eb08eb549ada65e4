// Package sandbox starts the submitted program under resource limits and
// exposes its stdio as a line-oriented connection.
package sandbox

import (
	"context"
	"sync"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// Limits describes hard limits enforced on the child process.
type Limits struct {
	CPUTimeMs  int64 `yaml:"cpuTimeMs"`
	WallTimeMs int64 `yaml:"wallTimeMs"`
	MemoryMB   int64 `yaml:"memoryMB"`
	StackMB    int64 `yaml:"stackMB"`
	OutputMB   int64 `yaml:"outputMB"`
	PIDs       int64 `yaml:"pids"`
}

// Spec describes one child process.
type Spec struct {
	RunID   string
	WorkDir string
	Cmd     []string
	Env     []string
	Limits  Limits
}

func (s Spec) validate() error {
	if s.RunID == "" {
		return errors.BadRequest("run id is required")
	}
	if len(s.Cmd) == 0 {
		return errors.BadRequest("command is required")
	}
	return nil
}

// Engine starts sandboxed processes.
type Engine interface {
	Start(ctx context.Context, spec Spec) (*Process, error)
}

// Usage is the resource-usage snapshot taken when the child exits.
type Usage struct {
	ExitCode   int    `json:"exit_code"`
	Signal     string `json:"signal,omitempty"`
	TimeMs     int64  `json:"time_ms"`
	WallTimeMs int64  `json:"wall_time_ms"`
	MemoryKB   int64  `json:"memory_kb"`
	OomKilled  bool   `json:"oom_killed,omitempty"`
	TimedOut   bool   `json:"timed_out,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
}

// Classify maps the snapshot to a resource verdict. Success means the
// process neither broke a limit nor failed.
func (u Usage) Classify(limits Limits) errors.ErrorCode {
	switch {
	case u.TimedOut, u.Signal == "SIGXCPU",
		limits.CPUTimeMs > 0 && u.TimeMs > limits.CPUTimeMs:
		return errors.TimeLimitExceeded
	case u.OomKilled, limits.MemoryMB > 0 && u.MemoryKB > limits.MemoryMB*1024:
		return errors.MemoryLimitExceeded
	case u.Signal != "", u.ExitCode != 0:
		return errors.RuntimeError
	}
	return errors.Success
}

// Details renders the snapshot for error details.
func (u Usage) Details() map[string]interface{} {
	d := map[string]interface{}{
		"exit_code":    u.ExitCode,
		"time_ms":      u.TimeMs,
		"wall_time_ms": u.WallTimeMs,
		"memory_kb":    u.MemoryKB,
	}
	if u.Signal != "" {
		d["signal"] = u.Signal
	}
	if u.OomKilled {
		d["oom_killed"] = true
	}
	if u.TimedOut {
		d["timed_out"] = true
	}
	return d
}

// Process is a started child. Its Conn carries the raw stdio text.
type Process struct {
	conn *LineConn
	kill func()
	wait func() Usage

	once  sync.Once
	usage Usage
}

func (p *Process) Conn() *LineConn { return p.conn }

// Kill stops the whole process group.
func (p *Process) Kill() {
	if p.kill != nil {
		p.kill()
	}
}

// Wait closes the child's stdin, waits for it to exit and returns its
// usage. It is safe to call more than once.
func (p *Process) Wait() Usage {
	p.once.Do(func() {
		_ = p.conn.CloseWrite()
		p.usage = p.wait()
	})
	return p.usage
}
