//go:build linux

package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/turingarena/turingarena-sub002/pkg/errors"
	"github.com/turingarena/turingarena-sub002/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type linuxEngine struct {
	cfg Config
}

// NewEngine creates a Linux sandbox engine.
func NewEngine(cfg Config) (Engine, error) {
	cfg.applyDefaults()
	if cfg.EnableCgroup && cfg.CgroupRoot == "" {
		return nil, errors.BadRequest("cgroup root is required when cgroups are enabled")
	}
	return &linuxEngine{cfg: cfg}, nil
}

func (e *linuxEngine) Start(ctx context.Context, spec Spec) (*Process, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}

	var cg *runCgroup
	if e.cfg.EnableCgroup {
		var err error
		if cg, err = newRunCgroup(e.cfg.CgroupRoot, spec.RunID); err != nil {
			return nil, errors.Wrapf(err, errors.SandboxStartFailed, "create cgroup")
		}
		if err := cg.limit(spec.Limits); err != nil {
			cg.remove()
			return nil, errors.Wrapf(err, errors.SandboxStartFailed, "apply cgroup limits")
		}
	}

	argv := e.cfg.argv(spec.Cmd)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = spec.WorkDir
	cmd.Env = spec.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cg.remove()
		return nil, errors.Wrapf(err, errors.SandboxStartFailed, "stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cg.remove()
		return nil, errors.Wrapf(err, errors.SandboxStartFailed, "stdout pipe")
	}
	stderr := &limitedBuffer{max: e.cfg.StderrMaxBytes}
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		cg.remove()
		return nil, errors.Wrapf(err, errors.SandboxStartFailed, "start %s", spec.Cmd[0])
	}
	pid := cmd.Process.Pid

	// Limits are applied right after start; the wall timer covers the
	// instructions the child runs before they take effect.
	if err := applyRlimits(pid, spec.Limits); err != nil {
		killProcessGroup(pid)
		_ = cmd.Wait()
		cg.remove()
		return nil, errors.Wrapf(err, errors.SandboxStartFailed, "apply rlimits")
	}
	if err := cg.add(pid); err != nil {
		logger.Warn(ctx, "add process to cgroup failed", zap.String("cgroup", cg.path), zap.Error(err))
	}

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if spec.Limits.WallTimeMs > 0 {
			timer := time.NewTimer(time.Duration(spec.Limits.WallTimeMs) * time.Millisecond)
			defer timer.Stop()
			wallTimer = timer.C
		}
		select {
		case <-ctx.Done():
			killProcessGroup(pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(pid)
		case <-done:
		}
	}()

	kill := func() {
		killProcessGroup(pid)
		cg.kill()
	}
	wait := func() Usage {
		waitErr := cmd.Wait()
		close(done)
		defer cg.remove()

		usage := Usage{
			ExitCode:   -1,
			WallTimeMs: time.Since(start).Milliseconds(),
			MemoryKB:   cg.peakKB(cmd.ProcessState),
			OomKilled:  cg.oomKilled(),
			TimedOut:   timedOut.Load(),
			Stderr:     stderr.String(),
		}
		if state := cmd.ProcessState; state != nil {
			usage.ExitCode = state.ExitCode()
			usage.TimeMs = cpuTimeMs(state)
			if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				usage.Signal = unix.SignalName(ws.Signal())
			}
		}
		if waitErr != nil && cmd.ProcessState == nil {
			logger.Warn(ctx, "wait for process failed", zap.Error(waitErr))
		}
		logger.Debug(ctx, "process exited",
			zap.Int("exit_code", usage.ExitCode),
			zap.String("signal", usage.Signal),
			zap.Int64("time_ms", usage.TimeMs),
			zap.Int64("memory_kb", usage.MemoryKB),
		)
		return usage
	}

	return &Process{conn: NewLineConn(stdout, stdin), kill: kill, wait: wait}, nil
}

func applyRlimits(pid int, limits Limits) error {
	set := func(resource int, value uint64) error {
		lim := &unix.Rlimit{Cur: value, Max: value}
		if err := unix.Prlimit(pid, resource, lim, nil); err != nil {
			return fmt.Errorf("prlimit %d: %w", resource, err)
		}
		return nil
	}
	if limits.CPUTimeMs > 0 {
		// Whole seconds, rounded up, plus one so the wall timer and the
		// usage snapshot decide close calls.
		seconds := uint64((limits.CPUTimeMs+999)/1000) + 1
		lim := &unix.Rlimit{Cur: seconds, Max: seconds + 1}
		if err := unix.Prlimit(pid, unix.RLIMIT_CPU, lim, nil); err != nil {
			return fmt.Errorf("prlimit cpu: %w", err)
		}
	}
	if limits.MemoryMB > 0 {
		// The address space is allowed twice the memory limit; the usage
		// snapshot decides MLE on the resident peak.
		if err := set(unix.RLIMIT_AS, uint64(limits.MemoryMB)<<21); err != nil {
			return err
		}
	}
	if limits.StackMB > 0 {
		if err := set(unix.RLIMIT_STACK, uint64(limits.StackMB)<<20); err != nil {
			return err
		}
	}
	if limits.OutputMB > 0 {
		if err := set(unix.RLIMIT_FSIZE, uint64(limits.OutputMB)<<20); err != nil {
			return err
		}
	}
	return nil
}

func cpuTimeMs(state *os.ProcessState) int64 {
	return (state.UserTime() + state.SystemTime()).Milliseconds()
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}
