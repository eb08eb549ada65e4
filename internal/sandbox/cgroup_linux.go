//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// runCgroup is the cgroup v2 directory owned by one process. A nil
// *runCgroup means cgroups are off; every method is then a no-op.
type runCgroup struct {
	path string
}

func newRunCgroup(root, runID string) (*runCgroup, error) {
	path := filepath.Join(root, fmt.Sprintf("%s-%d", runID, time.Now().UnixNano()))
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("create cgroup %s: %w", path, err)
	}
	return &runCgroup{path: path}, nil
}

// limit writes pids.max and, with a memory limit, memory.max with swap off.
func (g *runCgroup) limit(limits Limits) error {
	if g == nil {
		return nil
	}
	pids := "max"
	if limits.PIDs > 0 {
		pids = strconv.FormatInt(limits.PIDs, 10)
	}
	values := [][2]string{{"pids.max", pids}}
	if limits.MemoryMB > 0 {
		values = append(values,
			[2]string{"memory.max", strconv.FormatInt(limits.MemoryMB<<20, 10)},
			[2]string{"memory.swap.max", "0"},
		)
	}
	for _, kv := range values {
		if err := g.write(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

func (g *runCgroup) add(pid int) error {
	if g == nil {
		return nil
	}
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return g.write("cgroup.procs", strconv.Itoa(pid))
}

// kill uses cgroup.kill where the kernel has it (5.14+).
func (g *runCgroup) kill() {
	if g == nil {
		return
	}
	if _, err := os.Stat(filepath.Join(g.path, "cgroup.kill")); err == nil {
		_ = g.write("cgroup.kill", "1")
	}
}

func (g *runCgroup) oomKilled() bool {
	if g == nil {
		return false
	}
	data, err := os.ReadFile(filepath.Join(g.path, "memory.events"))
	if err != nil {
		return false
	}
	for _, line := range strings.Split(string(data), "\n") {
		if name, value, ok := strings.Cut(strings.TrimSpace(line), " "); ok && name == "oom_kill" {
			n, _ := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			return n > 0
		}
	}
	return false
}

// peakKB prefers memory.peak and falls back to the child's max RSS.
func (g *runCgroup) peakKB(state *os.ProcessState) int64 {
	if g != nil {
		data, err := os.ReadFile(filepath.Join(g.path, "memory.peak"))
		if err == nil {
			if n, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64); err == nil && n > 0 {
				return n >> 10
			}
		}
	}
	if state == nil {
		return 0
	}
	if ru, ok := state.SysUsage().(*syscall.Rusage); ok {
		return ru.Maxrss
	}
	return 0
}

func (g *runCgroup) remove() {
	if g == nil {
		return
	}
	_ = os.Remove(g.path)
}

func (g *runCgroup) write(name, value string) error {
	if err := os.WriteFile(filepath.Join(g.path, name), []byte(value), 0o640); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
