//go:build linux

package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readCgroupFile(t *testing.T, g *runCgroup, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(g.path, name))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func TestRunCgroupWritesLimits(t *testing.T) {
	root := t.TempDir()
	g, err := newRunCgroup(root, "run-1")
	if err != nil {
		t.Fatalf("new cgroup: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(g.path), "run-1-") {
		t.Fatalf("unexpected cgroup path %s", g.path)
	}
	if err := g.limit(Limits{MemoryMB: 64, PIDs: 4}); err != nil {
		t.Fatalf("limit: %v", err)
	}
	if got := readCgroupFile(t, g, "memory.max"); got != "67108864" {
		t.Fatalf("memory.max = %q", got)
	}
	if got := readCgroupFile(t, g, "pids.max"); got != "4" {
		t.Fatalf("pids.max = %q", got)
	}
	if got := readCgroupFile(t, g, "memory.swap.max"); got != "0" {
		t.Fatalf("memory.swap.max = %q", got)
	}
	if err := g.add(0); err == nil {
		t.Fatalf("expected error for pid 0")
	}
}

func TestRunCgroupReadsUsage(t *testing.T) {
	g, err := newRunCgroup(t.TempDir(), "run-2")
	if err != nil {
		t.Fatalf("new cgroup: %v", err)
	}
	if g.oomKilled() {
		t.Fatalf("no memory.events means no oom kill")
	}
	if err := g.write("memory.events", "low 0\nhigh 0\nmax 3\noom 1\noom_kill 1\n"); err != nil {
		t.Fatalf("write events: %v", err)
	}
	if err := g.write("memory.peak", "2097152\n"); err != nil {
		t.Fatalf("write peak: %v", err)
	}
	if !g.oomKilled() {
		t.Fatalf("oom_kill 1 should be reported")
	}
	if got := g.peakKB(nil); got != 2048 {
		t.Fatalf("peakKB = %d", got)
	}
}

func TestNilRunCgroupIsNoop(t *testing.T) {
	var g *runCgroup
	if err := g.limit(Limits{MemoryMB: 1}); err != nil {
		t.Fatalf("limit on nil cgroup: %v", err)
	}
	if err := g.add(1); err != nil {
		t.Fatalf("add on nil cgroup: %v", err)
	}
	g.kill()
	g.remove()
	if g.oomKilled() || g.peakKB(nil) != 0 {
		t.Fatalf("nil cgroup should report nothing")
	}
}
