//go:build linux

package driver

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/turingarena/turingarena-sub002/internal/proxy"
	"github.com/turingarena/turingarena-sub002/internal/sandbox"
	"github.com/turingarena/turingarena-sub002/internal/sandbox/transcript"
	"github.com/turingarena/turingarena-sub002/pkg/errors"
)

// sumProgram plays the submitted side of sumInterface.
const sumProgram = `echo 0; read n; s=0; i=0
while [ $i -lt $n ]; do read x; s=$((s + x)); i=$((i + 1)); done
echo $s; echo $s`

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("/bin/sh not available")
	}
}

func encodeRequests(t *testing.T, reqs ...*proxy.Request) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	enc := proxy.NewEncoder(&buf)
	for _, req := range reqs {
		if err := enc.WriteRequest(req); err != nil {
			t.Fatalf("encode %v: %v", req, err)
		}
	}
	return &buf
}

func newSession(t *testing.T, cfg SessionConfig) *Session {
	t.Helper()
	sb, err := sandbox.NewEngine(sandbox.Config{})
	if err != nil {
		t.Fatalf("new sandbox: %v", err)
	}
	return NewSession(NewEngine(), sb, cfg)
}

func TestSessionRunsSubmittedProgram(t *testing.T) {
	requireShell(t)
	dir := t.TempDir()
	session := newSession(t, SessionConfig{
		Cmd:           []string{"/bin/sh", "-c", sumProgram},
		Limits:        sandbox.Limits{WallTimeMs: 5000},
		TranscriptDir: dir,
	})

	in := encodeRequests(t,
		mainBegin(),
		call("f", false, proxy.Scalar(3), proxy.Ints(4, 5, 6)),
		mainEnd,
	)
	var out bytes.Buffer
	report, err := session.Run(context.Background(), compile(t, sumInterface), proxy.NewPipeConn(in, &out))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if report.Usage == nil || report.Usage.ExitCode != 0 {
		t.Fatalf("unexpected usage %+v", report.Usage)
	}

	resp, err := proxy.NewDecoder(&out).ReadResponse()
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Kind != proxy.FunctionReturn || resp.Value.Int() != 15 {
		t.Fatalf("unexpected response %v", resp)
	}

	if report.Transcript != filepath.Join(dir, report.RunID+".log.zst") {
		t.Fatalf("unexpected transcript path %q", report.Transcript)
	}
	entries, err := transcript.ReadFile(report.Transcript)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if len(entries) != 7 {
		t.Fatalf("expected 7 transcript entries, got %v", entries)
	}
}

func TestSessionReportsTimeLimit(t *testing.T) {
	requireShell(t)
	session := newSession(t, SessionConfig{
		Cmd:    []string{"/bin/sh", "-c", "sleep 5"},
		Limits: sandbox.Limits{WallTimeMs: 200},
	})

	in := encodeRequests(t, mainBegin())
	_, err := session.Run(context.Background(), compile(t, sumInterface), proxy.NewPipeConn(in, &bytes.Buffer{}))
	if !errors.Is(err, errors.TimeLimitExceeded) {
		t.Fatalf("expected time limit exceeded, got %v", err)
	}
}

func TestSessionReportsRuntimeErrorWithUsage(t *testing.T) {
	requireShell(t)
	session := newSession(t, SessionConfig{
		Cmd: []string{"/bin/sh", "-c", "exit 3"},
	})

	in := encodeRequests(t, mainBegin())
	_, err := session.Run(context.Background(), compile(t, sumInterface), proxy.NewPipeConn(in, &bytes.Buffer{}))
	e := errors.GetError(err)
	if e == nil || e.Code != errors.SandboxStreamClosed {
		t.Fatalf("expected closed stream, got %v", err)
	}
	if e.Details["exit_code"] != 3 {
		t.Fatalf("expected usage details, got %v", e.Details)
	}
}
