package compile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/turingarena/turingarena-sub002/internal/common/cache"
	"github.com/turingarena/turingarena-sub002/internal/idl"
	"github.com/turingarena/turingarena-sub002/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const sumSource = `
function f(n, a[]);
main {
	read n;
	for i to n { read a[i]; }
	call r = f(n, a);
	write r;
}
`

func newRedisCache(t *testing.T) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCompileReportsInterface(t *testing.T) {
	reports, mr := newRedisCache(t)
	svc := NewService(Config{}, reports)
	ctx := context.Background()

	report, err := svc.Compile(ctx, sumSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !report.Valid || report.Key != Key(sumSource) {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(report.Methods) != 1 || report.Methods[0] != "function f(n, a[])" {
		t.Fatalf("methods = %v", report.Methods)
	}
	if strings.Join(report.Globals, ",") != "n,a[]" {
		t.Fatalf("globals = %v", report.Globals)
	}
	if !mr.Exists(reportKeyPrefix + report.Key) {
		t.Fatal("report should be shared through redis")
	}

	iface, err := svc.Interface(report.Key)
	if err != nil || len(iface.Methods) != 1 {
		t.Fatalf("interface lookup: %v", err)
	}
}

func TestReportFromAnotherReplica(t *testing.T) {
	reports, _ := newRedisCache(t)
	ctx := context.Background()

	first := NewService(Config{}, reports)
	report, err := first.Compile(ctx, sumSource)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	second := NewService(Config{}, reports)
	got, err := second.Report(ctx, report.Key)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if got.Description != report.Description {
		t.Fatalf("description differs:\n%s\nvs\n%s", got.Description, report.Description)
	}
	if _, err := second.Interface(report.Key); !errors.Is(err, errors.InterfaceNotCompiled) {
		t.Fatalf("second replica never compiled the interface, got %v", err)
	}

	if err := first.Forget(ctx, report.Key); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := second.Report(ctx, report.Key); !errors.Is(err, errors.NotFound) {
		t.Fatalf("expected not found after forget, got %v", err)
	}
}

func TestCompileKeepsDiagnostics(t *testing.T) {
	svc := NewService(Config{}, nil)
	report, err := svc.Compile(context.Background(), "main { read x; read x; }")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if report.Valid || len(report.Diagnostics) == 0 || report.Diagnostics[0].Code != idl.VariableReused {
		t.Fatalf("unexpected diagnostics %+v", report.Diagnostics)
	}
}

func TestCompileErrors(t *testing.T) {
	svc := NewService(Config{MaxSourceBytes: 64}, nil)
	tests := []struct {
		name   string
		source string
		want   errors.ErrorCode
	}{
		{"syntax error", "main { read ; }", errors.InterfaceSyntaxError},
		{"too large", strings.Repeat(" ", 65), errors.InterfaceTooLarge},
		{"empty", "  \n", errors.InvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Compile(context.Background(), tt.source)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want.Message(), err)
			}
		})
	}

	_, err := svc.Compile(context.Background(), "main {\n  read ; }")
	e := errors.GetError(err)
	if e.Details["line"] != 2 {
		t.Fatalf("syntax error should carry its position, got %v", e.Details)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.idl")
	bad := filepath.Join(dir, "bad.idl")
	if err := os.WriteFile(good, []byte(sumSource), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("main { read x; read x; }"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(good); err != nil {
		t.Fatalf("load good: %v", err)
	}
	if _, err := LoadFile(bad); !errors.Is(err, errors.InterfaceInvalid) {
		t.Fatalf("expected invalid interface, got %v", err)
	}
	if _, err := LoadFile(filepath.Join(dir, "missing.idl")); !errors.Is(err, errors.InterfaceReadFailed) {
		t.Fatalf("expected read failure, got %v", err)
	}
}

func TestShippedExamplesCompile(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "examples", "*.idl"))
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(paths) == 0 {
		t.Fatalf("no examples found")
	}
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			if _, err := LoadFile(path); err != nil {
				t.Fatalf("load %s failed: %v", path, err)
			}
		})
	}
}
