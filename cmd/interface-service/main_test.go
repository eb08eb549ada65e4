package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/common/cache"
	"github.com/turingarena/turingarena-sub002/internal/compile"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestHealthz(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	reports, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	if err := reports.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	srv := buildHTTPServer(ServerConfig{MaxBodyBytes: defaultMaxBodyBytes}, compile.NewService(compile.Config{}, reports), reports)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	mr.Close()
	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code == http.StatusOK {
		t.Fatalf("expected failure once redis is gone")
	}
}

func TestCompileRouteMounted(t *testing.T) {
	srv := buildHTTPServer(ServerConfig{MaxBodyBytes: defaultMaxBodyBytes}, compile.NewService(compile.Config{}, nil), nil)
	body := `{"source":"procedure init(n);\nmain { read n; call init(n); }\n"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interfaces", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Trace-Id") == "" {
		t.Fatalf("trace id header missing")
	}
}

func TestBodyLimit(t *testing.T) {
	srv := buildHTTPServer(ServerConfig{MaxBodyBytes: 16}, compile.NewService(compile.Config{}, nil), nil)
	body := `{"source":"` + strings.Repeat("x", 64) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/interfaces", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	if rec.Code == http.StatusOK {
		t.Fatalf("oversized body must be rejected")
	}
}

func TestRateLimitAppliesWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	reports, err := cache.NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache failed: %v", err)
	}
	cfg := ServerConfig{MaxBodyBytes: defaultMaxBodyBytes}
	cfg.RateLimit.IPMax = 1
	cfg.RateLimit.Window = time.Minute
	srv := buildHTTPServer(cfg, compile.NewService(compile.Config{}, reports), reports)

	var last int
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/interfaces/none", nil))
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", last)
	}
}
