package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/turingarena/turingarena-sub002/internal/common/http/middleware"
	"github.com/turingarena/turingarena-sub002/internal/compile"
	"github.com/turingarena/turingarena-sub002/pkg/errors"

	"github.com/gin-gonic/gin"
)

type envelope struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data"`
	Details map[string]any   `json:"details"`
	TraceID string           `json:"trace_id"`
}

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.TraceContext())
	NewInterfaceController(compile.NewService(compile.Config{}, nil)).Register(router.Group("/api/v1/interfaces"))
	return router
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "text/plain; charset=utf-8" {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", w.Body.String(), err)
		}
	}
	return w, env
}

const source = "procedure init(n);\nmain { read n; call init(n); }\n"

func TestCompileThenDescribe(t *testing.T) {
	router := newRouter()

	w, env := do(t, router, http.MethodPost, "/api/v1/interfaces", CompileRequest{Source: source})
	if w.Code != http.StatusOK || env.Code != errors.Success || env.TraceID == "" {
		t.Fatalf("compile: %d %+v", w.Code, env)
	}
	var report compile.Report
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if !report.Valid {
		t.Fatalf("expected valid report, got %+v", report)
	}

	w, env = do(t, router, http.MethodGet, "/api/v1/interfaces/"+report.Key, nil)
	if w.Code != http.StatusOK || env.Code != errors.Success {
		t.Fatalf("get: %d %+v", w.Code, env)
	}

	w, _ = do(t, router, http.MethodGet, "/api/v1/interfaces/"+report.Key+"/describe", nil)
	if w.Code != http.StatusOK || w.Body.String() != report.Description {
		t.Fatalf("describe: %d %q", w.Code, w.Body.String())
	}

	w, _ = do(t, router, http.MethodDelete, "/api/v1/interfaces/"+report.Key, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: %d", w.Code)
	}
	w, env = do(t, router, http.MethodGet, "/api/v1/interfaces/"+report.Key, nil)
	if w.Code != http.StatusNotFound || env.Code != errors.NotFound {
		t.Fatalf("expected not found after delete: %d %+v", w.Code, env)
	}
}

func TestCompileErrors(t *testing.T) {
	router := newRouter()
	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   errors.ErrorCode
	}{
		{"missing source", "/api/v1/interfaces", map[string]string{}, http.StatusBadRequest, errors.InvalidParams},
		{"syntax error", "/api/v1/interfaces", CompileRequest{Source: "main {"}, http.StatusUnprocessableEntity, errors.InterfaceSyntaxError},
		{"validate with diagnostics", "/api/v1/interfaces/validate", CompileRequest{Source: "main { read x; read x; }"}, http.StatusUnprocessableEntity, errors.InterfaceInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, router, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.wantStatus || env.Code != tt.wantCode {
				t.Fatalf("got %d %+v", w.Code, env)
			}
		})
	}
}

func TestValidateCarriesReport(t *testing.T) {
	router := newRouter()
	_, env := do(t, router, http.MethodPost, "/api/v1/interfaces/validate", CompileRequest{Source: "main { read x; read x; }"})
	var report compile.Report
	if err := json.Unmarshal(env.Data, &report); err != nil {
		t.Fatal(err)
	}
	if len(report.Diagnostics) == 0 {
		t.Fatal("invalid interface should carry its diagnostics")
	}
}
