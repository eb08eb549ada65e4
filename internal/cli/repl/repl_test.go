package repl

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/turingarena/turingarena-sub002/internal/cli/command"
	httpclient "github.com/turingarena/turingarena-sub002/internal/cli/http"
)

type recorded struct {
	method, path, body, requestID string
}

func newServer(t *testing.T, seen *[]recorded) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		*seen = append(*seen, recorded{r.Method, r.URL.Path, string(body), r.Header.Get("X-Request-Id")})
		w.Header().Set("X-Trace-Id", "trace-1")
		if strings.HasSuffix(r.URL.Path, "/describe") {
			_, _ = w.Write([]byte("function f();\n"))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"code": 10000, "data": map[string]string{"key": "k1"}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunSendsCommandsAndPrompts(t *testing.T) {
	var seen []recorded
	srv := newServer(t, &seen)

	in := strings.NewReader("help\ninterface compile\nmain { }\ninterface describe key=k1\nbogus cmd\nexit\n")
	var out bytes.Buffer
	New(httpclient.New(srv.URL, time.Second), command.Registry(), true, in, &out).Run(context.Background())

	if len(seen) != 2 {
		t.Fatalf("expected 2 requests, got %+v", seen)
	}
	if seen[0].method != http.MethodPost || seen[0].path != "/api/v1/interfaces" || !strings.Contains(seen[0].body, `"main { }"`) {
		t.Fatalf("unexpected compile request %+v", seen[0])
	}
	if seen[0].requestID == "" {
		t.Fatalf("request id missing")
	}
	if seen[1].path != "/api/v1/interfaces/k1/describe" {
		t.Fatalf("unexpected describe request %+v", seen[1])
	}

	text := out.String()
	for _, want := range []string{"interface compile", "interface source:", "trace=trace-1", `"key": "k1"`, "function f();", "unknown command: bogus cmd", "bye"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunStopsAtEndOfInput(t *testing.T) {
	var seen []recorded
	srv := newServer(t, &seen)
	var out bytes.Buffer
	New(httpclient.New(srv.URL, time.Second), command.Registry(), false, strings.NewReader("service health"), &out).Run(context.Background())
	if len(seen) != 1 || seen[0].path != "/healthz" {
		t.Fatalf("unexpected requests %+v", seen)
	}
}

func TestSetCommands(t *testing.T) {
	client := httpclient.New("http://old", time.Second)
	var out bytes.Buffer
	in := strings.NewReader("set base http://new\nset timeout nope\nshow config\n")
	New(client, command.Registry(), false, in, &out).Run(context.Background())
	if client.BaseURL() != "http://new" {
		t.Fatalf("base not updated: %s", client.BaseURL())
	}
	if !strings.Contains(out.String(), "invalid duration") || !strings.Contains(out.String(), "base: http://new") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestExecRejectsBadParams(t *testing.T) {
	s := New(httpclient.New("http://unused", time.Second), command.Registry(), false, strings.NewReader(""), io.Discard)
	for _, line := range []string{"interface", "interface get keyonly", `interface get key="unterminated`} {
		if err := s.Exec(context.Background(), line); err == nil {
			t.Fatalf("%q: expected error", line)
		}
	}
}

func TestExecReportsErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":20001,"message":"Interface has errors","trace_id":"trace-9"}`))
	}))
	t.Cleanup(srv.Close)

	var out bytes.Buffer
	s := New(httpclient.New(srv.URL+"/", time.Second), command.Registry(), false, strings.NewReader(""), &out)
	err := s.Exec(context.Background(), "interface validate source='main { }'")
	if err == nil || !strings.Contains(err.Error(), "returned 422") {
		t.Fatalf("expected 422 error, got %v", err)
	}
	if !strings.Contains(out.String(), "code=20001 Interface has errors trace=trace-9") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}
