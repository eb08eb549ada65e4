package command

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildRequest(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sum.idl")
	if err := os.WriteFile(file, []byte("main { }\n"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	registry := Registry()

	tests := []struct {
		name       string
		command    string
		params     Params
		wantMethod string
		wantPath   string
		wantSource string
		wantErr    bool
	}{
		{name: "compile inline", command: "interface compile", params: Params{"source": "main { }"}, wantMethod: "POST", wantPath: "/api/v1/interfaces", wantSource: "main { }"},
		{name: "validate from file", command: "interface validate", params: Params{"source_file": file}, wantMethod: "POST", wantPath: "/api/v1/interfaces/validate", wantSource: "main { }\n"},
		{name: "alias", command: "interface compile", params: Params{"src": "main { }"}, wantMethod: "POST", wantPath: "/api/v1/interfaces", wantSource: "main { }"},
		{name: "describe", command: "interface describe", params: Params{"key": "abc"}, wantMethod: "GET", wantPath: "/api/v1/interfaces/abc/describe"},
		{name: "forget by id alias", command: "interface forget", params: Params{"id": "abc"}, wantMethod: "DELETE", wantPath: "/api/v1/interfaces/abc"},
		{name: "health", command: "service health", params: Params{}, wantMethod: "GET", wantPath: "/healthz"},
		{name: "missing key", command: "interface get", params: Params{}, wantErr: true},
		{name: "missing source", command: "interface compile", params: Params{}, wantErr: true},
		{name: "unreadable file", command: "interface compile", params: Params{"source_file": filepath.Join(dir, "nope")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := registry[tt.command]
			if !ok {
				t.Fatalf("command %q not registered", tt.command)
			}
			req, err := BuildRequest(cmd, tt.params)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("build failed: %v", err)
			}
			if req.Method != tt.wantMethod || req.Path != tt.wantPath {
				t.Fatalf("got %s %s", req.Method, req.Path)
			}
			if tt.wantSource == "" {
				if len(req.Body) != 0 {
					t.Fatalf("unexpected body %s", req.Body)
				}
				return
			}
			var body map[string]string
			if err := json.Unmarshal(req.Body, &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["source"] != tt.wantSource {
				t.Fatalf("source = %q, want %q", body["source"], tt.wantSource)
			}
		})
	}
}

func TestSortedIsStable(t *testing.T) {
	sorted := Sorted(Registry())
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1].Key() >= sorted[i].Key() {
			t.Fatalf("commands out of order: %q before %q", sorted[i-1].Key(), sorted[i].Key())
		}
	}
}
