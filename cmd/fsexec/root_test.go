package main

import (
	"context"
	"strings"
	"testing"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr string
	}{
		{"local", options{addr: ":1", backend: backendLocal}, ""},
		{"docker without container", options{addr: ":1", backend: backendDocker}, "--container"},
		{"docker with container", options{addr: ":1", backend: backendDocker, container: "c1"}, ""},
		{"unknown backend", options{addr: ":1", backend: "s3"}, "unknown backend"},
		{"empty addr", options{backend: backendLocal}, "--addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewBackendLocalWithJail(t *testing.T) {
	backend, closeFn, err := newBackend(context.Background(), &options{backend: backendLocal, jail: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if backend == nil {
		t.Fatal("nil backend")
	}
}

func TestRootCmdFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"addr", "backend", "container", "user", "jail", "log-level"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
}
