package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"covercache/internal/config"
	"covercache/internal/testsupport"
)

const (
	duneISBN    = "9780441013593"
	duneSummary = "A desert planet and its spice."
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	server     *httptest.Server
	coverHits  atomic.Int64
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	env := &cliTestEnv{}
	env.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/b/isbn/" + duneISBN + "-L.jpg", "/b/isbn/" + duneISBN + "-M.jpg":
			env.coverHits.Add(1)
			_, _ = w.Write([]byte("jpeg-bytes"))
		case "/isbn/" + duneISBN + ".json":
			_, _ = w.Write([]byte(`{"description":"` + duneSummary + `"}`))
		case "/search.json":
			_, _ = w.Write([]byte(`{"docs":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(env.server.Close)

	opts = append([]testsupport.ConfigOption{testsupport.WithOpenLibrary(env.server.URL)}, opts...)
	env.cfg = testsupport.NewConfig(t, opts...)
	env.configPath = filepath.Join(t.TempDir(), "config.toml")
	writeTestConfig(t, env.configPath, env.cfg)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, "")
}

func runCLIWithInput(t *testing.T, args []string, configPath, stdin string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q, got:\n%s", substr, output)
	}
}
