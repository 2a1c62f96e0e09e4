package transport_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"covercache/internal/cachelock"
	"covercache/internal/transport"
)

func TestFetchWritesBodyAtomically(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != transport.DefaultUserAgent {
			t.Errorf("unexpected user agent %q", got)
		}
		_, _ = w.Write([]byte("jpegdata"))
	}))
	t.Cleanup(server.Close)

	root := t.TempDir()
	dest := filepath.Join(root, "isbn_9780140449136_L.jpg")
	client := transport.New(transport.WithCacheLock(root))

	path, ok := client.Fetch(context.Background(), server.URL+"/b/isbn/9780140449136-L.jpg", dest, true)
	if !ok || path != dest {
		t.Fatalf("Fetch = (%q, %v), want (%q, true)", path, ok, dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "jpegdata" {
		t.Fatalf("unexpected file content %q (%v)", data, err)
	}
	assertNoTempFiles(t, root)
}

func TestFetchFailuresAreAbsent(t *testing.T) {
	tests := []struct {
		name             string
		status           int
		body             string
		notFoundAsAbsent bool
	}{
		{"404 allowed", http.StatusNotFound, "", true},
		{"404 not allowed", http.StatusNotFound, "missing", false},
		{"server error", http.StatusInternalServerError, "oops", true},
		{"empty body", http.StatusOK, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			t.Cleanup(server.Close)

			root := t.TempDir()
			dest := filepath.Join(root, "cover.jpg")
			path, ok := transport.New().Fetch(context.Background(), server.URL, dest, tt.notFoundAsAbsent)
			if ok || path != "" {
				t.Fatalf("expected absent result, got (%q, %v)", path, ok)
			}
			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Fatalf("destination should not exist: %v", err)
			}
			assertNoTempFiles(t, root)
		})
	}
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client := transport.New(transport.WithTimeout(50 * time.Millisecond))
	if _, ok := client.Fetch(context.Background(), server.URL, filepath.Join(t.TempDir(), "c.jpg"), true); ok {
		t.Fatal("expected timeout to yield absent")
	}
}

func TestFetchUnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	if _, ok := transport.New().Fetch(context.Background(), url, filepath.Join(t.TempDir(), "c.jpg"), true); ok {
		t.Fatal("expected connection failure to yield absent")
	}
}

func TestFetchOverwritesExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	t.Cleanup(server.Close)

	dest := filepath.Join(t.TempDir(), "olid_1_L.jpg")
	if err := os.WriteFile(dest, []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := transport.New().Fetch(context.Background(), server.URL, dest, true); !ok {
		t.Fatal("expected fetch to succeed")
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "fresh" {
		t.Fatalf("expected overwrite, got %q", data)
	}
}

func TestFetchWaitsForExclusiveLock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	t.Cleanup(server.Close)

	root := t.TempDir()
	unlock, err := cachelock.Exclusive(context.Background(), root)
	if err != nil {
		t.Fatalf("exclusive: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	client := transport.New(transport.WithCacheLock(root))
	dest := filepath.Join(root, "olid_5_L.jpg")
	if _, ok := client.Fetch(ctx, server.URL, dest, true); ok {
		t.Fatal("expected fetch to give up while the cache is exclusively locked")
	}
	unlock()
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("destination should not exist: %v", err)
	}
	assertNoTempFiles(t, root)
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"description":"A novel"}`))
		case "/bad.json":
			_, _ = w.Write([]byte(`{not json`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	client := transport.New(transport.WithUserAgent("test-agent/1"))
	var payload struct {
		Description string `json:"description"`
	}
	if !client.GetJSON(context.Background(), server.URL+"/ok.json", &payload) {
		t.Fatal("expected GetJSON success")
	}
	if payload.Description != "A novel" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	if client.GetJSON(context.Background(), server.URL+"/bad.json", &payload) {
		t.Fatal("expected malformed json to fail")
	}
	if client.GetJSON(context.Background(), server.URL+"/missing.json", &payload) {
		t.Fatal("expected 404 to fail")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Fatalf("temp file left behind: %s", entry.Name())
		}
	}
}
