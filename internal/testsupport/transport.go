package testsupport

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"covercache/internal/transport"
)

// Response is a canned reply served by StubTransport.
type Response struct {
	Status int
	Body   []byte
}

// StubTransport is an in-memory transport.Fetcher that records every call.
// URLs without a route answer 404.
type StubTransport struct {
	t      testing.TB
	forbid bool
	delay  time.Duration

	mu     sync.Mutex
	routes map[string]Response
	calls  []string
}

var _ transport.Fetcher = (*StubTransport)(nil)

// NewStubTransport returns an empty stub.
func NewStubTransport(t testing.TB) *StubTransport {
	return &StubTransport{t: t, routes: make(map[string]Response)}
}

// ForbidTransport returns a stub that fails the test if it is invoked.
func ForbidTransport(t testing.TB) *StubTransport {
	stub := NewStubTransport(t)
	stub.forbid = true
	return stub
}

// WithDelay makes every call sleep for d before answering.
func (s *StubTransport) WithDelay(d time.Duration) *StubTransport {
	s.delay = d
	return s
}

// Route serves body with status for url.
func (s *StubTransport) Route(url string, status int, body string) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[url] = Response{Status: status, Body: []byte(body)}
	return s
}

// RouteJSON serves v encoded as JSON for url.
func (s *StubTransport) RouteJSON(url string, v any) *StubTransport {
	data, err := json.Marshal(v)
	if err != nil {
		s.t.Fatalf("encode route %s: %v", url, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[url] = Response{Status: http.StatusOK, Body: data}
	return s
}

func (s *StubTransport) record(ctx context.Context, url string) (Response, bool) {
	if s.forbid {
		s.t.Errorf("unexpected transport call: %s", url)
	}
	s.mu.Lock()
	s.calls = append(s.calls, url)
	resp, ok := s.routes[url]
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return Response{}, false
		}
	}
	if !ok {
		return Response{Status: http.StatusNotFound}, true
	}
	return resp, true
}

// Fetch implements transport.Fetcher.
func (s *StubTransport) Fetch(ctx context.Context, url, dest string, _ bool) (string, bool) {
	resp, ok := s.record(ctx, url)
	if !ok || resp.Status < 200 || resp.Status > 299 || len(resp.Body) == 0 {
		return "", false
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", false
	}
	if err := os.WriteFile(dest, resp.Body, 0o644); err != nil {
		return "", false
	}
	return dest, true
}

// GetJSON implements transport.Fetcher.
func (s *StubTransport) GetJSON(ctx context.Context, url string, v any) bool {
	resp, ok := s.record(ctx, url)
	if !ok || resp.Status != http.StatusOK {
		return false
	}
	return json.Unmarshal(resp.Body, v) == nil
}

// Calls returns a copy of the URLs requested so far, in order.
func (s *StubTransport) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallCount returns the number of calls made.
func (s *StubTransport) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// CallsTo returns how many times url was requested.
func (s *StubTransport) CallsTo(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, call := range s.calls {
		if call == url {
			n++
		}
	}
	return n
}
