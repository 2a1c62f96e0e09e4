package cover_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"covercache/internal/cachepath"
	"covercache/internal/cover"
	"covercache/internal/identity"
	"covercache/internal/openlibrary"
	"covercache/internal/testsupport"
)

const base = "http://ol.test"

type fixture struct {
	mapper    cachepath.Mapper
	endpoints openlibrary.Endpoints
	stub      *testsupport.StubTransport
	orch      *cover.Orchestrator
	client    *openlibrary.Client
}

func newFixture(t *testing.T, stub *testsupport.StubTransport, opts ...cover.Option) *fixture {
	t.Helper()
	mapper := cachepath.New(t.TempDir())
	endpoints := openlibrary.Endpoints{BaseURL: base, CoversURL: base, SearchLimit: 10}
	return &fixture{
		mapper:    mapper,
		endpoints: endpoints,
		stub:      stub,
		orch:      cover.New(mapper, endpoints, stub, opts...),
		client:    openlibrary.New(stub, endpoints, nil),
	}
}

func (f *fixture) resolve(req cover.Request) cover.Result {
	search := openlibrary.NewSharedSearch(f.client, req.Title, req.Author)
	return f.orch.Resolve(context.Background(), req, search)
}

func TestCachedISBNSkipsNetwork(t *testing.T) {
	f := newFixture(t, testsupport.ForbidTransport(t))
	cached := f.mapper.ISBNPath("9780140449136", cachepath.SizeLarge)
	testsupport.WriteFile(t, cached, 128)

	res := f.resolve(cover.Request{ISBN: "978-0-14-044913-6", Size: cachepath.SizeLarge})
	if res.Path != cached || res.Final != cover.StateFound {
		t.Fatalf("unexpected result %+v", res)
	}
	want := []cover.State{cover.StateStart, cover.StateTryISBNCache, cover.StateFound}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestForceRefreshRefetches(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t))
	f.stub.Route(f.endpoints.CoverByISBN("9780140449136", cachepath.SizeLarge), http.StatusOK, "fresh")
	cached := f.mapper.ISBNPath("9780140449136", cachepath.SizeLarge)
	testsupport.WriteFile(t, cached, 8)

	res := f.resolve(cover.Request{ISBN: "9780140449136", ForceRefresh: true})
	if res.Path != cached {
		t.Fatalf("unexpected path %q", res.Path)
	}
	if f.stub.CallCount() != 1 {
		t.Fatalf("expected one transport call, got %v", f.stub.Calls())
	}
	if got := testsupport.ReadFile(t, cached); got != "fresh" {
		t.Fatalf("expected refreshed content, got %q", got)
	}
}

func TestEmptyFileIsNotCached(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t))
	url := f.endpoints.CoverByISBN("9780140449136", cachepath.SizeLarge)
	f.stub.Route(url, http.StatusOK, "jpeg")
	cached := f.mapper.ISBNPath("9780140449136", cachepath.SizeLarge)
	if err := os.MkdirAll(filepath.Dir(cached), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cached, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res := f.resolve(cover.Request{ISBN: "9780140449136"})
	if res.Path != cached || f.stub.CallsTo(url) != 1 {
		t.Fatalf("expected empty file to trigger a fetch: %+v calls=%v", res, f.stub.Calls())
	}
}

func TestISBNMissFallsBackToSearchCoverID(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t))
	f.stub.Route(f.endpoints.Search("Dune", "Frank Herbert"), http.StatusOK,
		`{"docs":[{"isbn":["9780441013593"]},{"cover_i":258027}]}`)
	f.stub.Route(f.endpoints.CoverByID(258027, cachepath.SizeLarge), http.StatusOK, "cover")

	res := f.resolve(cover.Request{ISBN: "0000000000", Title: "Dune", Author: "Frank Herbert"})
	if want := f.mapper.CoverIDPath(258027, cachepath.SizeLarge); res.Path != want {
		t.Fatalf("path = %q, want %q", res.Path, want)
	}
	want := []cover.State{
		cover.StateStart, cover.StateTryISBNCache, cover.StateFetchISBNCover,
		cover.StateSearchFallback, cover.StateFetchByCoverID, cover.StateFound,
	}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
	if n := f.stub.CallsTo(f.endpoints.CoverByISBN("9780441013593", cachepath.SizeLarge)); n != 0 {
		t.Fatal("identifier-only document must not be used when a cover reference exists")
	}
}

func TestRetryISBNDoesNotSearchTwice(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t))
	searchURL := f.endpoints.Search("Dune", "")
	f.stub.Route(searchURL, http.StatusOK, `{"docs":[{"isbn":["0441013597","9780441013593"]}]}`)

	res := f.resolve(cover.Request{Title: "Dune"})
	if res.Final != cover.StateNotFound || res.Path != "" {
		t.Fatalf("expected not found, got %+v", res)
	}
	if n := f.stub.CallsTo(searchURL); n != 1 {
		t.Fatalf("expected exactly one search call, got %d", n)
	}
	if n := f.stub.CallsTo(f.endpoints.CoverByISBN("9780441013593", cachepath.SizeLarge)); n != 1 {
		t.Fatalf("expected retry with discovered identifier, got %v", f.stub.Calls())
	}
	want := []cover.State{
		cover.StateStart, cover.StateSearchFallback, cover.StateRetryISBN,
		cover.StateTryISBNCache, cover.StateFetchISBNCover, cover.StateNotFound,
	}
	if diff := cmp.Diff(want, res.Trace); diff != "" {
		t.Fatalf("trace mismatch (-want +got):\n%s", diff)
	}
}

func TestRetryISBNUsesCache(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t))
	f.stub.Route(f.endpoints.Search("Dune", ""), http.StatusOK, `{"docs":[{"isbn":["9780441013593"]}]}`)
	cached := f.mapper.ISBNPath("9780441013593", cachepath.SizeMedium)
	testsupport.WriteFile(t, cached, 10)

	res := f.resolve(cover.Request{Title: "Dune", Size: cachepath.SizeMedium})
	if res.Path != cached {
		t.Fatalf("path = %q, want %q", res.Path, cached)
	}
	if f.stub.CallCount() != 1 {
		t.Fatalf("expected only the search call, got %v", f.stub.Calls())
	}
}

func TestNoQueryNoIdentifier(t *testing.T) {
	f := newFixture(t, testsupport.ForbidTransport(t))
	res := f.resolve(cover.Request{})
	if res.Final != cover.StateNotFound || res.Path != "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestCoverIDAbsent(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t))
	f.stub.Route(f.endpoints.Search("", "Herbert"), http.StatusOK, `{"docs":[{"cover_i":7}]}`)
	res := f.resolve(cover.Request{Author: "Herbert"})
	if res.Final != cover.StateNotFound {
		t.Fatalf("expected not found, got %+v", res)
	}
}

func TestQueryAliasWrittenAndReused(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t), cover.WithQueryAliases(true))
	f.stub.Route(f.endpoints.Search("Dune", "Frank Herbert"), http.StatusOK, `{"docs":[{"cover_i":258027}]}`)
	f.stub.Route(f.endpoints.CoverByID(258027, cachepath.SizeLarge), http.StatusOK, "cover")

	first := f.resolve(cover.Request{Title: "Dune", Author: "Frank Herbert"})
	if first.Path != f.mapper.CoverIDPath(258027, cachepath.SizeLarge) {
		t.Fatalf("unexpected first path %q", first.Path)
	}
	alias := f.mapper.QueryPath(identity.QueryKey("Dune", "Frank Herbert"), cachepath.SizeLarge)
	if got := testsupport.ReadFile(t, alias); got != "cover" {
		t.Fatalf("alias content = %q", got)
	}

	calls := f.stub.CallCount()
	second := f.resolve(cover.Request{Title: " dune ", Author: "FRANK HERBERT"})
	if second.Path != alias || !second.AliasHit {
		t.Fatalf("expected alias hit, got %+v", second)
	}
	if f.stub.CallCount() != calls {
		t.Fatalf("alias hit should not touch the network: %v", f.stub.Calls())
	}
}

func TestStepTransitions(t *testing.T) {
	f := newFixture(t, testsupport.NewStubTransport(t))
	ctx := context.Background()

	m := f.orch.NewMachine(cover.Request{ISBN: "isbn 0306406152"}, nil)
	if next := m.Step(ctx, cover.StateStart); next != cover.StateTryISBNCache {
		t.Fatalf("start with identifier -> %v", next)
	}
	if next := m.Step(ctx, cover.StateTryISBNCache); next != cover.StateFetchISBNCover {
		t.Fatalf("cache miss -> %v", next)
	}
	if next := m.Step(ctx, cover.StateFetchISBNCover); next != cover.StateSearchFallback {
		t.Fatalf("absent cover -> %v", next)
	}
	if next := m.Step(ctx, cover.StateSearchFallback); next != cover.StateNotFound {
		t.Fatalf("search without query -> %v", next)
	}
	if next := m.Step(ctx, cover.StateRetryISBN); next != cover.StateTryISBNCache {
		t.Fatalf("retry -> %v", next)
	}
	if next := m.Step(ctx, cover.StateTryISBNCache); next != cover.StateFetchISBNCover {
		t.Fatalf("retry cache miss -> %v", next)
	}
	if next := m.Step(ctx, cover.StateFetchISBNCover); next != cover.StateNotFound {
		t.Fatalf("retry absent cover -> %v", next)
	}
	if next := m.Step(ctx, cover.StateFound); next != cover.StateFound {
		t.Fatalf("terminal states must be fixed points, got %v", next)
	}

	blank := f.orch.NewMachine(cover.Request{Title: "Dune"}, nil)
	if next := blank.Step(ctx, cover.StateStart); next != cover.StateSearchFallback {
		t.Fatalf("start without identifier -> %v", next)
	}
}

func TestStateNames(t *testing.T) {
	if cover.StateFetchByCoverID.String() != "fetch_by_cover_id" || cover.State(99).String() != "unknown" {
		t.Fatal("unexpected state names")
	}
	if !cover.StateNotFound.Terminal() || cover.StateRetryISBN.Terminal() {
		t.Fatal("unexpected terminal classification")
	}
}
