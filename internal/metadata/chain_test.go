package metadata_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"covercache/internal/metadata"
	"covercache/internal/openlibrary"
	"covercache/internal/summarystore"
	"covercache/internal/testsupport"
)

const base = "http://ol.test"

func endpoints() openlibrary.Endpoints {
	return openlibrary.Endpoints{BaseURL: base, CoversURL: base, SearchLimit: 10}
}

func resolve(t *testing.T, stub *testsupport.StubTransport, req metadata.Request, opts ...metadata.Option) string {
	t.Helper()
	client := openlibrary.New(stub, endpoints(), nil)
	search := openlibrary.NewSharedSearch(client, req.Title, req.Author)
	return metadata.New(client, opts...).Resolve(context.Background(), req, search)
}

func TestSkippedWhenNotWanted(t *testing.T) {
	got := resolve(t, testsupport.ForbidTransport(t), metadata.Request{ISBN: "9780140449136", Title: "x", WantSummary: false})
	if got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestEditionByISBNFirst(t *testing.T) {
	stub := testsupport.NewStubTransport(t).
		Route(base+"/isbn/9780140449136.json", http.StatusOK, `{"description": {"value": "The Odyssey."}}`)
	got := resolve(t, stub, metadata.Request{ISBN: "9780140449136", Title: "Odyssey", WantSummary: true})
	if got != "The Odyssey." {
		t.Fatalf("summary = %q", got)
	}
	if stub.CallCount() != 1 {
		t.Fatalf("expected no search once the identifier produced text, got %v", stub.Calls())
	}
}

func TestFallsBackToSearchWorkThenEdition(t *testing.T) {
	e := endpoints()
	stub := testsupport.NewStubTransport(t).
		Route(e.Search("Dune", "Frank Herbert"), http.StatusOK,
			`{"docs":[{"cover_i":258027,"key":"/works/OL893415W","edition_key":["OL1M"]}]}`).
		Route(base+"/works/OL893415W.json", http.StatusOK, `{"title":"Dune"}`).
		Route(base+"/books/OL1M.json", http.StatusOK, `{"description":"Edition blurb."}`)

	got := resolve(t, stub, metadata.Request{ISBN: "0000000000", Title: "Dune", Author: "Frank Herbert", WantSummary: true})
	if got != "Edition blurb." {
		t.Fatalf("summary = %q", got)
	}
	want := []string{
		base + "/isbn/0000000000.json",
		e.Search("Dune", "Frank Herbert"),
		base + "/works/OL893415W.json",
		base + "/books/OL1M.json",
	}
	calls := stub.Calls()
	if len(calls) != len(want) {
		t.Fatalf("calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestNoInputsYieldEmpty(t *testing.T) {
	if got := resolve(t, testsupport.ForbidTransport(t), metadata.Request{WantSummary: true}); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
}

func TestReusesSearchAlreadyPerformed(t *testing.T) {
	e := endpoints()
	searchURL := e.Search("Dune", "")
	stub := testsupport.NewStubTransport(t).
		Route(searchURL, http.StatusOK, `{"docs":[{"cover_i":1,"key":"OL1W"}]}`).
		Route(base+"/works/OL1W.json", http.StatusOK, `{"description":"Sand."}`)
	client := openlibrary.New(stub, e, nil)
	search := openlibrary.NewSharedSearch(client, "Dune", "")
	if _, ok := search.Selected(context.Background()); !ok {
		t.Fatal("expected selection")
	}

	got := metadata.New(client).Resolve(context.Background(), metadata.Request{Title: "Dune", WantSummary: true}, search)
	if got != "Sand." {
		t.Fatalf("summary = %q", got)
	}
	if n := stub.CallsTo(searchURL); n != 1 {
		t.Fatalf("expected the shared search to be reused, got %d search calls", n)
	}
}

func TestStoreHitAvoidsNetwork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSummaryStore(t, cfg)
	subject := summarystore.Subject("9780140449136", "", "")
	if err := store.Put(context.Background(), subject, "Stored."); err != nil {
		t.Fatal(err)
	}

	got := resolve(t, testsupport.ForbidTransport(t), metadata.Request{ISBN: "9780140449136", WantSummary: true}, metadata.WithStore(store))
	if got != "Stored." {
		t.Fatalf("summary = %q", got)
	}
}

func TestStoreRecordsCheckedEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenSummaryStore(t, cfg)
	stub := testsupport.NewStubTransport(t)
	req := metadata.Request{ISBN: "9780140449136", WantSummary: true}

	if got := resolve(t, stub, req, metadata.WithStore(store)); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
	calls := stub.CallCount()
	if got := resolve(t, stub, req, metadata.WithStore(store)); got != "" {
		t.Fatalf("expected empty summary, got %q", got)
	}
	if stub.CallCount() != calls {
		t.Fatal("checked-empty summary should not be fetched again")
	}

	req.ForceRefresh = true
	stub.Route(base+"/isbn/9780140449136.json", http.StatusOK, `{"description":"Now available."}`)
	if got := resolve(t, stub, req, metadata.WithStore(store)); got != "Now available." {
		t.Fatalf("force refresh should bypass the store, got %q", got)
	}
	stored, _, _ := store.Get(context.Background(), summarystore.Subject(req.ISBN, "", ""))
	if stored.Text != "Now available." {
		t.Fatalf("expected refreshed summary persisted, got %q", stored.Text)
	}
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (summarystore.Summary, bool, error) {
	return summarystore.Summary{}, false, errors.New("disk gone")
}

func (failingStore) Put(context.Context, string, string) error { return errors.New("disk gone") }

func TestStoreFailuresAreFolded(t *testing.T) {
	stub := testsupport.NewStubTransport(t).
		Route(base+"/isbn/9780140449136.json", http.StatusOK, `{"description":"Live."}`)
	got := resolve(t, stub, metadata.Request{ISBN: "9780140449136", WantSummary: true}, metadata.WithStore(failingStore{}))
	if got != "Live." {
		t.Fatalf("summary = %q", got)
	}
}
