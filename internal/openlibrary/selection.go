package openlibrary

import (
	"context"
	"sync"

	"covercache/internal/identity"
)

// Branch names how a selected search document leads to a cover.
type Branch int

const (
	BranchNone Branch = iota
	// BranchCoverID means the document carries a cover reference.
	BranchCoverID
	// BranchISBN means only the document's identifiers can be tried.
	BranchISBN
)

// Selection is the search document both resolution chains work from.
type Selection struct {
	Document SearchDocument
	Branch   Branch
	CoverID  int
	ISBN     string
}

// Select picks the first document with a cover reference, else the first
// whose identifier list yields a usable identifier.
func Select(docs []SearchDocument) (Selection, bool) {
	for _, doc := range docs {
		if doc.HasCover() {
			return Selection{Document: doc, Branch: BranchCoverID, CoverID: *doc.CoverID}, true
		}
	}
	for _, doc := range docs {
		if len(doc.ISBNs) == 0 {
			continue
		}
		if best := identity.ChooseBest(doc.ISBNs...); best != "" {
			return Selection{Document: doc, Branch: BranchISBN, ISBN: best}, true
		}
	}
	return Selection{}, false
}

// SharedSearch performs at most one search for a title/author pair and
// remembers the selection, so the cover and summary chains of one request
// never search twice.
type SharedSearch struct {
	client *Client
	title  string
	author string

	once      sync.Once
	performed bool
	selection Selection
	ok        bool
}

// NewSharedSearch prepares a lazily executed search.
func NewSharedSearch(client *Client, title, author string) *SharedSearch {
	return &SharedSearch{client: client, title: title, author: author}
}

// Selected runs the search on first use and returns the selection.
func (s *SharedSearch) Selected(ctx context.Context) (Selection, bool) {
	if s == nil || s.client == nil {
		return Selection{}, false
	}
	s.once.Do(func() {
		docs, ok := s.client.Search(ctx, s.title, s.author)
		s.performed = hasQuery(s.title, s.author)
		if !ok {
			return
		}
		s.selection, s.ok = Select(docs)
	})
	return s.selection, s.ok
}

// Performed reports whether a search call has been issued.
func (s *SharedSearch) Performed() bool {
	if s == nil {
		return false
	}
	return s.performed
}

func hasQuery(title, author string) bool {
	return !identity.Query(title, author).IsZero()
}
