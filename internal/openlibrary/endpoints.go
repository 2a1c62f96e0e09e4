package openlibrary

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"covercache/internal/cachepath"
	"covercache/internal/identity"
)

const (
	DefaultBaseURL     = "https://openlibrary.org"
	DefaultCoversURL   = "https://covers.openlibrary.org"
	DefaultSearchLimit = 10

	searchFields = "cover_i,isbn,title,author_name,first_publish_year,key,edition_key"
)

// Endpoints builds Open Library URLs.
type Endpoints struct {
	BaseURL     string
	CoversURL   string
	SearchLimit int
}

// DefaultEndpoints returns the public Open Library hosts.
func DefaultEndpoints() Endpoints {
	return Endpoints{BaseURL: DefaultBaseURL, CoversURL: DefaultCoversURL, SearchLimit: DefaultSearchLimit}
}

func (e Endpoints) base() string {
	if v := strings.TrimRight(strings.TrimSpace(e.BaseURL), "/"); v != "" {
		return v
	}
	return DefaultBaseURL
}

func (e Endpoints) covers() string {
	if v := strings.TrimRight(strings.TrimSpace(e.CoversURL), "/"); v != "" {
		return v
	}
	return DefaultCoversURL
}

// CoverByISBN returns the cover image URL for an identifier.
func (e Endpoints) CoverByISBN(isbn string, size cachepath.Size) string {
	return fmt.Sprintf("%s/b/isbn/%s-%s.jpg?default=false", e.covers(), identity.Normalize(isbn), size.Normalized())
}

// CoverByID returns the cover image URL for a provider cover reference.
func (e Endpoints) CoverByID(id int, size cachepath.Size) string {
	return fmt.Sprintf("%s/b/id/%d-%s.jpg?default=false", e.covers(), id, size.Normalized())
}

// Search returns the search URL. Blank title or author parameters are
// omitted; parameter order is fixed.
func (e Endpoints) Search(title, author string) string {
	limit := e.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	params := make([]string, 0, 4)
	if title = strings.TrimSpace(title); title != "" {
		params = append(params, "title="+url.QueryEscape(title))
	}
	if author = strings.TrimSpace(author); author != "" {
		params = append(params, "author="+url.QueryEscape(author))
	}
	params = append(params, "limit="+strconv.Itoa(limit), "fields="+searchFields)
	return e.base() + "/search.json?" + strings.Join(params, "&")
}

// Work returns the work document URL, or "" when key is blank.
func (e Endpoints) Work(workKey string) string {
	key := NormalizeWorkKey(workKey)
	if key == "" {
		return ""
	}
	return e.base() + key + ".json"
}

// Edition returns the edition document URL, or "" when key is blank.
func (e Endpoints) Edition(editionKey string) string {
	key := NormalizeEditionKey(editionKey)
	if key == "" {
		return ""
	}
	return e.base() + "/books/" + key + ".json"
}

// EditionByISBN returns the edition lookup URL, or "" when isbn
// normalizes to empty.
func (e Endpoints) EditionByISBN(isbn string) string {
	normalized := identity.Normalize(isbn)
	if normalized == "" {
		return ""
	}
	return e.base() + "/isbn/" + normalized + ".json"
}

// NormalizeWorkKey accepts "/works/OL1W", "works/OL1W", "OL1W" or a full
// openlibrary.org URL and returns the "/works/OL1W" form.
func NormalizeWorkKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if strings.HasPrefix(key, "http://") || strings.HasPrefix(key, "https://") {
		parsed, err := url.Parse(key)
		if err != nil {
			return ""
		}
		key = strings.TrimSuffix(parsed.Path, ".json")
		if strings.Trim(key, "/") == "" {
			return ""
		}
		key = "/" + strings.TrimLeft(key, "/")
	}
	if strings.HasPrefix(key, "works/") {
		key = "/" + key
	}
	if !strings.HasPrefix(key, "/") {
		key = "/works/" + key
	}
	return key
}

// NormalizeEditionKey accepts "OL1M", "books/OL1M" or "/books/OL1M" and
// returns the bare "OL1M" form.
func NormalizeEditionKey(key string) string {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "books/")
	key = strings.TrimPrefix(key, "/books/")
	return strings.TrimLeft(key, "/")
}
