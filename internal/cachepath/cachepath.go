// Package cachepath maps book identities and size classes onto cache files.
//
// Mapping is pure; whether an entry is cached is decided solely by Valid on
// the mapped path.
package cachepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"covercache/internal/identity"
)

// Size is a requested cover resolution class.
type Size string

const (
	SizeSmall  Size = "S"
	SizeMedium Size = "M"
	SizeLarge  Size = "L"
)

// DefaultSize is used when a request names no size or an unknown one.
const DefaultSize = SizeLarge

// ParseSize parses value case-insensitively, falling back to DefaultSize.
func ParseSize(value string) Size {
	switch Size(strings.ToUpper(strings.TrimSpace(value))) {
	case SizeSmall:
		return SizeSmall
	case SizeMedium:
		return SizeMedium
	case SizeLarge:
		return SizeLarge
	default:
		return DefaultSize
	}
}

// Valid reports whether s is one of the known size classes.
func (s Size) Valid() bool {
	return s == SizeSmall || s == SizeMedium || s == SizeLarge
}

// Normalized returns s when valid and DefaultSize otherwise.
func (s Size) Normalized() Size {
	return ParseSize(string(s))
}

const (
	isbnPrefix  = "isbn_"
	coverPrefix = "olid_"
	queryPrefix = "q_"
	extension   = ".jpg"
)

// Mapper derives cache file locations beneath Root.
type Mapper struct {
	Root string
}

// New returns a Mapper rooted at root.
func New(root string) Mapper {
	return Mapper{Root: root}
}

// ISBNPath returns the cache path for an identifier, or "" when it
// normalizes to empty.
func (m Mapper) ISBNPath(isbn string, size Size) string {
	normalized := identity.Normalize(isbn)
	if normalized == "" {
		return ""
	}
	return m.join(isbnPrefix, normalized, size)
}

// CoverIDPath returns the cache path for a provider cover reference, or ""
// for non-positive ids.
func (m Mapper) CoverIDPath(id int, size Size) string {
	if id <= 0 {
		return ""
	}
	return m.join(coverPrefix, strconv.Itoa(id), size)
}

// QueryPath returns the cache path for a query key, or "" when key is blank.
func (m Mapper) QueryPath(key string, size Size) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return m.join(queryPrefix, key, size)
}

// Path returns the cache path for id, or "" for the zero identity.
func (m Mapper) Path(id identity.Identity, size Size) string {
	switch id.Kind {
	case identity.KindISBN:
		return m.ISBNPath(id.Value, size)
	case identity.KindCoverID:
		n, err := strconv.Atoi(id.Value)
		if err != nil {
			return ""
		}
		return m.CoverIDPath(n, size)
	case identity.KindQuery:
		return m.QueryPath(id.Value, size)
	default:
		return ""
	}
}

func (m Mapper) join(prefix, value string, size Size) string {
	return filepath.Join(m.Root, fmt.Sprintf("%s%s_%s%s", prefix, value, size.Normalized(), extension))
}

// Valid reports whether path names an existing, non-empty regular file.
func Valid(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Size() > 0
}

// Entry describes a parsed cache filename.
type Entry struct {
	Identity identity.Identity
	Size     Size
}

// ParseName reverses the filename layout produced by Mapper. Names that do
// not follow it report ok=false.
func ParseName(name string) (Entry, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(base, extension) {
		return Entry{}, false
	}
	stem := strings.TrimSuffix(base, extension)
	cut := strings.LastIndexByte(stem, '_')
	if cut <= 0 || cut == len(stem)-1 {
		return Entry{}, false
	}
	size := Size(stem[cut+1:])
	if !size.Valid() {
		return Entry{}, false
	}
	head := stem[:cut]

	var kind identity.Kind
	var value string
	switch {
	case strings.HasPrefix(head, isbnPrefix):
		kind, value = identity.KindISBN, strings.TrimPrefix(head, isbnPrefix)
		if identity.Normalize(value) != value {
			return Entry{}, false
		}
	case strings.HasPrefix(head, coverPrefix):
		kind, value = identity.KindCoverID, strings.TrimPrefix(head, coverPrefix)
		if n, err := strconv.Atoi(value); err != nil || n <= 0 {
			return Entry{}, false
		}
	case strings.HasPrefix(head, queryPrefix):
		kind, value = identity.KindQuery, strings.TrimPrefix(head, queryPrefix)
	default:
		return Entry{}, false
	}
	if value == "" {
		return Entry{}, false
	}
	return Entry{Identity: identity.Identity{Kind: kind, Value: value}, Size: size}, true
}
