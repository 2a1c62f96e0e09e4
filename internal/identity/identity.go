package identity

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Kind enumerates the identity namespaces.
type Kind int

const (
	KindNone Kind = iota
	KindISBN
	KindCoverID
	KindQuery
)

func (k Kind) String() string {
	switch k {
	case KindISBN:
		return "isbn"
	case KindCoverID:
		return "olid"
	case KindQuery:
		return "q"
	default:
		return "none"
	}
}

// Identity is a tagged book identity. The zero value identifies nothing.
type Identity struct {
	Kind  Kind
	Value string
}

// ISBN returns an ISBN identity for the normalized form of raw. An identifier
// that normalizes to empty yields the zero Identity.
func ISBN(raw string) Identity {
	normalized := Normalize(raw)
	if normalized == "" {
		return Identity{}
	}
	return Identity{Kind: KindISBN, Value: normalized}
}

// CoverID returns an identity for a provider cover reference. Non-positive
// references yield the zero Identity.
func CoverID(id int) Identity {
	if id <= 0 {
		return Identity{}
	}
	return Identity{Kind: KindCoverID, Value: strconv.Itoa(id)}
}

// Query returns the free-text identity for title and author. When both are
// blank the zero Identity is returned.
func Query(title, author string) Identity {
	if strings.TrimSpace(title) == "" && strings.TrimSpace(author) == "" {
		return Identity{}
	}
	return Identity{Kind: KindQuery, Value: QueryKey(title, author)}
}

// IsZero reports whether the identity names nothing.
func (i Identity) IsZero() bool {
	return i.Kind == KindNone || i.Value == ""
}

// String renders the identity as "<kind>:<value>".
func (i Identity) String() string {
	if i.IsZero() {
		return ""
	}
	return i.Kind.String() + ":" + i.Value
}

// Normalize keeps only digits and X from identifier, uppercasing x.
func Normalize(identifier string) string {
	if identifier == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(identifier))
	for _, r := range identifier {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteByte('X')
		}
	}
	return b.String()
}

// ChooseBest picks the preferred identifier among candidates: the first
// 978/979-prefixed 13-character value, else the first valid 10- or
// 13-character value in input order, else "".
func ChooseBest(candidates ...string) string {
	var first string
	for _, candidate := range candidates {
		normalized := Normalize(candidate)
		if len(normalized) != 10 && len(normalized) != 13 {
			continue
		}
		if len(normalized) == 13 && (strings.HasPrefix(normalized, "978") || strings.HasPrefix(normalized, "979")) {
			return normalized
		}
		if first == "" {
			first = normalized
		}
	}
	return first
}

// QueryKey hashes the normalized title and author into a stable 16-character
// hex key.
func QueryKey(title, author string) string {
	joined := canonicalText(title) + "||" + canonicalText(author)
	sum := sha1.Sum([]byte(joined))
	return hex.EncodeToString(sum[:])[:16]
}

func canonicalText(value string) string {
	value = strings.TrimSpace(norm.NFC.String(value))
	return cases.Lower(language.Und).String(value)
}
