package openlibrary

import (
	"encoding/json"
	"math"
	"strings"
)

// SearchDocument is one search hit, reduced to the fields covercache uses.
type SearchDocument struct {
	CoverID          *int     `json:"cover_i,omitempty"`
	ISBNs            []string `json:"isbn,omitempty"`
	WorkKey          string   `json:"key,omitempty"`
	EditionKeys      []string `json:"edition_key,omitempty"`
	Title            string   `json:"title,omitempty"`
	Authors          []string `json:"author_name,omitempty"`
	FirstPublishYear int      `json:"first_publish_year,omitempty"`
}

// HasCover reports whether the document carries a positive cover reference.
func (d SearchDocument) HasCover() bool {
	return d.CoverID != nil && *d.CoverID > 0
}

// EditionKey returns the first edition key, if any.
func (d SearchDocument) EditionKey() string {
	if len(d.EditionKeys) == 0 {
		return ""
	}
	return d.EditionKeys[0]
}

type searchResponse struct {
	Docs []json.RawMessage `json:"docs"`
}

// decodeDocument decodes one search hit field by field. Non-object hits
// report ok=false; mistyped fields are left zero.
func decodeDocument(raw json.RawMessage) (SearchDocument, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return SearchDocument{}, false
	}
	var doc SearchDocument
	if v, ok := fields["cover_i"]; ok {
		if id, ok := decodePositiveInt(v); ok {
			doc.CoverID = &id
		}
	}
	doc.ISBNs = decodeStrings(fields["isbn"])
	_ = json.Unmarshal(fields["key"], &doc.WorkKey)
	doc.EditionKeys = decodeStrings(fields["edition_key"])
	_ = json.Unmarshal(fields["title"], &doc.Title)
	doc.Authors = decodeStrings(fields["author_name"])
	if year, ok := decodePositiveInt(fields["first_publish_year"]); ok {
		doc.FirstPublishYear = year
	}
	return doc, true
}

func decodePositiveInt(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	if f <= 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// decodeStrings accepts a JSON list of strings or a single string.
func decodeStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single = strings.TrimSpace(single); single != "" {
			return []string{single}
		}
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			var n json.Number
			if err := json.Unmarshal(item, &n); err != nil {
				continue
			}
			s = n.String()
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Description is Open Library description text. It decodes from either a
// bare string or an object carrying a string "value"; anything else decodes
// to empty.
type Description string

func (d *Description) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*d = Description(strings.TrimSpace(s))
		return nil
	}
	var obj struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && len(obj.Value) > 0 {
		if err := json.Unmarshal(obj.Value, &s); err == nil {
			*d = Description(strings.TrimSpace(s))
			return nil
		}
	}
	*d = ""
	return nil
}

func (d Description) String() string {
	return string(d)
}

// workDocument is the subset of a work or edition document we read.
type workDocument struct {
	Description Description `json:"description"`
	Works       workRefs    `json:"works"`
}

// workRefs holds the keys of an edition's "works" list. Entries that are not
// objects with a string key are kept as "" so index 0 stays meaningful.
type workRefs []string

func (w *workRefs) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		*w = nil
		return nil
	}
	refs := make(workRefs, 0, len(items))
	for _, item := range items {
		var ref struct {
			Key string `json:"key"`
		}
		if err := json.Unmarshal(item, &ref); err != nil {
			refs = append(refs, "")
			continue
		}
		refs = append(refs, ref.Key)
	}
	*w = refs
	return nil
}
