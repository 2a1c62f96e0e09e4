package cover

// State is a node of the cover resolution machine.
type State int

const (
	StateStart State = iota
	StateTryISBNCache
	StateFetchISBNCover
	StateSearchFallback
	StateFetchByCoverID
	StateRetryISBN
	StateFound
	StateNotFound
)

var stateNames = map[State]string{
	StateStart:          "start",
	StateTryISBNCache:   "try_isbn_cache",
	StateFetchISBNCover: "fetch_isbn_cover",
	StateSearchFallback: "search_fallback",
	StateFetchByCoverID: "fetch_by_cover_id",
	StateRetryISBN:      "retry_isbn",
	StateFound:          "found",
	StateNotFound:       "not_found",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the machine stops in s.
func (s State) Terminal() bool {
	return s == StateFound || s == StateNotFound
}
