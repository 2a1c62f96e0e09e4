// Package cover turns a book request into a cached cover image path.
//
// Resolution is an explicit state machine. Each Step consults the cache or
// makes at most one network call and names the next state, so the fallback
// order (identifier cover, search, cover reference, identifier from search)
// can be followed and tested one transition at a time.
package cover

import (
	"context"
	"log/slog"
	"strings"

	"covercache/internal/cachepath"
	"covercache/internal/identity"
	"covercache/internal/logging"
	"covercache/internal/openlibrary"
	"covercache/internal/transport"
)

// maxSteps bounds a run; the longest legal run visits eight states.
const maxSteps = 16

// Request is the cover half of a resolution request.
type Request struct {
	ISBN         string
	Title        string
	Author       string
	Size         cachepath.Size
	ForceRefresh bool
}

// Result reports where a run ended.
type Result struct {
	Path     string
	Final    State
	Trace    []State
	AliasHit bool
}

// Orchestrator resolves covers against one cache root.
type Orchestrator struct {
	mapper    cachepath.Mapper
	endpoints openlibrary.Endpoints
	fetcher   transport.Fetcher
	aliases   bool
	lockRoot  string
	logger    *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithQueryAliases links search-branch hits to their q_<hash> path and
// consults that path before searching.
func WithQueryAliases(enabled bool) Option {
	return func(o *Orchestrator) {
		o.aliases = enabled
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// New constructs an orchestrator.
func New(mapper cachepath.Mapper, endpoints openlibrary.Endpoints, fetcher transport.Fetcher, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		mapper:    mapper,
		endpoints: endpoints,
		fetcher:   fetcher,
		lockRoot:  mapper.Root,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.NewComponentLogger(o.logger, "cover")
	return o
}

// Resolve runs the machine to completion for req. search supplies the
// request's single shared search; it may be nil when no search is allowed.
func (o *Orchestrator) Resolve(ctx context.Context, req Request, search *openlibrary.SharedSearch) Result {
	return o.NewMachine(req, search).Run(ctx)
}

// Machine is one in-progress resolution.
type Machine struct {
	o      *Orchestrator
	req    Request
	search *openlibrary.SharedSearch

	isbn     string
	coverID  int
	retry    bool
	searched bool
	aliasHit bool
	path     string
	trace    []State
}

// NewMachine prepares a machine in StateStart.
func (o *Orchestrator) NewMachine(req Request, search *openlibrary.SharedSearch) *Machine {
	req.Size = req.Size.Normalized()
	return &Machine{o: o, req: req, search: search}
}

// Path is the cover path recorded by the last Found transition.
func (m *Machine) Path() string {
	return m.path
}

// Run steps from StateStart until a terminal state.
func (m *Machine) Run(ctx context.Context) Result {
	logger := logging.WithContext(ctx, m.o.logger)
	state := StateStart
	for i := 0; i < maxSteps && !state.Terminal(); i++ {
		m.trace = append(m.trace, state)
		state = m.Step(ctx, state)
	}
	if !state.Terminal() {
		state = StateNotFound
	}
	m.trace = append(m.trace, state)

	if state == StateFound && m.searched && !m.aliasHit {
		m.linkAlias(ctx)
	}
	if state != StateFound {
		m.path = ""
	}

	logger.Debug("cover resolution finished",
		logging.String("final_state", state.String()),
		logging.String(logging.FieldPath, m.path),
		logging.Int("steps", len(m.trace)),
	)
	return Result{Path: m.path, Final: state, Trace: m.trace, AliasHit: m.aliasHit}
}

// Step performs the work of state and returns the next state.
func (m *Machine) Step(ctx context.Context, state State) State {
	switch state {
	case StateStart:
		m.isbn = identity.Normalize(m.req.ISBN)
		if m.isbn != "" {
			return StateTryISBNCache
		}
		return StateSearchFallback

	case StateTryISBNCache:
		path := m.o.mapper.ISBNPath(m.isbn, m.req.Size)
		if path == "" {
			return m.afterISBNMiss()
		}
		if !m.req.ForceRefresh && cachepath.Valid(path) {
			m.path = path
			return StateFound
		}
		return StateFetchISBNCover

	case StateFetchISBNCover:
		path := m.o.mapper.ISBNPath(m.isbn, m.req.Size)
		if got, ok := m.o.fetcher.Fetch(ctx, m.o.endpoints.CoverByISBN(m.isbn, m.req.Size), path, true); ok {
			m.path = got
			return StateFound
		}
		return m.afterISBNMiss()

	case StateSearchFallback:
		if strings.TrimSpace(m.req.Title) == "" && strings.TrimSpace(m.req.Author) == "" {
			return StateNotFound
		}
		if m.o.aliases && !m.req.ForceRefresh {
			if alias := m.aliasPath(); cachepath.Valid(alias) {
				m.path = alias
				m.aliasHit = true
				return StateFound
			}
		}
		m.searched = true
		selection, ok := m.search.Selected(ctx)
		if !ok {
			return StateNotFound
		}
		switch selection.Branch {
		case openlibrary.BranchCoverID:
			m.coverID = selection.CoverID
			return StateFetchByCoverID
		case openlibrary.BranchISBN:
			m.isbn = selection.ISBN
			return StateRetryISBN
		default:
			return StateNotFound
		}

	case StateFetchByCoverID:
		path := m.o.mapper.CoverIDPath(m.coverID, m.req.Size)
		if path == "" {
			return StateNotFound
		}
		if !m.req.ForceRefresh && cachepath.Valid(path) {
			m.path = path
			return StateFound
		}
		if got, ok := m.o.fetcher.Fetch(ctx, m.o.endpoints.CoverByID(m.coverID, m.req.Size), path, true); ok {
			m.path = got
			return StateFound
		}
		return StateNotFound

	case StateRetryISBN:
		m.retry = true
		return StateTryISBNCache

	default:
		return state
	}
}

func (m *Machine) afterISBNMiss() State {
	if m.retry {
		return StateNotFound
	}
	return StateSearchFallback
}

func (m *Machine) aliasPath() string {
	return m.o.mapper.Path(identity.Query(m.req.Title, m.req.Author), m.req.Size)
}
