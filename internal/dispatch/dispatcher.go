package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"covercache/internal/config"
	"covercache/internal/logging"
	"covercache/internal/resolver"
	"covercache/internal/services"
)

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("dispatch: dispatcher closed")

// Resolver is the work each task performs.
type Resolver interface {
	Resolve(ctx context.Context, req resolver.Request) resolver.Result
}

// Options configures a Dispatcher.
type Options struct {
	// Workers is the number of concurrent resolutions.
	Workers int
	// QueueSize bounds accepted-but-unstarted requests.
	QueueSize int
	// Dedupe shares one resolution among identical in-flight requests.
	Dedupe bool
	// Logger for the dispatcher.
	Logger *slog.Logger
}

// Stats is a snapshot of dispatcher counters.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Shared    int64 `json:"shared"`
	Dropped   int64 `json:"dropped"`
}

// OptionsFromConfig maps the [dispatcher] section onto Options.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) Options {
	if cfg == nil {
		return Options{Logger: logger}
	}
	return Options{
		Workers:   cfg.Dispatcher.Workers,
		QueueSize: cfg.Dispatcher.QueueSize,
		Dedupe:    cfg.Dispatcher.Dedupe,
		Logger:    logger,
	}
}

type task struct {
	ctx    context.Context
	handle *Handle
}

// Dispatcher owns the worker pool.
type Dispatcher struct {
	resolver Resolver
	opts     Options
	logger   *slog.Logger

	queue chan *task
	quit  chan struct{}
	sf    singleflight.Group
	wg    sync.WaitGroup

	// senders tracks Submit calls between the closed check and the send, so
	// Close only closes queue once nobody can write to it.
	senders sync.WaitGroup
	mu      sync.Mutex
	closed  bool

	submitted atomic.Int64
	completed atomic.Int64
	shared    atomic.Int64
	dropped   atomic.Int64
}

// New starts a dispatcher backed by r.
func New(r Resolver, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	d := &Dispatcher{
		resolver: r,
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "dispatch"),
		queue:    make(chan *task, opts.QueueSize),
		quit:     make(chan struct{}),
	}
	d.logger.Debug("starting worker pool",
		logging.Int("workers", opts.Workers),
		logging.Int("queue_size", opts.QueueSize),
		logging.Bool("dedupe", opts.Dedupe),
	)
	d.wg.Add(opts.Workers)
	for i := range opts.Workers {
		go d.worker(i)
	}
	return d
}

// Submit enqueues req. It blocks while the queue is full and fails only when
// the dispatcher is closed or ctx ends first; in that case cb is never
// invoked. Cancellation of ctx after Submit returns does not stop the work.
//
// A callback may submit follow-up requests, but it runs on a worker: when
// every worker is blocked that way on a full queue, only ctx or Close
// releases them.
func (d *Dispatcher) Submit(ctx context.Context, req resolver.Request, cb Callback) (*Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	id, ok := services.RequestIDFromContext(ctx)
	if !ok {
		id = uuid.NewString()
		ctx = services.WithRequestID(ctx, id)
	}
	t := &task{
		ctx:    context.WithoutCancel(ctx),
		handle: newHandle(id, req, cb),
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	d.senders.Add(1)
	d.mu.Unlock()
	defer d.senders.Done()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	select {
	case d.queue <- t:
		d.submitted.Add(1)
		logging.WithContext(ctx, d.logger).Debug("request queued", logging.Int("queue_depth", len(d.queue)))
		return t.handle, nil
	case <-d.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("submit: %w", ctx.Err())
	}
}

// Close stops intake, lets queued requests finish, and waits for workers.
// Submit calls still blocked on a full queue return ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	close(d.quit)
	d.senders.Wait()
	close(d.queue)
	d.wg.Wait()
	d.logger.Debug("worker pool stopped", logging.Int64("completed", d.completed.Load()))
	return nil
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Submitted: d.submitted.Load(),
		Completed: d.completed.Load(),
		Shared:    d.shared.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(id, t)
	}
}

func (d *Dispatcher) run(worker int, t *task) {
	logger := logging.WithContext(t.ctx, d.logger).With(logging.Int("worker", worker))
	start := time.Now()
	res := d.resolve(t)
	d.completed.Add(1)

	invoked := d.deliver(logger, t.handle, res)
	if t.handle.isAbandoned() {
		d.dropped.Add(1)
	}
	logger.Debug("request finished",
		logging.Duration("duration", time.Since(start)),
		logging.Bool("callback_invoked", invoked),
	)
}

func (d *Dispatcher) resolve(t *task) resolver.Result {
	req := t.handle.request
	if !d.opts.Dedupe {
		return d.resolver.Resolve(t.ctx, req)
	}
	v, _, shared := d.sf.Do(req.Key(), func() (any, error) {
		return d.resolver.Resolve(t.ctx, req), nil
	})
	if shared {
		d.shared.Add(1)
	}
	return v.(resolver.Result)
}

func (d *Dispatcher) deliver(logger *slog.Logger, h *Handle, res resolver.Result) (invoked bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.WarnWithContext(logger, "result callback panicked", "dispatch_callback_panic",
				logging.Any("panic", r),
				logging.String(logging.FieldErrorHint, "fix the callback passed to Submit"),
				logging.String(logging.FieldImpact, "worker continues with the next request"),
			)
			invoked = true
		}
	}()
	return h.deliver(res)
}
