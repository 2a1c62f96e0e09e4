package dispatch

import (
	"context"
	"errors"
	"sync"

	"covercache/internal/resolver"
)

// ErrCanceled is returned by Handle.Wait after Cancel.
var ErrCanceled = errors.New("dispatch: request canceled")

// Callback receives the result of a submitted request.
type Callback func(resolver.Result)

// Handle tracks one submitted request.
type Handle struct {
	id       string
	request  resolver.Request
	callback Callback

	done     chan struct{}
	canceled chan struct{}

	mu        sync.Mutex
	result    resolver.Result
	finished  bool
	abandoned bool
}

func newHandle(id string, req resolver.Request, cb Callback) *Handle {
	return &Handle{
		id:       id,
		request:  req,
		callback: cb,
		done:     make(chan struct{}),
		canceled: make(chan struct{}),
	}
}

// ID returns the correlation identifier assigned at submission.
func (h *Handle) ID() string {
	return h.id
}

// Request returns the submitted request.
func (h *Handle) Request() resolver.Request {
	return h.request
}

// Done is closed once the result is available.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the result and whether it is available yet.
func (h *Handle) Result() (resolver.Result, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result, h.finished
}

// Wait blocks until the result is available, the handle is canceled, or ctx
// ends.
func (h *Handle) Wait(ctx context.Context) (resolver.Result, error) {
	select {
	case <-h.done:
		res, _ := h.Result()
		return res, nil
	case <-h.canceled:
		return resolver.Result{}, ErrCanceled
	case <-ctx.Done():
		return resolver.Result{}, ctx.Err()
	}
}

// Cancel drops interest in the result. The underlying resolution still runs
// to completion, but the callback is not invoked unless it has already
// started. Cancel reports whether it took effect.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.finished || h.abandoned {
		return false
	}
	h.abandoned = true
	close(h.canceled)
	return true
}

func (h *Handle) isAbandoned() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.abandoned
}

// deliver stores res and hands it to the callback. It reports whether the
// callback was invoked.
func (h *Handle) deliver(res resolver.Result) bool {
	h.mu.Lock()
	if h.finished {
		h.mu.Unlock()
		return false
	}
	abandoned := h.abandoned
	if !abandoned {
		h.result = res
		h.finished = true
		close(h.done)
	}
	h.mu.Unlock()

	if abandoned || h.callback == nil {
		return false
	}
	h.callback(res)
	return true
}
