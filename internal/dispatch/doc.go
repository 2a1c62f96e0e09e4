// Package dispatch runs resolution requests off the caller's goroutine.
//
// A fixed pool of workers drains a bounded queue. Each accepted request is
// answered exactly once, through its Handle and (unless the handle was
// canceled first) through the callback given to Submit. Identical requests
// that are in flight at the same time share one resolution.
package dispatch
