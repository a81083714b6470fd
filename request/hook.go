// Package request wraps client verbs with observable loading/error/data
// state. Each consumer owns its own Hook; calls through one Hook are
// independent (no dedup, no queueing) and race last-write-wins on the
// shared state.
package request

import (
	"context"
	"net/http"
	"sync"

	"github.com/jmcleod/folio/client"
)

// Doer is the subset of *client.Client a Hook needs.
type Doer interface {
	Do(ctx context.Context, method, path string, body, out any, opts ...client.RequestOption) error
}

// State is a snapshot of a Hook. Err is empty when there is no error.
type State struct {
	Loading bool
	Err     string
	Data    any
}

// Hook tracks the state of requests issued on behalf of one consumer. Its
// lifetime is bound to the context given to New: once that context ends or
// Close is called, in-flight requests are aborted and no late completion
// writes state.
type Hook struct {
	doer   Doer
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	state  State
	gen    uint64
	closed bool
}

// New returns a Hook bound to the lifetime of ctx.
func New(ctx context.Context, doer Doer) *Hook {
	hctx, cancel := context.WithCancel(ctx)
	return &Hook{doer: doer, ctx: hctx, cancel: cancel}
}

// State returns the current state.
func (h *Hook) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Loading reports whether a request is pending.
func (h *Hook) Loading() bool { return h.State().Loading }

// Err returns the last error message, or "".
func (h *Hook) Err() string { return h.State().Err }

// Data returns the last successful result.
func (h *Hook) Data() any { return h.State().Data }

// Reset returns the state to {false, "", nil}. Completions of requests
// started before Reset are discarded.
func (h *Hook) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gen++
	h.state = State{}
}

// Close aborts in-flight requests and detaches the Hook from its consumer.
// State is frozen from this point on.
func (h *Hook) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
}

// Get issues a GET and stores out as Data on success.
func (h *Hook) Get(ctx context.Context, path string, out any, opts ...client.RequestOption) error {
	return h.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST.
func (h *Hook) Post(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error {
	return h.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT.
func (h *Hook) Put(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error {
	return h.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch issues a PATCH.
func (h *Hook) Patch(ctx context.Context, path string, body, out any, opts ...client.RequestOption) error {
	return h.Do(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete issues a DELETE.
func (h *Hook) Delete(ctx context.Context, path string, out any, opts ...client.RequestOption) error {
	return h.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do runs one request: Loading is set and Err cleared before the call, Data
// or Err is recorded after it, and Loading is cleared in every case. The
// error from the underlying client is returned unchanged.
func (h *Hook) Do(ctx context.Context, method, path string, body, out any, opts ...client.RequestOption) error {
	gen, ok := h.begin()
	if !ok {
		return context.Cause(h.ctx)
	}

	rctx, stop := mergeContext(ctx, h.ctx)
	defer stop()

	err := h.doer.Do(rctx, method, path, body, out, opts...)

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || gen != h.gen {
		return err
	}
	if err != nil {
		h.state.Err = client.Message(err)
	} else {
		h.state.Data = out
	}
	h.state.Loading = false
	return err
}

func (h *Hook) begin() (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed || h.ctx.Err() != nil {
		return 0, false
	}
	h.state.Loading = true
	h.state.Err = ""
	return h.gen, true
}

// mergeContext returns a context cancelled when either parent is done.
func mergeContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(a)
	stop := context.AfterFunc(b, func() {
		cancel(context.Cause(b))
	})
	return ctx, func() {
		stop()
		cancel(context.Canceled)
	}
}
