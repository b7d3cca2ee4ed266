// Package offline implements an in-memory backend adapter. It performs no
// signal processing: handles record their parameters, wiring and scheduled
// start/stop times so callers can inspect exactly what the core asked the
// backend to do. Single-fire categories behave like their realtime
// counterparts, rejecting a second Start on the same handle, which makes
// the engine's recreate-on-stop path observable in tests.
package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/audiograph/backend"
	"github.com/c360/audiograph/errors"
)

// Option configures the offline backend.
type Option func(*Backend)

// WithSingleFire marks categories whose handles can only be started once,
// mirroring the realtime backend's source primitives.
func WithSingleFire(categories ...string) Option {
	return func(b *Backend) {
		for _, c := range categories {
			b.singleFire[c] = true
		}
	}
}

// WithFailCreate makes CreateHandle fail for the given category. Used to
// exercise backend-failure paths in tests.
func WithFailCreate(category string, err error) Option {
	return func(b *Backend) {
		b.failCreate[category] = err
	}
}

// Backend is an offline backend adapter. The zero value is not usable;
// construct with New.
type Backend struct {
	mu         sync.Mutex
	ctx        *Context
	singleFire map[string]bool
	failCreate map[string]error
}

// New creates an offline backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		singleFire: make(map[string]bool),
		failCreate: make(map[string]error),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// AcquireContext returns the backend context, creating it on first use.
func (b *Backend) AcquireContext() (backend.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		b.ctx = &Context{
			backend: b,
			created: time.Now(),
		}
	}
	return b.ctx, nil
}

// Context returns the current context without creating one. Nil until
// AcquireContext has been called. Test helper.
func (b *Backend) Context() *Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ctx
}

// Context is an offline rendering context. Its clock runs on wall time
// from the moment the context was created.
type Context struct {
	backend *Backend

	mu       sync.Mutex
	created  time.Time
	resumed  bool
	closed   bool
	handles  []*Handle
	connects int
}

// Resume is a no-op for offline contexts beyond flipping the resumed flag.
func (c *Context) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.resumed = true
	return nil
}

// Now returns seconds elapsed since the context was created.
func (c *Context) Now() backend.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return backend.Time(time.Since(c.created).Seconds())
}

// CreateHandle constructs a recording handle for the category.
func (c *Context) CreateHandle(category string, props map[string]any) (backend.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.Wrap(errors.ErrBackendSuspended, "offline", "CreateHandle", "context closed")
	}
	if err := c.backend.failCreate[category]; err != nil {
		return nil, err
	}

	params := make(map[string]any, len(props))
	for k, v := range props {
		params[k] = v
	}

	h := &Handle{
		ctx:        c,
		category:   category,
		params:     params,
		outputs:    make(map[*Handle]struct{}),
		singleFire: c.backend.singleFire[category],
	}
	c.handles = append(c.handles, h)
	return h, nil
}

// Close marks the context closed.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Resumed reports whether Resume has been called. Test helper.
func (c *Context) Resumed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resumed
}

// HandleCount returns how many handles this context has created. Test helper.
func (c *Context) HandleCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

// Handles returns every handle this context created, in creation order.
// Test helper.
func (c *Context) Handles() []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Handle(nil), c.handles...)
}

// ConnectCount returns how many handle-level connects were issued. Test helper.
func (c *Context) ConnectCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Handle is an offline processing handle that records everything pushed
// onto it.
type Handle struct {
	ctx      *Context
	category string

	mu         sync.Mutex
	params     map[string]any
	outputs    map[*Handle]struct{}
	singleFire bool
	fired      bool
	released   bool
	starts     []backend.Time
	stops      []backend.Time
}

// SetParam records a mirrored parameter write.
func (h *Handle) SetParam(name string, value any) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return errors.Wrap(errors.ErrHandleReleased, "offline", "SetParam", name)
	}
	h.params[name] = value
	return nil
}

// Connect records a routing edge to dst.
func (h *Handle) Connect(dst backend.Handle) error {
	other, ok := dst.(*Handle)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("cannot connect offline handle to %T", dst),
			"offline", "Connect", "handle type check")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return errors.Wrap(errors.ErrHandleReleased, "offline", "Connect", h.category)
	}
	h.outputs[other] = struct{}{}

	h.ctx.mu.Lock()
	h.ctx.connects++
	h.ctx.mu.Unlock()
	return nil
}

// Disconnect removes the routing edge to dst.
func (h *Handle) Disconnect(dst backend.Handle) error {
	other, ok := dst.(*Handle)
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("cannot disconnect offline handle from %T", dst),
			"offline", "Disconnect", "handle type check")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, connected := h.outputs[other]; !connected {
		return errors.Wrap(errors.ErrNotConnected, "offline", "Disconnect", h.category)
	}
	delete(h.outputs, other)
	return nil
}

// Start records a scheduled activation. Single-fire handles reject a
// second Start for the rest of their lifetime.
func (h *Handle) Start(at backend.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return errors.Wrap(errors.ErrHandleReleased, "offline", "Start", h.category)
	}
	if h.singleFire && h.fired {
		return errors.Wrap(errors.ErrAlreadyStarted, "offline", "Start", h.category)
	}
	h.fired = true
	h.starts = append(h.starts, at)
	return nil
}

// Stop records a scheduled deactivation.
func (h *Handle) Stop(at backend.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return errors.Wrap(errors.ErrHandleReleased, "offline", "Stop", h.category)
	}
	h.stops = append(h.stops, at)
	return nil
}

// Release frees the handle. Further operations fail with ErrHandleReleased.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.released = true
	return nil
}

// Category returns the category this handle was created for. Test helper.
func (h *Handle) Category() string { return h.category }

// Param returns a recorded parameter value. Test helper.
func (h *Handle) Param(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.params[name]
	return v, ok
}

// Params returns a copy of all recorded parameters. Test helper.
func (h *Handle) Params() map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]any, len(h.params))
	for k, v := range h.params {
		out[k] = v
	}
	return out
}

// ConnectedTo reports whether a routing edge to dst exists. Test helper.
func (h *Handle) ConnectedTo(dst *Handle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.outputs[dst]
	return ok
}

// Starts returns the recorded start times. Test helper.
func (h *Handle) Starts() []backend.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]backend.Time(nil), h.starts...)
}

// Stops returns the recorded stop times. Test helper.
func (h *Handle) Stops() []backend.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]backend.Time(nil), h.stops...)
}

// Released reports whether the handle has been released. Test helper.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}
