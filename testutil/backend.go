// Package testutil provides test doubles for audiograph. The centerpiece
// is Backend, a wrapper around any backend adapter that injects failures
// at chosen points so error paths (resume failures, mirror failures,
// handle construction failures) can be exercised deterministically.
package testutil

import (
	"context"

	"github.com/c360/audiograph/backend"
)

// Backend wraps another backend adapter and injects failures. Zero-value
// fields pass straight through to the inner adapter. Fields are read on
// each call, so tests may change them between operations; Backend is not
// meant for concurrent use.
type Backend struct {
	Inner backend.Adapter

	// AcquireErr fails AcquireContext.
	AcquireErr error

	// ResumeErr fails Context.Resume.
	ResumeErr error

	// CreateErr fails CreateHandle for the given category.
	CreateErr map[string]error

	// SetParamErr fails Handle.SetParam for the given parameter name.
	SetParamErr map[string]error

	// StartErr and StopErr fail Handle.Start / Handle.Stop.
	StartErr error
	StopErr  error
}

// AcquireContext returns the inner context wrapped for failure injection.
func (b *Backend) AcquireContext() (backend.Context, error) {
	if b.AcquireErr != nil {
		return nil, b.AcquireErr
	}
	inner, err := b.Inner.AcquireContext()
	if err != nil {
		return nil, err
	}
	return &wrappedContext{inner: inner, b: b}, nil
}

type wrappedContext struct {
	inner backend.Context
	b     *Backend
}

func (c *wrappedContext) Resume(ctx context.Context) error {
	if c.b.ResumeErr != nil {
		return c.b.ResumeErr
	}
	return c.inner.Resume(ctx)
}

func (c *wrappedContext) Now() backend.Time {
	return c.inner.Now()
}

func (c *wrappedContext) CreateHandle(category string, props map[string]any) (backend.Handle, error) {
	if err := c.b.CreateErr[category]; err != nil {
		return nil, err
	}
	h, err := c.inner.CreateHandle(category, props)
	if err != nil {
		return nil, err
	}
	return &wrappedHandle{inner: h, b: c.b}, nil
}

func (c *wrappedContext) Close() error {
	return c.inner.Close()
}

type wrappedHandle struct {
	inner backend.Handle
	b     *Backend
}

func (h *wrappedHandle) SetParam(name string, value any) error {
	if err := h.b.SetParamErr[name]; err != nil {
		return err
	}
	return h.inner.SetParam(name, value)
}

func (h *wrappedHandle) Connect(dst backend.Handle) error {
	if w, ok := dst.(*wrappedHandle); ok {
		dst = w.inner
	}
	return h.inner.Connect(dst)
}

func (h *wrappedHandle) Disconnect(dst backend.Handle) error {
	if w, ok := dst.(*wrappedHandle); ok {
		dst = w.inner
	}
	return h.inner.Disconnect(dst)
}

func (h *wrappedHandle) Start(at backend.Time) error {
	if h.b.StartErr != nil {
		return h.b.StartErr
	}
	return h.inner.Start(at)
}

func (h *wrappedHandle) Stop(at backend.Time) error {
	if h.b.StopErr != nil {
		return h.b.StopErr
	}
	return h.inner.Stop(at)
}

func (h *wrappedHandle) Release() error {
	return h.inner.Release()
}
