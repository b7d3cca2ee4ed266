// Package backend defines the narrow contract between the audiograph core
// and the realtime signal-processing backend. The core never renders audio
// itself: it creates opaque handles through a Context, mirrors parameter
// writes onto them, wires them together, and schedules start/stop against
// the backend clock. Concrete adapters live in subpackages (offline,
// natsbridge); anything satisfying Adapter can be plugged into the engine.
package backend

import "context"

// Time is a timestamp on the backend clock, in seconds since the backend
// context was created. It is not wall-clock time: schedulable operations
// take a Time so the backend can apply them sample-accurately rather than
// on command arrival.
type Time float64

// Adapter supplies the engine with a backend context. AcquireContext is
// lazy: the first call creates the process-wide context and subsequent
// calls return the same one. Implementations decide what a context costs;
// the engine acquires it on first use and holds it for its lifetime.
type Adapter interface {
	AcquireContext() (Context, error)
}

// Context is a live backend rendering context. It owns the backend clock
// and constructs processing handles.
type Context interface {
	// Resume brings the context out of its suspended state. It is the only
	// blocking point the core exposes: the call returns once the backend
	// signals it is ready to render, or when ctx is done. Offline contexts
	// treat Resume as a no-op.
	Resume(ctx context.Context) error

	// Now returns the current position of the backend clock.
	Now() Time

	// CreateHandle constructs a backend processing unit for the given
	// category, fully parameterized by props. Props carry every field the
	// category defines; the handle starts in a completely defined state.
	CreateHandle(category string, props map[string]any) (Handle, error)

	// Close releases the context. Handles created from a closed context's
	// lifetime are already released by their owners.
	Close() error
}

// Handle is an opaque backend processing unit. Exactly one module owns a
// handle at a time; handles are never shared and never exposed to engine
// callers.
type Handle interface {
	// SetParam pushes one updated parameter onto the live handle.
	SetParam(name string, value any) error

	// Connect routes this handle's output into dst's input.
	Connect(dst Handle) error

	// Disconnect removes the routing edge to dst.
	Disconnect(dst Handle) error

	// Start schedules activation at the given backend time. Single-fire
	// handles reject a second Start for the rest of their lifetime; the
	// module layer recreates such handles after Stop.
	Start(at Time) error

	// Stop schedules deactivation at the given backend time.
	Stop(at Time) error

	// Release frees the backend resource. Further use of the handle fails.
	Release() error
}
