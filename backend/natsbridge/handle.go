package natsbridge

import (
	"sync"

	"github.com/c360/audiograph/backend"
	pkgerrors "github.com/c360/audiograph/errors"
)

// Handle is a proxy for a processing unit living in the renderer. Every
// method turns into a fire-and-forget command carrying the handle's id.
// Single-fire enforcement stays on the renderer side; the proxy only
// tracks its own released state.
type Handle struct {
	id   string
	bctx *Context

	mu       sync.Mutex
	released bool
}

var _ backend.Handle = (*Handle)(nil)

// ID returns the handle's renderer-side identifier.
func (h *Handle) ID() string {
	return h.id
}

// SetParam pushes one parameter value to the renderer.
func (h *Handle) SetParam(name string, value any) error {
	if err := h.guard("SetParam"); err != nil {
		return err
	}
	return h.bctx.publish(Command{
		Op:       opParam,
		HandleID: h.id,
		Param:    name,
		Value:    value,
	})
}

// Connect routes this handle's output into dst. dst must belong to the
// same renderer context.
func (h *Handle) Connect(dst backend.Handle) error {
	if err := h.guard("Connect"); err != nil {
		return err
	}
	target, err := peerID(dst, "Connect")
	if err != nil {
		return err
	}
	return h.bctx.publish(Command{
		Op:       opConnect,
		HandleID: h.id,
		TargetID: target,
	})
}

// Disconnect removes the routing edge to dst.
func (h *Handle) Disconnect(dst backend.Handle) error {
	if err := h.guard("Disconnect"); err != nil {
		return err
	}
	target, err := peerID(dst, "Disconnect")
	if err != nil {
		return err
	}
	return h.bctx.publish(Command{
		Op:       opDisconnect,
		HandleID: h.id,
		TargetID: target,
	})
}

// Start schedules activation at the given renderer clock time.
func (h *Handle) Start(at backend.Time) error {
	if err := h.guard("Start"); err != nil {
		return err
	}
	return h.bctx.publish(Command{
		Op:       opStart,
		HandleID: h.id,
		At:       at,
	})
}

// Stop schedules deactivation at the given renderer clock time.
func (h *Handle) Stop(at backend.Time) error {
	if err := h.guard("Stop"); err != nil {
		return err
	}
	return h.bctx.publish(Command{
		Op:       opStop,
		HandleID: h.id,
		At:       at,
	})
}

// Release frees the renderer-side unit. The proxy rejects all further use.
func (h *Handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return pkgerrors.WrapInvalid(
			pkgerrors.ErrHandleReleased,
			"Handle", "Release", "check handle state")
	}
	h.released = true
	h.mu.Unlock()

	return h.bctx.publish(Command{
		Op:       opRelease,
		HandleID: h.id,
	})
}

func (h *Handle) guard(method string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return pkgerrors.WrapInvalid(
			pkgerrors.ErrHandleReleased,
			"Handle", method, "check handle state")
	}
	return nil
}

// peerID extracts the renderer id from dst, rejecting handles from other
// backend implementations.
func peerID(dst backend.Handle, method string) (string, error) {
	peer, ok := dst.(*Handle)
	if !ok {
		return "", pkgerrors.WrapInvalid(
			pkgerrors.New("destination handle belongs to a different backend"),
			"Handle", method, "resolve destination")
	}
	return peer.id, nil
}
