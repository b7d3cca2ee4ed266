package natsbridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360/audiograph/backend"
	pkgerrors "github.com/c360/audiograph/errors"
)

// Context is the NATS-backed rendering context. The backend clock lives in
// the renderer; Now asks for it over the clock subject and falls back to a
// local monotonic estimate when the renderer does not answer in time.
type Context struct {
	conn           *nats.Conn
	requestTimeout time.Duration
	logger         *slog.Logger

	// epoch anchors the local clock fallback. It is set when the context
	// is created and never moves, matching the renderer convention that
	// its clock starts at context creation.
	epoch time.Time

	mu     sync.Mutex
	closed bool
}

var _ backend.Context = (*Context)(nil)

// Resume asks the renderer to leave its suspended state. The call blocks
// until the renderer acknowledges or ctx is done.
func (c *Context) Resume(ctx context.Context) error {
	if err := c.guard(); err != nil {
		return err
	}

	reply, err := c.request(ctx, Command{Op: opResume})
	if err != nil {
		return pkgerrors.WrapBackend(err, "Context", "Resume", "resume renderer")
	}
	if !reply.OK {
		return pkgerrors.WrapBackend(
			pkgerrors.New(reply.Error),
			"Context", "Resume", "resume renderer")
	}
	return nil
}

// Now returns the renderer clock position. A renderer that is slow or
// unreachable does not stall scheduling: after requestTimeout the local
// estimate since epoch is used instead.
func (c *Context) Now() backend.Time {
	if err := c.guard(); err != nil {
		return c.localNow()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()

	reply, err := c.request(ctx, Command{Op: opClock})
	if err != nil || !reply.OK {
		c.logger.Warn("renderer clock unavailable, using local estimate", "error", err)
		return c.localNow()
	}
	return reply.Now
}

func (c *Context) localNow() backend.Time {
	return backend.Time(time.Since(c.epoch).Seconds())
}

// CreateHandle asks the renderer to build a processing unit. The handle id
// is assigned on this side so the command stream can reference the handle
// before the reply lands anywhere else.
func (c *Context) CreateHandle(category string, props map[string]any) (backend.Handle, error) {
	if err := c.guard(); err != nil {
		return nil, err
	}

	id := uuid.New().String()

	ctx, cancel := context.WithTimeout(context.Background(), c.requestTimeout)
	defer cancel()

	reply, err := c.request(ctx, Command{
		Op:       opCreate,
		HandleID: id,
		Category: category,
		Props:    props,
	})
	if err != nil {
		return nil, pkgerrors.WrapBackend(err, "Context", "CreateHandle", "create renderer handle")
	}
	if !reply.OK {
		return nil, pkgerrors.WrapBackend(
			pkgerrors.New(reply.Error),
			"Context", "CreateHandle", "create renderer handle")
	}

	c.logger.Debug("created renderer handle", "handle_id", id, "category", category)

	return &Handle{id: id, bctx: c}, nil
}

// Close tells the renderer to tear down its context and drains the
// connection. Further use of the context fails.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	if err := c.publish(Command{Op: opClose}); err != nil {
		c.logger.Warn("failed to notify renderer of close", "error", err)
	}

	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return pkgerrors.WrapTransient(err, "Context", "Close", "drain connection")
	}
	return nil
}

func (c *Context) guard() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return pkgerrors.WrapInvalid(
			pkgerrors.ErrBackendSuspended,
			"Context", "guard", "check context state")
	}
	return nil
}

// request sends a command on its op subject and decodes the reply.
func (c *Context) request(ctx context.Context, cmd Command) (*Reply, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, pkgerrors.WrapInvalid(err, "Context", "request", "marshal command")
	}

	msg, err := c.conn.RequestWithContext(ctx, subjectFor(cmd.Op), data)
	if err != nil {
		if pkgerrors.Is(err, nats.ErrNoResponders) || pkgerrors.Is(err, context.DeadlineExceeded) {
			return nil, pkgerrors.WrapTransient(
				pkgerrors.ErrConnectionTimeout,
				"Context", "request", "await renderer reply")
		}
		return nil, err
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return nil, pkgerrors.WrapInvalid(err, "Context", "request", "decode reply")
	}
	return &reply, nil
}

// publish sends a fire-and-forget command on its op subject.
func (c *Context) publish(cmd Command) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return pkgerrors.WrapInvalid(err, "Context", "publish", "marshal command")
	}
	if err := c.conn.Publish(subjectFor(cmd.Op), data); err != nil {
		if pkgerrors.Is(err, nats.ErrConnectionClosed) {
			return pkgerrors.WrapTransient(
				pkgerrors.ErrConnectionLost,
				"Context", "publish", "publish command")
		}
		return pkgerrors.WrapBackend(err, "Context", "publish", "publish command")
	}
	return nil
}
