// Package natsbridge implements a backend adapter that drives a remote
// renderer process over NATS. The core publishes backend commands as JSON
// envelopes on audiograph.backend.v1.* subjects; the renderer owns the
// actual signal path and the backend clock. Resume and handle creation are
// request/reply so renderer rejections surface synchronously, the rest of
// the command stream is fire-and-forget.
package natsbridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/audiograph/backend"
	pkgerrors "github.com/c360/audiograph/errors"
	"github.com/c360/audiograph/metric"
	"github.com/c360/audiograph/pkg/retry"
)

// Adapter connects to a NATS server on first AcquireContext and hands out
// a single shared Context for the process lifetime.
type Adapter struct {
	url            string
	clientName     string
	requestTimeout time.Duration
	maxReconnects  int
	reconnectWait  time.Duration
	connectRetry   retry.Config
	logger         *slog.Logger
	metrics        *metric.Metrics

	mu   sync.Mutex
	bctx *Context
}

// Option configures an Adapter.
type Option func(*Adapter) error

// WithClientName sets the connection name reported to the NATS server.
func WithClientName(name string) Option {
	return func(a *Adapter) error {
		a.clientName = name
		return nil
	}
}

// WithRequestTimeout bounds request/reply commands (resume, clock, create).
func WithRequestTimeout(d time.Duration) Option {
	return func(a *Adapter) error {
		if d <= 0 {
			return pkgerrors.WrapInvalid(
				pkgerrors.New("request timeout must be positive"),
				"Adapter", "WithRequestTimeout", "validate option")
		}
		a.requestTimeout = d
		return nil
	}
}

// WithMaxReconnects caps automatic reconnection attempts. Negative means
// reconnect forever.
func WithMaxReconnects(n int) Option {
	return func(a *Adapter) error {
		a.maxReconnects = n
		return nil
	}
}

// WithConnectRetry overrides the backoff used while establishing the
// initial connection.
func WithConnectRetry(cfg retry.Config) Option {
	return func(a *Adapter) error {
		a.connectRetry = cfg
		return nil
	}
}

// WithMetrics wires the core metrics so the adapter can track renderer
// connectivity across disconnects and reconnects.
func WithMetrics(m *metric.Metrics) Option {
	return func(a *Adapter) error {
		a.metrics = m
		return nil
	}
}

// WithLogger sets the logger for connection lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) error {
		if logger == nil {
			return pkgerrors.WrapInvalid(
				pkgerrors.New("logger must not be nil"),
				"Adapter", "WithLogger", "validate option")
		}
		a.logger = logger
		return nil
	}
}

// New creates an Adapter for the given NATS URL. No connection is made
// until AcquireContext.
func New(url string, opts ...Option) (*Adapter, error) {
	if url == "" {
		return nil, pkgerrors.WrapInvalid(
			pkgerrors.New("NATS URL must not be empty"),
			"Adapter", "New", "validate URL")
	}

	a := &Adapter{
		url:            url,
		requestTimeout: 5 * time.Second,
		maxReconnects:  -1,
		reconnectWait:  2 * time.Second,
		connectRetry:   retry.Startup(),
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// AcquireContext connects to the renderer's NATS server and returns the
// shared Context. The first call dials with startup backoff; subsequent
// calls return the same Context.
func (a *Adapter) AcquireContext() (backend.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bctx != nil {
		return a.bctx, nil
	}

	var conn *nats.Conn
	err := retry.Do(context.Background(), a.connectRetry, func() error {
		c, err := nats.Connect(a.url, a.connectionOptions()...)
		if err != nil {
			a.logger.Warn("renderer connection attempt failed",
				"url", a.url,
				"error", err)
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, pkgerrors.WrapTransient(err, "Adapter", "AcquireContext", "connect to renderer")
	}

	a.logger.Info("connected to renderer", "url", a.url)
	a.recordConnected(true)

	a.bctx = &Context{
		conn:           conn,
		requestTimeout: a.requestTimeout,
		logger:         a.logger,
		epoch:          time.Now(),
	}
	return a.bctx, nil
}

func (a *Adapter) connectionOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(a.maxReconnects),
		nats.ReconnectWait(a.reconnectWait),
		nats.Timeout(a.requestTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			a.logger.Warn("renderer connection lost", "error", err)
			a.recordConnected(false)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			a.logger.Info("renderer connection restored", "url", c.ConnectedUrl())
			a.recordConnected(true)
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			a.logger.Info("renderer connection closed")
			a.recordConnected(false)
		}),
	}
	if a.clientName != "" {
		opts = append(opts, nats.Name(a.clientName))
	}
	return opts
}

func (a *Adapter) recordConnected(connected bool) {
	if a.metrics == nil {
		return
	}
	a.metrics.RecordBackendConnected(connected)
}
