// Package patchengine implements the audiograph patch engine: the
// process-wide table of live modules, the routing graph between them, and
// the coordinated start/stop lifecycle against the backend clock.
//
// The engine is an explicit object, not a singleton. One logical owner
// issues commands; an internal mutex keeps the table consistent if
// callers share the engine anyway. Every operation is synchronous: state
// is mutated in memory, backend commands are issued, and errors come back
// to the immediate caller. The one blocking point is the first Start,
// which resumes the backend context.
package patchengine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/audiograph/backend"
	"github.com/c360/audiograph/errors"
	"github.com/c360/audiograph/metric"
	"github.com/c360/audiograph/module"
)

// edge is a directed routing edge between two live modules, tracked just
// enough to support Disconnect and re-wiring after handle recreation.
type edge struct {
	src string
	dst string
}

// Engine owns the live module table and the backend context reference.
type Engine struct {
	adapter backend.Adapter
	catalog *module.Catalog
	logger  *slog.Logger
	metrics *engineMetrics

	mu      sync.Mutex
	modules map[string]*module.Module
	order   []string // module ids in insertion order
	edges   map[edge]struct{}
	bctx    backend.Context
	resumed bool
	started bool
	closed  bool
}

// New creates a patch engine. The backend context is not acquired here;
// it is created lazily on first use and kept for the engine's lifetime.
func New(
	adapter backend.Adapter,
	catalog *module.Catalog,
	logger *slog.Logger,
	metricsRegistry *metric.MetricsRegistry,
) *Engine {
	metrics, err := newEngineMetrics(metricsRegistry)
	if err != nil {
		logger.Error("Failed to initialize patch engine metrics", "error", err)
		metrics = nil // Continue without metrics
	}

	return &Engine{
		adapter: adapter,
		catalog: catalog,
		logger:  logger,
		metrics: metrics,
		modules: make(map[string]*module.Module),
		edges:   make(map[edge]struct{}),
	}
}

// context returns the backend context, acquiring it on first use.
// Caller must hold e.mu.
func (e *Engine) context() (backend.Context, error) {
	if e.bctx != nil {
		return e.bctx, nil
	}
	bctx, err := e.adapter.AcquireContext()
	if err != nil {
		err = errors.WrapBackend(err, "Engine", "context", "acquire backend context")
		e.metrics.recordError(err)
		return nil, err
	}
	e.bctx = bctx
	e.metrics.recordBackendConnected(true)
	return bctx, nil
}

// AddModule validates the category, builds the module through the factory
// and stores it. The returned snapshot is detached from internal state.
func (e *Engine) AddModule(params module.Params) (module.Snapshot, error) {
	success := false
	defer func() { e.metrics.recordAdd(success) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return module.Snapshot{}, errors.WrapFatal(errors.ErrEngineClosed, "Engine", "AddModule", "state check")
	}

	if params.ID != "" {
		if _, exists := e.modules[params.ID]; exists {
			return module.Snapshot{}, errors.WrapInvalid(
				fmt.Errorf("module id %q already in use", params.ID),
				"Engine", "AddModule", "id uniqueness check")
		}
	}

	bctx, err := e.context()
	if err != nil {
		return module.Snapshot{}, err
	}

	mod, err := module.New(e.catalog, bctx, params)
	if err != nil {
		e.metrics.recordError(err)
		return module.Snapshot{}, err
	}
	e.metrics.recordBackendCommand("create")

	e.modules[mod.ID()] = mod
	e.order = append(e.order, mod.ID())

	e.logger.Debug("Module added",
		"id", mod.ID(),
		"name", mod.Name(),
		"category", mod.Category())

	success = true
	e.metrics.setLiveModules(float64(len(e.modules)))
	return mod.Snapshot(), nil
}

// UpdateModule merges name/props changes into a stored module. The
// caller asserts the module's category; a mismatch fails without touching
// anything. Fields outside name and props do not exist in Changes by
// construction.
func (e *Engine) UpdateModule(id string, category module.Category, changes module.Changes) (module.Snapshot, error) {
	success := false
	defer func() { e.metrics.recordUpdate(success) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return module.Snapshot{}, errors.WrapFatal(errors.ErrEngineClosed, "Engine", "UpdateModule", "state check")
	}

	mod, exists := e.modules[id]
	if !exists {
		return module.Snapshot{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNotFound, id),
			"Engine", "UpdateModule", "module lookup")
	}

	if mod.Category() != category {
		return module.Snapshot{}, errors.WrapInvalid(
			fmt.Errorf("%w: module %q is %q, caller asserted %q",
				errors.ErrCategoryMismatch, id, mod.Category(), category),
			"Engine", "UpdateModule", "category assertion")
	}

	if err := mod.Apply(changes); err != nil {
		e.metrics.recordError(err)
		return module.Snapshot{}, err
	}
	if len(changes.Props) > 0 {
		e.metrics.recordBackendCommand("param")
	}

	success = true
	return mod.Snapshot(), nil
}

// RemoveModule releases a module's backend handle and forgets it. Removing
// an absent id is a no-op, not an error.
func (e *Engine) RemoveModule(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.WrapFatal(errors.ErrEngineClosed, "Engine", "RemoveModule", "state check")
	}

	mod, exists := e.modules[id]
	if !exists {
		return nil
	}

	// Unwire live upstream modules before the handle disappears.
	for ed := range e.edges {
		if ed.dst == id {
			if src, ok := e.modules[ed.src]; ok {
				if err := src.Disconnect(mod); err != nil {
					e.logger.Warn("Failed to unwire upstream module during removal",
						"source", ed.src, "removed", id, "error", err)
					e.metrics.recordError(err)
				} else {
					e.metrics.recordBackendCommand("disconnect")
				}
			}
		}
		if ed.src == id || ed.dst == id {
			delete(e.edges, ed)
		}
	}

	if err := mod.Release(); err != nil {
		e.logger.Warn("Failed to release backend handle", "id", id, "error", err)
		e.metrics.recordError(err)
	} else {
		e.metrics.recordBackendCommand("release")
	}

	delete(e.modules, id)
	for i, mid := range e.order {
		if mid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}

	e.logger.Debug("Module removed", "id", id)
	e.metrics.recordRemove()
	e.metrics.setLiveModules(float64(len(e.modules)))
	return nil
}

// FindModule returns the snapshot of a live module.
func (e *Engine) FindModule(id string) (module.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	mod, exists := e.modules[id]
	if !exists {
		return module.Snapshot{}, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrNotFound, id),
			"Engine", "FindModule", "module lookup")
	}
	return mod.Snapshot(), nil
}

// ListModules returns snapshots of every live module in insertion order.
func (e *Engine) ListModules() []module.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]module.Snapshot, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.modules[id].Snapshot())
	}
	return out
}

// Connect routes signal from the source module's output into the
// destination module's input. Both endpoints must be live; self-connects
// are rejected. Duplicate edges are not policed: a repeated Connect
// re-issues the backend wiring command.
func (e *Engine) Connect(sourceID, destID string) error {
	success := false
	defer func() { e.metrics.recordConnect(success) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.WrapFatal(errors.ErrEngineClosed, "Engine", "Connect", "state check")
	}

	src, dst, err := e.endpoints("Connect", sourceID, destID)
	if err != nil {
		return err
	}
	if sourceID == destID {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrSelfConnect, sourceID),
			"Engine", "Connect", "endpoint check")
	}

	if err := src.Connect(dst); err != nil {
		e.metrics.recordError(err)
		return err
	}
	e.metrics.recordBackendCommand("connect")
	e.edges[edge{src: sourceID, dst: destID}] = struct{}{}

	e.logger.Debug("Modules connected", "source", sourceID, "dest", destID)
	success = true
	return nil
}

// Disconnect removes the routing edge between two live modules.
func (e *Engine) Disconnect(sourceID, destID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.WrapFatal(errors.ErrEngineClosed, "Engine", "Disconnect", "state check")
	}

	src, dst, err := e.endpoints("Disconnect", sourceID, destID)
	if err != nil {
		return err
	}

	ed := edge{src: sourceID, dst: destID}
	if _, connected := e.edges[ed]; !connected {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %q -> %q", errors.ErrNotConnected, sourceID, destID),
			"Engine", "Disconnect", "edge lookup")
	}

	if err := src.Disconnect(dst); err != nil {
		e.metrics.recordError(err)
		return err
	}
	e.metrics.recordBackendCommand("disconnect")
	delete(e.edges, ed)

	e.logger.Debug("Modules disconnected", "source", sourceID, "dest", destID)
	return nil
}

// endpoints resolves both ends of an edge, failing with ErrNotFound before
// any backend effect. Caller must hold e.mu.
func (e *Engine) endpoints(op, sourceID, destID string) (src, dst *module.Module, err error) {
	src, exists := e.modules[sourceID]
	if !exists {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: source %q", errors.ErrNotFound, sourceID),
			"Engine", op, "source lookup")
	}
	dst, exists = e.modules[destID]
	if !exists {
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: dest %q", errors.ErrNotFound, destID),
			"Engine", op, "dest lookup")
	}
	return src, dst, nil
}

// Start brings the backend context out of suspension on first call, then
// schedules activation of every startable module at the effective time
// (caller-supplied, or backend "now"). Non-startable modules are skipped
// silently. Calling Start while already started is not an error; start
// commands are simply re-issued, and re-triggering single-fire primitives
// is the caller's responsibility.
func (e *Engine) Start(ctx context.Context, at *backend.Time) error {
	begin := time.Now()
	success := false
	defer func() { e.metrics.recordStart(success, time.Since(begin).Seconds()) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.WrapFatal(errors.ErrEngineClosed, "Engine", "Start", "state check")
	}

	bctx, err := e.context()
	if err != nil {
		return err
	}

	if !e.resumed {
		if err := bctx.Resume(ctx); err != nil {
			err = errors.WrapBackend(err, "Engine", "Start", "resume backend context")
			e.metrics.recordError(err)
			return err
		}
		e.resumed = true
		e.metrics.recordBackendCommand("resume")
		e.logger.Info("Backend context resumed")
	}

	t := bctx.Now()
	if at != nil {
		t = *at
	}

	e.started = true
	e.metrics.recordEngineStarted(true)

	var firstErr error
	for _, id := range e.order {
		mod := e.modules[id]
		if !mod.Startable() {
			continue
		}
		if err := mod.Start(t); err != nil {
			e.logger.Warn("Module start failed", "id", id, "error", err)
			e.metrics.recordError(err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.metrics.recordBackendCommand("start")
	}
	if firstErr != nil {
		return firstErr
	}

	e.logger.Info("Engine started", "time", float64(t), "modules", len(e.modules))
	success = true
	return nil
}

// Stop schedules deactivation of every startable module at the effective
// time and marks the engine stopped. Modules whose category is single-fire
// have their backend handle transparently replaced, and their routing
// edges are re-applied so graph connectivity survives the swap.
func (e *Engine) Stop(at *backend.Time) error {
	begin := time.Now()
	success := false
	defer func() { e.metrics.recordStop(success, time.Since(begin).Seconds()) }()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return errors.WrapFatal(errors.ErrEngineClosed, "Engine", "Stop", "state check")
	}

	if e.bctx == nil {
		// Nothing was ever handed to a backend.
		e.started = false
		success = true
		return nil
	}

	t := e.bctx.Now()
	if at != nil {
		t = *at
	}

	e.started = false
	e.metrics.recordEngineStarted(false)

	var firstErr error
	for _, id := range e.order {
		mod := e.modules[id]
		if !mod.Startable() {
			continue
		}

		// A recreate-on-stop module is about to discard its handle.
		// Upstream modules must let go of it first, or the backend keeps
		// edges into a released handle.
		unwired := false
		if mod.RecreatesOnStop() {
			e.unwireUpstream(id)
			unwired = true
		}

		recreated, err := mod.Stop(t)
		if err != nil {
			e.logger.Warn("Module stop failed", "id", id, "error", err)
			e.metrics.recordError(err)
			if firstErr == nil {
				firstErr = err
			}
			if unwired && !recreated {
				// The swap did not happen; restore the upstream wiring.
				e.reconnectUpstream(id)
			}
			continue
		}
		e.metrics.recordBackendCommand("stop")
		if recreated {
			e.metrics.recordRecreation()
			e.metrics.recordBackendCommand("create")
			if err := e.rewire(id); err != nil {
				e.logger.Warn("Failed to rewire module after handle recreation",
					"id", id, "error", err)
				e.metrics.recordError(err)
				if firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	if firstErr != nil {
		return firstErr
	}

	e.logger.Info("Engine stopped", "time", float64(t))
	success = true
	return nil
}

// rewire re-issues backend wiring for every edge touching id. Used after
// a recreate-on-stop module swaps handles. Caller must hold e.mu.
func (e *Engine) rewire(id string) error {
	var firstErr error
	for ed := range e.edges {
		if ed.src != id && ed.dst != id {
			continue
		}
		src, ok := e.modules[ed.src]
		if !ok {
			continue
		}
		dst, ok := e.modules[ed.dst]
		if !ok {
			continue
		}
		if err := src.Connect(dst); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		e.metrics.recordBackendCommand("connect")
	}
	return firstErr
}

// unwireUpstream disconnects every live upstream module from id's current
// handle. Caller must hold e.mu.
func (e *Engine) unwireUpstream(id string) {
	mod := e.modules[id]
	for ed := range e.edges {
		if ed.dst != id {
			continue
		}
		src, ok := e.modules[ed.src]
		if !ok {
			continue
		}
		if err := src.Disconnect(mod); err != nil {
			e.logger.Warn("Failed to unwire upstream module before handle swap",
				"source", ed.src, "dest", id, "error", err)
			e.metrics.recordError(err)
			continue
		}
		e.metrics.recordBackendCommand("disconnect")
	}
}

// reconnectUpstream restores upstream wiring into id's current handle
// after a swap that was prepared but never happened. Caller must hold e.mu.
func (e *Engine) reconnectUpstream(id string) {
	mod := e.modules[id]
	for ed := range e.edges {
		if ed.dst != id {
			continue
		}
		src, ok := e.modules[ed.src]
		if !ok {
			continue
		}
		if err := src.Connect(mod); err != nil {
			e.logger.Warn("Failed to restore upstream wiring after stop failure",
				"source", ed.src, "dest", id, "error", err)
			e.metrics.recordError(err)
			continue
		}
		e.metrics.recordBackendCommand("connect")
	}
}

// Started reports whether the engine is currently started.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// Shutdown releases every backend handle and closes the backend context.
// The engine cannot be used afterwards. Shutdown is idempotent.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}

	for _, id := range e.order {
		if err := e.modules[id].Release(); err != nil {
			e.logger.Warn("Failed to release module during shutdown", "id", id, "error", err)
			e.metrics.recordError(err)
			continue
		}
		e.metrics.recordBackendCommand("release")
	}
	e.modules = make(map[string]*module.Module)
	e.order = nil
	e.edges = make(map[edge]struct{})

	if e.bctx != nil {
		if err := e.bctx.Close(); err != nil {
			e.logger.Warn("Failed to close backend context", "error", err)
			e.metrics.recordError(err)
		}
		e.bctx = nil
		e.metrics.recordBackendConnected(false)
	}

	e.closed = true
	e.started = false
	e.metrics.recordEngineStarted(false)
	e.metrics.setLiveModules(0)
	e.logger.Info("Engine shut down")
	return nil
}
