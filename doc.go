// Package audiograph is a modular, data-driven signal-processing engine.
//
// A patch is a set of typed modules (oscillators, gains, filters, a
// destination) wired into a routing graph. Modules are described by plain
// data: a category tag plus a props map validated against the category's
// field table. The engine owns module lifecycle (add, update, remove,
// connect, start, stop) and mirrors every mutation onto an opaque backend
// handle, so the same patch runs against the in-memory offline backend or
// a remote renderer reached over NATS.
//
// Package layout:
//
//   - module: category catalog, props validation, module lifecycle
//   - engine: the patch engine tying modules, routing and the backend clock
//   - backend: the adapter contract, with offline and natsbridge implementations
//   - moduleregistry: registration of the built-in categories
//   - config, metric, errors: configuration, Prometheus metrics, error classification
//   - cmd/audiograph: the daemon entry point
package audiograph
