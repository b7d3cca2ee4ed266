// Package module implements the typed processing-unit layer: descriptors,
// category specs, the category catalog, and the runtime Module that owns a
// backend handle and mirrors parameter writes onto it.
package module

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/c360/audiograph/backend"
	"github.com/c360/audiograph/errors"
)

// Params carries the caller-supplied construction inputs for a module.
// ID is optional; a uuid is generated when absent. Props may be partial,
// category defaults fill the rest.
type Params struct {
	ID       string
	Name     string
	Category Category
	Props    Props
}

// Changes is a partial update to a module. Nil Name leaves the name
// untouched; Props merges field by field into the existing props.
type Changes struct {
	Name  *string
	Props Props
}

// Module is a live processing unit: a descriptor plus an exclusively
// owned backend handle. Construction is two-phase: the descriptor and
// fully-defaulted props are built first, then the handle is created from
// the backend context, so the handle never observes a partially defined
// parameter set.
type Module struct {
	desc   Descriptor
	spec   *CategorySpec
	bctx   backend.Context
	handle backend.Handle
}

// New builds a module for params.Category using the catalog. It is the
// single dispatch point from category tag to concrete behavior: unknown
// categories fail here and nowhere else.
func New(catalog *Catalog, bctx backend.Context, params Params) (*Module, error) {
	spec, ok := catalog.Lookup(params.Category)
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %q", errors.ErrUnknownCategory, params.Category),
			"Module", "New", "category lookup")
	}

	if err := spec.validateProps(params.Props); err != nil {
		return nil, err
	}

	props := spec.defaultedProps(params.Props)

	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}

	handle, err := bctx.CreateHandle(string(spec.Category), props)
	if err != nil {
		return nil, errors.WrapBackend(err, "Module", "New", "handle construction")
	}

	return &Module{
		desc: Descriptor{
			ID:       id,
			Name:     params.Name,
			Category: spec.Category,
			Props:    props,
		},
		spec:   spec,
		bctx:   bctx,
		handle: handle,
	}, nil
}

// ID returns the module's stable identifier.
func (m *Module) ID() string { return m.desc.ID }

// Name returns the caller-assigned label.
func (m *Module) Name() string { return m.desc.Name }

// Category returns the module's category tag.
func (m *Module) Category() Category { return m.desc.Category }

// Startable reports whether the category exposes scheduled start/stop.
func (m *Module) Startable() bool { return m.spec.Startable }

// RecreatesOnStop reports whether Stop replaces the backend handle.
func (m *Module) RecreatesOnStop() bool { return m.spec.RecreateOnStop }

// Snapshot returns the serialized view of the module. Props are copied;
// mutating the snapshot never touches the live module.
func (m *Module) Snapshot() Snapshot {
	return Snapshot{
		ID:       m.desc.ID,
		Name:     m.desc.Name,
		Category: m.desc.Category,
		Props:    m.desc.Props.Clone(),
	}
}

// Apply merges a partial update into the module. All validation happens
// before any field is merged, so a rejected update leaves the module
// exactly as it was. After the merge, every field present in the update
// payload (not the whole merged set) with a mirror is pushed onto the
// backend handle synchronously; a mirror failure propagates to the caller
// with no retry.
func (m *Module) Apply(changes Changes) error {
	if err := m.spec.validateProps(changes.Props); err != nil {
		return err
	}

	if changes.Name != nil {
		m.desc.Name = *changes.Name
	}
	for key, value := range changes.Props {
		m.desc.Props[key] = value
	}

	for key, value := range changes.Props {
		mirror := m.spec.Fields[key].Mirror
		if mirror == nil {
			continue
		}
		if err := mirror(m.handle, value); err != nil {
			return errors.WrapBackend(err, "Module", "Apply",
				fmt.Sprintf("mirror field %q", key))
		}
	}
	return nil
}

// Connect routes this module's output into other's input at the backend
// level. No cycle detection is performed.
func (m *Module) Connect(other *Module) error {
	if err := m.handle.Connect(other.handle); err != nil {
		return errors.WrapBackend(err, "Module", "Connect", "handle wiring")
	}
	return nil
}

// Disconnect removes the backend routing edge to other.
func (m *Module) Disconnect(other *Module) error {
	if err := m.handle.Disconnect(other.handle); err != nil {
		if errors.Is(err, errors.ErrNotConnected) {
			return err
		}
		return errors.WrapBackend(err, "Module", "Disconnect", "handle unwiring")
	}
	return nil
}

// Start schedules activation of the backend handle at the given backend
// time. Calling Start on a non-startable category is a caller error.
func (m *Module) Start(at backend.Time) error {
	if !m.spec.Startable {
		return errors.WrapInvalid(
			fmt.Errorf("category %q is not startable", m.desc.Category),
			"Module", "Start", "capability check")
	}
	if err := m.handle.Start(at); err != nil {
		return errors.WrapBackend(err, "Module", "Start", "handle start")
	}
	return nil
}

// Stop schedules deactivation at the given backend time. For recreate-on-
// stop categories the spent handle is discarded and a fresh one is built
// from the same context and current props; the module's identity is
// unaffected. The returned bool reports whether the handle was replaced,
// so the owner can re-apply routing edges.
func (m *Module) Stop(at backend.Time) (bool, error) {
	if !m.spec.Startable {
		return false, errors.WrapInvalid(
			fmt.Errorf("category %q is not startable", m.desc.Category),
			"Module", "Stop", "capability check")
	}
	if err := m.handle.Stop(at); err != nil {
		return false, errors.WrapBackend(err, "Module", "Stop", "handle stop")
	}

	if !m.spec.RecreateOnStop {
		return false, nil
	}

	// Single-fire primitive: the spent handle can never start again.
	// Replace it before anyone asks.
	if err := m.handle.Release(); err != nil {
		return false, errors.WrapBackend(err, "Module", "Stop", "handle release")
	}
	fresh, err := m.bctx.CreateHandle(string(m.desc.Category), m.desc.Props.Clone())
	if err != nil {
		return false, errors.WrapBackend(err, "Module", "Stop", "handle recreation")
	}
	m.handle = fresh
	return true, nil
}

// Release frees the backend handle. The module must not be used after.
func (m *Module) Release() error {
	if err := m.handle.Release(); err != nil {
		return errors.WrapBackend(err, "Module", "Release", "handle release")
	}
	return nil
}
