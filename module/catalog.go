package module

import (
	"fmt"
	"sort"
	"sync"

	"github.com/c360/audiograph/backend"
	"github.com/c360/audiograph/errors"
)

// Mirror pushes one changed props field onto a live backend handle.
// Fields without a mirror are stored but have no backend effect.
type Mirror func(h backend.Handle, value any) error

// MirrorParam returns a Mirror that forwards the field to the backend
// parameter of the given name. Most fields use this; categories only write
// a custom Mirror when the backend parameter needs translation.
func MirrorParam(name string) Mirror {
	return func(h backend.Handle, value any) error {
		return h.SetParam(name, value)
	}
}

// FieldSpec describes one recognized props field for a category.
type FieldSpec struct {
	// Validate rejects unacceptable values. Nil accepts anything.
	Validate func(value any) error
	// Mirror pushes an updated value onto the backend handle. Nil means
	// the field is stored only.
	Mirror Mirror
}

// CategorySpec is the complete definition of one module category: its
// default props, recognized fields with validation and backend mirroring,
// and its lifecycle capabilities. Adding a category means registering one
// of these; no other component changes.
type CategorySpec struct {
	Category    Category
	Description string

	// Defaults returns a fresh copy of the category's default props.
	// Every recognized field with a meaningful initial value appears here
	// so handles are constructed in a fully defined state.
	Defaults func() Props

	// Fields enumerates the recognized props fields. A props payload
	// touching any other key is rejected, never silently dropped.
	Fields map[string]FieldSpec

	// Startable marks categories that expose scheduled start/stop.
	Startable bool

	// RecreateOnStop marks startable categories whose backend primitive is
	// single-fire: after a stop the handle is discarded and rebuilt from
	// current props so the module can start again.
	RecreateOnStop bool
}

// validateProps checks that every key in p is recognized for the category
// and passes its field validation. Nothing is merged on failure.
func (s *CategorySpec) validateProps(p Props) error {
	for key, value := range p {
		field, ok := s.Fields[key]
		if !ok {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %q is not a field of category %q",
					errors.ErrInvalidPropsField, key, s.Category),
				"CategorySpec", "validateProps", "field lookup")
		}
		if field.Validate != nil {
			if err := field.Validate(value); err != nil {
				return errors.WrapInvalid(
					fmt.Errorf("%w: field %q: %w", errors.ErrInvalidPropsField, key, err),
					"CategorySpec", "validateProps", "field validation")
			}
		}
	}
	return nil
}

// defaultedProps applies category defaults for every field absent in p.
func (s *CategorySpec) defaultedProps(p Props) Props {
	var out Props
	if s.Defaults != nil {
		out = s.Defaults()
	}
	if out == nil {
		out = Props{}
	}
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Catalog maps category tags to their specs. It is the single place
// categories are registered and the factory's source of truth.
type Catalog struct {
	mu    sync.RWMutex
	specs map[Category]*CategorySpec
}

// NewCatalog creates an empty category catalog.
func NewCatalog() *Catalog {
	return &Catalog{specs: make(map[Category]*CategorySpec)}
}

// Register adds a category spec to the catalog. Duplicate categories and
// structurally incomplete specs are rejected.
func (c *Catalog) Register(spec *CategorySpec) error {
	if spec == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Catalog", "Register", "spec validation")
	}
	if spec.Category == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Catalog", "Register", "category tag validation")
	}
	if spec.RecreateOnStop && !spec.Startable {
		return errors.WrapInvalid(
			fmt.Errorf("category %q declares recreate-on-stop without being startable", spec.Category),
			"Catalog", "Register", "capability validation")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.specs[spec.Category]; exists {
		return errors.WrapInvalid(
			fmt.Errorf("category %q is already registered", spec.Category),
			"Catalog", "Register", "duplicate category check")
	}

	c.specs[spec.Category] = spec
	return nil
}

// Lookup returns the spec for a category.
func (c *Catalog) Lookup(category Category) (*CategorySpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	spec, ok := c.specs[category]
	return spec, ok
}

// Categories returns the registered category tags, sorted.
func (c *Catalog) Categories() []Category {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Category, 0, len(c.specs))
	for cat := range c.specs {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
