package module

// Category is the closed tag selecting a module's behavioral variant and
// props shape. The set of recognized categories is whatever has been
// registered in a Catalog; built-ins live in their own packages and are
// wired up by moduleregistry.
type Category string

// String returns the category tag.
func (c Category) String() string { return string(c) }

// Props holds a category's named parameters. The shape is category
// specific but always exposed as a name-to-value mapping.
type Props map[string]any

// Clone returns a shallow copy of the props. Values are plain scalars
// (strings, numbers, bools), so a shallow copy is a full copy.
func (p Props) Clone() Props {
	if p == nil {
		return Props{}
	}
	out := make(Props, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Descriptor is a module's identity record.
type Descriptor struct {
	ID       string   // unique among live modules, immutable
	Name     string   // caller-assigned label, mutable
	Category Category // immutable after creation
	Props    Props    // category-shaped parameters
}

// Snapshot is the immutable serialized view of a module. It is the only
// representation the module layer exposes; backend handles never leave it.
type Snapshot struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Props    Props    `json:"props"`
}

// AsNumber coerces a props value to float64. JSON decoding yields float64,
// but literals written in Go frequently arrive as int, so both are accepted.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// AsString coerces a props value to string.
func AsString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
