// Package filter defines the filter module category: a biquad section with
// a selectable response kind, corner frequency and resonance.
package filter

import (
	"fmt"

	"github.com/c360/audiograph/module"
)

// Category is the filter category tag.
const Category = module.Category("filter")

// Filter response kinds.
const (
	KindLowpass  = "lowpass"
	KindHighpass = "highpass"
	KindBandpass = "bandpass"
	KindNotch    = "notch"
)

// Default props values.
const (
	DefaultKind      = KindLowpass
	DefaultFrequency = 8000.0
	DefaultQ         = 0.707
)

// Register adds the filter category to the catalog.
func Register(catalog *module.Catalog) error {
	return catalog.Register(&module.CategorySpec{
		Category:    Category,
		Description: "Biquad filter with kind, frequency and Q controls",
		Defaults: func() module.Props {
			return module.Props{
				"kind":      DefaultKind,
				"frequency": DefaultFrequency,
				"q":         DefaultQ,
			}
		},
		Fields: map[string]module.FieldSpec{
			"kind": {
				Validate: validateKind,
				Mirror:   module.MirrorParam("kind"),
			},
			"frequency": {
				Validate: validateFrequency,
				Mirror:   module.MirrorParam("frequency"),
			},
			"q": {
				Validate: validateQ,
				Mirror:   module.MirrorParam("q"),
			},
		},
	})
}

func validateKind(v any) error {
	s, ok := module.AsString(v)
	if !ok {
		return fmt.Errorf("kind must be a string, got %T", v)
	}
	switch s {
	case KindLowpass, KindHighpass, KindBandpass, KindNotch:
		return nil
	default:
		return fmt.Errorf("unrecognized filter kind %q", s)
	}
}

func validateFrequency(v any) error {
	f, ok := module.AsNumber(v)
	if !ok {
		return fmt.Errorf("frequency must be a number, got %T", v)
	}
	if f <= 0 {
		return fmt.Errorf("frequency must be positive, got %v", f)
	}
	return nil
}

func validateQ(v any) error {
	f, ok := module.AsNumber(v)
	if !ok {
		return fmt.Errorf("q must be a number, got %T", v)
	}
	if f <= 0 {
		return fmt.Errorf("q must be positive, got %v", f)
	}
	return nil
}
