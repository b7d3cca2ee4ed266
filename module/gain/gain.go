// Package gain defines the gain module category: an attenuator that scales
// whatever flows through it by a level in decibels.
package gain

import (
	"fmt"

	"github.com/c360/audiograph/module"
)

// Category is the gain category tag.
const Category = module.Category("gain")

// DefaultLevel is unity gain in decibels.
const DefaultLevel = 0.0

// Level bounds in decibels.
const (
	MinLevel = -96.0
	MaxLevel = 24.0
)

// Register adds the gain category to the catalog.
func Register(catalog *module.Catalog) error {
	return catalog.Register(&module.CategorySpec{
		Category:    Category,
		Description: "Signal attenuator with a level control in decibels",
		Defaults: func() module.Props {
			return module.Props{"level": DefaultLevel}
		},
		Fields: map[string]module.FieldSpec{
			"level": {
				Validate: validateLevel,
				Mirror:   module.MirrorParam("level"),
			},
		},
	})
}

func validateLevel(v any) error {
	f, ok := module.AsNumber(v)
	if !ok {
		return fmt.Errorf("level must be a number, got %T", v)
	}
	if f < MinLevel || f > MaxLevel {
		return fmt.Errorf("level %v outside range [%v, %v] dB", f, MinLevel, MaxLevel)
	}
	return nil
}
