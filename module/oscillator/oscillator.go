// Package oscillator defines the oscillator module category: a startable
// periodic-waveform source. The backend primitive is single-fire, so the
// category declares recreate-on-stop and the module layer transparently
// rebuilds the handle after every stop.
package oscillator

import (
	"fmt"

	"github.com/c360/audiograph/module"
)

// Category is the oscillator category tag.
const Category = module.Category("oscillator")

// Waveforms recognized by the wave field.
const (
	WaveSine     = "sine"
	WaveSquare   = "square"
	WaveSawtooth = "sawtooth"
	WaveTriangle = "triangle"
)

// Default props values.
const (
	DefaultWave      = WaveSine
	DefaultFrequency = 440.0
	DefaultDetune    = 0.0
)

// Register adds the oscillator category to the catalog.
func Register(catalog *module.Catalog) error {
	return catalog.Register(&module.CategorySpec{
		Category:    Category,
		Description: "Periodic waveform source with scheduled start/stop",
		Defaults: func() module.Props {
			return module.Props{
				"wave":      DefaultWave,
				"frequency": DefaultFrequency,
				"detune":    DefaultDetune,
			}
		},
		Fields: map[string]module.FieldSpec{
			"wave": {
				Validate: validateWave,
				Mirror:   module.MirrorParam("wave"),
			},
			"frequency": {
				Validate: validateFrequency,
				Mirror:   module.MirrorParam("frequency"),
			},
			"detune": {
				Validate: validateDetune,
				Mirror:   module.MirrorParam("detune"),
			},
		},
		Startable:      true,
		RecreateOnStop: true,
	})
}

func validateWave(v any) error {
	s, ok := module.AsString(v)
	if !ok {
		return fmt.Errorf("wave must be a string, got %T", v)
	}
	switch s {
	case WaveSine, WaveSquare, WaveSawtooth, WaveTriangle:
		return nil
	default:
		return fmt.Errorf("unrecognized waveform %q", s)
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

func validateDetune(v any) error {
	if _, ok := module.AsNumber(v); !ok {
		return fmt.Errorf("detune must be a number, got %T", v)
	}
	return nil
}
