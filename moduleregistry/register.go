// Package moduleregistry wires the built-in module categories into a
// catalog. It is the one place the closed category set is assembled;
// adding a category means one Register call here plus the category's own
// package.
package moduleregistry

import (
	pkgerrors "github.com/c360/audiograph/errors"
	"github.com/c360/audiograph/module"
	"github.com/c360/audiograph/module/destination"
	"github.com/c360/audiograph/module/filter"
	"github.com/c360/audiograph/module/gain"
	"github.com/c360/audiograph/module/oscillator"
)

// Register adds every built-in category to the catalog:
//
//   - oscillator: startable waveform source, recreate-on-stop
//   - gain: attenuator with a decibel level control
//   - filter: biquad filter section
//   - destination: terminal sink
func Register(catalog *module.Catalog) error {
	if catalog == nil {
		return pkgerrors.WrapFatal(
			pkgerrors.New("catalog cannot be nil"),
			"ModuleRegistry", "Register", "catalog validation")
	}

	if err := oscillator.Register(catalog); err != nil {
		return pkgerrors.WrapInvalid(err, "ModuleRegistry", "Register", "oscillator category registration")
	}

	if err := gain.Register(catalog); err != nil {
		return pkgerrors.WrapInvalid(err, "ModuleRegistry", "Register", "gain category registration")
	}

	if err := filter.Register(catalog); err != nil {
		return pkgerrors.WrapInvalid(err, "ModuleRegistry", "Register", "filter category registration")
	}

	if err := destination.Register(catalog); err != nil {
		return pkgerrors.WrapInvalid(err, "ModuleRegistry", "Register", "destination category registration")
	}

	return nil
}

// SingleFireCategories returns the category tags whose backend primitives
// are single-fire. Backend adapters that emulate the realtime renderer
// (the offline backend in particular) use this to match its semantics.
func SingleFireCategories() []string {
	return []string{oscillator.Category.String()}
}
