package moduleregistry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/audiograph/backend/offline"
	pkgerrors "github.com/c360/audiograph/errors"
	"github.com/c360/audiograph/module"
	"github.com/c360/audiograph/module/filter"
	"github.com/c360/audiograph/module/gain"
	"github.com/c360/audiograph/module/oscillator"
	"github.com/c360/audiograph/moduleregistry"
)

func newTestContext(t *testing.T) (*module.Catalog, *offline.Context) {
	t.Helper()
	catalog := module.NewCatalog()
	require.NoError(t, moduleregistry.Register(catalog))

	adapter := offline.New(offline.WithSingleFire(moduleregistry.SingleFireCategories()...))
	bctx, err := adapter.AcquireContext()
	require.NoError(t, err)
	return catalog, bctx.(*offline.Context)
}

func TestOscillatorDefaults(t *testing.T) {
	catalog, bctx := newTestContext(t)

	m, err := module.New(catalog, bctx, module.Params{
		Name:     "osc",
		Category: oscillator.Category,
	})
	require.NoError(t, err)

	snap := m.Snapshot()
	assert.Equal(t, oscillator.WaveSine, snap.Props["wave"])
	assert.Equal(t, oscillator.DefaultFrequency, snap.Props["frequency"])
	assert.Equal(t, oscillator.DefaultDetune, snap.Props["detune"])
}

func TestOscillatorRejectsBadProps(t *testing.T) {
	catalog, bctx := newTestContext(t)

	cases := []module.Props{
		{"wave": "noise"},
		{"wave": 3},
		{"frequency": -20.0},
		{"frequency": "high"},
		{"detune": "off"},
	}
	for _, props := range cases {
		_, err := module.New(catalog, bctx, module.Params{
			Name:     "osc",
			Category: oscillator.Category,
			Props:    props,
		})
		assert.Error(t, err, "props %v", props)
	}
}

func TestGainLevelRange(t *testing.T) {
	catalog, bctx := newTestContext(t)

	m, err := module.New(catalog, bctx, module.Params{
		Name:     "vol",
		Category: gain.Category,
		Props:    module.Props{"level": -12.0},
	})
	require.NoError(t, err)
	assert.Equal(t, -12.0, m.Snapshot().Props["level"])

	for _, level := range []float64{gain.MinLevel - 1, gain.MaxLevel + 1} {
		err := m.Apply(module.Changes{Props: module.Props{"level": level}})
		require.Error(t, err, "level %v", level)
	}

	// Bounds themselves are legal.
	require.NoError(t, m.Apply(module.Changes{Props: module.Props{"level": gain.MinLevel}}))
	require.NoError(t, m.Apply(module.Changes{Props: module.Props{"level": gain.MaxLevel}}))
}

func TestFilterKinds(t *testing.T) {
	catalog, bctx := newTestContext(t)

	m, err := module.New(catalog, bctx, module.Params{
		Name:     "tone",
		Category: filter.Category,
	})
	require.NoError(t, err)
	assert.Equal(t, filter.KindLowpass, m.Snapshot().Props["kind"])

	for _, kind := range []string{
		filter.KindHighpass, filter.KindBandpass, filter.KindNotch,
	} {
		require.NoError(t, m.Apply(module.Changes{Props: module.Props{"kind": kind}}))
	}

	err = m.Apply(module.Changes{Props: module.Props{"kind": "allpass"}})
	require.Error(t, err)
}

func TestDestinationRejectsAnyProps(t *testing.T) {
	catalog, bctx := newTestContext(t)

	_, err := module.New(catalog, bctx, module.Params{
		Name:     "out",
		Category: "destination",
		Props:    module.Props{"volume": 1.0},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidPropsField)
}
