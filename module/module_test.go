package module_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/audiograph/backend"
	"github.com/c360/audiograph/backend/offline"
	"github.com/c360/audiograph/errors"
	"github.com/c360/audiograph/module"
)

// testCatalog builds a catalog with a startable single-fire "tone"
// category and a plain "trim" category, independent of the built-ins.
func testCatalog(t *testing.T) *module.Catalog {
	t.Helper()

	catalog := module.NewCatalog()
	require.NoError(t, catalog.Register(&module.CategorySpec{
		Category: "tone",
		Defaults: func() module.Props {
			return module.Props{"wave": "sine", "frequency": 440.0}
		},
		Fields: map[string]module.FieldSpec{
			"wave": {
				Validate: func(v any) error {
					if _, ok := module.AsString(v); !ok {
						return fmt.Errorf("wave must be a string")
					}
					return nil
				},
				Mirror: module.MirrorParam("wave"),
			},
			"frequency": {
				Validate: func(v any) error {
					f, ok := module.AsNumber(v)
					if !ok || f <= 0 {
						return fmt.Errorf("frequency must be a positive number")
					}
					return nil
				},
				Mirror: module.MirrorParam("frequency"),
			},
			// Stored only, no backend mirror.
			"label": {},
		},
		Startable:      true,
		RecreateOnStop: true,
	}))
	require.NoError(t, catalog.Register(&module.CategorySpec{
		Category: "trim",
		Defaults: func() module.Props {
			return module.Props{"level": 0.0}
		},
		Fields: map[string]module.FieldSpec{
			"level": {Mirror: module.MirrorParam("level")},
		},
	}))
	return catalog
}

func testContext(t *testing.T) backend.Context {
	t.Helper()
	bctx, err := offline.New(offline.WithSingleFire("tone")).AcquireContext()
	require.NoError(t, err)
	return bctx
}

func TestNewAppliesDefaults(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	mod, err := module.New(catalog, bctx, module.Params{
		Name:     "Osc",
		Category: "tone",
		Props:    module.Props{"frequency": 220.0},
	})
	require.NoError(t, err)

	snap := mod.Snapshot()
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "Osc", snap.Name)
	assert.Equal(t, module.Category("tone"), snap.Category)
	assert.Equal(t, "sine", snap.Props["wave"], "absent field takes category default")
	assert.Equal(t, 220.0, snap.Props["frequency"])
}

func TestNewHonorsCallerID(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	mod, err := module.New(catalog, bctx, module.Params{
		ID:       "fixed-id",
		Category: "trim",
	})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", mod.ID())
}

func TestNewUnknownCategory(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	_, err := module.New(catalog, bctx, module.Params{Category: "theremin"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnknownCategory))
}

func TestNewRejectsUnknownPropsField(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	_, err := module.New(catalog, bctx, module.Params{
		Category: "tone",
		Props:    module.Props{"phase": 0.5},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPropsField))
}

func TestNewHandleStartsFullyDefined(t *testing.T) {
	catalog := testCatalog(t)
	b := offline.New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	_, err = module.New(catalog, bctx, module.Params{Category: "tone"})
	require.NoError(t, err)

	// The backend saw the fully defaulted props at construction time.
	require.Equal(t, 1, b.Context().HandleCount())
}

func TestNewBackendFailure(t *testing.T) {
	catalog := testCatalog(t)
	boom := errors.New("renderer refused")
	bctx, err := offline.New(offline.WithFailCreate("tone", boom)).AcquireContext()
	require.NoError(t, err)

	_, err = module.New(catalog, bctx, module.Params{Category: "tone"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrBackendFailure))
	assert.True(t, errors.Is(err, boom))
}

func TestSnapshotIsDetached(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	mod, err := module.New(catalog, bctx, module.Params{Category: "tone"})
	require.NoError(t, err)

	snap := mod.Snapshot()
	snap.Props["frequency"] = 9999.0

	assert.Equal(t, 440.0, mod.Snapshot().Props["frequency"])
}

func TestApplyMergesAndMirrorsOnlyUpdatedFields(t *testing.T) {
	catalog := testCatalog(t)
	b := offline.New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	mod, err := module.New(catalog, bctx, module.Params{
		Category: "tone",
		Props:    module.Props{"wave": "square", "frequency": 440.0},
	})
	require.NoError(t, err)

	require.NoError(t, mod.Apply(module.Changes{Props: module.Props{"frequency": 880.0}}))

	snap := mod.Snapshot()
	assert.Equal(t, "square", snap.Props["wave"], "untouched field survives the merge")
	assert.Equal(t, 880.0, snap.Props["frequency"])

	handles := b.Context().Handles()
	require.Len(t, handles, 1)
	freq, ok := handles[0].Param("frequency")
	require.True(t, ok)
	assert.Equal(t, 880.0, freq, "changed field mirrored onto the handle")
}

func TestApplyStoredOnlyFieldHasNoBackendEffect(t *testing.T) {
	catalog := testCatalog(t)
	b := offline.New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	mod, err := module.New(catalog, bctx, module.Params{Category: "tone"})
	require.NoError(t, err)

	require.NoError(t, mod.Apply(module.Changes{Props: module.Props{"label": "lead"}}))
	assert.Equal(t, "lead", mod.Snapshot().Props["label"])

	_, mirrored := b.Context().Handles()[0].Param("label")
	assert.False(t, mirrored, "stored-only field never reaches the backend")
}

func TestApplyValidationFailureMergesNothing(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	mod, err := module.New(catalog, bctx, module.Params{Category: "tone"})
	require.NoError(t, err)

	err = mod.Apply(module.Changes{Props: module.Props{
		"frequency": 880.0,
		"gate":      true, // unknown field poisons the whole payload
	}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidPropsField))
	assert.Equal(t, 440.0, mod.Snapshot().Props["frequency"], "no field merged on failure")
}

func TestApplyRenames(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	mod, err := module.New(catalog, bctx, module.Params{Name: "a", Category: "trim"})
	require.NoError(t, err)

	name := "b"
	require.NoError(t, mod.Apply(module.Changes{Name: &name}))
	assert.Equal(t, "b", mod.Name())
}

func TestStartStopRecreatesSingleFireHandle(t *testing.T) {
	catalog := testCatalog(t)
	b := offline.New(offline.WithSingleFire("tone"))
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	mod, err := module.New(catalog, bctx, module.Params{Name: "Osc", Category: "tone"})
	require.NoError(t, err)
	before := mod.Snapshot()

	require.NoError(t, mod.Start(0))

	recreated, err := mod.Stop(1)
	require.NoError(t, err)
	assert.True(t, recreated)
	assert.Equal(t, 2, b.Context().HandleCount(), "a fresh handle replaced the spent one")

	// Identity and props unchanged, and the module can start again; a
	// non-recreated single-fire handle would refuse.
	assert.Equal(t, before, mod.Snapshot())
	require.NoError(t, mod.Start(2))
}

func TestStopWithoutRecreateKeepsHandle(t *testing.T) {
	catalog := module.NewCatalog()
	require.NoError(t, catalog.Register(&module.CategorySpec{
		Category:  "pulse",
		Defaults:  func() module.Props { return module.Props{} },
		Fields:    map[string]module.FieldSpec{},
		Startable: true,
	}))
	b := offline.New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	mod, err := module.New(catalog, bctx, module.Params{Category: "pulse"})
	require.NoError(t, err)

	require.NoError(t, mod.Start(0))
	recreated, err := mod.Stop(1)
	require.NoError(t, err)
	assert.False(t, recreated)
	assert.Equal(t, 1, b.Context().HandleCount())
}

func TestStartOnNonStartableCategory(t *testing.T) {
	catalog := testCatalog(t)
	bctx := testContext(t)

	mod, err := module.New(catalog, bctx, module.Params{Category: "trim"})
	require.NoError(t, err)
	assert.False(t, mod.Startable())

	require.Error(t, mod.Start(0))
	_, err = mod.Stop(0)
	require.Error(t, err)
}

func TestConnectDelegatesToHandles(t *testing.T) {
	catalog := testCatalog(t)
	b := offline.New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	src, err := module.New(catalog, bctx, module.Params{Category: "tone"})
	require.NoError(t, err)
	dst, err := module.New(catalog, bctx, module.Params{Category: "trim"})
	require.NoError(t, err)

	require.NoError(t, src.Connect(dst))
	assert.Equal(t, 1, b.Context().ConnectCount())

	require.NoError(t, src.Disconnect(dst))
	err = src.Disconnect(dst)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
}

func TestCatalogRejectsDuplicatesAndBadSpecs(t *testing.T) {
	catalog := module.NewCatalog()
	spec := &module.CategorySpec{
		Category: "tone",
		Fields:   map[string]module.FieldSpec{},
	}
	require.NoError(t, catalog.Register(spec))
	require.Error(t, catalog.Register(spec), "duplicate category")

	require.Error(t, catalog.Register(nil))
	require.Error(t, catalog.Register(&module.CategorySpec{Fields: map[string]module.FieldSpec{}}),
		"empty category tag")
	require.Error(t, catalog.Register(&module.CategorySpec{
		Category:       "broken",
		RecreateOnStop: true,
	}), "recreate-on-stop requires startable")

	assert.Equal(t, []module.Category{"tone"}, catalog.Categories())
}
