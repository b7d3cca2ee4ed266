package offline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/audiograph/backend"
	"github.com/c360/audiograph/errors"
)

func TestAcquireContextIsLazySingleton(t *testing.T) {
	b := New()
	assert.Nil(t, b.Context())

	ctx1, err := b.AcquireContext()
	require.NoError(t, err)
	ctx2, err := b.AcquireContext()
	require.NoError(t, err)
	assert.Same(t, ctx1, ctx2)
}

func TestResumeIsNoOp(t *testing.T) {
	b := New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	c := bctx.(*Context)
	assert.False(t, c.Resumed())
	require.NoError(t, c.Resume(context.Background()))
	assert.True(t, c.Resumed())
}

func TestCreateHandleCopiesProps(t *testing.T) {
	b := New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	props := map[string]any{"frequency": 440.0, "wave": "sine"}
	h, err := bctx.CreateHandle("oscillator", props)
	require.NoError(t, err)

	props["frequency"] = 880.0
	oh := h.(*Handle)
	v, ok := oh.Param("frequency")
	require.True(t, ok)
	assert.Equal(t, 440.0, v)
}

func TestSingleFireHandleRejectsRestart(t *testing.T) {
	b := New(WithSingleFire("oscillator"))
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	h, err := bctx.CreateHandle("oscillator", nil)
	require.NoError(t, err)

	require.NoError(t, h.Start(0))
	require.NoError(t, h.Stop(1))
	err = h.Start(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAlreadyStarted))

	// Non single-fire categories restart freely
	g, err := bctx.CreateHandle("gain", nil)
	require.NoError(t, err)
	require.NoError(t, g.Start(0))
	require.NoError(t, g.Stop(1))
	require.NoError(t, g.Start(2))
}

func TestConnectDisconnect(t *testing.T) {
	b := New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	src, err := bctx.CreateHandle("oscillator", nil)
	require.NoError(t, err)
	dst, err := bctx.CreateHandle("gain", nil)
	require.NoError(t, err)

	require.NoError(t, src.Connect(dst))
	assert.True(t, src.(*Handle).ConnectedTo(dst.(*Handle)))
	assert.Equal(t, 1, bctx.(*Context).ConnectCount())

	require.NoError(t, src.Disconnect(dst))
	assert.False(t, src.(*Handle).ConnectedTo(dst.(*Handle)))

	err = src.Disconnect(dst)
	assert.True(t, errors.Is(err, errors.ErrNotConnected))
}

func TestReleasedHandleRejectsUse(t *testing.T) {
	b := New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	h, err := bctx.CreateHandle("gain", nil)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	assert.True(t, errors.Is(h.SetParam("level", -6.0), errors.ErrHandleReleased))
	assert.True(t, errors.Is(h.Start(0), errors.ErrHandleReleased))
	assert.True(t, errors.Is(h.Stop(0), errors.ErrHandleReleased))
}

func TestFailCreateInjection(t *testing.T) {
	boom := errors.New("no dsp for you")
	b := New(WithFailCreate("filter", boom))
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	_, err = bctx.CreateHandle("filter", nil)
	assert.ErrorIs(t, err, boom)

	_, err = bctx.CreateHandle("gain", nil)
	assert.NoError(t, err)
}

func TestScheduledTimesAreRecorded(t *testing.T) {
	b := New()
	bctx, err := b.AcquireContext()
	require.NoError(t, err)

	h, err := bctx.CreateHandle("oscillator", nil)
	require.NoError(t, err)

	require.NoError(t, h.Start(backend.Time(1.5)))
	require.NoError(t, h.Stop(backend.Time(2.5)))

	oh := h.(*Handle)
	assert.Equal(t, []backend.Time{1.5}, oh.Starts())
	assert.Equal(t, []backend.Time{2.5}, oh.Stops())
}
