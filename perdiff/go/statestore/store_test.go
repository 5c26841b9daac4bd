package statestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.crawlkit.dev/infra/go/testutils"
	"go.crawlkit.dev/infra/go/testutils/unittest"
	"go.crawlkit.dev/infra/perdiff/go/perdiff"
)

const (
	white     = 0xffffffff
	nearWhite = 0xfffefefe
	black     = 0xff000000
)

func solid(w, h int, c uint32) *perdiff.Raster {
	r := perdiff.NewRaster(w, h)
	for i := range r.Pix {
		r.Pix[i] = c
	}
	return r
}

func newTestStore(t *testing.T, threshold float64, capacity int) *Store {
	e := perdiff.NewEngine(perdiff.MustNewConfig(perdiff.CrawlerOptions()), 2)
	t.Cleanup(e.Close)
	ms, err := NewMemMetricsStore(100)
	require.NoError(t, err)
	s, err := New(e, threshold, capacity, ms)
	require.NoError(t, err)
	t.Cleanup(func() { testutils.CloseInTest(t, s) })
	return s
}

func TestStore_DistanceAndEquivalent(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0.1, 10)

	require.NoError(t, s.Put(ctx, "white", solid(20, 20, white)))
	require.NoError(t, s.Put(ctx, "nearwhite", solid(20, 20, nearWhite)))
	require.NoError(t, s.Put(ctx, "black", solid(20, 20, black)))
	assert.Equal(t, 3, s.Len())

	d, err := s.Distance(ctx, "white", "black")
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	d, err = s.Distance(ctx, "black", "white")
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	d, err = s.Distance(ctx, "white", "white")
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	eq, err := s.Equivalent(ctx, "white", "nearwhite")
	require.NoError(t, err)
	assert.True(t, eq)

	eq, err = s.Equivalent(ctx, "nearwhite", "black")
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestStore_Distance_IsCached(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0, 10)

	require.NoError(t, s.Put(ctx, "a", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "b", solid(10, 10, black)))

	_, err := s.Distance(ctx, "a", "b")
	require.NoError(t, err)
	d, ok, err := s.metrics.Get(ctx, DiffID("a", "b"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, d)

	// The cached value wins over the screenshots.
	require.NoError(t, s.metrics.Put(ctx, DiffID("a", "b"), 0.5))
	d, err = s.Distance(ctx, "b", "a")
	require.NoError(t, err)
	assert.Equal(t, 0.5, d)
}

func TestStore_DifferentSizes_MaxDistance(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0.5, 10)

	require.NoError(t, s.Put(ctx, "small", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "wide", solid(20, 10, white)))

	d, err := s.Distance(ctx, "small", "wide")
	require.NoError(t, err)
	assert.Equal(t, MaxDistance, d)
}

func TestStore_UnknownState_Error(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0, 10)
	require.NoError(t, s.Put(ctx, "a", solid(10, 10, white)))

	_, err := s.Distance(ctx, "a", "missing")
	assert.ErrorIs(t, err, ErrUnknownState)
	_, err = s.Distance(ctx, "missing", "missing")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestStore_Put_EmptyImage_Error(t *testing.T) {
	unittest.SmallTest(t)
	s := newTestStore(t, 0, 10)
	err := s.Put(context.Background(), "a", nil)
	assert.ErrorIs(t, err, perdiff.ErrEmptyImage)
	err = s.Put(context.Background(), "a", &perdiff.Raster{})
	assert.ErrorIs(t, err, perdiff.ErrEmptyImage)
	err = s.Put(context.Background(), "a", &perdiff.Raster{Width: 2, Height: 2, Pix: make([]uint32, 3)})
	assert.ErrorIs(t, err, perdiff.ErrInvalidRaster)
	assert.Equal(t, 0, s.Len())
}

func TestStore_IDsWithSeparator_Rejected(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0, 10)

	assert.ErrorIs(t, s.Put(ctx, "x:y", solid(10, 10, white)), ErrInvalidStateID)
	assert.ErrorIs(t, s.Put(ctx, "", solid(10, 10, white)), ErrInvalidStateID)
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Put(ctx, "x", solid(10, 10, black)))
	require.NoError(t, s.Put(ctx, "z", solid(10, 10, white)))
	_, err := s.Distance(ctx, "x", "y:z")
	assert.ErrorIs(t, err, ErrInvalidStateID)
	_, err = s.Distance(ctx, "x:y", "z")
	assert.ErrorIs(t, err, ErrInvalidStateID)

	d, err := s.Distance(ctx, "x", "z")
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)
}

func TestStore_Put_ReplacingDropsCachedDistances(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0, 10)

	require.NoError(t, s.Put(ctx, "a", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "b", solid(10, 10, black)))
	d, err := s.Distance(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	require.NoError(t, s.Put(ctx, "a", solid(10, 10, black)))
	d, err = s.Distance(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)
}

func TestStore_FindEquivalent(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0.1, 10)

	require.NoError(t, s.Put(ctx, "black", solid(10, 10, black)))
	require.NoError(t, s.Put(ctx, "white", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "white-again", solid(10, 10, white)))

	id, d, ok, err := s.FindEquivalent(ctx, solid(10, 10, nearWhite))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "white", id)
	assert.Equal(t, 0.0, d)

	_, _, ok, err = s.FindEquivalent(ctx, solid(12, 10, white))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, _, err = s.FindEquivalent(ctx, nil)
	assert.ErrorIs(t, err, perdiff.ErrEmptyImage)
}

func TestStore_Purge(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0, 10)

	require.NoError(t, s.Put(ctx, "a", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "b", solid(10, 10, black)))
	require.NoError(t, s.Put(ctx, "c", solid(10, 10, black)))
	_, err := s.Distance(ctx, "a", "b")
	require.NoError(t, err)
	_, err = s.Distance(ctx, "b", "c")
	require.NoError(t, err)

	require.NoError(t, s.Purge(ctx, "a"))
	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok, err = s.metrics.Get(ctx, DiffID("a", "b"))
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = s.metrics.Get(ctx, DiffID("b", "c"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_EvictsOldestScreenshot(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0, 2)

	require.NoError(t, s.Put(ctx, "a", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "b", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "c", solid(10, 10, white)))

	assert.Equal(t, 2, s.Len())
	_, ok := s.Get("a")
	assert.False(t, ok)
	_, err := s.Distance(ctx, "a", "c")
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestStore_Put_AfterEviction_DropsStaleDistances(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	s := newTestStore(t, 0, 2)

	require.NoError(t, s.Put(ctx, "a", solid(10, 10, white)))
	require.NoError(t, s.Put(ctx, "b", solid(10, 10, black)))
	d, err := s.Distance(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 1.0, d)

	// Touch b so that c evicts a.
	_, ok := s.Get("b")
	require.True(t, ok)
	require.NoError(t, s.Put(ctx, "c", solid(10, 10, white)))
	_, ok = s.Get("a")
	require.False(t, ok)

	require.NoError(t, s.Put(ctx, "a", solid(10, 10, black)))
	d, err = s.Distance(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, d)

	eq, err := s.Equivalent(ctx, "b", "a")
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestNew_InvalidArguments_Error(t *testing.T) {
	unittest.SmallTest(t)
	e := perdiff.NewEngine(perdiff.MustNewConfig(perdiff.DefaultOptions()), 1)
	defer e.Close()
	ms, err := NewMemMetricsStore(10)
	require.NoError(t, err)

	_, err = New(e, 1.5, 10, ms)
	assert.Error(t, err)
	_, err = New(e, -0.1, 10, ms)
	assert.Error(t, err)
	_, err = New(e, 0.1, 0, ms)
	assert.Error(t, err)
	_, err = New(nil, 0.1, 10, ms)
	assert.Error(t, err)
}
