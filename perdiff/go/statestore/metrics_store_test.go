package statestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.crawlkit.dev/infra/go/testutils"
	"go.crawlkit.dev/infra/go/testutils/unittest"
)

func TestDiffID_IsSymmetric(t *testing.T) {
	unittest.SmallTest(t)
	assert.Equal(t, "abc:def", DiffID("abc", "def"))
	assert.Equal(t, "abc:def", DiffID("def", "abc"))

	left, right := SplitDiffID(DiffID("state-2", "state-1"))
	assert.Equal(t, "state-1", left)
	assert.Equal(t, "state-2", right)
}

func testMetricsStore(t *testing.T, ms MetricsStore) {
	ctx := context.Background()

	_, ok, err := ms.Get(ctx, DiffID("a", "b"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ms.Put(ctx, DiffID("a", "b"), 0.25))
	require.NoError(t, ms.Put(ctx, DiffID("b", "c"), 0.5))
	require.NoError(t, ms.Put(ctx, DiffID("c", "d"), 1))

	d, ok, err := ms.Get(ctx, DiffID("b", "a"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.25, d)

	require.NoError(t, ms.Purge(ctx, []string{"b"}))
	for _, id := range []string{DiffID("a", "b"), DiffID("b", "c")} {
		_, ok, err = ms.Get(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok, id)
	}
	d, ok, err = ms.Get(ctx, DiffID("c", "d"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1.0, d)
}

func TestMemMetricsStore(t *testing.T) {
	unittest.SmallTest(t)
	ms, err := NewMemMetricsStore(10)
	require.NoError(t, err)
	testMetricsStore(t, ms)
	testutils.CloseInTest(t, ms)
}

func TestMemMetricsStore_EvictsOldest(t *testing.T) {
	unittest.SmallTest(t)
	ctx := context.Background()
	ms, err := NewMemMetricsStore(2)
	require.NoError(t, err)

	require.NoError(t, ms.Put(ctx, "a:b", 0.1))
	require.NoError(t, ms.Put(ctx, "a:c", 0.2))
	require.NoError(t, ms.Put(ctx, "a:d", 0.3))

	_, ok, err := ms.Get(ctx, "a:b")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = ms.Get(ctx, "a:d")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemMetricsStore_InvalidSize_Error(t *testing.T) {
	unittest.SmallTest(t)
	_, err := NewMemMetricsStore(0)
	assert.Error(t, err)
}

func TestLevelDBMetricsStore(t *testing.T) {
	unittest.MediumTest(t)
	ms, err := NewLevelDBMetricsStore(t.TempDir())
	require.NoError(t, err)
	testMetricsStore(t, ms)
	testutils.CloseInTest(t, ms)
}

func TestLevelDBMetricsStore_SurvivesReopen(t *testing.T) {
	unittest.MediumTest(t)
	ctx := context.Background()
	dir := t.TempDir()

	ms, err := NewLevelDBMetricsStore(dir)
	require.NoError(t, err)
	require.NoError(t, ms.Put(ctx, DiffID("x", "y"), 0.75))
	require.NoError(t, ms.Close())

	ms, err = NewLevelDBMetricsStore(dir)
	require.NoError(t, err)
	defer testutils.CloseInTest(t, ms)
	d, ok, err := ms.Get(ctx, DiffID("y", "x"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0.75, d)
}
