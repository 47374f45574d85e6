package idtable

import (
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTable(t *testing.T, dir string, opts ...Option) *Table {
	t.Helper()
	tbl, err := Open(dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tbl.Close() })
	return tbl
}

func TestGetIntegerWidth(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	assert.Equal(t, "000001", tbl.GetInteger("ptid", "abc", 6))
	assert.Equal(t, "1", tbl.GetInteger("ptid", "abc", 0))
	assert.Equal(t, "1", tbl.GetInteger("ptid", "abc", -3))
}

func TestGetIntegerIsMemoized(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	first := tbl.GetInteger("ptid", "Jane Doe", 0)
	assert.Equal(t, "1", first)
	assert.Equal(t, first, tbl.GetInteger("ptid", "Jane Doe", 0))
	assert.Equal(t, first, tbl.GetInteger("  ptid ", "  Jane Doe\t", 0), "category and text are trimmed")
	assert.Equal(t, "00001", tbl.GetInteger("ptid", "Jane Doe", 5))

	// A memoized lookup must not advance the counter.
	assert.Equal(t, "2", tbl.GetInteger("ptid", "John Roe", 0))
}

func TestCategoriesAreIndependent(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	assert.Equal(t, "1", tbl.GetInteger("ptid", "x", 0))
	assert.Equal(t, "1", tbl.GetInteger("accession", "x", 0))
	assert.Equal(t, "2", tbl.GetInteger("ptid", "y", 0))
	assert.Equal(t, "2", tbl.GetInteger("accession", "y", 0))
}

func TestNoCollisionsWithinCategory(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	seen := make(map[string]string)
	for i := 0; i < 50; i++ {
		text := fmt.Sprintf("patient-%d", i)
		v := tbl.GetInteger("ptid", text, 0)
		require.NotEqual(t, ErrorValue, v)
		if other, dup := seen[v]; dup {
			t.Fatalf("%q and %q both got %s", other, text, v)
		}
		seen[v] = text
	}
}

func TestConcurrentAllocationIsCollisionFree(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	const workers = 8
	const perWorker = 20
	results := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				results <- tbl.GetInteger("ptid", fmt.Sprintf("w%d-%d", w, i), 0)
			}
		}(w)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for v := range results {
		require.NotEqual(t, ErrorValue, v)
		require.False(t, seen[v], "duplicate value %s", v)
		seen[v] = true
	}
	assert.Len(t, seen, workers*perWorker)
	assert.True(t, seen[fmt.Sprint(workers*perWorker)], "sequence must be dense")
}

func TestSkipRangeIsOneShot(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	for i := 1; i <= 9; i++ {
		require.Equal(t, fmt.Sprint(i), tbl.GetInteger("ptid", fmt.Sprintf("p%d", i), 0))
	}
	require.True(t, tbl.SetSkipRange("ptid", 10, 15))

	r, ok := tbl.SkipRange("ptid")
	require.True(t, ok)
	assert.Equal(t, Range{Low: 10, High: 15}, r)

	assert.Equal(t, "16", tbl.GetInteger("ptid", "p10", 0))
	_, ok = tbl.SkipRange("ptid")
	assert.False(t, ok, "range is retired by the allocation that passed it")
	assert.Equal(t, "17", tbl.GetInteger("ptid", "p11", 0))
}

func TestSkipRangeAheadOfCounterWaits(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	require.True(t, tbl.SetSkipRange("ptid", 5, 3))
	assert.Equal(t, "1", tbl.GetInteger("ptid", "a", 0))
	assert.Equal(t, "2", tbl.GetInteger("ptid", "b", 0))
	_, ok := tbl.SkipRange("ptid")
	assert.True(t, ok, "range stays while candidates are below it")

	assert.Equal(t, "6", tbl.GetInteger("ptid", "c", 0))
	_, ok = tbl.SkipRange("ptid")
	assert.False(t, ok)
}

func TestSkipRangeBehindCounterRetiresImmediately(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	for i := 0; i < 5; i++ {
		tbl.GetInteger("ptid", fmt.Sprint(i), 0)
	}
	require.True(t, tbl.SetSkipRange("ptid", 1, 3))
	assert.Equal(t, "6", tbl.GetInteger("ptid", "next", 0))
	_, ok := tbl.SkipRange("ptid")
	assert.False(t, ok)
}

func TestSkipRangeOnlyAffectsItsCategory(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	require.True(t, tbl.SetSkipRange("ptid", 1, 100))
	assert.Equal(t, "1", tbl.GetInteger("accession", "a", 0))
	assert.Equal(t, "101", tbl.GetInteger("ptid", "a", 0))
}

func TestSetSkipRangeOverwrites(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	require.True(t, tbl.SetSkipRange("ptid", 1, 5))
	require.True(t, tbl.SetSkipRange("ptid", 1, 9))
	assert.Equal(t, "10", tbl.GetInteger("ptid", "a", 0))
}

func TestValuesSurviveReopen(t *testing.T) {
	dir := t.TempDir()
	tbl, err := Open(dir)
	require.NoError(t, err)
	assert.Equal(t, "1", tbl.GetInteger("ptid", "a", 0))
	assert.Equal(t, "2", tbl.GetInteger("ptid", "b", 0))
	require.True(t, tbl.SetSkipRange("ptid", 3, 4))
	require.NoError(t, tbl.Close())

	tbl = openTable(t, dir)
	assert.Equal(t, "2", tbl.GetInteger("ptid", "b", 0))
	_, ok := tbl.SkipRange("ptid")
	assert.True(t, ok)
	assert.Equal(t, "5", tbl.GetInteger("ptid", "c", 0))
}

func TestClosedTableReturnsSentinel(t *testing.T) {
	tbl, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, tbl.Close())

	assert.Equal(t, ErrorValue, tbl.GetInteger("ptid", "a", 6))
	_, err = tbl.Allocate("ptid", "a")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, tbl.SetSkipRange("ptid", 1, 2))
	_, ok := tbl.SkipRange("ptid")
	assert.False(t, ok)
}

func TestEntriesUseStoredLayout(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	tbl.GetInteger("ptid", "abc", 0)
	require.True(t, tbl.SetSkipRange("ptid", 7, 8))

	entries, err := tbl.Entries()
	require.NoError(t, err)
	got := make(map[string]string)
	for _, e := range entries {
		got[e.Key] = e.Value
	}
	assert.Equal(t, map[string]string{
		"<<ptid>>": `{"low":7,"high":8}`,
		"__ptid__": "1",
		"ptid/abc": "1",
	}, got)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	tbl := openTable(t, t.TempDir(), WithRegisterer(reg))

	require.True(t, tbl.SetSkipRange("ptid", 1, 1))
	tbl.GetInteger("ptid", "a", 0)
	tbl.GetInteger("ptid", "a", 0)
	tbl.GetInteger("ptid", "b", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(tbl.metrics.allocations.WithLabelValues("ptid", resultAssigned)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tbl.metrics.allocations.WithLabelValues("ptid", resultMemoized)))
	assert.Equal(t, 1.0, testutil.ToFloat64(tbl.metrics.retirements.WithLabelValues("ptid")))
}

func TestCategoryWithSlashIsRefused(t *testing.T) {
	tbl := openTable(t, t.TempDir())

	assert.Equal(t, "1", tbl.GetInteger("a", "b/c", 0))
	// "a/b" + "/c" would share the key "a/b/c" with the value above.
	assert.Equal(t, ErrorValue, tbl.GetInteger("a/b", "c", 0))
	_, err := tbl.Allocate("a/b", "c")
	assert.ErrorIs(t, err, ErrInvalidCategory)

	assert.False(t, tbl.SetSkipRange("a/b", 1, 5))
	_, ok := tbl.SkipRange("a/b")
	assert.False(t, ok)

	assert.Equal(t, "2", tbl.GetInteger("a", "d", 0), "a refused call does not touch other categories")
}
