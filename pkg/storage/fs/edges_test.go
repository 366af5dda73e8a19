package fs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpart/graphpart/pkg/edgelist"
	"github.com/graphpart/graphpart/pkg/storage"
	"github.com/graphpart/graphpart/pkg/testutil"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

func newTestEdgeStorage(t *testing.T, opts ...EdgeOption) (*EdgeStorage, string) {
	t.Helper()
	dir := t.TempDir()
	es := NewEdgeStorage(dir, opts...)
	ctx := testutil.TestContext(t)
	require.NoError(t, es.Prepare(ctx))
	return es, dir
}

func TestEdgeStorage_SaveLoadRoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, dir := newTestEdgeStorage(t)

	edges := testutil.Edges(
		[]int64{10, 11, 12},
		[]int64{20, 21, 22},
		[]int64{0, 1, 0},
	)
	require.NoError(t, storage.SaveEdges(ctx, es, 0, 1, edges))

	ok, err := es.HasEdges(ctx, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.FileExists(t, filepath.Join(dir, "edges_0_1.shard"))
	assert.NoFileExists(t, filepath.Join(dir, "edges_0_1.tmp.shard"))

	got, err := storage.LoadEdges(ctx, es, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, edges.LHS.IDs, got.LHS.IDs)
	assert.Equal(t, edges.RHS.IDs, got.RHS.IDs)
	assert.Equal(t, edges.Rel, got.Rel)

	// No dynamic features were written, so reads return the empty
	// representation.
	assert.Equal(t, []int64{0, 0, 0, 0}, got.LHS.Features.Offsets)
	assert.Empty(t, got.LHS.Features.Data)
	assert.Equal(t, []int64{0, 0, 0, 0}, got.RHS.Features.Offsets)
	assert.Empty(t, got.RHS.Features.Data)
}

func TestEdgeStorage_DynamicFeatures(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, _ := newTestEdgeStorage(t)

	app, err := es.SaveEdgesByAppending(ctx, 2, 3)
	require.NoError(t, err)
	defer app.Abort()

	first := testutil.Edges([]int64{1, 2}, []int64{5, 6}, []int64{0, 0})
	first.LHS.Features = edgelist.NewRaggedList([][]int64{{1, 2}, {3}})
	require.NoError(t, app.AppendEdges(ctx, first))

	second := testutil.Edges([]int64{3, 4}, []int64{7, 8}, []int64{1, 1})
	second.LHS.Features = edgelist.NewRaggedList([][]int64{{}, {4, 5, 6}})
	require.NoError(t, app.AppendEdges(ctx, second))

	require.NoError(t, app.Close(ctx))

	t.Run("full read", func(t *testing.T) {
		got, err := storage.LoadEdges(ctx, es, 2, 3)
		require.NoError(t, err)
		require.Equal(t, 4, got.Len())
		assert.Equal(t, []int64{0, 2, 3, 3, 6}, got.LHS.Features.Offsets)
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, got.LHS.Features.Data)
	})

	t.Run("ragged slice across appends", func(t *testing.T) {
		// Chunk 1 of 2 over 4 edges is records [2, 4); the offsets come
		// back normalized to start at 0.
		got, err := es.LoadChunkOfEdges(ctx, 2, 3, 1, 2)
		require.NoError(t, err)
		require.Equal(t, 2, got.Len())
		assert.Equal(t, []int64{3, 4}, got.LHS.IDs)
		assert.Equal(t, []int64{0, 0, 3}, got.LHS.Features.Offsets)
		assert.Equal(t, []int64{4, 5, 6}, got.LHS.Features.Data)
		assert.Empty(t, got.LHS.Features.Record(0))
		assert.Equal(t, []int64{4, 5, 6}, got.LHS.Features.Record(1))
	})

	t.Run("rhs never written", func(t *testing.T) {
		got, err := storage.LoadEdges(ctx, es, 2, 3)
		require.NoError(t, err)
		assert.Equal(t, []int64{0, 0, 0, 0, 0}, got.RHS.Features.Offsets)
		assert.Empty(t, got.RHS.Features.Data)
	})
}

func TestEdgeStorage_DynamicColumnOmission(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, dir := newTestEdgeStorage(t)

	edges := testutil.Edges([]int64{1}, []int64{2}, []int64{0})
	edges.LHS.Features = edgelist.EmptyRagged(1)
	require.NoError(t, storage.SaveEdges(ctx, es, 0, 0, edges))

	// The shard must not contain lhsd/rhsd columns at all. The footer is
	// plain JSON, so a byte-level check is enough.
	data, err := os.ReadFile(filepath.Join(dir, "edges_0_0.shard"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "lhsd_offsets")
	assert.NotContains(t, string(data), "rhsd_offsets")
}

func TestEdgeStorage_BufferBoundaries(t *testing.T) {
	// 5 edges through a capacity-2 buffer: two full flushes and a final
	// flush of one, then chunked reads over the 5-element columns.
	ctx := testutil.TestContext(t)
	es, _ := newTestEdgeStorage(t, WithBufferSize(2))

	edges := testutil.Edges(
		[]int64{100, 101, 102, 103, 104},
		[]int64{200, 201, 202, 203, 204},
		[]int64{0, 1, 2, 3, 4},
	)
	require.NoError(t, storage.SaveEdges(ctx, es, 1, 1, edges))

	whole, err := storage.LoadEdges(ctx, es, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, edges.LHS.IDs, whole.LHS.IDs)
	assert.Equal(t, edges.RHS.IDs, whole.RHS.IDs)
	assert.Equal(t, edges.Rel, whole.Rel)

	// Chunk 1 of 2: begin = floor(1*5/2) = 2, end = 5.
	chunk, err := es.LoadChunkOfEdges(ctx, 1, 1, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{102, 103, 104}, chunk.LHS.IDs)
	assert.Equal(t, []int64{2, 3, 4}, chunk.Rel)
}

func TestEdgeStorage_ChunksTileShard(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, _ := newTestEdgeStorage(t, WithBufferSize(8))

	n := 100
	edges := testutil.Edges(testutil.Sequence(n), testutil.Sequence(n), testutil.Sequence(n))
	require.NoError(t, storage.SaveEdges(ctx, es, 0, 0, edges))

	var rebuilt []int64
	numChunks := 7
	for i := 0; i < numChunks; i++ {
		chunk, err := es.LoadChunkOfEdges(ctx, 0, 0, i, numChunks)
		require.NoError(t, err)
		rebuilt = append(rebuilt, chunk.Rel...)
	}
	assert.Equal(t, testutil.Sequence(n), rebuilt)
}

func TestEdgeStorage_EmptyChunk(t *testing.T) {
	// More chunks than edges: some chunks are empty and must read cleanly.
	ctx := testutil.TestContext(t)
	es, _ := newTestEdgeStorage(t)

	edges := testutil.Edges([]int64{1, 2}, []int64{3, 4}, []int64{0, 1})
	require.NoError(t, storage.SaveEdges(ctx, es, 0, 0, edges))

	total := 0
	for i := 0; i < 5; i++ {
		chunk, err := es.LoadChunkOfEdges(ctx, 0, 0, i, 5)
		require.NoError(t, err)
		total += chunk.Len()
	}
	assert.Equal(t, 2, total)
}

func TestEdgeStorage_ZeroEdgeShard(t *testing.T) {
	// Sparse partition grids legitimately produce empty buckets; an empty
	// shard must publish and read back as an empty edge list.
	ctx := testutil.TestContext(t)
	es, _ := newTestEdgeStorage(t)

	require.NoError(t, storage.SaveEdges(ctx, es, 3, 3, testutil.Edges(nil, nil, nil)))

	ok, err := es.HasEdges(ctx, 3, 3)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := storage.LoadEdges(ctx, es, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Empty(t, got.LHS.IDs)
	assert.Equal(t, []int64{0}, got.LHS.Features.Offsets)
	assert.Empty(t, got.LHS.Features.Data)

	chunk, err := es.LoadChunkOfEdges(ctx, 3, 3, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, chunk.Len())
}

func TestEdgeStorage_MissingShard(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, _ := newTestEdgeStorage(t)

	ok, err := es.HasEdges(ctx, 9, 9)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = storage.LoadEdges(ctx, es, 9, 9)
	require.Error(t, err)
	assert.True(t, xerrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "edges_9_9.shard")
}

func TestEdgeStorage_AtomicPublish(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, dir := newTestEdgeStorage(t)

	t.Run("abort leaves no shard", func(t *testing.T) {
		app, err := es.SaveEdgesByAppending(ctx, 4, 5)
		require.NoError(t, err)
		require.NoError(t, app.AppendEdges(ctx, testutil.Edges([]int64{1}, []int64{2}, []int64{0})))
		require.NoError(t, app.Abort())

		assert.NoFileExists(t, filepath.Join(dir, "edges_4_5.shard"))
		assert.FileExists(t, filepath.Join(dir, "edges_4_5.tmp.shard"))

		ok, err := es.HasEdges(ctx, 4, 5)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("retry unlinks stale temp and publishes", func(t *testing.T) {
		require.NoError(t, storage.SaveEdges(ctx, es, 4, 5,
			testutil.Edges([]int64{7}, []int64{8}, []int64{1})))

		assert.NoFileExists(t, filepath.Join(dir, "edges_4_5.tmp.shard"))
		got, err := storage.LoadEdges(ctx, es, 4, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{7}, got.LHS.IDs)
	})

	t.Run("failed overwrite preserves published shard", func(t *testing.T) {
		app, err := es.SaveEdgesByAppending(ctx, 4, 5)
		require.NoError(t, err)
		require.NoError(t, app.AppendEdges(ctx, testutil.Edges([]int64{99}, []int64{99}, []int64{9})))
		require.NoError(t, app.Abort())

		got, err := storage.LoadEdges(ctx, es, 4, 5)
		require.NoError(t, err)
		assert.Equal(t, []int64{7}, got.LHS.IDs)
	})
}

func TestEdgeAppender_CloseAfterFailure(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, dir := newTestEdgeStorage(t)

	app, err := es.SaveEdgesByAppending(ctx, 6, 6)
	require.NoError(t, err)

	// A malformed batch fails the session; Close must report it and must
	// not publish.
	bad := testutil.Edges([]int64{1}, []int64{2, 3}, []int64{0})
	require.Error(t, app.AppendEdges(ctx, bad))

	err = app.Close(ctx)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "edges_6_6.shard"))
}

func TestEdgeAppender_DoubleCloseAndAbort(t *testing.T) {
	ctx := testutil.TestContext(t)
	es, _ := newTestEdgeStorage(t)

	app, err := es.SaveEdgesByAppending(ctx, 0, 2)
	require.NoError(t, err)
	require.NoError(t, app.AppendEdges(ctx, testutil.Edges([]int64{1}, []int64{2}, []int64{0})))
	require.NoError(t, app.Close(ctx))
	require.NoError(t, app.Close(ctx))
	require.NoError(t, app.Abort())

	ok, err := es.HasEdges(ctx, 0, 2)
	require.NoError(t, err)
	assert.True(t, ok)
}
