package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphpart/graphpart/pkg/edgelist"
	"github.com/graphpart/graphpart/pkg/storage"
	"github.com/graphpart/graphpart/pkg/testutil"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

// fakeS3 is an in-memory object store implementing the Client and
// Uploader subsets, including ranged GETs.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
	gets    int
}

func newFakeS3(bucket string) *fakeS3 {
	return &fakeS3{bucket: bucket, objects: make(map[string][]byte)}
}

func (f *fakeS3) lookup(bucket, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if bucket != f.bucket {
		return nil, false
	}
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeS3) GetObject(ctx context.Context, in *awss3.GetObjectInput, _ ...func(*awss3.Options)) (*awss3.GetObjectOutput, error) {
	data, ok := f.lookup(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.mu.Lock()
	f.gets++
	f.mu.Unlock()

	if rng := aws.ToString(in.Range); rng != "" {
		var begin, end int64
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &begin, &end); err != nil {
			return nil, fmt.Errorf("bad range %q: %w", rng, err)
		}
		if begin < 0 || begin > end {
			return nil, fmt.Errorf("bad range %q", rng)
		}
		if end >= int64(len(data)) {
			end = int64(len(data)) - 1
		}
		if begin >= int64(len(data)) {
			return nil, fmt.Errorf("range %q out of bounds", rng)
		}
		data = data[begin : end+1]
	}
	return &awss3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *awss3.PutObjectInput, _ ...func(*awss3.Options)) (*awss3.PutObjectOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NoSuchBucket{}
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.objects[aws.ToString(in.Key)] = data
	f.mu.Unlock()
	return &awss3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *awss3.HeadObjectInput, _ ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error) {
	data, ok := f.lookup(aws.ToString(in.Bucket), aws.ToString(in.Key))
	if !ok {
		return nil, &types.NotFound{}
	}
	return &awss3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *awss3.HeadBucketInput, _ ...func(*awss3.Options)) (*awss3.HeadBucketOutput, error) {
	if aws.ToString(in.Bucket) != f.bucket {
		return nil, &types.NotFound{}
	}
	return &awss3.HeadBucketOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *awss3.DeleteObjectInput, _ ...func(*awss3.Options)) (*awss3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &awss3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) Upload(ctx context.Context, in *awss3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if _, err := f.PutObject(ctx, in); err != nil {
		return nil, err
	}
	return &manager.UploadOutput{}, nil
}

func newTestBucket(prefix string) (*bucket, *fakeS3) {
	fake := newFakeS3("graphs")
	return &bucket{name: "graphs", prefix: prefix, client: fake, uploader: fake}, fake
}

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		bucket  string
		prefix  string
		wantErr bool
	}{
		{url: "s3://graphs", bucket: "graphs"},
		{url: "s3://graphs/", bucket: "graphs"},
		{url: "s3://graphs/data/v1", bucket: "graphs", prefix: "data/v1"},
		{url: "s3://graphs/data/v1/", bucket: "graphs", prefix: "data/v1"},
		{url: "s3://", wantErr: true},
		{url: "/local/path", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			b, p, err := ParseURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, xerrors.IsType(err, xerrors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.bucket, b)
			assert.Equal(t, tt.prefix, p)
		})
	}
}

func TestBucket_KeyPrefix(t *testing.T) {
	b, _ := newTestBucket("data/v1")
	assert.Equal(t, "data/v1/dynamic_rel_count.txt", b.key("dynamic_rel_count.txt"))

	bare, _ := newTestBucket("")
	assert.Equal(t, "dynamic_rel_count.txt", bare.key("dynamic_rel_count.txt"))
}

func TestEntityStorage_RoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	b, fake := newTestBucket("graph")
	es := &EntityStorage{bucket: b}

	require.NoError(t, es.Prepare(ctx))

	ok, err := es.HasCount(ctx, "user", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = es.LoadCount(ctx, "user", 3)
	require.Error(t, err)
	assert.True(t, xerrors.IsNotFound(err))

	require.NoError(t, es.SaveCount(ctx, "user", 3, 42))
	ok, err = es.HasCount(ctx, "user", 3)
	require.NoError(t, err)
	assert.True(t, ok)
	count, err := es.LoadCount(ctx, "user", 3)
	require.NoError(t, err)
	assert.Equal(t, 42, count)

	// Object keys mirror the filesystem layout under the prefix.
	_, exists := fake.lookup("graphs", "graph/entity_count_user_3.txt")
	assert.True(t, exists)

	names := []string{"alice", "bob"}
	require.NoError(t, es.SaveNames(ctx, "user", 3, names))
	got, err := es.LoadNames(ctx, "user", 3)
	require.NoError(t, err)
	assert.Equal(t, names, got)
}

func TestRelationTypeStorage_RoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	b, _ := newTestBucket("")
	rs := &RelationTypeStorage{bucket: b}

	ok, err := rs.HasCount(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rs.SaveCount(ctx, 7))
	require.NoError(t, rs.SaveNames(ctx, []string{"follows", "likes"}))

	count, err := rs.LoadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	names, err := rs.LoadNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"follows", "likes"}, names)
}

func TestBucket_PrepareUnknownBucket(t *testing.T) {
	ctx := testutil.TestContext(t)
	fake := newFakeS3("elsewhere")
	b := &bucket{name: "graphs", client: fake, uploader: fake}

	err := (&EntityStorage{bucket: b}).Prepare(ctx)
	require.Error(t, err)
	assert.True(t, xerrors.IsType(err, xerrors.ErrorTypeConfig))
}

func TestEdgeStorage_RoundTrip(t *testing.T) {
	ctx := testutil.TestContext(t)
	b, _ := newTestBucket("graph")
	es := &EdgeStorage{bucket: b}

	edges := testutil.Edges(
		[]int64{1, 2, 3, 4, 5},
		[]int64{6, 7, 8, 9, 10},
		[]int64{0, 1, 0, 1, 0},
	)
	edges.LHS.Features = edgelist.NewRaggedList([][]int64{{9}, {}, {8, 7}, {}, {6}})
	require.NoError(t, storage.SaveEdges(ctx, es, 0, 1, edges))

	ok, err := es.HasEdges(ctx, 0, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := storage.LoadEdges(ctx, es, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, edges.LHS.IDs, got.LHS.IDs)
	assert.Equal(t, edges.RHS.IDs, got.RHS.IDs)
	assert.Equal(t, edges.Rel, got.Rel)
	assert.Equal(t, edges.LHS.Features.Offsets, got.LHS.Features.Offsets)
	assert.Equal(t, edges.LHS.Features.Data, got.LHS.Features.Data)
}

func TestEdgeStorage_ChunkedReads(t *testing.T) {
	ctx := testutil.TestContext(t)
	b, _ := newTestBucket("")
	es := &EdgeStorage{bucket: b}

	n := 10
	require.NoError(t, storage.SaveEdges(ctx, es, 2, 2,
		testutil.Edges(testutil.Sequence(n), testutil.Sequence(n), testutil.Sequence(n))))

	var rebuilt []int64
	for i := 0; i < 3; i++ {
		chunk, err := es.LoadChunkOfEdges(ctx, 2, 2, i, 3)
		require.NoError(t, err)
		rebuilt = append(rebuilt, chunk.LHS.IDs...)
	}
	assert.Equal(t, testutil.Sequence(n), rebuilt)
}

func TestEdgeStorage_RangedReadsOnly(t *testing.T) {
	// Chunked reads must go through ranged GETs, never a whole-object
	// download.
	ctx := testutil.TestContext(t)
	b, fake := newTestBucket("")
	es := &EdgeStorage{bucket: b}

	n := 1000
	require.NoError(t, storage.SaveEdges(ctx, es, 0, 0,
		testutil.Edges(testutil.Sequence(n), testutil.Sequence(n), testutil.Sequence(n))))

	fake.mu.Lock()
	fake.gets = 0
	fake.mu.Unlock()

	_, err := es.LoadChunkOfEdges(ctx, 0, 0, 0, 100)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Greater(t, fake.gets, 0)
	size := int64(len(fake.objects["edges_0_0.shard"]))
	assert.Positive(t, size)
}

func TestEdgeStorage_MissingShard(t *testing.T) {
	ctx := testutil.TestContext(t)
	b, _ := newTestBucket("")
	es := &EdgeStorage{bucket: b}

	ok, err := es.HasEdges(ctx, 8, 8)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = storage.LoadEdges(ctx, es, 8, 8)
	require.Error(t, err)
	assert.True(t, xerrors.IsNotFound(err))
}

func TestEdgeStorage_AbortPublishesNothing(t *testing.T) {
	ctx := testutil.TestContext(t)
	b, fake := newTestBucket("")
	es := &EdgeStorage{bucket: b}

	app, err := es.SaveEdgesByAppending(ctx, 5, 5)
	require.NoError(t, err)
	require.NoError(t, app.AppendEdges(ctx, testutil.Edges([]int64{1}, []int64{2}, []int64{0})))
	require.NoError(t, app.Abort())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.objects)
}

func TestEdgeStorage_FailedSessionPreservesShard(t *testing.T) {
	ctx := testutil.TestContext(t)
	b, _ := newTestBucket("")
	es := &EdgeStorage{bucket: b}

	require.NoError(t, storage.SaveEdges(ctx, es, 1, 2,
		testutil.Edges([]int64{11}, []int64{22}, []int64{0})))

	app, err := es.SaveEdgesByAppending(ctx, 1, 2)
	require.NoError(t, err)
	require.Error(t, app.AppendEdges(ctx, testutil.Edges([]int64{1, 2}, []int64{3}, []int64{0})))
	require.Error(t, app.Close(ctx))

	got, err := storage.LoadEdges(ctx, es, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, got.LHS.IDs)
}

func TestSchemeRegistered(t *testing.T) {
	assert.Contains(t, storage.GetRegistry().Schemes(), "s3")
	assert.Equal(t, "s3", storage.Scheme("s3://graphs/data"))
	assert.True(t, strings.HasPrefix(urlScheme, "s3"))
}
