package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/graphpart/graphpart/pkg/edgelist"
	"github.com/graphpart/graphpart/pkg/logger"
	"github.com/graphpart/graphpart/pkg/metrics"
	"github.com/graphpart/graphpart/pkg/shardfile"
	"github.com/graphpart/graphpart/pkg/storage"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

const backendLabel = "s3"

// EdgeStorage is the S3-backed edge store: one shard container object per
// partition pair.
type EdgeStorage struct {
	bucket *bucket
}

func (s *EdgeStorage) edgesKey(lhsP, rhsP int) string {
	return s.bucket.key(fmt.Sprintf("edges_%d_%d.shard", lhsP, rhsP))
}

// Prepare verifies bucket access. It is idempotent.
func (s *EdgeStorage) Prepare(ctx context.Context) error {
	return s.bucket.prepare(ctx)
}

// HasEdges reports whether the shard object for a partition pair has been
// published.
func (s *EdgeStorage) HasEdges(ctx context.Context, lhsP, rhsP int) (bool, error) {
	return s.bucket.has(ctx, s.edgesKey(lhsP, rhsP))
}

// SaveEdgesByAppending opens a write session over the partition pair's
// shard. The container is staged in a local scratch directory and uploaded
// as one object when the appender's Close finalizes it; until then nothing
// is visible remotely, and an aborted session leaves the published shard
// untouched.
func (s *EdgeStorage) SaveEdgesByAppending(ctx context.Context, lhsP, rhsP int) (storage.EdgeAppender, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "append session canceled")
	}

	scratchDir, err := os.MkdirTemp("", "graphpart-s3-")
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "failed to create scratch directory")
	}
	stagingPath := filepath.Join(scratchDir, fmt.Sprintf("edges_%d_%d.shard", lhsP, rhsP))

	w, err := shardfile.Create(stagingPath)
	if err != nil {
		os.RemoveAll(scratchDir)
		return nil, err
	}

	return &edgeAppender{
		bucket:      s.bucket,
		writer:      w,
		scratchDir:  scratchDir,
		stagingPath: stagingPath,
		key:         s.edgesKey(lhsP, rhsP),
		logger: logger.With(
			zap.String("component", "edge_storage"),
			zap.String("bucket", s.bucket.name),
			zap.Int("lhs_partition", lhsP),
			zap.Int("rhs_partition", rhsP)),
	}, nil
}

// LoadChunkOfEdges reads chunk chunkIdx of numChunks of the partition
// pair's shard through ranged GETs against the container's column index.
func (s *EdgeStorage) LoadChunkOfEdges(ctx context.Context, lhsP, rhsP, chunkIdx, numChunks int) (*edgelist.EdgeList, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "chunk read canceled")
	}
	start := time.Now()
	key := s.edgesKey(lhsP, rhsP)

	head, err := s.bucket.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket.name),
		Key:    aws.String(key),
	})
	if err != nil {
		if isMissing(err) {
			return nil, xerrors.Wrapf(err, xerrors.ErrorTypeNotFound,
				"shard s3://%s/%s does not exist", s.bucket.name, key)
		}
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to stat shard s3://%s/%s", s.bucket.name, key)
	}

	ra := &objectReaderAt{ctx: ctx, client: s.bucket.client, bucket: s.bucket.name, key: key}
	r, err := shardfile.NewReader(ra, aws.ToInt64(head.ContentLength))
	if err != nil {
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeFormat, "invalid shard s3://%s/%s", s.bucket.name, key)
	}

	edges, err := storage.ReadShardChunk(r, chunkIdx, numChunks)
	if err != nil {
		return nil, err
	}

	metrics.ChunksRead.WithLabelValues(backendLabel).Inc()
	metrics.EdgesRead.WithLabelValues(backendLabel).Add(float64(edges.Len()))
	metrics.ReadLatency.WithLabelValues(backendLabel).Observe(time.Since(start).Seconds())
	return edges, nil
}

// objectReaderAt adapts an S3 object to io.ReaderAt using ranged GETs.
type objectReaderAt struct {
	ctx    context.Context
	client Client
	bucket string
	key    string
}

func (o *objectReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	rng := fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1)
	out, err := o.client.GetObject(o.ctx, &awss3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(rng),
	})
	if err != nil {
		return 0, err
	}
	defer out.Body.Close()
	return io.ReadFull(out.Body, p)
}

// edgeAppender is the scoped write session over one S3 shard.
type edgeAppender struct {
	bucket      *bucket
	writer      *shardfile.Writer
	scratchDir  string
	stagingPath string
	key         string
	logger      *zap.Logger
	writeErr    error
	done        bool
}

// AppendEdges buffers one edge batch into the staged container. Column
// rules match the filesystem backend: lhs, rhs and rel always, dynamic
// columns only when the batch carries feature values.
func (a *edgeAppender) AppendEdges(ctx context.Context, edges *edgelist.EdgeList) error {
	if a.done {
		return xerrors.New(xerrors.ErrorTypeInternal, "append to a closed edge appender")
	}
	if err := ctx.Err(); err != nil {
		return a.fail(xerrors.Wrap(err, xerrors.ErrorTypeIO, "append canceled"))
	}
	if err := edges.Validate(); err != nil {
		return a.fail(err)
	}

	if err := a.writer.Column("lhs").Append(edges.LHS.IDs); err != nil {
		return a.fail(err)
	}
	if err := a.writer.Column("rhs").Append(edges.RHS.IDs); err != nil {
		return a.fail(err)
	}
	if err := a.writer.Column("rel").Append(edges.Rel); err != nil {
		return a.fail(err)
	}

	if edges.LHS.HasFeatures() {
		if err := a.writer.AppendRagged("lhsd", edges.LHS.Features); err != nil {
			return a.fail(err)
		}
	}
	if edges.RHS.HasFeatures() {
		if err := a.writer.AppendRagged("rhsd", edges.RHS.Features); err != nil {
			return a.fail(err)
		}
	}
	return nil
}

func (a *edgeAppender) fail(err error) error {
	if a.writeErr == nil {
		a.writeErr = err
	}
	return err
}

// Close finalizes the staged container and uploads it over the shard key,
// then removes the scratch directory. If any append failed the staging
// file is flushed and closed but never uploaded.
func (a *edgeAppender) Close(ctx context.Context) error {
	if a.done {
		return nil
	}
	a.done = true
	defer os.RemoveAll(a.scratchDir)

	if a.writeErr != nil {
		a.writer.Close()
		return a.writeErr
	}

	if err := a.writer.Finalize(); err != nil {
		return err
	}

	f, err := os.Open(a.stagingPath)
	if err != nil {
		return xerrors.Wrap(err, xerrors.ErrorTypeIO, "failed to reopen staged shard")
	}
	defer f.Close()

	if _, err := a.bucket.uploader.Upload(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(a.bucket.name),
		Key:         aws.String(a.key),
		Body:        f,
		ContentType: aws.String("application/octet-stream"),
	}); err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO,
			"failed to publish shard s3://%s/%s", a.bucket.name, a.key)
	}

	metrics.ShardsPublished.WithLabelValues(backendLabel).Inc()
	a.logger.Info("shard published", zap.String("key", a.key))
	return nil
}

// Abort releases the session without publishing and removes the scratch
// directory. It is a no-op after Close.
func (a *edgeAppender) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	err := a.writer.Close()
	os.RemoveAll(a.scratchDir)
	return err
}
