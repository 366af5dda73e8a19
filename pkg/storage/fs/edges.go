package fs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/graphpart/graphpart/pkg/edgelist"
	"github.com/graphpart/graphpart/pkg/logger"
	"github.com/graphpart/graphpart/pkg/metrics"
	"github.com/graphpart/graphpart/pkg/shardfile"
	"github.com/graphpart/graphpart/pkg/storage"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

const backendLabel = "file"

// EdgeStorage is the file-backed edge store: one shard container per
// partition pair under the storage directory.
type EdgeStorage struct {
	path       string
	bufferSize int
	logger     *zap.Logger
}

// EdgeOption configures file-backed edge storage.
type EdgeOption func(*EdgeStorage)

// WithBufferSize overrides the per-column write buffer capacity. Mainly
// useful in tests that want to force flushes on tiny batches.
func WithBufferSize(capacity int) EdgeOption {
	return func(s *EdgeStorage) {
		if capacity >= 1 {
			s.bufferSize = capacity
		}
	}
}

// NewEdgeStorage creates edge storage rooted at the given path or file://
// URL.
func NewEdgeStorage(url string, opts ...EdgeOption) *EdgeStorage {
	s := &EdgeStorage{
		path:       resolvePath(url),
		bufferSize: shardfile.DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logger.With(zap.String("component", "edge_storage"), zap.String("path", s.path))
	return s
}

func (s *EdgeStorage) edgesFile(lhsP, rhsP int) string {
	return filepath.Join(s.path, fmt.Sprintf("edges_%d_%d.shard", lhsP, rhsP))
}

func (s *EdgeStorage) tmpEdgesFile(lhsP, rhsP int) string {
	return filepath.Join(s.path, fmt.Sprintf("edges_%d_%d.tmp.shard", lhsP, rhsP))
}

// Prepare creates the storage directory. It is idempotent.
func (s *EdgeStorage) Prepare(ctx context.Context) error {
	return mkdirAll(s.path)
}

// HasEdges reports whether the shard for a partition pair has been
// published. It checks existence only.
func (s *EdgeStorage) HasEdges(ctx context.Context, lhsP, rhsP int) (bool, error) {
	return fileExists(s.edgesFile(lhsP, rhsP))
}

// SaveEdgesByAppending opens a write session over the partition pair's
// shard. Writes go to a temp file next to the final path; a stale temp
// left by an earlier failed session is unlinked first. The shard only
// becomes visible at the final path when the appender's Close renames the
// temp over it, so readers never observe a partial shard and a crashed
// writer leaves any previously published shard untouched.
func (s *EdgeStorage) SaveEdgesByAppending(ctx context.Context, lhsP, rhsP int) (storage.EdgeAppender, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "append session canceled")
	}

	tmpPath := s.tmpEdgesFile(lhsP, rhsP)
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to remove stale temp shard %s", tmpPath)
	}

	w, err := shardfile.Create(tmpPath, shardfile.WithBufferSize(s.bufferSize))
	if err != nil {
		return nil, err
	}

	return &edgeAppender{
		writer:    w,
		tmpPath:   tmpPath,
		finalPath: s.edgesFile(lhsP, rhsP),
		logger: s.logger.With(
			zap.Int("lhs_partition", lhsP),
			zap.Int("rhs_partition", rhsP)),
	}, nil
}

// LoadChunkOfEdges reads chunk chunkIdx of numChunks of the partition
// pair's shard. The shard must exist and carry the supported format
// version; both failures are fatal to the caller, which is expected to
// have checked HasEdges first.
func (s *EdgeStorage) LoadChunkOfEdges(ctx context.Context, lhsP, rhsP, chunkIdx, numChunks int) (*edgelist.EdgeList, error) {
	if err := ctx.Err(); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "chunk read canceled")
	}
	start := time.Now()

	r, err := shardfile.Open(s.edgesFile(lhsP, rhsP))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	edges, err := storage.ReadShardChunk(r, chunkIdx, numChunks)
	if err != nil {
		return nil, err
	}

	metrics.ChunksRead.WithLabelValues(backendLabel).Inc()
	metrics.EdgesRead.WithLabelValues(backendLabel).Add(float64(edges.Len()))
	metrics.ReadLatency.WithLabelValues(backendLabel).Observe(time.Since(start).Seconds())
	return edges, nil
}

// edgeAppender is the scoped write session over one shard.
type edgeAppender struct {
	writer    *shardfile.Writer
	tmpPath   string
	finalPath string
	logger    *zap.Logger
	writeErr  error
	done      bool
}

// AppendEdges buffers one edge batch into the shard. The three dense
// columns are always written; the dynamic lhsd/rhsd columns only when the
// batch actually carries feature values, so shards without features never
// materialize them.
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

// Close finalizes the write session. On a clean session it flushes every
// column, completes the temp container and renames it over the final path,
// the single atomic step that publishes the shard. If any append failed
// the temp file is flushed and closed but never renamed, so no corrupt
// shard becomes visible; the leftover temp is unlinked by the next
// session.
func (a *edgeAppender) Close(ctx context.Context) error {
	if a.done {
		return nil
	}
	a.done = true

	if a.writeErr != nil {
		a.writer.Close()
		return a.writeErr
	}

	if err := a.writer.Finalize(); err != nil {
		return err
	}
	if err := os.Rename(a.tmpPath, a.finalPath); err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO,
			"failed to publish shard %s", a.finalPath)
	}

	metrics.ShardsPublished.WithLabelValues(backendLabel).Inc()
	a.logger.Info("shard published", zap.String("file", a.finalPath))
	return nil
}

// Abort releases the session without publishing. It is a no-op after
// Close, so a deferred Abort covers every early-exit path.
func (a *edgeAppender) Abort() error {
	if a.done {
		return nil
	}
	a.done = true
	return a.writer.Close()
}
