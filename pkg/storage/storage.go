// Package storage defines the capability sets of the graphpart storage
// layer and the scheme-keyed registries through which backends are
// selected. Backends register themselves by URL scheme; callers resolve a
// URL to a backend without knowing which implementations are linked in.
package storage

import (
	"context"

	"github.com/graphpart/graphpart/pkg/edgelist"
)

// EntityStorage persists per-partition entity metadata: an item count and
// an ordered name list, both keyed by entity-type name and partition
// index. Absent data surfaces as a not-found error (see xerrors.IsNotFound)
// meaning "not yet computed".
type EntityStorage interface {
	// Prepare performs idempotent setup, such as creating the backing
	// directory. Calling it on prepared storage is a no-op.
	Prepare(ctx context.Context) error

	HasCount(ctx context.Context, entityName string, partition int) (bool, error)
	SaveCount(ctx context.Context, entityName string, partition int, count int) error
	LoadCount(ctx context.Context, entityName string, partition int) (int, error)

	HasNames(ctx context.Context, entityName string, partition int) (bool, error)
	SaveNames(ctx context.Context, entityName string, partition int, names []string) error
	LoadNames(ctx context.Context, entityName string, partition int) ([]string, error)
}

// RelationTypeStorage persists relation-type metadata. Relation types are
// global, so unlike EntityStorage nothing is keyed by partition.
type RelationTypeStorage interface {
	Prepare(ctx context.Context) error

	HasCount(ctx context.Context) (bool, error)
	SaveCount(ctx context.Context, count int) error
	LoadCount(ctx context.Context) (int, error)

	HasNames(ctx context.Context) (bool, error)
	SaveNames(ctx context.Context, names []string) error
	LoadNames(ctx context.Context) ([]string, error)
}

// EdgeAppender is a scoped write session over one partition-pair shard.
// The intended shape is
//
//	app, err := storage.SaveEdgesByAppending(ctx, es, lhsP, rhsP)
//	if err != nil { ... }
//	defer app.Abort()
//	if err := app.AppendEdges(ctx, edges); err != nil { ... }
//	return app.Close(ctx)
//
// Close finalizes every column and publishes the shard atomically; Abort
// releases resources without publishing and is a no-op after a successful
// Close, so the deferred call covers every early-exit path. Exactly one
// appender may be open against a given partition pair at a time; that is
// the caller's obligation, not enforced here.
type EdgeAppender interface {
	AppendEdges(ctx context.Context, edges *edgelist.EdgeList) error
	Close(ctx context.Context) error
	Abort() error
}

// EdgeStorage persists edge lists sharded by partition pair. Shards are
// written through scoped appenders, published atomically, and read back
// in disjoint order-preserving chunks. LoadEdges and SaveEdges are
// provided as package-level defaults built on these required operations.
type EdgeStorage interface {
	Prepare(ctx context.Context) error

	// HasEdges is an existence check on the shard, with no content
	// validation.
	HasEdges(ctx context.Context, lhsP, rhsP int) (bool, error)

	// LoadChunkOfEdges reads chunk chunkIdx of numChunks of the shard:
	// the half-open edge index range produced by ChunkRange.
	LoadChunkOfEdges(ctx context.Context, lhsP, rhsP, chunkIdx, numChunks int) (*edgelist.EdgeList, error)

	// SaveEdgesByAppending opens a write session over the shard. Any
	// stale temp state from an earlier failed session is discarded.
	SaveEdgesByAppending(ctx context.Context, lhsP, rhsP int) (EdgeAppender, error)
}

// LoadEdges reads a whole shard as a single chunk.
func LoadEdges(ctx context.Context, es EdgeStorage, lhsP, rhsP int) (*edgelist.EdgeList, error) {
	return es.LoadChunkOfEdges(ctx, lhsP, rhsP, 0, 1)
}

// SaveEdges writes one full edge list to a shard in a single append
// session and publishes it.
func SaveEdges(ctx context.Context, es EdgeStorage, lhsP, rhsP int, edges *edgelist.EdgeList) error {
	app, err := es.SaveEdgesByAppending(ctx, lhsP, rhsP)
	if err != nil {
		return err
	}
	defer app.Abort()
	if err := app.AppendEdges(ctx, edges); err != nil {
		return err
	}
	return app.Close(ctx)
}
