// Package graphpart is a partitioned storage layer for graph embedding
// training pipelines.
//
// Large graphs are trained in pieces: entities are split into partitions,
// and the edge list is sharded into buckets by the partition pair of each
// edge's endpoints. This module persists the three kinds of artifacts such
// a pipeline produces and consumes:
//
//   - per-partition entity metadata (item counts and ordered name lists)
//   - global relation-type metadata (count and names)
//   - edge shards, one per partition pair, holding the lhs, rhs and rel
//     columns plus optional ragged per-edge feature columns
//
// Backends are selected by URL scheme through pkg/storage's registry. The
// filesystem backend (pkg/storage/fs) handles bare paths and file:// URLs;
// the object-store backend (pkg/storage/s3) handles s3:// URLs. Both write
// shards in the container format of pkg/shardfile and publish them
// atomically, so a reader never observes a partially written shard.
//
// See cmd/graphpart for the inspection CLI.
package graphpart
