package storage

import (
	"github.com/graphpart/graphpart/pkg/edgelist"
	"github.com/graphpart/graphpart/pkg/shardfile"
)

// ReadShardChunk assembles chunk chunkIdx of numChunks from an open shard
// container: the lhs, rhs and rel columns over the chunk's index range,
// plus the lhsd/rhsd dynamic features via the ragged read. Backends that
// store shards in the standard container format share this routine; only
// how they obtain the byte-range source differs.
func ReadShardChunk(r *shardfile.Reader, chunkIdx, numChunks int) (*edgelist.EdgeList, error) {
	numEdges := r.ColumnLen("rel")
	begin, end, err := ChunkRange(chunkIdx, numChunks, numEdges)
	if err != nil {
		return nil, err
	}

	lhs, err := r.ReadColumnRange("lhs", begin, end)
	if err != nil {
		return nil, err
	}
	rhs, err := r.ReadColumnRange("rhs", begin, end)
	if err != nil {
		return nil, err
	}
	rel, err := r.ReadColumnRange("rel", begin, end)
	if err != nil {
		return nil, err
	}

	lhsd, err := r.ReadRagged("lhsd", begin, end)
	if err != nil {
		return nil, err
	}
	rhsd, err := r.ReadRagged("rhsd", begin, end)
	if err != nil {
		return nil, err
	}

	return &edgelist.EdgeList{
		LHS: edgelist.EntityList{IDs: lhs, Features: lhsd},
		RHS: edgelist.EntityList{IDs: rhs, Features: rhsd},
		Rel: rel,
	}, nil
}
