package storage

import (
	"github.com/graphpart/graphpart/pkg/xerrors"
)

// ChunkRange computes the half-open edge index range of chunk chunkIdx of
// numChunks over numEdges edges:
//
//	begin = floor(chunkIdx * numEdges / numChunks)
//	end   = floor((chunkIdx+1) * numEdges / numChunks)
//
// The multiplication is done in floating point before truncation so chunk
// sizes stay balanced when numEdges is not a multiple of numChunks. The
// chunks for i = 0..numChunks-1 are pairwise disjoint, ordered, and tile
// [0, numEdges) exactly.
func ChunkRange(chunkIdx, numChunks int, numEdges int64) (begin, end int64, err error) {
	if numChunks < 1 {
		return 0, 0, xerrors.Newf(xerrors.ErrorTypeConfig, "num_chunks must be >= 1, got %d", numChunks)
	}
	if chunkIdx < 0 || chunkIdx >= numChunks {
		return 0, 0, xerrors.Newf(xerrors.ErrorTypeConfig,
			"chunk_idx %d out of range [0, %d)", chunkIdx, numChunks)
	}
	if numEdges < 0 {
		return 0, 0, xerrors.Newf(xerrors.ErrorTypeData, "negative edge count %d", numEdges)
	}

	begin = int64(float64(chunkIdx) * float64(numEdges) / float64(numChunks))
	end = int64(float64(chunkIdx+1) * float64(numEdges) / float64(numChunks))
	return begin, end, nil
}
