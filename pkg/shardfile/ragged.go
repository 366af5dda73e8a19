package shardfile

import (
	"github.com/graphpart/graphpart/pkg/edgelist"
)

// ReadRagged reads records [begin, end) of the named dynamic feature from
// its offsets/data column pair. The returned offsets are normalized to
// start at 0 so the slice is self-contained. A feature that was never
// written yields the empty representation: end-begin+1 zero offsets and no
// data.
func (r *Reader) ReadRagged(name string, begin, end int64) (*edgelist.RaggedList, error) {
	offsetsName := name + "_offsets"
	dataName := name + "_data"
	if !r.HasColumn(offsetsName) || !r.HasColumn(dataName) {
		return edgelist.EmptyRagged(int(end - begin)), nil
	}

	offsets, err := r.ReadColumnRange(offsetsName, begin, end+1)
	if err != nil {
		return nil, err
	}

	dataBegin := offsets[0]
	dataEnd := offsets[len(offsets)-1]
	data, err := r.ReadColumnRange(dataName, dataBegin, dataEnd)
	if err != nil {
		return nil, err
	}

	for i := range offsets {
		offsets[i] -= dataBegin
	}

	return &edgelist.RaggedList{Offsets: offsets, Data: data}, nil
}
