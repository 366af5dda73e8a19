package shardfile

import (
	"encoding/binary"

	"github.com/goccy/go-json"

	"github.com/graphpart/graphpart/pkg/xerrors"
)

// FormatVersion is the container format version stamped into every shard.
// Readers reject any other value; there is no migration path.
const FormatVersion int64 = 1

// magic identifies a shard container. It appears at offset 0 and again at
// the very end of the file, after the footer length.
var magic = [8]byte{'G', 'P', 'S', 'H', 'A', 'R', 'D', 1}

const (
	headerSize  = 16 // magic + format version
	trailerSize = 16 // footer length + magic
)

// extent is one flushed run of a column: count int64 values starting at a
// byte offset in the container.
type extent struct {
	Offset int64 `json:"offset"`
	Count  int64 `json:"count"`
}

// columnIndex is the footer entry for one column. Extents are in append
// order; Count is the sum of extent counts.
type columnIndex struct {
	Extents []extent `json:"extents"`
	Count   int64    `json:"count"`
}

// footer is the column index written at the tail of a finalized container.
type footer struct {
	Columns map[string]*columnIndex `json:"columns"`
}

func encodeFooter(f *footer) ([]byte, error) {
	buf, err := json.Marshal(f)
	if err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeInternal, "failed to encode shard footer")
	}
	return buf, nil
}

func decodeFooter(buf []byte) (*footer, error) {
	var f footer
	if err := json.Unmarshal(buf, &f); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeFormat, "failed to decode shard footer")
	}
	if f.Columns == nil {
		f.Columns = make(map[string]*columnIndex)
	}
	return &f, nil
}

// putValues encodes a run of int64 values as little-endian bytes.
func putValues(dst []byte, values []int64) {
	for i, v := range values {
		binary.LittleEndian.PutUint64(dst[i*8:], uint64(v))
	}
}

// getValues decodes little-endian bytes into a run of int64 values.
func getValues(dst []int64, src []byte) {
	for i := range dst {
		dst[i] = int64(binary.LittleEndian.Uint64(src[i*8:]))
	}
}
