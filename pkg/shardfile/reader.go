package shardfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"sort"

	"github.com/graphpart/graphpart/pkg/xerrors"
)

// Reader serves ranged reads over a finalized shard container. It holds
// the decoded column index and issues positional reads against an
// io.ReaderAt, so any backend that can serve byte ranges (a local file, a
// ranged-GET object store) can back it.
//
// A Reader is safe for concurrent use as long as the underlying ReaderAt
// is.
type Reader struct {
	ra      io.ReaderAt
	closer  io.Closer
	size    int64
	version int64
	columns map[string]*columnIndex
}

// Open opens a local shard container file read-only. A missing file is a
// not-found error so callers can report "shard was never produced"
// distinctly from corruption.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, xerrors.Wrapf(err, xerrors.ErrorTypeNotFound, "shard file %s does not exist", path)
		}
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to open shard file %s", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to stat shard file %s", path)
	}
	r, err := NewReader(f, st.Size())
	if err != nil {
		f.Close()
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeFormat, "invalid shard file %s", path)
	}
	r.closer = f
	return r, nil
}

// NewReader opens a shard container over an arbitrary byte-range source of
// known size. It validates the header magic, the trailer magic and the
// format version before returning.
func NewReader(ra io.ReaderAt, size int64) (*Reader, error) {
	if size < headerSize+trailerSize {
		return nil, xerrors.Newf(xerrors.ErrorTypeFormat,
			"container too small to be a shard (%d bytes)", size)
	}

	var header [headerSize]byte
	if _, err := ra.ReadAt(header[:], 0); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "failed to read shard header")
	}
	if !bytes.Equal(header[:8], magic[:]) {
		return nil, xerrors.New(xerrors.ErrorTypeFormat, "bad shard magic")
	}
	version := int64(binary.LittleEndian.Uint64(header[8:]))
	if version != FormatVersion {
		return nil, xerrors.Newf(xerrors.ErrorTypeFormat,
			"unsupported shard format version %d (want %d)", version, FormatVersion)
	}

	var trailer [trailerSize]byte
	if _, err := ra.ReadAt(trailer[:], size-trailerSize); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "failed to read shard trailer")
	}
	if !bytes.Equal(trailer[8:], magic[:]) {
		return nil, xerrors.New(xerrors.ErrorTypeFormat,
			"bad shard trailer magic: container was not finalized")
	}
	footerLen := int64(binary.LittleEndian.Uint64(trailer[:8]))
	if footerLen < 0 || footerLen > size-headerSize-trailerSize {
		return nil, xerrors.Newf(xerrors.ErrorTypeFormat, "implausible shard footer length %d", footerLen)
	}

	footerBuf := make([]byte, footerLen)
	if _, err := ra.ReadAt(footerBuf, size-trailerSize-footerLen); err != nil {
		return nil, xerrors.Wrap(err, xerrors.ErrorTypeIO, "failed to read shard footer")
	}
	f, err := decodeFooter(footerBuf)
	if err != nil {
		return nil, err
	}

	return &Reader{
		ra:      ra,
		size:    size,
		version: version,
		columns: f.Columns,
	}, nil
}

// FormatVersion returns the version stamped in the container header.
func (r *Reader) FormatVersion() int64 {
	return r.version
}

// HasColumn reports whether the container holds the named column.
func (r *Reader) HasColumn(name string) bool {
	_, ok := r.columns[name]
	return ok
}

// Columns returns the names of all columns in the container, sorted.
func (r *Reader) Columns() []string {
	names := make([]string, 0, len(r.columns))
	for name := range r.columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ColumnLen returns the element count of a column, or 0 if absent.
func (r *Reader) ColumnLen(name string) int64 {
	idx, ok := r.columns[name]
	if !ok {
		return 0
	}
	return idx.Count
}

// ReadColumnRange reads elements [begin, end) of the named column. A
// zero-length range returns an empty slice without touching the underlying
// source.
func (r *Reader) ReadColumnRange(name string, begin, end int64) ([]int64, error) {
	idx, ok := r.columns[name]
	if !ok {
		return nil, xerrors.Newf(xerrors.ErrorTypeNotFound, "shard has no column %q", name)
	}
	if begin < 0 || end < begin || end > idx.Count {
		return nil, xerrors.Newf(xerrors.ErrorTypeData,
			"range [%d, %d) out of bounds for column %q of length %d", begin, end, name, idx.Count)
	}
	if begin == end {
		return []int64{}, nil
	}

	dst := make([]int64, end-begin)
	filled := int64(0)

	// Walk extents in order, reading the slice of each one that overlaps
	// the requested element range.
	elemBase := int64(0)
	for _, ext := range idx.Extents {
		extEnd := elemBase + ext.Count
		if extEnd <= begin {
			elemBase = extEnd
			continue
		}
		if elemBase >= end {
			break
		}

		from := begin
		if elemBase > from {
			from = elemBase
		}
		to := end
		if extEnd < to {
			to = extEnd
		}

		buf := make([]byte, (to-from)*8)
		byteOff := ext.Offset + (from-elemBase)*8
		if _, err := r.ra.ReadAt(buf, byteOff); err != nil {
			return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO,
				"failed to read column %q range [%d, %d)", name, from, to)
		}
		getValues(dst[filled:filled+(to-from)], buf)
		filled += to - from
		elemBase = extEnd
	}

	if filled != int64(len(dst)) {
		return nil, xerrors.Newf(xerrors.ErrorTypeData,
			"column %q extents cover only %d of %d requested elements", name, filled, len(dst))
	}
	return dst, nil
}

// Close releases the underlying source if this Reader owns one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
