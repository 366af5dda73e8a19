package shardfile

import (
	"encoding/binary"
	"os"

	"go.uber.org/zap"

	"github.com/graphpart/graphpart/pkg/edgelist"
	"github.com/graphpart/graphpart/pkg/logger"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

// Option configures a Writer.
type Option func(*Writer)

// WithBufferSize overrides the per-column buffer capacity. Values below 1
// are ignored.
func WithBufferSize(capacity int) Option {
	return func(w *Writer) {
		if capacity >= 1 {
			w.bufferSize = capacity
		}
	}
}

// Writer builds a shard container at a given path. The format version is
// stamped in the header at creation time, before any column data; the
// column index footer is written by Finalize. A Writer that is closed
// without Finalize leaves a container with no valid trailer, which readers
// reject.
//
// Writers are not safe for concurrent use: one write session owns the
// file.
type Writer struct {
	file       *os.File
	path       string
	fileOffset int64
	columns    map[string]*BufferedColumn
	index      map[string]*columnIndex
	bufferSize int
	finalized  bool
	closed     bool
	logger     *zap.Logger
}

// Create opens a new container file at path. The file must not already
// exist; stale temp files are the caller's to unlink first.
func Create(path string, opts ...Option) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to create shard container %s", path)
	}

	w := &Writer{
		file:       f,
		path:       path,
		columns:    make(map[string]*BufferedColumn),
		index:      make(map[string]*columnIndex),
		bufferSize: DefaultBufferSize,
		logger:     logger.With(zap.String("shard_file", path)),
	}
	for _, opt := range opts {
		opt(w)
	}

	var header [headerSize]byte
	copy(header[:8], magic[:])
	binary.LittleEndian.PutUint64(header[8:], uint64(FormatVersion))
	if _, err := f.Write(header[:]); err != nil {
		f.Close()
		return nil, xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to stamp shard header %s", path)
	}
	w.fileOffset = headerSize

	return w, nil
}

// Column returns the buffered writer for a named column, creating it on
// first use. Creation registers the column in the index immediately, so a
// column that never accumulates a value still appears in the footer with
// zero count and reads back as empty.
func (w *Writer) Column(name string) *BufferedColumn {
	col, ok := w.columns[name]
	if !ok {
		col = newBufferedColumn(w, name, w.bufferSize)
		w.columns[name] = col
		w.indexFor(name)
	}
	return col
}

// indexFor returns the footer index entry for a column, creating it on
// first use.
func (w *Writer) indexFor(name string) *columnIndex {
	idx, ok := w.index[name]
	if !ok {
		idx = &columnIndex{}
		w.index[name] = idx
	}
	return idx
}

// HasColumn reports whether a column has been created in this session.
func (w *Writer) HasColumn(name string) bool {
	_, ok := w.columns[name]
	return ok
}

// AppendRagged appends a ragged list to the pair of columns backing the
// named dynamic feature. The incoming offsets are shifted by the data
// column's running total so they stay contiguous across appends, and the
// redundant leading offset is dropped; the offsets column is seeded with a
// single 0 when first created so its length is always records+1.
func (w *Writer) AppendRagged(name string, list *edgelist.RaggedList) error {
	offsetsName := name + "_offsets"
	dataName := name + "_data"

	if !w.HasColumn(offsetsName) {
		if err := w.Column(offsetsName).Append([]int64{0}); err != nil {
			return err
		}
	}
	dataCol := w.Column(dataName)

	shifted := make([]int64, len(list.Offsets)-1)
	base := list.Offsets[0]
	for i := range shifted {
		shifted[i] = list.Offsets[i+1] - base + dataCol.Total()
	}

	if err := w.Column(offsetsName).Append(shifted); err != nil {
		return err
	}
	return dataCol.Append(list.Data)
}

// appendExtent writes one flushed run at the end of the file and records
// it in the column index.
func (w *Writer) appendExtent(name string, values []int64) error {
	buf := make([]byte, len(values)*8)
	putValues(buf, values)

	if _, err := w.file.WriteAt(buf, w.fileOffset); err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO,
			"failed to write extent of column %q to %s", name, w.path)
	}

	idx := w.indexFor(name)
	idx.Extents = append(idx.Extents, extent{Offset: w.fileOffset, Count: int64(len(values))})
	idx.Count += int64(len(values))
	w.fileOffset += int64(len(buf))
	return nil
}

// Finalize performs the final flush of every column, writes the footer and
// trailer, syncs and closes the file. After a successful Finalize the
// container is complete and ready to publish.
func (w *Writer) Finalize() error {
	if w.finalized {
		return nil
	}
	if w.closed {
		return xerrors.Newf(xerrors.ErrorTypeInternal, "finalize of closed shard writer %s", w.path)
	}

	if err := w.flushAll(); err != nil {
		w.Close()
		return err
	}

	footerBuf, err := encodeFooter(&footer{Columns: w.index})
	if err != nil {
		w.Close()
		return err
	}

	trailer := make([]byte, len(footerBuf)+trailerSize)
	copy(trailer, footerBuf)
	binary.LittleEndian.PutUint64(trailer[len(footerBuf):], uint64(len(footerBuf)))
	copy(trailer[len(footerBuf)+8:], magic[:])

	if _, err := w.file.WriteAt(trailer, w.fileOffset); err != nil {
		w.Close()
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to write shard trailer %s", w.path)
	}
	w.fileOffset += int64(len(trailer))

	if err := w.file.Sync(); err != nil {
		w.Close()
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to sync shard container %s", w.path)
	}

	w.finalized = true
	w.closed = true
	if err := w.file.Close(); err != nil {
		return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "failed to close shard container %s", w.path)
	}

	w.logger.Debug("shard container finalized",
		zap.Int("columns", len(w.index)),
		zap.Int64("bytes", w.fileOffset))
	return nil
}

// flushAll performs the final flush of every open column.
func (w *Writer) flushAll() error {
	for name, col := range w.columns {
		if err := col.flush(true); err != nil {
			return xerrors.Wrapf(err, xerrors.ErrorTypeIO, "final flush of column %q failed", name)
		}
	}
	return nil
}

// Close releases the file without writing a trailer. It still performs the
// final flush so buffered values reach the temp file, but the container
// stays unpublishable. Safe to call after Finalize and more than once.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	flushErr := w.flushAll()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return xerrors.Wrapf(closeErr, xerrors.ErrorTypeIO, "failed to close shard container %s", w.path)
	}
	return nil
}

// Path returns the path the container is being written to.
func (w *Writer) Path() string {
	return w.path
}
