package shardfile

import (
	"go.uber.org/zap"

	"github.com/graphpart/graphpart/pkg/metrics"
	"github.com/graphpart/graphpart/pkg/xerrors"
)

// DefaultBufferSize is the per-column buffer capacity in int64 elements,
// 1MiB of 8-byte values.
const DefaultBufferSize = 1 << 20 / 8

// BufferedColumn accumulates int64 values for one named column and flushes
// full buffers to the container. Flushed data is never rewritten; each
// flush appends one extent. Only the last flush of a session may carry a
// partial buffer.
type BufferedColumn struct {
	w      *Writer
	name   string
	buffer []int64
	offset int
	total  int64
}

func newBufferedColumn(w *Writer, name string, capacity int) *BufferedColumn {
	return &BufferedColumn{
		w:      w,
		name:   name,
		buffer: make([]int64, capacity),
	}
}

// Append copies values into the buffer, flushing every time the buffer
// fills, until all input is consumed. The loop keeps call depth flat no
// matter how large the input is.
func (c *BufferedColumn) Append(values []int64) error {
	valuesOffset := 0
	for {
		valuesLeft := len(values) - valuesOffset
		bufferLeft := len(c.buffer) - c.offset
		if valuesLeft >= bufferLeft {
			copy(c.buffer[c.offset:], values[valuesOffset:valuesOffset+bufferLeft])
			valuesOffset += bufferLeft
			c.offset += bufferLeft
			if err := c.flush(false); err != nil {
				return err
			}
			continue
		}
		copy(c.buffer[c.offset:], values[valuesOffset:])
		c.offset += valuesLeft
		break
	}
	c.total += int64(len(values))
	return nil
}

// flush writes the buffered values to the container. A partial buffer may
// only be flushed when last is set; anything else is a programming error.
func (c *BufferedColumn) flush(last bool) error {
	if !last {
		if c.offset != len(c.buffer) {
			panic(xerrors.Newf(xerrors.ErrorTypeInternal,
				"partial non-final flush of column %q (%d of %d elements)",
				c.name, c.offset, len(c.buffer)))
		}
	} else if c.offset == 0 {
		return nil
	}

	c.w.logger.Debug("flushing column buffer",
		zap.String("column", c.name),
		zap.Int("elements", c.offset))

	if err := c.w.appendExtent(c.name, c.buffer[:c.offset]); err != nil {
		return err
	}

	kind := "full"
	if last {
		kind = "final"
	}
	metrics.BufferFlushes.WithLabelValues(c.name, kind).Inc()
	metrics.ValuesWritten.WithLabelValues(c.name).Add(float64(c.offset))

	c.offset = 0
	return nil
}

// Total returns the cumulative number of values appended, flushed or not.
// Ragged offset bookkeeping depends on it.
func (c *BufferedColumn) Total() int64 {
	return c.total
}
