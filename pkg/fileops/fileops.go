// Package fileops splits files into transfer chunks and reassembles them,
// reporting progress as bytes move.
package fileops

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Exported constants.
const (
	// ChunkSize is the largest payload carried by one binary frame (256 KiB).
	ChunkSize = 256 * 1024
)

// Exported variables.
var (
	ErrCopyCancelled = errors.New("copy cancelled")
	ErrSizeExceeded  = errors.New("chunk exceeds declared size")
)

// ChunkSink receives chunks in order. The slice is only valid for the
// duration of the call.
type ChunkSink func(chunk []byte) error

// CopyStats contains timing information about a chunked copy.
type CopyStats struct {
	BytesCopied int64
	Chunks      int
	ReadTime    time.Duration
	WriteTime   time.Duration
}

// ProgressCallback is called during file operations to report progress.
type ProgressCallback func(bytesTransferred int64, totalBytes int64, currentFile string)

// ChunkCount returns how many chunks a file of size bytes is split into.
func ChunkCount(size int64) int {
	if size <= 0 {
		return 0
	}

	return int((size + ChunkSize - 1) / ChunkSize)
}

// SendChunks reads at most totalSize bytes from src and hands them to sink in
// ChunkSize pieces. Every chunk but the last is full. An empty source produces
// no chunks. ReadTime covers reading the source; WriteTime covers the sink,
// including any time it spends waiting for the channel to drain.
//
//nolint:cyclop // read, sink, progress and cancellation in one loop
func SendChunks(
	ctx context.Context,
	src io.Reader,
	totalSize int64,
	name string,
	sink ChunkSink,
	progress ProgressCallback,
) (*CopyStats, error) {
	stats := &CopyStats{}
	limited := io.LimitReader(src, totalSize)
	buf := make([]byte, ChunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("%w: %w", ErrCopyCancelled, err)
		}

		readStart := time.Now()
		nr, err := io.ReadFull(limited, buf)
		stats.ReadTime += time.Since(readStart)

		if nr > 0 {
			writeStart := time.Now()
			sinkErr := sink(buf[:nr])
			stats.WriteTime += time.Since(writeStart)

			if sinkErr != nil {
				return stats, fmt.Errorf("failed to send chunk %d of %s: %w", stats.Chunks, name, sinkErr)
			}

			stats.Chunks++
			stats.BytesCopied += int64(nr)

			if progress != nil {
				progress(stats.BytesCopied, totalSize, name)
			}
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return stats, nil
		}

		if err != nil {
			return stats, fmt.Errorf("failed to read %s: %w", name, err)
		}
	}
}

// ChunkWriter reassembles an inbound file from its chunks.
type ChunkWriter struct {
	dst      io.Writer
	name     string
	total    int64
	stats    CopyStats
	progress ProgressCallback
}

// NewChunkWriter writes chunks of a totalSize-byte file to dst.
func NewChunkWriter(dst io.Writer, totalSize int64, name string, progress ProgressCallback) *ChunkWriter {
	return &ChunkWriter{
		dst:      dst,
		name:     name,
		total:    totalSize,
		progress: progress,
	}
}

// Complete reports whether every declared byte has arrived.
func (w *ChunkWriter) Complete() bool {
	return w.stats.BytesCopied == w.total
}

// Stats returns a copy of the accumulated statistics.
func (w *ChunkWriter) Stats() CopyStats {
	return w.stats
}

// Total is the declared size of the file.
func (w *ChunkWriter) Total() int64 {
	return w.total
}

// WriteChunk appends one chunk and returns the running byte count.
// A chunk that would push the file past its declared size is rejected
// before anything is written.
func (w *ChunkWriter) WriteChunk(chunk []byte) (int64, error) {
	if w.stats.BytesCopied+int64(len(chunk)) > w.total {
		return w.stats.BytesCopied, fmt.Errorf("%w: %s got %d bytes after %d of %d",
			ErrSizeExceeded, w.name, len(chunk), w.stats.BytesCopied, w.total)
	}

	writeStart := time.Now()
	nw, err := w.dst.Write(chunk)
	w.stats.WriteTime += time.Since(writeStart)
	w.stats.BytesCopied += int64(nw)

	if err != nil {
		return w.stats.BytesCopied, fmt.Errorf("failed to write %s: %w", w.name, err)
	}

	if nw != len(chunk) {
		return w.stats.BytesCopied, fmt.Errorf("failed to write %s: %w", w.name, io.ErrShortWrite)
	}

	w.stats.Chunks++

	if w.progress != nil {
		w.progress(w.stats.BytesCopied, w.total, w.name)
	}

	return w.stats.BytesCopied, nil
}

// Written is the number of bytes written so far.
func (w *ChunkWriter) Written() int64 {
	return w.stats.BytesCopied
}
