package storage

import (
	"io"

	"golang.org/x/sync/errgroup"
)

// chunkReadSize caps a single range request issued by a chunked read.
const chunkReadSize = 16 << 20

// ChunkedReader splits large ReadAt calls into parallel range reads.
// Parquet row group reads routinely span tens of megabytes; issuing them
// as chunked requests keeps each range inside object store limits and
// lets the read-concurrency gate schedule them.
type ChunkedReader struct {
	reader    io.ReaderAt
	chunkSize int
}

func NewChunkedReader(reader io.ReaderAt, chunkSize int) *ChunkedReader {
	if chunkSize <= 0 {
		chunkSize = chunkReadSize
	}
	return &ChunkedReader{reader: reader, chunkSize: chunkSize}
}

func (r *ChunkedReader) ReadAt(p []byte, off int64) (int, error) {
	if len(p) <= r.chunkSize {
		return r.reader.ReadAt(p, off)
	}

	var g errgroup.Group
	for start := 0; start < len(p); start += r.chunkSize {
		end := start + r.chunkSize
		if end > len(p) {
			end = len(p)
		}
		part := p[start:end]
		partOff := off + int64(start)
		g.Go(func() error {
			_, err := r.reader.ReadAt(part, partOff)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(p), nil
}
