package storage

import (
	"bytes"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type countingReaderAt struct {
	data  []byte
	reads int64
}

func (r *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	atomic.AddInt64(&r.reads, 1)
	return bytes.NewReader(r.data).ReadAt(p, off)
}

func TestChunkedReadAt(t *testing.T) {
	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i)
	}
	source := &countingReaderAt{data: data}
	reader := NewChunkedReader(source, 8)

	p := make([]byte, 30)
	n, err := reader.ReadAt(p, 10)
	require.NoError(t, err)
	require.Equal(t, 30, n)
	require.Equal(t, data[10:40], p)
	require.Equal(t, int64(4), atomic.LoadInt64(&source.reads))

	// Reads within the chunk size pass through as one request.
	p = make([]byte, 8)
	_, err = reader.ReadAt(p, 0)
	require.NoError(t, err)
	require.Equal(t, int64(5), atomic.LoadInt64(&source.reads))
}
