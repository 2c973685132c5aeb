package storage

import (
	"context"
	"io"

	"github.com/thanos-io/objstore"
)

// BucketReader adapts a single object in a bucket to io.ReaderAt.
// Each ReadAt call issues one range request, gated by the package-level
// read-concurrency limit.
type BucketReader struct {
	name   string
	size   int64
	bucket objstore.Bucket
}

func NewBucketReader(ctx context.Context, bucket objstore.Bucket, name string) (*BucketReader, error) {
	attrs, err := bucket.Attributes(ctx, name)
	if err != nil {
		return nil, err
	}
	return &BucketReader{
		name:   name,
		size:   attrs.Size,
		bucket: bucket,
	}, nil
}

func (r *BucketReader) ReadAt(p []byte, off int64) (n int, err error) {
	release := acquireRead()
	defer release()

	rangeReader, err := r.bucket.GetRange(context.Background(), r.name, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	defer rangeReader.Close()

	return io.ReadFull(rangeReader, p)
}

func (r *BucketReader) Size() int64 {
	return r.size
}

// Section exposes the object as a seekable reader, as required by
// parquet file readers.
func (r *BucketReader) Section() *io.SectionReader {
	return io.NewSectionReader(r, 0, r.size)
}

// ChunkedSection is like Section but splits large reads into parallel
// range requests.
func (r *BucketReader) ChunkedSection() *io.SectionReader {
	return io.NewSectionReader(NewChunkedReader(r, chunkReadSize), 0, r.size)
}
