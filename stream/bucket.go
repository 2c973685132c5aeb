package stream

import "io"

type bucketStream[T any] struct {
	source Stream[T]
	size   int
}

// Bucket groups consecutive elements into slices of the given size. The
// final bucket may be short.
func Bucket[T any](source Stream[T], size int) Stream[[]T] {
	if size < 1 {
		size = 1
	}
	return &bucketStream[T]{source: source, size: size}
}

func (b *bucketStream[T]) Next() ([]T, error) {
	bucket := make([]T, 0, b.size)
	for len(bucket) < b.size {
		item, err := b.source.Next()
		if err == io.EOF {
			if len(bucket) == 0 {
				return nil, io.EOF
			}
			return bucket, nil
		}
		if err != nil {
			return nil, err
		}
		bucket = append(bucket, item)
	}
	return bucket, nil
}

func (b *bucketStream[T]) Close() error {
	return b.source.Close()
}
