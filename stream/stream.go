// Package stream provides pull-based, composable stages for streaming
// pipelines: ordered parallel maps, filters, flat-maps, bucketing,
// bounded prefetch, sharding and windowed shuffling.
package stream

import "io"

// Stream is a pull-based sequence of elements. Next returns io.EOF after
// the last element. Streams are consumed by a single goroutine; Close
// releases any background work, closes the upstream chain and is safe to
// call more than once.
type Stream[T any] interface {
	Next() (T, error)
	Close() error
}

type result[T any] struct {
	value T
	err   error
}

type sliceStream[T any] struct {
	items []T
	pos   int
}

// FromSlice returns a stream over the given elements.
func FromSlice[T any](items []T) Stream[T] {
	return &sliceStream[T]{items: items}
}

func (s *sliceStream[T]) Next() (T, error) {
	if s.pos >= len(s.items) {
		var zero T
		return zero, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

func (s *sliceStream[T]) Close() error { return nil }

// Collect drains a stream into a slice, closing it when done.
func Collect[T any](s Stream[T]) ([]T, error) {
	defer s.Close()

	var items []T
	for {
		item, err := s.Next()
		if err == io.EOF {
			return items, nil
		}
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}
