package stream

import "io"

type flatMapStream[A, B any] struct {
	source  Stream[A]
	expand  func(A) (Stream[B], error)
	current Stream[B]
}

// FlatMap expands each element into a sub-stream whose elements are
// consumed in order before the next element is pulled.
func FlatMap[A, B any](source Stream[A], expand func(A) (Stream[B], error)) Stream[B] {
	return &flatMapStream[A, B]{source: source, expand: expand}
}

func (f *flatMapStream[A, B]) Next() (B, error) {
	var zero B
	for {
		if f.current != nil {
			item, err := f.current.Next()
			if err == nil {
				return item, nil
			}
			if err != io.EOF {
				return zero, err
			}
			if err := f.current.Close(); err != nil {
				return zero, err
			}
			f.current = nil
		}

		item, err := f.source.Next()
		if err != nil {
			return zero, err
		}
		if f.current, err = f.expand(item); err != nil {
			return zero, err
		}
	}
}

func (f *flatMapStream[A, B]) Close() error {
	if f.current != nil {
		f.current.Close()
		f.current = nil
	}
	return f.source.Close()
}
