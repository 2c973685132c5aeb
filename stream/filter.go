package stream

type filterStream[T any] struct {
	source Stream[T]
	keep   func(T) bool
}

// Filter yields only the elements for which keep returns true.
func Filter[T any](source Stream[T], keep func(T) bool) Stream[T] {
	return &filterStream[T]{source: source, keep: keep}
}

func (f *filterStream[T]) Next() (T, error) {
	for {
		item, err := f.source.Next()
		if err != nil {
			var zero T
			return zero, err
		}
		if f.keep(item) {
			return item, nil
		}
	}
}

func (f *filterStream[T]) Close() error {
	return f.source.Close()
}
