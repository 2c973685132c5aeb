package stream

import (
	"io"
	"math/rand"
)

type shuffleStream[T any] struct {
	source Stream[T]
	window int
	rng    *rand.Rand

	buffer  []T
	started bool
	drained bool
}

// WindowShuffle yields the source elements in randomized order. With a
// window of 0 the entire stream is buffered and permuted in memory;
// otherwise a buffer of at most window elements is kept and each yielded
// element is drawn at random from it.
func WindowShuffle[T any](source Stream[T], window int, rng *rand.Rand) Stream[T] {
	if window < 0 {
		window = 0
	}
	return &shuffleStream[T]{source: source, window: window, rng: rng}
}

func (s *shuffleStream[T]) Next() (T, error) {
	var zero T
	if !s.started {
		s.started = true
		target := s.window
		if target == 0 {
			target = int(^uint(0) >> 1)
		}
		for len(s.buffer) < target {
			item, err := s.source.Next()
			if err == io.EOF {
				s.drained = true
				break
			}
			if err != nil {
				return zero, err
			}
			s.buffer = append(s.buffer, item)
		}
	}

	if len(s.buffer) == 0 {
		return zero, io.EOF
	}

	j := s.rng.Intn(len(s.buffer))
	item := s.buffer[j]

	if s.drained {
		s.buffer[j] = s.buffer[len(s.buffer)-1]
		s.buffer = s.buffer[:len(s.buffer)-1]
		return item, nil
	}

	next, err := s.source.Next()
	if err == io.EOF {
		s.drained = true
		s.buffer[j] = s.buffer[len(s.buffer)-1]
		s.buffer = s.buffer[:len(s.buffer)-1]
		return item, nil
	}
	if err != nil {
		return zero, err
	}
	s.buffer[j] = next
	return item, nil
}

func (s *shuffleStream[T]) Close() error {
	s.buffer = nil
	return s.source.Close()
}
