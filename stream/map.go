package stream

import (
	"context"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"
)

type mapStream[A, B any] struct {
	source  Stream[A]
	futures chan chan result[B]

	cancel    context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// Map applies f to each element with up to parallelism concurrent calls.
// Output order always equals input order, regardless of completion order.
func Map[A, B any](source Stream[A], parallelism int, f func(A) (B, error)) Stream[B] {
	if parallelism < 1 {
		parallelism = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &mapStream[A, B]{
		source:  source,
		futures: make(chan chan result[B], parallelism),
		cancel:  cancel,
	}
	go m.dispatch(ctx, parallelism, f)
	return m
}

func (m *mapStream[A, B]) dispatch(ctx context.Context, parallelism int, f func(A) (B, error)) {
	defer close(m.futures)

	var workers errgroup.Group
	workers.SetLimit(parallelism)
	defer workers.Wait() //nolint:errcheck

	for {
		item, err := m.source.Next()
		if err != nil {
			if err != io.EOF {
				future := make(chan result[B], 1)
				future <- result[B]{err: err}
				m.send(ctx, future)
			}
			return
		}

		future := make(chan result[B], 1)
		if !m.send(ctx, future) {
			return
		}
		workers.Go(func() error {
			select {
			case <-ctx.Done():
				future <- result[B]{err: ctx.Err()}
			default:
				value, err := f(item)
				future <- result[B]{value: value, err: err}
			}
			return nil
		})
	}
}

func (m *mapStream[A, B]) send(ctx context.Context, future chan result[B]) bool {
	select {
	case m.futures <- future:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *mapStream[A, B]) Next() (B, error) {
	future, ok := <-m.futures
	if !ok {
		var zero B
		return zero, io.EOF
	}
	r := <-future
	return r.value, r.err
}

func (m *mapStream[A, B]) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		// Unblock the dispatcher and wait for it to exit before closing
		// the source it reads from.
		for future := range m.futures {
			<-future
		}
		m.closeErr = m.source.Close()
	})
	return m.closeErr
}
