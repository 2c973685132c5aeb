package stream

import (
	"context"
	"io"
	"sync"
)

type prefetchStream[T any] struct {
	source Stream[T]
	buffer chan result[T]

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// Prefetch decouples producer and consumer through a bounded queue: the
// source may run up to depth elements ahead of what has been pulled.
func Prefetch[T any](source Stream[T], depth int) Stream[T] {
	if depth < 0 {
		depth = 0
	}
	p := &prefetchStream[T]{
		source: source,
		buffer: make(chan result[T], depth),
	}
	p.ctx, p.cancel = context.WithCancel(context.Background())
	go p.fill()
	return p
}

func (p *prefetchStream[T]) fill() {
	defer close(p.buffer)
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		value, err := p.source.Next()
		select {
		case p.buffer <- result[T]{value: value, err: err}:
		case <-p.ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *prefetchStream[T]) Next() (T, error) {
	r, ok := <-p.buffer
	if !ok {
		var zero T
		return zero, io.EOF
	}
	return r.value, r.err
}

func (p *prefetchStream[T]) Close() error {
	p.closeOnce.Do(func() {
		p.cancel()
		// Wait for the producer to exit before closing its source.
		for range p.buffer {
		}
		p.closeErr = p.source.Close()
	})
	return p.closeErr
}
