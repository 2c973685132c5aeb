package stream

type shardStream[T any] struct {
	source Stream[T]
	rank   int
	world  int
	pos    int
}

// Shard keeps every world-th element starting at rank. For a fixed input
// sequence the union of all ranks' outputs is the input, with every
// element assigned to exactly one rank.
func Shard[T any](source Stream[T], rank, world int) Stream[T] {
	if world < 1 {
		world = 1
	}
	return &shardStream[T]{source: source, rank: rank % world, world: world}
}

func (s *shardStream[T]) Next() (T, error) {
	for {
		item, err := s.source.Next()
		if err != nil {
			var zero T
			return zero, err
		}
		owned := s.pos%s.world == s.rank
		s.pos++
		if owned {
			return item, nil
		}
	}
}

func (s *shardStream[T]) Close() error {
	return s.source.Close()
}
