package stream

import (
	"math/rand"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMapPreservesOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	// Random delays so completion order differs from input order.
	rng := rand.New(rand.NewSource(1))
	delays := make([]time.Duration, len(items))
	for i := range delays {
		delays[i] = time.Duration(rng.Intn(5)) * time.Millisecond
	}

	s := Map(FromSlice(items), 8, func(i int) (int, error) {
		time.Sleep(delays[i])
		return i * 2, nil
	})

	out, err := Collect(s)
	require.NoError(t, err)
	require.Len(t, out, len(items))
	for i, v := range out {
		require.Equal(t, i*2, v)
	}
}

func TestMapPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := Map(FromSlice([]int{1, 2, 3}), 2, func(i int) (int, error) {
		if i == 2 {
			return 0, boom
		}
		return i, nil
	})
	defer s.Close()

	_, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	require.ErrorIs(t, err, boom)
}

func TestMapCloseStopsWorkers(t *testing.T) {
	s := Map(FromSlice(make([]int, 1000)), 4, func(int) (int, error) {
		time.Sleep(time.Millisecond)
		return 0, nil
	})

	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestFilter(t *testing.T) {
	s := Filter(FromSlice([]int{1, 2, 3, 4, 5, 6}), func(i int) bool {
		return i%2 == 0
	})
	out, err := Collect(s)
	require.NoError(t, err)
	require.Equal(t, []int{2, 4, 6}, out)
}

func TestFlatMapConsumesInOrder(t *testing.T) {
	s := FlatMap(FromSlice([]int{1, 2, 3}), func(i int) (Stream[int], error) {
		expanded := make([]int, i)
		for j := range expanded {
			expanded[j] = i
		}
		return FromSlice(expanded), nil
	})
	out, err := Collect(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 2, 3, 3, 3}, out)
}

func TestFlatMapEmptyExpansion(t *testing.T) {
	s := FlatMap(FromSlice([]int{1, 2, 3}), func(i int) (Stream[int], error) {
		if i == 2 {
			return FromSlice[int](nil), nil
		}
		return FromSlice([]int{i}), nil
	})
	out, err := Collect(s)
	require.NoError(t, err)
	require.Equal(t, []int{1, 3}, out)
}

func TestBucket(t *testing.T) {
	s := Bucket(FromSlice([]int{1, 2, 3, 4, 5}), 2)
	out, err := Collect(s)
	require.NoError(t, err)
	require.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, out)
}

func TestPrefetch(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	s := Prefetch(FromSlice(items), 3)
	out, err := Collect(s)
	require.NoError(t, err)
	require.Equal(t, items, out)
}

func TestPrefetchCloseUnblocksProducer(t *testing.T) {
	slow := &slowStream{delay: 50 * time.Millisecond}
	s := Prefetch[int](slow, 0)

	_, err := s.Next()
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.True(t, slow.closed)
}

func TestShardCompleteness(t *testing.T) {
	items := make([]int, 43)
	for i := range items {
		items[i] = i
	}

	world := 4
	var union []int
	counts := make([]int, world)
	for rank := 0; rank < world; rank++ {
		out, err := Collect(Shard(FromSlice(items), rank, world))
		require.NoError(t, err)
		counts[rank] = len(out)
		union = append(union, out...)
	}

	require.Len(t, union, len(items))
	seen := make(map[int]bool, len(items))
	for _, v := range union {
		require.False(t, seen[v], "element %d assigned to more than one rank", v)
		seen[v] = true
	}
	require.Equal(t, 11, counts[0])
	require.Equal(t, 11, counts[1])
	require.Equal(t, 11, counts[2])
	require.Equal(t, 10, counts[3])
}

func TestWindowShuffleFullPermutation(t *testing.T) {
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	first, err := Collect(WindowShuffle(FromSlice(items), 0, rand.New(rand.NewSource(7))))
	require.NoError(t, err)
	second, err := Collect(WindowShuffle(FromSlice(items), 0, rand.New(rand.NewSource(7))))
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.ElementsMatch(t, items, first)
	require.NotEqual(t, items, first)
}

func TestWindowShuffleBoundedWindow(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	out, err := Collect(WindowShuffle(FromSlice(items), 5, rand.New(rand.NewSource(3))))
	require.NoError(t, err)
	require.ElementsMatch(t, items, out)

	// An element can move at most window positions ahead of its source slot.
	for pos, v := range out {
		require.LessOrEqual(t, v, pos+5)
	}
}

type slowStream struct {
	delay  time.Duration
	closed bool
}

func (s *slowStream) Next() (int, error) {
	time.Sleep(s.delay)
	return 0, nil
}

func (s *slowStream) Close() error {
	s.closed = true
	return nil
}
