package dataset

import (
	"math"
	"math/rand"
	"sort"

	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/pkg/errors"

	"mlstream/parquet-dataset/table"
)

// syntheticLengthBound caps the random lengths used when no length
// column is configured, where bucketing degenerates to row shuffling.
const syntheticLengthBound = 1 << 23

// Bucketer splits one materialized table into batches, ordered by an
// approximate per-row length, under either a fixed row count or a token
// budget.
type Bucketer struct {
	// OrderByLength names the column the length metric derives from.
	// Empty means rows carry no meaningful length.
	OrderByLength string
	// BatchSize caps batches at a fixed row count. Mutually exclusive
	// with MaxTokens.
	BatchSize int
	// MaxTokens caps the approximate padded cost of a batch:
	// max row length times row count.
	MaxTokens int
	// Shuffle perturbs lengths and permutes the batch order.
	Shuffle bool

	rng *rand.Rand
	mem memory.Allocator
}

func NewBucketer(orderByLength string, batchSize, maxTokens int, shuffle bool, seed int64, mem memory.Allocator) *Bucketer {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Bucketer{
		OrderByLength: orderByLength,
		BatchSize:     batchSize,
		MaxTokens:     maxTokens,
		Shuffle:       shuffle,
		rng:           rand.New(rand.NewSource(seed)),
		mem:           mem,
	}
}

// Split partitions the table's rows into batches and materializes each
// batch as its own contiguous table.
func (b *Bucketer) Split(t *table.Table) ([]*table.Table, error) {
	if t.NumRows() == 0 {
		return nil, nil
	}

	lengths, err := b.rowLengths(t)
	if err != nil {
		return nil, err
	}
	order := argsortStable(lengths)

	var batches [][]int
	switch {
	case b.BatchSize > 0:
		for start := 0; start < len(order); start += b.BatchSize {
			end := start + b.BatchSize
			if end > len(order) {
				end = len(order)
			}
			batches = append(batches, order[start:end])
		}
	case b.MaxTokens > 0:
		batches = lengthSplits(lengths, order, b.MaxTokens)
	default:
		return nil, &BatchingConfigError{Reason: "one of batch size or max tokens must be set"}
	}

	if b.Shuffle {
		permuted := make([][]int, len(batches))
		for i, j := range b.rng.Perm(len(batches)) {
			permuted[i] = batches[j]
		}
		batches = permuted
	}

	out := make([]*table.Table, 0, len(batches))
	for _, indices := range batches {
		batch, err := t.Take(indices, b.mem)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, nil
}

// rowLengths computes the per-row length metric. With shuffling on, a
// small perturbation bounded by a low quantile of the distribution keeps
// epochs from reproducing identical orderings while preserving length
// locality. Without a length column the metric is fully synthetic.
func (b *Bucketer) rowLengths(t *table.Table) ([]int, error) {
	numRows := t.NumRows()
	lengths := make([]int, numRows)

	if b.OrderByLength == "" {
		if b.Shuffle {
			for i := range lengths {
				lengths[i] = b.rng.Intn(syntheticLengthBound)
			}
		}
		return lengths, nil
	}

	col, ok := t.Column(b.OrderByLength)
	if !ok {
		return nil, errors.Errorf("length column %q is not in the table", b.OrderByLength)
	}
	lengths, err := table.RowLengths(b.OrderByLength, col)
	if err != nil {
		return nil, err
	}
	if b.Shuffle {
		bound := quantile(lengths, 0.001) + 2
		for i := range lengths {
			lengths[i] += b.rng.Intn(bound)
		}
	}
	return lengths, nil
}

// lengthSplits greedily scans rows sorted by length and closes a batch
// one row short of the index at which the padded cost
// (current length times rows accumulated) would exceed the budget. The
// trailing batch is emitted only when the largest length alone fits the
// budget. Changing either boundary changes total row coverage.
func lengthSplits(lengths []int, order []int, maxTokens int) [][]int {
	var splits [][]int
	ptr := 0
	var length int
	for i, j := range order {
		length = lengths[j]
		if length*(i-ptr) > maxTokens {
			splits = append(splits, order[ptr:i-1])
			ptr = i - 1
		}
	}
	if length <= maxTokens {
		splits = append(splits, order[ptr:])
	}
	return splits
}

func argsortStable(lengths []int) []int {
	order := make([]int, len(lengths))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return lengths[order[a]] < lengths[order[b]]
	})
	return order
}

// quantile computes the q-th quantile with linear interpolation.
func quantile(values []int, q float64) int {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lo)
	return int(float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo]))
}
