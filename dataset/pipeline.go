package dataset

import (
	"context"
	"math/rand"
	"sync"

	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/thanos-io/objstore"

	"mlstream/parquet-dataset/storage"
	"mlstream/parquet-dataset/stream"
	"mlstream/parquet-dataset/table"
)

// maxSmallBatchWarnings bounds how many undersized-batch warnings one
// iteration logs before suppressing the rest.
const maxSmallBatchWarnings = 4

// Output is the tagged result of one pipeline step: exactly one of the
// payload fields is set, according to Format.
type Output struct {
	Format  OutputFormat
	Table   *table.Table
	Frame   *table.Frame
	Tensors table.TensorDict

	// Rows in this batch.
	Rows int
}

// Pipeline is a build-once, iterate-many stream definition over a
// partitioned parquet dataset. Fragments are listed once at
// construction; every iteration re-derives their order from the seed.
type Pipeline struct {
	config    Config
	seed      int64
	fragments []*Fragment

	catalog       *Catalog
	loader        *Loader
	loaderOptions []LoaderOption
	logger        log.Logger
	metrics       *Metrics
	mem           memory.Allocator
}

type PipelineOption func(*Pipeline)

func WithLogger(logger log.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = logger }
}

func WithMetrics(metrics *Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = metrics }
}

func WithAllocator(mem memory.Allocator) PipelineOption {
	return func(p *Pipeline) { p.mem = mem }
}

func WithPipelineRetryPolicy(policy RetryPolicy) PipelineOption {
	return func(p *Pipeline) { p.loaderOptions = append(p.loaderOptions, WithRetryPolicy(policy)) }
}

// NewPipeline validates the configuration and lists the dataset's
// fragments. Configuration and schema errors fail here, before any
// fragment data is read.
func NewPipeline(ctx context.Context, bucket objstore.Bucket, config Config, options ...PipelineOption) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	p := &Pipeline{
		config: config,
		logger: log.NewNopLogger(),
		mem:    memory.DefaultAllocator,
	}
	for _, option := range options {
		option(p)
	}

	if config.Seed != nil {
		p.seed = *config.Seed
	} else {
		p.seed = rand.Int63()
	}

	p.catalog = NewCatalog(bucket, p.logger)
	p.loader = NewLoader(bucket, append([]LoaderOption{
		WithLoaderLogger(p.logger),
		WithLoaderAllocator(p.mem),
		WithLoaderMetrics(p.metrics),
	}, p.loaderOptions...)...)

	fragments, err := p.catalog.List(ctx, config.Path, config.Filters, config.Columns)
	if err != nil {
		return nil, err
	}
	p.fragments = fragments
	return p, nil
}

// Iter starts one pass over the pipeline. The storage read-concurrency
// limit is raised to the pipeline's parallelism for the duration of the
// iteration and restored when the iterator is closed.
func (p *Pipeline) Iter(ctx context.Context) *Iterator {
	restore := storage.SetReadConcurrency(p.config.Parallelism)

	fragments := p.coarseOrder()
	var frags stream.Stream[*Fragment] = stream.FromSlice(fragments)

	if p.config.SplitToRowGroups {
		frags = stream.FlatMap(frags, func(f *Fragment) (stream.Stream[*Fragment], error) {
			split, err := p.catalog.SplitToRowGroups(ctx, f)
			if err != nil {
				return nil, err
			}
			return stream.FromSlice(split), nil
		})
		if p.config.Shuffle {
			rng := rand.New(rand.NewSource(p.seed + 1))
			frags = stream.WindowShuffle(frags, p.config.ShuffleWindow, rng)
		}
	}

	frags = stream.Shard(frags, p.config.Rank, p.config.WorldSize)

	loaded := stream.Map(frags, p.config.Parallelism, func(f *Fragment) (*table.Table, error) {
		return p.loader.Load(ctx, f, p.columnsWithLength())
	})
	filtered := stream.Map(loaded, 1, p.applyFilters)
	aggregated := stream.Prefetch(stream.Bucket(filtered, p.config.ConcatFragments), p.config.PrefetchDepth)
	concatenated := stream.Map(aggregated, 1, func(tables []*table.Table) (*table.Table, error) {
		return table.Concat(tables, p.mem)
	})

	batches := stream.FlatMap(concatenated, func(t *table.Table) (stream.Stream[*table.Table], error) {
		bucketer := NewBucketer(p.config.OrderByLength, p.config.BatchSize, p.config.MaxTokens, p.config.Shuffle, p.seed, p.mem)
		split, err := bucketer.Split(t)
		if err != nil {
			return nil, err
		}
		return stream.FromSlice(split), nil
	})

	var smallBatchWarnings int
	sized := stream.Filter(batches, func(t *table.Table) bool {
		if t.NumRows() >= p.config.MinBatchSize {
			return true
		}
		p.metrics.batchDropped()
		if smallBatchWarnings < maxSmallBatchWarnings {
			smallBatchWarnings++
			level.Warn(p.logger).Log("msg", "dropping batch below minimum size", "rows", t.NumRows(), "min", p.config.MinBatchSize)
		}
		return false
	})

	outputs := stream.Prefetch(stream.Map(sized, 1, p.convert), p.config.PrefetchDepth)
	return &Iterator{
		stream:  outputs,
		restore: restore,
		metrics: p.metrics,
	}
}

// coarseOrder derives this pass's fragment order from the seed: one
// independent permutation per epoch when shuffling, plain repetition
// otherwise.
func (p *Pipeline) coarseOrder() []*Fragment {
	if !p.config.Shuffle {
		return RepeatEpochs(p.fragments, p.config.Epochs)
	}
	rng := rand.New(rand.NewSource(p.seed))
	return EpochPermutations(p.fragments, p.config.Epochs, rng)
}

// columnsWithLength is the configured allow-list extended with the
// length column, which the bucketer needs even when not requested.
func (p *Pipeline) columnsWithLength() []string {
	if len(p.config.Columns) == 0 {
		return nil
	}
	for _, col := range p.config.Columns {
		if col == p.config.OrderByLength {
			return p.config.Columns
		}
	}
	if p.config.OrderByLength == "" {
		return p.config.Columns
	}
	return append(append([]string{}, p.config.Columns...), p.config.OrderByLength)
}

func (p *Pipeline) applyFilters(t *table.Table) (*table.Table, error) {
	var err error
	if p.config.DropNull {
		if t, err = t.DropNull(p.mem); err != nil {
			return nil, err
		}
	}
	for _, filter := range p.config.Filters {
		if !t.HasColumn(filter.Column) {
			continue
		}
		if t, err = t.FilterEqual(filter.Column, filter.Value, p.mem); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (p *Pipeline) convert(t *table.Table) (Output, error) {
	out := Output{Format: p.config.Format, Rows: t.NumRows()}
	switch p.config.Format {
	case FormatFrame:
		frame, err := table.ToFrame(t)
		if err != nil {
			return Output{}, err
		}
		out.Frame = frame
	case FormatTensors:
		tensors, err := table.ToTensorDict(t, false, p.logger)
		if err != nil {
			return Output{}, err
		}
		out.Tensors = tensors
	default:
		out.Table = t
	}
	return out, nil
}

// Iterator is one pass over the pipeline. It must be closed to stop
// in-flight work and restore the storage concurrency limit; closing
// happens automatically once the stream ends or fails.
type Iterator struct {
	stream  stream.Stream[Output]
	restore func()
	metrics *Metrics

	closeOnce sync.Once
	closeErr  error
}

func (it *Iterator) Next() (Output, error) {
	out, err := it.stream.Next()
	if err != nil {
		it.Close()
		return Output{}, err
	}
	it.metrics.batchEmitted(out.Rows)
	return out, nil
}

func (it *Iterator) Close() error {
	it.closeOnce.Do(func() {
		it.closeErr = it.stream.Close()
		it.restore()
	})
	return it.closeErr
}
