package dataset

import (
	"context"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet/file"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/thanos-io/objstore"
	"golang.org/x/exp/slices"

	"mlstream/parquet-dataset/storage"
	"mlstream/parquet-dataset/table"
)

const loaderBatchSize = 64 << 10

// RetryPolicy decides which load faults are worth one more attempt after
// the fragment state has been rebuilt.
type RetryPolicy struct {
	Retryable   func(error) bool
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy retries transient storage faults exactly once, with
// no backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Retryable: IsTransient, MaxAttempts: 1}
}

// IsTransient classifies storage faults that a reconstruction retry can
// recover from: network timeouts, reset connections and truncated reads.
func IsTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

// Loader materializes fragments into tables, recovering once from
// transient storage faults by rebuilding the fragment from its
// descriptor and retrying the read.
type Loader struct {
	bucket  objstore.Bucket
	policy  RetryPolicy
	mem     memory.Allocator
	logger  log.Logger
	metrics *Metrics
}

type LoaderOption func(*Loader)

func WithRetryPolicy(policy RetryPolicy) LoaderOption {
	return func(l *Loader) { l.policy = policy }
}

func WithLoaderLogger(logger log.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

func WithLoaderAllocator(mem memory.Allocator) LoaderOption {
	return func(l *Loader) { l.mem = mem }
}

func WithLoaderMetrics(metrics *Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = metrics }
}

func NewLoader(bucket objstore.Bucket, options ...LoaderOption) *Loader {
	loader := &Loader{
		bucket: bucket,
		policy: DefaultRetryPolicy(),
		mem:    memory.DefaultAllocator,
		logger: log.NewNopLogger(),
	}
	for _, option := range options {
		option(loader)
	}
	return loader
}

// Load materializes the requested columns of a fragment, plus its
// partition values and provenance columns. A transient fault triggers
// one reconstruction attempt; the residual failure surfaces as a
// FragmentLoadError. Non-retryable errors propagate immediately.
func (l *Loader) Load(ctx context.Context, fragment *Fragment, columns []string) (*table.Table, error) {
	t, err := l.read(ctx, fragment, columns)
	if err == nil {
		l.metrics.fragmentLoaded()
		return t, nil
	}
	if l.policy.Retryable == nil || !l.policy.Retryable(err) || l.policy.MaxAttempts < 1 {
		return nil, err
	}

	for attempt := 1; attempt <= l.policy.MaxAttempts; attempt++ {
		level.Warn(l.logger).Log("msg", "could not load fragment, rebuilding fragment state", "path", fragment.Path, "attempt", attempt, "err", err)
		l.metrics.loadRetried()
		if l.policy.Backoff > 0 {
			select {
			case <-time.After(l.policy.Backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		rebuilt, rerr := fragment.reconstruct()
		if rerr != nil {
			return nil, rerr
		}
		t, err = l.read(ctx, rebuilt, columns)
		if err == nil {
			l.metrics.fragmentLoaded()
			return t, nil
		}
	}
	return nil, &FragmentLoadError{Path: fragment.Path, Err: err}
}

func (l *Loader) read(ctx context.Context, fragment *Fragment, columns []string) (*table.Table, error) {
	reader, err := storage.NewBucketReader(ctx, l.bucket, fragment.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening fragment %s", fragment.Path)
	}
	pqReader, err := file.NewParquetReader(reader.ChunkedSection())
	if err != nil {
		return nil, errors.Wrapf(err, "reading parquet footer of %s", fragment.Path)
	}
	defer pqReader.Close()

	arrowReader, err := pqarrow.NewFileReader(pqReader, pqarrow.ArrowReadProperties{
		BatchSize: loaderBatchSize,
	}, l.mem)
	if err != nil {
		return nil, err
	}
	schema, err := arrowReader.Schema()
	if err != nil {
		return nil, err
	}

	// Requested columns intersected with the physical schema. Partition
	// columns are appended afterwards.
	indices := make([]int, 0, len(schema.Fields()))
	for i, field := range schema.Fields() {
		if columns == nil || slices.Contains(columns, field.Name) {
			indices = append(indices, i)
		}
	}

	rowGroups := fragment.RowGroups
	if len(rowGroups) == 0 {
		rowGroups = make([]int, pqReader.NumRowGroups())
		for i := range rowGroups {
			rowGroups[i] = i
		}
	}

	arrowTable, err := arrowReader.ReadRowGroups(ctx, indices, rowGroups)
	if err != nil {
		return nil, errors.Wrapf(err, "reading fragment %s", fragment.Path)
	}
	defer arrowTable.Release()

	t, err := table.FromArrow(arrowTable, l.mem)
	if err != nil {
		return nil, err
	}
	return l.decorate(t, fragment, columns), nil
}

// decorate appends partition values missing from the file contents and
// the provenance columns.
func (l *Loader) decorate(t *table.Table, fragment *Fragment, columns []string) *table.Table {
	keys := make([]string, 0, len(fragment.Partition))
	for key := range fragment.Partition {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	for _, key := range keys {
		if t.HasColumn(key) {
			continue
		}
		if columns != nil && !slices.Contains(columns, key) {
			continue
		}
		t = t.AppendConstantString(key, fragment.Partition[key], l.mem)
	}

	batchIndex := 0
	if len(fragment.RowGroups) > 0 {
		batchIndex = fragment.RowGroups[0]
	}
	t = t.AppendConstantInt64(table.BatchIndexColumn, int64(batchIndex), l.mem)
	t = t.AppendConstantInt64(table.FragmentIndexColumn, int64(fragment.Index), l.mem)
	t = t.AppendConstantString(table.SourceFileColumn, fragment.Path, l.mem)
	return t
}
