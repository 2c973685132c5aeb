package dataset

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/providers/filesystem"

	"mlstream/parquet-dataset/pqtest"
	"mlstream/parquet-dataset/table"
)

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	pqtest.WriteFile(t, dir, "lang=en/part-0.parquet", [][]pqtest.Row{
		pqtest.RowsWithTokenLengths(1, 2),
		pqtest.RowsWithTokenLengths(3),
	})

	bucket, err := filesystem.NewBucket(dir)
	require.NoError(t, err)
	fragments, err := NewCatalog(bucket, nil).List(context.Background(), "", nil, nil)
	require.NoError(t, err)

	loaded, err := NewLoader(bucket).Load(context.Background(), fragments[0], nil)
	require.NoError(t, err)
	require.Equal(t, 3, loaded.NumRows())
	require.Equal(t, []string{
		"id", "text", "tokens",
		"lang",
		table.BatchIndexColumn, table.FragmentIndexColumn, table.SourceFileColumn,
	}, loaded.ColumnNames())

	lang, ok := loaded.Column("lang")
	require.True(t, ok)
	require.Equal(t, "en", lang.(*array.String).Value(2))
	source, ok := loaded.Column(table.SourceFileColumn)
	require.True(t, ok)
	require.Equal(t, "lang=en/part-0.parquet", source.(*array.String).Value(0))
}

func TestLoaderColumnSubset(t *testing.T) {
	dir := t.TempDir()
	pqtest.WriteFile(t, dir, "lang=en/part-0.parquet", [][]pqtest.Row{
		pqtest.RowsWithTokenLengths(1, 2),
	})

	bucket, err := filesystem.NewBucket(dir)
	require.NoError(t, err)
	fragments, err := NewCatalog(bucket, nil).List(context.Background(), "", nil, nil)
	require.NoError(t, err)

	loaded, err := NewLoader(bucket).Load(context.Background(), fragments[0], []string{"id", "lang"})
	require.NoError(t, err)
	require.Equal(t, []string{
		"id", "lang",
		table.BatchIndexColumn, table.FragmentIndexColumn, table.SourceFileColumn,
	}, loaded.ColumnNames())
}

func TestLoaderRowGroupScope(t *testing.T) {
	dir := t.TempDir()
	pqtest.WriteFile(t, dir, "part-0.parquet", [][]pqtest.Row{
		pqtest.RowsWithTokenLengths(1, 2),
		pqtest.RowsWithTokenLengths(3, 4, 5),
	})

	bucket, err := filesystem.NewBucket(dir)
	require.NoError(t, err)
	catalog := NewCatalog(bucket, nil)
	fragments, err := catalog.List(context.Background(), "", nil, nil)
	require.NoError(t, err)
	split, err := catalog.SplitToRowGroups(context.Background(), fragments[0])
	require.NoError(t, err)

	loaded, err := NewLoader(bucket).Load(context.Background(), split[1], nil)
	require.NoError(t, err)
	require.Equal(t, 3, loaded.NumRows())

	batchIndex, ok := loaded.Column(table.BatchIndexColumn)
	require.True(t, ok)
	require.Equal(t, int64(1), batchIndex.(*array.Int64).Value(0))
}

func TestLoaderRetriesTransientFault(t *testing.T) {
	dir := t.TempDir()
	pqtest.WriteFile(t, dir, "part-0.parquet", [][]pqtest.Row{
		pqtest.RowsWithTokenLengths(1, 2, 3),
	})

	bucket, err := filesystem.NewBucket(dir)
	require.NoError(t, err)
	fragments, err := NewCatalog(bucket, nil).List(context.Background(), "", nil, nil)
	require.NoError(t, err)

	flaky := &flakyBucket{Bucket: bucket, failures: 1, err: errors.Wrap(io.ErrUnexpectedEOF, "read part-0.parquet")}
	loaded, err := NewLoader(flaky).Load(context.Background(), fragments[0], nil)
	require.NoError(t, err)
	require.Equal(t, 3, loaded.NumRows())
	require.Equal(t, 2, flaky.attempts)
}

func TestLoaderNonRetryableFault(t *testing.T) {
	dir := t.TempDir()
	pqtest.WriteFile(t, dir, "part-0.parquet", [][]pqtest.Row{
		pqtest.RowsWithTokenLengths(1),
	})

	bucket, err := filesystem.NewBucket(dir)
	require.NoError(t, err)
	fragments, err := NewCatalog(bucket, nil).List(context.Background(), "", nil, nil)
	require.NoError(t, err)

	denied := errors.New("permission denied")
	flaky := &flakyBucket{Bucket: bucket, failures: 1, err: denied}
	_, err = NewLoader(flaky).Load(context.Background(), fragments[0], nil)
	require.ErrorIs(t, err, denied)
	require.Equal(t, 1, flaky.attempts)

	var loadErr *FragmentLoadError
	require.False(t, errors.As(err, &loadErr))
}

func TestLoaderExhaustedRetries(t *testing.T) {
	dir := t.TempDir()
	pqtest.WriteFile(t, dir, "part-0.parquet", [][]pqtest.Row{
		pqtest.RowsWithTokenLengths(1),
	})

	bucket, err := filesystem.NewBucket(dir)
	require.NoError(t, err)
	fragments, err := NewCatalog(bucket, nil).List(context.Background(), "", nil, nil)
	require.NoError(t, err)

	flaky := &flakyBucket{Bucket: bucket, failures: 10, err: io.ErrUnexpectedEOF}
	_, err = NewLoader(flaky).Load(context.Background(), fragments[0], nil)

	var loadErr *FragmentLoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "part-0.parquet", loadErr.Path)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, 2, flaky.attempts)
}

func TestIsTransient(t *testing.T) {
	require.True(t, IsTransient(io.ErrUnexpectedEOF))
	require.True(t, IsTransient(errors.Wrap(io.ErrUnexpectedEOF, "read")))
	require.False(t, IsTransient(errors.New("permission denied")))
	require.False(t, IsTransient(io.EOF))
}

// flakyBucket fails the first opens of an object, then delegates.
type flakyBucket struct {
	objstore.Bucket

	mu       sync.Mutex
	failures int
	err      error
	attempts int
}

func (b *flakyBucket) Attributes(ctx context.Context, name string) (objstore.ObjectAttributes, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.attempts++
	if b.failures > 0 {
		b.failures--
		return objstore.ObjectAttributes{}, b.err
	}
	return b.Bucket.Attributes(ctx, name)
}
