// Package pqtest writes small partitioned parquet datasets for tests.
package pqtest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/apache/arrow/go/v10/parquet"
	"github.com/apache/arrow/go/v10/parquet/pqarrow"
	"github.com/stretchr/testify/require"
)

// Row is one record of the fixture schema: an id, a text value and a
// token sequence.
type Row struct {
	ID     int64
	Text   string
	Tokens []int64
}

func Schema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{
		{Name: "id", Type: arrow.PrimitiveTypes.Int64},
		{Name: "text", Type: arrow.BinaryTypes.String},
		{Name: "tokens", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
	}, nil)
}

// WriteFile writes one parquet file under dir, one row group per group
// of rows. The name may contain partition directories (lang=en/...).
func WriteFile(t testing.TB, dir, name string, groups [][]Row) {
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o777))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	writer, err := pqarrow.NewFileWriter(Schema(), f, parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	require.NoError(t, err)

	for _, group := range groups {
		record := buildRecord(group)
		require.NoError(t, writer.Write(record))
		record.Release()
	}
	require.NoError(t, writer.Close())
}

func buildRecord(rows []Row) arrow.Record {
	mem := memory.DefaultAllocator

	ids := array.NewInt64Builder(mem)
	defer ids.Release()
	texts := array.NewStringBuilder(mem)
	defer texts.Release()
	tokens := array.NewListBuilder(mem, arrow.PrimitiveTypes.Int64)
	defer tokens.Release()

	values := tokens.ValueBuilder().(*array.Int64Builder)
	for _, row := range rows {
		ids.Append(row.ID)
		texts.Append(row.Text)
		tokens.Append(true)
		for _, token := range row.Tokens {
			values.Append(token)
		}
	}

	cols := []arrow.Array{ids.NewArray(), texts.NewArray(), tokens.NewArray()}
	return array.NewRecord(Schema(), cols, int64(len(rows)))
}

// RowsWithTokenLengths creates one row per requested token count. The
// text value repeats "x" to the same length so either column can serve
// as the length column.
func RowsWithTokenLengths(lengths ...int) []Row {
	rows := make([]Row, 0, len(lengths))
	for i, length := range lengths {
		tokens := make([]int64, length)
		for j := range tokens {
			tokens[j] = int64(j)
		}
		rows = append(rows, Row{
			ID:     int64(i),
			Text:   strings.Repeat("x", length),
			Tokens: tokens,
		})
	}
	return rows
}
