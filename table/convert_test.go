package table

import (
	"testing"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/require"
)

func TestConvertPrimitiveColumns(t *testing.T) {
	mem := memory.DefaultAllocator

	value, err := ConvertColumn(int64Array(t, mem, 1, 2, 3), true)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, value)

	value, err = ConvertColumn(stringArray(t, mem, "a", "b"), true)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, value)
}

func TestConvertListColumn(t *testing.T) {
	mem := memory.DefaultAllocator

	value, err := ConvertColumn(listArray(t, mem, [][]int64{{1, 2}, {}, {3}}), true)
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1, 2}, {}, {3}}, value)
}

func TestConvertFixedSizeListColumn(t *testing.T) {
	mem := memory.DefaultAllocator

	b := array.NewFixedSizeListBuilder(mem, 2, arrow.PrimitiveTypes.Float32)
	defer b.Release()
	values := b.ValueBuilder().(*array.Float32Builder)
	for i := 0; i < 3; i++ {
		b.Append(true)
		values.AppendValues([]float32{float32(i), float32(i) + 0.5}, nil)
	}

	value, err := ConvertColumn(b.NewArray(), true)
	require.NoError(t, err)
	require.Equal(t, [][]float32{{0, 0.5}, {1, 1.5}, {2, 2.5}}, value)
}

func TestConvertStructColumn(t *testing.T) {
	mem := memory.DefaultAllocator

	structType := arrow.StructOf(
		arrow.Field{Name: "x", Type: arrow.PrimitiveTypes.Int64},
		arrow.Field{Name: "y", Type: arrow.BinaryTypes.String},
	)
	b := array.NewStructBuilder(mem, structType)
	defer b.Release()
	xs := b.FieldBuilder(0).(*array.Int64Builder)
	ys := b.FieldBuilder(1).(*array.StringBuilder)
	for i := 0; i < 2; i++ {
		b.Append(true)
		xs.Append(int64(i))
		ys.Append("v")
	}

	value, err := ConvertColumn(b.NewArray(), true)
	require.NoError(t, err)
	nested, ok := value.(TensorDict)
	require.True(t, ok)
	require.Equal(t, []int64{0, 1}, nested["x"])
	require.Equal(t, []string{"v", "v"}, nested["y"])
}

func TestConvertRejectsNulls(t *testing.T) {
	mem := memory.DefaultAllocator

	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Append(1)
	b.AppendNull()

	_, err := ConvertColumn(b.NewArray(), false)
	require.Error(t, err)
}

func TestToTensorDictLenientPassThrough(t *testing.T) {
	mem := memory.DefaultAllocator

	b := array.NewInt64Builder(mem)
	b.Append(1)
	b.AppendNull()
	col := b.NewArray()
	b.Release()

	tbl, err := New(
		[]arrow.Field{
			{Name: "good", Type: arrow.PrimitiveTypes.Int64},
			{Name: "nullable", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
		},
		[]arrow.Array{int64Array(t, mem, 1, 2), col},
	)
	require.NoError(t, err)

	dict, err := ToTensorDict(tbl, false, log.NewNopLogger())
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, dict["good"])
	// The column with nulls passes through as its original arrow form.
	require.Equal(t, col, dict["nullable"])

	_, err = ToTensorDict(tbl, true, log.NewNopLogger())
	require.Error(t, err)
}

func TestToFrame(t *testing.T) {
	mem := memory.DefaultAllocator

	tbl, err := New(
		[]arrow.Field{
			{Name: "id", Type: arrow.PrimitiveTypes.Int64},
			{Name: "tokens", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
		},
		[]arrow.Array{
			int64Array(t, mem, 1, 2),
			listArray(t, mem, [][]int64{{5}, {6, 7}}),
		},
	)
	require.NoError(t, err)

	frame, err := ToFrame(tbl)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "tokens"}, frame.Columns)
	require.Len(t, frame.Rows, 2)
	require.Equal(t, int64(1), frame.Rows[0][0])
	require.Equal(t, []any{int64(6), int64(7)}, frame.Rows[1][1])
}
