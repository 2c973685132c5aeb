package table

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

// TensorDict maps column names to converted values: typed slices for
// primitive and list columns, nested TensorDicts for struct columns. A
// column that cannot be converted in lenient mode is kept as its original
// arrow array.
type TensorDict map[string]any

// ToTensorDict converts every column of the table. With strict set,
// unconvertible column types fail; otherwise they pass through unchanged.
// Columns holding nulls always fail conversion.
func ToTensorDict(t *Table, strict bool, logger log.Logger) (TensorDict, error) {
	out := make(TensorDict, t.NumCols())
	for i, f := range t.Fields() {
		value, err := ConvertColumn(t.ColumnAt(i), strict)
		if err != nil {
			if strict {
				return nil, errors.Wrapf(err, "converting column %s", f.Name)
			}
			level.Info(logger).Log("msg", "column was not converted", "column", f.Name, "type", f.Type, "err", err)
			out[f.Name] = t.ColumnAt(i)
			continue
		}
		out[f.Name] = value
	}
	return out, nil
}

// ConvertColumn maps one typed column to its native representation. It
// fails on columns containing nulls rather than coercing them.
func ConvertColumn(col arrow.Array, strict bool) (any, error) {
	if col.NullN() != 0 {
		return nil, errors.New("conversion does not support null values")
	}

	switch arr := col.(type) {
	case *array.Boolean:
		out := make([]bool, arr.Len())
		for i := range out {
			out[i] = arr.Value(i)
		}
		return out, nil
	case *array.Int32:
		return append([]int32{}, arr.Int32Values()...), nil
	case *array.Int64:
		return append([]int64{}, arr.Int64Values()...), nil
	case *array.Float32:
		return append([]float32{}, arr.Float32Values()...), nil
	case *array.Float64:
		return append([]float64{}, arr.Float64Values()...), nil
	case *array.String:
		out := make([]string, arr.Len())
		for i := range out {
			out[i] = arr.Value(i)
		}
		return out, nil
	case *array.List:
		return convertListColumn(arr.ListValues(), listOffsets(arr), strict)
	case *array.LargeList:
		return convertListColumn(arr.ListValues(), largeListOffsets(arr), strict)
	case *array.FixedSizeList:
		size := int64(arr.DataType().(*arrow.FixedSizeListType).Len())
		offsets := make([][2]int64, arr.Len())
		for i := range offsets {
			offsets[i] = [2]int64{int64(i) * size, int64(i+1) * size}
		}
		return convertListColumn(arr.ListValues(), offsets, strict)
	case *array.Struct:
		structType := arr.DataType().(*arrow.StructType)
		out := make(TensorDict, arr.NumField())
		for i := 0; i < arr.NumField(); i++ {
			value, err := ConvertColumn(arr.Field(i), strict)
			if err != nil {
				return nil, err
			}
			out[structType.Field(i).Name] = value
		}
		return out, nil
	default:
		if strict {
			return nil, errors.Errorf("type %s cannot be converted", col.DataType())
		}
		return col, nil
	}
}

func listOffsets(arr *array.List) [][2]int64 {
	offsets := make([][2]int64, arr.Len())
	for i := range offsets {
		start, end := arr.ValueOffsets(i)
		offsets[i] = [2]int64{start, end}
	}
	return offsets
}

func largeListOffsets(arr *array.LargeList) [][2]int64 {
	offsets := make([][2]int64, arr.Len())
	for i := range offsets {
		start, end := arr.ValueOffsets(i)
		offsets[i] = [2]int64{start, end}
	}
	return offsets
}

func convertListColumn(values arrow.Array, offsets [][2]int64, strict bool) (any, error) {
	switch vals := values.(type) {
	case *array.Int32:
		return sliceRanges(vals.Int32Values(), offsets), nil
	case *array.Int64:
		return sliceRanges(vals.Int64Values(), offsets), nil
	case *array.Float32:
		return sliceRanges(vals.Float32Values(), offsets), nil
	case *array.Float64:
		return sliceRanges(vals.Float64Values(), offsets), nil
	case *array.String:
		out := make([][]string, len(offsets))
		for i, off := range offsets {
			row := make([]string, 0, off[1]-off[0])
			for j := off[0]; j < off[1]; j++ {
				row = append(row, vals.Value(int(j)))
			}
			out[i] = row
		}
		return out, nil
	default:
		if strict {
			return nil, errors.Errorf("list elements of type %s cannot be converted", values.DataType())
		}
		return values, nil
	}
}

func sliceRanges[T any](values []T, offsets [][2]int64) [][]T {
	out := make([][]T, len(offsets))
	for i, off := range offsets {
		row := make([]T, off[1]-off[0])
		copy(row, values[off[0]:off[1]])
		out[i] = row
	}
	return out
}
