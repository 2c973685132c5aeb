package table

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/pkg/errors"
)

// Frame is a row-oriented view of a table.
type Frame struct {
	Columns []string
	Rows    [][]any
}

func ToFrame(t *Table) (*Frame, error) {
	frame := &Frame{
		Columns: t.ColumnNames(),
		Rows:    make([][]any, t.NumRows()),
	}
	for i := range frame.Rows {
		frame.Rows[i] = make([]any, t.NumCols())
	}
	for c := 0; c < t.NumCols(); c++ {
		col := t.ColumnAt(c)
		for r := 0; r < t.NumRows(); r++ {
			if col.IsNull(r) {
				continue
			}
			value, err := cellValue(col, r)
			if err != nil {
				return nil, errors.Wrapf(err, "column %s", frame.Columns[c])
			}
			frame.Rows[r][c] = value
		}
	}
	return frame, nil
}

func cellValue(col arrow.Array, row int) (any, error) {
	switch arr := col.(type) {
	case *array.Boolean:
		return arr.Value(row), nil
	case *array.Int32:
		return arr.Value(row), nil
	case *array.Int64:
		return arr.Value(row), nil
	case *array.Float32:
		return arr.Value(row), nil
	case *array.Float64:
		return arr.Value(row), nil
	case *array.String:
		return arr.Value(row), nil
	case *array.List:
		start, end := arr.ValueOffsets(row)
		return sliceCells(arr.ListValues(), start, end)
	case *array.LargeList:
		start, end := arr.ValueOffsets(row)
		return sliceCells(arr.ListValues(), start, end)
	default:
		return nil, errors.Errorf("unsupported cell type %s", col.DataType())
	}
}

func sliceCells(values arrow.Array, start, end int64) ([]any, error) {
	out := make([]any, 0, end-start)
	for i := start; i < end; i++ {
		value, err := cellValue(values, int(i))
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}
