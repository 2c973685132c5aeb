package table

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/pkg/errors"
)

func gather(col arrow.Array, indices []int, mem memory.Allocator) (arrow.Array, error) {
	switch arr := col.(type) {
	case *array.Boolean:
		b := array.NewBooleanBuilder(mem)
		defer b.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.Int32:
		b := array.NewInt32Builder(mem)
		defer b.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.Int64:
		b := array.NewInt64Builder(mem)
		defer b.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.Float32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.Float64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.String:
		b := array.NewStringBuilder(mem)
		defer b.Release()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(arr.Value(i))
			}
		}
		return b.NewArray(), nil
	case *array.List:
		elemType := arr.DataType().(*arrow.ListType).Elem()
		b := array.NewListBuilder(mem, elemType)
		defer b.Release()
		values := arr.ListValues()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(true)
			start, end := arr.ValueOffsets(i)
			if err := appendValueRange(b.ValueBuilder(), values, start, end); err != nil {
				return nil, err
			}
		}
		return b.NewArray(), nil
	case *array.LargeList:
		elemType := arr.DataType().(*arrow.LargeListType).Elem()
		b := array.NewLargeListBuilder(mem, elemType)
		defer b.Release()
		values := arr.ListValues()
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(true)
			start, end := arr.ValueOffsets(i)
			if err := appendValueRange(b.ValueBuilder(), values, start, end); err != nil {
				return nil, err
			}
		}
		return b.NewArray(), nil
	case *array.FixedSizeList:
		listType := arr.DataType().(*arrow.FixedSizeListType)
		b := array.NewFixedSizeListBuilder(mem, listType.Len(), listType.Elem())
		defer b.Release()
		values := arr.ListValues()
		size := int64(listType.Len())
		for _, i := range indices {
			if arr.IsNull(i) {
				b.AppendNull()
				continue
			}
			b.Append(true)
			start := int64(i) * size
			if err := appendValueRange(b.ValueBuilder(), values, start, start+size); err != nil {
				return nil, err
			}
		}
		return b.NewArray(), nil
	default:
		return nil, errors.Errorf("gather is not supported for type %s", col.DataType())
	}
}

func appendValueRange(builder array.Builder, values arrow.Array, start, end int64) error {
	switch vals := values.(type) {
	case *array.Int32:
		b := builder.(*array.Int32Builder)
		for i := start; i < end; i++ {
			if vals.IsNull(int(i)) {
				b.AppendNull()
			} else {
				b.Append(vals.Value(int(i)))
			}
		}
	case *array.Int64:
		b := builder.(*array.Int64Builder)
		for i := start; i < end; i++ {
			if vals.IsNull(int(i)) {
				b.AppendNull()
			} else {
				b.Append(vals.Value(int(i)))
			}
		}
	case *array.Float32:
		b := builder.(*array.Float32Builder)
		for i := start; i < end; i++ {
			if vals.IsNull(int(i)) {
				b.AppendNull()
			} else {
				b.Append(vals.Value(int(i)))
			}
		}
	case *array.Float64:
		b := builder.(*array.Float64Builder)
		for i := start; i < end; i++ {
			if vals.IsNull(int(i)) {
				b.AppendNull()
			} else {
				b.Append(vals.Value(int(i)))
			}
		}
	case *array.String:
		b := builder.(*array.StringBuilder)
		for i := start; i < end; i++ {
			if vals.IsNull(int(i)) {
				b.AppendNull()
			} else {
				b.Append(vals.Value(int(i)))
			}
		}
	default:
		return errors.Errorf("gather is not supported for list elements of type %s", values.DataType())
	}
	return nil
}
