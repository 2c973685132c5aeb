package table

import (
	"fmt"
	"unicode/utf8"

	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
)

// UnsupportedLengthTypeError reports a column whose type carries no row
// length metric.
type UnsupportedLengthTypeError struct {
	Column string
	Type   arrow.DataType
}

func (e *UnsupportedLengthTypeError) Error() string {
	return fmt.Sprintf("cannot compute row lengths for column %q of type %s", e.Column, e.Type)
}

// RowLengths derives a per-row integer length from a column: element count
// for list columns, character count for string columns. Null rows have
// length zero.
func RowLengths(name string, col arrow.Array) ([]int, error) {
	lengths := make([]int, col.Len())
	switch arr := col.(type) {
	case *array.List:
		for i := range lengths {
			if arr.IsNull(i) {
				continue
			}
			start, end := arr.ValueOffsets(i)
			lengths[i] = int(end - start)
		}
	case *array.LargeList:
		for i := range lengths {
			if arr.IsNull(i) {
				continue
			}
			start, end := arr.ValueOffsets(i)
			lengths[i] = int(end - start)
		}
	case *array.FixedSizeList:
		size := int(arr.DataType().(*arrow.FixedSizeListType).Len())
		for i := range lengths {
			if !arr.IsNull(i) {
				lengths[i] = size
			}
		}
	case *array.String:
		for i := range lengths {
			if !arr.IsNull(i) {
				lengths[i] = utf8.RuneCountInString(arr.Value(i))
			}
		}
	default:
		return nil, &UnsupportedLengthTypeError{Column: name, Type: col.DataType()}
	}
	return lengths, nil
}
