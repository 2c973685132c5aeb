package table

import (
	"github.com/apache/arrow/go/v10/arrow"
	"github.com/apache/arrow/go/v10/arrow/array"
	"github.com/apache/arrow/go/v10/arrow/memory"
	"github.com/pkg/errors"
)

// Names of the synthetic columns recording where each row came from.
const (
	BatchIndexColumn    = "__batch_index"
	FragmentIndexColumn = "__fragment_index"
	SourceFileColumn    = "__source_file"
)

// Table is an in-memory columnar batch: an ordered set of named columns,
// each an arrow array of the same length. Tables are immutable; every
// operation returns a new Table.
type Table struct {
	fields []arrow.Field
	cols   []arrow.Array
	rows   int
}

func New(fields []arrow.Field, cols []arrow.Array) (*Table, error) {
	if len(fields) != len(cols) {
		return nil, errors.Errorf("table: %d fields for %d columns", len(fields), len(cols))
	}
	rows := 0
	if len(cols) > 0 {
		rows = cols[0].Len()
	}
	for i, col := range cols {
		if col.Len() != rows {
			return nil, errors.Errorf("table: column %s has %d rows, want %d", fields[i].Name, col.Len(), rows)
		}
	}
	return &Table{fields: fields, cols: cols, rows: rows}, nil
}

// FromArrow flattens a (possibly chunked) arrow table into a single
// contiguous Table.
func FromArrow(at arrow.Table, mem memory.Allocator) (*Table, error) {
	fields := make([]arrow.Field, at.NumCols())
	cols := make([]arrow.Array, at.NumCols())
	for i := 0; i < int(at.NumCols()); i++ {
		fields[i] = at.Schema().Field(i)
		chunks := at.Column(i).Data().Chunks()
		switch len(chunks) {
		case 0:
			cols[i] = array.MakeArrayOfNull(mem, fields[i].Type, 0)
		case 1:
			chunks[0].Retain()
			cols[i] = chunks[0]
		default:
			combined, err := array.Concatenate(chunks, mem)
			if err != nil {
				return nil, errors.Wrap(err, "combining column chunks")
			}
			cols[i] = combined
		}
	}
	return New(fields, cols)
}

func (t *Table) NumRows() int          { return t.rows }
func (t *Table) NumCols() int          { return len(t.cols) }
func (t *Table) Fields() []arrow.Field { return t.fields }

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.fields))
	for i, f := range t.fields {
		names[i] = f.Name
	}
	return names
}

func (t *Table) Column(name string) (arrow.Array, bool) {
	for i, f := range t.fields {
		if f.Name == name {
			return t.cols[i], true
		}
	}
	return nil, false
}

func (t *Table) ColumnAt(i int) arrow.Array { return t.cols[i] }

func (t *Table) HasColumn(name string) bool {
	_, ok := t.Column(name)
	return ok
}

// AppendConstantString returns a table with one extra string column
// holding the same value in every row.
func (t *Table) AppendConstantString(name, value string, mem memory.Allocator) *Table {
	b := array.NewStringBuilder(mem)
	defer b.Release()
	for i := 0; i < t.rows; i++ {
		b.Append(value)
	}
	return t.withColumn(arrow.Field{Name: name, Type: arrow.BinaryTypes.String}, b.NewArray())
}

// AppendConstantInt64 returns a table with one extra int64 column holding
// the same value in every row.
func (t *Table) AppendConstantInt64(name string, value int64, mem memory.Allocator) *Table {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	for i := 0; i < t.rows; i++ {
		b.Append(value)
	}
	return t.withColumn(arrow.Field{Name: name, Type: arrow.PrimitiveTypes.Int64}, b.NewArray())
}

func (t *Table) withColumn(field arrow.Field, col arrow.Array) *Table {
	fields := append(append([]arrow.Field{}, t.fields...), field)
	cols := append(append([]arrow.Array{}, t.cols...), col)
	return &Table{fields: fields, cols: cols, rows: t.rows}
}

// Concat concatenates tables along rows. The schema merge is permissive:
// the output carries the union of all columns in order of first
// appearance, and a table missing a column contributes nulls for it.
func Concat(tables []*Table, mem memory.Allocator) (*Table, error) {
	if len(tables) == 0 {
		return &Table{}, nil
	}
	var fields []arrow.Field
	for _, t := range tables {
		for _, f := range t.fields {
			if _, seen := lookupField(fields, f.Name); !seen {
				fields = append(fields, arrow.Field{Name: f.Name, Type: f.Type, Nullable: true})
			}
		}
	}

	cols := make([]arrow.Array, len(fields))
	for i, f := range fields {
		parts := make([]arrow.Array, 0, len(tables))
		for _, t := range tables {
			col, ok := t.Column(f.Name)
			if !ok {
				parts = append(parts, array.MakeArrayOfNull(mem, f.Type, t.rows))
				continue
			}
			if !arrow.TypeEqual(col.DataType(), f.Type) {
				return nil, errors.Errorf("concat: column %s has type %s, want %s", f.Name, col.DataType(), f.Type)
			}
			parts = append(parts, col)
		}
		combined, err := array.Concatenate(parts, mem)
		if err != nil {
			return nil, errors.Wrapf(err, "concatenating column %s", f.Name)
		}
		cols[i] = combined
	}
	return New(fields, cols)
}

func lookupField(fields []arrow.Field, name string) (arrow.Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return arrow.Field{}, false
}

// Take gathers the given row indices into a new contiguous Table.
func (t *Table) Take(indices []int, mem memory.Allocator) (*Table, error) {
	cols := make([]arrow.Array, len(t.cols))
	for i, col := range t.cols {
		gathered, err := gather(col, indices, mem)
		if err != nil {
			return nil, errors.Wrapf(err, "gathering column %s", t.fields[i].Name)
		}
		cols[i] = gathered
	}
	return &Table{fields: t.fields, cols: cols, rows: len(indices)}, nil
}

// DropNull removes every row that holds a null in any column.
func (t *Table) DropNull(mem memory.Allocator) (*Table, error) {
	keep := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		hasNull := false
		for _, col := range t.cols {
			if col.IsNull(i) {
				hasNull = true
				break
			}
		}
		if !hasNull {
			keep = append(keep, i)
		}
	}
	if len(keep) == t.rows {
		return t, nil
	}
	return t.Take(keep, mem)
}

// FilterEqual keeps rows whose string column equals value. Columns the
// table does not have never match.
func (t *Table) FilterEqual(column, value string, mem memory.Allocator) (*Table, error) {
	col, ok := t.Column(column)
	if !ok {
		return t.Take(nil, mem)
	}
	sa, ok := col.(*array.String)
	if !ok {
		return nil, errors.Errorf("filter: column %s has type %s, want string", column, col.DataType())
	}
	keep := make([]int, 0, t.rows)
	for i := 0; i < t.rows; i++ {
		if !sa.IsNull(i) && sa.Value(i) == value {
			keep = append(keep, i)
		}
	}
	if len(keep) == t.rows {
		return t, nil
	}
	return t.Take(keep, mem)
}
