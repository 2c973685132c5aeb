package dataset

import (
	"context"
	"sort"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/segmentio/parquet-go"
	"github.com/thanos-io/objstore"
	"golang.org/x/exp/slices"

	"mlstream/parquet-dataset/storage"
)

const parquetFileSuffix = ".parquet"

// Filter matches rows (and fragments) whose column equals a literal
// value. Filters are conjunctive.
type Filter struct {
	Column string `yaml:"column"`
	Value  string `yaml:"value"`
}

type Filters []Filter

// MatchPartition reports whether a fragment's partition values satisfy
// every filter that names a partition column. Filters on other columns
// are left for row-level filtering.
func (fs Filters) MatchPartition(partition map[string]string) bool {
	for _, f := range fs {
		value, ok := partition[f.Column]
		if ok && value != f.Value {
			return false
		}
	}
	return true
}

// Catalog lists dataset fragments from a bucket.
type Catalog struct {
	bucket objstore.Bucket
	logger log.Logger
}

func NewCatalog(bucket objstore.Bucket, logger log.Logger) *Catalog {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Catalog{bucket: bucket, logger: logger}
}

// List enumerates the fragments under root whose partition values match
// the filters, in stable path order. When columns is non-empty, every
// requested column must exist in the dataset schema (physical or
// partition); missing columns surface as a SchemaError before any
// fragment data is read.
func (c *Catalog) List(ctx context.Context, root string, filters Filters, columns []string) ([]*Fragment, error) {
	var paths []string
	err := c.bucket.Iter(ctx, root, func(name string) error {
		if strings.HasSuffix(name, parquetFileSuffix) {
			paths = append(paths, name)
		}
		return nil
	}, objstore.WithRecursiveIter)
	if err != nil {
		return nil, errors.Wrapf(err, "listing dataset %s", root)
	}
	slices.Sort(paths)

	fragments := make([]*Fragment, 0, len(paths))
	for _, path := range paths {
		partition := partitionFromPath(path)
		if !filters.MatchPartition(partition) {
			continue
		}
		fragment, err := c.describe(ctx, path, partition)
		if err != nil {
			return nil, err
		}
		fragment.Index = len(fragments)
		fragments = append(fragments, fragment)
	}
	level.Debug(c.logger).Log("msg", "listed dataset fragments", "root", root, "fragments", len(fragments))

	if len(columns) > 0 && len(fragments) > 0 {
		if err := validateColumns(fragments[0], columns); err != nil {
			return nil, err
		}
	}
	return fragments, nil
}

func (c *Catalog) describe(ctx context.Context, path string, partition map[string]string) (*Fragment, error) {
	reader, err := storage.NewBucketReader(ctx, c.bucket, path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening fragment %s", path)
	}
	pqFile, err := parquet.OpenFile(reader, reader.Size())
	if err != nil {
		return nil, errors.Wrapf(err, "reading parquet footer of %s", path)
	}

	fields := pqFile.Schema().Fields()
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		columns = append(columns, field.Name())
	}

	rowGroups := pqFile.RowGroups()
	rowGroupRows := make([]int64, 0, len(rowGroups))
	var numRows int64
	for _, rowGroup := range rowGroups {
		rowGroupRows = append(rowGroupRows, rowGroup.NumRows())
		numRows += rowGroup.NumRows()
	}

	return &Fragment{
		Path:         path,
		Columns:      columns,
		Partition:    partition,
		NumRows:      numRows,
		rowGroupRows: rowGroupRows,
	}, nil
}

func validateColumns(fragment *Fragment, columns []string) error {
	var missing []string
	for _, col := range columns {
		if !fragment.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &SchemaError{Missing: missing}
	}
	return nil
}

// SplitToRowGroups decomposes a fragment into one fragment per row
// group, preserving partition values. It trades one large unit of I/O
// for many independently loadable ones.
func (c *Catalog) SplitToRowGroups(ctx context.Context, fragment *Fragment) ([]*Fragment, error) {
	rowGroupRows := fragment.rowGroupRows
	if rowGroupRows == nil {
		// Reconstructed fragments carry no row group metadata.
		described, err := c.describe(ctx, fragment.Path, fragment.Partition)
		if err != nil {
			return nil, err
		}
		rowGroupRows = described.rowGroupRows
	}

	split := make([]*Fragment, 0, len(rowGroupRows))
	for id, numRows := range rowGroupRows {
		split = append(split, &Fragment{
			Path:         fragment.Path,
			RowGroups:    []int{id},
			Columns:      fragment.Columns,
			Partition:    fragment.Partition,
			NumRows:      numRows,
			Index:        fragment.Index,
			rowGroupRows: []int64{numRows},
		})
	}
	return split, nil
}

// FragmentInfo summarizes one listed fragment for introspection.
type FragmentInfo struct {
	Path         string
	NumRows      int64
	NumRowGroups int
	Partition    map[string]string
}

// Metadata returns a per-fragment summary of a listing.
func Metadata(fragments []*Fragment) []FragmentInfo {
	infos := make([]FragmentInfo, 0, len(fragments))
	for _, f := range fragments {
		infos = append(infos, FragmentInfo{
			Path:         f.Path,
			NumRows:      f.NumRows,
			NumRowGroups: len(f.rowGroupRows),
			Partition:    f.Partition,
		})
	}
	return infos
}
