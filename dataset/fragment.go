package dataset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Fragment identifies one physically addressable slice of the dataset:
// a parquet file, or a subset of its row groups. Fragments are immutable
// once listed and can be rebuilt from their descriptor alone.
type Fragment struct {
	// Path of the parquet file within the bucket.
	Path string `json:"path"`
	// RowGroups this fragment covers. Empty means the whole file.
	RowGroups []int `json:"row_groups,omitempty"`
	// Columns in the file's physical schema.
	Columns []string `json:"columns"`
	// Partition holds column values encoded in the directory layout.
	Partition map[string]string `json:"partition,omitempty"`
	// NumRows covered by this fragment.
	NumRows int64 `json:"num_rows"`
	// Index is the fragment's ordinal in the catalog listing.
	Index int `json:"index"`

	rowGroupRows []int64
}

// Descriptor serializes the fragment so it can be rebuilt later.
func (f *Fragment) Descriptor() ([]byte, error) {
	return json.Marshal(f)
}

// FragmentFromDescriptor rebuilds a fragment from its descriptor,
// discarding any state cached on the original.
func FragmentFromDescriptor(data []byte) (*Fragment, error) {
	var f Fragment
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decoding fragment descriptor")
	}
	return &f, nil
}

// reconstruct roundtrips the fragment through its descriptor.
func (f *Fragment) reconstruct() (*Fragment, error) {
	data, err := f.Descriptor()
	if err != nil {
		return nil, errors.Wrap(err, "encoding fragment descriptor")
	}
	return FragmentFromDescriptor(data)
}

// HasColumn reports whether name is a physical or a partition column of
// the fragment.
func (f *Fragment) HasColumn(name string) bool {
	for _, col := range f.Columns {
		if col == name {
			return true
		}
	}
	_, ok := f.Partition[name]
	return ok
}

func (f *Fragment) String() string {
	return fmt.Sprintf("fragment path=%s row_groups=%v rows=%d", f.Path, f.RowGroups, f.NumRows)
}

// partitionFromPath extracts hive-style key=value partition values from
// the directory components of a file path.
func partitionFromPath(path string) map[string]string {
	var partition map[string]string
	parts := strings.Split(path, "/")
	for _, part := range parts[:max(len(parts)-1, 0)] {
		key, value, found := strings.Cut(part, "=")
		if !found || key == "" {
			continue
		}
		if partition == nil {
			partition = make(map[string]string)
		}
		partition[key] = value
	}
	return partition
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
