package dataset

import (
	"fmt"
	"strings"
)

// SchemaError reports requested columns that no fragment in the dataset
// carries. It is raised before any fragment data is read.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("columns [%s] are not found in the dataset schema", strings.Join(e.Missing, ", "))
}

// FragmentLoadError is a storage fault that survived the reconstruction
// retry. It is fatal for the pipeline.
type FragmentLoadError struct {
	Path string
	Err  error
}

func (e *FragmentLoadError) Error() string {
	return fmt.Sprintf("loading fragment %s: %v", e.Path, e.Err)
}

func (e *FragmentLoadError) Unwrap() error { return e.Err }

// BatchingConfigError reports an invalid batching configuration, such as
// setting neither or both of batch size and max tokens.
type BatchingConfigError struct {
	Reason string
}

func (e *BatchingConfigError) Error() string {
	return "invalid batching configuration: " + e.Reason
}
