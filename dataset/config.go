package dataset

import "github.com/pkg/errors"

// OutputFormat selects the representation batches are handed out in.
type OutputFormat string

const (
	// FormatTable yields the native columnar table.
	FormatTable OutputFormat = "table"
	// FormatFrame yields a row-oriented frame.
	FormatFrame OutputFormat = "frame"
	// FormatTensors yields a mapping from column name to converted value.
	FormatTensors OutputFormat = "tensor"
)

// Config describes a pipeline. It is consumed once at construction; the
// pipeline is a build-once, iterate-many stream definition.
type Config struct {
	// Path is the dataset root within the bucket.
	Path string `yaml:"path"`
	// Columns to load. Empty loads every column.
	Columns []string `yaml:"columns,omitempty"`
	// Filters prune fragments by partition value and filter rows.
	Filters Filters `yaml:"filters,omitempty"`

	Shuffle bool `yaml:"shuffle"`
	// ShuffleWindow bounds the fine-grained shuffle buffer.
	// 0 shuffles the entire sequence in memory.
	ShuffleWindow int `yaml:"shuffle_window"`
	// Seed drives all randomness. When nil, one is drawn at pipeline
	// construction and held for the pipeline's lifetime.
	Seed   *int64 `yaml:"seed,omitempty"`
	Epochs int    `yaml:"epochs"`

	// Exactly one of BatchSize or MaxTokens must be set.
	BatchSize int `yaml:"batch_size"`
	MaxTokens int `yaml:"max_tokens"`
	// OrderByLength names the column the per-row length derives from.
	OrderByLength string `yaml:"order_by_length,omitempty"`

	DropNull     bool `yaml:"drop_null"`
	MinBatchSize int  `yaml:"min_batch_size"`

	Rank      int `yaml:"rank"`
	WorldSize int `yaml:"world_size"`

	// Parallelism caps concurrent fragment loads per map stage.
	Parallelism   int `yaml:"parallelism"`
	PrefetchDepth int `yaml:"prefetch_depth"`
	// ConcatFragments is how many loaded tables are aggregated into one
	// contiguous table before bucketing.
	ConcatFragments int `yaml:"concat_fragments"`
	// SplitToRowGroups lists one fragment per row group instead of one
	// per file.
	SplitToRowGroups bool `yaml:"split_to_row_groups"`

	Format OutputFormat `yaml:"format"`
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("dataset path is required")
	}
	if (c.BatchSize > 0) == (c.MaxTokens > 0) {
		return &BatchingConfigError{Reason: "exactly one of batch_size and max_tokens must be set"}
	}
	if c.WorldSize < 0 || c.Rank < 0 {
		return errors.New("rank and world_size cannot be negative")
	}
	if c.WorldSize > 0 && c.Rank >= c.WorldSize {
		return errors.Errorf("rank %d is out of range for world size %d", c.Rank, c.WorldSize)
	}
	if c.ShuffleWindow < 0 {
		return errors.New("shuffle_window cannot be negative")
	}
	switch c.Format {
	case "", FormatTable, FormatFrame, FormatTensors:
	default:
		return errors.Errorf("unknown output format %q", c.Format)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Epochs < 1 {
		c.Epochs = 1
	}
	if c.WorldSize < 1 {
		c.WorldSize = 1
	}
	if c.Parallelism < 1 {
		c.Parallelism = 4
	}
	if c.PrefetchDepth < 1 {
		c.PrefetchDepth = 2
	}
	if c.ConcatFragments < 1 {
		c.ConcatFragments = 2
	}
	if c.MinBatchSize < 1 {
		c.MinBatchSize = 1
	}
	if c.Format == "" {
		c.Format = FormatTable
	}
	return c
}
