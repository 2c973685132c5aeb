package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	gokitlog "github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/thanos-io/objstore/providers/filesystem"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/yaml.v3"

	"mlstream/parquet-dataset/dataset"
)

type Options struct {
	// The directory holding the parquet dataset.
	StorePath string
	// Path to a yaml pipeline configuration.
	ConfigFile string
	// Address to expose metrics on. Empty disables the endpoint.
	ListenAddr string

	// Flag overrides for the most common configuration fields.
	Columns   []string
	BatchSize int
	MaxTokens int
	OrderBy   string
	Shuffle   bool
	Seed      int64
	Epochs    int
	Rank      int
	WorldSize int
	Format    string
}

func main() {
	app := kingpin.New("parquet-read", "Iterate a parquet dataset as training batches.")
	opts := Options{}
	if err := (&opts).BindFlags(app); err != nil {
		log.Fatal(err)
	}

	config, err := opts.buildConfig()
	if err != nil {
		log.Fatal(err)
	}

	registry := prometheus.NewRegistry()
	if opts.ListenAddr != "" {
		go func() {
			http.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			log.Println(http.ListenAndServe(opts.ListenAddr, nil))
		}()
	}

	bucket, err := filesystem.NewBucket(opts.StorePath)
	if err != nil {
		log.Fatal(err)
	}

	logger := gokitlog.NewLogfmtLogger(os.Stderr)
	pipeline, err := dataset.NewPipeline(context.Background(), bucket, config,
		dataset.WithLogger(logger),
		dataset.WithMetrics(dataset.NewMetrics(registry)),
	)
	if err != nil {
		log.Fatal(err)
	}

	it := pipeline.Iter(context.Background())
	defer it.Close()

	bar := progressbar.Default(-1, "batches")
	var batches, rows int
	for {
		out, err := it.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		batches++
		rows += out.Rows
		if err := bar.Add(1); err != nil {
			log.Fatal(err)
		}
	}
	fmt.Printf("\nread %d batches, %d rows\n", batches, rows)
}

func (o *Options) BindFlags(app *kingpin.Application) error {
	app.Flag("store", "The directory holding the parquet dataset.").
		Default(".").StringVar(&o.StorePath)
	app.Flag("config", "Path to a yaml pipeline configuration.").
		Default("").StringVar(&o.ConfigFile)
	app.Flag("listen", "Address to expose metrics on.").
		Default("").StringVar(&o.ListenAddr)
	app.Flag("column", "Columns to load.").StringsVar(&o.Columns)
	app.Flag("batch-size", "Rows per batch.").IntVar(&o.BatchSize)
	app.Flag("max-tokens", "Token budget per batch.").IntVar(&o.MaxTokens)
	app.Flag("order-by-length", "Column the batch length metric derives from.").StringVar(&o.OrderBy)
	app.Flag("shuffle", "Shuffle fragments and batches.").BoolVar(&o.Shuffle)
	app.Flag("seed", "Shuffle seed.").Default("-1").Int64Var(&o.Seed)
	app.Flag("epochs", "Number of passes over the dataset.").Default("1").IntVar(&o.Epochs)
	app.Flag("rank", "Worker rank.").IntVar(&o.Rank)
	app.Flag("world-size", "Number of workers.").Default("1").IntVar(&o.WorldSize)
	app.Flag("format", "Output format: table, frame or tensor.").Default("table").StringVar(&o.Format)

	_, err := app.Parse(os.Args[1:])
	return err
}

func (o *Options) buildConfig() (dataset.Config, error) {
	config := dataset.Config{Path: "."}
	if o.ConfigFile != "" {
		data, err := os.ReadFile(o.ConfigFile)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return config, err
		}
	}

	if len(o.Columns) > 0 {
		config.Columns = o.Columns
	}
	if o.BatchSize > 0 {
		config.BatchSize = o.BatchSize
	}
	if o.MaxTokens > 0 {
		config.MaxTokens = o.MaxTokens
	}
	if o.OrderBy != "" {
		config.OrderByLength = o.OrderBy
	}
	if o.Shuffle {
		config.Shuffle = true
	}
	if o.Seed >= 0 {
		seed := o.Seed
		config.Seed = &seed
	}
	config.Epochs = o.Epochs
	config.Rank = o.Rank
	config.WorldSize = o.WorldSize
	config.Format = dataset.OutputFormat(o.Format)
	return config, nil
}
