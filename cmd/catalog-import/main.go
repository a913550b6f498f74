// Command catalog-import loads products from gzipped JSON-lines files and
// upserts them by name.
//
//	catalog-import -database-url postgres://... -data-dir data
//	catalog-import products-1.jsonl.gz products-2.jsonl.gz
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/sales-pricing/internal/catalogimport"
	"github.com/xenking/sales-pricing/internal/repository"
)

func main() {
	var (
		dataDir       string
		databaseURL   string
		workers       int
		expectedNames uint
	)
	flag.StringVar(&dataDir, "data-dir", "", "directory of *.jsonl.gz files, used when no files are given")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "concurrent database writers")
	flag.UintVar(&expectedNames, "expected-names", 100_000, "catalog size estimate used to size the Bloom filter")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	files := flag.Args()
	if len(files) == 0 && dataDir != "" {
		files, err = filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
		if err != nil {
			lg.Fatal("Bad data dir", zap.Error(err))
		}
	}
	if len(files) == 0 {
		lg.Fatal("No input files: pass them as arguments or set --data-dir")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	opts := catalogimport.Options{Workers: workers, ExpectedNames: expectedNames}
	if err := run(ctx, lg, databaseURL, files, opts); err != nil {
		lg.Fatal("Import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, databaseURL string, files []string, opts catalogimport.Options) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	start := time.Now()
	lg.Info("Importing catalog", zap.Strings("files", files))

	im := catalogimport.New(repository.NewProductRepository(pool), lg, opts)
	stats, err := im.Run(ctx, files)
	lg.Info("Import finished",
		zap.Int64("read", stats.Read),
		zap.Int64("invalid", stats.Invalid),
		zap.Int64("created", stats.Created),
		zap.Int64("updated", stats.Updated),
		zap.Int64("unchanged", stats.Unchanged),
		zap.Int64("lookups", stats.Lookups),
		zap.Duration("elapsed", time.Since(start)),
	)
	return err
}
