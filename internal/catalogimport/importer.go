// Package catalogimport bulk-loads products from gzipped JSON-lines files.
//
// Every line is one object: {"name":"...","product_type":"...","list_price":"12.50"}.
// Files are decoded concurrently and rows are written by a pool of workers.
// A Bloom filter seeded with the names already in the catalog lets rows with
// certainly new names go straight to an insert, while possible matches are
// looked up and skipped when nothing changed.
package catalogimport

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"sync"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/sales-pricing/internal/domain/product"
)

// Store is the part of the product repository the importer writes through.
type Store interface {
	Names(ctx context.Context, fn func(name string)) error
	GetByName(ctx context.Context, name string) (*product.Product, error)
	Create(ctx context.Context, p *product.Product) error
	Upsert(ctx context.Context, p *product.Product) (bool, error)
}

// Options tunes an Importer. Zero values pick defaults.
type Options struct {
	// Workers is the number of concurrent writers. Default 4.
	Workers int
	// ExpectedNames sizes the Bloom filter. Default 100k.
	ExpectedNames uint
	// FalsePositiveRate of the Bloom filter. Default 0.001.
	FalsePositiveRate float64
}

// Stats counts what happened to the rows of one run.
type Stats struct {
	Read      int64
	Invalid   int64
	Created   int64
	Updated   int64
	Unchanged int64
	// Lookups counts GetByName round-trips.
	Lookups int64
}

// Importer loads product files into a Store.
type Importer struct {
	store Store
	lg    *zap.Logger
	opts  Options

	mu     sync.Mutex
	filter *bloom.BloomFilter

	read, invalid, created, updated, unchanged, lookups atomic.Int64
}

// New returns an Importer writing to store.
func New(store Store, lg *zap.Logger, opts Options) *Importer {
	if opts.Workers < 1 {
		opts.Workers = 4
	}
	if opts.ExpectedNames == 0 {
		opts.ExpectedNames = 100_000
	}
	if opts.FalsePositiveRate <= 0 || opts.FalsePositiveRate >= 1 {
		opts.FalsePositiveRate = 0.001
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Importer{store: store, lg: lg, opts: opts}
}

type row struct {
	file string
	line int
	p    product.Product
}

// Run imports every file and returns the counters. On error the counters
// reflect the rows written before the failure. Runs must not overlap.
func (im *Importer) Run(ctx context.Context, files []string) (Stats, error) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return Stats{}, errors.Wrapf(err, "check file %s", f)
		}
	}

	for _, c := range []*atomic.Int64{&im.read, &im.invalid, &im.created, &im.updated, &im.unchanged, &im.lookups} {
		c.Store(0)
	}
	im.filter = bloom.NewWithEstimates(im.opts.ExpectedNames, im.opts.FalsePositiveRate)
	var existing int
	if err := im.store.Names(ctx, func(name string) {
		im.filter.AddString(name)
		existing++
	}); err != nil {
		return Stats{}, errors.Wrap(err, "load existing names")
	}
	im.lg.Info("Loaded existing product names", zap.Int("count", existing))

	rows := make(chan row, 1024)
	g, gctx := errgroup.WithContext(ctx)

	var readers sync.WaitGroup
	for _, f := range files {
		readers.Add(1)
		g.Go(func() error {
			defer readers.Done()
			return im.readFile(gctx, f, rows)
		})
	}
	go func() {
		readers.Wait()
		close(rows)
	}()

	for range im.opts.Workers {
		g.Go(func() error {
			for r := range rows {
				if err := im.apply(gctx, r); err != nil {
					return errors.Wrapf(err, "%s:%d", r.file, r.line)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	return im.stats(), err
}

func (im *Importer) stats() Stats {
	return Stats{
		Read:      im.read.Load(),
		Invalid:   im.invalid.Load(),
		Created:   im.created.Load(),
		Updated:   im.updated.Load(),
		Unchanged: im.unchanged.Load(),
		Lookups:   im.lookups.Load(),
	}
}

func (im *Importer) readFile(ctx context.Context, path string, out chan<- row) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	var n, lineNo int
	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		im.read.Add(1)

		p, err := parseLine(line)
		if err == nil {
			err = p.Validate()
		}
		if err != nil {
			im.invalid.Add(1)
			im.lg.Debug("Skipping invalid row",
				zap.String("file", path),
				zap.Int("line", lineNo),
				zap.Error(err),
			)
			continue
		}

		select {
		case out <- row{file: path, line: lineNo, p: p}:
			n++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	im.lg.Info("File decoded", zap.String("file", path), zap.Int("rows", n))
	return nil
}

func (im *Importer) apply(ctx context.Context, r row) error {
	p := r.p

	im.mu.Lock()
	maybeKnown := im.filter.TestString(p.Name)
	if !maybeKnown {
		im.filter.AddString(p.Name)
	}
	im.mu.Unlock()

	if !maybeKnown {
		err := im.store.Create(ctx, &p)
		if err == nil {
			im.created.Add(1)
			return nil
		}
		if !errors.Is(err, product.ErrDuplicateName) {
			return errors.Wrap(err, "create")
		}
		// Another worker inserted the same name first.
	}

	im.lookups.Add(1)
	cur, err := im.store.GetByName(ctx, p.Name)
	switch {
	case errors.Is(err, product.ErrNotFound):
	case err != nil:
		return errors.Wrap(err, "lookup")
	case cur.ProductType == p.ProductType && cur.ListPrice.Equal(p.ListPrice):
		im.unchanged.Add(1)
		return nil
	}

	inserted, err := im.store.Upsert(ctx, &p)
	if err != nil {
		return errors.Wrap(err, "upsert")
	}
	if inserted {
		im.created.Add(1)
	} else {
		im.updated.Add(1)
	}
	return nil
}

// parseLine decodes one JSON object. The price may be a number or a string.
func parseLine(line []byte) (product.Product, error) {
	var p product.Product
	err := jx.DecodeBytes(line).ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			p.Name, err = d.Str()
		case "product_type":
			p.ProductType, err = d.Str()
		case "list_price":
			p.ListPrice, err = decodePrice(d)
		default:
			err = d.Skip()
		}
		return err
	})
	return p, err
}

func decodePrice(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	default:
		return decimal.Decimal{}, errors.New("list_price must be a number or string")
	}
}
