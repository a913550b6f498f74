// Command seed-db applies migrations and loads the reference catalog: product
// types and their rates, payment method rates, credit terms and a handful of
// sample customers and products.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/sales-pricing/internal/domain/customer"
	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/payment"
	"github.com/xenking/sales-pricing/internal/domain/product"
	"github.com/xenking/sales-pricing/internal/ratecache"
	"github.com/xenking/sales-pricing/internal/repository"
)

type namedRate struct {
	Name    string
	Percent string
}

var (
	productTypeRates = []namedRate{
		{"Electronics", "5.00"},
		{"Clothing", "10.00"},
		{"Books", "15.00"},
		{"Home & Garden", "8.00"},
		{"Sports", "12.00"},
		{"Automotive", "7.00"},
	}
	paymentMethodRates = []namedRate{
		{"Cash", "5.00"},
		{"Credit Card", "2.00"},
		{"Debit Card", "3.00"},
		{payment.StoreCredit, "1.90"},
		{"Bank Transfer", "0.00"},
		{"Digital Wallet", "4.00"},
	}
	creditTermsDays = []int{30, 60, 90, 120, 180, 365}

	sampleCustomers = []customer.Customer{
		{Name: "Ana García", Type: customer.TypeVIP, CreditTermsDays: 90},
		{Name: "Luis Rodríguez", Type: customer.TypeRegular, CreditTermsDays: 30},
		{Name: "María López", Type: customer.TypeVIP, CreditTermsDays: 120},
		{Name: "Carlos Pérez", Type: customer.TypeRegular, CreditTermsDays: 60},
	}
	sampleProducts = []product.Product{
		{Name: "Laptop Gaming", ProductType: "Electronics", ListPrice: decimal.RequireFromString("15000.00")},
		{Name: "Smartphone", ProductType: "Electronics", ListPrice: decimal.RequireFromString("8000.00")},
		{Name: "Camiseta Casual", ProductType: "Clothing", ListPrice: decimal.RequireFromString("500.00")},
		{Name: "Libro de Programación", ProductType: "Books", ListPrice: decimal.RequireFromString("800.00")},
		{Name: "Mesa de Oficina", ProductType: "Home & Garden", ListPrice: decimal.RequireFromString("2500.00")},
		{Name: "Balón de Fútbol", ProductType: "Sports", ListPrice: decimal.RequireFromString("300.00")},
	}
)

func main() {
	var (
		databaseURL string
		redisURL    string
		creditRate  string
		samples     bool
	)
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&redisURL, "redis-url", "", "Redis URL of a running server's rate cache to invalidate (or REDIS_URL env)")
	flag.StringVar(&creditRate, "credit-terms-rate", "0", "Store Credit discount percent seeded for every credit term")
	flag.BoolVar(&samples, "samples", true, "Also seed sample customers and products")
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
	if redisURL == "" {
		redisURL = os.Getenv("REDIS_URL")
	}
	creditPct, err := decimal.NewFromString(creditRate)
	if err != nil {
		lg.Fatal("Invalid --credit-terms-rate", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, redisURL, creditPct, samples); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}
	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, redisURL string, creditPct decimal.Decimal, samples bool) error {
	lg.Info("Connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := repository.NewPaymentRepository(pool).Ensure(ctx, payment.Names); err != nil {
		return errors.Wrap(err, "seed payment methods")
	}
	var cache discount.Cache
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		cache = ratecache.New(rdb, 0)
	}
	if err := seedRates(ctx, lg, pool, cache, creditPct); err != nil {
		return errors.Wrap(err, "seed rates")
	}
	if !samples {
		return nil
	}
	if err := seedCustomers(ctx, lg, pool); err != nil {
		return errors.Wrap(err, "seed customers")
	}
	if err := seedProducts(ctx, lg, pool); err != nil {
		return errors.Wrap(err, "seed products")
	}
	return nil
}

// seedRates goes through discount.Service so every seeded value passes the
// same checks as the API and drops the cached table when a cache is given.
func seedRates(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, cache discount.Cache, creditPct decimal.Decimal) error {
	ctx = zctx.Base(ctx, lg)
	svc := discount.NewService(repository.NewDiscountRepository(pool), cache)

	for _, r := range productTypeRates {
		if _, err := svc.SetProductTypeRate(ctx, r.Name, decimal.RequireFromString(r.Percent)); err != nil {
			return errors.Wrapf(err, "product type %q", r.Name)
		}
		lg.Info("Product type rate", zap.String("product_type", r.Name), zap.String("percent", r.Percent))
	}
	for _, r := range paymentMethodRates {
		if _, err := svc.SetPaymentMethodRate(ctx, r.Name, decimal.RequireFromString(r.Percent)); err != nil {
			return errors.Wrapf(err, "payment method %q", r.Name)
		}
		lg.Info("Payment method rate", zap.String("payment_method", r.Name), zap.String("percent", r.Percent))
	}
	for _, days := range creditTermsDays {
		if _, err := svc.SetCreditTermsRate(ctx, days, creditPct); err != nil {
			return errors.Wrapf(err, "credit terms %d", days)
		}
	}
	lg.Info("Credit terms rates", zap.Ints("days", creditTermsDays), zap.String("percent", creditPct.String()))
	return nil
}

// seedCustomers only runs against an empty customers table; customers have
// no natural key to upsert on.
func seedCustomers(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool) error {
	repo := repository.NewCustomerRepository(pool)
	existing, err := repo.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		lg.Info("Customers already present, skipping", zap.Int("count", len(existing)))
		return nil
	}
	for _, c := range sampleCustomers {
		if err := repo.Create(ctx, &c); err != nil {
			return errors.Wrapf(err, "customer %q", c.Name)
		}
		lg.Info("Customer created", zap.Int64("id", c.ID), zap.String("name", c.Name))
	}
	return nil
}

func seedProducts(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool) error {
	repo := repository.NewProductRepository(pool)
	for _, p := range sampleProducts {
		inserted, err := repo.Upsert(ctx, &p)
		if err != nil {
			return errors.Wrapf(err, "product %q", p.Name)
		}
		lg.Info("Product upserted",
			zap.Int64("id", p.ID),
			zap.String("name", p.Name),
			zap.Bool("inserted", inserted),
		)
	}
	return nil
}
