//go:build integration

package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/xenking/sales-pricing/internal/domain/customer"
	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/payment"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/product"
	"github.com/xenking/sales-pricing/internal/domain/sale"
	"github.com/xenking/sales-pricing/internal/repository"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:17-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "sales",
				"POSTGRES_PASSWORD": "sales",
				"POSTGRES_DB":       "sales",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	port, err := c.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("postgres://sales:sales@%s:%s/sales?sslmode=disable", host, port.Port())
	pool, err := repository.NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, repository.RunMigrations(ctx, pool))
	// The schema is idempotent.
	require.NoError(t, repository.RunMigrations(ctx, pool))
	require.NoError(t, repository.NewPaymentRepository(pool).Ensure(ctx, payment.Names))
	return pool
}

func TestPostgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()

	customers := repository.NewCustomerRepository(pool)
	products := repository.NewProductRepository(pool)
	methods := repository.NewPaymentRepository(pool)
	rates := discount.NewService(repository.NewDiscountRepository(pool), nil)
	sales := repository.NewSaleRepository(pool)

	t.Run("payment methods are seeded once", func(t *testing.T) {
		require.NoError(t, methods.Ensure(ctx, payment.Names))
		list, err := methods.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, len(payment.Names))

		m, err := methods.GetByName(ctx, payment.StoreCredit)
		require.NoError(t, err)
		assert.Equal(t, payment.StoreCredit, m.Name)

		_, err = methods.GetByName(ctx, "Barter")
		assert.ErrorIs(t, err, payment.ErrNotFound)
	})

	t.Run("customers", func(t *testing.T) {
		c := &customer.Customer{Name: "Ana", Type: customer.TypeVIP, CreditTermsDays: 90}
		require.NoError(t, customers.Create(ctx, c))
		assert.Positive(t, c.ID)

		got, err := customers.GetByID(ctx, c.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Name)
		assert.Equal(t, customer.TypeVIP, got.Type)
		assert.Equal(t, 90, got.CreditTermsDays)

		_, err = customers.GetByID(ctx, 999_999)
		assert.ErrorIs(t, err, customer.ErrNotFound)
	})

	t.Run("products", func(t *testing.T) {
		p := &product.Product{Name: "Lamp", ProductType: "Home & Garden", ListPrice: d("40.00")}
		require.NoError(t, products.Create(ctx, p))

		dup := &product.Product{Name: "Lamp", ProductType: "Home & Garden", ListPrice: d("1")}
		assert.ErrorIs(t, products.Create(ctx, dup), product.ErrDuplicateName)

		inserted, err := products.Upsert(ctx, &product.Product{Name: "Lamp", ProductType: "Home & Garden", ListPrice: d("45.50")})
		require.NoError(t, err)
		assert.False(t, inserted)

		got, err := products.GetByName(ctx, "Lamp")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.True(t, d("45.50").Equal(got.ListPrice))

		var names []string
		require.NoError(t, products.Names(ctx, func(n string) { names = append(names, n) }))
		assert.Contains(t, names, "Lamp")
	})

	t.Run("rates replace the live row", func(t *testing.T) {
		_, err := rates.SetProductTypeRate(ctx, "Hardware", d("5"))
		require.NoError(t, err)
		_, err = rates.SetProductTypeRate(ctx, "Hardware", d("10"))
		require.NoError(t, err)

		_, err = rates.SetPaymentMethodRate(ctx, "Barter", d("1"))
		assert.ErrorIs(t, err, discount.ErrUnknownPaymentMethod)

		list, err := rates.List(ctx)
		require.NoError(t, err)
		var hardware []discount.Rate
		for _, r := range list {
			if r.Kind == discount.KindProductType && r.Key == "Hardware" {
				hardware = append(hardware, r)
			}
		}
		require.Len(t, hardware, 1)
		assert.True(t, d("10").Equal(hardware[0].Percent))
	})

	t.Run("sale round trip", func(t *testing.T) {
		_, err := rates.SetPaymentMethodRate(ctx, payment.StoreCredit, d("5"))
		require.NoError(t, err)
		_, err = rates.SetCreditTermsRate(ctx, 30, d("4"))
		require.NoError(t, err)

		c := &customer.Customer{Name: "Luis", Type: customer.TypeRegular, CreditTermsDays: 30}
		require.NoError(t, customers.Create(ctx, c))
		p := &product.Product{Name: "Drill", ProductType: "Hardware", ListPrice: d("100.00")}
		require.NoError(t, products.Create(ctx, p))

		svc, err := sale.NewService(customers, methods, products, rates, sales,
			pricing.NewEngine(pricing.ModelSequential), noop.NewMeterProvider().Meter("test"))
		require.NoError(t, err)

		created, err := svc.Create(ctx, sale.Request{
			CustomerID:    c.ID,
			PaymentMethod: payment.StoreCredit,
			Items:         []sale.Item{{ProductID: p.ID, Quantity: 1}},
		})
		require.NoError(t, err)
		assert.Equal(t, "82.08", created.Subtotal.StringFixed(2))
		assert.Equal(t, "13.13", created.Tax.StringFixed(2))
		assert.Equal(t, "95.21", created.Total.StringFixed(2))

		got, err := sales.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, payment.StoreCredit, got.PaymentMethod)
		assert.True(t, created.Total.Equal(got.Total))
		require.Len(t, got.Lines, 1)
		assert.Equal(t, "10.00", got.Lines[0].ProductTypeDiscount.StringFixed(2))
		assert.Equal(t, "4.50", got.Lines[0].PaymentMethodDiscount.StringFixed(2))
		assert.Equal(t, "3.42", got.Lines[0].CreditTermsDiscount.StringFixed(2))

		list, err := sales.List(ctx)
		require.NoError(t, err)
		assert.NotEmpty(t, list)

		_, err = sales.GetByID(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, sale.ErrNotFound)
	})
}
