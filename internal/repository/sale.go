package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/sale"
)

const (
	createSaleSQL = `INSERT INTO sales (id, customer_id, payment_method_id, tax_rate_percent,
		subtotal, tax, total, total_discounts_amount, sale_datetime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	selectSaleSQL = `SELECT s.id::text, s.customer_id, s.payment_method_id, pm.name, s.tax_rate_percent,
		s.subtotal, s.tax, s.total, s.total_discounts_amount, s.sale_datetime
		FROM sales s
		JOIN payment_methods pm ON pm.id = s.payment_method_id
		WHERE s.deleted_at IS NULL`

	getSaleByIDSQL = selectSaleSQL + ` AND s.id = $1`
	listSalesSQL   = selectSaleSQL + ` ORDER BY s.sale_datetime DESC, s.id`

	listSaleItemsSQL = `SELECT product_id, quantity, list_price, product_type_discount,
		payment_method_discount, credit_terms_discount, line_subtotal
		FROM sale_items WHERE sale_id = $1 ORDER BY line_no`
)

var saleItemColumns = []string{
	"sale_id", "line_no", "product_id", "quantity", "list_price",
	"product_type_discount", "payment_method_discount", "credit_terms_discount", "line_subtotal",
}

var _ sale.Repository = (*SaleRepository)(nil)

// SaleRepository implements sale.Repository backed by PostgreSQL.
type SaleRepository struct {
	pool *pgxpool.Pool
}

// NewSaleRepository returns a SaleRepository that uses the given pool.
func NewSaleRepository(pool *pgxpool.Pool) *SaleRepository {
	return &SaleRepository{pool: pool}
}

// Create persists the sale header and its lines in one transaction. Lines are
// bulk-loaded with COPY.
func (r *SaleRepository) Create(ctx context.Context, s *sale.Sale) error {
	id, err := uuid.Parse(s.ID)
	if err != nil {
		return fmt.Errorf("creating sale %q: %w", s.ID, err)
	}
	err = inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createSaleSQL,
			id, s.CustomerID, s.PaymentMethodID, s.TaxRatePercent,
			s.Subtotal, s.Tax, s.Total, s.TotalDiscounts, s.CreatedAt,
		); err != nil {
			return errors.Wrap(err, "insert sale")
		}

		n, err := tx.CopyFrom(ctx, pgx.Identifier{"sale_items"}, saleItemColumns,
			pgx.CopyFromSlice(len(s.Lines), func(i int) ([]any, error) {
				l := s.Lines[i]
				return []any{
					id, i + 1, l.ProductID, l.Quantity, l.ListPrice,
					l.ProductTypeDiscount, l.PaymentMethodDiscount, l.CreditTermsDiscount, l.Subtotal,
				}, nil
			}),
		)
		if err != nil {
			return errors.Wrap(err, "copy sale items")
		}
		if int(n) != len(s.Lines) {
			return errors.Errorf("copied %d of %d sale items", n, len(s.Lines))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("creating sale %q: %w", s.ID, err)
	}
	return nil
}

// GetByID returns a sale with its lines in their original order.
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*sale.Sale, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return nil, sale.ErrNotFound
	}
	rows, err := r.pool.Query(ctx, getSaleByIDSQL, key)
	if err != nil {
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, scanSale)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sale.ErrNotFound
		}
		return nil, fmt.Errorf("getting sale %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, listSaleItemsSQL, key)
	if err != nil {
		return nil, fmt.Errorf("getting items of sale %q: %w", id, err)
	}
	s.Lines, err = pgx.CollectRows(rows, scanSaleLine)
	if err != nil {
		return nil, fmt.Errorf("getting items of sale %q: %w", id, err)
	}
	return &s, nil
}

// List returns live sale headers, newest first.
func (r *SaleRepository) List(ctx context.Context) ([]sale.Sale, error) {
	rows, err := r.pool.Query(ctx, listSalesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	return pgx.CollectRows(rows, scanSale)
}

func scanSale(row pgx.CollectableRow) (sale.Sale, error) {
	var s sale.Sale
	err := row.Scan(
		&s.ID, &s.CustomerID, &s.PaymentMethodID, &s.PaymentMethod, &s.TaxRatePercent,
		&s.Subtotal, &s.Tax, &s.Total, &s.TotalDiscounts, &s.CreatedAt,
	)
	return s, err
}

func scanSaleLine(row pgx.CollectableRow) (pricing.LineBreakdown, error) {
	var l pricing.LineBreakdown
	err := row.Scan(
		&l.ProductID, &l.Quantity, &l.ListPrice, &l.ProductTypeDiscount,
		&l.PaymentMethodDiscount, &l.CreditTermsDiscount, &l.Subtotal,
	)
	return l, err
}
