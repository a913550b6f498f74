package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
)

// Each upsert soft-replaces the live row for its key so that exactly one rate
// per key stays active.
const (
	upsertProductTypeRateSQL = `INSERT INTO product_type_discounts (product_type_id, discount_percent)
		VALUES ($1, $2)
		ON CONFLICT (product_type_id) WHERE deleted_at IS NULL
		DO UPDATE SET discount_percent = EXCLUDED.discount_percent, updated_at = NOW()
		RETURNING updated_at`

	upsertPaymentMethodRateSQL = `INSERT INTO payment_method_discounts (payment_method_id, discount_percent)
		SELECT pm.id, $2 FROM payment_methods pm WHERE pm.name = $1
		ON CONFLICT (payment_method_id) WHERE deleted_at IS NULL
		DO UPDATE SET discount_percent = EXCLUDED.discount_percent, updated_at = NOW()
		RETURNING payment_method_id, updated_at`

	upsertCreditTermsRateSQL = `INSERT INTO credit_terms_discounts (credit_terms_id, discount_percent)
		VALUES ($1, $2)
		ON CONFLICT (credit_terms_id) WHERE deleted_at IS NULL
		DO UPDATE SET discount_percent = EXCLUDED.discount_percent, updated_at = NOW()
		RETURNING updated_at`

	listRatesSQL = `SELECT 'product_type', d.product_type_id, pt.name, d.discount_percent, d.updated_at
			FROM product_type_discounts d JOIN product_types pt ON pt.id = d.product_type_id
			WHERE d.deleted_at IS NULL
		UNION ALL
		SELECT 'payment_method', d.payment_method_id, pm.name, d.discount_percent, d.updated_at
			FROM payment_method_discounts d JOIN payment_methods pm ON pm.id = d.payment_method_id
			WHERE d.deleted_at IS NULL
		UNION ALL
		SELECT 'credit_terms', ct.days, ct.days::text, d.discount_percent, d.updated_at
			FROM credit_terms_discounts d JOIN credit_terms ct ON ct.id = d.credit_terms_id
			WHERE d.deleted_at IS NULL
		ORDER BY 1, 2`
)

var _ discount.Repository = (*DiscountRepository)(nil)

// DiscountRepository implements discount.Repository backed by PostgreSQL.
type DiscountRepository struct {
	pool *pgxpool.Pool
}

// NewDiscountRepository returns a DiscountRepository that uses the given pool.
func NewDiscountRepository(pool *pgxpool.Pool) *DiscountRepository {
	return &DiscountRepository{pool: pool}
}

// SetProductTypeRate stores the rate for the named product type, creating the
// type when missing.
func (r *DiscountRepository) SetProductTypeRate(ctx context.Context, productType string, pct decimal.Decimal) (*discount.Rate, error) {
	rate := &discount.Rate{Kind: discount.KindProductType, Key: productType, Percent: pct}
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		typeID, err := ensureProductType(ctx, tx, productType)
		if err != nil {
			return err
		}
		rate.KeyID = typeID
		return tx.QueryRow(ctx, upsertProductTypeRateSQL, typeID, pct).Scan(&rate.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("setting product type rate %q: %w", productType, err)
	}
	return rate, nil
}

// SetPaymentMethodRate stores the rate for an existing payment method.
func (r *DiscountRepository) SetPaymentMethodRate(ctx context.Context, method string, pct decimal.Decimal) (*discount.Rate, error) {
	rate := &discount.Rate{Kind: discount.KindPaymentMethod, Key: method, Percent: pct}
	err := r.pool.QueryRow(ctx, upsertPaymentMethodRateSQL, method, pct).Scan(&rate.KeyID, &rate.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrapf(discount.ErrUnknownPaymentMethod, "payment method %q", method)
		}
		return nil, fmt.Errorf("setting payment method rate %q: %w", method, err)
	}
	return rate, nil
}

// SetCreditTermsRate stores the Store Credit rate for the given credit terms.
func (r *DiscountRepository) SetCreditTermsRate(ctx context.Context, days int, pct decimal.Decimal) (*discount.Rate, error) {
	rate := &discount.Rate{
		Kind:    discount.KindCreditTerms,
		KeyID:   int64(days),
		Key:     strconv.Itoa(days),
		Percent: pct,
	}
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		termsID, err := ensureCreditTerms(ctx, tx, days)
		if err != nil {
			return err
		}
		return tx.QueryRow(ctx, upsertCreditTermsRateSQL, termsID, pct).Scan(&rate.UpdatedAt)
	})
	if err != nil {
		return nil, fmt.Errorf("setting credit terms rate %d: %w", days, err)
	}
	return rate, nil
}

// List returns every active rate grouped by kind.
func (r *DiscountRepository) List(ctx context.Context) ([]discount.Rate, error) {
	rows, err := r.pool.Query(ctx, listRatesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing discount rates: %w", err)
	}
	return pgx.CollectRows(rows, scanRate)
}

// Rates loads every active rate into a lookup table. Credit terms are keyed
// by day count, not by row id.
func (r *DiscountRepository) Rates(ctx context.Context) (*pricing.RateTable, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	t := &pricing.RateTable{
		ProductType:   make(map[int64]decimal.Decimal),
		PaymentMethod: make(map[int64]decimal.Decimal),
		CreditTerms:   make(map[int]decimal.Decimal),
	}
	for _, rate := range list {
		switch rate.Kind {
		case discount.KindProductType:
			t.ProductType[rate.KeyID] = rate.Percent
		case discount.KindPaymentMethod:
			t.PaymentMethod[rate.KeyID] = rate.Percent
		case discount.KindCreditTerms:
			t.CreditTerms[int(rate.KeyID)] = rate.Percent
		}
	}
	return t, nil
}

func scanRate(row pgx.CollectableRow) (discount.Rate, error) {
	var (
		rate      discount.Rate
		kind      string
		updatedAt time.Time
	)
	err := row.Scan(&kind, &rate.KeyID, &rate.Key, &rate.Percent, &updatedAt)
	rate.Kind = discount.Kind(kind)
	rate.UpdatedAt = updatedAt
	return rate, err
}
