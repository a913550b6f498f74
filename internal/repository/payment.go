package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/sales-pricing/internal/domain/payment"
)

const (
	listPaymentMethodsSQL       = `SELECT id, name FROM payment_methods ORDER BY id`
	getPaymentMethodByIDSQL     = `SELECT id, name FROM payment_methods WHERE id = $1`
	getPaymentMethodByNameSQL   = `SELECT id, name FROM payment_methods WHERE name = $1`
	insertPaymentMethodNamesSQL = `INSERT INTO payment_methods (name) SELECT unnest($1::text[])
		ON CONFLICT (name) DO NOTHING`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Ensure inserts any of the named methods that do not exist yet.
func (r *PaymentRepository) Ensure(ctx context.Context, names []string) error {
	if _, err := r.pool.Exec(ctx, insertPaymentMethodNamesSQL, names); err != nil {
		return fmt.Errorf("ensuring payment methods: %w", err)
	}
	return nil
}

// List returns all payment methods ordered by ID.
func (r *PaymentRepository) List(ctx context.Context) ([]payment.Method, error) {
	rows, err := r.pool.Query(ctx, listPaymentMethodsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing payment methods: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[payment.Method])
}

// GetByID returns a payment method by its identifier.
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Method, error) {
	return r.getOne(ctx, getPaymentMethodByIDSQL, id)
}

// GetByName returns a payment method by its exact name.
func (r *PaymentRepository) GetByName(ctx context.Context, name string) (*payment.Method, error) {
	return r.getOne(ctx, getPaymentMethodByNameSQL, name)
}

func (r *PaymentRepository) getOne(ctx context.Context, sql string, arg any) (*payment.Method, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting payment method %v: %w", arg, err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[payment.Method])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrNotFound
		}
		return nil, fmt.Errorf("getting payment method %v: %w", arg, err)
	}
	return &m, nil
}
