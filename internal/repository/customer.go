package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/sales-pricing/internal/domain/customer"
)

const (
	selectCustomerSQL = `SELECT c.id, c.name, ct.name, t.days, c.created_at
		FROM customers c
		JOIN customer_types ct ON ct.id = c.customer_type_id
		JOIN credit_terms t ON t.id = c.credit_terms_id
		WHERE c.deleted_at IS NULL`

	listCustomersSQL   = selectCustomerSQL + ` ORDER BY c.id`
	getCustomerByIDSQL = selectCustomerSQL + ` AND c.id = $1`

	createCustomerSQL = `INSERT INTO customers (name, customer_type_id, credit_terms_id)
		SELECT $1, ct.id, $3 FROM customer_types ct WHERE ct.name = $2
		RETURNING id, created_at`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// Create inserts the customer and fills in its ID and CreatedAt. The credit
// terms row is created when no customer has used that length before.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		termsID, err := ensureCreditTerms(ctx, tx, c.CreditTermsDays)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, createCustomerSQL, c.Name, string(c.Type), termsID).Scan(&c.ID, &c.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errors.Wrapf(customer.ErrInvalid, "customer type %q is not configured", c.Type)
			}
			return fmt.Errorf("creating customer %q: %w", c.Name, err)
		}
		return nil
	})
}

// List returns all live customers ordered by ID.
func (r *CustomerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	rows, err := r.pool.Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

// GetByID returns a single live customer.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}
	return &c, nil
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var (
		c   customer.Customer
		typ string
	)
	err := row.Scan(&c.ID, &c.Name, &typ, &c.CreditTermsDays, &c.CreatedAt)
	c.Type = customer.Type(typ)
	return c, err
}
