package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/sales-pricing/internal/domain/product"
)

const (
	selectProductSQL = `SELECT p.id, p.name, p.product_type_id, pt.name, p.list_price, p.created_at
		FROM products p
		JOIN product_types pt ON pt.id = p.product_type_id
		WHERE p.deleted_at IS NULL`

	listProductsSQL     = selectProductSQL + ` ORDER BY p.id`
	getProductByIDSQL   = selectProductSQL + ` AND p.id = $1`
	getProductsByIDsSQL = selectProductSQL + ` AND p.id = ANY($1)`
	getProductByNameSQL = selectProductSQL + ` AND p.name = $1`
	listProductNamesSQL = `SELECT name FROM products WHERE deleted_at IS NULL`
	createProductSQL    = `INSERT INTO products (name, product_type_id, list_price) VALUES ($1, $2, $3)
		RETURNING id, created_at`

	// xmax = 0 only for freshly inserted rows.
	upsertProductSQL = `INSERT INTO products (name, product_type_id, list_price) VALUES ($1, $2, $3)
		ON CONFLICT (name) WHERE deleted_at IS NULL
		DO UPDATE SET product_type_id = EXCLUDED.product_type_id,
			list_price = EXCLUDED.list_price,
			updated_at = NOW()
		RETURNING id, created_at, (xmax = 0)`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Create inserts a product, resolving its product type by name.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		typeID, err := ensureProductType(ctx, tx, p.ProductType)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, createProductSQL, p.Name, typeID, p.ListPrice).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return errors.Wrapf(product.ErrDuplicateName, "product %q", p.Name)
			}
			return fmt.Errorf("creating product %q: %w", p.Name, err)
		}
		p.ProductTypeID = typeID
		return nil
	})
}

// Upsert inserts the product or updates the live product with the same name.
func (r *ProductRepository) Upsert(ctx context.Context, p *product.Product) (bool, error) {
	var inserted bool
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		typeID, err := ensureProductType(ctx, tx, p.ProductType)
		if err != nil {
			return err
		}
		err = tx.QueryRow(ctx, upsertProductSQL, p.Name, typeID, p.ListPrice).Scan(&p.ID, &p.CreatedAt, &inserted)
		if err != nil {
			return fmt.Errorf("upserting product %q: %w", p.Name, err)
		}
		p.ProductTypeID = typeID
		return nil
	})
	return inserted, err
}

// List returns all live products ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	return r.getOne(ctx, getProductByIDSQL, id)
}

// GetByName returns the live product with the given name.
func (r *ProductRepository) GetByName(ctx context.Context, name string) (*product.Product, error) {
	return r.getOne(ctx, getProductByNameSQL, name)
}

// GetByIDs returns products matching any of the given IDs. Missing IDs are
// silently skipped.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Names streams the names of all live products to fn.
func (r *ProductRepository) Names(ctx context.Context, fn func(name string)) error {
	rows, err := r.pool.Query(ctx, listProductNamesSQL)
	if err != nil {
		return fmt.Errorf("listing product names: %w", err)
	}
	var name string
	_, err = pgx.ForEachRow(rows, []any{&name}, func() error {
		fn(name)
		return nil
	})
	return err
}

func (r *ProductRepository) getOne(ctx context.Context, sql string, arg any) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting product %v: %w", arg, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %v: %w", arg, err)
	}
	return &p, nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.ProductTypeID, &p.ProductType, &p.ListPrice, &p.CreatedAt)
	return p, err
}
