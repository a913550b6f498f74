package product

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrInvalid is returned when product fields fail validation.
	ErrInvalid = errors.New("invalid product")
	// ErrDuplicateName is returned when a live product already has the name.
	ErrDuplicateName = errors.New("product name already exists")
)

// MaxListPrice is the largest list price the catalog stores (NUMERIC(10,2)).
var MaxListPrice = decimal.RequireFromString("99999999.99")

// Product represents a catalog item available for sale.
type Product struct {
	ID            int64
	Name          string
	ProductTypeID int64
	ProductType   string
	ListPrice     decimal.Decimal
	CreatedAt     time.Time
}

// Validate checks the fields a caller supplies when creating or importing a
// product.
func (p Product) Validate() error {
	if n := utf8.RuneCountInString(p.Name); n == 0 || n > 100 {
		return errors.Wrap(ErrInvalid, "name must be 1..100 characters")
	}
	if n := utf8.RuneCountInString(p.ProductType); n == 0 || n > 50 {
		return errors.Wrap(ErrInvalid, "product type must be 1..50 characters")
	}
	if p.ListPrice.IsNegative() {
		return errors.Wrap(ErrInvalid, "list price must not be negative")
	}
	if p.ListPrice.Exponent() < -2 && !p.ListPrice.Equal(p.ListPrice.Round(2)) {
		return errors.Wrap(ErrInvalid, "list price has more than 2 fraction digits")
	}
	if p.ListPrice.GreaterThan(MaxListPrice) {
		return errors.Wrapf(ErrInvalid, "list price must not exceed %s", MaxListPrice.StringFixed(2))
	}
	return nil
}

// Pricing converts the product into the engine's view of it.
func (p Product) Pricing() pricing.Product {
	return pricing.Product{ID: p.ID, ProductTypeID: p.ProductTypeID, ListPrice: p.ListPrice}
}

// Lookup indexes products by id for the pricing engine.
func Lookup(products []Product) pricing.ProductMap {
	m := make(pricing.ProductMap, len(products))
	for _, p := range products {
		m[p.ID] = p.Pricing()
	}
	return m
}

// Repository defines operations on the product catalog. Create and Upsert
// resolve the product type by name, creating it when missing.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	GetByName(ctx context.Context, name string) (*Product, error)
	// Upsert inserts the product or updates the list price and type of the
	// live product with the same name. It reports whether a row was inserted.
	Upsert(ctx context.Context, p *Product) (bool, error)
}
