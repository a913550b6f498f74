// Package discount manages the percentage rate tables the pricing engine
// reads: one rate per product type, per payment method and per credit-terms
// length.
package discount

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/pricing"
)

// Kind names one of the three rate tables.
type Kind string

const (
	KindProductType   Kind = "product_type"
	KindPaymentMethod Kind = "payment_method"
	KindCreditTerms   Kind = "credit_terms"
)

var (
	// ErrInvalidPercent is returned when a rate to be stored lies outside
	// [0,100] or has more than 2 fraction digits.
	ErrInvalidPercent = errors.New("discount percent must be within 0..100 with at most 2 fraction digits")
	// ErrInvalidKey is returned when the rate key (type name, method name or
	// day count) is unusable.
	ErrInvalidKey = errors.New("invalid discount key")
	// ErrUnknownPaymentMethod is returned when a rate targets a payment
	// method that does not exist.
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	// ErrCacheMiss is returned by a Cache that holds no rate table.
	ErrCacheMiss = errors.New("rate cache miss")
)

// Rate is one configured discount. Key is the product type name, the payment
// method name, or the number of credit-terms days.
type Rate struct {
	Kind      Kind
	KeyID     int64
	Key       string
	Percent   decimal.Decimal
	UpdatedAt time.Time
}

// Repository stores discount rates. Each Set* call replaces the active rate
// for its key.
type Repository interface {
	SetProductTypeRate(ctx context.Context, productType string, pct decimal.Decimal) (*Rate, error)
	SetPaymentMethodRate(ctx context.Context, method string, pct decimal.Decimal) (*Rate, error)
	SetCreditTermsRate(ctx context.Context, days int, pct decimal.Decimal) (*Rate, error)
	// Rates loads every active rate into a lookup table for the engine.
	Rates(ctx context.Context) (*pricing.RateTable, error)
	List(ctx context.Context) ([]Rate, error)
}

// Cache holds a copy of the full rate table.
//
// Every Invalidate starts a new generation. Get reports the generation it
// observed, and Set stores a table only while that generation is current, so
// a table loaded before a write cannot be cached after the write's
// invalidation.
type Cache interface {
	// Get returns the cached table, or ErrCacheMiss and the generation to
	// hand to Set once the table has been loaded.
	Get(ctx context.Context) (*pricing.RateTable, int64, error)
	Set(ctx context.Context, gen int64, t *pricing.RateTable) error
	Invalidate(ctx context.Context) error
}

// NopCache never holds anything.
type NopCache struct{}

func (NopCache) Get(context.Context) (*pricing.RateTable, int64, error) { return nil, 0, ErrCacheMiss }
func (NopCache) Set(context.Context, int64, *pricing.RateTable) error { return nil }
func (NopCache) Invalidate(context.Context) error { return nil }
