// Package pricing computes sale totals: sequential percentage discounts per
// line, 16% tax on the discounted subtotal, and an itemized breakdown.
//
// The engine is a pure function of its inputs. Product and discount-rate data
// are supplied through the Products and Rates lookups, which the caller fills
// from whatever storage it uses.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// StoreCredit is the payment method name that enables the credit-terms
// discount. The match is exact and case-sensitive.
const StoreCredit = "Store Credit"

// TaxRatePercent is the sales tax applied to the discounted subtotal.
var TaxRatePercent = decimal.RequireFromString("16.00")

var (
	// ErrInvalidQuantity is returned when a line item has quantity < 1.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	// ErrNotFound is returned when a referenced record is missing from a lookup.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRate is returned when a configured discount rate is outside [0,100].
	ErrInvalidRate = errors.New("discount rate out of range")
	// ErrInvalidPrice is returned when a product's list price is negative or
	// not a whole number of cents.
	ErrInvalidPrice = errors.New("list price must be a non-negative amount of whole cents")
)

// LineItem is one product/quantity request within a sale.
type LineItem struct {
	ProductID int64
	Quantity  int
}

// Product is the catalog data the engine needs for a line.
type Product struct {
	ID            int64
	ProductTypeID int64
	ListPrice     decimal.Decimal
}

// Customer carries the credit terms used to key the Store Credit discount.
type Customer struct {
	ID              int64
	CreditTermsDays int
}

// PaymentMethod identifies how the sale is paid.
type PaymentMethod struct {
	ID   int64
	Name string
}

// IsStoreCredit reports whether the method triggers the credit-terms discount.
func (m PaymentMethod) IsStoreCredit() bool {
	return m.Name == StoreCredit
}

// Products resolves catalog entries by id.
type Products interface {
	Product(id int64) (Product, bool)
}

// Rates resolves discount percentages. A false second result means no rate is
// configured for the key, which the engine treats as 0%.
type Rates interface {
	ProductTypeRate(productTypeID int64) (decimal.Decimal, bool)
	PaymentMethodRate(paymentMethodID int64) (decimal.Decimal, bool)
	CreditTermsRate(days int) (decimal.Decimal, bool)
}

// ProductMap is a Products lookup backed by a map.
type ProductMap map[int64]Product

// Product implements Products.
func (m ProductMap) Product(id int64) (Product, bool) {
	p, ok := m[id]
	return p, ok
}

// RateTable is a Rates lookup backed by maps. The zero value has no rates.
type RateTable struct {
	ProductType   map[int64]decimal.Decimal `json:"product_type"`
	PaymentMethod map[int64]decimal.Decimal `json:"payment_method"`
	CreditTerms   map[int]decimal.Decimal   `json:"credit_terms"`
}

// ProductTypeRate implements Rates.
func (t *RateTable) ProductTypeRate(productTypeID int64) (decimal.Decimal, bool) {
	r, ok := t.ProductType[productTypeID]
	return r, ok
}

// PaymentMethodRate implements Rates.
func (t *RateTable) PaymentMethodRate(paymentMethodID int64) (decimal.Decimal, bool) {
	r, ok := t.PaymentMethod[paymentMethodID]
	return r, ok
}

// CreditTermsRate implements Rates.
func (t *RateTable) CreditTermsRate(days int) (decimal.Decimal, bool) {
	r, ok := t.CreditTerms[days]
	return r, ok
}

// LineBreakdown is the priced result for one line item. Every monetary field
// is rounded to 2 fraction digits.
type LineBreakdown struct {
	ProductID             int64
	Quantity              int
	ListPrice             decimal.Decimal
	ProductTypeDiscount   decimal.Decimal
	PaymentMethodDiscount decimal.Decimal
	CreditTermsDiscount   decimal.Decimal
	Subtotal              decimal.Decimal
}

// Discount returns the sum of the three discount amounts of the line.
func (l LineBreakdown) Discount() decimal.Decimal {
	return l.ProductTypeDiscount.Add(l.PaymentMethodDiscount).Add(l.CreditTermsDiscount)
}

// SaleBreakdown is the priced result for a whole sale.
type SaleBreakdown struct {
	Lines          []LineBreakdown
	Subtotal       decimal.Decimal
	TaxRatePercent decimal.Decimal
	Tax            decimal.Decimal
	Total          decimal.Decimal
	TotalDiscounts decimal.Decimal
}

// InvalidQuantityError reports a line item with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d (got %d)", e.ProductID, e.Quantity)
}

// Unwrap returns ErrInvalidQuantity.
func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// NotFoundError reports a record missing from a lookup.
type NotFoundError struct {
	Kind string
	ID   int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Kind, e.ID)
}

// Unwrap returns ErrNotFound.
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidRateError reports a stored discount rate outside [0,100]. It points
// at bad configuration data rather than at the request.
type InvalidRateError struct {
	Kind string
	Key  int64
	Rate decimal.Decimal
}

func (e *InvalidRateError) Error() string {
	return fmt.Sprintf("%s discount rate %s for key %d is outside [0,100]", e.Kind, e.Rate.String(), e.Key)
}

// Unwrap returns ErrInvalidRate.
func (e *InvalidRateError) Unwrap() error { return ErrInvalidRate }

// ValidRate reports whether pct is a usable discount percentage.
func ValidRate(pct decimal.Decimal) bool {
	return !pct.IsNegative() && pct.LessThanOrEqual(hundred)
}
