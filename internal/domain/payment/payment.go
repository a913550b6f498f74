// Package payment holds the payment method reference data.
package payment

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/sales-pricing/internal/domain/pricing"
)

// StoreCredit is the method that unlocks the credit-terms discount.
const StoreCredit = pricing.StoreCredit

// Names lists the methods every installation is seeded with, in id order.
var Names = []string{
	"Cash",
	"Credit Card",
	"Debit Card",
	StoreCredit,
	"Bank Transfer",
	"Digital Wallet",
}

// ErrNotFound is returned when a payment method does not exist.
var ErrNotFound = errors.New("payment method not found")

// Method is a way a sale can be paid.
type Method struct {
	ID   int64
	Name string
}

// Pricing converts the method into the engine's view of it.
func (m Method) Pricing() pricing.PaymentMethod {
	return pricing.PaymentMethod{ID: m.ID, Name: m.Name}
}

// Repository provides read access to payment methods.
type Repository interface {
	List(ctx context.Context) ([]Method, error)
	GetByID(ctx context.Context, id int64) (*Method, error)
	GetByName(ctx context.Context, name string) (*Method, error)
}
