package customer

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/go-faster/errors"
)

// Type classifies a customer account.
type Type string

const (
	TypeVIP     Type = "VIP"
	TypeRegular Type = "Regular"
)

// MaxCreditTermsDays bounds the credit terms a customer may be granted.
const MaxCreditTermsDays = 365

var (
	// ErrNotFound is returned when a requested customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrInvalid is returned when customer fields fail validation.
	ErrInvalid = errors.New("invalid customer")
)

// Customer is a buyer together with the credit terms granted to them.
type Customer struct {
	ID              int64
	Name            string
	Type            Type
	CreditTermsDays int
	CreatedAt       time.Time
}

// Validate checks the fields a caller supplies when creating a customer.
func (c Customer) Validate() error {
	if n := utf8.RuneCountInString(c.Name); n == 0 || n > 100 {
		return errors.Wrap(ErrInvalid, "name must be 1..100 characters")
	}
	if c.Type != TypeVIP && c.Type != TypeRegular {
		return errors.Wrapf(ErrInvalid, "unknown customer type %q", c.Type)
	}
	if c.CreditTermsDays < 0 || c.CreditTermsDays > MaxCreditTermsDays {
		return errors.Wrapf(ErrInvalid, "credit terms must be within 0..%d days", MaxCreditTermsDays)
	}
	return nil
}

// Repository defines persistence operations for customers. Soft-deleted rows
// are never returned.
type Repository interface {
	Create(ctx context.Context, c *Customer) error
	List(ctx context.Context) ([]Customer, error)
	GetByID(ctx context.Context, id int64) (*Customer, error)
}
