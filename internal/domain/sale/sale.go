package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/pricing"
)

// ErrNotFound is returned when a requested sale does not exist.
var ErrNotFound = errors.New("sale not found")

// Sale is a priced and persisted sale. Monetary fields are fixed at creation
// and never recomputed from current rates.
type Sale struct {
	ID              string
	CustomerID      int64
	PaymentMethodID int64
	PaymentMethod   string
	TaxRatePercent  decimal.Decimal
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	TotalDiscounts  decimal.Decimal
	Lines           []pricing.LineBreakdown
	CreatedAt       time.Time
}

// Breakdown returns the stored totals in the engine's result shape.
func (s *Sale) Breakdown() *pricing.SaleBreakdown {
	return &pricing.SaleBreakdown{
		Lines:          s.Lines,
		Subtotal:       s.Subtotal,
		TaxRatePercent: s.TaxRatePercent,
		Tax:            s.Tax,
		Total:          s.Total,
		TotalDiscounts: s.TotalDiscounts,
	}
}

// Repository defines persistence operations for sales.
type Repository interface {
	// Create stores the sale header and every line atomically.
	Create(ctx context.Context, s *Sale) error
	GetByID(ctx context.Context, id string) (*Sale, error)
	// List returns sale headers without lines, newest first.
	List(ctx context.Context) ([]Sale, error)
}
