package sale

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/sales-pricing/internal/domain/customer"
	"github.com/xenking/sales-pricing/internal/domain/payment"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/product"
)

// Sentinel errors for sale requests.
var (
	ErrEmptyItems            = errors.New("items required")
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")
	ErrQuantityTooLarge      = errors.New("quantity too large")
	ErrAmountTooLarge        = errors.New("sale amount too large")
)

// MaxQuantity caps a single line's quantity.
const MaxQuantity = 1_000_000

// MaxAmount is the largest money value a stored sale can hold (NUMERIC(12,2)).
// It bounds the gross amount before discounts as well as the total.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// Item is one requested product and quantity.
type Item struct {
	ProductID int64
	Quantity  int
}

// Request describes a sale to price. The payment method is resolved by
// PaymentMethodID when set, otherwise by PaymentMethod name.
type Request struct {
	CustomerID      int64
	PaymentMethodID int64
	PaymentMethod   string
	Items           []Item
}

// Quote is a priced sale that has not been stored.
type Quote struct {
	Customer      *customer.Customer
	PaymentMethod *payment.Method
	Breakdown     *pricing.SaleBreakdown
}

// RateSource supplies the current discount rate table.
type RateSource interface {
	Rates(ctx context.Context) (*pricing.RateTable, error)
}

// Service prices and records sales.
type Service struct {
	customers customer.Repository
	methods   payment.Repository
	products  product.Repository
	rates     RateSource
	sales     Repository
	engine    *pricing.Engine
	now       func() time.Time

	priced     metric.Int64Counter
	discounted metric.Float64Counter
}

// NewService creates a sale Service with the required domain dependencies.
func NewService(
	customers customer.Repository,
	methods payment.Repository,
	products product.Repository,
	rates RateSource,
	sales Repository,
	engine *pricing.Engine,
	meter metric.Meter,
) (*Service, error) {
	priced, err := meter.Int64Counter("sales.priced",
		metric.WithDescription("Sales priced by the engine"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sales.priced counter")
	}
	discounted, err := meter.Float64Counter("sales.discount_amount",
		metric.WithDescription("Total discount granted on stored sales"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sales.discount_amount counter")
	}
	return &Service{
		customers:  customers,
		methods:    methods,
		products:   products,
		rates:      rates,
		sales:      sales,
		engine:     engine,
		now:        time.Now,
		priced:     priced,
		discounted: discounted,
	}, nil
}

// Quote resolves the customer, payment method, products and rates for the
// request and prices it without storing anything.
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	q, err := s.quote(ctx, req)
	if err != nil {
		return nil, err
	}
	s.priced.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "quote")))
	return q, nil
}

// Create prices the request and stores the sale with its lines.
func (s *Service) Create(ctx context.Context, req Request) (*Sale, error) {
	q, err := s.quote(ctx, req)
	if err != nil {
		return nil, err
	}

	b := q.Breakdown
	sl := &Sale{
		ID:              uuid.NewString(),
		CustomerID:      q.Customer.ID,
		PaymentMethodID: q.PaymentMethod.ID,
		PaymentMethod:   q.PaymentMethod.Name,
		TaxRatePercent:  b.TaxRatePercent,
		Subtotal:        b.Subtotal,
		Tax:             b.Tax,
		Total:           b.Total,
		TotalDiscounts:  b.TotalDiscounts,
		Lines:           b.Lines,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.sales.Create(ctx, sl); err != nil {
		return nil, errors.Wrap(err, "create sale")
	}

	attrs := metric.WithAttributes(attribute.String("payment_method", sl.PaymentMethod))
	s.priced.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "create")))
	s.discounted.Add(ctx, sl.TotalDiscounts.InexactFloat64(), attrs)
	return sl, nil
}

// Get returns a stored sale with its line breakdown.
func (s *Service) Get(ctx context.Context, id string) (*Sale, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.sales.GetByID(ctx, id)
}

// List returns stored sale headers, newest first.
func (s *Service) List(ctx context.Context) ([]Sale, error) {
	return s.sales.List(ctx)
}

func (s *Service) quote(ctx context.Context, req Request) (*Quote, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	// Reject bad quantities before touching storage.
	ids := make([]int64, 0, len(req.Items))
	seen := make(map[int64]struct{}, len(req.Items))
	items := make([]pricing.LineItem, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &pricing.InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		if item.Quantity > MaxQuantity {
			return nil, errors.Wrapf(ErrQuantityTooLarge, "product %d quantity %d exceeds %d", item.ProductID, item.Quantity, MaxQuantity)
		}
		items[i] = pricing.LineItem{ProductID: item.ProductID, Quantity: item.Quantity}
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}

	c, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, errors.Wrapf(ErrCustomerNotFound, "customer %d", req.CustomerID)
		}
		return nil, errors.Wrap(err, "get customer")
	}

	m, err := s.paymentMethod(ctx, req)
	if err != nil {
		return nil, err
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	rates, err := s.rates.Rates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get rates")
	}

	b, err := s.engine.PriceSale(pricing.Input{
		Customer:      pricing.Customer{ID: c.ID, CreditTermsDays: c.CreditTermsDays},
		PaymentMethod: m.Pricing(),
		Items:         items,
		Products:      product.Lookup(fetched),
		Rates:         rates,
	})
	if err != nil {
		return nil, errors.Wrap(err, "price sale")
	}
	if err := checkAmounts(b); err != nil {
		return nil, err
	}

	return &Quote{Customer: c, PaymentMethod: m, Breakdown: b}, nil
}

// checkAmounts rejects a breakdown that storage could not hold, so a quote
// never succeeds where the same create would fail.
func checkAmounts(b *pricing.SaleBreakdown) error {
	// Gross bounds every line base, line discount and the discount total.
	gross := b.Subtotal.Add(b.TotalDiscounts)
	switch {
	case gross.GreaterThan(MaxAmount):
		return errors.Wrapf(ErrAmountTooLarge, "amount before discounts %s exceeds %s", gross.StringFixed(2), MaxAmount.StringFixed(2))
	case b.Total.GreaterThan(MaxAmount):
		return errors.Wrapf(ErrAmountTooLarge, "total %s exceeds %s", b.Total.StringFixed(2), MaxAmount.StringFixed(2))
	}
	return nil
}

func (s *Service) paymentMethod(ctx context.Context, req Request) (*payment.Method, error) {
	var (
		m   *payment.Method
		err error
	)
	switch {
	case req.PaymentMethodID != 0:
		m, err = s.methods.GetByID(ctx, req.PaymentMethodID)
	case req.PaymentMethod != "":
		m, err = s.methods.GetByName(ctx, req.PaymentMethod)
	default:
		return nil, errors.Wrap(ErrPaymentMethodNotFound, "payment method is required")
	}
	if err != nil {
		if errors.Is(err, payment.ErrNotFound) {
			if req.PaymentMethodID != 0 {
				return nil, errors.Wrapf(ErrPaymentMethodNotFound, "payment method %d", req.PaymentMethodID)
			}
			return nil, errors.Wrapf(ErrPaymentMethodNotFound, "payment method %q", req.PaymentMethod)
		}
		return nil, errors.Wrap(err, "get payment method")
	}
	return m, nil
}

