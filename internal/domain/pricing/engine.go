package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Model selects how the per-line discounts combine.
type Model string

const (
	// ModelSequential applies each discount to the running total left by the
	// previous stage and rounds every stage to 2 fraction digits.
	ModelSequential Model = "sequential"
	// ModelFlat applies every discount to the original line base and sums
	// the amounts.
	//
	// Deprecated: kept to reproduce totals of sales priced before the
	// sequential rule was adopted. Use ModelSequential.
	ModelFlat Model = "flat"
)

// ParseModel converts a configuration value into a Model. An empty string
// selects ModelSequential.
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case "", ModelSequential:
		return ModelSequential, nil
	case ModelFlat:
		return ModelFlat, nil
	default:
		return "", errors.Errorf("unknown discount model %q", s)
	}
}

// Input holds everything needed to price one sale.
type Input struct {
	Customer      Customer
	PaymentMethod PaymentMethod
	Items         []LineItem
	Products      Products
	Rates         Rates
}

// Engine prices sales. It holds no per-call state and is safe for concurrent
// use.
type Engine struct {
	model   Model
	taxRate decimal.Decimal
}

// NewEngine returns an Engine using the given discount model and the fixed
// 16% tax rate.
func NewEngine(model Model) *Engine {
	if model == "" {
		model = ModelSequential
	}
	return &Engine{model: model, taxRate: TaxRatePercent}
}

// Model returns the discount model the engine applies.
func (e *Engine) Model() Model { return e.model }

// PriceSale applies discounts to every line, then computes subtotal, tax and
// total. Lines are returned in input order. List prices must be whole cents;
// anything finer fails with ErrInvalidPrice.
func (e *Engine) PriceSale(in Input) (*SaleBreakdown, error) {
	if in.Products == nil {
		return nil, errors.New("product lookup is required")
	}
	rates := in.Rates
	if rates == nil {
		rates = &RateTable{}
	}

	pct, ok := rates.PaymentMethodRate(in.PaymentMethod.ID)
	paymentRate, err := checkRate("payment method", in.PaymentMethod.ID, pct, ok)
	if err != nil {
		return nil, err
	}

	// The credit-terms rate only matters under Store Credit; other methods
	// never consult it, so a bad row there cannot fail their sales.
	creditRate := decimal.Zero
	storeCredit := in.PaymentMethod.IsStoreCredit()
	if storeCredit {
		pct, ok := rates.CreditTermsRate(in.Customer.CreditTermsDays)
		creditRate, err = checkRate("credit terms", int64(in.Customer.CreditTermsDays), pct, ok)
		if err != nil {
			return nil, err
		}
	}

	out := &SaleBreakdown{
		Lines:          make([]LineBreakdown, 0, len(in.Items)),
		Subtotal:       decimal.Zero,
		TaxRatePercent: e.taxRate,
		TotalDiscounts: decimal.Zero,
	}

	for _, item := range in.Items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID, Quantity: item.Quantity}
		}
		p, ok := in.Products.Product(item.ProductID)
		if !ok {
			return nil, &NotFoundError{Kind: "product", ID: item.ProductID}
		}
		if p.ListPrice.IsNegative() {
			return nil, errors.Wrapf(ErrInvalidPrice, "product %d", p.ID)
		}
		if !p.ListPrice.Equal(p.ListPrice.Round(2)) {
			return nil, errors.Wrapf(ErrInvalidPrice, "product %d list price %s has more than 2 fraction digits", p.ID, p.ListPrice)
		}

		pct, ok := rates.ProductTypeRate(p.ProductTypeID)
		productRate, err := checkRate("product type", p.ProductTypeID, pct, ok)
		if err != nil {
			return nil, err
		}

		line := e.priceLine(item, p, productRate, paymentRate, creditRate, storeCredit)
		out.Lines = append(out.Lines, line)
		out.Subtotal = out.Subtotal.Add(line.Subtotal)
		out.TotalDiscounts = out.TotalDiscounts.Add(line.Discount())
	}

	out.Tax = percentOf(out.Subtotal, e.taxRate)
	out.Total = out.Subtotal.Add(out.Tax)
	return out, nil
}

func (e *Engine) priceLine(item LineItem, p Product, productRate, paymentRate, creditRate decimal.Decimal, storeCredit bool) LineBreakdown {
	base := p.ListPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))

	line := LineBreakdown{
		ProductID:             item.ProductID,
		Quantity:              item.Quantity,
		ListPrice:             p.ListPrice,
		CreditTermsDiscount:   decimal.Zero,
		PaymentMethodDiscount: decimal.Zero,
	}

	if e.model == ModelFlat {
		line.ProductTypeDiscount = percentOf(base, productRate)
		line.PaymentMethodDiscount = percentOf(base, paymentRate)
		if storeCredit {
			line.CreditTermsDiscount = percentOf(base, creditRate)
		}
		line.Subtotal = floorAtZero(base.Sub(line.Discount())).Round(2)
		return line
	}

	afterProduct := applyRate(base, productRate)
	line.ProductTypeDiscount = base.Sub(afterProduct).Round(2)

	afterPayment := applyRate(afterProduct, paymentRate)
	line.PaymentMethodDiscount = afterProduct.Sub(afterPayment).Round(2)

	afterCredit := afterPayment
	if storeCredit {
		afterCredit = applyRate(afterPayment, creditRate)
		line.CreditTermsDiscount = afterPayment.Sub(afterCredit).Round(2)
	}

	line.Subtotal = afterCredit
	return line
}

// applyRate returns amount reduced by pct percent, rounded half-up to 2dp.
func applyRate(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(hundred.Sub(pct)).Div(hundred).Round(2)
}

// percentOf returns pct percent of amount, rounded half-up to 2dp.
func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(hundred).Round(2)
}

// checkRate turns a lookup result into a validated percentage. Missing rates
// count as zero; out-of-range rates are reported, never clamped.
func checkRate(kind string, key int64, pct decimal.Decimal, ok bool) (decimal.Decimal, error) {
	if !ok {
		return decimal.Zero, nil
	}
	if !ValidRate(pct) {
		return decimal.Zero, &InvalidRateError{Kind: kind, Key: key, Rate: pct}
	}
	return pct, nil
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
