package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/discount"
)

// discountRequest is the union of the three rate bodies. Each endpoint
// validates only the fields it uses.
type discountRequest struct {
	ProductType     string
	PaymentMethod   string
	CreditTermsDays *int
	DiscountPercent *decimal.Decimal
}

func (q *discountRequest) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "product_type":
		q.ProductType, err = d.Str()
	case "payment_method":
		q.PaymentMethod, err = d.Str()
	case "credit_terms_days":
		var v int
		v, err = d.Int()
		q.CreditTermsDays = &v
	case "discount_percent":
		var v decimal.Decimal
		v, err = decodeDecimal(d)
		q.DiscountPercent = &v
	default:
		err = d.Skip()
	}
	return err
}

type productTypeDiscount struct {
	ProductType     string           `json:"product_type" validate:"required,max=50"`
	DiscountPercent *decimal.Decimal `json:"discount_percent" validate:"required"`
}

type paymentMethodDiscount struct {
	PaymentMethod   string           `json:"payment_method" validate:"required,max=50"`
	DiscountPercent *decimal.Decimal `json:"discount_percent" validate:"required"`
}

type creditTermsDiscount struct {
	CreditTermsDays *int             `json:"credit_terms_days" validate:"required,gte=0,lte=365"`
	DiscountPercent *decimal.Decimal `json:"discount_percent" validate:"required"`
}

func decodeDiscount(r *http.Request) (*discountRequest, error) {
	var req discountRequest
	if err := decodeObject(r, req.decode); err != nil {
		return nil, err
	}
	return &req, nil
}

// SetProductTypeDiscount handles POST /api/discounts/product.
func (h *Handler) SetProductTypeDiscount(w http.ResponseWriter, r *http.Request) {
	req, err := decodeDiscount(r)
	if err == nil {
		err = h.check(&productTypeDiscount{ProductType: req.ProductType, DiscountPercent: req.DiscountPercent})
	}
	if err != nil {
		mapError(w, r, err)
		return
	}
	rate, err := h.discounts.SetProductTypeRate(r.Context(), req.ProductType, *req.DiscountPercent)
	h.writeRate(w, r, rate, err)
}

// SetPaymentMethodDiscount handles POST /api/discounts/payment.
func (h *Handler) SetPaymentMethodDiscount(w http.ResponseWriter, r *http.Request) {
	req, err := decodeDiscount(r)
	if err == nil {
		err = h.check(&paymentMethodDiscount{PaymentMethod: req.PaymentMethod, DiscountPercent: req.DiscountPercent})
	}
	if err != nil {
		mapError(w, r, err)
		return
	}
	rate, err := h.discounts.SetPaymentMethodRate(r.Context(), req.PaymentMethod, *req.DiscountPercent)
	h.writeRate(w, r, rate, err)
}

// SetCreditTermsDiscount handles POST /api/discounts/credit-terms.
func (h *Handler) SetCreditTermsDiscount(w http.ResponseWriter, r *http.Request) {
	req, err := decodeDiscount(r)
	if err == nil {
		err = h.check(&creditTermsDiscount{CreditTermsDays: req.CreditTermsDays, DiscountPercent: req.DiscountPercent})
	}
	if err != nil {
		mapError(w, r, err)
		return
	}
	rate, err := h.discounts.SetCreditTermsRate(r.Context(), *req.CreditTermsDays, *req.DiscountPercent)
	h.writeRate(w, r, rate, err)
}

func (h *Handler) writeRate(w http.ResponseWriter, r *http.Request, rate *discount.Rate, err error) {
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeRate(e, rate) })
}

// ListDiscounts handles GET /api/discounts.
func (h *Handler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	list, err := h.discounts.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeRate(e, &list[i])
			}
		})
	})
}

func encodeRate(e *jx.Encoder, rate *discount.Rate) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("kind", func(e *jx.Encoder) { e.Str(string(rate.Kind)) })
		switch rate.Kind {
		case discount.KindProductType:
			e.Field("product_type", func(e *jx.Encoder) { e.Str(rate.Key) })
		case discount.KindPaymentMethod:
			e.Field("payment_method", func(e *jx.Encoder) { e.Str(rate.Key) })
		case discount.KindCreditTerms:
			e.Field("credit_terms_days", func(e *jx.Encoder) { e.Int64(rate.KeyID) })
		}
		e.Field("discount_percent", func(e *jx.Encoder) { money(e, rate.Percent) })
		if !rate.UpdatedAt.IsZero() {
			e.Field("updated_at", func(e *jx.Encoder) { e.Str(rate.UpdatedAt.UTC().Format(timeLayout)) })
		}
	})
}
