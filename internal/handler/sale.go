package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/sale"
)

const timeLayout = time.RFC3339

type saleRequest struct {
	CustomerID      int64             `json:"customer_id" validate:"required,gt=0"`
	PaymentMethodID int64             `json:"payment_method_id" validate:"gte=0"`
	PaymentMethod   string            `json:"payment_method" validate:"required_without=PaymentMethodID,max=50"`
	Items           []saleItemRequest `json:"items" validate:"dive"`
}

// Quantity is checked by the sale service so the error names the product.
type saleItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity"`
}

func (s *saleRequest) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "customer_id":
		s.CustomerID, err = d.Int64()
	case "payment_method_id":
		s.PaymentMethodID, err = d.Int64()
	case "payment_method":
		s.PaymentMethod, err = d.Str()
	case "items":
		err = d.Arr(func(d *jx.Decoder) error {
			var item saleItemRequest
			if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				var err error
				switch string(key) {
				case "product_id":
					item.ProductID, err = d.Int64()
				case "quantity":
					item.Quantity, err = d.Int()
				default:
					err = d.Skip()
				}
				return err
			}); err != nil {
				return err
			}
			s.Items = append(s.Items, item)
			return nil
		})
	default:
		err = d.Skip()
	}
	return err
}

func (s *saleRequest) domain() sale.Request {
	items := make([]sale.Item, len(s.Items))
	for i, it := range s.Items {
		items[i] = sale.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return sale.Request{
		CustomerID:      s.CustomerID,
		PaymentMethodID: s.PaymentMethodID,
		PaymentMethod:   s.PaymentMethod,
		Items:           items,
	}
}

func (h *Handler) decodeSale(r *http.Request) (sale.Request, error) {
	var req saleRequest
	if err := decodeObject(r, req.decode); err != nil {
		return sale.Request{}, err
	}
	if err := h.check(&req); err != nil {
		return sale.Request{}, err
	}
	return req.domain(), nil
}

// CreateSale handles POST /api/sales.
func (h *Handler) CreateSale(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSale(r)
	if err != nil {
		mapError(w, r, err)
		return
	}
	s, err := h.sales.Create(r.Context(), req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeSale(e, s) })
}

// QuoteSale handles POST /api/sales/quote.
func (h *Handler) QuoteSale(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeSale(r)
	if err != nil {
		mapError(w, r, err)
		return
	}
	q, err := h.sales.Quote(r.Context(), req)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("customer_id", func(e *jx.Encoder) { e.Int64(q.Customer.ID) })
			e.Field("payment_method", func(e *jx.Encoder) { e.Str(q.PaymentMethod.Name) })
			e.Field("tax_rate_percent", func(e *jx.Encoder) { money(e, q.Breakdown.TaxRatePercent) })
			e.Field("breakdown", func(e *jx.Encoder) { encodeBreakdown(e, q.Breakdown) })
		})
	})
}

// GetSale handles GET /api/sales/{id}.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	s, err := h.sales.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSale(e, s) })
}

// ListSales handles GET /api/sales.
func (h *Handler) ListSales(w http.ResponseWriter, r *http.Request) {
	list, err := h.sales.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				s := &list[i]
				e.Obj(func(e *jx.Encoder) {
					e.Field("sale_id", func(e *jx.Encoder) { e.Str(s.ID) })
					e.Field("customer_id", func(e *jx.Encoder) { e.Int64(s.CustomerID) })
					e.Field("payment_method", func(e *jx.Encoder) { e.Str(s.PaymentMethod) })
					e.Field("subtotal", func(e *jx.Encoder) { money(e, s.Subtotal) })
					e.Field("tax", func(e *jx.Encoder) { money(e, s.Tax) })
					e.Field("total", func(e *jx.Encoder) { money(e, s.Total) })
					e.Field("total_discounts_amount", func(e *jx.Encoder) { money(e, s.TotalDiscounts) })
					e.Field("sale_datetime", func(e *jx.Encoder) { e.Str(s.CreatedAt.UTC().Format(timeLayout)) })
				})
			}
		})
	})
}

func encodeSale(e *jx.Encoder, s *sale.Sale) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("sale_id", func(e *jx.Encoder) { e.Str(s.ID) })
		e.Field("customer_id", func(e *jx.Encoder) { e.Int64(s.CustomerID) })
		e.Field("payment_method", func(e *jx.Encoder) { e.Str(s.PaymentMethod) })
		e.Field("tax_rate_percent", func(e *jx.Encoder) { money(e, s.TaxRatePercent) })
		e.Field("sale_datetime", func(e *jx.Encoder) { e.Str(s.CreatedAt.UTC().Format(timeLayout)) })
		e.Field("breakdown", func(e *jx.Encoder) { encodeBreakdown(e, s.Breakdown()) })
	})
}

func encodeBreakdown(e *jx.Encoder, b *pricing.SaleBreakdown) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("lines", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, l := range b.Lines {
					e.Obj(func(e *jx.Encoder) {
						e.Field("product_id", func(e *jx.Encoder) { e.Int64(l.ProductID) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(l.Quantity) })
						e.Field("list_price", func(e *jx.Encoder) { money(e, l.ListPrice) })
						e.Field("discounts", func(e *jx.Encoder) {
							e.Obj(func(e *jx.Encoder) {
								e.Field("product_type", func(e *jx.Encoder) { money(e, l.ProductTypeDiscount) })
								e.Field("payment_method", func(e *jx.Encoder) { money(e, l.PaymentMethodDiscount) })
								e.Field("credit_terms", func(e *jx.Encoder) { money(e, l.CreditTermsDiscount) })
							})
						})
						e.Field("line_subtotal_after_discounts", func(e *jx.Encoder) { money(e, l.Subtotal) })
					})
				}
			})
		})
		e.Field("subtotal", func(e *jx.Encoder) { money(e, b.Subtotal) })
		e.Field("tax", func(e *jx.Encoder) { money(e, b.Tax) })
		e.Field("total", func(e *jx.Encoder) { money(e, b.Total) })
		e.Field("total_discounts_amount", func(e *jx.Encoder) { money(e, b.TotalDiscounts) })
	})
}
