package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/product"
)

type productRequest struct {
	Name        string           `json:"name" validate:"required,max=100"`
	ProductType string           `json:"product_type" validate:"required,max=50"`
	ListPrice   *decimal.Decimal `json:"list_price" validate:"required"`
}

func (p *productRequest) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "name":
		p.Name, err = d.Str()
	case "product_type":
		p.ProductType, err = d.Str()
	case "list_price":
		var v decimal.Decimal
		v, err = decodeDecimal(d)
		p.ListPrice = &v
	default:
		err = d.Skip()
	}
	return err
}

// CreateProduct handles POST /api/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeObject(r, req.decode); err != nil {
		mapError(w, r, err)
		return
	}
	if err := h.check(&req); err != nil {
		mapError(w, r, err)
		return
	}

	p := &product.Product{
		Name:        req.Name,
		ProductType: req.ProductType,
		ListPrice:   *req.ListPrice,
	}
	if err := p.Validate(); err != nil {
		mapError(w, r, err)
		return
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

// ListProducts handles GET /api/products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.products.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeProduct(e, &list[i])
			}
		})
	})
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		mapError(w, r, err)
		return
	}
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

// ListPaymentMethods handles GET /api/payment-methods.
func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	list, err := h.methods.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for _, m := range list {
				e.Obj(func(e *jx.Encoder) {
					e.Field("payment_method_id", func(e *jx.Encoder) { e.Int64(m.ID) })
					e.Field("name", func(e *jx.Encoder) { e.Str(m.Name) })
				})
			}
		})
	})
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("product_id", func(e *jx.Encoder) { e.Int64(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("product_type", func(e *jx.Encoder) { e.Str(p.ProductType) })
		e.Field("list_price", func(e *jx.Encoder) { money(e, p.ListPrice) })
	})
}
