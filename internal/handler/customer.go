package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/sales-pricing/internal/domain/customer"
)

type customerRequest struct {
	Name            string `json:"name" validate:"required,max=100"`
	CustomerType    string `json:"customer_type" validate:"required,oneof=VIP Regular"`
	CreditTermsDays *int   `json:"credit_terms_days" validate:"required,gte=0,lte=365"`
}

func (c *customerRequest) decode(d *jx.Decoder, key string) error {
	var err error
	switch key {
	case "name":
		c.Name, err = d.Str()
	case "customer_type":
		c.CustomerType, err = d.Str()
	case "credit_terms_days":
		var v int
		v, err = d.Int()
		c.CreditTermsDays = &v
	default:
		err = d.Skip()
	}
	return err
}

// CreateCustomer handles POST /api/customers.
func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req customerRequest
	if err := decodeObject(r, req.decode); err != nil {
		mapError(w, r, err)
		return
	}
	if err := h.check(&req); err != nil {
		mapError(w, r, err)
		return
	}

	c := &customer.Customer{
		Name:            req.Name,
		Type:            customer.Type(req.CustomerType),
		CreditTermsDays: *req.CreditTermsDays,
	}
	if err := c.Validate(); err != nil {
		mapError(w, r, err)
		return
	}
	if err := h.customers.Create(r.Context(), c); err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

// ListCustomers handles GET /api/customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	list, err := h.customers.List(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Arr(func(e *jx.Encoder) {
			for i := range list {
				encodeCustomer(e, &list[i])
			}
		})
	})
}

// GetCustomer handles GET /api/customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		mapError(w, r, err)
		return
	}
	c, err := h.customers.GetByID(r.Context(), id)
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCustomer(e, c) })
}

func encodeCustomer(e *jx.Encoder, c *customer.Customer) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("customer_id", func(e *jx.Encoder) { e.Int64(c.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(c.Name) })
		e.Field("customer_type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("credit_terms_days", func(e *jx.Encoder) { e.Int(c.CreditTermsDays) })
	})
}

// pathID parses the numeric {id} route parameter.
func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.Wrapf(errBadRequest, "invalid id %q", raw)
	}
	return id, nil
}
