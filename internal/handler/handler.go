// Package handler exposes the pricing service over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/customer"
	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/payment"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/product"
	"github.com/xenking/sales-pricing/internal/domain/sale"
)

// Sales is the part of sale.Service the handler uses.
type Sales interface {
	Quote(ctx context.Context, req sale.Request) (*sale.Quote, error)
	Create(ctx context.Context, req sale.Request) (*sale.Sale, error)
	Get(ctx context.Context, id string) (*sale.Sale, error)
	List(ctx context.Context) ([]sale.Sale, error)
}

// Discounts is the part of discount.Service the handler uses.
type Discounts interface {
	SetProductTypeRate(ctx context.Context, productType string, pct decimal.Decimal) (*discount.Rate, error)
	SetPaymentMethodRate(ctx context.Context, method string, pct decimal.Decimal) (*discount.Rate, error)
	SetCreditTermsRate(ctx context.Context, days int, pct decimal.Decimal) (*discount.Rate, error)
	List(ctx context.Context) ([]discount.Rate, error)
}

// Deps lists the collaborators of Handler.
type Deps struct {
	Customers customer.Repository
	Products  product.Repository
	Methods   payment.Repository
	Discounts Discounts
	Sales     Sales
}

// Handler serves the /api routes.
type Handler struct {
	customers customer.Repository
	products  product.Repository
	methods   payment.Repository
	discounts Discounts
	sales     Sales
	validate  *validator.Validate
}

// New returns a Handler backed by deps.
func New(deps Deps) *Handler {
	return &Handler{
		customers: deps.Customers,
		products:  deps.Products,
		methods:   deps.Methods,
		discounts: deps.Discounts,
		sales:     deps.Sales,
		validate:  newValidator(),
	}
}

// Routes returns the API router, meant to be mounted under /api.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/customers", func(r chi.Router) {
		r.Post("/", h.CreateCustomer)
		r.Get("/", h.ListCustomers)
		r.Get("/{id}", h.GetCustomer)
	})
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.CreateProduct)
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})
	r.Get("/payment-methods", h.ListPaymentMethods)
	r.Route("/discounts", func(r chi.Router) {
		r.Get("/", h.ListDiscounts)
		r.Post("/product", h.SetProductTypeDiscount)
		r.Post("/payment", h.SetPaymentMethodDiscount)
		r.Post("/credit-terms", h.SetCreditTermsDiscount)
	})
	r.Route("/sales", func(r chi.Router) {
		r.Post("/", h.CreateSale)
		r.Post("/quote", h.QuoteSale)
		r.Get("/", h.ListSales)
		r.Get("/{id}", h.GetSale)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// check runs struct validation on a decoded request.
func (h *Handler) check(req any) error {
	if err := h.validate.Struct(req); err != nil {
		return &validationError{msg: validationMessage(err)}
	}
	return nil
}

type validationError struct{ msg string }

func (e *validationError) Error() string { return e.msg }

func (e *validationError) Unwrap() error { return errValidation }

// Banner serves GET / with the service name and active discount model.
func Banner(service string, model pricing.Model) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				e.Field("service", func(e *jx.Encoder) { e.Str(service) })
				e.Field("discount_model", func(e *jx.Encoder) { e.Str(string(model)) })
				e.Field("tax_rate_percent", func(e *jx.Encoder) { money(e, pricing.TaxRatePercent) })
			})
		})
	}
}
