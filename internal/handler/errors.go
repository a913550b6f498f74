package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/sales-pricing/internal/domain/customer"
	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/product"
	"github.com/xenking/sales-pricing/internal/domain/sale"
)

// errValidation marks request fields that failed validation.
var errValidation = errors.New("validation failed")

// statusOf maps a domain error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, sale.ErrPaymentMethodNotFound),
		errors.Is(err, discount.ErrUnknownPaymentMethod):
		return http.StatusBadRequest
	case errors.Is(err, errValidation),
		errors.Is(err, customer.ErrInvalid),
		errors.Is(err, product.ErrInvalid),
		errors.Is(err, discount.ErrInvalidPercent),
		errors.Is(err, discount.ErrInvalidKey),
		errors.Is(err, sale.ErrEmptyItems),
		errors.Is(err, sale.ErrQuantityTooLarge),
		errors.Is(err, sale.ErrAmountTooLarge),
		errors.Is(err, pricing.ErrInvalidQuantity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, sale.ErrNotFound),
		errors.Is(err, sale.ErrCustomerNotFound),
		errors.Is(err, pricing.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, product.ErrDuplicateName):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// mapError writes err as a JSON error response. Server errors are logged and
// their details are not exposed.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status < http.StatusInternalServerError {
		writeError(w, status, err.Error())
		return
	}

	lg := zctx.From(r.Context())
	var rateErr *pricing.InvalidRateError
	switch {
	case errors.As(err, &rateErr):
		lg.Error("Stored discount rate out of range",
			zap.String("kind", rateErr.Kind),
			zap.Int64("key", rateErr.Key),
			zap.String("rate", rateErr.Rate.String()),
		)
	case errors.Is(err, pricing.ErrInvalidPrice):
		lg.Error("Stored list price is unusable", zap.Error(err))
	default:
		lg.Error("Request failed", zap.Error(err))
	}
	writeError(w, status, "internal server error")
}
