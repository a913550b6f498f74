package discount

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/sales-pricing/internal/domain/customer"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
)

// Service validates rate writes and serves the rate table through an
// optional cache. Cache failures are logged and never surface to callers.
type Service struct {
	repo  Repository
	cache Cache
}

// NewService creates a discount Service. A nil cache disables caching.
func NewService(repo Repository, cache Cache) *Service {
	if cache == nil {
		cache = NopCache{}
	}
	return &Service{repo: repo, cache: cache}
}

// SetProductTypeRate stores the rate for a product type, creating the type if
// it does not exist yet.
func (s *Service) SetProductTypeRate(ctx context.Context, productType string, pct decimal.Decimal) (*Rate, error) {
	productType = strings.TrimSpace(productType)
	if productType == "" || len(productType) > 50 {
		return nil, errors.Wrap(ErrInvalidKey, "product type must be 1..50 characters")
	}
	if err := checkPercent(pct); err != nil {
		return nil, err
	}
	r, err := s.repo.SetProductTypeRate(ctx, productType, pct)
	if err != nil {
		return nil, errors.Wrap(err, "set product type rate")
	}
	s.invalidate(ctx)
	return r, nil
}

// SetPaymentMethodRate stores the rate for an existing payment method.
func (s *Service) SetPaymentMethodRate(ctx context.Context, method string, pct decimal.Decimal) (*Rate, error) {
	if method == "" || len(method) > 50 {
		return nil, errors.Wrap(ErrInvalidKey, "payment method must be 1..50 characters")
	}
	if err := checkPercent(pct); err != nil {
		return nil, err
	}
	r, err := s.repo.SetPaymentMethodRate(ctx, method, pct)
	if err != nil {
		return nil, errors.Wrap(err, "set payment method rate")
	}
	s.invalidate(ctx)
	return r, nil
}

// SetCreditTermsRate stores the Store Credit rate for customers with the
// given credit terms.
func (s *Service) SetCreditTermsRate(ctx context.Context, days int, pct decimal.Decimal) (*Rate, error) {
	if days < 0 || days > customer.MaxCreditTermsDays {
		return nil, errors.Wrapf(ErrInvalidKey, "credit terms must be within 0..%d days", customer.MaxCreditTermsDays)
	}
	if err := checkPercent(pct); err != nil {
		return nil, err
	}
	r, err := s.repo.SetCreditTermsRate(ctx, days, pct)
	if err != nil {
		return nil, errors.Wrap(err, "set credit terms rate")
	}
	s.invalidate(ctx)
	return r, nil
}

// List returns every active rate.
func (s *Service) List(ctx context.Context) ([]Rate, error) {
	return s.repo.List(ctx)
}

// Rates returns the current rate table, reading through the cache. A table
// loaded while a write invalidates the cache is returned but not cached.
func (s *Service) Rates(ctx context.Context) (*pricing.RateTable, error) {
	lg := zctx.From(ctx)

	t, gen, err := s.cache.Get(ctx)
	switch {
	case err == nil:
		return t, nil
	case !errors.Is(err, ErrCacheMiss):
		lg.Warn("Rate cache read failed", zap.Error(err))
	}

	t, err = s.repo.Rates(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load rates")
	}
	if err := s.cache.Set(ctx, gen, t); err != nil {
		lg.Warn("Rate cache write failed", zap.Error(err))
	}
	return t, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		zctx.From(ctx).Warn("Rate cache invalidation failed", zap.Error(err))
	}
}

func checkPercent(pct decimal.Decimal) error {
	if !pricing.ValidRate(pct) {
		return errors.Wrapf(ErrInvalidPercent, "got %s", pct.String())
	}
	if !pct.Equal(pct.Round(2)) {
		return errors.Wrapf(ErrInvalidPercent, "%s has more than 2 fraction digits", pct.String())
	}
	return nil
}
