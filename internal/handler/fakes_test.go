package handler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/sales-pricing/internal/domain/customer"
	"github.com/xenking/sales-pricing/internal/domain/discount"
	"github.com/xenking/sales-pricing/internal/domain/payment"
	"github.com/xenking/sales-pricing/internal/domain/pricing"
	"github.com/xenking/sales-pricing/internal/domain/product"
	"github.com/xenking/sales-pricing/internal/domain/sale"
)

// In-memory repositories shared by the handler tests.

type memCustomers struct {
	mu   sync.Mutex
	rows map[int64]customer.Customer
	err  error
}

func (m *memCustomers) Create(_ context.Context, c *customer.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c.ID = int64(len(m.rows) + 1)
	c.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.rows[c.ID] = *c
	return nil
}

func (m *memCustomers) List(context.Context) ([]customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]customer.Customer, 0, len(m.rows))
	for _, c := range m.rows {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memCustomers) GetByID(_ context.Context, id int64) (*customer.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

type memProducts struct {
	mu    sync.Mutex
	rows  map[int64]product.Product
	types map[string]int64
}

func (m *memProducts) typeID(name string) int64 {
	id, ok := m.types[name]
	if !ok {
		id = int64(len(m.types) + 1)
		m.types[name] = id
	}
	return id
}

func (m *memProducts) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.Name == p.Name {
			return product.ErrDuplicateName
		}
	}
	p.ID = int64(len(m.rows) + 1)
	p.ProductTypeID = m.typeID(p.ProductType)
	m.rows[p.ID] = *p
	return nil
}

func (m *memProducts) Upsert(ctx context.Context, p *product.Product) (bool, error) {
	return true, m.Create(ctx, p)
}

func (m *memProducts) List(context.Context) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]product.Product, 0, len(m.rows))
	for _, p := range m.rows {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memProducts) GetByID(_ context.Context, id int64) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *memProducts) GetByIDs(_ context.Context, ids []int64) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.rows[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memProducts) GetByName(_ context.Context, name string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.rows {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, product.ErrNotFound
}

type memMethods struct {
	rows []payment.Method
}

func (m *memMethods) List(context.Context) ([]payment.Method, error) { return m.rows, nil }

func (m *memMethods) GetByID(_ context.Context, id int64) (*payment.Method, error) {
	for _, pm := range m.rows {
		if pm.ID == id {
			return &pm, nil
		}
	}
	return nil, payment.ErrNotFound
}

func (m *memMethods) GetByName(_ context.Context, name string) (*payment.Method, error) {
	for _, pm := range m.rows {
		if pm.Name == name {
			return &pm, nil
		}
	}
	return nil, payment.ErrNotFound
}

type memRates struct {
	mu       sync.Mutex
	products *memProducts
	methods  *memMethods
	table    pricing.RateTable
}

func (m *memRates) SetProductTypeRate(_ context.Context, name string, pct decimal.Decimal) (*discount.Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products.mu.Lock()
	id := m.products.typeID(name)
	m.products.mu.Unlock()
	m.table.ProductType[id] = pct
	return &discount.Rate{Kind: discount.KindProductType, KeyID: id, Key: name, Percent: pct}, nil
}

func (m *memRates) SetPaymentMethodRate(ctx context.Context, name string, pct decimal.Decimal) (*discount.Rate, error) {
	pm, err := m.methods.GetByName(ctx, name)
	if err != nil {
		return nil, discount.ErrUnknownPaymentMethod
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.PaymentMethod[pm.ID] = pct
	return &discount.Rate{Kind: discount.KindPaymentMethod, KeyID: pm.ID, Key: name, Percent: pct}, nil
}

func (m *memRates) SetCreditTermsRate(_ context.Context, days int, pct decimal.Decimal) (*discount.Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table.CreditTerms[days] = pct
	return &discount.Rate{Kind: discount.KindCreditTerms, KeyID: int64(days), Percent: pct}, nil
}

func (m *memRates) Rates(context.Context) (*pricing.RateTable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.table
	return &t, nil
}

func (m *memRates) List(context.Context) ([]discount.Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []discount.Rate
	for days, pct := range m.table.CreditTerms {
		out = append(out, discount.Rate{Kind: discount.KindCreditTerms, KeyID: int64(days), Percent: pct})
	}
	return out, nil
}

type memSales struct {
	mu   sync.Mutex
	rows []sale.Sale
	err  error
}

func (m *memSales) Create(_ context.Context, s *sale.Sale) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, *s)
	return nil
}

func (m *memSales) GetByID(_ context.Context, id string) (*sale.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.rows {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, sale.ErrNotFound
}

func (m *memSales) List(context.Context) ([]sale.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sale.Sale, len(m.rows))
	for i, s := range m.rows {
		s.Lines = nil
		out[len(m.rows)-1-i] = s
	}
	return out, nil
}
