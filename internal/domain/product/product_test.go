package product

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduct_Validate(t *testing.T) {
	price := decimal.RequireFromString

	tests := []struct {
		name    string
		p       Product
		wantErr bool
	}{
		{name: "Valid", p: Product{Name: "Laptop Gaming", ProductType: "Electronics", ListPrice: price("15000.00")}},
		{name: "Free", p: Product{Name: "Sticker", ProductType: "Misc", ListPrice: decimal.Zero}},
		{name: "TrailingZeros", p: Product{Name: "Pen", ProductType: "Office", ListPrice: price("1.5000")}},
		{name: "EmptyName", p: Product{ProductType: "Books", ListPrice: price("1")}, wantErr: true},
		{name: "LongName", p: Product{Name: strings.Repeat("b", 101), ProductType: "Books", ListPrice: price("1")}, wantErr: true},
		{name: "EmptyType", p: Product{Name: "Book", ListPrice: price("1")}, wantErr: true},
		{name: "LongType", p: Product{Name: "Book", ProductType: strings.Repeat("t", 51), ListPrice: price("1")}, wantErr: true},
		{name: "NegativePrice", p: Product{Name: "Book", ProductType: "Books", ListPrice: price("-1")}, wantErr: true},
		{name: "MaxPrice", p: Product{Name: "Yacht", ProductType: "Boats", ListPrice: price("99999999.99")}},
		{name: "PriceTooLarge", p: Product{Name: "Yacht", ProductType: "Boats", ListPrice: price("100000000")}, wantErr: true},
		{name: "SubCentPrice", p: Product{Name: "Book", ProductType: "Books", ListPrice: price("1.005")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalid)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLookup(t *testing.T) {
	m := Lookup([]Product{
		{ID: 1, ProductTypeID: 3, ListPrice: decimal.RequireFromString("800.00")},
		{ID: 2, ProductTypeID: 1, ListPrice: decimal.RequireFromString("8000.00")},
	})

	p, ok := m.Product(1)
	require.True(t, ok)
	assert.Equal(t, int64(3), p.ProductTypeID)
	assert.True(t, decimal.RequireFromString("800").Equal(p.ListPrice))

	_, ok = m.Product(9)
	assert.False(t, ok)
}
