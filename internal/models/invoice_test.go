package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestIsMoney(t *testing.T) {
	cases := map[string]bool{
		"0":       true,
		"12":      true,
		"12.3":    true,
		"12.34":   true,
		"12.340":  true,
		"-0.01":   true,
		"12.345":  false,
		"1.005":   false,
		"0.00001": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsMoney(decimal.RequireFromString(in)), in)
	}
}

func TestInvoiceTotal(t *testing.T) {
	got := InvoiceTotal(decimal.RequireFromString("100.10"), decimal.RequireFromString("5.05"), decimal.RequireFromString("0.15"))
	assert.True(t, decimal.RequireFromString("105").Equal(got), got.String())
}
