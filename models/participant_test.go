package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestDerivePaymentStatus(t *testing.T) {
	tests := []struct {
		name   string
		price  *decimal.Decimal
		paid   decimal.Decimal
		expect PaymentStatus
	}{
		{"no price means nothing owed", nil, decimal.Zero, PaymentNoPrice},
		{"no price ignores payments", nil, dec("50"), PaymentNoPrice},
		{"nothing paid", decPtr("100"), decimal.Zero, PaymentPending},
		{"partially paid", decPtr("100"), dec("40"), PaymentPartial},
		{"exactly paid", decPtr("100"), dec("100"), PaymentPaid},
		{"overpaid still counts as paid", decPtr("100"), dec("120"), PaymentPaid},
		{"zero price is settled up front", decPtr("0"), decimal.Zero, PaymentPaid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, DerivePaymentStatus(tt.price, tt.paid))
		})
	}
}

func TestHasOutstandingBalance(t *testing.T) {
	owing := Participant{PriceOwed: decPtr("100"), AmountPaid: dec("30")}
	assert.True(t, owing.HasOutstandingBalance())

	settled := Participant{PriceOwed: decPtr("100"), AmountPaid: dec("100")}
	assert.False(t, settled.HasOutstandingBalance())

	free := Participant{}
	assert.False(t, free.HasOutstandingBalance())
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "TKT001", NormalizeKey("  tkt 001 "))
	assert.Equal(t, "12345678", NormalizeKey("12 345 678"))
	assert.Equal(t, "", NormalizeKey("   "))
	assert.Equal(t, NormalizeKey("TKT001-R3F2A"), NormalizeKey("tkt001-r3f2a"))
}
