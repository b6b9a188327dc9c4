package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is fully determined by (PriceOwed, AmountPaid).
type PaymentStatus string

const (
	PaymentNoPrice PaymentStatus = "noPrice"
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

type Participant struct {
	ID                        string           `json:"id"`
	EventID                   string           `json:"event_id"`
	Name                      string           `json:"name"`
	LastName                  string           `json:"last_name"`
	NationalID                string           `json:"national_id"`
	EntryCode                 string           `json:"entry_code"`
	ReissuedEntryCode         string           `json:"reissued_entry_code,omitempty"`
	Phone                     string           `json:"phone,omitempty"`
	Email                     string           `json:"email,omitempty"`
	PaymentMethod             string           `json:"payment_method"`
	CancellationPaymentMethod string           `json:"cancellation_payment_method,omitempty"`
	Category                  string           `json:"category"`
	PriceOwed                 *decimal.Decimal `json:"price_owed,omitempty"`
	AmountPaid                decimal.Decimal  `json:"amount_paid"`
	Accredited                bool             `json:"accredited"`
	CreatedAt                 time.Time        `json:"created_at"`
	UpdatedAt                 time.Time        `json:"updated_at"`
}

// ParticipantFields carries the mutable attributes accepted on create.
type ParticipantFields struct {
	Name          string           `json:"name"`
	LastName      string           `json:"last_name"`
	NationalID    string           `json:"national_id"`
	EntryCode     string           `json:"entry_code"`
	Phone         string           `json:"phone,omitempty"`
	Email         string           `json:"email,omitempty"`
	PaymentMethod string           `json:"payment_method"`
	Category      string           `json:"category"`
	PriceOwed     *decimal.Decimal `json:"price_owed,omitempty"`
	AmountPaid    decimal.Decimal  `json:"amount_paid"`
}

// PaymentStatus derives the payment state from price owed and amount paid.
func (p *Participant) PaymentStatus() PaymentStatus {
	return DerivePaymentStatus(p.PriceOwed, p.AmountPaid)
}

func DerivePaymentStatus(priceOwed *decimal.Decimal, amountPaid decimal.Decimal) PaymentStatus {
	if priceOwed == nil {
		return PaymentNoPrice
	}
	if amountPaid.GreaterThanOrEqual(*priceOwed) {
		return PaymentPaid
	}
	if amountPaid.GreaterThan(decimal.Zero) {
		return PaymentPartial
	}
	return PaymentPending
}

// HasOutstandingBalance reports whether a priced participant still owes money.
func (p *Participant) HasOutstandingBalance() bool {
	s := p.PaymentStatus()
	return s == PaymentPending || s == PaymentPartial
}

// NormalizeKey canonicalizes a lookup key: whitespace removed, uppercased.
// Search on national id and entry codes compares normalized keys.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), ""))
}
