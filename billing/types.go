/*
Package billing provides the invoice and payment-breakup engine.

PURPOSE:
  This package contains the calculation and validation core for turning an
  accepted quotation into an invoice and splitting that invoice into a
  schedule of dated installments. Everything here is transport-agnostic:
  the HTTP layer, the SQLite store and the reminder scheduler all call into
  these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal money value in the system's single currency
  - Identifiers: Type-safe IDs for quotations, invoices and candidates
  - Installment: A persisted, dated slice of an invoice total

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal, never float64, for money
  2. Purity: Calculation and validation never touch I/O
  3. Type Safety: Distinct ID types prevent mixing invoice/quotation IDs
  4. Data over exceptions: rule violations are returned as values

USAGE:
  totals := billing.Compute(pricing, billing.SurchargeConfig{Enabled: true, Percent: billing.ParseDecimalOrZero("2")})
  result, err := billing.NewValidator(nil).Validate(list.Items(), totals.TotalAmount)

SEE ALSO:
  - calculator.go: Invoice totals
  - validator.go: Breakup validation rules
  - candidate.go: Editable installment list
  - session.go: Submission state machine
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money in the single system currency
// =============================================================================

type Amount struct {
	Value    decimal.Decimal
	Currency Currency
}

type Currency string

// CurrencyINR is the only currency the engine deals in.
const CurrencyINR Currency = "INR"

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Currency: CurrencyINR}
}

func NewAmountFromDecimal(value decimal.Decimal) Amount {
	return Amount{Value: value, Currency: CurrencyINR}
}

func ZeroAmount() Amount { return Amount{Value: decimal.Zero, Currency: CurrencyINR} }

// ParseDecimalOrZero parses s, returning zero for anything unparseable.
func ParseDecimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Add(b Amount) Amount          { return Amount{Value: a.Value.Add(b.Value), Currency: a.currency()} }
func (a Amount) Sub(b Amount) Amount          { return Amount{Value: a.Value.Sub(b.Value), Currency: a.currency()} }
func (a Amount) Mul(s decimal.Decimal) Amount { return Amount{Value: a.Value.Mul(s), Currency: a.currency()} }
func (a Amount) Abs() Amount                  { return Amount{Value: a.Value.Abs(), Currency: a.currency()} }
func (a Amount) IsNegative() bool             { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                 { return a.Value.IsZero() }
func (a Amount) IsPositive() bool             { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool    { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool       { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool          { return a.Value.Equal(b.Value) }
func (a Amount) Min(b Amount) Amount {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Rounded returns the amount rounded half-away-from-zero to 2 fraction digits.
// Display only: reconciliation always works on unrounded values.
func (a Amount) Rounded() Amount {
	return Amount{Value: a.Value.Round(2), Currency: a.currency()}
}

// String formats with exactly two fraction digits, e.g. "12036.00".
func (a Amount) String() string { return a.Value.StringFixed(2) }

func (a Amount) currency() Currency {
	if a.Currency == "" {
		return CurrencyINR
	}
	return a.Currency
}

// Sum adds amounts; an empty slice sums to zero.
func Sum(amounts ...Amount) Amount {
	total := ZeroAmount()
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type QuotationID string
type InvoiceID string
type InstallmentID string
type PaymentID string

// CandidateID identifies an installment candidate within one editing session.
// IDs are handed out in increasing order and never reused.
type CandidateID int

// =============================================================================
// INSTALLMENT - A stored slice of an invoice's payment schedule
// =============================================================================

type Installment struct {
	ID          InstallmentID
	InvoiceID   InvoiceID
	Sequence    int // 1-based position in the submitted breakup
	Amount      Amount
	DueDate     Date
	Description string
}

// InstallmentStatus is the payment state of one installment.
type InstallmentStatus string

const (
	InstallmentPending     InstallmentStatus = "pending"
	InstallmentPartialPaid InstallmentStatus = "partial_paid"
	InstallmentPaid        InstallmentStatus = "paid"
)
