/*
calculator.go - Invoice totals from a quotation's pricing

PURPOSE:
  Derives the source-collected surcharge (TCS) and grand total from a
  subtotal, a tax amount and the surcharge toggle. The result feeds invoice
  creation and becomes the target every payment breakup must reconcile to.

FORMULA:
  base      = subtotal + tax
  surcharge = enabled ? base * percent / 100 : 0
  total     = base + surcharge

  Example: subtotal 10000, tax 1800, 2% → surcharge 236, total 12036.

PRECISION:
  Totals are kept unrounded. Rounded() exists for display; reconciliation
  downstream must target TotalAmount as computed here, otherwise rounding
  error accumulates across installments.

INPUT POLICY:
  Negative subtotal/tax are NOT rejected (credit notes). Percent is not
  clamped; callers that want the recommended [0, 10] range use Clamped().
*/
package billing

import "github.com/shopspring/decimal"

var (
	// DefaultSurchargePercent is the TCS rate a new invoice starts with.
	DefaultSurchargePercent = decimal.NewFromInt(2)

	// MaxRecommendedSurchargePercent bounds the percent an editor should offer.
	MaxRecommendedSurchargePercent = decimal.NewFromInt(10)

	hundred = decimal.NewFromInt(100)
)

// PricingSnapshot is the priced quotation an invoice is derived from.
type PricingSnapshot struct {
	Subtotal      Amount
	TaxAmount     Amount
	AdvanceAmount Amount // suggested deposit, informational
}

// SurchargeConfig toggles the source-collected surcharge.
type SurchargeConfig struct {
	Enabled bool
	Percent decimal.Decimal
}

// DefaultSurcharge returns the surcharge an invoice editor starts with.
func DefaultSurcharge() SurchargeConfig {
	return SurchargeConfig{Enabled: true, Percent: DefaultSurchargePercent}
}

// AppliedPercent is the percent that actually takes effect: 0 when disabled.
func (c SurchargeConfig) AppliedPercent() decimal.Decimal {
	if !c.Enabled {
		return decimal.Zero
	}
	return c.Percent
}

// Clamped returns a copy with Percent limited to [0, MaxRecommendedSurchargePercent].
func (c SurchargeConfig) Clamped() SurchargeConfig {
	p := c.Percent
	if p.IsNegative() {
		p = decimal.Zero
	}
	if p.GreaterThan(MaxRecommendedSurchargePercent) {
		p = MaxRecommendedSurchargePercent
	}
	return SurchargeConfig{Enabled: c.Enabled, Percent: p}
}

// InvoiceTotals is the derived result of Compute. Never persisted as an
// intermediate; recompute whenever an input changes.
type InvoiceTotals struct {
	Subtotal        Amount
	TaxAmount       Amount
	SurchargeAmount Amount
	TotalAmount     Amount
	AppliedPercent  decimal.Decimal
}

// Compute derives the surcharge and grand total. It cannot fail.
func Compute(pricing PricingSnapshot, surcharge SurchargeConfig) InvoiceTotals {
	subtotal := normalizeAmount(pricing.Subtotal)
	tax := normalizeAmount(pricing.TaxAmount)
	base := subtotal.Add(tax)

	applied := surcharge.AppliedPercent()
	surchargeAmount := base.Mul(applied.Div(hundred))

	return InvoiceTotals{
		Subtotal:        subtotal,
		TaxAmount:       tax,
		SurchargeAmount: surchargeAmount,
		TotalAmount:     base.Add(surchargeAmount),
		AppliedPercent:  applied,
	}
}

// BaseAmount is the amount the surcharge is levied on.
func (t InvoiceTotals) BaseAmount() Amount { return t.Subtotal.Add(t.TaxAmount) }

// BalanceAfterAdvance is what remains once the advance is paid.
func (t InvoiceTotals) BalanceAfterAdvance(advance Amount) Amount {
	return t.TotalAmount.Sub(advance)
}

// Rounded returns the totals rounded to 2 fraction digits for display.
func (t InvoiceTotals) Rounded() InvoiceTotals {
	return InvoiceTotals{
		Subtotal:        t.Subtotal.Rounded(),
		TaxAmount:       t.TaxAmount.Rounded(),
		SurchargeAmount: t.SurchargeAmount.Rounded(),
		TotalAmount:     t.TotalAmount.Rounded(),
		AppliedPercent:  t.AppliedPercent,
	}
}

// Equal reports whether two results are identical value for value.
func (t InvoiceTotals) Equal(o InvoiceTotals) bool {
	return t.Subtotal.Equal(o.Subtotal) &&
		t.TaxAmount.Equal(o.TaxAmount) &&
		t.SurchargeAmount.Equal(o.SurchargeAmount) &&
		t.TotalAmount.Equal(o.TotalAmount) &&
		t.AppliedPercent.Equal(o.AppliedPercent)
}

func normalizeAmount(a Amount) Amount {
	if a.Currency == "" {
		a.Currency = CurrencyINR
	}
	return a
}
