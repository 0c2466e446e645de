package billing_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func inr(s string) billing.Amount {
	return billing.NewAmountFromDecimal(billing.ParseDecimalOrZero(s))
}

func pct(s string) billing.SurchargeConfig {
	return billing.SurchargeConfig{Enabled: true, Percent: billing.ParseDecimalOrZero(s)}
}

func pricing(subtotal, tax string) billing.PricingSnapshot {
	return billing.PricingSnapshot{Subtotal: inr(subtotal), TaxAmount: inr(tax), AdvanceAmount: billing.ZeroAmount()}
}

// =============================================================================
// COMPUTE
// =============================================================================

func TestCompute_DefaultSurcharge(t *testing.T) {
	// GIVEN: subtotal 10000, tax 1800, surcharge enabled at 2%
	// WHEN: Computing totals
	// THEN: surcharge 236 and total 12036

	totals := billing.Compute(pricing("10000", "1800"), pct("2"))

	assert.True(t, totals.SurchargeAmount.Equal(inr("236")), "surcharge: %s", totals.SurchargeAmount)
	assert.True(t, totals.TotalAmount.Equal(inr("12036")), "total: %s", totals.TotalAmount)
	assert.Equal(t, "12036.00", totals.TotalAmount.String())
	assert.True(t, totals.AppliedPercent.Equal(billing.DefaultSurchargePercent))
}

func TestCompute_DisabledEqualsZeroPercent(t *testing.T) {
	// GIVEN: the same pricing with surcharge disabled at 5% and enabled at 0%
	// THEN: both produce no surcharge and total = subtotal + tax

	p := pricing("10000", "1800")
	disabled := billing.Compute(p, billing.SurchargeConfig{Enabled: false, Percent: billing.ParseDecimalOrZero("5")})
	zero := billing.Compute(p, pct("0"))

	assert.True(t, disabled.Equal(zero))
	assert.True(t, disabled.SurchargeAmount.IsZero())
	assert.True(t, disabled.TotalAmount.Equal(inr("11800")))
	assert.True(t, disabled.AppliedPercent.IsZero())
}

func TestCompute_Deterministic(t *testing.T) {
	p := pricing("12345.67", "2222.22")
	first := billing.Compute(p, pct("1.5"))
	for i := 0; i < 5; i++ {
		assert.True(t, first.Equal(billing.Compute(p, pct("1.5"))))
	}
}

func TestCompute_KeepsUnroundedTotal(t *testing.T) {
	// GIVEN: 333.33 + 0 at 1% → surcharge 3.3333
	// THEN: the total keeps every digit; Rounded() is display only

	totals := billing.Compute(pricing("333.33", "0"), pct("1"))

	assert.True(t, totals.SurchargeAmount.Equal(inr("3.3333")))
	assert.True(t, totals.TotalAmount.Equal(inr("336.6633")))
	assert.True(t, totals.Rounded().TotalAmount.Equal(inr("336.66")))
}

func TestCompute_NegativeInputsAccepted(t *testing.T) {
	// GIVEN: a credit note with negative subtotal
	// THEN: Compute does not fail and produces a negative total

	totals := billing.Compute(pricing("-1000", "-180"), pct("2"))

	assert.True(t, totals.TotalAmount.Equal(inr("-1203.6")))
	assert.True(t, totals.TotalAmount.IsNegative())
}

func TestCompute_ZeroPricing(t *testing.T) {
	totals := billing.Compute(pricing("0", "0"), billing.DefaultSurcharge())
	assert.True(t, totals.TotalAmount.IsZero())
}

func TestTotals_BalanceAfterAdvance(t *testing.T) {
	totals := billing.Compute(pricing("10000", "1800"), pct("2"))
	assert.True(t, totals.BaseAmount().Equal(inr("11800")))
	assert.True(t, totals.BalanceAfterAdvance(inr("3000")).Equal(inr("9036")))
}

func TestSurchargeConfig_Clamped(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"negative", "-3", "0"},
		{"in range", "4.5", "4.5"},
		{"above max", "25", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := pct(tt.in).Clamped()
			assert.True(t, got.Percent.Equal(billing.ParseDecimalOrZero(tt.want)), "got %s", got.Percent)
			assert.True(t, got.Enabled)
		})
	}
}
