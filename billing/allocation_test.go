package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
)

func installment(seq int, amount string, due billing.Date) billing.Installment {
	return billing.Installment{
		ID:        billing.InstallmentID("inst-" + string(rune('0'+seq))),
		InvoiceID: "inv-1",
		Sequence:  seq,
		Amount:    inr(amount),
		DueDate:   due,
	}
}

func march(d int) billing.Date { return billing.NewDate(2025, time.March, d) }

// =============================================================================
// ALLOCATION
// =============================================================================

func TestAllocate_PartialPayment(t *testing.T) {
	// GIVEN: 6000 due Mar 1, 6036 due Mar 11; 8000 received
	// THEN: first paid, second partial with 4036 outstanding

	alloc := (&billing.PaymentAllocator{}).Allocate("inv-1", []billing.Installment{
		installment(1, "6000", march(1)),
		installment(2, "6036", march(11)),
	}, inr("8000"))

	require.Len(t, alloc.Installments, 2)
	assert.Equal(t, billing.InstallmentPaid, alloc.Installments[0].Status)
	assert.Equal(t, billing.InstallmentPartialPaid, alloc.Installments[1].Status)
	assert.True(t, alloc.Installments[1].Paid.Equal(inr("2000")))
	assert.True(t, alloc.Installments[1].Outstanding.Equal(inr("4036")))
	assert.True(t, alloc.TotalScheduled.Equal(inr("12036")))
	assert.True(t, alloc.TotalOutstanding.Equal(inr("4036")))
	assert.True(t, alloc.Overpaid.IsZero())
	assert.Equal(t, "33.13", alloc.Installments[1].ProgressPercent().StringFixed(2))
}

func TestAllocate_FillsEarliestDueFirst(t *testing.T) {
	// GIVEN: stored sequence does not match due-date order
	alloc := (&billing.PaymentAllocator{}).Allocate("inv-1", []billing.Installment{
		installment(1, "500", march(20)),
		installment(2, "500", march(5)),
	}, inr("500"))

	assert.Equal(t, 2, alloc.Installments[0].Installment.Sequence)
	assert.Equal(t, billing.InstallmentPaid, alloc.Installments[0].Status)
	assert.Equal(t, billing.InstallmentPending, alloc.Installments[1].Status)
}

func TestAllocate_Overpaid(t *testing.T) {
	alloc := (&billing.PaymentAllocator{}).Allocate("inv-1", []billing.Installment{
		installment(1, "100", march(1)),
	}, inr("150"))

	assert.Equal(t, billing.InstallmentPaid, alloc.Installments[0].Status)
	assert.True(t, alloc.Overpaid.Equal(inr("50")))
	assert.True(t, alloc.TotalOutstanding.IsZero())
}

func TestAllocate_NothingReceived(t *testing.T) {
	alloc := (&billing.PaymentAllocator{}).Allocate("inv-1", []billing.Installment{
		installment(1, "100", march(1)),
		installment(2, "100", march(2)),
	}, billing.ZeroAmount())

	for _, a := range alloc.Installments {
		assert.Equal(t, billing.InstallmentPending, a.Status)
		assert.True(t, a.Paid.IsZero())
	}
	assert.True(t, alloc.TotalOutstanding.Equal(inr("200")))
}

// =============================================================================
// OVERDUE
// =============================================================================

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		days int
		want billing.Severity
	}{
		{1, billing.SeverityLow},
		{15, billing.SeverityLow},
		{16, billing.SeverityMedium},
		{30, billing.SeverityMedium},
		{31, billing.SeverityHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, billing.SeverityFor(tt.days), "days=%d", tt.days)
	}
}

func TestFindOverdue_SkipsPaidAndFuture(t *testing.T) {
	inv := billing.Invoice{ID: "inv-1"}
	alloc := (&billing.PaymentAllocator{}).Allocate("inv-1", []billing.Installment{
		installment(1, "100", march(1)),
		installment(2, "100", march(10)),
		installment(3, "100", march(31)),
	}, inr("100"))

	// today: Apr 5 → #2 is 26 days late, #3 is 5 days late, #1 is paid
	overdue := billing.FindOverdue(inv, alloc, billing.NewDate(2025, time.April, 5))

	require.Len(t, overdue, 2)
	assert.Equal(t, 26, overdue[0].DaysOverdue)
	assert.Equal(t, billing.SeverityMedium, overdue[0].Severity)
	assert.Equal(t, 5, overdue[1].DaysOverdue)
	assert.Equal(t, billing.SeverityLow, overdue[1].Severity)

	// due today is not overdue
	assert.Empty(t, billing.FindOverdue(inv, alloc, march(10)))
}

func TestFindDueSoon(t *testing.T) {
	alloc := (&billing.PaymentAllocator{}).Allocate("inv-1", []billing.Installment{
		installment(1, "100", march(1)),
		installment(2, "100", march(4)),
		installment(3, "100", march(20)),
	}, billing.ZeroAmount())

	due := billing.FindDueSoon(alloc, march(1), 3)

	require.Len(t, due, 2)
	assert.Equal(t, 1, due[0].Installment.Sequence)
	assert.Equal(t, 2, due[1].Installment.Sequence)
}

func TestGroupOverdue_MostOverdueFirst(t *testing.T) {
	a := billing.Invoice{ID: "inv-a"}
	b := billing.Invoice{ID: "inv-b"}
	items := []billing.OverdueInstallment{
		{Invoice: a, DaysOverdue: 3, Allocation: billing.InstallmentAllocation{Outstanding: inr("10")}},
		{Invoice: b, DaysOverdue: 40, Allocation: billing.InstallmentAllocation{Outstanding: inr("20")}},
		{Invoice: a, DaysOverdue: 5, Allocation: billing.InstallmentAllocation{Outstanding: inr("30")}},
	}

	groups := billing.GroupOverdue(items)

	require.Len(t, groups, 2)
	assert.Equal(t, billing.InvoiceID("inv-b"), groups[0].Invoice.ID)
	assert.Equal(t, billing.InvoiceID("inv-a"), groups[1].Invoice.ID)
	assert.Len(t, groups[1].Installments, 2)
	assert.True(t, groups[1].TotalOutstanding.Equal(inr("40")))
}
