/*
allocation.go - Applying received payments to a payment breakup

PURPOSE:
  A customer pays against the invoice, not against a particular installment.
  The allocator spreads the total received over the installments in schedule
  order so each installment can show paid / partially paid / pending.

ORDERING:
  Installments are filled oldest due date first; ties keep Sequence order.
  Payment received beyond the schedule total is reported as Overpaid.

EXAMPLE:
  installments: 6000 (Mar 1), 6036 (Mar 11)
  received:     8000
  → #1 paid 6000, #2 partial_paid 2000 (outstanding 4036)

SEE ALSO:
  - overdue.go: Uses allocations to find unpaid installments
*/
package billing

import (
	"sort"

	"github.com/shopspring/decimal"
)

// InstallmentAllocation is the payment state of one installment.
type InstallmentAllocation struct {
	Installment Installment
	Paid        Amount
	Outstanding Amount
	Status      InstallmentStatus
}

// ProgressPercent is Paid / Amount * 100, 0 for a zero-amount installment.
func (a InstallmentAllocation) ProgressPercent() decimal.Decimal {
	if a.Installment.Amount.IsZero() {
		return decimal.Zero
	}
	return a.Paid.Value.Div(a.Installment.Amount.Value).Mul(hundred).Round(2)
}

// PaymentAllocation is the allocation across a whole breakup.
type PaymentAllocation struct {
	InvoiceID        InvoiceID
	TotalScheduled   Amount
	TotalReceived    Amount
	TotalOutstanding Amount
	Overpaid         Amount
	Installments     []InstallmentAllocation
}

// PaymentAllocator spreads received payments across installments.
type PaymentAllocator struct{}

// Allocate applies received to installments in due-date order.
func (pa *PaymentAllocator) Allocate(invoiceID InvoiceID, installments []Installment, received Amount) PaymentAllocation {
	ordered := make([]Installment, len(installments))
	copy(ordered, installments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].DueDate.Equal(ordered[j].DueDate) {
			return ordered[i].Sequence < ordered[j].Sequence
		}
		return ordered[i].DueDate.Before(ordered[j].DueDate)
	})

	received = normalizeAmount(received)
	remaining := received
	if remaining.IsNegative() {
		remaining = ZeroAmount()
	}

	result := PaymentAllocation{
		InvoiceID:     invoiceID,
		TotalReceived: received,
		Installments:  make([]InstallmentAllocation, 0, len(ordered)),
	}

	scheduled := ZeroAmount()
	outstanding := ZeroAmount()
	for _, inst := range ordered {
		scheduled = scheduled.Add(inst.Amount)

		paid := remaining.Min(inst.Amount)
		if paid.IsNegative() {
			paid = ZeroAmount()
		}
		remaining = remaining.Sub(paid)

		alloc := InstallmentAllocation{
			Installment: inst,
			Paid:        paid,
			Outstanding: inst.Amount.Sub(paid),
		}
		switch {
		case !alloc.Outstanding.IsPositive():
			alloc.Status = InstallmentPaid
		case paid.IsPositive():
			alloc.Status = InstallmentPartialPaid
		default:
			alloc.Status = InstallmentPending
		}
		outstanding = outstanding.Add(alloc.Outstanding)
		result.Installments = append(result.Installments, alloc)
	}

	result.TotalScheduled = scheduled
	result.TotalOutstanding = outstanding
	result.Overpaid = remaining
	return result
}
