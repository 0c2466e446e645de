package billing

import "sort"

// =============================================================================
// OVERDUE INSTALLMENTS
// =============================================================================

// Severity buckets an overdue installment by how late it is.
type Severity string

const (
	SeverityLow    Severity = "low"    // up to 15 days
	SeverityMedium Severity = "medium" // 16 to 30 days
	SeverityHigh   Severity = "high"   // more than 30 days
)

// DaysOverdue returns how many whole days due lies before today (0 if not late).
func DaysOverdue(due, today Date) int {
	n := DaysBetween(due, today)
	if n < 0 {
		return 0
	}
	return n
}

// SeverityFor classifies a number of days overdue.
func SeverityFor(daysOverdue int) Severity {
	switch {
	case daysOverdue > 30:
		return SeverityHigh
	case daysOverdue > 15:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// OverdueInstallment is an unpaid installment whose due date has passed.
type OverdueInstallment struct {
	Invoice     Invoice
	Allocation  InstallmentAllocation
	DaysOverdue int
	Severity    Severity
}

// OverdueGroup collects the overdue installments of one invoice.
type OverdueGroup struct {
	Invoice          Invoice
	Installments     []OverdueInstallment
	TotalOutstanding Amount
}

// FindOverdue returns the not fully paid installments due before today.
func FindOverdue(invoice Invoice, alloc PaymentAllocation, today Date) []OverdueInstallment {
	var out []OverdueInstallment
	for _, a := range alloc.Installments {
		if a.Status == InstallmentPaid || !a.Installment.DueDate.Before(today) {
			continue
		}
		days := DaysOverdue(a.Installment.DueDate, today)
		out = append(out, OverdueInstallment{
			Invoice:     invoice,
			Allocation:  a,
			DaysOverdue: days,
			Severity:    SeverityFor(days),
		})
	}
	return out
}

// FindDueSoon returns unpaid installments due within [today, today+leadDays].
func FindDueSoon(alloc PaymentAllocation, today Date, leadDays int) []InstallmentAllocation {
	horizon := today.AddDays(leadDays)
	var out []InstallmentAllocation
	for _, a := range alloc.Installments {
		due := a.Installment.DueDate
		if a.Status != InstallmentPaid && due.AfterOrEqual(today) && due.BeforeOrEqual(horizon) {
			out = append(out, a)
		}
	}
	return out
}

// GroupOverdue groups by invoice, most overdue invoice first.
func GroupOverdue(items []OverdueInstallment) []OverdueGroup {
	index := make(map[InvoiceID]int)
	var groups []OverdueGroup
	for _, item := range items {
		i, ok := index[item.Invoice.ID]
		if !ok {
			i = len(groups)
			index[item.Invoice.ID] = i
			groups = append(groups, OverdueGroup{Invoice: item.Invoice, TotalOutstanding: ZeroAmount()})
		}
		groups[i].Installments = append(groups[i].Installments, item)
		groups[i].TotalOutstanding = groups[i].TotalOutstanding.Add(item.Allocation.Outstanding)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return maxDays(groups[i]) > maxDays(groups[j])
	})
	return groups
}

func maxDays(g OverdueGroup) int {
	m := 0
	for _, i := range g.Installments {
		if i.DaysOverdue > m {
			m = i.DaysOverdue
		}
	}
	return m
}
