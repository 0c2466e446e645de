package billing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INVOICE - Persisted result of invoicing a quotation
// =============================================================================

type Invoice struct {
	ID               InvoiceID
	InvoiceNumber    string
	QuotationID      QuotationID
	ClientName       string
	ClientEmail      string
	SurchargePercent decimal.Decimal
	Subtotal         Amount
	TaxAmount        Amount
	SurchargeAmount  Amount
	TotalAmount      Amount
	AdvanceAmount    Amount
	CreatedAt        time.Time
}

// InvoiceRef is what the invoice collaborator hands back.
type InvoiceRef struct {
	ID            InvoiceID
	InvoiceNumber string
}

// NewInvoiceNumber returns a number like INV-20250301-9F86D081.
func NewInvoiceNumber(at time.Time) string {
	return "INV-" + at.Format("20060102") + "-" + randomHex(4)
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strings.Repeat("0", n*2)
	}
	return strings.ToUpper(hex.EncodeToString(b))
}

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// CreateInvoicePayload carries the unrounded calculator output.
type CreateInvoicePayload struct {
	QuotationID      QuotationID
	SurchargePercent decimal.Decimal // applied percent, 0 when disabled
	Subtotal         Amount
	TaxAmount        Amount
	SurchargeAmount  Amount
	TotalAmount      Amount
	AdvanceAmount    Amount
}

// NewCreateInvoicePayload builds the payload for quotation from totals.
func NewCreateInvoicePayload(quotationID QuotationID, pricing PricingSnapshot, totals InvoiceTotals) CreateInvoicePayload {
	return CreateInvoicePayload{
		QuotationID:      quotationID,
		SurchargePercent: totals.AppliedPercent,
		Subtotal:         totals.Subtotal,
		TaxAmount:        totals.TaxAmount,
		SurchargeAmount:  totals.SurchargeAmount,
		TotalAmount:      totals.TotalAmount,
		AdvanceAmount:    normalizeAmount(pricing.AdvanceAmount),
	}
}

// InstallmentPayload is one submitted installment.
type InstallmentPayload struct {
	Amount      *Amount // nil when left blank
	DueDate     Date
	Description *string
}

// CreateBreakupPayload is the submitted breakup, in schedule order.
type CreateBreakupPayload struct {
	Installments []InstallmentPayload
}

// NewCreateBreakupPayload converts validated candidates. Call it only after
// Validate returned no parse error; unparseable dates become zero dates.
func NewCreateBreakupPayload(candidates []InstallmentCandidate) CreateBreakupPayload {
	p := CreateBreakupPayload{Installments: make([]InstallmentPayload, len(candidates))}
	for i, c := range candidates {
		due, _ := ParseDate(c.DueDate)
		var desc *string
		if d := strings.TrimSpace(c.Description); d != "" {
			desc = &d
		}
		inst := InstallmentPayload{DueDate: due, Description: desc}
		if c.hasAmount() {
			amount := c.ParsedAmount()
			inst.Amount = &amount
		}
		p.Installments[i] = inst
	}
	return p
}

// Candidates turns a payload back into candidates, e.g. for server-side validation.
func (p CreateBreakupPayload) Candidates() []InstallmentCandidate {
	out := make([]InstallmentCandidate, len(p.Installments))
	for i, inst := range p.Installments {
		c := InstallmentCandidate{ID: CandidateID(i + 1)}
		if inst.Amount != nil {
			c.Amount = inst.Amount.Value.String()
		}
		if !inst.DueDate.IsZero() {
			c.DueDate = inst.DueDate.String()
		}
		if inst.Description != nil {
			c.Description = *inst.Description
		}
		out[i] = c
	}
	return out
}

// InvoiceCreator creates an invoice from a quotation.
type InvoiceCreator interface {
	CreateInvoice(ctx context.Context, payload CreateInvoicePayload) (InvoiceRef, error)
}

// BreakupCreator stores the payment breakup of an invoice.
type BreakupCreator interface {
	CreatePaymentBreakup(ctx context.Context, invoiceID InvoiceID, payload CreateBreakupPayload) error
}
