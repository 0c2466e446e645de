/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the billing domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY ON THE WIRE:
  Requests accept amounts as JSON numbers or decimal strings
  (decimal.Decimal). Responses emit JSON numbers carrying the full
  unrounded value (json.Number); *_display fields carry the 2-digit
  rendering for humans. Clients must reconcile against the unrounded value.

TYPES:
  Quotation:  QuotationDTO, PricingDTO
  Invoice:    PreviewRequest, TotalsDTO, CreateInvoiceRequest, InvoiceDTO
  Breakup:    BreakupRequest, InstallmentRequest, BreakupDTO, InstallmentDTO,
              ValidationResultDTO, ViolationDTO
  Payments:   RecordPaymentRequest, PaymentDTO, PaymentAllocationDTO
  Overdue:    OverdueResponse, OverdueGroupDTO, OverdueInstallmentDTO
  Reminders:  ReminderRunDTO
  Demo:       DemoSeedDTO

SEE ALSO:
  - handlers.go: Uses these types
  - client.go: Decodes these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// QUOTATIONS
// =============================================================================

// QuotationDTO represents a quotation in API responses.
type QuotationDTO struct {
	ID          string     `json:"id"`
	RequestID   string     `json:"request_id,omitempty"`
	ClientName  string     `json:"client_name"`
	ClientEmail string     `json:"client_email,omitempty"`
	Status      string     `json:"status"`
	TripTitle   string     `json:"trip_title,omitempty"`
	City        string     `json:"city,omitempty"`
	BookingRef  string     `json:"booking_ref,omitempty"`
	Pricing     PricingDTO `json:"pricing"`
	CreatedAt   string     `json:"created_at"`
}

// PricingDTO is the pricing snapshot of a quotation.
type PricingDTO struct {
	Subtotal      json.Number `json:"subtotal"`
	TaxAmount     json.Number `json:"tax_amount"`
	AdvanceAmount json.Number `json:"advance_amount"`
}

// =============================================================================
// INVOICES
// =============================================================================

// PreviewRequest asks for totals of a quotation under a surcharge setting.
// Omitted fields fall back to the server's default surcharge.
type PreviewRequest struct {
	QuotationID string           `json:"quotation_id"`
	TCSEnabled  *bool            `json:"tcs_enabled,omitempty"`
	TCSPercent  *decimal.Decimal `json:"tcs_percent,omitempty"`
	Subtotal    *decimal.Decimal `json:"subtotal,omitempty"`   // overrides the quotation's
	TaxAmount   *decimal.Decimal `json:"tax_amount,omitempty"` // overrides the quotation's
}

// TotalsDTO is the calculator output.
type TotalsDTO struct {
	QuotationID         string      `json:"quotation_id,omitempty"`
	Subtotal            json.Number `json:"subtotal"`
	TaxAmount           json.Number `json:"tax_amount"`
	TCSPercent          json.Number `json:"tcs_percent"`
	TCSAmount           json.Number `json:"tcs_amount"`
	TotalAmount         json.Number `json:"total_amount"`
	AdvanceAmount       json.Number `json:"advance_amount"`
	BalanceAfterAdvance json.Number `json:"balance_after_advance"`
	TCSDisplay          string      `json:"tcs_amount_display"`
	TotalDisplay        string      `json:"total_amount_display"`
	CanCreate           bool        `json:"can_create"`
}

// CreateInvoiceRequest is the body of POST /invoices/create-from-quotation.
// All amounts are the unrounded calculator output.
type CreateInvoiceRequest struct {
	QuotationID   string          `json:"quotation_id"`
	TCSPercent    decimal.Decimal `json:"tcs_percent"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxAmount     decimal.Decimal `json:"tax_amount"`
	TCSAmount     decimal.Decimal `json:"tcs_amount"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	AdvanceAmount decimal.Decimal `json:"advance_amount"`
}

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID            string      `json:"id"`
	InvoiceNumber string      `json:"invoice_number"`
	QuotationID   string      `json:"quotation_id"`
	ClientName    string      `json:"client_name,omitempty"`
	ClientEmail   string      `json:"client_email,omitempty"`
	TCSPercent    json.Number `json:"tcs_percent"`
	Subtotal      json.Number `json:"subtotal"`
	TaxAmount     json.Number `json:"tax_amount"`
	TCSAmount     json.Number `json:"tcs_amount"`
	TotalAmount   json.Number `json:"total_amount"`
	AdvanceAmount json.Number `json:"advance_amount"`
	CreatedAt     string      `json:"created_at"`
}

// =============================================================================
// PAYMENT BREAKUPS
// =============================================================================

// BreakupRequest is the body of the breakup create and validate endpoints.
// Installments are in schedule order; the server never reorders them.
type BreakupRequest struct {
	Installments []InstallmentRequest `json:"installments"`
}

// InstallmentRequest is one submitted installment. A missing amount or an
// empty due_date is reported as a missing field, not a decode error.
type InstallmentRequest struct {
	Amount      decimal.NullDecimal `json:"amount"`
	DueDate     string              `json:"due_date"`
	Description *string             `json:"description"`
}

// BreakupDTO is a stored payment breakup.
type BreakupDTO struct {
	InvoiceID    string           `json:"invoice_id"`
	Total        json.Number      `json:"total"`
	Installments []InstallmentDTO `json:"installments"`
}

// InstallmentDTO is one stored installment.
type InstallmentDTO struct {
	ID          string      `json:"id"`
	Sequence    int         `json:"sequence"`
	Amount      json.Number `json:"amount"`
	DueDate     string      `json:"due_date"`
	Description *string     `json:"description"`
}

// ValidationResultDTO is the outcome of validating a breakup.
type ValidationResultDTO struct {
	Total      json.Number    `json:"total"`
	Target     json.Number    `json:"target"`
	Remaining  json.Number    `json:"remaining"`
	IsBalanced bool           `json:"is_balanced"`
	CanSubmit  bool           `json:"can_submit"`
	Errors     []ViolationDTO `json:"errors"`
}

// ViolationDTO is one failed breakup rule.
type ViolationDTO struct {
	Kind         string `json:"kind"`
	Message      string `json:"message"`
	CandidateIDs []int  `json:"candidate_ids,omitempty"` // 1-based positions in the request
}

// =============================================================================
// PAYMENTS
// =============================================================================

// RecordPaymentRequest is the body of POST /invoices/{id}/payments.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
}

// PaymentDTO is a recorded payment.
type PaymentDTO struct {
	ID         string      `json:"id"`
	InvoiceID  string      `json:"invoice_id"`
	Amount     json.Number `json:"amount"`
	Method     string      `json:"method,omitempty"`
	Reference  string      `json:"reference,omitempty"`
	ReceivedAt string      `json:"received_at"`
}

// PaymentAllocationDTO shows how payments cover an invoice's installments.
type PaymentAllocationDTO struct {
	InvoiceID        string                     `json:"invoice_id"`
	InvoiceNumber    string                     `json:"invoice_number"`
	TotalAmount      json.Number                `json:"total_amount"`
	TotalScheduled   json.Number                `json:"total_scheduled"`
	TotalReceived    json.Number                `json:"total_received"`
	TotalOutstanding json.Number                `json:"total_outstanding"`
	Overpaid         json.Number                `json:"overpaid"`
	Installments     []InstallmentAllocationDTO `json:"installments"`
}

// InstallmentAllocationDTO is the payment state of one installment.
type InstallmentAllocationDTO struct {
	InstallmentDTO
	Paid            json.Number `json:"paid"`
	Outstanding     json.Number `json:"outstanding"`
	Status          string      `json:"status"`
	ProgressPercent json.Number `json:"progress_percent"`
}

// =============================================================================
// OVERDUE & REMINDERS
// =============================================================================

// OverdueResponse lists overdue installments grouped by invoice.
type OverdueResponse struct {
	AsOf   string            `json:"as_of"`
	Count  int               `json:"count"`
	Groups []OverdueGroupDTO `json:"groups"`
}

// OverdueGroupDTO is the overdue part of one invoice.
type OverdueGroupDTO struct {
	InvoiceID        string                  `json:"invoice_id"`
	InvoiceNumber    string                  `json:"invoice_number"`
	ClientName       string                  `json:"client_name,omitempty"`
	TotalOutstanding json.Number             `json:"total_outstanding"`
	Installments     []OverdueInstallmentDTO `json:"installments"`
}

// OverdueInstallmentDTO is one overdue installment.
type OverdueInstallmentDTO struct {
	InstallmentID string      `json:"installment_id"`
	Sequence      int         `json:"sequence"`
	DueDate       string      `json:"due_date"`
	Amount        json.Number `json:"amount"`
	Outstanding   json.Number `json:"outstanding"`
	Status        string      `json:"status"`
	DaysOverdue   int         `json:"days_overdue"`
	Severity      string      `json:"severity"`
}

// ReminderRunDTO summarizes one reminder sweep.
type ReminderRunDTO struct {
	Day     string `json:"day"`
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(a billing.Amount) json.Number {
	return json.Number(a.Value.String())
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

func toQuotationDTO(q billing.Quotation) QuotationDTO {
	return QuotationDTO{
		ID:          string(q.ID),
		RequestID:   q.RequestID,
		ClientName:  q.ClientName,
		ClientEmail: q.ClientEmail,
		Status:      string(q.Status),
		TripTitle:   q.TripTitle,
		City:        q.City,
		BookingRef:  q.BookingRef,
		Pricing: PricingDTO{
			Subtotal:      money(q.Pricing.Subtotal),
			TaxAmount:     money(q.Pricing.TaxAmount),
			AdvanceAmount: money(q.Pricing.AdvanceAmount),
		},
		CreatedAt: q.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toTotalsDTO(quotationID billing.QuotationID, t billing.InvoiceTotals, advance billing.Amount) TotalsDTO {
	return TotalsDTO{
		QuotationID:         string(quotationID),
		Subtotal:            money(t.Subtotal),
		TaxAmount:           money(t.TaxAmount),
		TCSPercent:          number(t.AppliedPercent),
		TCSAmount:           money(t.SurchargeAmount),
		TotalAmount:         money(t.TotalAmount),
		AdvanceAmount:       money(advance),
		BalanceAfterAdvance: money(t.BalanceAfterAdvance(advance)),
		TCSDisplay:          t.SurchargeAmount.String(),
		TotalDisplay:        t.TotalAmount.String(),
		CanCreate:           t.TotalAmount.IsPositive(),
	}
}

func toInvoiceDTO(inv billing.Invoice) InvoiceDTO {
	return InvoiceDTO{
		ID:            string(inv.ID),
		InvoiceNumber: inv.InvoiceNumber,
		QuotationID:   string(inv.QuotationID),
		ClientName:    inv.ClientName,
		ClientEmail:   inv.ClientEmail,
		TCSPercent:    number(inv.SurchargePercent),
		Subtotal:      money(inv.Subtotal),
		TaxAmount:     money(inv.TaxAmount),
		TCSAmount:     money(inv.SurchargeAmount),
		TotalAmount:   money(inv.TotalAmount),
		AdvanceAmount: money(inv.AdvanceAmount),
		CreatedAt:     inv.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toInstallmentDTO(inst billing.Installment) InstallmentDTO {
	dto := InstallmentDTO{
		ID:       string(inst.ID),
		Sequence: inst.Sequence,
		Amount:   money(inst.Amount),
		DueDate:  inst.DueDate.String(),
	}
	if inst.Description != "" {
		desc := inst.Description
		dto.Description = &desc
	}
	return dto
}

func toValidationResultDTO(r billing.ValidationResult) ValidationResultDTO {
	dto := ValidationResultDTO{
		Total:      money(r.Total),
		Target:     money(r.Target),
		Remaining:  money(r.Remaining),
		IsBalanced: r.IsBalanced,
		CanSubmit:  r.CanSubmit(),
		Errors:     make([]ViolationDTO, len(r.Errors)),
	}
	for i, v := range r.Errors {
		ids := make([]int, len(v.CandidateIDs))
		for j, id := range v.CandidateIDs {
			ids[j] = int(id)
		}
		dto.Errors[i] = ViolationDTO{Kind: string(v.Kind), Message: v.Message, CandidateIDs: ids}
	}
	return dto
}

func toPaymentDTO(p billing.Payment) PaymentDTO {
	return PaymentDTO{
		ID:         string(p.ID),
		InvoiceID:  string(p.InvoiceID),
		Amount:     money(p.Amount),
		Method:     p.Method,
		Reference:  p.Reference,
		ReceivedAt: p.ReceivedAt.UTC().Format(time.RFC3339),
	}
}

func toAllocationDTO(inv billing.Invoice, alloc billing.PaymentAllocation) PaymentAllocationDTO {
	dto := PaymentAllocationDTO{
		InvoiceID:        string(inv.ID),
		InvoiceNumber:    inv.InvoiceNumber,
		TotalAmount:      money(inv.TotalAmount),
		TotalScheduled:   money(alloc.TotalScheduled),
		TotalReceived:    money(alloc.TotalReceived),
		TotalOutstanding: money(alloc.TotalOutstanding),
		Overpaid:         money(alloc.Overpaid),
		Installments:     make([]InstallmentAllocationDTO, len(alloc.Installments)),
	}
	for i, a := range alloc.Installments {
		dto.Installments[i] = InstallmentAllocationDTO{
			InstallmentDTO:  toInstallmentDTO(a.Installment),
			Paid:            money(a.Paid),
			Outstanding:     money(a.Outstanding),
			Status:          string(a.Status),
			ProgressPercent: number(a.ProgressPercent()),
		}
	}
	return dto
}

func toOverdueResponse(asOf billing.Date, groups []billing.OverdueGroup) OverdueResponse {
	resp := OverdueResponse{AsOf: asOf.String(), Groups: make([]OverdueGroupDTO, len(groups))}
	for i, g := range groups {
		gdto := OverdueGroupDTO{
			InvoiceID:        string(g.Invoice.ID),
			InvoiceNumber:    g.Invoice.InvoiceNumber,
			ClientName:       g.Invoice.ClientName,
			TotalOutstanding: money(g.TotalOutstanding),
			Installments:     make([]OverdueInstallmentDTO, len(g.Installments)),
		}
		for j, o := range g.Installments {
			inst := o.Allocation.Installment
			gdto.Installments[j] = OverdueInstallmentDTO{
				InstallmentID: string(inst.ID),
				Sequence:      inst.Sequence,
				DueDate:       inst.DueDate.String(),
				Amount:        money(inst.Amount),
				Outstanding:   money(o.Allocation.Outstanding),
				Status:        string(o.Allocation.Status),
				DaysOverdue:   o.DaysOverdue,
				Severity:      string(o.Severity),
			}
			resp.Count++
		}
		resp.Groups[i] = gdto
	}
	return resp
}

// candidates turns a request into validator input, keeping request order.
func (req BreakupRequest) candidates() []billing.InstallmentCandidate {
	out := make([]billing.InstallmentCandidate, len(req.Installments))
	for i, inst := range req.Installments {
		c := billing.InstallmentCandidate{ID: billing.CandidateID(i + 1), DueDate: inst.DueDate}
		if inst.Amount.Valid {
			c.Amount = inst.Amount.Decimal.String()
		}
		if inst.Description != nil {
			c.Description = *inst.Description
		}
		out[i] = c
	}
	return out
}

// newBreakupRequest is the wire form of a breakup payload.
func newBreakupRequest(p billing.CreateBreakupPayload) BreakupRequest {
	req := BreakupRequest{Installments: make([]InstallmentRequest, len(p.Installments))}
	for i, inst := range p.Installments {
		ir := InstallmentRequest{Description: inst.Description}
		if inst.Amount != nil {
			ir.Amount = decimal.NewNullDecimal(inst.Amount.Value)
		}
		if !inst.DueDate.IsZero() {
			ir.DueDate = inst.DueDate.String()
		}
		req.Installments[i] = ir
	}
	return req
}

// DemoSeedDTO describes the seeded demo data.
type DemoSeedDTO struct {
	Quotations    []string `json:"quotations"`
	InvoiceID     string   `json:"invoice_id"`
	InvoiceNumber string   `json:"invoice_number"`
}
