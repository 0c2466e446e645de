/*
service.go - Server-side orchestration of invoices and breakups

PURPOSE:
  Implements the two collaborator contracts (InvoiceCreator, BreakupCreator)
  on top of a Store, re-running the calculator and validator before anything
  is written. The client-side checks are a pre-submission gate; these are
  the enforcement.

FLOW:
  CreateInvoice:
    1. Quotation must exist and be accepted
    2. Recompute totals from subtotal, tax and the applied percent
    3. Submitted surcharge/total must match within ReconcileTolerance
    4. Total must be > 0
    5. Persist with a fresh invoice number

  CreatePaymentBreakup:
    1. Invoice must exist
    2. Validate installments against the STORED unrounded total
    3. Persist all installments atomically

SEE ALSO:
  - store.go: Store interface
  - api/handlers.go: HTTP entry points
*/
package billing

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Service implements InvoiceCreator and BreakupCreator over a Store.
type Service struct {
	Store     Store
	Validator *Validator
	Allocator *PaymentAllocator
	Clock     Clock
	Logger    *zap.Logger
}

var (
	_ InvoiceCreator = (*Service)(nil)
	_ BreakupCreator = (*Service)(nil)
)

// NewService wires a service with the given clock (system clock if nil).
func NewService(store Store, clock Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		Store:     store,
		Validator: NewValidator(clock),
		Allocator: &PaymentAllocator{},
		Clock:     clock,
		Logger:    logger,
	}
}

// Preview computes totals for a quotation without persisting anything.
func (s *Service) Preview(ctx context.Context, quotationID QuotationID, surcharge SurchargeConfig) (Quotation, InvoiceTotals, error) {
	q, err := s.Store.GetQuotation(ctx, quotationID)
	if err != nil {
		return Quotation{}, InvoiceTotals{}, err
	}
	return q, Compute(q.Pricing, surcharge), nil
}

// CreateInvoice validates the payload against a fresh calculation and stores the invoice.
func (s *Service) CreateInvoice(ctx context.Context, payload CreateInvoicePayload) (InvoiceRef, error) {
	q, err := s.Store.GetQuotation(ctx, payload.QuotationID)
	if err != nil {
		return InvoiceRef{}, err
	}
	if q.Status != QuotationAccepted {
		return InvoiceRef{}, fmt.Errorf("%w: status %s", ErrQuotationNotAccepted, q.Status)
	}

	surcharge := SurchargeConfig{Enabled: !payload.SurchargePercent.IsZero(), Percent: payload.SurchargePercent}
	totals := Compute(PricingSnapshot{Subtotal: payload.Subtotal, TaxAmount: payload.TaxAmount}, surcharge)

	if err := matchWithinTolerance("tcs_amount", payload.SurchargeAmount, totals.SurchargeAmount); err != nil {
		return InvoiceRef{}, err
	}
	if err := matchWithinTolerance("total_amount", payload.TotalAmount, totals.TotalAmount); err != nil {
		return InvoiceRef{}, err
	}
	if !totals.TotalAmount.IsPositive() {
		return InvoiceRef{}, ErrNonPositiveTotal
	}

	now := s.Clock()
	inv := Invoice{
		ID:               InvoiceID(newID("inv")),
		InvoiceNumber:    NewInvoiceNumber(now),
		QuotationID:      q.ID,
		ClientName:       q.ClientName,
		ClientEmail:      q.ClientEmail,
		SurchargePercent: totals.AppliedPercent,
		Subtotal:         totals.Subtotal,
		TaxAmount:        totals.TaxAmount,
		SurchargeAmount:  totals.SurchargeAmount,
		TotalAmount:      totals.TotalAmount,
		AdvanceAmount:    normalizeAmount(payload.AdvanceAmount),
		CreatedAt:        now,
	}
	if err := s.Store.CreateInvoice(ctx, inv); err != nil {
		return InvoiceRef{}, err
	}

	s.Logger.Info("invoice created",
		zap.String("invoice_id", string(inv.ID)),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("quotation_id", string(q.ID)),
		zap.String("total_amount", inv.TotalAmount.String()))

	return InvoiceRef{ID: inv.ID, InvoiceNumber: inv.InvoiceNumber}, nil
}

// ValidateBreakup checks candidates against an invoice's stored total without
// storing anything.
func (s *Service) ValidateBreakup(ctx context.Context, invoiceID InvoiceID, candidates []InstallmentCandidate) (ValidationResult, error) {
	inv, err := s.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return ValidationResult{}, err
	}
	return s.Validator.Validate(candidates, inv.TotalAmount)
}

// CreatePaymentBreakup validates and stores the breakup of an invoice.
func (s *Service) CreatePaymentBreakup(ctx context.Context, invoiceID InvoiceID, payload CreateBreakupPayload) error {
	result, err := s.ValidateBreakup(ctx, invoiceID, payload.Candidates())
	if err != nil {
		return err
	}
	if !result.CanSubmit() {
		s.Logger.Warn("payment breakup rejected",
			zap.String("invoice_id", string(invoiceID)),
			zap.Strings("violations", result.Messages()))
		return &BreakupRejectedError{Result: result}
	}

	installments := make([]Installment, len(payload.Installments))
	for i, p := range payload.Installments {
		inst := Installment{
			ID:        InstallmentID(newID("inst")),
			InvoiceID: invoiceID,
			Sequence:  i + 1,
			DueDate:   p.DueDate,
		}
		if p.Amount != nil {
			inst.Amount = normalizeAmount(*p.Amount)
		}
		if p.Description != nil {
			inst.Description = *p.Description
		}
		installments[i] = inst
	}
	if err := s.Store.SaveBreakup(ctx, invoiceID, installments); err != nil {
		return err
	}

	s.Logger.Info("payment breakup created",
		zap.String("invoice_id", string(invoiceID)),
		zap.Int("installments", len(installments)))
	return nil
}

// RecordPayment stores money received against an invoice.
func (s *Service) RecordPayment(ctx context.Context, invoiceID InvoiceID, amount Amount, method, reference string) (Payment, error) {
	if _, err := s.Store.GetInvoice(ctx, invoiceID); err != nil {
		return Payment{}, err
	}
	if !amount.IsPositive() {
		return Payment{}, ErrNonPositivePayment
	}
	p := Payment{
		ID:         PaymentID(newID("pay")),
		InvoiceID:  invoiceID,
		Amount:     normalizeAmount(amount),
		Method:     method,
		Reference:  reference,
		ReceivedAt: s.Clock(),
	}
	if err := s.Store.RecordPayment(ctx, p); err != nil {
		return Payment{}, err
	}
	s.Logger.Info("payment recorded",
		zap.String("invoice_id", string(invoiceID)),
		zap.String("amount", p.Amount.String()))
	return p, nil
}

// Allocations applies all recorded payments to the invoice's breakup.
func (s *Service) Allocations(ctx context.Context, invoiceID InvoiceID) (Invoice, PaymentAllocation, error) {
	inv, err := s.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return Invoice{}, PaymentAllocation{}, err
	}
	installments, err := s.Store.GetBreakup(ctx, invoiceID)
	if err != nil {
		return Invoice{}, PaymentAllocation{}, err
	}
	payments, err := s.Store.ListPayments(ctx, invoiceID)
	if err != nil {
		return Invoice{}, PaymentAllocation{}, err
	}
	received := ZeroAmount()
	for _, p := range payments {
		received = received.Add(p.Amount)
	}
	return inv, s.Allocator.Allocate(invoiceID, installments, received), nil
}

// Overdue returns unpaid installments past their due date, grouped by invoice.
func (s *Service) Overdue(ctx context.Context) ([]OverdueGroup, error) {
	today := s.Clock.Today()
	var all []OverdueInstallment
	err := s.eachAllocation(ctx, func(inv Invoice, alloc PaymentAllocation) {
		all = append(all, FindOverdue(inv, alloc, today)...)
	})
	if err != nil {
		return nil, err
	}
	return GroupOverdue(all), nil
}

// DueSoon returns unpaid installments due within leadDays, per invoice.
func (s *Service) DueSoon(ctx context.Context, leadDays int) (map[InvoiceID][]InstallmentAllocation, error) {
	today := s.Clock.Today()
	out := make(map[InvoiceID][]InstallmentAllocation)
	err := s.eachAllocation(ctx, func(inv Invoice, alloc PaymentAllocation) {
		if due := FindDueSoon(alloc, today, leadDays); len(due) > 0 {
			out[inv.ID] = due
		}
	})
	return out, err
}

func (s *Service) eachAllocation(ctx context.Context, fn func(Invoice, PaymentAllocation)) error {
	ids, err := s.Store.ListBreakupInvoices(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		inv, alloc, err := s.Allocations(ctx, id)
		if err != nil {
			return fmt.Errorf("allocations for %s: %w", id, err)
		}
		fn(inv, alloc)
	}
	return nil
}

func matchWithinTolerance(field string, submitted, computed Amount) error {
	if submitted.Sub(computed).Value.Abs().GreaterThan(ReconcileTolerance) {
		return &TotalsMismatchError{Field: field, Submitted: submitted, Computed: computed}
	}
	return nil
}

func newID(prefix string) string {
	return prefix + "-" + strings.ToLower(randomHex(8))
}
