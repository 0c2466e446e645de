/*
session.go - Editing/submission state machines

PURPOSE:
  Wraps the pure calculator and validator in the two caller-facing flows:
  creating an invoice, then creating its payment breakup. Each flow owns
  its data and guards the single external submission.

STATE MACHINE:
  ┌─────────┐  Submit (CanSubmit)  ┌────────────┐   ok    ┌───────────┐
  │ Editing │ ───────────────────▶ │ Submitting │ ──────▶ │ Submitted │
  └─────────┘ ◀─────────────────── └────────────┘         └───────────┘
                 external failure

  - Submit while Submitting: no-op, ErrSubmitInProgress
  - Submit after Submitted:  ErrAlreadySubmitted
  - Edits outside Editing:   ErrSessionLocked
  - A failed submission keeps every candidate as it was.

CONCURRENCY:
  The mutex is NOT held across the external call, so a second Submit during
  the call observes Submitting instead of blocking.
*/
package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type SessionState string

const (
	StateEditing    SessionState = "editing"
	StateSubmitting SessionState = "submitting"
	StateSubmitted  SessionState = "submitted"
)

// submitGuard is the tri-state shared by both sessions. Callers hold mu.
type submitGuard struct {
	mu    sync.Mutex
	state SessionState
}

func (g *submitGuard) editableLocked() error {
	if g.state != StateEditing {
		return fmt.Errorf("%w: %s", ErrSessionLocked, g.state)
	}
	return nil
}

func (g *submitGuard) checkSubmittableLocked() error {
	switch g.state {
	case StateSubmitting:
		return ErrSubmitInProgress
	case StateSubmitted:
		return ErrAlreadySubmitted
	}
	return nil
}

func (g *submitGuard) finish(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.state = StateEditing
		return
	}
	g.state = StateSubmitted
}

// =============================================================================
// INVOICE SESSION
// =============================================================================

// InvoiceSession edits the pricing of one quotation and submits the invoice.
type InvoiceSession struct {
	submitGuard

	QuotationID QuotationID
	pricing     PricingSnapshot
	surcharge   SurchargeConfig
	creator     InvoiceCreator
	ref         InvoiceRef
}

// NewInvoiceSession starts from the quotation's pricing and the default surcharge.
func NewInvoiceSession(quotationID QuotationID, pricing PricingSnapshot, creator InvoiceCreator) *InvoiceSession {
	return &InvoiceSession{
		submitGuard: submitGuard{state: StateEditing},
		QuotationID: quotationID,
		pricing:     pricing,
		surcharge:   DefaultSurcharge(),
		creator:     creator,
	}
}

func (s *InvoiceSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetPricing replaces subtotal, tax and advance.
func (s *InvoiceSession) SetPricing(p PricingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.pricing = p
	return nil
}

// SetSurcharge toggles the surcharge and sets its percent.
func (s *InvoiceSession) SetSurcharge(enabled bool, percent decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	s.surcharge = SurchargeConfig{Enabled: enabled, Percent: percent}
	return nil
}

// Totals recomputes the invoice totals from the current inputs.
func (s *InvoiceSession) Totals() InvoiceTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Compute(s.pricing, s.surcharge)
}

// Submit creates the invoice through the collaborator.
func (s *InvoiceSession) Submit(ctx context.Context) (InvoiceRef, error) {
	s.mu.Lock()
	if err := s.checkSubmittableLocked(); err != nil {
		s.mu.Unlock()
		return InvoiceRef{}, err
	}
	totals := Compute(s.pricing, s.surcharge)
	if !totals.TotalAmount.IsPositive() {
		s.mu.Unlock()
		return InvoiceRef{}, ErrNonPositiveTotal
	}
	payload := NewCreateInvoicePayload(s.QuotationID, s.pricing, totals)
	s.state = StateSubmitting
	s.mu.Unlock()

	ref, err := s.creator.CreateInvoice(ctx, payload)
	if err == nil {
		s.mu.Lock()
		s.ref = ref
		s.mu.Unlock()
	}
	s.finish(err)
	if err != nil {
		return InvoiceRef{}, fmt.Errorf("create invoice: %w", err)
	}
	return ref, nil
}

// BreakupSession opens the breakup step for the created invoice. The target
// is the unrounded total that was submitted.
func (s *InvoiceSession) BreakupSession(creator BreakupCreator, validator *Validator) (*BreakupSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSubmitted {
		return nil, fmt.Errorf("%w: invoice not created yet", ErrSessionLocked)
	}
	total := Compute(s.pricing, s.surcharge).TotalAmount
	return NewBreakupSession(s.ref.ID, total, creator, validator), nil
}

// =============================================================================
// BREAKUP SESSION
// =============================================================================

// BreakupSession edits and submits the installment schedule of one invoice.
type BreakupSession struct {
	submitGuard

	InvoiceID InvoiceID
	Target    Amount
	list      *CandidateList
	validator *Validator
	creator   BreakupCreator
}

// NewBreakupSession starts with one empty candidate.
func NewBreakupSession(invoiceID InvoiceID, target Amount, creator BreakupCreator, validator *Validator) *BreakupSession {
	if validator == nil {
		validator = NewValidator(nil)
	}
	return &BreakupSession{
		submitGuard: submitGuard{state: StateEditing},
		InvoiceID:   invoiceID,
		Target:      normalizeAmount(target),
		list:        NewCandidateList(),
		validator:   validator,
		creator:     creator,
	}
}

func (s *BreakupSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *BreakupSession) Candidates() []InstallmentCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list.Items()
}

func (s *BreakupSession) Append(c InstallmentCandidate) (InstallmentCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return InstallmentCandidate{}, err
	}
	return s.list.Append(c)
}

func (s *BreakupSession) Remove(id CandidateID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	return s.list.Remove(id)
}

func (s *BreakupSession) Update(id CandidateID, field Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	return s.list.Update(id, field, value)
}

// Validate checks the current candidates against the target.
func (s *BreakupSession) Validate() (ValidationResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validator.Validate(s.list.Items(), s.Target)
}

// Submit validates and, only if CanSubmit, hands the breakup to the collaborator.
// The returned result is the validation that gated the attempt.
func (s *BreakupSession) Submit(ctx context.Context) (ValidationResult, error) {
	s.mu.Lock()
	if err := s.checkSubmittableLocked(); err != nil {
		s.mu.Unlock()
		return ValidationResult{}, err
	}
	candidates := s.list.Items()
	result, err := s.validator.Validate(candidates, s.Target)
	if err != nil {
		s.mu.Unlock()
		return result, err
	}
	if !result.CanSubmit() {
		s.mu.Unlock()
		return result, &BreakupRejectedError{Result: result}
	}
	s.state = StateSubmitting
	s.mu.Unlock()

	err = s.creator.CreatePaymentBreakup(ctx, s.InvoiceID, NewCreateBreakupPayload(candidates))
	s.finish(err)
	if err != nil {
		return result, fmt.Errorf("create payment breakup: %w", err)
	}
	return result, nil
}
