/*
store.go - Persistence interfaces for quotations, invoices and breakups

PURPOSE:
  Defines the interface between the billing service and the database.
  Implementations: store/sqlite (production) and billing/store (memory,
  tests and dev).

WRITE RULES:
  - CreateInvoice: at most ONE invoice per quotation (ErrInvoiceExists)
  - SaveBreakup:   at most ONE breakup per invoice (ErrBreakupExists),
                   all installments written atomically or none
  - RecordPayment: append-only; allocation is recomputed on read

NOT FOUND:
  Getters return the package's not-found sentinels rather than nil, nil so
  callers can use errors.Is directly.

SEE ALSO:
  - service.go: Uses Store
  - store/sqlite/sqlite.go: Concrete implementation
*/
package billing

import (
	"context"
	"time"
)

// =============================================================================
// QUOTATION - Priced offer an invoice is created from
// =============================================================================

type QuotationStatus string

const (
	QuotationDraft    QuotationStatus = "draft"
	QuotationSent     QuotationStatus = "sent"
	QuotationAccepted QuotationStatus = "accepted"
	QuotationRejected QuotationStatus = "rejected"
)

type Quotation struct {
	ID          QuotationID
	RequestID   string
	ClientName  string
	ClientEmail string
	Status      QuotationStatus
	Pricing     PricingSnapshot
	TripTitle   string
	City        string
	BookingRef  string
	DetailJSON  string // raw detailed quotation document
	CreatedAt   time.Time
}

// =============================================================================
// PAYMENT - Money received against an invoice
// =============================================================================

type Payment struct {
	ID         PaymentID
	InvoiceID  InvoiceID
	Amount     Amount
	Method     string // bank_transfer, upi, card
	Reference  string
	ReceivedAt time.Time
}

// =============================================================================
// STORE
// =============================================================================

// Store persists the billing documents.
type Store interface {
	SaveQuotation(ctx context.Context, q Quotation) error
	GetQuotation(ctx context.Context, id QuotationID) (Quotation, error)
	// ListPendingInvoiceQuotations returns accepted quotations without an invoice.
	ListPendingInvoiceQuotations(ctx context.Context) ([]Quotation, error)

	CreateInvoice(ctx context.Context, inv Invoice) error
	GetInvoice(ctx context.Context, id InvoiceID) (Invoice, error)
	ListInvoices(ctx context.Context) ([]Invoice, error)

	SaveBreakup(ctx context.Context, invoiceID InvoiceID, installments []Installment) error
	GetBreakup(ctx context.Context, invoiceID InvoiceID) ([]Installment, error)
	// ListBreakupInvoices returns the IDs of all invoices that have a breakup.
	ListBreakupInvoices(ctx context.Context) ([]InvoiceID, error)

	RecordPayment(ctx context.Context, p Payment) error
	ListPayments(ctx context.Context, invoiceID InvoiceID) ([]Payment, error)
}

// ReminderKind distinguishes upcoming from overdue reminders.
type ReminderKind string

const (
	ReminderDueSoon ReminderKind = "due_soon"
	ReminderOverdue ReminderKind = "overdue"
)

// ReminderLog remembers which reminders went out, one per installment, kind and day.
type ReminderLog interface {
	// MarkReminded records the reminder; it returns false if it was already recorded.
	MarkReminded(ctx context.Context, installmentID InstallmentID, kind ReminderKind, day Date) (bool, error)
}
