// Package store provides in-memory billing.Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	quotations map[billing.QuotationID]billing.Quotation
	invoices   map[billing.InvoiceID]billing.Invoice
	byQuote    map[billing.QuotationID]billing.InvoiceID
	breakups   map[billing.InvoiceID][]billing.Installment
	payments   map[billing.InvoiceID][]billing.Payment
	reminders  map[reminderKey]bool
}

type reminderKey struct {
	InstallmentID billing.InstallmentID
	Kind          billing.ReminderKind
	Day           string
}

var (
	_ billing.Store       = (*Memory)(nil)
	_ billing.ReminderLog = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		quotations: make(map[billing.QuotationID]billing.Quotation),
		invoices:   make(map[billing.InvoiceID]billing.Invoice),
		byQuote:    make(map[billing.QuotationID]billing.InvoiceID),
		breakups:   make(map[billing.InvoiceID][]billing.Installment),
		payments:   make(map[billing.InvoiceID][]billing.Payment),
		reminders:  make(map[reminderKey]bool),
	}
}

func (m *Memory) SaveQuotation(_ context.Context, q billing.Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotations[q.ID] = q
	return nil
}

func (m *Memory) GetQuotation(_ context.Context, id billing.QuotationID) (billing.Quotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotations[id]
	if !ok {
		return billing.Quotation{}, fmt.Errorf("%w: %s", billing.ErrQuotationNotFound, id)
	}
	return q, nil
}

func (m *Memory) ListPendingInvoiceQuotations(_ context.Context) ([]billing.Quotation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []billing.Quotation
	for _, q := range m.quotations {
		if _, invoiced := m.byQuote[q.ID]; q.Status == billing.QuotationAccepted && !invoiced {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateInvoice(_ context.Context, inv billing.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byQuote[inv.QuotationID]; exists {
		return fmt.Errorf("%w: %s", billing.ErrInvoiceExists, inv.QuotationID)
	}
	m.invoices[inv.ID] = inv
	m.byQuote[inv.QuotationID] = inv.ID
	return nil
}

func (m *Memory) GetInvoice(_ context.Context, id billing.InvoiceID) (billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.invoices[id]
	if !ok {
		return billing.Invoice{}, fmt.Errorf("%w: %s", billing.ErrInvoiceNotFound, id)
	}
	return inv, nil
}

func (m *Memory) ListInvoices(_ context.Context) ([]billing.Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// SaveBreakup stores all installments at once. All-or-nothing.
func (m *Memory) SaveBreakup(_ context.Context, invoiceID billing.InvoiceID, installments []billing.Installment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[invoiceID]; !ok {
		return fmt.Errorf("%w: %s", billing.ErrInvoiceNotFound, invoiceID)
	}
	if _, exists := m.breakups[invoiceID]; exists {
		return fmt.Errorf("%w: %s", billing.ErrBreakupExists, invoiceID)
	}
	stored := make([]billing.Installment, len(installments))
	copy(stored, installments)
	m.breakups[invoiceID] = stored
	return nil
}

func (m *Memory) GetBreakup(_ context.Context, invoiceID billing.InvoiceID) ([]billing.Installment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	installments, ok := m.breakups[invoiceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", billing.ErrBreakupNotFound, invoiceID)
	}
	out := make([]billing.Installment, len(installments))
	copy(out, installments)
	return out, nil
}

func (m *Memory) ListBreakupInvoices(_ context.Context) ([]billing.InvoiceID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.InvoiceID, 0, len(m.breakups))
	for id := range m.breakups {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (m *Memory) RecordPayment(_ context.Context, p billing.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.invoices[p.InvoiceID]; !ok {
		return fmt.Errorf("%w: %s", billing.ErrInvoiceNotFound, p.InvoiceID)
	}
	m.payments[p.InvoiceID] = append(m.payments[p.InvoiceID], p)
	return nil
}

func (m *Memory) ListPayments(_ context.Context, invoiceID billing.InvoiceID) ([]billing.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]billing.Payment, len(m.payments[invoiceID]))
	copy(out, m.payments[invoiceID])
	return out, nil
}

func (m *Memory) MarkReminded(_ context.Context, installmentID billing.InstallmentID, kind billing.ReminderKind, day billing.Date) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := reminderKey{InstallmentID: installmentID, Kind: kind, Day: day.String()}
	if m.reminders[k] {
		return false, nil
	}
	m.reminders[k] = true
	return true, nil
}

// Reset deletes all data.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotations = make(map[billing.QuotationID]billing.Quotation)
	m.invoices = make(map[billing.InvoiceID]billing.Invoice)
	m.byQuote = make(map[billing.QuotationID]billing.InvoiceID)
	m.breakups = make(map[billing.InvoiceID][]billing.Installment)
	m.payments = make(map[billing.InvoiceID][]billing.Payment)
	m.reminders = make(map[reminderKey]bool)
	return nil
}
