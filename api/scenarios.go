/*
scenarios.go - Demo data for development and demonstrations

PURPOSE:

	Populates the database with a small, realistic data set so every
	screen has something to show: a quotation waiting for an invoice, an
	invoiced quotation with a partly paid, partly overdue breakup, and a
	quotation that was not accepted yet.

HOW SEEDING WORKS:
 1. Reset database (clear all data)
 2. Import quotations via factory (same JSON as POST /api/quotations)
 3. Invoice one quotation through billing.Service
 4. Store its breakup directly: the due dates lie in the past, which
    the validator would reject for a new breakup
 5. Record a payment that covers part of the first installment

All dates are relative to the service clock, so the data is always
"current" whatever day it is seeded.

USAGE VIA API:

	POST /api/demo/seed
	POST /api/demo/reset

NOTE:

	Seeding resets the database. Routes exist only when demo mode is enabled.

SEE ALSO:
  - server.go: RouterOptions.EnableDemo
  - factory/quotation.go: Quotation JSON documents
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/factory"
	"go.uber.org/zap"
)

// ErrResetUnsupported is returned when the store cannot be cleared.
var ErrResetUnsupported = errors.New("store does not support reset")

// resetter is implemented by stores that can drop all their data.
type resetter interface {
	Reset(ctx context.Context) error
}

// DemoLoader seeds and clears demo data.
type DemoLoader struct {
	Service    *billing.Service
	Quotations *factory.QuotationFactory
	Logger     *zap.Logger
}

// NewDemoLoader creates a loader over svc.
func NewDemoLoader(svc *billing.Service, logger *zap.Logger) *DemoLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DemoLoader{Service: svc, Quotations: factory.NewQuotationFactory(), Logger: logger}
}

// =============================================================================
// HANDLERS
// =============================================================================

// Seed resets the database and loads the demo data.
// POST /api/demo/seed
func (d *DemoLoader) Seed(w http.ResponseWriter, r *http.Request) {
	result, err := d.Load(r.Context())
	if err != nil {
		d.Logger.Error("failed to seed demo data", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to seed demo data", "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Reset clears all data.
// POST /api/demo/reset
func (d *DemoLoader) Reset(w http.ResponseWriter, r *http.Request) {
	if err := d.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// LOADERS
// =============================================================================

// Demo quotation IDs.
const (
	DemoPendingQuotation  = "q-demo-goa"
	DemoInvoicedQuotation = "q-demo-kerala"
	DemoSentQuotation     = "q-demo-jaipur"
)

const demoQuotationJSON = `{
	"id": %q,
	"request_id": %q,
	"client_name": %q,
	"client_email": %q,
	"status": %q,
	"detailed_quotation_data": {
		"tripTitle": %q,
		"city": %q,
		"bookingRef": %q,
		"pricing": {"subtotal": %s, "taxes": %s, "depositDue": %s, "currency": "INR"}
	}
}`

// Load resets the store and seeds the demo data.
func (d *DemoLoader) Load(ctx context.Context) (DemoSeedDTO, error) {
	if err := d.reset(ctx); err != nil {
		return DemoSeedDTO{}, err
	}

	docs := []string{
		fmt.Sprintf(demoQuotationJSON, DemoPendingQuotation, "req-101", "Asha Rao", "asha@example.com",
			"accepted", "Goa Beach Retreat", "Goa", "GOA-2291", "11000", "800", "3000"),
		fmt.Sprintf(demoQuotationJSON, DemoInvoicedQuotation, "req-102", "Vikram Menon", "vikram@example.com",
			"accepted", "Kerala Backwaters", "Kochi", "KER-1187", "25000", "1250", "6000"),
		fmt.Sprintf(demoQuotationJSON, DemoSentQuotation, "req-103", "Meera Iyer", "meera@example.com",
			"sent", "Jaipur Heritage Walk", "Jaipur", "JAI-0456", "18000", "900", "4000"),
	}

	result := DemoSeedDTO{}
	for _, doc := range docs {
		q, err := d.Quotations.ParseQuotation(doc)
		if err != nil {
			return DemoSeedDTO{}, fmt.Errorf("demo quotation: %w", err)
		}
		if err := d.Service.Store.SaveQuotation(ctx, q); err != nil {
			return DemoSeedDTO{}, err
		}
		result.Quotations = append(result.Quotations, string(q.ID))
	}

	inv, err := d.loadInvoicedTrip(ctx)
	if err != nil {
		return DemoSeedDTO{}, err
	}
	result.InvoiceID = string(inv.ID)
	result.InvoiceNumber = inv.InvoiceNumber

	d.Logger.Info("demo data seeded",
		zap.Int("quotations", len(result.Quotations)),
		zap.String("invoice_id", result.InvoiceID))
	return result, nil
}

// loadInvoicedTrip invoices the Kerala quotation (26775.00 with 2% TCS) and
// gives it three installments: one 20 days overdue and partly paid, one
// 5 days overdue, one due in 10 days.
func (d *DemoLoader) loadInvoicedTrip(ctx context.Context) (billing.Invoice, error) {
	q, totals, err := d.Service.Preview(ctx, DemoInvoicedQuotation, billing.DefaultSurcharge())
	if err != nil {
		return billing.Invoice{}, err
	}
	ref, err := d.Service.CreateInvoice(ctx, billing.NewCreateInvoicePayload(q.ID, q.Pricing, totals))
	if err != nil {
		return billing.Invoice{}, fmt.Errorf("demo invoice: %w", err)
	}

	today := d.Service.Clock.Today()
	schedule := []struct {
		amount      float64
		offsetDays  int
		description string
	}{
		{10000, -20, "Advance"},
		{8000, -5, "Second installment"},
		{8775, 10, "Balance before travel"},
	}
	installments := make([]billing.Installment, len(schedule))
	for i, s := range schedule {
		installments[i] = billing.Installment{
			ID:          billing.InstallmentID(fmt.Sprintf("%s-inst-%d", ref.ID, i+1)),
			InvoiceID:   ref.ID,
			Sequence:    i + 1,
			Amount:      billing.NewAmount(s.amount),
			DueDate:     today.AddDays(s.offsetDays),
			Description: s.description,
		}
	}
	if err := d.Service.Store.SaveBreakup(ctx, ref.ID, installments); err != nil {
		return billing.Invoice{}, fmt.Errorf("demo breakup: %w", err)
	}

	if _, err := d.Service.RecordPayment(ctx, ref.ID, billing.NewAmount(6000), "bank_transfer", "NEFT-DEMO-0001"); err != nil {
		return billing.Invoice{}, fmt.Errorf("demo payment: %w", err)
	}

	return d.Service.Store.GetInvoice(ctx, ref.ID)
}

func (d *DemoLoader) reset(ctx context.Context) error {
	r, ok := d.Service.Store.(resetter)
	if !ok {
		return ErrResetUnsupported
	}
	if err := r.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	return nil
}
