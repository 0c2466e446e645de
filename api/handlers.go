/*
handlers.go - HTTP API handlers for invoicing and payment breakups

PURPOSE:
  Exposes the billing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to billing.Service.

ENDPOINTS:
  Quotations:
    GET    /api/quotations/pending-invoice         Accepted, not yet invoiced
    POST   /api/quotations                         Import a quotation document
    GET    /api/quotations/{id}                    Get one quotation

  Invoices:
    POST   /api/invoices/preview                   Totals for a surcharge setting
    POST   /api/invoices/create-from-quotation     Create invoice (totals re-checked)
    GET    /api/invoices                           List invoices
    GET    /api/invoices/{id}                      Get one invoice

  Payment breakups:
    POST   /api/invoices/{id}/payment-breakup          Validate and store
    GET    /api/invoices/{id}/payment-breakup          Stored installments
    POST   /api/invoices/{id}/payment-breakup/validate Validate only
    GET    /api/invoices/{id}/payment-breakup/export   XLSX schedule

  Payments:
    POST   /api/invoices/{id}/payments             Record money received
    GET    /api/invoices/{id}/payment-allocations  Payments per installment
    GET    /api/payment-breakups/overdue           Overdue installments

  Admin:
    POST   /api/admin/reminders/run                Run the reminder sweep now

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert DTO to billing types
  3. Call billing.Service
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: Invalid input, malformed dates, totals mismatch
  - 404: Quotation, invoice or breakup not found
  - 409: Invoice or breakup already exists
  - 422: Breakup failed validation (details = validation result)
  - 500: Internal errors

SECURITY NOTE:
  No authentication. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/export"
	"github.com/warp/billing-engine/factory"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service    *billing.Service
	Quotations *factory.QuotationFactory
	Exporter   *export.ScheduleExporter
	Reminders  *OverdueScheduler // nil disables POST /admin/reminders/run

	// Surcharge applies to previews that do not say otherwise.
	Surcharge billing.SurchargeConfig

	Logger *zap.Logger
}

// NewHandler creates a handler over svc with the default surcharge.
func NewHandler(svc *billing.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:    svc,
		Quotations: factory.NewQuotationFactory(),
		Exporter:   export.NewScheduleExporter("", logger),
		Surcharge:  billing.DefaultSurcharge(),
		Logger:     logger,
	}
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// QUOTATION HANDLERS
// =============================================================================

// ListPendingQuotations returns accepted quotations that have no invoice.
// GET /api/quotations/pending-invoice
func (h *Handler) ListPendingQuotations(w http.ResponseWriter, r *http.Request) {
	quotations, err := h.Service.Store.ListPendingInvoiceQuotations(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list quotations", err)
		return
	}

	dtos := make([]QuotationDTO, len(quotations))
	for i, q := range quotations {
		dtos[i] = toQuotationDTO(q)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateQuotation imports a quotation document.
// POST /api/quotations
func (h *Handler) CreateQuotation(w http.ResponseWriter, r *http.Request) {
	var req factory.QuotationJSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return
	}

	q, err := h.Quotations.FromJSON(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid quotation", "invalid_quotation", err)
		return
	}
	if err := h.Service.Store.SaveQuotation(r.Context(), q); err != nil {
		h.writeServiceError(w, "Failed to save quotation", err)
		return
	}

	writeJSON(w, http.StatusCreated, toQuotationDTO(q))
}

// GetQuotation returns a single quotation.
// GET /api/quotations/{id}
func (h *Handler) GetQuotation(w http.ResponseWriter, r *http.Request) {
	id := billing.QuotationID(chi.URLParam(r, "id"))

	q, err := h.Service.Store.GetQuotation(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get quotation", err)
		return
	}
	writeJSON(w, http.StatusOK, toQuotationDTO(q))
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// PreviewInvoice computes invoice totals without storing anything.
// POST /api/invoices/preview
func (h *Handler) PreviewInvoice(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return
	}

	surcharge := h.Surcharge
	if req.TCSEnabled != nil {
		surcharge.Enabled = *req.TCSEnabled
	}
	if req.TCSPercent != nil {
		surcharge.Percent = *req.TCSPercent
	}

	q, totals, err := h.Service.Preview(r.Context(), billing.QuotationID(req.QuotationID), surcharge)
	if err != nil {
		h.writeServiceError(w, "Failed to preview invoice", err)
		return
	}
	if req.Subtotal != nil || req.TaxAmount != nil {
		pricing := q.Pricing
		if req.Subtotal != nil {
			pricing.Subtotal = billing.NewAmountFromDecimal(*req.Subtotal)
		}
		if req.TaxAmount != nil {
			pricing.TaxAmount = billing.NewAmountFromDecimal(*req.TaxAmount)
		}
		totals = billing.Compute(pricing, surcharge)
	}

	writeJSON(w, http.StatusOK, toTotalsDTO(q.ID, totals, q.Pricing.AdvanceAmount))
}

// CreateInvoice creates an invoice from an accepted quotation.
// POST /api/invoices/create-from-quotation
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return
	}
	if req.QuotationID == "" {
		writeError(w, http.StatusBadRequest, "quotation_id is required", "invalid_request", nil)
		return
	}

	ref, err := h.Service.CreateInvoice(r.Context(), req.payload())
	if err != nil {
		h.writeServiceError(w, "Failed to create invoice", err)
		return
	}

	inv, err := h.Service.Store.GetInvoice(r.Context(), ref.ID)
	if err != nil {
		h.writeServiceError(w, "Failed to load invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceDTO(inv))
}

// ListInvoices returns all invoices, newest first.
// GET /api/invoices
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Service.Store.ListInvoices(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i, inv := range invoices {
		dtos[i] = toInvoiceDTO(inv)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInvoice returns a single invoice.
// GET /api/invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Service.Store.GetInvoice(r.Context(), invoiceID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceDTO(inv))
}

// =============================================================================
// PAYMENT BREAKUP HANDLERS
// =============================================================================

// ValidateBreakup checks a breakup against the stored invoice total.
// A breakup that fails rules is still a 200: the result is the answer.
// POST /api/invoices/{id}/payment-breakup/validate
func (h *Handler) ValidateBreakup(w http.ResponseWriter, r *http.Request) {
	var req BreakupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return
	}

	result, err := h.Service.ValidateBreakup(r.Context(), invoiceID(r), req.candidates())
	if err != nil {
		h.writeValidationError(w, result, err)
		return
	}
	writeJSON(w, http.StatusOK, toValidationResultDTO(result))
}

// CreateBreakup validates and stores the payment breakup of an invoice.
// POST /api/invoices/{id}/payment-breakup
func (h *Handler) CreateBreakup(w http.ResponseWriter, r *http.Request) {
	var req BreakupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return
	}

	ctx := r.Context()
	id := invoiceID(r)
	candidates := req.candidates()

	// Dates are parsed into the payload, so malformed ones must be caught first.
	if result, err := h.Service.ValidateBreakup(ctx, id, candidates); err != nil {
		h.writeValidationError(w, result, err)
		return
	}

	if err := h.Service.CreatePaymentBreakup(ctx, id, billing.NewCreateBreakupPayload(candidates)); err != nil {
		h.writeServiceError(w, "Failed to create payment breakup", err)
		return
	}

	h.writeBreakup(w, r, http.StatusCreated)
}

// GetBreakup returns the stored installments of an invoice.
// GET /api/invoices/{id}/payment-breakup
func (h *Handler) GetBreakup(w http.ResponseWriter, r *http.Request) {
	h.writeBreakup(w, r, http.StatusOK)
}

func (h *Handler) writeBreakup(w http.ResponseWriter, r *http.Request, status int) {
	id := invoiceID(r)
	installments, err := h.Service.Store.GetBreakup(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to get payment breakup", err)
		return
	}

	dto := BreakupDTO{InvoiceID: string(id), Installments: make([]InstallmentDTO, len(installments))}
	total := billing.ZeroAmount()
	for i, inst := range installments {
		dto.Installments[i] = toInstallmentDTO(inst)
		total = total.Add(inst.Amount)
	}
	dto.Total = money(total)
	writeJSON(w, status, dto)
}

// ExportBreakup downloads the payment schedule as an XLSX workbook.
// GET /api/invoices/{id}/payment-breakup/export
func (h *Handler) ExportBreakup(w http.ResponseWriter, r *http.Request) {
	inv, alloc, err := h.Service.Allocations(r.Context(), invoiceID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to export payment breakup", err)
		return
	}

	var buf bytes.Buffer
	if err := h.Exporter.Write(&buf, inv, alloc); err != nil {
		h.writeServiceError(w, "Failed to export payment breakup", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-schedule.xlsx"`, inv.InvoiceNumber))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// RecordPayment stores money received against an invoice.
// POST /api/invoices/{id}/payments
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", "invalid_request", err)
		return
	}

	p, err := h.Service.RecordPayment(r.Context(), invoiceID(r),
		billing.NewAmountFromDecimal(req.Amount), req.Method, req.Reference)
	if err != nil {
		h.writeServiceError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPaymentDTO(p))
}

// GetAllocations shows how payments cover the installments of an invoice.
// GET /api/invoices/{id}/payment-allocations
func (h *Handler) GetAllocations(w http.ResponseWriter, r *http.Request) {
	inv, alloc, err := h.Service.Allocations(r.Context(), invoiceID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to get payment allocations", err)
		return
	}
	writeJSON(w, http.StatusOK, toAllocationDTO(inv, alloc))
}

// ListOverdue returns overdue installments grouped by invoice.
// GET /api/payment-breakups/overdue
func (h *Handler) ListOverdue(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.Overdue(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list overdue installments", err)
		return
	}
	writeJSON(w, http.StatusOK, toOverdueResponse(h.Service.Clock.Today(), groups))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunReminders runs the reminder sweep immediately.
// POST /api/admin/reminders/run
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	if h.Reminders == nil {
		writeError(w, http.StatusServiceUnavailable, "Reminders are not configured", "reminders_disabled", nil)
		return
	}

	run, err := h.Reminders.RunNow(r.Context())
	if err != nil {
		h.writeServiceError(w, "Reminder sweep failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ReminderRunDTO{
		Day:     run.Day.String(),
		Sent:    run.Sent,
		Skipped: run.Skipped,
		Failed:  run.Failed,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func invoiceID(r *http.Request) billing.InvoiceID {
	return billing.InvoiceID(chi.URLParam(r, "id"))
}

func (req CreateInvoiceRequest) payload() billing.CreateInvoicePayload {
	return billing.CreateInvoicePayload{
		QuotationID:      billing.QuotationID(req.QuotationID),
		SurchargePercent: req.TCSPercent,
		Subtotal:         billing.NewAmountFromDecimal(req.Subtotal),
		TaxAmount:        billing.NewAmountFromDecimal(req.TaxAmount),
		SurchargeAmount:  billing.NewAmountFromDecimal(req.TCSAmount),
		TotalAmount:      billing.NewAmountFromDecimal(req.TotalAmount),
		AdvanceAmount:    billing.NewAmountFromDecimal(req.AdvanceAmount),
	}
}

// writeValidationError reports a validation that could not complete. A
// malformed date still carries the partial result in details.
func (h *Handler) writeValidationError(w http.ResponseWriter, partial billing.ValidationResult, err error) {
	var parseErr *billing.DateParseError
	if errors.As(err, &parseErr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   parseErr.Error(),
			Code:    codeFor(err),
			Details: toValidationResultDTO(partial),
		})
		return
	}
	h.writeServiceError(w, "Failed to validate payment breakup", err)
}

// writeServiceError maps a billing error to its status and code.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, zap.Error(err))
		writeError(w, status, message, codeFor(err), err)
		return
	}

	var rejected *billing.BreakupRejectedError
	if errors.As(err, &rejected) {
		writeJSON(w, status, ErrorResponse{
			Error:   err.Error(),
			Code:    codeFor(err),
			Details: toValidationResultDTO(rejected.Result),
		})
		return
	}
	writeError(w, status, err.Error(), codeFor(err), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, billing.ErrBreakupRejected):
		return http.StatusUnprocessableEntity
	case billing.IsNotFound(err):
		return http.StatusNotFound
	case billing.IsConflict(err):
		return http.StatusConflict
	case billing.IsClientError(err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorCodes pairs each sentinel with its wire code. Client maps codes back.
var errorCodes = []struct {
	err  error
	code string
}{
	{billing.ErrBreakupRejected, "breakup_rejected"},
	{billing.ErrMalformedDate, "malformed_date"},
	{billing.ErrTotalsMismatch, "totals_mismatch"},
	{billing.ErrNonPositiveTotal, "non_positive_total"},
	{billing.ErrNonPositivePayment, "non_positive_payment"},
	{billing.ErrQuotationNotAccepted, "quotation_not_accepted"},
	{billing.ErrQuotationNotFound, "quotation_not_found"},
	{billing.ErrInvoiceNotFound, "invoice_not_found"},
	{billing.ErrBreakupNotFound, "breakup_not_found"},
	{billing.ErrInvoiceExists, "invoice_exists"},
	{billing.ErrBreakupExists, "breakup_exists"},
}

func codeFor(err error) string {
	for _, c := range errorCodes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal_error"
}

func errorForCode(code string) error {
	for _, c := range errorCodes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
