/*
Package factory provides JSON to Go quotation conversion.

PURPOSE:
  Converts quotation documents, as produced by the quotation builder, into
  billing.Quotation values. The builder stores a free-form
  "detailed_quotation_data" document; only its pricing block and a few
  display fields matter for invoicing, and the rest is kept verbatim.

JSON SCHEMA:
  {
    "id": "quot-1",
    "request_id": "req-7",
    "client_name": "Asha Rao",
    "client_email": "asha@example.com",
    "status": "accepted",
    "detailed_quotation_data": {
      "tripTitle": "Goa Getaway",
      "city": "Goa",
      "bookingRef": "BK-2025-001",
      "pricing": {
        "subtotal": 10000,
        "taxes": 1800,
        "depositDue": 3000,
        "currency": "INR"
      },
      ... any other builder fields ...
    }
  }

KEY FEATURES:
  - Amounts accept JSON numbers or decimal strings
  - Missing pricing fields default to 0
  - Status defaults to "draft"
  - Currency other than INR is rejected

USAGE:
  f := factory.NewQuotationFactory()
  q, err := f.ParseQuotation(jsonString)
  err = store.SaveQuotation(ctx, q)

SEE ALSO:
  - billing/store.go: Quotation type definition
  - billing/calculator.go: PricingSnapshot
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// QuotationJSON is the JSON representation of a quotation.
type QuotationJSON struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id,omitempty"`
	ClientName  string          `json:"client_name"`
	ClientEmail string          `json:"client_email,omitempty"`
	Status      string          `json:"status,omitempty"`
	CreatedAt   string          `json:"created_at,omitempty"` // RFC3339
	Detail      json.RawMessage `json:"detailed_quotation_data,omitempty"`
}

// DetailJSON is the part of the builder document invoicing reads.
type DetailJSON struct {
	TripTitle  string      `json:"tripTitle"`
	City       string      `json:"city"`
	BookingRef string      `json:"bookingRef"`
	Pricing    PricingJSON `json:"pricing"`
}

// PricingJSON is the builder's pricing block.
type PricingJSON struct {
	Subtotal   decimal.NullDecimal `json:"subtotal"`
	Taxes      decimal.NullDecimal `json:"taxes"`
	DepositDue decimal.NullDecimal `json:"depositDue"`
	Currency   string              `json:"currency,omitempty"`
}

// =============================================================================
// QUOTATION FACTORY
// =============================================================================

// QuotationFactory converts JSON quotations to billing.Quotation.
type QuotationFactory struct {
	// Now stamps quotations that carry no created_at.
	Now func() time.Time
}

// NewQuotationFactory creates a new quotation factory.
func NewQuotationFactory() *QuotationFactory {
	return &QuotationFactory{Now: time.Now}
}

// ParseQuotation parses a JSON string into a Quotation.
func (f *QuotationFactory) ParseQuotation(jsonStr string) (billing.Quotation, error) {
	var qj QuotationJSON
	if err := json.Unmarshal([]byte(jsonStr), &qj); err != nil {
		return billing.Quotation{}, fmt.Errorf("failed to parse quotation JSON: %w", err)
	}
	return f.FromJSON(qj)
}

// FromJSON converts QuotationJSON to billing.Quotation.
func (f *QuotationFactory) FromJSON(qj QuotationJSON) (billing.Quotation, error) {
	if strings.TrimSpace(qj.ID) == "" {
		return billing.Quotation{}, fmt.Errorf("quotation id is required")
	}

	var detail DetailJSON
	if len(qj.Detail) > 0 && string(qj.Detail) != "null" {
		if err := json.Unmarshal(qj.Detail, &detail); err != nil {
			return billing.Quotation{}, fmt.Errorf("failed to parse detailed_quotation_data: %w", err)
		}
	}

	if c := strings.ToUpper(strings.TrimSpace(detail.Pricing.Currency)); c != "" && c != string(billing.CurrencyINR) {
		return billing.Quotation{}, fmt.Errorf("unsupported currency %q", detail.Pricing.Currency)
	}

	status, err := parseQuotationStatus(qj.Status)
	if err != nil {
		return billing.Quotation{}, err
	}

	createdAt := f.now()
	if qj.CreatedAt != "" {
		createdAt, err = time.Parse(time.RFC3339, qj.CreatedAt)
		if err != nil {
			return billing.Quotation{}, fmt.Errorf("invalid created_at: %w", err)
		}
	}

	return billing.Quotation{
		ID:          billing.QuotationID(qj.ID),
		RequestID:   qj.RequestID,
		ClientName:  qj.ClientName,
		ClientEmail: qj.ClientEmail,
		Status:      status,
		Pricing:     detail.Pricing.snapshot(),
		TripTitle:   detail.TripTitle,
		City:        detail.City,
		BookingRef:  detail.BookingRef,
		DetailJSON:  string(qj.Detail),
		CreatedAt:   createdAt,
	}, nil
}

// ToJSON converts a Quotation back to QuotationJSON. The stored builder
// document is returned as-is; when there is none, a minimal one is built.
func (f *QuotationFactory) ToJSON(q billing.Quotation) QuotationJSON {
	qj := QuotationJSON{
		ID:          string(q.ID),
		RequestID:   q.RequestID,
		ClientName:  q.ClientName,
		ClientEmail: q.ClientEmail,
		Status:      string(q.Status),
		CreatedAt:   q.CreatedAt.UTC().Format(time.RFC3339),
	}
	if q.DetailJSON != "" {
		qj.Detail = json.RawMessage(q.DetailJSON)
		return qj
	}

	detail := DetailJSON{
		TripTitle:  q.TripTitle,
		City:       q.City,
		BookingRef: q.BookingRef,
		Pricing: PricingJSON{
			Subtotal:   decimal.NewNullDecimal(q.Pricing.Subtotal.Value),
			Taxes:      decimal.NewNullDecimal(q.Pricing.TaxAmount.Value),
			DepositDue: decimal.NewNullDecimal(q.Pricing.AdvanceAmount.Value),
			Currency:   string(billing.CurrencyINR),
		},
	}
	raw, _ := json.Marshal(detail)
	qj.Detail = raw
	return qj
}

func (f *QuotationFactory) now() time.Time {
	if f.Now == nil {
		return time.Now()
	}
	return f.Now()
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func (p PricingJSON) snapshot() billing.PricingSnapshot {
	return billing.PricingSnapshot{
		Subtotal:      billing.NewAmountFromDecimal(orZero(p.Subtotal)),
		TaxAmount:     billing.NewAmountFromDecimal(orZero(p.Taxes)),
		AdvanceAmount: billing.NewAmountFromDecimal(orZero(p.DepositDue)),
	}
}

func orZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

func parseQuotationStatus(s string) (billing.QuotationStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "draft":
		return billing.QuotationDraft, nil
	case "sent":
		return billing.QuotationSent, nil
	case "accepted":
		return billing.QuotationAccepted, nil
	case "rejected":
		return billing.QuotationRejected, nil
	default:
		return "", fmt.Errorf("unknown quotation status %q", s)
	}
}
