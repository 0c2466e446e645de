package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
)

const builderQuotation = `{
	"id": "quot-1",
	"request_id": "req-7",
	"client_name": "Asha Rao",
	"client_email": "asha@example.com",
	"status": "ACCEPTED",
	"created_at": "2025-03-01T10:00:00Z",
	"detailed_quotation_data": {
		"tripTitle": "Goa Getaway",
		"city": "Goa",
		"bookingRef": "BK-2025-001",
		"hotel_bookings": [{"name": "Sea View"}],
		"pricing": {"subtotal": 10000, "taxes": "1800.50", "depositDue": 3000, "currency": "INR"}
	}
}`

func TestParseQuotation_BuilderDocument(t *testing.T) {
	q, err := NewQuotationFactory().ParseQuotation(builderQuotation)
	require.NoError(t, err)

	assert.Equal(t, billing.QuotationID("quot-1"), q.ID)
	assert.Equal(t, billing.QuotationAccepted, q.Status)
	assert.Equal(t, "Goa Getaway", q.TripTitle)
	assert.Equal(t, "BK-2025-001", q.BookingRef)
	assert.True(t, q.Pricing.Subtotal.Value.Equal(billing.ParseDecimalOrZero("10000")))
	assert.True(t, q.Pricing.TaxAmount.Value.Equal(billing.ParseDecimalOrZero("1800.50")))
	assert.True(t, q.Pricing.AdvanceAmount.Value.Equal(billing.ParseDecimalOrZero("3000")))
	assert.Contains(t, q.DetailJSON, "Sea View", "unknown builder fields are kept")
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), q.CreatedAt)
}

func TestParseQuotation_Defaults(t *testing.T) {
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	f := &QuotationFactory{Now: func() time.Time { return fixed }}

	q, err := f.ParseQuotation(`{"id": "quot-2", "client_name": "Ravi"}`)
	require.NoError(t, err)

	assert.Equal(t, billing.QuotationDraft, q.Status)
	assert.True(t, q.Pricing.Subtotal.IsZero())
	assert.Equal(t, fixed, q.CreatedAt)
}

func TestParseQuotation_Errors(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"malformed", `{"id": `},
		{"missing id", `{"client_name": "x"}`},
		{"foreign currency", `{"id": "q", "detailed_quotation_data": {"pricing": {"currency": "USD"}}}`},
		{"unknown status", `{"id": "q", "status": "archived"}`},
		{"bad amount", `{"id": "q", "detailed_quotation_data": {"pricing": {"subtotal": "lots"}}}`},
	}

	f := NewQuotationFactory()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.ParseQuotation(tt.json)
			assert.Error(t, err)
		})
	}
}

func TestToJSON_RoundTrip(t *testing.T) {
	f := NewQuotationFactory()
	q := billing.Quotation{
		ID:         "quot-3",
		ClientName: "Meera",
		Status:     billing.QuotationSent,
		Pricing: billing.PricingSnapshot{
			Subtotal:  billing.NewAmount(500),
			TaxAmount: billing.NewAmount(90),
		},
		City:      "Jaipur",
		CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	back, err := f.FromJSON(f.ToJSON(q))
	require.NoError(t, err)

	assert.Equal(t, q.ID, back.ID)
	assert.Equal(t, q.Status, back.Status)
	assert.Equal(t, "Jaipur", back.City)
	assert.True(t, back.Pricing.TaxAmount.Equal(q.Pricing.TaxAmount))
	assert.Equal(t, q.CreatedAt, back.CreatedAt)
}
