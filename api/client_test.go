package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
)

func TestClient_SessionsSubmitOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	ts.createQuotation("q-1", "accepted", "11000", "800")
	ctx := context.Background()
	client := NewClient(ts.url + "/")

	// GIVEN: an invoice session for the quotation, submitting over HTTP
	q, err := ts.store.GetQuotation(ctx, "q-1")
	require.NoError(t, err)
	invSession := billing.NewInvoiceSession(q.ID, q.Pricing, client)

	// WHEN: the invoice is submitted
	ref, err := invSession.Submit(ctx)

	// THEN: the server created it
	require.NoError(t, err)
	assert.Equal(t, billing.StateSubmitted, invSession.State())
	inv, err := ts.store.GetInvoice(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, ref.InvoiceNumber, inv.InvoiceNumber)
	assert.True(t, inv.TotalAmount.Equal(billing.NewAmount(12036)))

	// WHEN: a balanced breakup is submitted for it
	bs, err := invSession.BreakupSession(client, billing.NewValidator(billing.FixedClock(apiNow)))
	require.NoError(t, err)
	first := bs.Candidates()[0].ID
	require.NoError(t, bs.Update(first, billing.FieldAmount, "6000"))
	require.NoError(t, bs.Update(first, billing.FieldDueDate, "2025-03-01"))
	require.NoError(t, bs.Update(first, billing.FieldDescription, "Advance"))
	_, err = bs.Append(billing.InstallmentCandidate{Amount: "6036", DueDate: "2025-03-11"})
	require.NoError(t, err)

	result, err := bs.Submit(ctx)

	// THEN: the server stored both installments in order
	require.NoError(t, err)
	assert.True(t, result.CanSubmit())
	assert.Equal(t, billing.StateSubmitted, bs.State())

	installments, err := ts.store.GetBreakup(ctx, ref.ID)
	require.NoError(t, err)
	require.Len(t, installments, 2)
	assert.Equal(t, "Advance", installments[0].Description)
	assert.Equal(t, "2025-03-11", installments[1].DueDate.String())
}

func TestClient_ServerErrorsUnwrapToSentinels(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	client := NewClient(ts.url)
	inv := ts.createInvoice()

	t.Run("duplicate invoice", func(t *testing.T) {
		q, err := ts.store.GetQuotation(ctx, "q-1")
		require.NoError(t, err)
		session := billing.NewInvoiceSession(q.ID, q.Pricing, client)

		_, err = session.Submit(ctx)

		require.Error(t, err)
		assert.ErrorIs(t, err, billing.ErrInvoiceExists)
		assert.True(t, billing.IsConflict(err))
		// a failed submission returns the session to editing
		assert.Equal(t, billing.StateEditing, session.State())

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	})

	t.Run("breakup rejected by the server", func(t *testing.T) {
		// The server's own validation catches a past date a stale client let through.
		payload := billing.NewCreateBreakupPayload([]billing.InstallmentCandidate{
			{ID: 1, Amount: "12036", DueDate: "2025-02-01"},
		})

		err := client.CreatePaymentBreakup(ctx, billing.InvoiceID(inv.ID), payload)

		assert.ErrorIs(t, err, billing.ErrBreakupRejected)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
		assert.Contains(t, string(apiErr.Details), "past_date_violation")
	})

	t.Run("unknown invoice", func(t *testing.T) {
		payload := billing.NewCreateBreakupPayload([]billing.InstallmentCandidate{
			{ID: 1, Amount: "10", DueDate: "2025-03-02"},
		})

		err := client.CreatePaymentBreakup(ctx, "inv-missing", payload)

		assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
		assert.True(t, billing.IsNotFound(err))
	})
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).CreatePaymentBreakup(context.Background(), "inv-1", billing.CreateBreakupPayload{})

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Equal(t, "upstream unavailable", apiErr.Message)
	assert.Nil(t, errors.Unwrap(apiErr))
}
