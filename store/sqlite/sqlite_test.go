package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func amount(s string) billing.Amount {
	return billing.NewAmountFromDecimal(billing.ParseDecimalOrZero(s))
}

func seedInvoice(t *testing.T, store *Store) billing.Invoice {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveQuotation(ctx, billing.Quotation{
		ID:          "q-1",
		ClientName:  "Asha Rao",
		ClientEmail: "asha@example.com",
		Status:      billing.QuotationAccepted,
		Pricing: billing.PricingSnapshot{
			Subtotal:      amount("333.33"),
			TaxAmount:     amount("0"),
			AdvanceAmount: amount("100"),
		},
		TripTitle: "Goa Getaway",
		CreatedAt: created,
	}))

	inv := billing.Invoice{
		ID:               "inv-1",
		InvoiceNumber:    "INV-20250301-0A1B2C3D",
		QuotationID:      "q-1",
		ClientName:       "Asha Rao",
		ClientEmail:      "asha@example.com",
		SurchargePercent: billing.ParseDecimalOrZero("1"),
		Subtotal:         amount("333.33"),
		TaxAmount:        amount("0"),
		SurchargeAmount:  amount("3.3333"),
		TotalAmount:      amount("336.6633"),
		AdvanceAmount:    amount("100"),
		CreatedAt:        created,
	}
	require.NoError(t, store.CreateInvoice(ctx, inv))
	return inv
}

func TestStore_QuotationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedInvoice(t, store)

	q, err := store.GetQuotation(ctx, "q-1")
	require.NoError(t, err)
	assert.Equal(t, "Goa Getaway", q.TripTitle)
	assert.True(t, q.Pricing.Subtotal.Equal(amount("333.33")))
	assert.Equal(t, billing.CurrencyINR, q.Pricing.Subtotal.Currency)

	_, err = store.GetQuotation(ctx, "nope")
	assert.ErrorIs(t, err, billing.ErrQuotationNotFound)
}

func TestStore_InvoiceKeepsUnroundedTotal(t *testing.T) {
	// GIVEN: an invoice whose total has four fraction digits
	// THEN: it is read back exactly, not as a float approximation

	ctx := context.Background()
	store := newTestStore(t)
	seedInvoice(t, store)

	inv, err := store.GetInvoice(ctx, "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "336.6633", inv.TotalAmount.Value.String())
	assert.True(t, inv.SurchargePercent.Equal(billing.ParseDecimalOrZero("1")))

	list, err := store.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestStore_OneInvoicePerQuotation(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	inv := seedInvoice(t, store)

	inv.ID = "inv-2"
	inv.InvoiceNumber = "INV-20250301-FFFFFFFF"
	err := store.CreateInvoice(ctx, inv)

	assert.ErrorIs(t, err, billing.ErrInvoiceExists)

	pending, err := store.ListPendingInvoiceQuotations(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestStore_SaveBreakupAtomic(t *testing.T) {
	// GIVEN: a breakup whose second row violates UNIQUE(invoice_id, sequence)
	// WHEN: saving it
	// THEN: nothing is stored

	ctx := context.Background()
	store := newTestStore(t)
	seedInvoice(t, store)
	due := billing.NewDate(2025, time.March, 10)

	bad := []billing.Installment{
		{ID: "i-1", InvoiceID: "inv-1", Sequence: 1, Amount: amount("100"), DueDate: due},
		{ID: "i-2", InvoiceID: "inv-1", Sequence: 1, Amount: amount("236.6633"), DueDate: due},
	}
	require.Error(t, store.SaveBreakup(ctx, "inv-1", bad))

	_, err := store.GetBreakup(ctx, "inv-1")
	assert.ErrorIs(t, err, billing.ErrBreakupNotFound)

	good := []billing.Installment{
		{ID: "i-1", InvoiceID: "inv-1", Sequence: 1, Amount: amount("100"), DueDate: due, Description: "Advance"},
		{ID: "i-2", InvoiceID: "inv-1", Sequence: 2, Amount: amount("236.6633"), DueDate: due.AddDays(20)},
	}
	require.NoError(t, store.SaveBreakup(ctx, "inv-1", good))

	got, err := store.GetBreakup(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Advance", got[0].Description)
	assert.Equal(t, "2025-03-30", got[1].DueDate.String())
	assert.Equal(t, "236.6633", got[1].Amount.Value.String())

	assert.ErrorIs(t, store.SaveBreakup(ctx, "inv-1", good), billing.ErrBreakupExists)
	assert.ErrorIs(t, store.SaveBreakup(ctx, "inv-9", good), billing.ErrInvoiceNotFound)

	ids, err := store.ListBreakupInvoices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []billing.InvoiceID{"inv-1"}, ids)
}

func TestStore_Payments(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedInvoice(t, store)
	at := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.RecordPayment(ctx, billing.Payment{
		ID: "pay-1", InvoiceID: "inv-1", Amount: amount("50"), Method: "upi", ReceivedAt: at,
	}))
	require.NoError(t, store.RecordPayment(ctx, billing.Payment{
		ID: "pay-2", InvoiceID: "inv-1", Amount: amount("25.5"), ReceivedAt: at.Add(time.Hour),
	}))

	payments, err := store.ListPayments(ctx, "inv-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "upi", payments[0].Method)
	assert.True(t, payments[1].Amount.Equal(amount("25.5")))

	err = store.RecordPayment(ctx, billing.Payment{ID: "pay-3", InvoiceID: "inv-x", Amount: amount("1"), ReceivedAt: at})
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
}

func TestStore_MarkReminded(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	day := billing.NewDate(2025, time.March, 5)

	first, err := store.MarkReminded(ctx, "i-1", billing.ReminderDueSoon, day)
	require.NoError(t, err)
	second, err := store.MarkReminded(ctx, "i-1", billing.ReminderDueSoon, day)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	seedInvoice(t, store)

	require.NoError(t, store.Reset(ctx))

	_, err := store.GetInvoice(ctx, "inv-1")
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
	_, err = store.GetQuotation(ctx, "q-1")
	assert.ErrorIs(t, err, billing.ErrQuotationNotFound)
}
