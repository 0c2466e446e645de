package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	"github.com/xuri/excelize/v2"
)

func TestScheduleExporter_Write(t *testing.T) {
	// GIVEN: an invoice of 12036 in two installments with 8000 received
	inv := billing.Invoice{
		ID:            "inv-1",
		InvoiceNumber: "INV-20250301-0A1B2C3D",
		ClientName:    "Asha Rao",
		TotalAmount:   billing.NewAmount(12036),
	}
	alloc := (&billing.PaymentAllocator{}).Allocate(inv.ID, []billing.Installment{
		{ID: "i-1", Sequence: 1, Amount: billing.NewAmount(6000), DueDate: billing.NewDate(2025, time.March, 1), Description: "Advance"},
		{ID: "i-2", Sequence: 2, Amount: billing.NewAmount(6036), DueDate: billing.NewDate(2025, time.March, 11)},
	}, billing.NewAmount(8000))

	// WHEN: exporting
	var buf bytes.Buffer
	require.NoError(t, NewScheduleExporter("Warp Travels", nil).Write(&buf, inv, alloc))

	// THEN: the workbook holds the summary and one row per installment
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	get := func(ref string) string {
		v, err := f.GetCellValue(SheetName, ref)
		require.NoError(t, err)
		return v
	}

	assert.Equal(t, "Warp Travels", get("A1"))
	assert.Equal(t, "INV-20250301-0A1B2C3D", get("B2"))
	assert.Equal(t, "Due Date", get("B7"))
	assert.Equal(t, "2025-03-01", get("B8"))
	assert.Equal(t, "Advance", get("C8"))
	assert.Equal(t, "paid", get("G8"))
	assert.Equal(t, "partial_paid", get("G9"))
	assert.Equal(t, "Total", get("C10"))

	raw, err := f.GetCellValue(SheetName, "F9", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "4036", raw)
}
