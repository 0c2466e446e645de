// Package export renders payment breakups as spreadsheets.
package export

import (
	"fmt"
	"io"

	"github.com/warp/billing-engine/billing"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SheetName is the name of the schedule worksheet.
const SheetName = "Payment Schedule"

// Header row of the installment table.
var scheduleColumns = []string{"#", "Due Date", "Description", "Amount", "Paid", "Outstanding", "Status"}

// first row of the installment table; rows above hold the invoice summary
const tableRow = 7

// ScheduleExporter writes an invoice's breakup and its payment state to XLSX.
type ScheduleExporter struct {
	companyName string
	logger      *zap.Logger
}

// NewScheduleExporter creates a new exporter
func NewScheduleExporter(companyName string, logger *zap.Logger) *ScheduleExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleExporter{companyName: companyName, logger: logger}
}

// Write renders the schedule of inv to w.
func (se *ScheduleExporter) Write(w io.Writer, inv billing.Invoice, alloc billing.PaymentAllocation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	// Summary
	se.setCell(f, "A1", se.companyName)
	se.setCell(f, "A2", "Invoice")
	se.setCell(f, "B2", inv.InvoiceNumber)
	se.setCell(f, "A3", "Client")
	se.setCell(f, "B3", inv.ClientName)
	se.setCell(f, "A4", "Invoice Total")
	se.setCell(f, "B4", inv.TotalAmount.Rounded().Value.InexactFloat64())
	se.setCell(f, "A5", "Received")
	se.setCell(f, "B5", alloc.TotalReceived.Rounded().Value.InexactFloat64())
	se.setCell(f, "C4", "Outstanding")
	se.setCell(f, "D4", alloc.TotalOutstanding.Rounded().Value.InexactFloat64())
	_ = f.SetCellStyle(SheetName, "A1", "A5", bold)
	_ = f.SetCellStyle(SheetName, "B4", "B5", money)
	_ = f.SetCellStyle(SheetName, "D4", "D4", money)

	// Installment table
	for i, title := range scheduleColumns {
		se.setCell(f, cell(i+1, tableRow), title)
	}
	_ = f.SetCellStyle(SheetName, cell(1, tableRow), cell(len(scheduleColumns), tableRow), bold)

	row := tableRow + 1
	for _, a := range alloc.Installments {
		inst := a.Installment
		se.setCell(f, cell(1, row), inst.Sequence)
		se.setCell(f, cell(2, row), inst.DueDate.String())
		se.setCell(f, cell(3, row), inst.Description)
		se.setCell(f, cell(4, row), inst.Amount.Rounded().Value.InexactFloat64())
		se.setCell(f, cell(5, row), a.Paid.Rounded().Value.InexactFloat64())
		se.setCell(f, cell(6, row), a.Outstanding.Rounded().Value.InexactFloat64())
		se.setCell(f, cell(7, row), string(a.Status))
		row++
	}
	if row > tableRow+1 {
		_ = f.SetCellStyle(SheetName, cell(4, tableRow+1), cell(6, row-1), money)
	}

	se.setCell(f, cell(3, row), "Total")
	se.setCell(f, cell(4, row), alloc.TotalScheduled.Rounded().Value.InexactFloat64())
	_ = f.SetCellStyle(SheetName, cell(3, row), cell(3, row), bold)
	_ = f.SetCellStyle(SheetName, cell(4, row), cell(4, row), money)

	_ = f.SetColWidth(SheetName, "A", "A", 14)
	_ = f.SetColWidth(SheetName, "B", "B", 24)
	_ = f.SetColWidth(SheetName, "C", "C", 30)
	_ = f.SetColWidth(SheetName, "D", "G", 14)

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	se.logger.Info("payment schedule exported",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("installments", len(alloc.Installments)))
	return nil
}

// setCell sets a cell value, logging rather than failing on a bad cell.
func (se *ScheduleExporter) setCell(f *excelize.File, ref string, value any) {
	if err := f.SetCellValue(SheetName, ref, value); err != nil {
		se.logger.Warn("failed to set cell value",
			zap.String("cell", ref),
			zap.Error(err))
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
