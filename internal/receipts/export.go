package receipts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// BuildBillPDF renders a minimal PDF bill for a settled order.
func BuildBillPDF(receipt Receipt) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Water Purchase Bill")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Receipt: %s", receipt.ReceiptID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Order: %s", receipt.OrderID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Customer: %s", receipt.CustomerRef))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Settled: %s", receipt.SettledAt.Format(time.RFC3339)))
	pdf.Ln(8)

	pdf.Cell(0, 6, fmt.Sprintf("Liters Dispensed: %.2f", receipt.Liters))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Amount (%s): %.2f", receipt.Currency, receipt.Amount))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Tank Remaining (L): %.2f", receipt.RemainingAfter))
	pdf.Ln(5)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildReceiptsXLSX renders an XLSX workbook listing settled receipts.
func BuildReceiptsXLSX(list []Receipt) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "receipts"
	f.SetSheetName("Sheet1", sheet)

	_ = f.SetCellValue(sheet, "A1", "Receipt")
	_ = f.SetCellValue(sheet, "B1", "Order")
	_ = f.SetCellValue(sheet, "C1", "Customer")
	_ = f.SetCellValue(sheet, "D1", "Liters")
	_ = f.SetCellValue(sheet, "E1", "Amount")
	_ = f.SetCellValue(sheet, "F1", "Currency")
	_ = f.SetCellValue(sheet, "G1", "Settled At")
	_ = f.SetCellValue(sheet, "H1", "Tank Remaining (L)")
	for i, receipt := range list {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), receipt.ReceiptID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), receipt.OrderID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), receipt.CustomerRef)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), receipt.Liters)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), receipt.Amount)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), receipt.Currency)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), receipt.SettledAt.Format(time.RFC3339))
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), receipt.RemainingAfter)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
