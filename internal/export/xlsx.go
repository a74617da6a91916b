package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/zombor/paragon/internal/receipt"
)

// SheetName is the worksheet holding the receipts
const SheetName = "Paragony"

// EncodeXLSX writes receipts as a workbook with one row per receipt and
// numeric amounts
func EncodeXLSX(receipts []receipt.Receipt) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("writing header: %w", err)
	}

	for i, r := range receipts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			r.Date,
			r.StoreName,
			r.CategoryOrDefault(),
			receipt.Round2(r.TotalAmount),
			productNames(r),
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("writing row for receipt %d: %w", r.ID, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return nil, fmt.Errorf("styling header: %w", err)
	}

	if len(receipts) > 0 {
		// built-in format 2 is "0.00"
		money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
		if err != nil {
			return nil, fmt.Errorf("creating amount style: %w", err)
		}
		if err := f.SetCellStyle(SheetName, "D2", fmt.Sprintf("D%d", len(receipts)+1), money); err != nil {
			return nil, fmt.Errorf("styling amounts: %w", err)
		}
	}

	if err := f.SetColWidth(SheetName, "A", "D", 14); err != nil {
		return nil, fmt.Errorf("sizing columns: %w", err)
	}
	if err := f.SetColWidth(SheetName, "E", "E", 60); err != nil {
		return nil, fmt.Errorf("sizing columns: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return buf.Bytes(), nil
}
