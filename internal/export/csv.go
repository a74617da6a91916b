package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/zombor/paragon/internal/receipt"
)

// utf8BOM lets spreadsheet programs detect the encoding of Polish characters
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Header is the first row of every export
var Header = []string{"Data", "Sklep", "Kategoria", "Kwota (PLN)", "Produkty"}

// productNames joins the names of the receipt's items
func productNames(r receipt.Receipt) string {
	names := make([]string, 0, len(r.Items))
	for _, item := range r.Items {
		if name := strings.TrimSpace(item.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// EncodeCSV writes receipts as semicolon-separated values with a decimal comma
func EncodeCSV(receipts []receipt.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	w := csv.NewWriter(&buf)
	w.Comma = ';'
	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range receipts {
		row := []string{
			r.Date,
			r.StoreName,
			r.CategoryOrDefault(),
			receipt.FormatAmountComma(r.TotalAmount),
			productNames(r),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("writing csv row for receipt %d: %w", r.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flushing csv: %w", err)
	}
	return buf.Bytes(), nil
}
