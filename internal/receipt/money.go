package receipt

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tolerance is the largest difference between the item sum and the total
// that still counts as reconciled.
var Tolerance = decimal.RequireFromString("0.01")

// Money converts a float amount to a decimal using its shortest representation,
// so 10.005 stays 10.005 instead of 10.00499999.
func Money(amount float64) decimal.Decimal {
	return decimal.NewFromFloat(amount)
}

// Round2 rounds half away from zero to 2 decimals
func Round2(amount float64) float64 {
	return Money(amount).Round(2).InexactFloat64()
}

// SumPrices sums item prices and rounds the result to 2 decimals.
// Items with an empty (or whitespace-only) name are skipped.
func SumPrices(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		if strings.TrimSpace(item.Name) == "" {
			continue
		}
		sum = sum.Add(Money(item.Price))
	}
	return sum.Round(2)
}

// Reconciled reports whether sum and total differ by no more than Tolerance
func Reconciled(sum, total decimal.Decimal) bool {
	return !sum.Sub(total).Abs().GreaterThan(Tolerance)
}

// FormatAmount renders an amount with exactly 2 decimals ("12.50")
func FormatAmount(amount float64) string {
	return Money(amount).StringFixed(2)
}

// FormatAmountComma renders an amount with exactly 2 decimals and a decimal comma ("12,50")
func FormatAmountComma(amount float64) string {
	return strings.Replace(FormatAmount(amount), ".", ",", 1)
}
