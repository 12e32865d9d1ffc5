// Package common — pluralize.go содержит форматирование чисел и сумм со знаком.
package common

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FormatSignedMoney создаёт строку вида "+3.00 $" или "-1.00 $".
// Знак «+» или «-» добавляется автоматически.
//
// Примеры:
//
//	FormatSignedMoney(decimal.NewFromInt(3), "$")  → "+3.00 $"
//	FormatSignedMoney(decimal.NewFromInt(-1), "$") → "-1.00 $"
func FormatSignedMoney(amount decimal.Decimal, symbol string) string {
	if amount.IsNegative() {
		return FormatMoney(amount, symbol)
	}
	return "+" + FormatMoney(amount, symbol)
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(2350) → "2 350"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	// Рекурсивно добавляем разделители
	rest := n / 1000
	last := n % 1000
	return fmt.Sprintf("%s %03d", FormatNumber(rest), last)
}
