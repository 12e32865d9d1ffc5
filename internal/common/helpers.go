// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование денег, работа с временем.
package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Pluralize возвращает правильную форму слова для числа n.
//
// Правила русского языка:
//   - n%10==1 И n%100!=11 → one (1, 21, 31, 101, ...)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 4, 22, 23, ...)
//   - Остальные случаи → many (0, 5-20, 25-30, 100, ...)
//
// Пример:
//
//	Pluralize(3, "товар", "товара", "товаров") → "товара"
func Pluralize(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeItems — «товар».
func PluralizeItems(n int64) string {
	return Pluralize(n, "товар", "товара", "товаров")
}

// PluralizeReferrals — «партнёр» в статистике приглашённых.
func PluralizeReferrals(n int64) string {
	return Pluralize(n, "партнёр", "партнёра", "партнёров")
}

// FormatMoney форматирует сумму с двумя знаками и символом валюты.
// Пример: FormatMoney(decimal.NewFromFloat(1250.5), "₽") → "1 250.50 ₽"
func FormatMoney(amount decimal.Decimal, symbol string) string {
	rounded := amount.Round(2)
	whole := rounded.Truncate(0)
	frac := rounded.Sub(whole).Abs().Shift(2).IntPart()

	sign := ""
	if rounded.IsNegative() {
		sign = "-"
		whole = whole.Abs()
	}
	text := fmt.Sprintf("%s%s.%02d", sign, FormatNumber(whole.IntPart()), frac)
	if symbol == "" {
		return text
	}
	return text + " " + symbol
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04".
// Используется для отображения дат транзакций и заказов.
func FormatDateTime(t time.Time) string {
	return t.In(moscow()).Format("02.01.2006 15:04")
}

func moscow() *time.Location {
	loc, err := time.LoadLocation("Europe/Moscow")
	if err != nil {
		// Если не удалось загрузить — используем UTC+3 вручную
		return time.FixedZone("MSK", 3*60*60)
	}
	return loc
}
