// Package reconcile — сверка партнёрского журнала: удаление дублей связей
// и операций, поиск и исправление расхождений баланса с журналом.
package reconcile

import "github.com/shopspring/decimal"

// Drift — профиль, у которого сохранённый баланс не равен сумме журнала.
type Drift struct {
	ProfileID int64
	UserID    int64
	Stored    decimal.Decimal // bonus в профиле
	Ledger    decimal.Decimal // Σ операций со знаком
}

// Delta — насколько сохранённое значение отличается от журнала.
func (d Drift) Delta() decimal.Decimal {
	return d.Stored.Sub(d.Ledger)
}

// Report — итог прогона сверки.
type Report struct {
	EdgesRemoved        int
	TransactionsRemoved int
	Reprojected         []int64 // Профили, пересчитанные после удаления операций
	Drifts              []Drift // Расхождения, найденные после удаления дублей
	Fixed               int
}
