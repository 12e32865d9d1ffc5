// Package ledger — журнал денежных операций партнёрских профилей.
// models.go описывает транзакции и правило их свёртки в баланс.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType — знак операции. Сумма всегда положительная, знак берётся из типа.
type TxType string

const (
	Credit TxType = "CREDIT" // Начисление
	Debit  TxType = "DEBIT"  // Списание
)

// Valid сообщает, известен ли тип.
func (t TxType) Valid() bool {
	return t == Credit || t == Debit
}

// Transaction — одна неизменяемая операция в журнале профиля.
// Исправления делаются встречной операцией, существующие записи не меняются.
type Transaction struct {
	ID          int64           `db:"id"`
	ProfileID   int64           `db:"profile_id"`
	Type        TxType          `db:"tx_type"`
	Amount      decimal.Decimal `db:"amount"`      // Всегда > 0
	Description string          `db:"description"` // Описание для истории
	Ref         *string         `db:"ref"`         // Ключ идемпотентности (nil для ручных операций)
	CreatedAt   time.Time       `db:"created_at"`
}

// Signed возвращает сумму со знаком: +amount для CREDIT, -amount для DEBIT.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == Debit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Fold сворачивает журнал в баланс. Порядок операций не важен.
func Fold(txs []*Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Signed())
	}
	return total
}
