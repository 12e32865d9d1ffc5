// Package orders — заказы, оформленные из корзины. Оплата и доставка
// согласуются с администратором в личных сообщениях.
package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status — состояние заказа.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Item — снимок строки корзины на момент оформления (хранится в JSONB).
type Item struct {
	ItemID   string          `json:"item_id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// Order — заказ покупателя.
type Order struct {
	ID          int64           `db:"id"`
	UserID      int64           `db:"user_id"`
	Status      Status          `db:"status"`
	Total       decimal.Decimal `db:"total"`
	Items       []Item          `db:"items"`
	CreatedAt   time.Time       `db:"created_at"`
	CompletedAt *time.Time      `db:"completed_at"`
}

// TotalOf считает сумму снимка.
func TotalOf(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}
