// Package cart — корзина покупателя: количество по каждому товару.
// models.go описывает товары, строки корзины и итоги.
package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item — товар каталога.
type Item struct {
	ID       string          `db:"id"`
	Title    string          `db:"title"`
	Price    decimal.Decimal `db:"price"` // В основной валюте
	IsActive bool            `db:"is_active"`
}

// Line — строка корзины. Quantity всегда >= 1: при нуле строка удаляется.
type Line struct {
	UserID    int64     `db:"user_id"`
	Item      Item      `db:"-"`
	Quantity  int       `db:"quantity"`
	AddedAt   time.Time `db:"added_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Subtotal — цена × количество.
func (l *Line) Subtotal() decimal.Decimal {
	return l.Item.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart — содержимое корзины с итогом в двух валютах.
type Cart struct {
	UserID         int64
	Lines          []*Line
	Total          decimal.Decimal // Основная валюта
	TotalSecondary decimal.Decimal // Total × курс
}

// IsEmpty сообщает, пуста ли корзина.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

// Count — сколько единиц товара в корзине.
func (c *Cart) Count() int64 {
	var n int64
	for _, l := range c.Lines {
		n += int64(l.Quantity)
	}
	return n
}

// Quantity возвращает количество товара в корзине (0, если строки нет).
func (c *Cart) Quantity(itemID string) int {
	for _, l := range c.Lines {
		if l.Item.ID == itemID {
			return l.Quantity
		}
	}
	return 0
}
