// Package orders — repository.go работает с таблицей orders.
package orders

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/db/postgres"
)

// Repository предоставляет методы для работы с заказами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий заказов.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateFromCart в одной транзакции снимает содержимое корзины,
// создаёт заказ в статусе pending и очищает корзину.
// Пустая корзина — common.ErrEmptyCart.
func (r *Repository) CreateFromCart(ctx context.Context, userID int64) (*Order, error) {
	var order *Order
	err := postgres.InTx(ctx, r.db, func(tx pgx.Tx) error {
		// Блокируем строки корзины, чтобы параллельное оформление не создало второй заказ
		rows, err := tx.Query(ctx, `
			SELECT i.id, i.title, i.price, l.quantity
			FROM cart_lines l
			JOIN catalog_items i ON i.id = l.item_id
			WHERE l.user_id = $1
			ORDER BY l.added_at, i.id
			FOR UPDATE OF l
		`, userID)
		if err != nil {
			return fmt.Errorf("ошибка чтения корзины: %w", postgres.Classify(err))
		}
		var items []Item
		for rows.Next() {
			var it Item
			if err := rows.Scan(&it.ItemID, &it.Title, &it.Price, &it.Quantity); err != nil {
				rows.Close()
				return fmt.Errorf("ошибка сканирования строки корзины: %w", err)
			}
			items = append(items, it)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("ошибка чтения строк: %w", postgres.Classify(err))
		}
		if len(items) == 0 {
			return common.ErrEmptyCart
		}

		payload, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("ошибка сериализации заказа: %w", err)
		}

		o := &Order{UserID: userID, Status: StatusPending, Total: TotalOf(items), Items: items}
		err = tx.QueryRow(ctx, `
			INSERT INTO orders (user_id, status, total, items)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`, userID, string(o.Status), o.Total, payload).Scan(&o.ID, &o.CreatedAt)
		if err != nil {
			return fmt.Errorf("ошибка создания заказа: %w", postgres.Classify(err))
		}

		if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("ошибка очистки корзины: %w", postgres.Classify(err))
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// Get возвращает заказ или common.ErrNotFound.
func (r *Repository) Get(ctx context.Context, orderID int64) (*Order, error) {
	var o Order
	var status string
	var payload []byte
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, status, total, items, created_at, completed_at
		FROM orders WHERE id = $1
	`, orderID).Scan(&o.ID, &o.UserID, &status, &o.Total, &payload, &o.CreatedAt, &o.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения заказа %d: %w", orderID, postgres.Classify(err))
	}
	o.Status = Status(status)
	if err := json.Unmarshal(payload, &o.Items); err != nil {
		return nil, fmt.Errorf("ошибка разбора состава заказа %d: %w", orderID, err)
	}
	return &o, nil
}

// Transition меняет статус, только если текущий равен from.
// Возвращает false, если заказ уже не в статусе from.
func (r *Repository) Transition(ctx context.Context, orderID int64, from, to Status) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $3,
		    completed_at = CASE WHEN $3 = 'completed' THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status = $2
	`, orderID, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("ошибка смены статуса заказа %d: %w", orderID, postgres.Classify(err))
	}
	return tag.RowsAffected() == 1, nil
}
