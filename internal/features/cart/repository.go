// Package cart — repository.go работает с таблицами catalog_items и cart_lines.
// Все изменения количества атомарны на стороне БД: параллельные нажатия
// не теряют инкременты.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/storefront-bot/internal/db/postgres"
)

// Repository предоставляет методы для работы с корзиной и каталогом.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий корзины.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetItem возвращает активный товар или common.ErrNotFound.
func (r *Repository) GetItem(ctx context.Context, itemID string) (*Item, error) {
	var it Item
	err := r.db.QueryRow(ctx, `
		SELECT id, title, price, is_active FROM catalog_items
		WHERE id = $1 AND is_active
	`, itemID).Scan(&it.ID, &it.Title, &it.Price, &it.IsActive)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения товара %q: %w", itemID, postgres.Classify(err))
	}
	return &it, nil
}

// ListItems возвращает активные товары каталога.
func (r *Repository) ListItems(ctx context.Context) ([]*Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, title, price, is_active FROM catalog_items
		WHERE is_active
		ORDER BY title, id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var out []*Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Price, &it.IsActive); err != nil {
			return nil, fmt.Errorf("ошибка сканирования товара: %w", err)
		}
		out = append(out, &it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", postgres.Classify(err))
	}
	return out, nil
}

// Add увеличивает количество на 1 или создаёт строку с количеством 1.
// Один запрос INSERT ... ON CONFLICT, без чтения перед записью.
func (r *Repository) Add(ctx context.Context, userID int64, itemID string) (int, error) {
	var qty int
	err := r.db.QueryRow(ctx, `
		INSERT INTO cart_lines (user_id, item_id, quantity)
		SELECT $1, id, 1 FROM catalog_items WHERE id = $2 AND is_active
		ON CONFLICT (user_id, item_id) DO UPDATE
		SET quantity = cart_lines.quantity + 1, updated_at = NOW()
		RETURNING quantity
	`, userID, itemID).Scan(&qty)
	if err != nil {
		// Нет строки — товара нет или он снят с продажи
		return 0, fmt.Errorf("ошибка добавления %q в корзину: %w", itemID, postgres.Classify(err))
	}
	return qty, nil
}

// Increase увеличивает количество существующей строки. Нет строки — common.ErrNotFound.
func (r *Repository) Increase(ctx context.Context, userID int64, itemID string) (int, error) {
	var qty int
	err := r.db.QueryRow(ctx, `
		UPDATE cart_lines SET quantity = quantity + 1, updated_at = NOW()
		WHERE user_id = $1 AND item_id = $2
		RETURNING quantity
	`, userID, itemID).Scan(&qty)
	if err != nil {
		return 0, fmt.Errorf("ошибка увеличения количества: %w", postgres.Classify(err))
	}
	return qty, nil
}

// Decrease уменьшает количество на 1; строка с количеством 1 удаляется.
// Возвращает новое количество (0 — строки больше нет). Отсутствующая строка — не ошибка.
func (r *Repository) Decrease(ctx context.Context, userID int64, itemID string) (int, error) {
	qty := 0
	err := postgres.InTx(ctx, r.db, func(tx pgx.Tx) error {
		// Блокируем строку, чтобы два уменьшения не прочитали одно и то же значение
		var current int
		err := tx.QueryRow(ctx, `
			SELECT quantity FROM cart_lines
			WHERE user_id = $1 AND item_id = $2
			FOR UPDATE
		`, userID, itemID).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ошибка чтения строки корзины: %w", postgres.Classify(err))
		}

		if current <= 1 {
			_, err = tx.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND item_id = $2`, userID, itemID)
		} else {
			qty = current - 1
			_, err = tx.Exec(ctx, `
				UPDATE cart_lines SET quantity = $3, updated_at = NOW()
				WHERE user_id = $1 AND item_id = $2
			`, userID, itemID, qty)
		}
		if err != nil {
			return fmt.Errorf("ошибка уменьшения количества: %w", postgres.Classify(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return qty, nil
}

// Remove удаляет строку. Отсутствие строки — не ошибка.
func (r *Repository) Remove(ctx context.Context, userID int64, itemID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND item_id = $2`, userID, itemID); err != nil {
		return fmt.Errorf("ошибка удаления из корзины: %w", postgres.Classify(err))
	}
	return nil
}

// Clear очищает корзину пользователя.
func (r *Repository) Clear(ctx context.Context, userID int64) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM cart_lines WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("ошибка очистки корзины: %w", postgres.Classify(err))
	}
	return nil
}

// List возвращает строки корзины с текущими ценами товаров, в порядке добавления.
func (r *Repository) List(ctx context.Context, userID int64) ([]*Line, error) {
	rows, err := r.db.Query(ctx, `
		SELECT l.user_id, l.quantity, l.added_at, l.updated_at,
		       i.id, i.title, i.price, i.is_active
		FROM cart_lines l
		JOIN catalog_items i ON i.id = l.item_id
		WHERE l.user_id = $1
		ORDER BY l.added_at, i.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения корзины: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var out []*Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.UserID, &l.Quantity, &l.AddedAt, &l.UpdatedAt,
			&l.Item.ID, &l.Item.Title, &l.Item.Price, &l.Item.IsActive); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки корзины: %w", err)
		}
		out = append(out, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", postgres.Classify(err))
	}
	return out, nil
}

