// Package members — repository.go отвечает за все операции с таблицей members в БД.
// Каждая функция выполняет один SQL-запрос и возвращает результат или ошибку.
package members

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/storefront-bot/internal/db/postgres"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const memberColumns = `id, user_id, username, first_name, last_name, is_banned, joined_at, created_at, updated_at`

// Upsert создаёт пользователя или обновляет имя/username существующего.
// Флаг бана на конфликте не трогаем.
func (r *Repository) Upsert(ctx context.Context, id Identity) (*Member, error) {
	query := `
		INSERT INTO members (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name,
		    updated_at = NOW()
		RETURNING ` + memberColumns
	var m Member
	err := r.db.QueryRow(ctx, query, id.UserID, id.Username, id.FirstName, id.LastName).Scan(
		&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName,
		&m.IsBanned, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания/обновления участника (user_id=%d): %w", id.UserID, postgres.Classify(err))
	}
	return &m, nil
}

// GetByUserID: если не найден — ошибка с common.ErrNotFound.
func (r *Repository) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE user_id = $1`
	var m Member
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&m.ID, &m.UserID, &m.Username, &m.FirstName, &m.LastName,
		&m.IsBanned, &m.JoinedAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения участника (user_id=%d): %w", userID, postgres.Classify(err))
	}
	return &m, nil
}

func (r *Repository) SetBanned(ctx context.Context, userID int64, banned bool) error {
	query := `UPDATE members SET is_banned = $2, updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID, banned); err != nil {
		return fmt.Errorf("ошибка обновления бана: %w", postgres.Classify(err))
	}
	return nil
}
