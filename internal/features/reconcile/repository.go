// Package reconcile — repository.go: запросы сверки. Это единственное место,
// где строки referral_edges и ledger_transactions удаляются.
package reconcile

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/storefront-bot/internal/db/postgres"
)

// Repository выполняет запросы сверки.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий сверки.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// DeleteDuplicateEdges удаляет повторные связи (тот же владелец и тот же
// приглашённый), оставляя самую раннюю. Возвращает владельцев удалённых строк.
func (r *Repository) DeleteDuplicateEdges(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM referral_edges e
		USING referral_edges d
		WHERE e.owner_profile_id = d.owner_profile_id
		  AND e.referred_user_id = d.referred_user_id
		  AND e.id > d.id
		RETURNING e.owner_profile_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления дублей связей: %w", postgres.Classify(err))
	}
	return collectIDs(rows)
}

// DeleteDuplicateTransactions удаляет повторные операции: тот же профиль, тип,
// сумма, описание и ключ, записанные менее чем через секунду. Остаётся самая ранняя.
// Возвращает профили удалённых строк (с повторами).
func (r *Repository) DeleteDuplicateTransactions(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `
		DELETE FROM ledger_transactions t
		USING ledger_transactions d
		WHERE t.profile_id = d.profile_id
		  AND t.tx_type = d.tx_type
		  AND t.amount = d.amount
		  AND t.description = d.description
		  AND t.ref IS NOT DISTINCT FROM d.ref
		  AND abs(extract(epoch FROM t.created_at - d.created_at)) < 1
		  AND t.id > d.id
		RETURNING t.profile_id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка удаления дублей операций: %w", postgres.Classify(err))
	}
	return collectIDs(rows)
}

// Drifts находит профили, где bonus или balance не равен сумме журнала.
func (r *Repository) Drifts(ctx context.Context) ([]Drift, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.user_id, p.bonus, s.total
		FROM partner_profiles p
		CROSS JOIN LATERAL (
			SELECT COALESCE(SUM(CASE WHEN t.tx_type = 'CREDIT' THEN t.amount ELSE -t.amount END), 0) AS total
			FROM ledger_transactions t
			WHERE t.profile_id = p.id
		) s
		WHERE p.bonus <> s.total OR p.balance <> s.total
		ORDER BY p.id
	`)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска расхождений: %w", postgres.Classify(err))
	}
	defer rows.Close()

	var out []Drift
	for rows.Next() {
		var d Drift
		if err := rows.Scan(&d.ProfileID, &d.UserID, &d.Stored, &d.Ledger); err != nil {
			return nil, fmt.Errorf("ошибка сканирования расхождения: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", postgres.Classify(err))
	}
	return out, nil
}

// ProfileIDs возвращает id всех профилей.
func (r *Repository) ProfileIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM partner_profiles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения профилей: %w", postgres.Classify(err))
	}
	return collectIDs(rows)
}

// ProfileIDByUser возвращает id профиля пользователя.
func (r *Repository) ProfileIDByUser(ctx context.Context, userID int64) (int64, error) {
	var id int64
	if err := r.db.QueryRow(ctx, `SELECT id FROM partner_profiles WHERE user_id = $1`, userID).Scan(&id); err != nil {
		return 0, fmt.Errorf("ошибка чтения профиля (user_id=%d): %w", userID, postgres.Classify(err))
	}
	return id, nil
}

func collectIDs(rows pgx.Rows) ([]int64, error) {
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", postgres.Classify(err))
	}
	return ids, nil
}
