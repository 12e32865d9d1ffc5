// Package ledger — repository.go выполняет операции с таблицей ledger_transactions.
// Журнал только дописывается: UPDATE/DELETE транзакций здесь нет,
// удаление доступно лишь инструменту сверки (пакет reconcile).
package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/db/postgres"
)

// Repository предоставляет методы для работы с журналом.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий журнала.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Append дописывает транзакцию и заполняет ID и CreatedAt.
// Повтор ref для того же профиля — common.ErrConflict.
func (r *Repository) Append(ctx context.Context, tx *Transaction) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO ledger_transactions (profile_id, tx_type, amount, description, ref)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, tx.ProfileID, string(tx.Type), tx.Amount, tx.Description, tx.Ref).Scan(&tx.ID, &tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции (profile_id=%d): %w", tx.ProfileID, postgres.Classify(err))
	}
	return nil
}

// ListRecent возвращает последние limit транзакций профиля, новые сверху.
func (r *Repository) ListRecent(ctx context.Context, profileID int64, limit int) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, profile_id, tx_type, amount, description, ref, created_at
		FROM ledger_transactions
		WHERE profile_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, profileID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", postgres.Classify(err))
	}
	return scanTransactions(rows)
}

// ProjectBalance пересчитывает баланс профиля в одной транзакции.
// SELECT ... FOR UPDATE сериализует пересчёты одного профиля между процессами
// (бот, ledgerctl): следующий пересчёт ждёт фиксации и читает журнал заново.
func (r *Repository) ProjectBalance(ctx context.Context, profileID int64, fold func([]*Transaction) decimal.Decimal) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := postgres.InTx(ctx, r.db, func(tx pgx.Tx) error {
		var id int64
		if err := tx.QueryRow(ctx, `
			SELECT id FROM partner_profiles WHERE id = $1 FOR UPDATE
		`, profileID).Scan(&id); err != nil {
			return fmt.Errorf("ошибка блокировки профиля %d: %w", profileID, postgres.Classify(err))
		}

		rows, err := tx.Query(ctx, `
			SELECT id, profile_id, tx_type, amount, description, ref, created_at
			FROM ledger_transactions
			WHERE profile_id = $1
		`, profileID)
		if err != nil {
			return fmt.Errorf("ошибка чтения журнала: %w", postgres.Classify(err))
		}
		txs, err := scanTransactions(rows)
		if err != nil {
			return err
		}
		total = fold(txs)

		if _, err := tx.Exec(ctx, `
			UPDATE partner_profiles
			SET bonus = $2, balance = $2, updated_at = NOW()
			WHERE id = $1
		`, profileID, total); err != nil {
			return fmt.Errorf("ошибка записи баланса (profile_id=%d): %w", profileID, postgres.Classify(err))
		}
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

func scanTransactions(rows pgx.Rows) ([]*Transaction, error) {
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		var t Transaction
		var txType string
		if err := rows.Scan(&t.ID, &t.ProfileID, &txType, &t.Amount, &t.Description, &t.Ref, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		t.Type = TxType(txType)
		out = append(out, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения строк: %w", postgres.Classify(err))
	}
	return out, nil
}
