package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/metrics"
)

// Store — операции журнала, нужные проектору и сервису.
type Store interface {
	Append(ctx context.Context, tx *Transaction) error
	ListRecent(ctx context.Context, profileID int64, limit int) ([]*Transaction, error)
	// ProjectBalance под блокировкой строки профиля читает весь журнал,
	// сворачивает его fold и записывает итог в bonus/balance.
	ProjectBalance(ctx context.Context, profileID int64, fold func([]*Transaction) decimal.Decimal) (decimal.Decimal, error)
}

// Projector пересчитывает баланс профиля по всему журналу.
// Это единственный код, который пишет bonus/balance.
type Projector struct {
	store Store
	locks *common.KeyedMutex
}

// NewProjector создаёт проектор. locks сериализует пересчёт одного профиля;
// nil — собственный набор.
func NewProjector(store Store, locks *common.KeyedMutex) *Projector {
	if locks == nil {
		locks = common.NewKeyedMutex(0)
	}
	return &Projector{store: store, locks: locks}
}

// Project сворачивает журнал профиля и записывает результат.
// Повторный вызов без новых операций даёт тот же результат.
// Отрицательный итог — нарушение инварианта: баланс сохраняется как есть,
// а в лог и метрику уходит сигнал для сверки.
func (p *Projector) Project(ctx context.Context, profileID int64) (decimal.Decimal, error) {
	unlock := p.locks.Lock(profileID)
	defer unlock()

	// Чтение и запись идут в одной транзакции хранилища: параллельный
	// пересчёт из другого процесса не перезапишет итог устаревшей суммой.
	total, err := p.store.ProjectBalance(ctx, profileID, Fold)
	if err != nil {
		return decimal.Zero, fmt.Errorf("пересчёт баланса профиля %d: %w", profileID, err)
	}

	if err := checkBalance(total); err != nil {
		metrics.LedgerInvariantViolationsTotal.Inc()
		log.WithError(err).WithFields(log.Fields{
			"component":  "projector",
			"profile_id": profileID,
			"total":      total.StringFixed(2),
		}).Error("Баланс не прошёл проверку, нужна сверка")
	}

	metrics.LedgerProjectionsTotal.Inc()
	return total, nil
}

func checkBalance(total decimal.Decimal) error {
	if total.IsNegative() {
		return fmt.Errorf("%w: отрицательный итог %s", common.ErrInvariantViolation, total.StringFixed(2))
	}
	return nil
}
