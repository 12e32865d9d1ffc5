// Package ledger — service.go: запись операций и чтение истории.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/metrics"
)

// RecentLimit — сколько операций показываем в кабинете партнёра.
const RecentLimit = 10

// Service — единственная точка записи в журнал.
// После каждой записи баланс пересчитывается проектором.
type Service struct {
	store     Store
	projector *Projector
}

// NewService создаёт сервис журнала.
func NewService(store Store, projector *Projector) *Service {
	return &Service{store: store, projector: projector}
}

// Append дописывает операцию и пересчитывает баланс профиля.
// ref — ключ идемпотентности: повтор даёт common.ErrConflict, но баланс
// всё равно пересчитывается (запись могла пройти без пересчёта).
func (s *Service) Append(ctx context.Context, profileID int64, amount decimal.Decimal, description string, txType TxType, ref string) (*Transaction, error) {
	// Сумма хранится в копейках: 0.004 после округления — ноль.
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, common.ErrInvalidAmount
	}
	if !txType.Valid() {
		return nil, common.ErrInvalidTxType
	}

	tx := &Transaction{
		ProfileID:   profileID,
		Type:        txType,
		Amount:      amount,
		Description: strings.TrimSpace(description),
	}
	if ref != "" {
		tx.Ref = &ref
	}

	appendErr := s.store.Append(ctx, tx)
	if appendErr != nil && !errors.Is(appendErr, common.ErrConflict) {
		return nil, appendErr
	}
	if appendErr == nil {
		metrics.LedgerAppendsTotal.WithLabelValues(string(txType)).Inc()
		log.WithFields(log.Fields{
			"profile_id": profileID,
			"type":       txType,
			"amount":     tx.Amount.StringFixed(2),
			"ref":        ref,
		}).Info("Операция записана в журнал")
	}

	if _, err := s.projector.Project(ctx, profileID); err != nil {
		return nil, fmt.Errorf("операция записана, пересчёт не выполнен: %w", err)
	}
	if appendErr != nil {
		return nil, appendErr
	}
	return tx, nil
}

// Project пересчитывает баланс без новой записи.
func (s *Service) Project(ctx context.Context, profileID int64) (decimal.Decimal, error) {
	return s.projector.Project(ctx, profileID)
}

// Recent возвращает последние операции профиля, новые сверху.
func (s *Service) Recent(ctx context.Context, profileID int64, limit int) ([]*Transaction, error) {
	if limit <= 0 {
		limit = RecentLimit
	}
	return s.store.ListRecent(ctx, profileID, limit)
}
