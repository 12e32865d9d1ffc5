package referral

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/metrics"
)

// CommissionRef — ключ идемпотентности комиссии уровня level за заказ.
func CommissionRef(orderID int64, level int) string {
	return fmt.Sprintf("order:%d:L%d", orderID, level)
}

// CreditPurchaseCommission начисляет комиссии за выполненный заказ покупателя
// всем, у кого он в сети (уровни 1..3), по ставке программы владельца.
// Повторный вызов для того же заказа ничего не начисляет.
// Возвращает число новых начислений.
func (s *Service) CreditPurchaseCommission(ctx context.Context, buyerUserID, orderID int64, total decimal.Decimal) (int, error) {
	if !s.opts.CommissionsOn {
		return 0, nil
	}
	if !total.IsPositive() {
		return 0, nil
	}

	edges, err := s.store.InboundEdges(ctx, buyerUserID)
	if err != nil {
		return 0, err
	}

	credited := 0
	for _, e := range edges {
		if e.Level < 1 || e.Level > MaxLevel {
			continue
		}
		owner, err := s.store.GetProfile(ctx, e.OwnerProfileID)
		if err != nil {
			return credited, err
		}
		amount := total.Mul(owner.Program.Rate(e.Level)).Round(2)
		if !amount.IsPositive() {
			continue
		}

		desc := fmt.Sprintf("Комиссия %s%% за заказ #%d (уровень %d)",
			owner.Program.Rate(e.Level).Mul(decimal.NewFromInt(100)).String(), orderID, e.Level)
		_, err = s.ledger.Append(ctx, owner.ID, amount, desc, ledger.Credit, CommissionRef(orderID, e.Level))
		if errors.Is(err, common.ErrConflict) {
			continue
		}
		if err != nil {
			return credited, err
		}
		credited++
		metrics.ReferralCommissionsTotal.WithLabelValues(strconv.Itoa(e.Level)).Inc()

		log.WithFields(log.Fields{
			"profile_id": owner.ID,
			"order_id":   orderID,
			"level":      e.Level,
			"amount":     amount.StringFixed(2),
		}).Info("Начислена комиссия")

		if s.notifier != nil {
			text := fmt.Sprintf("💰 Комиссия за покупку в вашей сети (уровень %d): %s",
				e.Level, common.FormatMoney(amount, s.opts.CurrencySymbol))
			if err := s.notifier.Notify(ctx, owner.UserID, text); err != nil {
				log.WithError(err).WithField("user_id", owner.UserID).Warn("Не удалось уведомить о комиссии")
			}
		}
	}
	return credited, nil
}
