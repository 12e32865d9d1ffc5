// Package orders — service.go: оформление и выполнение заказов.
package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/members"
)

// Store — хранилище заказов.
type Store interface {
	CreateFromCart(ctx context.Context, userID int64) (*Order, error)
	Get(ctx context.Context, orderID int64) (*Order, error)
	Transition(ctx context.Context, orderID int64, from, to Status) (bool, error)
}

// Commissions начисляет партнёрам комиссию за выполненный заказ (referral.Service).
type Commissions interface {
	CreditPurchaseCommission(ctx context.Context, buyerUserID, orderID int64, total decimal.Decimal) (int, error)
}

// Notifier доставляет сообщения администраторам и покупателям.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Service — заказы магазина.
type Service struct {
	store       Store
	commissions Commissions
	notifier    Notifier
	adminIDs    []int64
	symbol      string
}

// NewService создаёт сервис заказов.
func NewService(store Store, commissions Commissions, notifier Notifier, adminIDs []int64, symbol string) *Service {
	return &Service{
		store:       store,
		commissions: commissions,
		notifier:    notifier,
		adminIDs:    adminIDs,
		symbol:      symbol,
	}
}

// Checkout оформляет заказ из корзины и сообщает о нём администраторам.
// Пустая корзина — common.ErrEmptyCart.
func (s *Service) Checkout(ctx context.Context, buyer members.Identity) (*Order, error) {
	o, err := s.store.CreateFromCart(ctx, buyer.UserID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id":  buyer.UserID,
		"order_id": o.ID,
		"total":    o.Total.StringFixed(2),
	}).Info("Оформлен заказ")

	text := s.formatForAdmin(o, buyer)
	for _, adminID := range s.adminIDs {
		if err := s.notifier.Notify(ctx, adminID, text); err != nil {
			log.WithError(err).WithField("admin_id", adminID).Warn("Не удалось отправить заказ администратору")
		}
	}
	return o, nil
}

// Complete отмечает заказ выполненным и начисляет комиссии партнёрам покупателя.
// Повторный вызов безопасен: комиссии идемпотентны по номеру заказа,
// а досчитываются, если прошлая попытка оборвалась после смены статуса.
func (s *Service) Complete(ctx context.Context, orderID int64) (*Order, int, error) {
	if _, err := s.store.Transition(ctx, orderID, StatusPending, StatusCompleted); err != nil {
		return nil, 0, err
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, 0, err
	}
	if o.Status != StatusCompleted {
		return o, 0, fmt.Errorf("%w: заказ #%d в статусе %s", common.ErrValidation, o.ID, o.Status)
	}

	credited, err := s.commissions.CreditPurchaseCommission(ctx, o.UserID, o.ID, o.Total)
	if err != nil {
		return o, credited, fmt.Errorf("заказ #%d выполнен, комиссии не начислены: %w", o.ID, err)
	}

	log.WithFields(log.Fields{
		"order_id":    o.ID,
		"user_id":     o.UserID,
		"commissions": credited,
	}).Info("Заказ выполнен")

	if err := s.notifier.Notify(ctx, o.UserID, fmt.Sprintf("✅ Заказ #%d выполнен. Спасибо за покупку!", o.ID)); err != nil {
		log.WithError(err).WithField("user_id", o.UserID).Debug("Не удалось уведомить покупателя")
	}
	return o, credited, nil
}

// Cancel отменяет заказ, ожидающий выполнения.
func (s *Service) Cancel(ctx context.Context, orderID int64) (*Order, error) {
	changed, err := s.store.Transition(ctx, orderID, StatusPending, StatusCancelled)
	if err != nil {
		return nil, err
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !changed && o.Status != StatusCancelled {
		return o, fmt.Errorf("%w: заказ #%d в статусе %s", common.ErrValidation, o.ID, o.Status)
	}
	log.WithField("order_id", o.ID).Info("Заказ отменён")
	return o, nil
}

func (s *Service) formatForAdmin(o *Order, buyer members.Identity) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 Новый заказ #%d от %s (id %d)\n\n", o.ID, buyer.DisplayName(), buyer.UserID)
	for _, it := range o.Items {
		fmt.Fprintf(&sb, "• %s × %d — %s\n", it.Title, it.Quantity,
			common.FormatMoney(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))), s.symbol))
	}
	fmt.Fprintf(&sb, "\nИтого: %s\n", common.FormatMoney(o.Total, s.symbol))
	fmt.Fprintf(&sb, "Выполнить: /done %d  Отменить: /cancel %d", o.ID, o.ID)
	return sb.String()
}
