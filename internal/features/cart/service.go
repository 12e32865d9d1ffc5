// Package cart — service.go: операции с корзиной и подсчёт итогов.
package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/metrics"
)

// Store — хранилище корзины и каталога.
type Store interface {
	GetItem(ctx context.Context, itemID string) (*Item, error)
	ListItems(ctx context.Context) ([]*Item, error)
	Add(ctx context.Context, userID int64, itemID string) (int, error)
	Increase(ctx context.Context, userID int64, itemID string) (int, error)
	Decrease(ctx context.Context, userID int64, itemID string) (int, error)
	Remove(ctx context.Context, userID int64, itemID string) error
	Clear(ctx context.Context, userID int64) error
	List(ctx context.Context, userID int64) ([]*Line, error)
}

// Service — корзина покупателя.
type Service struct {
	store Store
	rate  decimal.Decimal // Курс второй валюты
}

// NewService создаёт сервис корзины. rate — множитель для второй валюты.
func NewService(store Store, rate decimal.Decimal) *Service {
	return &Service{store: store, rate: rate}
}

func normalizeItemID(itemID string) (string, error) {
	id := strings.TrimSpace(itemID)
	if id == "" || len(id) > 64 {
		return "", fmt.Errorf("%w: некорректный товар %q", common.ErrValidation, itemID)
	}
	return id, nil
}

// Add кладёт товар в корзину (+1 или новая строка с количеством 1).
// Неизвестный товар — common.ErrNotFound.
func (s *Service) Add(ctx context.Context, userID int64, itemID string) (int, error) {
	id, err := normalizeItemID(itemID)
	if err != nil {
		return 0, err
	}
	qty, err := s.store.Add(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	s.track("add", userID, id, qty)
	return qty, nil
}

// Increase — +1 к существующей строке. Нет строки — common.ErrNotFound.
func (s *Service) Increase(ctx context.Context, userID int64, itemID string) (int, error) {
	id, err := normalizeItemID(itemID)
	if err != nil {
		return 0, err
	}
	qty, err := s.store.Increase(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	s.track("increase", userID, id, qty)
	return qty, nil
}

// Decrease — -1; при нуле строка удаляется. Повтор на пустой строке — не ошибка.
func (s *Service) Decrease(ctx context.Context, userID int64, itemID string) (int, error) {
	id, err := normalizeItemID(itemID)
	if err != nil {
		return 0, err
	}
	qty, err := s.store.Decrease(ctx, userID, id)
	if err != nil {
		return 0, err
	}
	s.track("decrease", userID, id, qty)
	return qty, nil
}

// Remove удаляет строку целиком.
func (s *Service) Remove(ctx context.Context, userID int64, itemID string) error {
	id, err := normalizeItemID(itemID)
	if err != nil {
		return err
	}
	if err := s.store.Remove(ctx, userID, id); err != nil {
		return err
	}
	s.track("remove", userID, id, 0)
	return nil
}

// Clear очищает корзину (после оформления заказа).
func (s *Service) Clear(ctx context.Context, userID int64) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return err
	}
	s.track("clear", userID, "", 0)
	return nil
}

// List возвращает корзину с итогом: Σ(цена × количество) и то же по курсу.
func (s *Service) List(ctx context.Context, userID int64) (*Cart, error) {
	lines, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	c := &Cart{UserID: userID, Lines: lines, Total: decimal.Zero}
	for _, l := range lines {
		c.Total = c.Total.Add(l.Subtotal())
	}
	c.TotalSecondary = c.Total.Mul(s.rate).Round(2)
	return c, nil
}

// Catalog возвращает активные товары.
func (s *Service) Catalog(ctx context.Context) ([]*Item, error) {
	return s.store.ListItems(ctx)
}

// Convert пересчитывает сумму во вторую валюту.
func (s *Service) Convert(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.rate).Round(2)
}

func (s *Service) track(op string, userID int64, itemID string, qty int) {
	metrics.CartOperationsTotal.WithLabelValues(op).Inc()
	log.WithFields(log.Fields{
		"user_id":  userID,
		"item_id":  itemID,
		"op":       op,
		"quantity": qty,
	}).Debug("Корзина изменена")
}
