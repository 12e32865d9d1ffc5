// Package orders — handlers.go: кнопка «Оформить» в корзине.
package orders

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/members"
)

// Handler обрабатывает оформление заказа.
type Handler struct {
	service *Service
	bot     common.Sender
	symbol  string
}

// NewHandler создаёт обработчик заказов.
func NewHandler(service *Service, bot common.Sender, symbol string) *Handler {
	return &Handler{service: service, bot: bot, symbol: symbol}
}

// HandleCheckout оформляет заказ из корзины по нажатию кнопки.
func (h *Handler) HandleCheckout(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	buyer := members.Identity{
		UserID:    cq.From.ID,
		Username:  cq.From.UserName,
		FirstName: cq.From.FirstName,
		LastName:  cq.From.LastName,
	}
	o, err := h.service.Checkout(ctx, buyer)
	if err != nil {
		if errors.Is(err, common.ErrEmptyCart) {
			h.answer(cq.ID, "Корзина пуста")
			return
		}
		log.WithError(err).WithField("user_id", buyer.UserID).Error("Ошибка оформления заказа")
		h.answer(cq.ID, "⚠️ Не удалось оформить заказ, попробуйте позже")
		return
	}
	h.answer(cq.ID, "Заказ оформлен")

	text := fmt.Sprintf("✅ Заказ #%d оформлен на сумму %s.\nАдминистратор свяжется с вами для оплаты и доставки.",
		o.ID, common.FormatMoney(o.Total, h.symbol))
	if cq.Message != nil {
		edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, text)
		if _, err := h.bot.Send(edit); err == nil {
			return
		}
	}
	if _, err := h.bot.Send(tgbotapi.NewMessage(buyer.UserID, text)); err != nil {
		log.WithError(err).WithField("user_id", buyer.UserID).Error("Ошибка отправки сообщения")
	}
}

func (h *Handler) answer(callbackID, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}
