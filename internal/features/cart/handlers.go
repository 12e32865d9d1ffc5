// Package cart — handlers.go: команды /cart, /add, /catalog и кнопки корзины.
// Кнопки: cart:add|inc|dec|rm:<товар>, cart:clear. Оформление (cart:checkout)
// обрабатывает пакет orders.
package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
)

// Префиксы callback_data.
const (
	CallbackPrefix   = "cart:"
	CallbackCheckout = "cart:checkout"
	callbackClear    = "cart:clear"
)

// Handler обрабатывает команды корзины.
type Handler struct {
	service   *Service
	bot       common.Sender
	primary   string
	secondary string
}

// NewHandler создаёт обработчик корзины.
func NewHandler(service *Service, bot common.Sender, primary, secondary string) *Handler {
	return &Handler{service: service, bot: bot, primary: primary, secondary: secondary}
}

// HandleCart показывает корзину.
func (h *Handler) HandleCart(ctx context.Context, chatID, userID int64) {
	c, err := h.service.List(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка чтения корзины")
		h.sendMessage(chatID, "⚠️ Не удалось открыть корзину, попробуйте позже")
		return
	}
	msg := tgbotapi.NewMessage(chatID, h.FormatCart(c))
	if !c.IsEmpty() {
		msg.ReplyMarkup = cartKeyboard(c)
	}
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// HandleAdd обрабатывает /add <товар>.
func (h *Handler) HandleAdd(ctx context.Context, chatID, userID int64, args []string) {
	if len(args) == 0 {
		h.sendMessage(chatID, "Использование: /add <товар>\nСписок товаров: /catalog")
		return
	}
	qty, err := h.service.Add(ctx, userID, args[0])
	if err != nil {
		h.sendMessage(chatID, userError(err))
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Добавлено. В корзине: %d %s\n/cart — открыть корзину",
		qty, common.PluralizeItems(int64(qty))))
}

// HandleCatalog показывает активные товары с кнопками «в корзину».
func (h *Handler) HandleCatalog(ctx context.Context, chatID int64) {
	items, err := h.service.Catalog(ctx)
	if err != nil {
		log.WithError(err).Error("Ошибка чтения каталога")
		h.sendMessage(chatID, "⚠️ Каталог временно недоступен")
		return
	}
	if len(items) == 0 {
		h.sendMessage(chatID, "Каталог пока пуст")
		return
	}

	var sb strings.Builder
	sb.WriteString("📦 Каталог\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, it := range items {
		fmt.Fprintf(&sb, "• %s — %s (%s)\n", it.Title,
			common.FormatMoney(it.Price, h.primary),
			common.FormatMoney(h.service.Convert(it.Price), h.secondary))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ "+it.Title, CallbackPrefix+"add:"+it.ID),
		))
	}
	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// HandleCallback обрабатывает кнопки корзины и перерисовывает сообщение.
func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	op, itemID := parseCallback(cq.Data)

	var err error
	switch op {
	case "add":
		_, err = h.service.Add(ctx, userID, itemID)
	case "inc":
		_, err = h.service.Increase(ctx, userID, itemID)
	case "dec":
		_, err = h.service.Decrease(ctx, userID, itemID)
	case "rm":
		err = h.service.Remove(ctx, userID, itemID)
	case "clear":
		err = h.service.Clear(ctx, userID)
	default:
		h.answer(cq.ID, "")
		return
	}
	if err != nil {
		h.answer(cq.ID, userError(err))
		return
	}
	h.answer(cq.ID, "")

	// Кнопка из каталога — сообщение каталога не трогаем
	if op == "add" || cq.Message == nil {
		return
	}
	c, err := h.service.List(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка чтения корзины")
		return
	}
	var edit tgbotapi.EditMessageTextConfig
	if c.IsEmpty() {
		edit = tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, h.FormatCart(c))
	} else {
		edit = tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID, h.FormatCart(c), cartKeyboard(c))
	}
	if _, err := h.bot.Send(edit); err != nil {
		log.WithError(err).Debug("Не удалось обновить корзину")
	}
}

// FormatCart — текст корзины с итогом в двух валютах.
func (h *Handler) FormatCart(c *Cart) string {
	if c.IsEmpty() {
		return "🛒 Корзина пуста\n/catalog — каталог товаров"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "🛒 Корзина (%d %s)\n\n", c.Count(), common.PluralizeItems(c.Count()))
	for _, l := range c.Lines {
		fmt.Fprintf(&sb, "• %s × %d — %s\n", l.Item.Title, l.Quantity, common.FormatMoney(l.Subtotal(), h.primary))
	}
	fmt.Fprintf(&sb, "\nИтого: %s / %s",
		common.FormatMoney(c.Total, h.primary), common.FormatMoney(c.TotalSecondary, h.secondary))
	return sb.String()
}

func cartKeyboard(c *Cart) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, l := range c.Lines {
		id := l.Item.ID
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖", CallbackPrefix+"dec:"+id),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s (%d)", l.Item.Title, l.Quantity), CallbackPrefix+"noop"),
			tgbotapi.NewInlineKeyboardButtonData("➕", CallbackPrefix+"inc:"+id),
			tgbotapi.NewInlineKeyboardButtonData("✖", CallbackPrefix+"rm:"+id),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗑 Очистить", callbackClear),
		tgbotapi.NewInlineKeyboardButtonData("✅ Оформить", CallbackCheckout),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// parseCallback разбирает "cart:<op>:<товар>" и "cart:clear".
func parseCallback(data string) (op, itemID string) {
	rest := strings.TrimPrefix(data, CallbackPrefix)
	op, itemID, _ = strings.Cut(rest, ":")
	return op, itemID
}

func userError(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "❌ Товар не найден"
	case errors.Is(err, common.ErrValidation):
		return "❌ Некорректный товар"
	default:
		return "⚠️ Не получилось, попробуйте ещё раз"
	}
}

func (h *Handler) answer(callbackID, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}
