// Package referral — handlers.go: команды /start и /partner, кнопки смены программы.
package referral

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/members"
)

// CallbackPrefix — префикс callback_data кнопок программы.
const CallbackPrefix = "program:"

const welcomeText = "👋 Добро пожаловать в магазин!\n\n" +
	"/cart — корзина\n/add <товар> — добавить товар\n/partner — партнёрская программа"

// Handler обрабатывает команды партнёрской программы.
type Handler struct {
	service *Service
	bot     common.Sender
	symbol  string
}

// NewHandler создаёт обработчик. symbol — знак основной валюты.
func NewHandler(service *Service, bot common.Sender, symbol string) *Handler {
	return &Handler{service: service, bot: bot, symbol: symbol}
}

// HandleStart обрабатывает /start. Непустой payload — реферальный код.
func (h *Handler) HandleStart(ctx context.Context, chatID int64, user members.Identity, payload string) {
	if strings.TrimSpace(payload) == "" {
		h.sendMessage(chatID, welcomeText)
		return
	}

	res := h.service.Onboard(ctx, payload, user)
	switch res.Status {
	case RejectedInvalidCode:
		h.sendMessage(chatID, "❌ Реферальная ссылка недействительна.\n\n"+welcomeText)
	case FailedTransient:
		h.sendMessage(chatID, "⚠️ Не удалось обработать ссылку, попробуйте ещё раз чуть позже.")
	default:
		h.sendMessage(chatID, welcomeText)
	}
}

// HandlePartner показывает кабинет партнёра.
func (h *Handler) HandlePartner(ctx context.Context, chatID, userID int64) {
	d, err := h.service.GetDashboard(ctx, userID)
	if err != nil {
		log.WithError(err).WithField("user_id", userID).Error("Ошибка получения кабинета")
		h.sendMessage(chatID, errorText(err))
		return
	}
	msg := tgbotapi.NewMessage(chatID, h.formatDashboard(d))
	msg.ReplyMarkup = programKeyboard(d.Profile.Program)
	msg.DisableWebPagePreview = true
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

// HandleCallback обрабатывает нажатие «program:<X>».
func (h *Handler) HandleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	program, err := ParseProgram(strings.TrimPrefix(cq.Data, CallbackPrefix))
	if err != nil {
		h.answer(cq.ID, "Неизвестная программа")
		return
	}
	p, err := h.service.SwitchProgram(ctx, cq.From.ID, program)
	if err != nil {
		log.WithError(err).WithField("user_id", cq.From.ID).Error("Ошибка смены программы")
		h.answer(cq.ID, errorText(err))
		return
	}
	h.answer(cq.ID, "Программа: "+p.Program.Title())

	if cq.Message != nil {
		d, err := h.service.GetDashboard(ctx, cq.From.ID)
		if err != nil {
			return
		}
		edit := tgbotapi.NewEditMessageTextAndMarkup(cq.Message.Chat.ID, cq.Message.MessageID,
			h.formatDashboard(d), programKeyboard(p.Program))
		edit.DisableWebPagePreview = true
		if _, err := h.bot.Send(edit); err != nil {
			log.WithError(err).Debug("Не удалось обновить кабинет")
		}
	}
}

func (h *Handler) formatDashboard(d *Dashboard) string {
	var sb strings.Builder
	sb.WriteString("🤝 Партнёрская программа\n\n")
	fmt.Fprintf(&sb, "Программа: %s\n", d.Profile.Program.Title())
	fmt.Fprintf(&sb, "Бонус: %s\n", common.FormatMoney(d.Profile.Bonus, h.symbol))
	fmt.Fprintf(&sb, "Ваша ссылка: %s\n\n", d.Link)

	fmt.Fprintf(&sb, "В сети %d %s:\n", d.TotalPartners(), common.PluralizeReferrals(d.TotalPartners()))
	for i, n := range d.EdgeCounts {
		fmt.Fprintf(&sb, "  %d уровень — %d\n", i+1, n)
	}

	if len(d.Recent) > 0 {
		sb.WriteString("\n📜 Последние операции:\n")
		for _, tx := range d.Recent {
			fmt.Fprintf(&sb, "%s  %s  %s\n",
				common.FormatDateTime(tx.CreatedAt),
				common.FormatSignedMoney(tx.Signed(), h.symbol),
				tx.Description)
		}
	}
	return sb.String()
}

func programKeyboard(current Program) tgbotapi.InlineKeyboardMarkup {
	button := func(p Program) tgbotapi.InlineKeyboardButton {
		title := p.Title()
		if p == current {
			title = "✅ " + title
		}
		return tgbotapi.NewInlineKeyboardButtonData(title, CallbackPrefix+string(p))
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(button(Direct)),
		tgbotapi.NewInlineKeyboardRow(button(MultiLevel)),
	)
}

func errorText(err error) string {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return "❌ Не найдено"
	case errors.Is(err, common.ErrValidation):
		return "❌ Некорректные данные"
	case common.IsRetryable(err):
		return "⚠️ Сервис временно недоступен, попробуйте через минуту"
	default:
		return "⚠️ Что-то пошло не так, попробуйте позже"
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
