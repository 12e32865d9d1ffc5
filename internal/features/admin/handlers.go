// Package admin — handlers.go обрабатывает админ-команды в личных сообщениях.
// Поток: /login → пароль → сессия на 24 часа → команды.
package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
)

const helpText = "🛠 Админ-команды:\n" +
	"/verify — проверить балансы\n" +
	"/reconcile — удалить дубли и пересчитать балансы\n" +
	"/credit <user_id> <сумма> [описание]\n" +
	"/debit <user_id> <сумма> [описание]\n" +
	"/done <order_id> — заказ выполнен\n" +
	"/cancel <order_id> — отменить заказ\n" +
	"/ban <user_id>, /unban <user_id>\n" +
	"/logout"

// Handler обрабатывает админ-команды.
type Handler struct {
	service *Service
	bot     common.Sender
	symbol  string
}

// NewHandler создаёт обработчик админки.
func NewHandler(service *Service, bot common.Sender, symbol string) *Handler {
	return &Handler{service: service, bot: bot, symbol: symbol}
}

// HandleAdminMessage обрабатывает сообщение администратора.
// Возвращает true, если сообщение обработано и дальше его передавать не нужно.
func (h *Handler) HandleAdminMessage(ctx context.Context, chatID, userID int64, text, cmd string, args []string) bool {
	if !h.service.IsAdmin(userID) {
		return false
	}

	if state := h.service.GetState(userID); state != nil && state.State == StateAwaitingPassword && cmd == "" {
		h.handlePasswordInput(ctx, chatID, userID, text)
		return true
	}

	switch cmd {
	case "login":
		if len(args) == 0 {
			h.service.SetState(userID, StateAwaitingPassword)
			h.sendMessage(chatID, "🔐 Введите пароль:")
			return true
		}
		h.handlePasswordInput(ctx, chatID, userID, strings.Join(args, " "))
		return true
	case "admin", "verify", "reconcile", "credit", "debit", "done", "cancel", "ban", "unban", "logout":
	default:
		return false
	}

	if !h.service.HasActiveSession(ctx, userID) {
		h.sendMessage(chatID, "🔐 Сначала войдите: /login <пароль>")
		return true
	}

	switch cmd {
	case "admin":
		h.sendMessage(chatID, helpText)
	case "verify":
		h.handleVerify(ctx, chatID)
	case "reconcile":
		h.handleReconcile(ctx, chatID)
	case "credit":
		h.handleAdjust(ctx, chatID, userID, ledger.Credit, args)
	case "debit":
		h.handleAdjust(ctx, chatID, userID, ledger.Debit, args)
	case "done":
		h.handleDone(ctx, chatID, args)
	case "cancel":
		h.handleCancel(ctx, chatID, args)
	case "ban", "unban":
		h.handleBan(ctx, chatID, userID, cmd == "ban", args)
	case "logout":
		if err := h.service.Logout(ctx, userID); err != nil {
			h.replyError(chatID, err)
			return true
		}
		h.sendMessage(chatID, "👋 Сессия завершена")
	}
	return true
}

// handlePasswordInput обрабатывает ввод пароля.
func (h *Handler) handlePasswordInput(ctx context.Context, chatID, userID int64, password string) {
	h.service.ClearState(userID)
	if err := h.service.VerifyPassword(ctx, userID, strings.TrimSpace(password)); err != nil {
		h.replyError(chatID, err)
		return
	}
	h.sendMessage(chatID, "✅ Аутентификация успешна!\n\n"+helpText)
}

func (h *Handler) handleVerify(ctx context.Context, chatID int64) {
	drifts, err := h.service.Verify(ctx)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	if len(drifts) == 0 {
		h.sendMessage(chatID, "✅ Все балансы совпадают с журналом")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "⚠️ Расхождений: %d\n\n", len(drifts))
	for _, d := range drifts {
		fmt.Fprintf(&sb, "профиль %d (user %d): сохранено %s, по журналу %s\n",
			d.ProfileID, d.UserID,
			common.FormatMoney(d.Stored, h.symbol), common.FormatMoney(d.Ledger, h.symbol))
	}
	sb.WriteString("\n/reconcile — исправить")
	h.sendMessage(chatID, sb.String())
}

func (h *Handler) handleReconcile(ctx context.Context, chatID int64) {
	rep, err := h.service.Reconcile(ctx)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf(
		"🧹 Сверка завершена\nУдалено дублей связей: %d\nУдалено дублей операций: %d\nПересчитано профилей: %d\nИсправлено расхождений: %d",
		rep.EdgesRemoved, rep.TransactionsRemoved, len(rep.Reprojected), rep.Fixed))
}

func (h *Handler) handleAdjust(ctx context.Context, chatID, adminID int64, txType ledger.TxType, args []string) {
	if len(args) < 2 {
		h.sendMessage(chatID, fmt.Sprintf("Использование: /%s <user_id> <сумма> [описание]", strings.ToLower(string(txType))))
		return
	}
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		h.sendMessage(chatID, "❌ Некорректный user_id")
		return
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(args[1], ",", "."))
	if err != nil {
		h.sendMessage(chatID, "❌ Некорректная сумма")
		return
	}
	tx, err := h.service.Adjust(ctx, adminID, userID, txType, amount, strings.Join(args[2:], " "))
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Операция #%d: %s пользователю %d",
		tx.ID, common.FormatSignedMoney(tx.Signed(), h.symbol), userID))
}

func (h *Handler) handleDone(ctx context.Context, chatID int64, args []string) {
	orderID, ok := h.parseID(chatID, args, "/done <order_id>")
	if !ok {
		return
	}
	o, credited, err := h.service.CompleteOrder(ctx, orderID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("✅ Заказ #%d выполнен (%s). Начислено комиссий: %d",
		o.ID, common.FormatMoney(o.Total, h.symbol), credited))
}

func (h *Handler) handleCancel(ctx context.Context, chatID int64, args []string) {
	orderID, ok := h.parseID(chatID, args, "/cancel <order_id>")
	if !ok {
		return
	}
	o, err := h.service.CancelOrder(ctx, orderID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.sendMessage(chatID, fmt.Sprintf("🚫 Заказ #%d отменён", o.ID))
}

func (h *Handler) handleBan(ctx context.Context, chatID, adminID int64, banned bool, args []string) {
	userID, ok := h.parseID(chatID, args, "/ban <user_id>")
	if !ok {
		return
	}
	if err := h.service.SetBanned(ctx, adminID, userID, banned); err != nil {
		h.replyError(chatID, err)
		return
	}
	if banned {
		h.sendMessage(chatID, fmt.Sprintf("⛔ Пользователь %d забанен", userID))
	} else {
		h.sendMessage(chatID, fmt.Sprintf("✅ Пользователь %d разбанен", userID))
	}
}

func (h *Handler) parseID(chatID int64, args []string, usage string) (int64, bool) {
	if len(args) == 0 {
		h.sendMessage(chatID, "Использование: "+usage)
		return 0, false
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		h.sendMessage(chatID, "❌ Некорректный номер")
		return 0, false
	}
	return id, true
}

func (h *Handler) replyError(chatID int64, err error) {
	var text string
	switch {
	case errors.Is(err, common.ErrWrongPassword), errors.Is(err, common.ErrTooManyAttempts),
		errors.Is(err, common.ErrNotAdmin):
		text = "❌ " + err.Error()
	case errors.Is(err, common.ErrNotFound):
		text = "❌ Не найдено"
	case errors.Is(err, common.ErrValidation):
		text = "❌ " + err.Error()
	case errors.Is(err, common.ErrTransient):
		text = "⚠️ База недоступна, попробуйте позже"
	default:
		log.WithError(err).Error("Ошибка админ-команды")
		text = "⚠️ Ошибка: " + err.Error()
	}
	h.sendMessage(chatID, text)
}

func (h *Handler) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := h.bot.Send(msg); err != nil {
		log.WithError(err).Error("Ошибка отправки сообщения")
	}
}
