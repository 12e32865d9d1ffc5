package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
)

// Notifier отправляет сообщения пользователям от имени бота.
// Используется сервисами для уведомлений, ошибки доставки возвращаются вызывающему.
type Notifier struct {
	sender common.Sender
}

// NewNotifier создаёт отправителя уведомлений.
func NewNotifier(sender common.Sender) *Notifier {
	return &Notifier{sender: sender}
}

// Notify отправляет текст в личку пользователю.
func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := n.sender.Send(tgbotapi.NewMessage(userID, text)); err != nil {
		return fmt.Errorf("отправка пользователю %d: %w", userID, err)
	}
	return nil
}

// Broadcast отправляет текст нескольким пользователям (администраторам).
// Ошибки доставки только логируются.
func (n *Notifier) Broadcast(ctx context.Context, userIDs []int64, text string) {
	for _, id := range userIDs {
		if err := n.Notify(ctx, id, text); err != nil {
			log.WithError(err).WithField("user_id", id).Warn("Не удалось отправить сообщение")
		}
	}
}
