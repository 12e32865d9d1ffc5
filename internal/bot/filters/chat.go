// Package filters решает, обрабатывать ли апдейт вообще.
package filters

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// BanChecker сообщает, забанен ли пользователь (members.Service).
type BanChecker interface {
	IsBanned(ctx context.Context, userID int64) (bool, error)
}

// ChatFilter пропускает только личные сообщения незабаненных пользователей.
// Магазин работает в личке: групповые чаты и каналы игнорируются.
type ChatFilter struct {
	members BanChecker
}

func NewChatFilter(members BanChecker) *ChatFilter {
	return &ChatFilter{members: members}
}

// CheckAccess проверяет отправителя и тип чата.
func (f *ChatFilter) CheckAccess(ctx context.Context, chat *tgbotapi.Chat, from *tgbotapi.User) bool {
	if chat == nil || from == nil {
		log.WithField("component", "ChatFilter").Debug("nil chat/from (service/channel message?)")
		return false
	}
	if from.IsBot {
		return false
	}

	logger := log.WithFields(log.Fields{
		"component": "ChatFilter",
		"chat_id":   chat.ID,
		"chat_type": chat.Type,
		"user_id":   from.ID,
	})

	if !chat.IsPrivate() {
		logger.Debug("deny: not a private chat")
		return false
	}

	banned, err := f.members.IsBanned(ctx, from.ID)
	if err != nil {
		// БД недоступна — пропускаем, дальше обработчик сам ответит «попробуйте позже»
		logger.WithError(err).Warn("ban check failed, allowing")
		return true
	}
	if banned {
		logger.Info("deny: banned member")
		return false
	}
	return true
}
