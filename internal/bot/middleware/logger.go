// Package middleware содержит промежуточные обработчики для логирования,
// восстановления после паники и rate-limiting.
package middleware

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

const maxLoggedText = 50

// UpdateLogger возвращает логгер апдейта с id для сквозной корреляции.
func UpdateLogger(updateID string, userID int64) *log.Entry {
	return log.WithFields(log.Fields{
		"update_id": updateID,
		"user_id":   userID,
	})
}

// LogMessage логирует входящее сообщение: chat_id, username, текст (первые 50 символов).
func LogMessage(entry *log.Entry, message *tgbotapi.Message) {
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}
	entry.WithFields(log.Fields{
		"chat_id":  message.Chat.ID,
		"username": message.From.UserName,
		"text":     truncate(message.Text),
	}).Debug("Входящее сообщение")
}

// LogCallback логирует нажатие inline-кнопки.
func LogCallback(entry *log.Entry, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.From == nil {
		return
	}
	entry.WithFields(log.Fields{
		"username": cq.From.UserName,
		"data":     truncate(cq.Data),
	}).Debug("Нажатие кнопки")
}

func truncate(text string) string {
	r := []rune(text)
	if len(r) > maxLoggedText {
		return string(r[:maxLoggedText]) + "..."
	}
	return text
}
