package common

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// Sender — часть *tgbotapi.BotAPI, которой пользуются обработчики.
// В тестах подменяется записывающей заглушкой.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}
