package testutil

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender записывает всё, что обработчики отправляют в Telegram.
type Sender struct {
	mu       sync.Mutex
	Err      error
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (s *Sender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, c)
	return tgbotapi.Message{}, s.Err
}

func (s *Sender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, c)
	if s.Err != nil {
		return nil, s.Err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// Texts возвращает тексты отправленных сообщений и правок по порядку.
func (s *Sender) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

// Last возвращает текст последнего сообщения или "".
func (s *Sender) Last() string {
	texts := s.Texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// Callbacks возвращает тексты ответов на нажатия кнопок.
func (s *Sender) Callbacks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}
