package testutil

import (
	"context"
	"sync"
)

// Message — одно отправленное уведомление.
type Message struct {
	UserID int64
	Text   string
}

// Notifier запоминает уведомления. Err, если задан, возвращается из Notify
// (сообщение при этом всё равно записывается).
type Notifier struct {
	mu       sync.Mutex
	Err      error
	messages []Message
}

func (n *Notifier) Notify(ctx context.Context, userID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, Message{UserID: userID, Text: text})
	return n.Err
}

// Messages возвращает копию отправленных уведомлений.
func (n *Notifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Message(nil), n.messages...)
}

// To возвращает уведомления одному пользователю.
func (n *Notifier) To(userID int64) []Message {
	var out []Message
	for _, m := range n.Messages() {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}
