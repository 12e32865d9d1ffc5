package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingSender struct {
	sent []tgbotapi.MessageConfig
	fail map[int64]bool
}

func (r *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, ok := c.(tgbotapi.MessageConfig)
	if !ok {
		return tgbotapi.Message{}, nil
	}
	if r.fail[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("bot was blocked by the user")
	}
	r.sent = append(r.sent, msg)
	return tgbotapi.Message{}, nil
}

func (r *recordingSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func TestNotify(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier(s)

	if err := n.Notify(context.Background(), 42, "привет"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if len(s.sent) != 1 || s.sent[0].ChatID != 42 || s.sent[0].Text != "привет" {
		t.Fatalf("unexpected sent messages: %+v", s.sent)
	}
}

func TestNotifyCancelledContext(t *testing.T) {
	s := &recordingSender{}
	n := NewNotifier(s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := n.Notify(ctx, 42, "привет"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(s.sent) != 0 {
		t.Fatal("nothing must be sent after cancellation")
	}
}

func TestBroadcastSkipsFailures(t *testing.T) {
	s := &recordingSender{fail: map[int64]bool{2: true}}
	n := NewNotifier(s)

	n.Broadcast(context.Background(), []int64{1, 2, 3}, "заказ")
	if len(s.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(s.sent))
	}
}
