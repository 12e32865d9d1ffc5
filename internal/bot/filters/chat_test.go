package filters

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type stubBans struct {
	banned map[int64]bool
	err    error
}

func (s stubBans) IsBanned(ctx context.Context, userID int64) (bool, error) {
	return s.banned[userID], s.err
}

func TestCheckAccess(t *testing.T) {
	private := &tgbotapi.Chat{ID: 1, Type: "private"}
	group := &tgbotapi.Chat{ID: -100, Type: "supergroup"}
	user := &tgbotapi.User{ID: 1}
	bannedUser := &tgbotapi.User{ID: 2}
	botUser := &tgbotapi.User{ID: 3, IsBot: true}

	f := NewChatFilter(stubBans{banned: map[int64]bool{2: true}})

	tests := []struct {
		name string
		chat *tgbotapi.Chat
		from *tgbotapi.User
		want bool
	}{
		{"private chat", private, user, true},
		{"group chat", group, user, false},
		{"banned user", private, bannedUser, false},
		{"bot sender", private, botUser, false},
		{"no sender", private, nil, false},
		{"no chat", nil, user, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.CheckAccess(context.Background(), tt.chat, tt.from); got != tt.want {
				t.Errorf("CheckAccess() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckAccessStoreDown(t *testing.T) {
	f := NewChatFilter(stubBans{err: errors.New("db down")})
	if !f.CheckAccess(context.Background(), &tgbotapi.Chat{ID: 1, Type: "private"}, &tgbotapi.User{ID: 1}) {
		t.Error("ban check failure must not block the user")
	}
}
