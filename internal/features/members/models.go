// Package members — справочник пользователей бота.
// models.go описывает структуры данных для работы с таблицей members.
package members

import (
	"fmt"
	"time"
)

// Member представляет пользователя бота в базе данных.
// Запись создаётся при первом обращении к боту и обновляется,
// когда у пользователя меняется имя или username.
type Member struct {
	ID        int64     `db:"id"`         // Автоинкрементный ID записи в БД
	UserID    int64     `db:"user_id"`    // Telegram user ID (уникальный)
	Username  string    `db:"username"`   // @username (может быть пустым)
	FirstName string    `db:"first_name"` // Имя пользователя
	LastName  string    `db:"last_name"`  // Фамилия (может быть пустой)
	IsBanned  bool      `db:"is_banned"`  // Флаг бана
	JoinedAt  time.Time `db:"joined_at"`  // Первое обращение к боту
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Identity — данные, которые присылает Telegram вместе с апдейтом.
type Identity struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
}

// DisplayName возвращает отображаемое имя пользователя.
// Если есть @username — возвращает его, иначе — имя + фамилию.
func (m *Member) DisplayName() string {
	if m.Username != "" {
		return "@" + m.Username
	}
	name := m.FirstName
	if m.LastName != "" {
		name += " " + m.LastName
	}
	return name
}

// DisplayName — то же для данных из апдейта. Пустое имя заменяется на id.
func (id Identity) DisplayName() string {
	m := Member{Username: id.Username, FirstName: id.FirstName, LastName: id.LastName}
	if name := m.DisplayName(); name != "" {
		return name
	}
	return fmt.Sprintf("пользователь %d", id.UserID)
}
