// Package admin реализует админ-команды с парольной аутентификацией.
// models.go описывает структуры сессий и попыток входа.
package admin

import "time"

// Session — активная сессия администратора.
type Session struct {
	ID              int64     `db:"id"`
	UserID          int64     `db:"user_id"`
	SessionToken    string    `db:"session_token"`
	AuthenticatedAt time.Time `db:"authenticated_at"`
	ExpiresAt       time.Time `db:"expires_at"`
	LastActivity    time.Time `db:"last_activity"`
	IsActive        bool      `db:"is_active"`
}

// State — состояние диалога с админом.
// Сейчас используется одно состояние: ожидание пароля после /login без аргумента.
type State struct {
	State     string
	ExpiresAt time.Time
}

// Возможные состояния админ-диалога
const (
	StateNone             = ""
	StateAwaitingPassword = "awaiting_password"
)

const (
	sessionTTL      = 24 * time.Hour
	stateTTL        = 5 * time.Minute
	maxFailedLogins = 3
	lockoutPeriod   = time.Hour
)
