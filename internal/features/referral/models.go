// Package referral — партнёрская программа: профили, реферальные коды,
// граф приглашений и начисления пригласившим.
package referral

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
)

// MaxLevel — глубина партнёрской сети.
const MaxLevel = 3

// Program — вариант партнёрской программы.
type Program string

const (
	Direct     Program = "DIRECT"      // 25% с покупок первого уровня
	MultiLevel Program = "MULTI_LEVEL" // 15% / 5% / 5% по трём уровням
)

var programRates = map[Program][MaxLevel]decimal.Decimal{
	Direct:     {decimal.RequireFromString("0.25"), decimal.Zero, decimal.Zero},
	MultiLevel: {decimal.RequireFromString("0.15"), decimal.RequireFromString("0.05"), decimal.RequireFromString("0.05")},
}

// ParseProgram разбирает название программы без учёта регистра.
func ParseProgram(s string) (Program, error) {
	p := Program(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := programRates[p]; !ok {
		return "", fmt.Errorf("%w: %q", common.ErrUnknownProgram, s)
	}
	return p, nil
}

// Rate возвращает долю комиссии для уровня 1..3. Вне диапазона — ноль.
func (p Program) Rate(level int) decimal.Decimal {
	rates, ok := programRates[p]
	if !ok || level < 1 || level > MaxLevel {
		return decimal.Zero
	}
	return rates[level-1]
}

// Title — подпись программы для пользователя.
func (p Program) Title() string {
	switch p {
	case Direct:
		return "Прямая (25%)"
	case MultiLevel:
		return "Многоуровневая (15% / 5% / 5%)"
	}
	return string(p)
}

// Profile — участник партнёрской программы (один на пользователя).
type Profile struct {
	ID           int64           `db:"id"`
	UserID       int64           `db:"user_id"`
	Program      Program         `db:"program"`
	ReferralCode string          `db:"referral_code"` // Не меняется после выдачи
	Balance      decimal.Decimal `db:"balance"`       // Производное, пишет только проектор
	Bonus        decimal.Decimal `db:"bonus"`         // Производное, пишет только проектор
	CreatedAt    time.Time       `db:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// Summary — публичная часть профиля, отдаётся при разборе кода.
type Summary struct {
	ProfileID int64
	UserID    int64
	Code      string
	Program   Program
}

func (p *Profile) Summary() Summary {
	return Summary{ProfileID: p.ID, UserID: p.UserID, Code: p.ReferralCode, Program: p.Program}
}

// Edge — «профиль OwnerProfileID привёл пользователя ReferredUserID» на уровне Level.
type Edge struct {
	ID             int64     `db:"id"`
	OwnerProfileID int64     `db:"owner_profile_id"`
	Level          int       `db:"level"`
	ReferredUserID *int64    `db:"referred_user_id"` // nil — приглашение только по контакту
	Contact        *string   `db:"contact"`
	CreatedAt      time.Time `db:"created_at"`
}

// Status — итог одной попытки онбординга.
type Status string

const (
	Completed           Status = "completed"
	RejectedInvalidCode Status = "rejected_invalid_code"
	FailedTransient     Status = "failed_transient"
)

// OnboardResult — итог Onboard. Err заполнен для FailedTransient.
type OnboardResult struct {
	Status      Status
	Owner       *Summary
	EdgeCreated bool // создана новая связь первого уровня
	Credited    bool // бонус начислен в этой попытке
	Err         error
}

// Dashboard — кабинет партнёра.
type Dashboard struct {
	Profile    *Profile
	Recent     []*ledger.Transaction
	EdgeCounts [MaxLevel]int64 // индекс 0 — первый уровень
	Link       string
}

// TotalPartners — размер всей сети.
func (d *Dashboard) TotalPartners() int64 {
	var n int64
	for _, c := range d.EdgeCounts {
		n += c
	}
	return n
}
