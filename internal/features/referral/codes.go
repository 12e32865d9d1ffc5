package referral

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
)

// Алфавит без похожих символов (0/O, 1/I). 32 символа делят байт без остатка.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultCodeLength  = 8
	DefaultMaxAttempts = 20
)

// CodeChecker проверяет, занят ли код в хранилище профилей.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator выдаёт короткие коды для реферальных ссылок.
// Выданные, но ещё не сохранённые коды держатся в reserved,
// чтобы параллельные вызовы не получили один и тот же код.
type CodeGenerator struct {
	store       CodeChecker
	length      int
	maxAttempts int
	random      io.Reader

	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewCodeGenerator создаёт генератор. Нулевые параметры заменяются значениями по умолчанию.
func NewCodeGenerator(store CodeChecker, length, maxAttempts int) *CodeGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &CodeGenerator{
		store:       store,
		length:      length,
		maxAttempts: maxAttempts,
		random:      rand.Reader,
		reserved:    make(map[string]struct{}),
	}
}

// WithRandom подменяет источник случайности (для тестов).
func (g *CodeGenerator) WithRandom(r io.Reader) *CodeGenerator {
	g.random = r
	return g
}

// Generate возвращает случайный код без проверки уникальности.
func (g *CodeGenerator) Generate() (string, error) {
	buf := make([]byte, g.length)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("ошибка чтения случайных байт: %w", err)
	}
	var sb strings.Builder
	sb.Grow(g.length)
	for _, b := range buf {
		sb.WriteByte(codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return sb.String(), nil
}

// EnsureUnique подбирает код, которого нет ни в хранилище, ни среди зарезервированных.
// Коллизия — повод повторить; ошибка хранилища прерывает подбор сразу.
// После сохранения профиля код нужно отпустить через Release.
func (g *CodeGenerator) EnsureUnique(ctx context.Context) (string, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		code, err := g.Generate()
		if err != nil {
			return "", err
		}
		if !g.reserve(code) {
			continue
		}
		exists, err := g.store.CodeExists(ctx, code)
		if err != nil {
			g.Release(code)
			return "", fmt.Errorf("проверка кода: %w", err)
		}
		if !exists {
			return code, nil
		}
		g.Release(code)
		log.WithFields(log.Fields{"code": code, "attempt": attempt}).Debug("Коллизия реферального кода")
	}
	log.WithField("attempts", g.maxAttempts).Error("Не удалось подобрать реферальный код")
	return "", common.ErrCodeSpaceExhausted
}

// Release снимает резерв с кода.
func (g *CodeGenerator) Release(code string) {
	g.mu.Lock()
	delete(g.reserved, code)
	g.mu.Unlock()
}

func (g *CodeGenerator) reserve(code string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, taken := g.reserved[code]; taken {
		return false
	}
	g.reserved[code] = struct{}{}
	return true
}

// NormalizeCode приводит код из ссылки к виду, в котором он хранится:
// верхний регистр, без пробелов и префикса ref_.
func NormalizeCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	return strings.TrimPrefix(code, "REF_")
}
