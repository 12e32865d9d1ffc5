// Package referral — service.go: профили, разбор кодов и кабинет партнёра.
package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/members"
)

// Store — хранилище профилей и графа приглашений.
type Store interface {
	CodeChecker
	CreateProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, profileID int64) (*Profile, error)
	GetProfileByUserID(ctx context.Context, userID int64) (*Profile, error)
	GetProfileByCode(ctx context.Context, code string) (*Profile, error)
	SetProgram(ctx context.Context, profileID int64, program Program) error
	CreateEdge(ctx context.Context, e *Edge) error
	FindEdge(ctx context.Context, ownerProfileID, referredUserID int64) (*Edge, error)
	InboundEdges(ctx context.Context, referredUserID int64) ([]*Edge, error)
	CountEdges(ctx context.Context, ownerProfileID int64, level int) (int64, error)
}

// Ledger — запись в журнал и чтение истории (ledger.Service).
type Ledger interface {
	Append(ctx context.Context, profileID int64, amount decimal.Decimal, description string, txType ledger.TxType, ref string) (*ledger.Transaction, error)
	Project(ctx context.Context, profileID int64) (decimal.Decimal, error)
	Recent(ctx context.Context, profileID int64, limit int) ([]*ledger.Transaction, error)
}

// UserDirectory — справочник пользователей (members.Service).
type UserDirectory interface {
	EnsureMember(ctx context.Context, id members.Identity) (*members.Member, error)
}

// Notifier доставляет сообщение пользователю. Ошибка доставки не критична.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text string) error
}

// Options — настройки партнёрской программы.
type Options struct {
	JoinBonus      decimal.Decimal // Бонус пригласившему за нового пользователя
	DefaultProgram Program
	CurrencySymbol string
	BotUsername    string // Для ссылки t.me/<bot>?start=<code>
	CommissionsOn  bool
}

// Service — партнёрская программа.
type Service struct {
	store    Store
	ledger   Ledger
	users    UserDirectory
	notifier Notifier
	codes    *CodeGenerator
	opts     Options

	// Очередь на профиль пригласившего для шагов «связь + начисление».
	ownerLocks *common.KeyedMutex
}

// NewService создаёт сервис партнёрской программы.
func NewService(store Store, ledgerSvc Ledger, users UserDirectory, notifier Notifier, codes *CodeGenerator, opts Options) *Service {
	if opts.DefaultProgram == "" {
		opts.DefaultProgram = Direct
	}
	return &Service{
		store:      store,
		ledger:     ledgerSvc,
		users:      users,
		notifier:   notifier,
		codes:      codes,
		opts:       opts,
		ownerLocks: common.NewKeyedMutex(0),
	}
}

// EnsureProfile возвращает профиль пользователя, создавая его при первом обращении.
// Гонка двух созданий для одного пользователя сходится к одной записи.
func (s *Service) EnsureProfile(ctx context.Context, userID int64) (*Profile, error) {
	p, err := s.store.GetProfileByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < s.codes.maxAttempts; attempt++ {
		code, err := s.codes.EnsureUnique(ctx)
		if err != nil {
			return nil, err
		}
		p = &Profile{UserID: userID, Program: s.opts.DefaultProgram, ReferralCode: code}
		err = s.store.CreateProfile(ctx, p)
		s.codes.Release(code)
		if err == nil {
			log.WithFields(log.Fields{
				"user_id":    userID,
				"profile_id": p.ID,
				"code":       code,
			}).Info("Создан партнёрский профиль")
			return p, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			return nil, err
		}
		// Конфликт: либо профиль уже создан параллельно, либо код заняли между проверкой и вставкой.
		existing, getErr := s.store.GetProfileByUserID(ctx, userID)
		if getErr == nil {
			return existing, nil
		}
		if !errors.Is(getErr, common.ErrNotFound) {
			return nil, getErr
		}
	}
	return nil, common.ErrCodeSpaceExhausted
}

// ResolveReferralCode находит владельца кода. Неизвестный код — common.ErrNotFound.
func (s *Service) ResolveReferralCode(ctx context.Context, raw string) (*Summary, error) {
	code := NormalizeCode(raw)
	if code == "" {
		return nil, fmt.Errorf("пустой код: %w", common.ErrNotFound)
	}
	p, err := s.store.GetProfileByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	sum := p.Summary()
	return &sum, nil
}

// SwitchProgram меняет программу партнёра.
func (s *Service) SwitchProgram(ctx context.Context, userID int64, program Program) (*Profile, error) {
	if _, ok := programRates[program]; !ok {
		return nil, common.ErrUnknownProgram
	}
	p, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.Program == program {
		return p, nil
	}
	if err := s.store.SetProgram(ctx, p.ID, program); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"profile_id": p.ID,
		"from":       p.Program,
		"to":         program,
	}).Info("Программа партнёра изменена")
	p.Program = program
	return p, nil
}

// GetDashboard собирает кабинет: профиль, последние операции и размер сети по уровням.
func (s *Service) GetDashboard(ctx context.Context, userID int64) (*Dashboard, error) {
	p, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.ledger.Recent(ctx, p.ID, ledger.RecentLimit)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{Profile: p, Recent: recent, Link: s.Link(p.ReferralCode)}
	for level := 1; level <= MaxLevel; level++ {
		n, err := s.store.CountEdges(ctx, p.ID, level)
		if err != nil {
			return nil, err
		}
		d.EdgeCounts[level-1] = n
	}
	return d, nil
}

// Link возвращает реферальную ссылку на бота.
func (s *Service) Link(code string) string {
	if s.opts.BotUsername == "" {
		return code
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", s.opts.BotUsername, code)
}
