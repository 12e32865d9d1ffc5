// Package admin — service.go содержит аутентификацию, сессии и админ-операции
// над журналом, заказами и пользователями.
package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/config"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/orders"
	"serotonyl.ru/storefront-bot/internal/features/reconcile"
	"serotonyl.ru/storefront-bot/internal/features/referral"
)

// AuthStore — хранилище сессий и попыток входа.
type AuthStore interface {
	CreateSession(ctx context.Context, session *Session) error
	GetActiveSession(ctx context.Context, userID int64) (*Session, error)
	DeactivateSession(ctx context.Context, userID int64) error
	UpdateActivity(ctx context.Context, userID int64) error
	LogAttempt(ctx context.Context, userID int64, success bool) error
	CountFailedAttempts(ctx context.Context, userID int64, period time.Duration) (int, error)
}

// Profiles — профили партнёров (referral.Service).
type Profiles interface {
	EnsureProfile(ctx context.Context, userID int64) (*referral.Profile, error)
}

// Ledger — запись корректирующих операций (ledger.Service).
type Ledger interface {
	Append(ctx context.Context, profileID int64, amount decimal.Decimal, description string, txType ledger.TxType, ref string) (*ledger.Transaction, error)
}

// Reconciler — сверка журнала (reconcile.Service).
type Reconciler interface {
	Run(ctx context.Context) (*reconcile.Report, error)
	Verify(ctx context.Context) ([]reconcile.Drift, error)
}

// Orders — выполнение и отмена заказов (orders.Service).
type Orders interface {
	Complete(ctx context.Context, orderID int64) (*orders.Order, int, error)
	Cancel(ctx context.Context, orderID int64) (*orders.Order, error)
}

// Members — бан пользователей (members.Service).
type Members interface {
	SetBanned(ctx context.Context, userID int64, banned bool) error
}

// Deps — сервисы, которыми управляет админка.
type Deps struct {
	Profiles   Profiles
	Ledger     Ledger
	Reconciler Reconciler
	Orders     Orders
	Members    Members
}

// Service управляет админ-командами.
type Service struct {
	repo AuthStore
	deps Deps
	cfg  *config.Config

	states   map[int64]*State // Состояния диалогов (in-memory)
	statesMu sync.RWMutex
}

// NewService создаёт сервис админки.
func NewService(repo AuthStore, deps Deps, cfg *config.Config) *Service {
	return &Service{
		repo:   repo,
		deps:   deps,
		cfg:    cfg,
		states: make(map[int64]*State),
	}
}

// IsAdmin сообщает, входит ли пользователь в ADMIN_IDS.
func (s *Service) IsAdmin(userID int64) bool {
	return s.cfg.IsAdmin(userID)
}

// VerifyPassword проверяет пароль администратора (Argon2id) и открывает сессию на 24 часа.
// 3 неудачные попытки за час блокируют вход.
func (s *Service) VerifyPassword(ctx context.Context, userID int64, password string) error {
	if !s.IsAdmin(userID) {
		return common.ErrNotAdmin
	}

	attempts, err := s.repo.CountFailedAttempts(ctx, userID, lockoutPeriod)
	if err != nil {
		return err
	}
	if attempts >= maxFailedLogins {
		return common.ErrTooManyAttempts
	}

	match := verifyArgon2id(password, s.cfg.AdminPasswordHash)
	if err := s.repo.LogAttempt(ctx, userID, match); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("Не удалось записать попытку входа")
	}
	if !match {
		log.WithField("user_id", userID).Warn("Неверный пароль администратора")
		return common.ErrWrongPassword
	}

	session := &Session{
		UserID:       userID,
		SessionToken: generateSecureToken(),
		ExpiresAt:    time.Now().Add(sessionTTL),
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return err
	}
	log.WithField("user_id", userID).Info("Администратор вошёл")
	return nil
}

// HasActiveSession проверяет, есть ли у администратора активная сессия.
func (s *Service) HasActiveSession(ctx context.Context, userID int64) bool {
	session, err := s.repo.GetActiveSession(ctx, userID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.WithError(err).WithField("user_id", userID).Warn("Ошибка проверки сессии")
		}
		return false
	}
	if err := s.repo.UpdateActivity(ctx, userID); err != nil {
		log.WithError(err).Debug("Не удалось обновить активность сессии")
	}
	return session != nil
}

// Logout завершает сессию.
func (s *Service) Logout(ctx context.Context, userID int64) error {
	return s.repo.DeactivateSession(ctx, userID)
}

// GetState возвращает текущее состояние диалога.
func (s *Service) GetState(userID int64) *State {
	s.statesMu.RLock()
	defer s.statesMu.RUnlock()

	state, ok := s.states[userID]
	if !ok || time.Now().After(state.ExpiresAt) {
		return nil
	}
	return state
}

// SetState устанавливает состояние диалога с 5-минутным таймаутом.
func (s *Service) SetState(userID int64, stateName string) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	s.states[userID] = &State{State: stateName, ExpiresAt: time.Now().Add(stateTTL)}
}

// ClearState сбрасывает состояние диалога.
func (s *Service) ClearState(userID int64) {
	s.statesMu.Lock()
	defer s.statesMu.Unlock()
	delete(s.states, userID)
}

// Adjust записывает корректирующую операцию в журнал пользователя.
// История не редактируется: ошибочное начисление гасится встречным списанием.
func (s *Service) Adjust(ctx context.Context, adminID, userID int64, txType ledger.TxType, amount decimal.Decimal, description string) (*ledger.Transaction, error) {
	if description == "" {
		description = "Корректировка администратором"
	}
	p, err := s.deps.Profiles.EnsureProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	tx, err := s.deps.Ledger.Append(ctx, p.ID, amount, description, txType, "")
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"admin_id":   adminID,
		"user_id":    userID,
		"profile_id": p.ID,
		"type":       txType,
		"amount":     amount.StringFixed(2),
	}).Info("Корректировка журнала")
	return tx, nil
}

// Reconcile запускает полную сверку.
func (s *Service) Reconcile(ctx context.Context) (*reconcile.Report, error) {
	return s.deps.Reconciler.Run(ctx)
}

// Verify ищет расхождения без исправления.
func (s *Service) Verify(ctx context.Context) ([]reconcile.Drift, error) {
	return s.deps.Reconciler.Verify(ctx)
}

// CompleteOrder отмечает заказ выполненным.
func (s *Service) CompleteOrder(ctx context.Context, orderID int64) (*orders.Order, int, error) {
	return s.deps.Orders.Complete(ctx, orderID)
}

// CancelOrder отменяет заказ.
func (s *Service) CancelOrder(ctx context.Context, orderID int64) (*orders.Order, error) {
	return s.deps.Orders.Cancel(ctx, orderID)
}

// SetBanned банит или разбанивает пользователя. Себя забанить нельзя.
func (s *Service) SetBanned(ctx context.Context, adminID, userID int64, banned bool) error {
	if adminID == userID || s.IsAdmin(userID) {
		return fmt.Errorf("%w: нельзя забанить администратора", common.ErrValidation)
	}
	return s.deps.Members.SetBanned(ctx, userID, banned)
}
