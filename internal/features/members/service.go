// Package members — service.go содержит бизнес-логику справочника пользователей.
package members

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
)

// Store — операции хранилища, нужные сервису.
type Store interface {
	Upsert(ctx context.Context, id Identity) (*Member, error)
	GetByUserID(ctx context.Context, userID int64) (*Member, error)
	SetBanned(ctx context.Context, userID int64, banned bool) error
}

// Service управляет пользователями бота.
type Service struct {
	repo Store
}

// NewService создаёт новый сервис участников.
func NewService(repo Store) *Service {
	return &Service{repo: repo}
}

// EnsureMember гарантирует, что пользователь есть в базе, и возвращает его запись.
// Повторный вызов обновляет имя и username.
func (s *Service) EnsureMember(ctx context.Context, id Identity) (*Member, error) {
	if id.UserID == 0 {
		return nil, fmt.Errorf("%w: пустой user_id", common.ErrValidation)
	}
	m, err := s.repo.Upsert(ctx, id)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"user_id":  id.UserID,
		"username": id.Username,
	}).Debug("Участник актуализирован")
	return m, nil
}

// GetByUserID возвращает участника по его Telegram user ID.
func (s *Service) GetByUserID(ctx context.Context, userID int64) (*Member, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// IsBanned проверяет бан. Неизвестный пользователь не забанен.
func (s *Service) IsBanned(ctx context.Context, userID int64) (bool, error) {
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return m.IsBanned, nil
}

// SetBanned включает или снимает бан. Забаненных бот игнорирует.
func (s *Service) SetBanned(ctx context.Context, userID int64, banned bool) error {
	if _, err := s.repo.GetByUserID(ctx, userID); err != nil {
		return err
	}
	if err := s.repo.SetBanned(ctx, userID, banned); err != nil {
		return err
	}
	log.WithFields(log.Fields{"user_id": userID, "banned": banned}).Info("Бан обновлён")
	return nil
}
