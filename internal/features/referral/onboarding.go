package referral

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/members"
	"serotonyl.ru/storefront-bot/internal/metrics"
)

// JoinRef — ключ идемпотентности бонуса за приглашение.
func JoinRef(ownerProfileID, userID int64) string {
	return fmt.Sprintf("referral:%d:%d", ownerProfileID, userID)
}

// Onboard обрабатывает переход нового пользователя по реферальной ссылке:
// код → пользователь → связь первого уровня (и верхние уровни) → бонус → уведомление.
// Повторный вызов с теми же аргументами не создаёт вторую связь и второй бонус.
func (s *Service) Onboard(ctx context.Context, rawCode string, newUser members.Identity) OnboardResult {
	res := s.onboard(ctx, rawCode, newUser)
	metrics.ReferralOnboardingTotal.WithLabelValues(string(res.Status)).Inc()

	entry := log.WithFields(log.Fields{
		"user_id":      newUser.UserID,
		"code":         NormalizeCode(rawCode),
		"status":       res.Status,
		"edge_created": res.EdgeCreated,
		"credited":     res.Credited,
	})
	if res.Err != nil {
		entry.WithError(res.Err).Warn("Онбординг не завершён")
	} else {
		entry.Info("Онбординг обработан")
	}
	return res
}

func (s *Service) onboard(ctx context.Context, rawCode string, newUser members.Identity) OnboardResult {
	owner, err := s.ResolveReferralCode(ctx, rawCode)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return OnboardResult{Status: RejectedInvalidCode}
		}
		return OnboardResult{Status: FailedTransient, Err: err}
	}
	if _, err := s.users.EnsureMember(ctx, newUser); err != nil {
		return OnboardResult{Status: FailedTransient, Owner: owner, Err: err}
	}
	if owner.UserID == newUser.UserID {
		return OnboardResult{Status: RejectedInvalidCode, Owner: owner}
	}

	res := s.linkAndCredit(ctx, owner, newUser.UserID)

	// Уведомляем один раз: вместе с единственным начислением бонуса.
	// Блокировка владельца к этому моменту уже снята.
	if res.Credited {
		s.notifyOwner(ctx, owner, newUser)
	}
	return res
}

// linkAndCredit создаёт связи и начисляет бонус под блокировкой владельца.
func (s *Service) linkAndCredit(ctx context.Context, owner *Summary, userID int64) OnboardResult {
	unlock := s.ownerLocks.Lock(owner.ProfileID)
	defer unlock()

	res := OnboardResult{Status: Completed, Owner: owner}

	edge := &Edge{OwnerProfileID: owner.ProfileID, Level: 1, ReferredUserID: &userID}
	err := s.store.CreateEdge(ctx, edge)
	switch {
	case err == nil:
		res.EdgeCreated = true
	case errors.Is(err, common.ErrConflict):
		existing, findErr := s.store.FindEdge(ctx, owner.ProfileID, userID)
		if findErr != nil && !errors.Is(findErr, common.ErrNotFound) {
			return OnboardResult{Status: FailedTransient, Owner: owner, Err: findErr}
		}
		if findErr != nil || existing.Level != 1 {
			// У пользователя уже есть другой пригласивший: первый побеждает.
			return res
		}
		// Связь уже есть: повторяем только недостающие шаги прошлой попытки.
	default:
		return OnboardResult{Status: FailedTransient, Owner: owner, Err: err}
	}

	if err := s.extendUpline(ctx, owner, userID); err != nil {
		res.Status, res.Err = FailedTransient, err
		return res
	}

	_, err = s.ledger.Append(ctx, owner.ProfileID, s.opts.JoinBonus,
		fmt.Sprintf("Бонус за приглашение пользователя %d", userID), ledger.Credit, JoinRef(owner.ProfileID, userID))
	switch {
	case err == nil:
		res.Credited = true
	case errors.Is(err, common.ErrConflict):
	default:
		res.Status, res.Err = FailedTransient, err
	}
	return res
}

// extendUpline достраивает связи второго и третьего уровня: пригласивший
// пригласившего получает нового пользователя в свою сеть. Бонуса за них нет.
func (s *Service) extendUpline(ctx context.Context, owner *Summary, userID int64) error {
	seen := map[int64]bool{userID: true, owner.UserID: true}
	current := owner.UserID

	for level := 2; level <= MaxLevel; level++ {
		parent, err := s.parentEdge(ctx, current)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		upline, err := s.store.GetProfile(ctx, parent.OwnerProfileID)
		if err != nil {
			return err
		}
		if seen[upline.UserID] {
			log.WithFields(log.Fields{
				"user_id":    userID,
				"profile_id": upline.ID,
			}).Warn("Цикл в графе приглашений, верхние уровни не достраиваются")
			return nil
		}
		seen[upline.UserID] = true

		e := &Edge{OwnerProfileID: upline.ID, Level: level, ReferredUserID: &userID}
		if err := s.store.CreateEdge(ctx, e); err != nil && !errors.Is(err, common.ErrConflict) {
			return err
		}
		current = upline.UserID
	}
	return nil
}

// parentEdge возвращает связь первого уровня, ведущую к пользователю, или nil.
func (s *Service) parentEdge(ctx context.Context, userID int64) (*Edge, error) {
	edges, err := s.store.InboundEdges(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if e.Level == 1 {
			return e, nil
		}
	}
	return nil, nil
}

func (s *Service) notifyOwner(ctx context.Context, owner *Summary, newUser members.Identity) {
	if s.notifier == nil {
		return
	}
	text := fmt.Sprintf("🎉 По вашей ссылке присоединился %s!\nНачислено: %s",
		newUser.DisplayName(), common.FormatMoney(s.opts.JoinBonus, s.opts.CurrencySymbol))
	if err := s.notifier.Notify(ctx, owner.UserID, text); err != nil {
		log.WithError(err).WithField("user_id", owner.UserID).Warn("Не удалось уведомить пригласившего")
	}
}
