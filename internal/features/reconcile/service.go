// Package reconcile — service.go: прогон сверки.
package reconcile

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/metrics"
)

// Store — запросы сверки.
type Store interface {
	DeleteDuplicateEdges(ctx context.Context) ([]int64, error)
	DeleteDuplicateTransactions(ctx context.Context) ([]int64, error)
	Drifts(ctx context.Context) ([]Drift, error)
	ProfileIDs(ctx context.Context) ([]int64, error)
	ProfileIDByUser(ctx context.Context, userID int64) (int64, error)
}

// Projector пересчитывает баланс профиля (ledger.Projector).
type Projector interface {
	Project(ctx context.Context, profileID int64) (decimal.Decimal, error)
}

// Service — сверка журнала.
type Service struct {
	store     Store
	projector Projector
}

// NewService создаёт сервис сверки.
func NewService(store Store, projector Projector) *Service {
	return &Service{store: store, projector: projector}
}

// Dedupe удаляет дубли связей и операций и сразу пересчитывает
// балансы затронутых профилей.
func (s *Service) Dedupe(ctx context.Context) (*Report, error) {
	rep := &Report{}

	owners, err := s.store.DeleteDuplicateEdges(ctx)
	if err != nil {
		return nil, err
	}
	rep.EdgesRemoved = len(owners)

	touched, err := s.store.DeleteDuplicateTransactions(ctx)
	if err != nil {
		return nil, err
	}
	rep.TransactionsRemoved = len(touched)

	for _, id := range uniqueSorted(touched) {
		if _, err := s.projector.Project(ctx, id); err != nil {
			return rep, fmt.Errorf("пересчёт профиля %d после удаления дублей: %w", id, err)
		}
		rep.Reprojected = append(rep.Reprojected, id)
	}

	log.WithFields(log.Fields{
		"edges_removed":        rep.EdgesRemoved,
		"transactions_removed": rep.TransactionsRemoved,
		"reprojected":          len(rep.Reprojected),
	}).Info("Дубли удалены")
	return rep, nil
}

// Verify ищет расхождения баланса с журналом. Ничего не меняет.
func (s *Service) Verify(ctx context.Context) ([]Drift, error) {
	drifts, err := s.store.Drifts(ctx)
	if err != nil {
		return nil, err
	}
	if len(drifts) > 0 {
		metrics.ReconcileDriftsTotal.Add(float64(len(drifts)))
		for _, d := range drifts {
			log.WithFields(log.Fields{
				"profile_id": d.ProfileID,
				"stored":     d.Stored.StringFixed(2),
				"ledger":     d.Ledger.StringFixed(2),
			}).Warn("Баланс расходится с журналом")
		}
	}
	return drifts, nil
}

// Fix пересчитывает профили с расхождениями. Возвращает число исправленных.
func (s *Service) Fix(ctx context.Context, drifts []Drift) (int, error) {
	fixed := 0
	for _, d := range drifts {
		if _, err := s.projector.Project(ctx, d.ProfileID); err != nil {
			return fixed, fmt.Errorf("пересчёт профиля %d: %w", d.ProfileID, err)
		}
		fixed++
	}
	return fixed, nil
}

// Run — полная сверка: дубли, поиск расхождений, исправление.
func (s *Service) Run(ctx context.Context) (*Report, error) {
	rep, err := s.Dedupe(ctx)
	if err != nil {
		return rep, err
	}
	rep.Drifts, err = s.Verify(ctx)
	if err != nil {
		return rep, err
	}
	rep.Fixed, err = s.Fix(ctx, rep.Drifts)
	return rep, err
}

// ProjectAll пересчитывает все профили.
func (s *Service) ProjectAll(ctx context.Context) (int, error) {
	ids, err := s.store.ProfileIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		if _, err := s.projector.Project(ctx, id); err != nil {
			return i, fmt.Errorf("пересчёт профиля %d: %w", id, err)
		}
	}
	return len(ids), nil
}

// ProjectUser пересчитывает профиль пользователя.
func (s *Service) ProjectUser(ctx context.Context, userID int64) (decimal.Decimal, error) {
	id, err := s.store.ProfileIDByUser(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.projector.Project(ctx, id)
}

func uniqueSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
