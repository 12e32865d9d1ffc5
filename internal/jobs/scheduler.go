// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает ночную сверку балансов с журналом.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/features/reconcile"
)

// Reconciler — то, что нужно задаче сверки (reconcile.Service).
type Reconciler interface {
	Verify(ctx context.Context) ([]reconcile.Drift, error)
	Fix(ctx context.Context, drifts []reconcile.Drift) (int, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	spec       string
	autoFix    bool
	sendFunc   func(text string) // Сообщение администраторам
}

// NewScheduler создаёт планировщик в часовом поясе tz (по умолчанию Europe/Moscow).
func NewScheduler(reconciler Reconciler, spec, tz string, autoFix bool, sendFunc func(text string)) *Scheduler {
	if tz == "" {
		tz = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.WithError(err).Warnf("Не удалось загрузить %s, используем UTC+3", tz)
		loc = time.FixedZone("MSK", 3*60*60)
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		reconciler: reconciler,
		spec:       spec,
		autoFix:    autoFix,
		sendFunc:   sendFunc,
	}
}

// Start регистрирует задачи и запускает планировщик.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.spec, func() { s.RunReconcile(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание сверки %q: %w", s.spec, err)
	}
	s.cron.Start()
	log.WithField("spec", s.spec).Info("Планировщик задач запущен")
	return nil
}

// RunReconcile — одна итерация ночной сверки: поиск расхождений
// и, если включено, пересчёт затронутых профилей.
func (s *Scheduler) RunReconcile(ctx context.Context) {
	log.Info("[CRON] Сверка балансов")
	drifts, err := s.reconciler.Verify(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сверки")
		return
	}
	if len(drifts) == 0 {
		log.Info("[CRON] Расхождений нет")
		return
	}

	if !s.autoFix {
		s.notify(fmt.Sprintf("⚠️ Ночная сверка: расхождений %d. Запустите /reconcile", len(drifts)))
		return
	}
	fixed, err := s.reconciler.Fix(ctx, drifts)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка пересчёта")
	}
	s.notify(fmt.Sprintf("🧹 Ночная сверка: расхождений %d, исправлено %d", len(drifts), fixed))
}

func (s *Scheduler) notify(text string) {
	if s.sendFunc != nil {
		s.sendFunc(text)
	}
}

// Stop останавливает планировщик и ждёт завершения задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
