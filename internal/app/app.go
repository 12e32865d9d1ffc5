// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы, обработчики,
// фильтры и собирает всё в один объект Bot.
package app

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/bot"
	"serotonyl.ru/storefront-bot/internal/bot/filters"
	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/config"
	"serotonyl.ru/storefront-bot/internal/db/postgres"
	"serotonyl.ru/storefront-bot/internal/features/admin"
	"serotonyl.ru/storefront-bot/internal/features/cart"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/members"
	"serotonyl.ru/storefront-bot/internal/features/orders"
	"serotonyl.ru/storefront-bot/internal/features/reconcile"
	"serotonyl.ru/storefront-bot/internal/features/referral"
	"serotonyl.ru/storefront-bot/internal/jobs"
	"serotonyl.ru/storefront-bot/internal/server"
)

// App содержит все компоненты приложения.
type App struct {
	Bot       *bot.Bot
	Scheduler *jobs.Scheduler
	Ops       *server.Server // nil, если OPS_ENABLED=false
	DB        *pgxpool.Pool
	BotAPI    *tgbotapi.BotAPI
}

// Ledger — журнал и проектор поверх одного пула.
type Ledger struct {
	Repo      *ledger.Repository
	Projector *ledger.Projector
	Service   *ledger.Service
}

// NewLedger собирает журнал. Общие блокировки профилей делят сервис и проектор.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	repo := ledger.NewRepository(pool)
	projector := ledger.NewProjector(repo, common.NewKeyedMutex(0))
	return &Ledger{
		Repo:      repo,
		Projector: projector,
		Service:   ledger.NewService(repo, projector),
	}
}

// NewReconciler собирает сервис сверки (используется ботом и ledgerctl).
func NewReconciler(pool *pgxpool.Pool, l *Ledger) *reconcile.Service {
	return reconcile.NewService(reconcile.NewRepository(pool), l.Projector)
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if err := postgres.RunMigrations(ctx, pool, Migrations); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Telegram Bot API ===
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка создания Telegram API: %w", err)
	}
	botAPI.Debug = cfg.AppEnv == "development"
	log.Infof("Авторизован как @%s", botAPI.Self.UserName)

	notifier := bot.NewNotifier(botAPI)

	// === 3. Репозитории и сервисы ===
	memberService := members.NewService(members.NewRepository(pool))
	ledgerParts := NewLedger(pool)

	referralRepo := referral.NewRepository(pool)
	codes := referral.NewCodeGenerator(referralRepo, cfg.ReferralCodeLength, cfg.ReferralCodeAttempts)
	program, err := referral.ParseProgram(cfg.ReferralDefaultProgram)
	if err != nil {
		pool.Close()
		return nil, err
	}
	referralService := referral.NewService(referralRepo, ledgerParts.Service, memberService, notifier, codes, referral.Options{
		JoinBonus:      cfg.ReferralJoinBonus,
		DefaultProgram: program,
		CurrencySymbol: cfg.CurrencyPrimary,
		BotUsername:    botAPI.Self.UserName,
		CommissionsOn:  cfg.FeatureCommissionsEnabled,
	})

	cartService := cart.NewService(cart.NewRepository(pool), cfg.CurrencyRate)
	orderService := orders.NewService(orders.NewRepository(pool), referralService, notifier, cfg.AdminIDs, cfg.CurrencyPrimary)
	reconcileService := NewReconciler(pool, ledgerParts)

	adminService := admin.NewService(admin.NewRepository(pool), admin.Deps{
		Profiles:   referralService,
		Ledger:     ledgerParts.Service,
		Reconciler: reconcileService,
		Orders:     orderService,
		Members:    memberService,
	}, cfg)

	// === 4. Обработчики ===
	handlers := bot.Handlers{
		Referral: referral.NewHandler(referralService, botAPI, cfg.CurrencyPrimary),
		Cart:     cart.NewHandler(cartService, botAPI, cfg.CurrencyPrimary, cfg.CurrencySecondary),
		Orders:   orders.NewHandler(orderService, botAPI, cfg.CurrencyPrimary),
		Admin:    admin.NewHandler(adminService, botAPI, cfg.CurrencyPrimary),
	}

	// === 5. Фильтры и бот ===
	chatFilter := filters.NewChatFilter(memberService)
	b := bot.New(botAPI, cfg, memberService, handlers, chatFilter)

	// === 6. Планировщик задач ===
	scheduler := jobs.NewScheduler(reconcileService, cfg.ReconcileCron, cfg.AppTimezone, cfg.ReconcileAutoFix,
		func(text string) { notifier.Broadcast(ctx, cfg.AdminIDs, text) })

	// === 7. Ops-сервер ===
	var ops *server.Server
	if cfg.OpsEnabled {
		ops = server.New(cfg.OpsAddr, pool, cfg.AppEnv != "development")
	}

	return &App{
		Bot:       b,
		Scheduler: scheduler,
		Ops:       ops,
		DB:        pool,
		BotAPI:    botAPI,
	}, nil
}
