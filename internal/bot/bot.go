// Package bot содержит главный модуль бота — запуск, остановку и маршрутизацию апдейтов.
// bot.go принимает апдейты через long polling и раздаёт их обработчикам фич.
package bot

import (
	"context"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/storefront-bot/internal/bot/filters"
	"serotonyl.ru/storefront-bot/internal/bot/middleware"
	"serotonyl.ru/storefront-bot/internal/config"
	"serotonyl.ru/storefront-bot/internal/features/admin"
	"serotonyl.ru/storefront-bot/internal/features/cart"
	"serotonyl.ru/storefront-bot/internal/features/members"
	"serotonyl.ru/storefront-bot/internal/features/orders"
	"serotonyl.ru/storefront-bot/internal/features/referral"
)

const helpText = "🛍 Команды магазина:\n\n" +
	"/catalog — каталог товаров\n" +
	"/add <товар> — добавить товар в корзину\n" +
	"/cart — корзина и оформление заказа\n" +
	"/partner — партнёрская программа и ваша ссылка\n" +
	"/help — эта справка"

// Handlers — обработчики фич, которым бот раздаёт апдейты.
type Handlers struct {
	Referral *referral.Handler
	Cart     *cart.Handler
	Orders   *orders.Handler
	Admin    *admin.Handler
}

// Bot — главная структура бота, объединяющая все компоненты.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	chatFilter  *filters.ChatFilter
	rateLimiter *middleware.RateLimiter

	memberService *members.Service
	handlers      Handlers

	parser *CommandParser

	// ограничитель параллелизма обработки апдейтов
	inflight chan struct{}
	wg       sync.WaitGroup
}

// New создаёт новый экземпляр бота со всеми зависимостями.
func New(
	api *tgbotapi.BotAPI,
	cfg *config.Config,
	memberService *members.Service,
	handlers Handlers,
	chatFilter *filters.ChatFilter,
) *Bot {
	maxInFlight := cfg.BotMaxInflight
	if maxInFlight <= 0 {
		maxInFlight = 64
	}

	return &Bot{
		api:           api,
		cfg:           cfg,
		chatFilter:    chatFilter,
		rateLimiter:   middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow),
		memberService: memberService,
		handlers:      handlers,
		parser:        NewCommandParser(),
		inflight:      make(chan struct{}, maxInFlight),
	}
}

// Start запускает polling обновлений от Telegram и блокируется до отмены ctx.
// Перед возвратом дожидается обработки уже принятых апдейтов.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.BotUpdateTimeoutSeconds
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	log.WithFields(log.Fields{
		"max_inflight": cap(b.inflight),
		"timeout_sec":  b.cfg.BotUpdateTimeoutSeconds,
	}).Info("Бот запущен и ожидает сообщения...")

	defer func() {
		b.wg.Wait()
		b.rateLimiter.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Бот останавливается (ctx done)...")
			b.api.StopReceivingUpdates()
			return nil

		case update, ok := <-updates:
			if !ok {
				log.Info("Канал updates закрыт, бот остановлен")
				return nil
			}

			// лимит параллелизма
			select {
			case b.inflight <- struct{}{}:
			case <-ctx.Done():
				continue
			}
			b.wg.Add(1)
			go func(upd tgbotapi.Update) {
				defer func() {
					<-b.inflight
					b.wg.Done()
				}()
				b.handleUpdate(ctx, upd)
			}(update)
		}
	}
}

// handleUpdate обрабатывает одно обновление от Telegram.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	updateID := uuid.NewString()

	switch {
	case update.Message != nil:
		entry := middleware.UpdateLogger(updateID, fromID(update.Message.From))
		defer middleware.RecoverFromPanic(entry)
		b.handleMessage(ctx, entry, update.Message)

	case update.CallbackQuery != nil:
		entry := middleware.UpdateLogger(updateID, fromID(update.CallbackQuery.From))
		defer middleware.RecoverFromPanic(entry)
		b.handleCallback(ctx, entry, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, entry *log.Entry, message *tgbotapi.Message) {
	if message.Text == "" {
		return
	}
	middleware.LogMessage(entry, message)

	if !b.chatFilter.CheckAccess(ctx, message.Chat, message.From) {
		return
	}
	if !b.rateLimiter.Allow(message.From.ID) {
		entry.Debug("rate limited")
		return
	}

	chatID := message.Chat.ID
	identity := identityOf(message.From)

	// EnsureMember — ошибки не прерывают обработку, но должны быть видны в логах
	if _, err := b.memberService.EnsureMember(ctx, identity); err != nil {
		entry.WithError(err).Warn("EnsureMember failed")
	}

	cmd, args, isCommand := b.parser.ParseCommand(message.Text)
	entry.WithFields(log.Fields{
		"isCommand": isCommand,
		"cmd":       cmd,
		"args":      len(args),
	}).Debug("parsed command")

	// Админ-команды и ввод пароля
	if b.handlers.Admin.HandleAdminMessage(ctx, chatID, identity.UserID, message.Text, cmd, args) {
		return
	}

	if isCommand {
		b.routeCommand(ctx, chatID, identity, cmd, args)
	}
}

// routeCommand маршрутизирует команду к нужному обработчику.
func (b *Bot) routeCommand(ctx context.Context, chatID int64, user members.Identity, cmd string, args []string) {
	switch cmd {
	case "start":
		payload := ""
		if len(args) > 0 {
			payload = args[0]
		}
		b.handlers.Referral.HandleStart(ctx, chatID, user, payload)

	case "help":
		b.sendMessage(chatID, helpText)

	case "partner", "ref":
		b.handlers.Referral.HandlePartner(ctx, chatID, user.UserID)

	case "cart":
		b.handlers.Cart.HandleCart(ctx, chatID, user.UserID)

	case "add":
		b.handlers.Cart.HandleAdd(ctx, chatID, user.UserID, args)

	case "catalog":
		b.handlers.Cart.HandleCatalog(ctx, chatID)

	default:
		b.sendMessage(chatID, "Неизвестная команда. /help — список команд")
	}
}

// handleCallback маршрутизирует нажатия inline-кнопок по префиксу callback_data.
func (b *Bot) handleCallback(ctx context.Context, entry *log.Entry, cq *tgbotapi.CallbackQuery) {
	middleware.LogCallback(entry, cq)

	var chat *tgbotapi.Chat
	if cq.Message != nil {
		chat = cq.Message.Chat
	}
	if !b.chatFilter.CheckAccess(ctx, chat, cq.From) {
		return
	}
	if !b.rateLimiter.Allow(cq.From.ID) {
		entry.Debug("rate limited")
		b.answerCallback(cq.ID, "Слишком часто, подождите немного")
		return
	}

	switch {
	case cq.Data == cart.CallbackCheckout:
		b.handlers.Orders.HandleCheckout(ctx, cq)
	case strings.HasPrefix(cq.Data, cart.CallbackPrefix):
		b.handlers.Cart.HandleCallback(ctx, cq)
	case strings.HasPrefix(cq.Data, referral.CallbackPrefix):
		b.handlers.Referral.HandleCallback(ctx, cq)
	default:
		b.answerCallback(cq.ID, "")
	}
}

// sendMessage — утилита для отправки сообщений.
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.WithError(err).WithField("chat_id", chatID).Error("Ошибка отправки сообщения")
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.WithError(err).Debug("Не удалось ответить на callback")
	}
}

func identityOf(u *tgbotapi.User) members.Identity {
	return members.Identity{
		UserID:    u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func fromID(u *tgbotapi.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
