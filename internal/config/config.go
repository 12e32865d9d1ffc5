// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры,
// локальный .env подхватывается через godotenv.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

// Database — параметры подключения к PostgreSQL.
// Вынесены отдельно, чтобы ledgerctl мог работать без токена бота.
type Database struct {
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"storefront_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`
}

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Telegram ---
	AdminIDsRaw      string  `envconfig:"ADMIN_IDS" required:"true"`
	AdminIDs         []int64 `envconfig:"-"` // заполним вручную
	TelegramBotToken string  `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`

	// --- Database ---
	Database

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Bot runtime ---
	// Сколько апдейтов обрабатываем параллельно. Иначе "go на каждый апдейт" = утечка памяти при флуде.
	BotMaxInflight int `envconfig:"BOT_MAX_INFLIGHT" default:"64"`
	// Таймаут long polling (секунды)
	BotUpdateTimeoutSeconds int `envconfig:"BOT_UPDATE_TIMEOUT_SECONDS" default:"60"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Referral program ---
	ReferralJoinBonus      decimal.Decimal `envconfig:"REFERRAL_JOIN_BONUS" default:"3"`
	ReferralCodeLength     int             `envconfig:"REFERRAL_CODE_LENGTH" default:"8"`
	ReferralCodeAttempts   int             `envconfig:"REFERRAL_CODE_MAX_ATTEMPTS" default:"20"`
	ReferralDefaultProgram string          `envconfig:"REFERRAL_DEFAULT_PROGRAM" default:"DIRECT"`

	// --- Currency ---
	// Цены хранятся в основной валюте, вторая считается умножением на курс.
	CurrencyPrimary   string          `envconfig:"CURRENCY_PRIMARY" default:"$"`
	CurrencySecondary string          `envconfig:"CURRENCY_SECONDARY" default:"₽"`
	CurrencyRate      decimal.Decimal `envconfig:"CURRENCY_RATE" default:"90"`

	// --- Reconciliation ---
	ReconcileCron    string `envconfig:"RECONCILE_CRON" default:"0 4 * * *"`
	ReconcileAutoFix bool   `envconfig:"RECONCILE_AUTO_FIX" default:"true"`

	// --- Ops server ---
	OpsEnabled bool   `envconfig:"OPS_ENABLED" default:"true"`
	OpsAddr    string `envconfig:"OPS_ADDR" default:":9090"`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"20"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureCommissionsEnabled bool `envconfig:"FEATURE_COMMISSIONS_ENABLED" default:"true"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (d *Database) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.DBUser, d.DBPassword, d.DBHost, d.DBPort, d.DBName, d.DBSSLMode,
	)
}

// Validate проверяет параметры подключения.
func (d *Database) Validate() error {
	if d.DBMaxConns <= 0 || d.DBMinConns < 0 || d.DBMinConns > d.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	return nil
}

func (c *Config) Validate() error {
	if c.BotMaxInflight <= 0 {
		return fmt.Errorf("BOT_MAX_INFLIGHT должен быть > 0")
	}
	if c.BotUpdateTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_UPDATE_TIMEOUT_SECONDS должен быть > 0")
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if !c.ReferralJoinBonus.IsPositive() {
		return fmt.Errorf("REFERRAL_JOIN_BONUS должен быть > 0")
	}
	if c.ReferralCodeLength < 6 || c.ReferralCodeLength > 12 {
		return fmt.Errorf("REFERRAL_CODE_LENGTH должен быть в диапазоне 6..12")
	}
	if c.ReferralCodeAttempts < 1 {
		return fmt.Errorf("REFERRAL_CODE_MAX_ATTEMPTS должен быть >= 1")
	}
	switch c.ReferralDefaultProgram {
	case "DIRECT", "MULTI_LEVEL":
	default:
		return fmt.Errorf("REFERRAL_DEFAULT_PROGRAM: неизвестная программа %q", c.ReferralDefaultProgram)
	}
	if !c.CurrencyRate.IsPositive() {
		return fmt.Errorf("CURRENCY_RATE должен быть > 0")
	}
	return nil
}

// IsAdmin проверяет, входит ли пользователь в ADMIN_IDS.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
	loadDotEnv()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("не удалось загрузить конфигурацию: %w", err)
	}

	ids, err := parseInt64CSV(cfg.AdminIDsRaw)
	if err != nil {
		return nil, fmt.Errorf("ADMIN_IDS parse: %w", err)
	}
	cfg.AdminIDs = ids

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDatabase читает только параметры БД (для ledgerctl).
func LoadDatabase() (*Database, error) {
	loadDotEnv()

	var db Database
	if err := envconfig.Process("", &db); err != nil {
		return nil, fmt.Errorf("не удалось загрузить параметры БД: %w", err)
	}
	if err := db.Validate(); err != nil {
		return nil, err
	}
	return &db, nil
}

// loadDotEnv подхватывает .env, если он есть. Отсутствие файла — норма для Docker.
func loadDotEnv() {
	_ = godotenv.Load()
}

func parseInt64CSV(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad int64 %q: %w", p, err)
		}
		out = append(out, v)
	}
	return out, nil
}
