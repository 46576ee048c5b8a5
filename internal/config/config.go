// Package config загружает конфигурацию бота из переменных окружения.
// Используется envconfig для маппинга переменных окружения на поля структуры.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config содержит ВСЕ настройки приложения.
type Config struct {
	// --- Discord ---
	DiscordBotToken string `envconfig:"DISCORD_BOT_TOKEN" required:"true"`
	// Глобальные администраторы бота (через запятую), поверх прав сервера
	AdminIDsRaw string  `envconfig:"ADMIN_IDS" default:""`
	AdminIDs    []int64 `envconfig:"-"` // заполним вручную

	// --- Database ---
	// В Docker внутри контейнера "localhost" почти всегда неправильно.
	// Дефолт ставим "postgres" (имя сервиса в docker-compose), а для локалки переопределяй DB_HOST=localhost.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"botuser"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"discord_bot"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv      string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppTimezone string `envconfig:"APP_TIMEZONE" default:"Europe/Moscow"`

	// --- Admin ---
	AdminPasswordHash string `envconfig:"ADMIN_PASSWORD_HASH" required:"true"`

	// --- Economy ---
	EconomyStartingBalance int64  `envconfig:"ECONOMY_STARTING_BALANCE" default:"0"`
	EconomyCurrencyName    string `envconfig:"ECONOMY_CURRENCY_NAME" default:"монеты"`
	EconomyHistoryLimit    int    `envconfig:"ECONOMY_HISTORY_LIMIT" default:"10"`
	EconomyTopLimit        int    `envconfig:"ECONOMY_TOP_LIMIT" default:"10"`

	// --- Work ---
	// Награда за работу выбирается случайно из [min, max]
	EconomyWorkRewardMin int64         `envconfig:"ECONOMY_WORK_REWARD_MIN" default:"10"`
	EconomyWorkRewardMax int64         `envconfig:"ECONOMY_WORK_REWARD_MAX" default:"50"`
	EconomyWorkCooldown  time.Duration `envconfig:"ECONOMY_WORK_COOLDOWN" default:"1h"`

	// --- Casino ---
	CasinoMinBet int64 `envconfig:"CASINO_MIN_BET" default:"10"`
	CasinoMaxBet int64 `envconfig:"CASINO_MAX_BET" default:"100"`

	// --- Shop ---
	// Как часто снимаем просроченные предметы из инвентарей
	ShopSweepInterval time.Duration `envconfig:"SHOP_SWEEP_INTERVAL" default:"5m"`

	// --- Giveaway ---
	// Как часто проверяем, не пора ли разыграть призы
	GiveawayPollInterval time.Duration `envconfig:"GIVEAWAY_POLL_INTERVAL" default:"30s"`
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате DSN.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

func (c *Config) Validate() error {
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("некорректные DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.ShopSweepInterval < time.Second {
		return fmt.Errorf("SHOP_SWEEP_INTERVAL должен быть не меньше секунды")
	}
	if c.GiveawayPollInterval < time.Second {
		return fmt.Errorf("GIVEAWAY_POLL_INTERVAL должен быть не меньше секунды")
	}
	if c.EconomyStartingBalance < 0 {
		return fmt.Errorf("ECONOMY_STARTING_BALANCE не может быть отрицательным")
	}
	if c.EconomyWorkRewardMin < 1 || c.EconomyWorkRewardMax < c.EconomyWorkRewardMin {
		return fmt.Errorf("некорректные ECONOMY_WORK_REWARD_MIN/ECONOMY_WORK_REWARD_MAX")
	}
	if c.EconomyWorkCooldown < time.Second {
		return fmt.Errorf("ECONOMY_WORK_COOLDOWN должен быть не меньше секунды")
	}
	if c.CasinoMinBet < 1 || c.CasinoMaxBet < c.CasinoMinBet {
		return fmt.Errorf("некорректные CASINO_MIN_BET/CASINO_MAX_BET")
	}
	return nil
}

// Load читает переменные окружения и заполняет структуру Config.
func Load() (*Config, error) {
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
