// Package app инициализирует все компоненты приложения.
// app.go — точка сборки: создаёт БД-пул, репозитории, сервисы,
// коллабораторов платформы и планировщик фоновых задач.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"svetogorskrp.ru/discord-bot/internal/config"
	"svetogorskrp.ru/discord-bot/internal/db/postgres"
	"svetogorskrp.ru/discord-bot/internal/features/casino"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
	"svetogorskrp.ru/discord-bot/internal/features/giveaway"
	"svetogorskrp.ru/discord-bot/internal/features/market"
	"svetogorskrp.ru/discord-bot/internal/features/shop"
	"svetogorskrp.ru/discord-bot/internal/jobs"
	"svetogorskrp.ru/discord-bot/internal/platform"
)

// App содержит все компоненты приложения.
type App struct {
	Economy   *economy.Service
	Shop      *shop.Service
	Market    *market.Service
	Casino    *casino.Service
	Giveaway  *giveaway.Service
	Resolver  *platform.ConfigResolver
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен — компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	// Запускаем миграции
	if err := runMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("ошибка миграций: %w", err)
	}

	// === 2. Коллабораторы платформы ===
	// Выдача ролей и уведомления подключаются адаптером Discord-шлюза;
	// до его инициализации работают логирующие заглушки.
	resolver := platform.NewConfigResolver(cfg.AdminIDs, cfg.AdminPasswordHash)
	directory := platform.LogDirectory{}
	notifier := platform.LogNotifier{}

	// === 3. Репозитории ===
	economyRepo := economy.NewRepository(pool, cfg.EconomyStartingBalance)
	shopRepo := shop.NewRepository(pool)
	marketRepo := market.NewRepository(pool)
	casinoRepo := casino.NewRepository(pool)
	giveawayRepo := giveaway.NewRepository(pool)

	// === 4. Сервисы ===
	economyService := economy.NewService(economyRepo, economy.WorkConfig{
		RewardMin: cfg.EconomyWorkRewardMin,
		RewardMax: cfg.EconomyWorkRewardMax,
		Cooldown:  cfg.EconomyWorkCooldown,
	})
	shopService := shop.NewService(shopRepo, economyService, directory, notifier)
	marketService := market.NewService(marketRepo, shopService, economyService, resolver)
	casinoService := casino.NewService(casinoRepo, economyService, cfg.CasinoMinBet, cfg.CasinoMaxBet)
	giveawayService := giveaway.NewService(giveawayRepo, notifier)

	// === 5. Планировщик фоновых задач ===
	scheduler := jobs.NewScheduler(shopService, giveawayService, cfg.ShopSweepInterval, cfg.GiveawayPollInterval)

	return &App{
		Economy:   economyService,
		Shop:      shopService,
		Market:    marketService,
		Casino:    casinoService,
		Giveaway:  giveawayService,
		Resolver:  resolver,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}

// runMigrations выполняет все SQL-миграции.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	// Инициализируем систему миграций
	if err := postgres.InitMigrations(ctx, pool); err != nil {
		return err
	}

	// Выполняем миграции по порядку
	migrations := []struct {
		version int
		sql     string
	}{
		{1, migration001Accounts},
		{2, migration002Shop},
		{3, migration003Marketplace},
		{4, migration004Giveaways},
		{5, migration005WorkCasino},
	}

	for _, m := range migrations {
		if err := postgres.ExecMigrationSQL(ctx, pool, m.version, m.sql); err != nil {
			return fmt.Errorf("миграция %d: %w", m.version, err)
		}
		log.Infof("Миграция %d применена", m.version)
	}

	return nil
}

// SQL-миграции встроены в код для упрощения деплоя.

var migration001Accounts = `
CREATE TABLE IF NOT EXISTS accounts (
    guild_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    balance BIGINT NOT NULL DEFAULT 0,
    xp BIGINT NOT NULL DEFAULT 0,
    level INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (guild_id, user_id)
);
CREATE TABLE IF NOT EXISTS transactions (
    id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    from_user_id BIGINT,
    to_user_id BIGINT,
    item_id BIGINT,
    amount BIGINT NOT NULL,
    transaction_type VARCHAR(50) NOT NULL,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_transactions_guild_from ON transactions(guild_id, from_user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_guild_to ON transactions(guild_id, to_user_id);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC);
`

var migration002Shop = `
CREATE TABLE IF NOT EXISTS shop_items (
    item_id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    price BIGINT NOT NULL,
    item_type VARCHAR(32) NOT NULL,
    role_id BIGINT,
    duration_seconds BIGINT NOT NULL DEFAULT 0,
    max_purchases INTEGER NOT NULL DEFAULT -1,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_shop_items_guild ON shop_items(guild_id);
CREATE TABLE IF NOT EXISTS user_inventory (
    guild_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    item_id BIGINT NOT NULL,
    purchased_at TIMESTAMP NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMP,
    PRIMARY KEY (guild_id, user_id, item_id)
);
CREATE INDEX IF NOT EXISTS idx_user_inventory_expires ON user_inventory(expires_at) WHERE expires_at IS NOT NULL;
CREATE TABLE IF NOT EXISTS item_purchases (
    guild_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    item_id BIGINT NOT NULL,
    purchase_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (guild_id, user_id, item_id)
);
`

var migration003Marketplace = `
CREATE TABLE IF NOT EXISTS marketplace (
    listing_id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    seller_id BIGINT NOT NULL,
    item_id BIGINT NOT NULL,
    price BIGINT NOT NULL,
    status VARCHAR(16) NOT NULL DEFAULT 'active',
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_marketplace_guild_status ON marketplace(guild_id, status);
CREATE INDEX IF NOT EXISTS idx_marketplace_seller ON marketplace(guild_id, seller_id);
`

var migration004Giveaways = `
CREATE TABLE IF NOT EXISTS giveaways (
    giveaway_id BIGSERIAL PRIMARY KEY,
    guild_id BIGINT NOT NULL,
    channel_id BIGINT NOT NULL,
    host_id BIGINT NOT NULL,
    prize TEXT NOT NULL,
    winners_count INTEGER NOT NULL,
    end_at TIMESTAMP NOT NULL,
    ended BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_giveaways_due ON giveaways(end_at) WHERE ended = FALSE;
CREATE TABLE IF NOT EXISTS giveaway_entries (
    giveaway_id BIGINT NOT NULL REFERENCES giveaways(giveaway_id) ON DELETE CASCADE,
    guild_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    entered_at TIMESTAMP NOT NULL DEFAULT NOW(),
    PRIMARY KEY (giveaway_id, user_id)
);
CREATE INDEX IF NOT EXISTS idx_giveaway_entries_guild ON giveaway_entries(guild_id);
`

var migration005WorkCasino = `
CREATE TABLE IF NOT EXISTS cooldowns (
    guild_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    action VARCHAR(32) NOT NULL,
    last_used TIMESTAMP NOT NULL,
    PRIMARY KEY (guild_id, user_id, action)
);
CREATE TABLE IF NOT EXISTS casino_stats (
    guild_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    total_spins INTEGER NOT NULL DEFAULT 0,
    total_wagered BIGINT NOT NULL DEFAULT 0,
    total_won BIGINT NOT NULL DEFAULT 0,
    biggest_win BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    PRIMARY KEY (guild_id, user_id)
);
`
