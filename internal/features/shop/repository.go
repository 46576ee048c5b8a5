// Package shop — repository.go выполняет все операции с таблицами
// shop_items, user_inventory и item_purchases.
// Покупка — одна транзакция БД: списание, инвентарь, счётчик, журнал.
package shop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
)

// Repository предоставляет методы для работы с магазином.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий магазина.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateItem добавляет предмет в каталог и возвращает его ID.
func (r *Repository) CreateItem(ctx context.Context, item *Item) (int64, error) {
	query := `
		INSERT INTO shop_items (guild_id, name, description, price, item_type, role_id, duration_seconds, max_purchases)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING item_id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		item.GuildID, item.Name, item.Description, item.Price,
		item.ItemType, item.RoleID, item.Duration, item.MaxPurchases,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания предмета: %w", err)
	}
	return id, nil
}

// GetItem возвращает предмет каталога по ID.
func (r *Repository) GetItem(ctx context.Context, guildID, itemID int64) (*Item, error) {
	query := `
		SELECT item_id, guild_id, name, description, price, item_type, role_id, duration_seconds, max_purchases, created_at
		FROM shop_items
		WHERE guild_id = $1 AND item_id = $2
	`
	var i Item
	err := r.db.QueryRow(ctx, query, guildID, itemID).Scan(
		&i.ItemID, &i.GuildID, &i.Name, &i.Description, &i.Price,
		&i.ItemType, &i.RoleID, &i.Duration, &i.MaxPurchases, &i.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrItemNotFound
		}
		return nil, fmt.Errorf("ошибка получения предмета: %w", err)
	}
	return &i, nil
}

// DeleteItem удаляет предмет из каталога.
// Инвентари и предложения площадки НЕ трогаем: записи с удалённым
// предметом показываются как «предмет недоступен».
func (r *Repository) DeleteItem(ctx context.Context, guildID, itemID int64) error {
	ct, err := r.db.Exec(ctx,
		`DELETE FROM shop_items WHERE guild_id = $1 AND item_id = $2`, guildID, itemID)
	if err != nil {
		return fmt.Errorf("ошибка удаления предмета: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return common.ErrItemNotFound
	}
	return nil
}

// ListItems возвращает каталог сервера по возрастанию цены.
func (r *Repository) ListItems(ctx context.Context, guildID int64) ([]*Item, error) {
	query := `
		SELECT item_id, guild_id, name, description, price, item_type, role_id, duration_seconds, max_purchases, created_at
		FROM shop_items
		WHERE guild_id = $1
		ORDER BY price ASC
	`
	rows, err := r.db.Query(ctx, query, guildID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения каталога: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		var i Item
		err := rows.Scan(
			&i.ItemID, &i.GuildID, &i.Name, &i.Description, &i.Price,
			&i.ItemType, &i.RoleID, &i.Duration, &i.MaxPurchases, &i.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования предмета: %w", err)
		}
		items = append(items, &i)
	}
	return items, rows.Err()
}

// Purchase выполняет покупку предмета ОДНОЙ транзакцией БД:
//  1. Блокируем счёт покупателя (FOR UPDATE) и проверяем баланс
//  2. Проверяем лимит покупок по счётчику (не по наличию в инвентаре!)
//  3. Списываем цену
//  4. Создаём/заменяем запись инвентаря со свежим сроком действия
//  5. Увеличиваем счётчик покупок
//  6. Пишем транзакцию shop_purchase (монеты уходят из оборота)
//
// Проигравший конкурентную гонку видит состояние после чужого коммита
// и падает на своей проверке (баланс или лимит).
func (r *Repository) Purchase(ctx context.Context, guildID, userID int64, item *Item) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем счёт покупателя
	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM accounts WHERE guild_id = $1 AND user_id = $2 FOR UPDATE
	`, guildID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrUserNotFound
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}

	// Лимит покупок: сравниваем со счётчиком под блокировкой,
	// чтобы два параллельных Purchase не проскочили вдвоём
	if item.MaxPurchases != -1 {
		var count int
		err = tx.QueryRow(ctx, `
			SELECT purchase_count FROM item_purchases
			WHERE guild_id = $1 AND user_id = $2 AND item_id = $3
			FOR UPDATE
		`, guildID, userID, item.ItemID).Scan(&count)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("ошибка получения счётчика покупок: %w", err)
		}
		if count >= item.MaxPurchases {
			return 0, common.ErrPurchaseLimitReached
		}
	}

	if balance < item.Price {
		return 0, common.ErrInsufficientBalance
	}

	// Списываем цену
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID, item.Price)
	if err != nil {
		return 0, fmt.Errorf("ошибка списания: %w", err)
	}

	// Повторная покупка заменяет запись инвентаря со свежим сроком
	now := time.Now().UTC()
	var expiresAt *time.Time
	if !item.Perpetual() {
		t := now.Add(time.Duration(item.Duration) * time.Second)
		expiresAt = &t
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_inventory (guild_id, user_id, item_id, purchased_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (guild_id, user_id, item_id) DO UPDATE
		SET purchased_at = EXCLUDED.purchased_at,
		    expires_at = EXCLUDED.expires_at
	`, guildID, userID, item.ItemID, now, expiresAt)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи инвентаря: %w", err)
	}

	// Счётчик растёт при КАЖДОЙ покупке, даже если запись инвентаря заменена
	_, err = tx.Exec(ctx, `
		INSERT INTO item_purchases (guild_id, user_id, item_id, purchase_count)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (guild_id, user_id, item_id) DO UPDATE
		SET purchase_count = item_purchases.purchase_count + 1
	`, guildID, userID, item.ItemID)
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления счётчика покупок: %w", err)
	}

	// Монеты уходят из оборота: получателя нет
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (guild_id, from_user_id, item_id, amount, transaction_type)
		VALUES ($1, $2, $3, $4, $5)
	`, guildID, userID, item.ItemID, item.Price, economy.TxTypeShopPurchase)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации покупки: %w", err)
	}
	return balance - item.Price, nil
}

// PurchaseCount возвращает, сколько раз участник покупал предмет.
func (r *Repository) PurchaseCount(ctx context.Context, guildID, userID, itemID int64) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT purchase_count FROM item_purchases
		WHERE guild_id = $1 AND user_id = $2 AND item_id = $3
	`, guildID, userID, itemID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения счётчика покупок: %w", err)
	}
	return count, nil
}

// Inventory возвращает инвентарь участника вместе с данными каталога.
// LEFT JOIN: для удалённых предметов Item == nil («предмет недоступен»).
func (r *Repository) Inventory(ctx context.Context, guildID, userID int64) ([]*InventoryItem, error) {
	query := `
		SELECT ui.guild_id, ui.user_id, ui.item_id, ui.purchased_at, ui.expires_at,
		       si.item_id, si.guild_id, si.name, si.description, si.price,
		       si.item_type, si.role_id, si.duration_seconds, si.max_purchases, si.created_at
		FROM user_inventory ui
		LEFT JOIN shop_items si ON si.guild_id = ui.guild_id AND si.item_id = ui.item_id
		WHERE ui.guild_id = $1 AND ui.user_id = $2
		ORDER BY ui.purchased_at DESC
	`
	rows, err := r.db.Query(ctx, query, guildID, userID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения инвентаря: %w", err)
	}
	defer rows.Close()

	var result []*InventoryItem
	for rows.Next() {
		var entry InventoryEntry
		var itemID, itemGuildID *int64
		var name, description, itemType *string
		var price, duration *int64
		var roleID *int64
		var maxPurchases *int
		var createdAt *time.Time

		err := rows.Scan(
			&entry.GuildID, &entry.UserID, &entry.ItemID, &entry.PurchasedAt, &entry.ExpiresAt,
			&itemID, &itemGuildID, &name, &description, &price,
			&itemType, &roleID, &duration, &maxPurchases, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования инвентаря: %w", err)
		}

		inv := &InventoryItem{Entry: entry}
		if itemID != nil {
			inv.Item = &Item{
				ItemID:       *itemID,
				GuildID:      *itemGuildID,
				Name:         *name,
				Description:  *description,
				Price:        *price,
				ItemType:     *itemType,
				RoleID:       roleID,
				Duration:     *duration,
				MaxPurchases: *maxPurchases,
				CreatedAt:    *createdAt,
			}
		}
		result = append(result, inv)
	}
	return result, rows.Err()
}

// HasInventoryItem проверяет, держит ли участник предмет в инвентаре.
func (r *Repository) HasInventoryItem(ctx context.Context, guildID, userID, itemID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM user_inventory
			WHERE guild_id = $1 AND user_id = $2 AND item_id = $3
		)
	`, guildID, userID, itemID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки инвентаря: %w", err)
	}
	return exists, nil
}

// RemoveInventoryItem безусловно удаляет запись инвентаря (админ-операция).
func (r *Repository) RemoveInventoryItem(ctx context.Context, guildID, userID, itemID int64) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM user_inventory
		WHERE guild_id = $1 AND user_id = $2 AND item_id = $3
	`, guildID, userID, itemID)
	if err != nil {
		return fmt.Errorf("ошибка удаления из инвентаря: %w", err)
	}
	return nil
}

// ExpiredEntries возвращает все записи инвентаря (по всем серверам),
// чей срок действия истёк к моменту now.
func (r *Repository) ExpiredEntries(ctx context.Context, now time.Time) ([]*InventoryEntry, error) {
	query := `
		SELECT guild_id, user_id, item_id, purchased_at, expires_at
		FROM user_inventory
		WHERE expires_at IS NOT NULL AND expires_at <= $1
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка выборки просроченных предметов: %w", err)
	}
	defer rows.Close()

	var entries []*InventoryEntry
	for rows.Next() {
		var e InventoryEntry
		if err := rows.Scan(&e.GuildID, &e.UserID, &e.ItemID, &e.PurchasedAt, &e.ExpiresAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// RemoveExpiredEntry удаляет просроченную запись инвентаря с перепроверкой срока.
// Между выборкой и удалением участник мог купить предмет заново —
// тогда у строки свежий expires_at (или NULL) и удалять её нельзя.
// Возвращает true, если строка действительно удалена.
func (r *Repository) RemoveExpiredEntry(ctx context.Context, entry *InventoryEntry, now time.Time) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		DELETE FROM user_inventory
		WHERE guild_id = $1 AND user_id = $2 AND item_id = $3
		  AND expires_at IS NOT NULL AND expires_at <= $4
	`, entry.GuildID, entry.UserID, entry.ItemID, now)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления просроченной записи: %w", err)
	}
	return ct.RowsAffected() > 0, nil
}
