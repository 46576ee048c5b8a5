// Package market — repository.go выполняет все операции с таблицей marketplace.
// Покупка на площадке — одна транзакция БД: смена статуса, перевод монет,
// передача предмета и запись в журнал.
package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
	"svetogorskrp.ru/discord-bot/internal/features/shop"
)

// Repository предоставляет методы для работы с торговой площадкой.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий площадки.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateListing создаёт активное предложение и возвращает его ID.
func (r *Repository) CreateListing(ctx context.Context, l *Listing) (int64, error) {
	query := `
		INSERT INTO marketplace (guild_id, seller_id, item_id, price, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING listing_id
	`
	var id int64
	err := r.db.QueryRow(ctx, query, l.GuildID, l.SellerID, l.ItemID, l.Price, StatusActive).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания предложения: %w", err)
	}
	return id, nil
}

// GetListing возвращает предложение по ID.
func (r *Repository) GetListing(ctx context.Context, guildID, listingID int64) (*Listing, error) {
	query := `
		SELECT listing_id, guild_id, seller_id, item_id, price, status, created_at
		FROM marketplace
		WHERE guild_id = $1 AND listing_id = $2
	`
	var l Listing
	err := r.db.QueryRow(ctx, query, guildID, listingID).Scan(
		&l.ListingID, &l.GuildID, &l.SellerID, &l.ItemID, &l.Price, &l.Status, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrListingNotFound
		}
		return nil, fmt.Errorf("ошибка получения предложения: %w", err)
	}
	return &l, nil
}

// Buy выполняет покупку предложения ОДНОЙ транзакцией БД:
//  1. Блокируем строку предложения и проверяем статус
//  2. Проверяем, что покупатель не продавец
//  3. Блокируем счета покупателя и продавца, проверяем баланс покупателя
//  4. Переводим статус active → sold условным UPDATE (ровно один покупатель
//     может выиграть: проигравший увидит изменённый статус)
//  5. Списываем у покупателя, начисляем продавцу (сумма монет сохраняется)
//  6. Отдаём предмет покупателю со СВЕЖИМ сроком из каталога —
//     остаток срока продавца не переносится
//  7. Пишем транзакцию market_sale
func (r *Repository) Buy(ctx context.Context, guildID, buyerID, listingID int64) (*BuyResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем предложение
	var l Listing
	err = tx.QueryRow(ctx, `
		SELECT listing_id, guild_id, seller_id, item_id, price, status, created_at
		FROM marketplace
		WHERE guild_id = $1 AND listing_id = $2
		FOR UPDATE
	`, guildID, listingID).Scan(
		&l.ListingID, &l.GuildID, &l.SellerID, &l.ItemID, &l.Price, &l.Status, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrListingNotFound
		}
		return nil, fmt.Errorf("ошибка получения предложения: %w", err)
	}

	if l.Status != StatusActive {
		return nil, common.ErrListingSettled
	}
	if l.SellerID == buyerID {
		return nil, common.ErrSelfTrade
	}

	// Предмет читаем из каталога ВНУТРИ транзакции: срок действия
	// для покупателя считается от текущего определения предмета.
	// Если предмет сняли с продажи после выставления, покупка падает
	// с ErrItemNotFound, а предложение остаётся активным —
	// продавец может убрать его сам
	var item shop.Item
	err = tx.QueryRow(ctx, `
		SELECT item_id, guild_id, name, description, price, item_type, role_id, duration_seconds, max_purchases, created_at
		FROM shop_items
		WHERE guild_id = $1 AND item_id = $2
	`, guildID, l.ItemID).Scan(
		&item.ItemID, &item.GuildID, &item.Name, &item.Description, &item.Price,
		&item.ItemType, &item.RoleID, &item.Duration, &item.MaxPurchases, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrItemNotFound
		}
		return nil, fmt.Errorf("ошибка получения предмета: %w", err)
	}

	// Блокируем оба счёта в стабильном порядке
	rows, err := tx.Query(ctx, `
		SELECT user_id, balance FROM accounts
		WHERE guild_id = $1 AND user_id = ANY($2::bigint[])
		ORDER BY user_id
		FOR UPDATE
	`, guildID, []int64{buyerID, l.SellerID})
	if err != nil {
		return nil, fmt.Errorf("ошибка блокировки счетов: %w", err)
	}
	balances := make(map[int64]int64, 2)
	for rows.Next() {
		var uid, bal int64
		if err := rows.Scan(&uid, &bal); err != nil {
			rows.Close()
			return nil, fmt.Errorf("ошибка сканирования счёта: %w", err)
		}
		balances[uid] = bal
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения счетов: %w", err)
	}
	if len(balances) < 2 {
		return nil, common.ErrUserNotFound
	}

	if balances[buyerID] < l.Price {
		return nil, common.ErrInsufficientBalance
	}

	// Ровно один покупатель может перевести active → sold
	ct, err := tx.Exec(ctx, `
		UPDATE marketplace SET status = $3
		WHERE guild_id = $1 AND listing_id = $2 AND status = $4
	`, guildID, listingID, StatusSold, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("ошибка смены статуса предложения: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return nil, common.ErrListingSettled
	}

	// Деньги: покупатель → продавец
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, buyerID, l.Price)
	if err != nil {
		return nil, fmt.Errorf("ошибка списания у покупателя: %w", err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, l.SellerID, l.Price)
	if err != nil {
		return nil, fmt.Errorf("ошибка начисления продавцу: %w", err)
	}

	// Предмет: покупателю со свежим сроком действия
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
	`, guildID, buyerID, l.ItemID, now, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи инвентаря: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (guild_id, from_user_id, to_user_id, item_id, amount, transaction_type)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, guildID, l.SellerID, buyerID, l.ItemID, l.Price, economy.TxTypeMarketSale)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации покупки: %w", err)
	}

	l.Status = StatusSold
	return &BuyResult{
		Listing:    &l,
		Item:       &item,
		NewBalance: balances[buyerID] - l.Price,
	}, nil
}

// CancelListing переводит предложение active → cancelled.
// Условный UPDATE гарантирует, что проданное предложение отменить нельзя.
func (r *Repository) CancelListing(ctx context.Context, guildID, listingID int64) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE marketplace SET status = $3
		WHERE guild_id = $1 AND listing_id = $2 AND status = $4
	`, guildID, listingID, StatusCancelled, StatusActive)
	if err != nil {
		return fmt.Errorf("ошибка отмены предложения: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Либо предложения нет, либо оно уже продано/отменено
		var exists bool
		if err := r.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM marketplace WHERE guild_id = $1 AND listing_id = $2)
		`, guildID, listingID).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки предложения: %w", err)
		}
		if !exists {
			return common.ErrListingNotFound
		}
		return common.ErrListingSettled
	}
	return nil
}

// ActiveListings возвращает витрину сервера: активные предложения
// вместе с данными каталога (новые сверху).
func (r *Repository) ActiveListings(ctx context.Context, guildID int64) ([]*ListingView, error) {
	query := `
		SELECT m.listing_id, m.guild_id, m.seller_id, m.item_id, m.price, m.status, m.created_at,
		       si.item_id, si.guild_id, si.name, si.description, si.price,
		       si.item_type, si.role_id, si.duration_seconds, si.max_purchases, si.created_at
		FROM marketplace m
		LEFT JOIN shop_items si ON si.guild_id = m.guild_id AND si.item_id = m.item_id
		WHERE m.guild_id = $1 AND m.status = $2
		ORDER BY m.created_at DESC
	`
	return r.queryListingViews(ctx, query, guildID, StatusActive)
}

// ListingsBySeller возвращает активные предложения продавца.
func (r *Repository) ListingsBySeller(ctx context.Context, guildID, sellerID int64) ([]*ListingView, error) {
	query := `
		SELECT m.listing_id, m.guild_id, m.seller_id, m.item_id, m.price, m.status, m.created_at,
		       si.item_id, si.guild_id, si.name, si.description, si.price,
		       si.item_type, si.role_id, si.duration_seconds, si.max_purchases, si.created_at
		FROM marketplace m
		LEFT JOIN shop_items si ON si.guild_id = m.guild_id AND si.item_id = m.item_id
		WHERE m.guild_id = $1 AND m.status = $2 AND m.seller_id = $3
		ORDER BY m.created_at DESC
	`
	return r.queryListingViews(ctx, query, guildID, StatusActive, sellerID)
}

func (r *Repository) queryListingViews(ctx context.Context, query string, args ...any) ([]*ListingView, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения предложений: %w", err)
	}
	defer rows.Close()

	var views []*ListingView
	for rows.Next() {
		var l Listing
		var itemID, itemGuildID, price, duration, roleID *int64
		var name, description, itemType *string
		var maxPurchases *int
		var createdAt *time.Time

		err := rows.Scan(
			&l.ListingID, &l.GuildID, &l.SellerID, &l.ItemID, &l.Price, &l.Status, &l.CreatedAt,
			&itemID, &itemGuildID, &name, &description, &price,
			&itemType, &roleID, &duration, &maxPurchases, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования предложения: %w", err)
		}

		view := &ListingView{Listing: l}
		if itemID != nil {
			view.Item = &shop.Item{
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
		views = append(views, view)
	}
	return views, rows.Err()
}
