// Package economy — repository.go выполняет все операции с таблицами accounts и transactions.
// Все денежные операции выполняются в транзакциях БД для целостности данных.
package economy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"svetogorskrp.ru/discord-bot/internal/common"
)

// Repository предоставляет методы для работы со счетами и транзакциями.
type Repository struct {
	db              *pgxpool.Pool
	startingBalance int64 // Баланс нового счёта (ECONOMY_STARTING_BALANCE)
}

// NewRepository создаёт новый репозиторий экономики.
func NewRepository(db *pgxpool.Pool, startingBalance int64) *Repository {
	return &Repository{db: db, startingBalance: startingBalance}
}

// EnsureAccount гарантирует, что у пары (сервер, участник) есть счёт.
// Если нет — создаёт с начальным балансом и уровнем 1.
func (r *Repository) EnsureAccount(ctx context.Context, guildID, userID int64) error {
	query := `
		INSERT INTO accounts (guild_id, user_id, balance, xp, level)
		VALUES ($1, $2, $3, 0, 1)
		ON CONFLICT (guild_id, user_id) DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, guildID, userID, r.startingBalance)
	if err != nil {
		return fmt.Errorf("ошибка создания счёта: %w", err)
	}
	return nil
}

// GetAccount возвращает счёт участника.
func (r *Repository) GetAccount(ctx context.Context, guildID, userID int64) (*Account, error) {
	query := `
		SELECT guild_id, user_id, balance, xp, level, created_at, updated_at
		FROM accounts
		WHERE guild_id = $1 AND user_id = $2
	`
	var a Account
	err := r.db.QueryRow(ctx, query, guildID, userID).Scan(
		&a.GuildID, &a.UserID, &a.Balance, &a.XP, &a.Level, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrUserNotFound
		}
		return nil, fmt.Errorf("ошибка получения счёта: %w", err)
	}
	return &a, nil
}

// GetBalance возвращает текущий баланс участника.
func (r *Repository) GetBalance(ctx context.Context, guildID, userID int64) (int64, error) {
	query := `SELECT balance FROM accounts WHERE guild_id = $1 AND user_id = $2`
	var balance int64
	err := r.db.QueryRow(ctx, query, guildID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrUserNotFound
		}
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, nil
}

// Transfer переводит монеты от одного участника к другому.
// Атомарная операция: либо оба баланса обновятся, либо ни одного.
// Сумма на двух счетах до и после одинакова — монеты не создаются и не исчезают.
func (r *Repository) Transfer(ctx context.Context, guildID, fromUserID, toUserID, amount int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем обе строки в стабильном порядке (по user_id),
	// чтобы встречные переводы не взаимоблокировались
	rows, err := tx.Query(ctx, `
		SELECT user_id, balance FROM accounts
		WHERE guild_id = $1 AND user_id = ANY($2::bigint[])
		ORDER BY user_id
		FOR UPDATE
	`, guildID, []int64{fromUserID, toUserID})
	if err != nil {
		return fmt.Errorf("ошибка блокировки счетов: %w", err)
	}

	balances := make(map[int64]int64, 2)
	for rows.Next() {
		var uid, bal int64
		if err := rows.Scan(&uid, &bal); err != nil {
			rows.Close()
			return fmt.Errorf("ошибка сканирования счёта: %w", err)
		}
		balances[uid] = bal
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("ошибка чтения счетов: %w", err)
	}

	if len(balances) < 2 {
		return common.ErrUserNotFound
	}

	// Проверка средств отправителя ПОСЛЕ взятия блокировки:
	// конкурентный перевод уже зафиксировал своё списание
	if balances[fromUserID] < amount {
		return common.ErrInsufficientBalance
	}

	// Списываем у отправителя
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = balance - $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, fromUserID, amount)
	if err != nil {
		return fmt.Errorf("ошибка списания у отправителя: %w", err)
	}

	// Начисляем получателю
	_, err = tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, toUserID, amount)
	if err != nil {
		return fmt.Errorf("ошибка начисления получателю: %w", err)
	}

	// Записываем транзакцию в историю
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (guild_id, from_user_id, to_user_id, amount, transaction_type)
		VALUES ($1, $2, $3, $4, $5)
	`, guildID, fromUserID, toUserID, amount, TxTypeTransfer)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	return tx.Commit(ctx)
}

// AdjustBalance изменяет баланс на delta (положительную или отрицательную).
// Используется ТОЛЬКО админ-операциями: проверки средств нет,
// изъятие может увести баланс в минус.
func (r *Repository) AdjustBalance(ctx context.Context, guildID, userID, delta int64, txType string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE accounts SET balance = balance + $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID, delta)
	if err != nil {
		return fmt.Errorf("ошибка изменения баланса: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}

	amount := delta
	var fromUser, toUser *int64
	if delta >= 0 {
		toUser = &userID
	} else {
		amount = -delta
		fromUser = &userID
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (guild_id, from_user_id, to_user_id, amount, transaction_type)
		VALUES ($1, $2, $3, $4, $5)
	`, guildID, fromUser, toUser, amount, txType)
	if err != nil {
		return fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	return tx.Commit(ctx)
}

// Work начисляет награду за работу, если перезарядка уже прошла.
// Отметка перезарядки и начисление происходят в одной транзакции БД:
// условный upsert в cooldowns срабатывает только когда с прошлой работы
// прошло не меньше cooldown, поэтому два конкурентных вызова не могут
// получить награду дважды.
func (r *Repository) Work(ctx context.Context, guildID, userID, reward int64, cooldown time.Duration) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC()
	ct, err := tx.Exec(ctx, `
		INSERT INTO cooldowns (guild_id, user_id, action, last_used)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id, action) DO UPDATE SET last_used = EXCLUDED.last_used
		WHERE cooldowns.last_used <= $5
	`, guildID, userID, ActionWork, now, now.Add(-cooldown))
	if err != nil {
		return 0, fmt.Errorf("ошибка отметки перезарядки: %w", err)
	}
	if ct.RowsAffected() == 0 {
		// Перезарядка ещё идёт — читаем, сколько осталось ждать
		var lastUsed time.Time
		err := tx.QueryRow(ctx, `
			SELECT last_used FROM cooldowns
			WHERE guild_id = $1 AND user_id = $2 AND action = $3
		`, guildID, userID, ActionWork).Scan(&lastUsed)
		if err != nil {
			return 0, fmt.Errorf("ошибка чтения перезарядки: %w", err)
		}
		return 0, &CooldownError{Remaining: lastUsed.Add(cooldown).Sub(now)}
	}

	var newBalance int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance + $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
		RETURNING balance
	`, guildID, userID, reward).Scan(&newBalance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrUserNotFound
		}
		return 0, fmt.Errorf("ошибка начисления награды: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (guild_id, to_user_id, amount, transaction_type)
		VALUES ($1, $2, $3, $4)
	`, guildID, userID, reward, TxTypeWork)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи транзакции: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return newBalance, nil
}

// SetBalance устанавливает точное значение баланса (админ-операция).
func (r *Repository) SetBalance(ctx context.Context, guildID, userID, amount int64) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE accounts SET balance = $3, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID, amount)
	if err != nil {
		return fmt.Errorf("ошибка установки баланса: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return common.ErrUserNotFound
	}
	return nil
}

// TopByBalance возвращает топ участников сервера по балансу.
func (r *Repository) TopByBalance(ctx context.Context, guildID int64, limit int) ([]*Account, error) {
	query := `
		SELECT guild_id, user_id, balance, xp, level, created_at, updated_at
		FROM accounts
		WHERE guild_id = $1
		ORDER BY balance DESC
		LIMIT $2
	`
	return r.queryAccounts(ctx, query, guildID, limit)
}

// TopByLevel возвращает топ участников сервера по уровню (и опыту при равенстве).
func (r *Repository) TopByLevel(ctx context.Context, guildID int64, limit int) ([]*Account, error) {
	query := `
		SELECT guild_id, user_id, balance, xp, level, created_at, updated_at
		FROM accounts
		WHERE guild_id = $1
		ORDER BY level DESC, xp DESC
		LIMIT $2
	`
	return r.queryAccounts(ctx, query, guildID, limit)
}

func (r *Repository) queryAccounts(ctx context.Context, query string, args ...any) ([]*Account, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счетов: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.GuildID, &a.UserID, &a.Balance, &a.XP, &a.Level, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("ошибка сканирования счёта: %w", err)
		}
		accounts = append(accounts, &a)
	}
	return accounts, rows.Err()
}

// Transactions возвращает последние N транзакций участника.
// Включает как входящие, так и исходящие операции.
func (r *Repository) Transactions(ctx context.Context, guildID, userID int64, limit int) ([]*Transaction, error) {
	query := `
		SELECT id, guild_id, from_user_id, to_user_id, item_id, amount, transaction_type, created_at
		FROM transactions
		WHERE guild_id = $1 AND (from_user_id = $2 OR to_user_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := r.db.Query(ctx, query, guildID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		err := rows.Scan(
			&t.ID, &t.GuildID, &t.FromUserID, &t.ToUserID,
			&t.ItemID, &t.Amount, &t.TransactionType, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}

// CleanupGuild удаляет ВСЕ данные сервера: счета, магазин, инвентари,
// счётчики покупок, площадку, журнал транзакций, розыгрыши,
// перезарядки и статистику казино.
// Вызывается, когда бота убирают с сервера.
func (r *Repository) CleanupGuild(ctx context.Context, guildID int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	statements := []string{
		`DELETE FROM giveaway_entries WHERE giveaway_id IN (SELECT giveaway_id FROM giveaways WHERE guild_id = $1)`,
		`DELETE FROM giveaways WHERE guild_id = $1`,
		`DELETE FROM marketplace WHERE guild_id = $1`,
		`DELETE FROM item_purchases WHERE guild_id = $1`,
		`DELETE FROM user_inventory WHERE guild_id = $1`,
		`DELETE FROM shop_items WHERE guild_id = $1`,
		`DELETE FROM casino_stats WHERE guild_id = $1`,
		`DELETE FROM cooldowns WHERE guild_id = $1`,
		`DELETE FROM transactions WHERE guild_id = $1`,
		`DELETE FROM accounts WHERE guild_id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt, guildID); err != nil {
			return fmt.Errorf("ошибка очистки данных сервера: %w", err)
		}
	}

	return tx.Commit(ctx)
}
