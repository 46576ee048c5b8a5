// Package casino — repository.go рассчитывает спины по счетам
// и ведёт таблицу casino_stats.
package casino

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"svetogorskrp.ru/discord-bot/internal/common"
	"svetogorskrp.ru/discord-bot/internal/features/economy"
)

// Repository работает с данными казино в БД.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт репозиторий казино.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Settle рассчитывает спин: списывает ставку, начисляет выплату и
// обновляет статистику в одной транзакции БД. Проверка средств идёт
// после блокировки счёта, поэтому конкурентные спины не уведут
// баланс в минус.
func (r *Repository) Settle(ctx context.Context, guildID, userID, bet, payout int64) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT balance FROM accounts
		WHERE guild_id = $1 AND user_id = $2
		FOR UPDATE
	`, guildID, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, common.ErrUserNotFound
		}
		return 0, fmt.Errorf("ошибка блокировки счёта: %w", err)
	}
	if balance < bet {
		return 0, common.ErrInsufficientBalance
	}

	var newBalance int64
	err = tx.QueryRow(ctx, `
		UPDATE accounts SET balance = balance - $3 + $4, updated_at = NOW()
		WHERE guild_id = $1 AND user_id = $2
		RETURNING balance
	`, guildID, userID, bet, payout).Scan(&newBalance)
	if err != nil {
		return 0, fmt.Errorf("ошибка расчёта спина: %w", err)
	}

	// Ставка сгорает, выигрыш — эмиссия: две отдельные записи журнала
	_, err = tx.Exec(ctx, `
		INSERT INTO transactions (guild_id, from_user_id, amount, transaction_type)
		VALUES ($1, $2, $3, $4)
	`, guildID, userID, bet, economy.TxTypeCasinoBet)
	if err != nil {
		return 0, fmt.Errorf("ошибка записи ставки: %w", err)
	}
	if payout > 0 {
		_, err = tx.Exec(ctx, `
			INSERT INTO transactions (guild_id, to_user_id, amount, transaction_type)
			VALUES ($1, $2, $3, $4)
		`, guildID, userID, payout, economy.TxTypeCasinoWin)
		if err != nil {
			return 0, fmt.Errorf("ошибка записи выигрыша: %w", err)
		}
	}

	// Статистика: спины, ставки, выигрыши и рекорд одним upsert'ом
	_, err = tx.Exec(ctx, `
		INSERT INTO casino_stats (guild_id, user_id, total_spins, total_wagered, total_won, biggest_win)
		VALUES ($1, $2, 1, $3, $4, $4)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			total_spins = casino_stats.total_spins + 1,
			total_wagered = casino_stats.total_wagered + $3,
			total_won = casino_stats.total_won + $4,
			biggest_win = GREATEST(casino_stats.biggest_win, $4),
			updated_at = NOW()
	`, guildID, userID, bet, payout)
	if err != nil {
		return 0, fmt.Errorf("ошибка обновления статистики: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("ошибка фиксации транзакции: %w", err)
	}
	return newBalance, nil
}

// GetStats возвращает статистику казино участника.
// Если участник ещё не играл — нулевую статистику.
func (r *Repository) GetStats(ctx context.Context, guildID, userID int64) (*Stats, error) {
	query := `
		SELECT guild_id, user_id, total_spins, total_wagered, total_won, biggest_win,
		       created_at, updated_at
		FROM casino_stats
		WHERE guild_id = $1 AND user_id = $2
	`
	var s Stats
	err := r.db.QueryRow(ctx, query, guildID, userID).Scan(
		&s.GuildID, &s.UserID, &s.TotalSpins, &s.TotalWagered,
		&s.TotalWon, &s.BiggestWin, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &Stats{GuildID: guildID, UserID: userID}, nil
		}
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return &s, nil
}
