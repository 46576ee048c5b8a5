// Package giveaway — repository.go выполняет все операции с таблицами
// giveaways и giveaway_entries.
package giveaway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"svetogorskrp.ru/discord-bot/internal/common"
)

// Repository предоставляет методы для работы с розыгрышами.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий розыгрышей.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CreateGiveaway создаёт розыгрыш и возвращает его ID.
func (r *Repository) CreateGiveaway(ctx context.Context, g *Giveaway) (int64, error) {
	query := `
		INSERT INTO giveaways (guild_id, channel_id, host_id, prize, winners_count, end_at, ended)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE)
		RETURNING giveaway_id
	`
	var id int64
	err := r.db.QueryRow(ctx, query,
		g.GuildID, g.ChannelID, g.HostID, g.Prize, g.WinnersCount, g.EndAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания розыгрыша: %w", err)
	}
	return id, nil
}

// GetGiveaway возвращает розыгрыш по ID.
func (r *Repository) GetGiveaway(ctx context.Context, guildID, giveawayID int64) (*Giveaway, error) {
	query := `
		SELECT giveaway_id, guild_id, channel_id, host_id, prize, winners_count, end_at, ended, created_at
		FROM giveaways
		WHERE guild_id = $1 AND giveaway_id = $2
	`
	var g Giveaway
	err := r.db.QueryRow(ctx, query, guildID, giveawayID).Scan(
		&g.GiveawayID, &g.GuildID, &g.ChannelID, &g.HostID,
		&g.Prize, &g.WinnersCount, &g.EndAt, &g.Ended, &g.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, common.ErrGiveawayNotFound
		}
		return nil, fmt.Errorf("ошибка получения розыгрыша: %w", err)
	}
	return &g, nil
}

// AddEntry регистрирует участие в розыгрыше.
// Повторное участие — no-op (ON CONFLICT DO NOTHING).
func (r *Repository) AddEntry(ctx context.Context, guildID, giveawayID, userID int64) error {
	query := `
		INSERT INTO giveaway_entries (giveaway_id, guild_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (giveaway_id, user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, giveawayID, guildID, userID); err != nil {
		return fmt.Errorf("ошибка регистрации участия: %w", err)
	}
	return nil
}

// Entrants возвращает участников розыгрыша в порядке вступления.
func (r *Repository) Entrants(ctx context.Context, guildID, giveawayID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM giveaway_entries
		WHERE guild_id = $1 AND giveaway_id = $2
		ORDER BY entered_at
	`
	rows, err := r.db.Query(ctx, query, guildID, giveawayID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения участников: %w", err)
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("ошибка сканирования участника: %w", err)
		}
		users = append(users, uid)
	}
	return users, rows.Err()
}

// ActiveGiveaways возвращает незавершённые розыгрыши сервера
// (ближайшие к окончанию — первыми).
func (r *Repository) ActiveGiveaways(ctx context.Context, guildID int64) ([]*Giveaway, error) {
	query := `
		SELECT giveaway_id, guild_id, channel_id, host_id, prize, winners_count, end_at, ended, created_at
		FROM giveaways
		WHERE guild_id = $1 AND ended = FALSE
		ORDER BY end_at
	`
	return r.queryGiveaways(ctx, query, guildID)
}

// DueGiveaways возвращает розыгрыши всех серверов, чей срок вышел,
// но итоги ещё не подведены.
func (r *Repository) DueGiveaways(ctx context.Context, now time.Time) ([]*Giveaway, error) {
	query := `
		SELECT giveaway_id, guild_id, channel_id, host_id, prize, winners_count, end_at, ended, created_at
		FROM giveaways
		WHERE ended = FALSE AND end_at <= $1
		ORDER BY end_at
	`
	return r.queryGiveaways(ctx, query, now)
}

func (r *Repository) queryGiveaways(ctx context.Context, query string, args ...any) ([]*Giveaway, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения розыгрышей: %w", err)
	}
	defer rows.Close()

	var giveaways []*Giveaway
	for rows.Next() {
		var g Giveaway
		err := rows.Scan(
			&g.GiveawayID, &g.GuildID, &g.ChannelID, &g.HostID,
			&g.Prize, &g.WinnersCount, &g.EndAt, &g.Ended, &g.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования розыгрыша: %w", err)
		}
		giveaways = append(giveaways, &g)
	}
	return giveaways, rows.Err()
}

// ClaimEnded переводит розыгрыш ended FALSE → TRUE и возвращает
// снимок участников из той же транзакции.
//
// Условный UPDATE гарантирует, что итоги подводятся ровно один раз:
// второй обработчик (или параллельный экземпляр) получит claimed=false
// и не будет объявлять победителей повторно.
func (r *Repository) ClaimEnded(ctx context.Context, guildID, giveawayID int64) (claimed bool, entrants []int64, err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("ошибка начала транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `
		UPDATE giveaways SET ended = TRUE
		WHERE guild_id = $1 AND giveaway_id = $2 AND ended = FALSE
	`, guildID, giveawayID)
	if err != nil {
		return false, nil, fmt.Errorf("ошибка завершения розыгрыша: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil, nil
	}

	rows, err := tx.Query(ctx, `
		SELECT user_id FROM giveaway_entries
		WHERE guild_id = $1 AND giveaway_id = $2
		ORDER BY entered_at
	`, guildID, giveawayID)
	if err != nil {
		return false, nil, fmt.Errorf("ошибка получения участников: %w", err)
	}
	for rows.Next() {
		var uid int64
		if err := rows.Scan(&uid); err != nil {
			rows.Close()
			return false, nil, fmt.Errorf("ошибка сканирования участника: %w", err)
		}
		entrants = append(entrants, uid)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, nil, fmt.Errorf("ошибка чтения участников: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, nil, fmt.Errorf("ошибка фиксации завершения: %w", err)
	}
	return true, entrants, nil
}

// SetEndAt переносит момент окончания розыгрыша.
// Допустимо только для незавершённых розыгрышей.
func (r *Repository) SetEndAt(ctx context.Context, guildID, giveawayID int64, endAt time.Time) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE giveaways SET end_at = $3
		WHERE guild_id = $1 AND giveaway_id = $2 AND ended = FALSE
	`, guildID, giveawayID, endAt)
	if err != nil {
		return fmt.Errorf("ошибка переноса окончания: %w", err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `
			SELECT EXISTS(SELECT 1 FROM giveaways WHERE guild_id = $1 AND giveaway_id = $2)
		`, guildID, giveawayID).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки розыгрыша: %w", err)
		}
		if !exists {
			return common.ErrGiveawayNotFound
		}
		return common.ErrGiveawayAlreadyEnded
	}
	return nil
}
