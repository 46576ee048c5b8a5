// Package casino реализует слот-машину с тремя барабанами
// и фиксированными выплатами.
// models.go описывает структуры данных казино.
package casino

import "time"

// Reels — количество барабанов слот-машины.
const Reels = 3

// Symbols — символы барабанов. Все выпадают равновероятно:
// шансы игры фиксированные, без подкрутки под игрока.
var Symbols = []string{"🍒", "🍋", "🍊", "🍇", "🔔", "💎"}

// Множители выплат
const (
	TripleMultiplier = 5 // Три одинаковых символа
	PairMultiplier   = 2 // Два одинаковых символа подряд
)

// SpinResult — результат одного спина.
type SpinResult struct {
	Reels      [Reels]string // Выпавшие символы
	Bet        int64         // Ставка
	Payout     int64         // Выплата (0 при проигрыше)
	NewBalance int64         // Баланс после расчёта
	IsWin      bool          // Есть ли выигрыш
}

// Stats — статистика казино участника на сервере.
type Stats struct {
	GuildID      int64     `db:"guild_id"`
	UserID       int64     `db:"user_id"`
	TotalSpins   int       `db:"total_spins"`
	TotalWagered int64     `db:"total_wagered"`
	TotalWon     int64     `db:"total_won"`
	BiggestWin   int64     `db:"biggest_win"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
