// Package giveaway управляет розыгрышами: создание, участие и фоновое
// подведение итогов. models.go описывает структуры розыгрышей.
package giveaway

import "time"

// Giveaway представляет розыгрыш на сервере.
//
// Поле Ended — флаг «итоги подведены», а не «срок вышел»: между
// наступлением EndAt и проходом фонового обработчика розыгрыш
// просрочен, но ещё не завершён. Переход Ended false→true выполняется
// условным UPDATE ровно один раз.
type Giveaway struct {
	GiveawayID   int64     `db:"giveaway_id"`   // ID розыгрыша (BIGSERIAL)
	GuildID      int64     `db:"guild_id"`      // Сервер
	ChannelID    int64     `db:"channel_id"`    // Канал для объявления итогов
	HostID       int64     `db:"host_id"`       // Организатор
	Prize        string    `db:"prize"`         // Описание приза
	WinnersCount int       `db:"winners_count"` // Сколько победителей разыгрывается (1..50)
	EndAt        time.Time `db:"end_at"`        // Момент окончания
	Ended        bool      `db:"ended"`         // Итоги подведены
	CreatedAt    time.Time `db:"created_at"`
}

// Entry — участие в розыгрыше. Одна строка на пару (розыгрыш, участник).
type Entry struct {
	GiveawayID int64     `db:"giveaway_id"`
	GuildID    int64     `db:"guild_id"`
	UserID     int64     `db:"user_id"`
	EnteredAt  time.Time `db:"entered_at"`
}

// ResolveResult — итог завершения одного розыгрыша.
// Winners может быть короче WinnersCount или пустым,
// если участников не хватило.
type ResolveResult struct {
	Giveaway *Giveaway
	Winners  []int64
	Entrants int // Сколько всего было участников на момент завершения
}

// Пределы количества победителей.
const (
	MinWinners = 1
	MaxWinners = 50
)
