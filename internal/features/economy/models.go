// Package economy управляет виртуальной валютой «монеты».
// models.go описывает структуры для счетов и транзакций.
package economy

import (
	"fmt"
	"time"

	"svetogorskrp.ru/discord-bot/internal/common"
)

// Account представляет счёт участника на конкретном сервере.
// Каждая пара (сервер, участник) имеет ровно одну запись в таблице accounts.
// Счёт создаётся лениво при первом обращении и никогда не удаляется
// по одному — только вместе со всеми данными сервера.
type Account struct {
	GuildID   int64     `db:"guild_id"` // Discord guild ID
	UserID    int64     `db:"user_id"`  // Discord user ID
	Balance   int64     `db:"balance"`  // Текущий баланс (может уйти в минус только админ-операцией)
	XP        int64     `db:"xp"`       // Опыт (начисляется модулем уровней)
	Level     int       `db:"level"`    // Уровень (начинается с 1)
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Transaction представляет одну операцию с монетами.
// Журнал только дописывается: записи не изменяются и не удаляются,
// кроме полной очистки данных сервера.
type Transaction struct {
	ID              int64     `db:"id"`               // ID транзакции
	GuildID         int64     `db:"guild_id"`         // Сервер, в рамках которого прошла операция
	FromUserID      *int64    `db:"from_user_id"`     // Отправитель (nil для системных начислений)
	ToUserID        *int64    `db:"to_user_id"`       // Получатель (nil для списаний в «никуда»)
	ItemID          *int64    `db:"item_id"`          // Предмет (для покупок и перепродаж)
	Amount          int64     `db:"amount"`           // Сумма (всегда положительная)
	TransactionType string    `db:"transaction_type"` // Тип: 'transfer', 'shop_purchase', ...
	CreatedAt       time.Time `db:"created_at"`       // Время транзакции
}

// TransactionTypes — допустимые типы транзакций
const (
	TxTypeTransfer     = "transfer"      // Перевод между пользователями
	TxTypeShopPurchase = "shop_purchase" // Покупка в магазине (монеты сгорают)
	TxTypeMarketSale   = "market_sale"   // Перепродажа на торговой площадке
	TxTypeAdminGive    = "admin_give"    // Выдача админом (эмиссия)
	TxTypeAdminTake    = "admin_take"    // Изъятие админом (сжигание)
	TxTypeWork         = "work"          // Награда за работу (эмиссия)
	TxTypeCasinoBet    = "casino_bet"    // Ставка в казино (монеты сгорают)
	TxTypeCasinoWin    = "casino_win"    // Выигрыш в казино (эмиссия)
)

// ActionWork — ключ перезарядки команды work в таблице cooldowns.
const ActionWork = "work"

// WorkResult — результат успешно выполненной работы.
type WorkResult struct {
	Reward     int64 // Начисленная награда
	NewBalance int64 // Баланс после начисления
}

// CooldownError возвращается, когда работа ещё на перезарядке.
// Разворачивается в common.ErrWorkCooldown; Remaining говорит, сколько ждать.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("вы недавно работали, попробуйте через %s", e.Remaining.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return common.ErrWorkCooldown }
