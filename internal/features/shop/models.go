// Package shop управляет магазином предметов: каталог, покупки,
// инвентари со сроком действия и счётчики покупок.
// models.go описывает структуры данных магазина.
package shop

import "time"

// Типы предметов магазина.
const (
	ItemTypeRole     = "role"     // Роль на сервере (выдаётся при покупке)
	ItemTypeCosmetic = "cosmetic" // Косметика
	ItemTypeBoost    = "boost"    // Буст
	ItemTypeOther    = "other"    // Всё остальное
)

// ValidItemType проверяет, что тип предмета известен.
func ValidItemType(t string) bool {
	switch t {
	case ItemTypeRole, ItemTypeCosmetic, ItemTypeBoost, ItemTypeOther:
		return true
	}
	return false
}

// Item представляет предмет каталога магазина.
// После создания предмет неизменяем — его можно только удалить.
// Удаление НЕ каскадное: инвентари и предложения площадки,
// ссылающиеся на удалённый предмет, остаются и показываются
// как «предмет недоступен».
type Item struct {
	ItemID       int64     `db:"item_id"`          // ID предмета (BIGSERIAL)
	GuildID      int64     `db:"guild_id"`         // Сервер, которому принадлежит предмет
	Name         string    `db:"name"`             // Название
	Description  string    `db:"description"`      // Описание
	Price        int64     `db:"price"`            // Цена (>= 0)
	ItemType     string    `db:"item_type"`        // role / cosmetic / boost / other
	RoleID       *int64    `db:"role_id"`          // Привязанная роль (только для role)
	Duration     int64     `db:"duration_seconds"` // Срок действия в секундах (0 = бессрочно)
	MaxPurchases int       `db:"max_purchases"`    // Лимит покупок на участника (-1 = безлимит)
	CreatedAt    time.Time `db:"created_at"`
}

// Perpetual сообщает, бессрочный ли предмет.
func (i *Item) Perpetual() bool {
	return i.Duration <= 0
}

// ItemInput — параметры создания предмета.
type ItemInput struct {
	Name         string
	Description  string
	Price        int64
	ItemType     string
	RoleID       *int64
	Duration     int64 // секунды, 0 = бессрочно
	MaxPurchases int   // -1 = безлимит
}

// InventoryEntry представляет предмет в инвентаре участника.
// На пару (участник, предмет) существует не больше одной записи:
// повторная покупка заменяет запись со свежим сроком действия.
type InventoryEntry struct {
	GuildID     int64      `db:"guild_id"`
	UserID      int64      `db:"user_id"`
	ItemID      int64      `db:"item_id"`
	PurchasedAt time.Time  `db:"purchased_at"`
	ExpiresAt   *time.Time `db:"expires_at"` // nil для бессрочных предметов
}

// InventoryItem — запись инвентаря вместе с данными каталога.
// Item == nil означает, что предмет был удалён из магазина
// («предмет недоступен»), но запись инвентаря всё ещё существует.
type InventoryItem struct {
	Entry InventoryEntry
	Item  *Item
}

// PurchaseResult — результат успешной покупки.
type PurchaseResult struct {
	Item       *Item // Купленный предмет (роль выдаёт вызывающий слой по RoleID)
	NewBalance int64 // Баланс после списания
}
